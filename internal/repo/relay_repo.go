// Package repo implements the durable store of the support desk, backed by
// GORM. This file records messages copied into the staff chat so replies to
// them can be attributed to the original user.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/forumdesk/internal/domain"
)

// ErrNoTimestamp is returned for a relay without CreatedAt.
var ErrNoTimestamp = errors.New("relay has no creation time")

// CreateRelay stores r. Duplicate (chat_id, message_id) pairs are ignored.
// The caller stamps CreatedAt; retention pruning depends on it.
func CreateRelay(ctx context.Context, db *gorm.DB, r *domain.Relay) error {
	if r.CreatedAt.IsZero() {
		return ErrNoTimestamp
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(r).Error
}

// GetRelay returns the relay record of (chatID, messageID), or ErrNotFound.
func GetRelay(ctx context.Context, db *gorm.DB, chatID int64, messageID int) (*domain.Relay, error) {
	var r domain.Relay
	err := db.WithContext(ctx).
		Where("chat_id = ? AND message_id = ?", chatID, messageID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// PruneRelays deletes relay records created before cutoff and returns how
// many were removed.
func PruneRelays(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&domain.Relay{})
	return res.RowsAffected, res.Error
}
