// Package repo implements the durable store of the support desk, backed by
// GORM. This file persists flow sessions keyed by (bot_id, chat_id, user_id).
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/forumdesk/internal/domain"
)

func sessionWhere(db *gorm.DB, k domain.SessionKey) *gorm.DB {
	return db.Where("bot_id = ? AND chat_id = ? AND user_id = ?", k.BotID, k.ChatID, k.UserID)
}

// PutSession inserts s or replaces the session with the same key.
func PutSession(ctx context.Context, db *gorm.DB, s *domain.Session) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "bot_id"}, {Name: "chat_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"flow", "category", "data", "last_activity"}),
		}).
		Create(s).Error
}

// GetSession returns the session for k, or ErrNotFound.
func GetSession(ctx context.Context, db *gorm.DB, k domain.SessionKey) (*domain.Session, error) {
	var s domain.Session
	if err := sessionWhere(db.WithContext(ctx), k).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// TouchSession records activity on k at at. It returns ErrNotFound when the
// session no longer exists.
func TouchSession(ctx context.Context, db *gorm.DB, k domain.SessionKey, at time.Time) error {
	res := sessionWhere(db.WithContext(ctx).Model(&domain.Session{}), k).
		Update("last_activity", at.UnixMilli())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSession clears k. It reports whether a row existed.
func DeleteSession(ctx context.Context, db *gorm.DB, k domain.SessionKey) (bool, error) {
	res := sessionWhere(db.WithContext(ctx), k).Delete(&domain.Session{})
	return res.RowsAffected > 0, res.Error
}

// DeleteIdleSession clears k only if its last activity is at or before
// cutoff. It reports whether a row was removed, so activity recorded after
// the caller's read keeps the session alive.
func DeleteIdleSession(ctx context.Context, db *gorm.DB, k domain.SessionKey, cutoff time.Time) (bool, error) {
	res := sessionWhere(db.WithContext(ctx), k).
		Where("last_activity <= ?", cutoff.UnixMilli()).
		Delete(&domain.Session{})
	return res.RowsAffected > 0, res.Error
}

// ListSessionKeys returns the keys of every stored session.
func ListSessionKeys(ctx context.Context, db *gorm.DB) ([]domain.SessionKey, error) {
	var rows []domain.Session
	err := db.WithContext(ctx).
		Model(&domain.Session{}).
		Select("bot_id", "chat_id", "user_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.SessionKey, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Key())
	}
	return out, nil
}

// CountSessions returns the number of active sessions.
func CountSessions(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Session{}).Count(&n).Error
	return n, err
}
