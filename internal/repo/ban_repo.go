// Package repo implements the durable store of the support desk, backed by
// GORM. This file provides the ban list: a single upserted row per user whose
// ban_until (Unix ms) is the whole ban state.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/forumdesk/internal/domain"
)

// UpsertBan inserts or replaces userID's ban so it lasts until until. now
// stamps the record.
func UpsertBan(ctx context.Context, db *gorm.DB, userID int64, until, now time.Time) (*domain.Ban, error) {
	b := &domain.Ban{
		UserID:    userID,
		BanUntil:  until.UnixMilli(),
		CreatedAt: now.UTC(),
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"ban_until", "created_at"}),
		}).
		Create(b).Error
	if err != nil {
		return nil, err
	}
	return b, nil
}

// DeleteBan removes userID's ban. It reports whether a row existed.
func DeleteBan(ctx context.Context, db *gorm.DB, userID int64) (bool, error) {
	res := db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.Ban{})
	return res.RowsAffected > 0, res.Error
}

// GetBan returns userID's ban record, active or not, or ErrNotFound.
func GetBan(ctx context.Context, db *gorm.DB, userID int64) (*domain.Ban, error) {
	var b domain.Ban
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// ListActiveBans returns every ban still in force at now.
func ListActiveBans(ctx context.Context, db *gorm.DB, now time.Time) ([]domain.Ban, error) {
	var out []domain.Ban
	err := db.WithContext(ctx).
		Where("ban_until > ?", now.UnixMilli()).
		Find(&out).Error
	return out, err
}

// CountActiveBans returns the number of bans in force at now.
func CountActiveBans(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Ban{}).
		Where("ban_until > ?", now.UnixMilli()).
		Count(&n).Error
	return n, err
}

// ListActiveBansPage returns a page of active bans, soonest expiry first.
func ListActiveBansPage(ctx context.Context, db *gorm.DB, now time.Time, offset, limit int) ([]domain.Ban, error) {
	var out []domain.Ban
	err := db.WithContext(ctx).
		Where("ban_until > ?", now.UnixMilli()).
		Order("ban_until asc, user_id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
