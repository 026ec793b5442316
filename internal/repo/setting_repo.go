// Package repo implements the durable store of the support desk, backed by
// GORM. This file is the key-value settings table behind the settings
// package.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/forumdesk/internal/domain"
)

// ListSettings returns every stored setting ordered by key.
func ListSettings(ctx context.Context, db *gorm.DB) ([]domain.Setting, error) {
	var out []domain.Setting
	err := db.WithContext(ctx).Order("key asc").Find(&out).Error
	return out, err
}

// GetSetting returns one setting, or ErrNotFound.
func GetSetting(ctx context.Context, db *gorm.DB, key string) (*domain.Setting, error) {
	var s domain.Setting
	if err := db.WithContext(ctx).Where("key = ?", key).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// PutSetting inserts or replaces key.
func PutSetting(ctx context.Context, db *gorm.DB, key, value string) error {
	s := &domain.Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(s).Error
}

// SeedSetting inserts key only when it is not stored yet. It reports whether
// a row was written.
func SeedSetting(ctx context.Context, db *gorm.DB, key, value string) (bool, error) {
	s := &domain.Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(s)
	return res.RowsAffected > 0, res.Error
}
