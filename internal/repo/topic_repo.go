// Package repo implements the durable store of the support desk, backed by
// GORM. This file provides repository functions for the Topic directory.
//
// All functions are context-aware and accept a *gorm.DB handle, so they can
// run inside transactions. They are thin: no business rules, only
// persistence and query composition.
//
// Error semantics:
//   - A missing topic yields ErrNotFound (gorm.ErrRecordNotFound).
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/forumdesk/internal/domain"
)

// GetTopicByUser returns the topic owned by userID, or ErrNotFound.
func GetTopicByUser(ctx context.Context, db *gorm.DB, userID int64) (*domain.Topic, error) {
	var t domain.Topic
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTopicByThread returns the topic bound to (chatID, topicID), or ErrNotFound.
func GetTopicByThread(ctx context.Context, db *gorm.DB, chatID int64, topicID int) (*domain.Topic, error) {
	var t domain.Topic
	err := db.WithContext(ctx).
		Where("chat_id = ? AND topic_id = ?", chatID, topicID).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// PutTopic inserts t, replacing any previous topic of the same user (for
// example one left behind in a staff chat that is no longer the target).
func PutTopic(ctx context.Context, db *gorm.DB, t *domain.Topic) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"chat_id", "topic_id", "category", "display_name", "handle", "updated_at"}),
		}).
		Create(t).Error
}

// UpdateTopicLabel stores a new category and owner names for userID's topic.
// It returns ErrNotFound when the user has no topic.
func UpdateTopicLabel(ctx context.Context, db *gorm.DB, userID int64, category domain.Category, displayName, handle string) error {
	res := db.WithContext(ctx).
		Model(&domain.Topic{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"category":     category,
			"display_name": displayName,
			"handle":       handle,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountTopics returns the number of topics in the directory.
func CountTopics(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Topic{}).Count(&n).Error
	return n, err
}
