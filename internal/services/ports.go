package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/forumdesk/internal/domain"
	"github.com/tbourn/forumdesk/internal/repo"
	"github.com/tbourn/forumdesk/internal/settings"
)

// Transport is the chat platform as seen by the core. Implementations must be
// safe for concurrent use. Every error is treated as ErrTransport.
type Transport interface {
	// CreateTopic opens a forum topic in chatID and returns its thread id.
	CreateTopic(ctx context.Context, chatID int64, name string) (int, error)
	// RenameTopic changes the title of an existing topic.
	RenameTopic(ctx context.Context, chatID int64, topicID int, name string) error
	// CopyMessage copies fromChat/messageID into toChat (thread toThread, 0
	// for none) and returns the id of the copy.
	CopyMessage(ctx context.Context, toChat int64, toThread int, fromChat int64, messageID int) (int, error)
	// SendText posts a plain text message.
	SendText(ctx context.Context, chatID int64, threadID int, text string) (int, error)
	// MemberRole reports userID's standing in chatID.
	MemberRole(ctx context.Context, chatID, userID int64) (domain.MemberRole, error)
}

// SettingsSource yields the current runtime settings.
type SettingsSource interface {
	Snapshot() *settings.Snapshot
}

// SettingsWriter is a SettingsSource that also accepts validated writes.
type SettingsWriter interface {
	SettingsSource
	Set(ctx context.Context, key, value string) (string, error)
}

// TopicRepo defines the repository contract required by TopicDirectory.
type TopicRepo interface {
	GetTopicByUser(ctx context.Context, db *gorm.DB, userID int64) (*domain.Topic, error)
	GetTopicByThread(ctx context.Context, db *gorm.DB, chatID int64, topicID int) (*domain.Topic, error)
	PutTopic(ctx context.Context, db *gorm.DB, t *domain.Topic) error
	UpdateTopicLabel(ctx context.Context, db *gorm.DB, userID int64, category domain.Category, displayName, handle string) error
}

// RepoTopics adapts the repository free functions to TopicRepo.
type RepoTopics struct{}

// GetTopicByUser proxies repo.GetTopicByUser.
func (RepoTopics) GetTopicByUser(ctx context.Context, db *gorm.DB, userID int64) (*domain.Topic, error) {
	return repo.GetTopicByUser(ctx, db, userID)
}

// GetTopicByThread proxies repo.GetTopicByThread.
func (RepoTopics) GetTopicByThread(ctx context.Context, db *gorm.DB, chatID int64, topicID int) (*domain.Topic, error) {
	return repo.GetTopicByThread(ctx, db, chatID, topicID)
}

// PutTopic proxies repo.PutTopic.
func (RepoTopics) PutTopic(ctx context.Context, db *gorm.DB, t *domain.Topic) error {
	return repo.PutTopic(ctx, db, t)
}

// UpdateTopicLabel proxies repo.UpdateTopicLabel.
func (RepoTopics) UpdateTopicLabel(ctx context.Context, db *gorm.DB, userID int64, category domain.Category, displayName, handle string) error {
	return repo.UpdateTopicLabel(ctx, db, userID, category, displayName, handle)
}
