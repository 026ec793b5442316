// Package services – TopicDirectory
//
// TopicDirectory maps end-users to forum topics in the staff chat. Both
// directions are functions: a user owns at most one live topic and a topic
// belongs to at most one user.
//
// Creation and renaming are serialized per user with a keyed mutex, so any
// number of concurrent first contacts from the same user produce exactly one
// transport-side topic. The transport is always called before the store is
// written; a transport failure therefore leaves no mapping behind.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/forumdesk/internal/domain"
	"github.com/tbourn/forumdesk/internal/settings"
)

const (
	defaultTopicNameRunes = 128
	noHandlePlaceholder   = "(no username)"
)

// TopicDirectory resolves, creates and relabels user topics.
type TopicDirectory struct {
	DB        *gorm.DB
	Repo      TopicRepo
	Transport Transport
	Settings  SettingsSource
	Log       zerolog.Logger

	// MaxNameRunes caps topic titles; the platform limit is 128.
	MaxNameRunes int

	locks keyedMutex
}

// NewTopicDirectory constructs a TopicDirectory with the platform name limit.
func NewTopicDirectory(db *gorm.DB, r TopicRepo, t Transport, s SettingsSource, log zerolog.Logger) *TopicDirectory {
	return &TopicDirectory{
		DB:           db,
		Repo:         r,
		Transport:    t,
		Settings:     s,
		Log:          log.With().Str("component", "topics").Logger(),
		MaxNameRunes: defaultTopicNameRunes,
	}
}

// ResolveOrCreate returns the topic of user in the staff chat, creating it
// under category when missing. An existing topic filed under another category
// is renamed; the returned id never changes in that case.
func (d *TopicDirectory) ResolveOrCreate(ctx context.Context, user domain.User, category domain.Category) (int, error) {
	tr := otel.Tracer("services/TopicDirectory")
	ctx, span := tr.Start(ctx, "ResolveOrCreate",
		trace.WithAttributes(
			attribute.Int64("user.id", user.ID),
			attribute.String("category", string(category)),
		),
	)
	defer span.End()

	snap := d.Settings.Snapshot()
	if snap.TargetChat == 0 {
		return 0, ErrNoTargetChat
	}

	unlock := d.locks.Lock(user.ID)
	defer unlock()

	existing, err := d.Repo.GetTopicByUser(ctx, d.DB, user.ID)
	switch {
	case err == nil && existing.ChatID == snap.TargetChat:
		return d.refresh(ctx, snap, existing, user, category)
	case err == nil:
		// Left behind in a previous staff chat; a new topic replaces it.
		d.Log.Info().Int64("user_id", user.ID).Int64("old_chat", existing.ChatID).Msg("topic belongs to another chat, recreating")
	case !errors.Is(err, ErrNotFound):
		span.RecordError(err)
		return 0, fmt.Errorf("lookup topic: %w", err)
	}

	name := d.TopicName(snap, user, category)
	topicID, err := d.Transport.CreateTopic(ctx, snap.TargetChat, name)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%w: create topic: %w", ErrTransport, err)
	}

	t := &domain.Topic{
		UserID:      user.ID,
		ChatID:      snap.TargetChat,
		TopicID:     topicID,
		Category:    category,
		DisplayName: user.DisplayName,
		Handle:      user.Handle,
	}
	if err := d.Repo.PutTopic(ctx, d.DB, t); err != nil {
		span.RecordError(err)
		d.Log.Error().Err(err).Int64("user_id", user.ID).Int("topic_id", topicID).Msg("topic created but not stored")
		return 0, fmt.Errorf("store topic: %w", err)
	}
	topicsCreated.Inc()
	d.Log.Info().Int64("user_id", user.ID).Int("topic_id", topicID).Str("category", string(category)).Msg("topic created")
	return topicID, nil
}

// refresh brings an existing topic's title in line with category and the
// user's current profile. A failed rename is fatal only when the category
// changed; a stale display name is retried on the next message.
func (d *TopicDirectory) refresh(ctx context.Context, snap *settings.Snapshot, t *domain.Topic, user domain.User, category domain.Category) (int, error) {
	recategorized := t.Category != category
	if !recategorized && t.DisplayName == user.DisplayName && t.Handle == user.Handle {
		return t.TopicID, nil
	}
	if name := d.TopicName(snap, user, category); name != d.TopicName(snap, t.Owner(), t.Category) {
		if err := d.Transport.RenameTopic(ctx, t.ChatID, t.TopicID, name); err != nil {
			if recategorized {
				return 0, fmt.Errorf("%w: rename topic: %w", ErrTransport, err)
			}
			d.Log.Warn().Err(err).Int64("user_id", user.ID).Int("topic_id", t.TopicID).Msg("rename topic after profile change")
			return t.TopicID, nil
		}
	}
	if err := d.Repo.UpdateTopicLabel(ctx, d.DB, user.ID, category, user.DisplayName, user.Handle); err != nil {
		return 0, fmt.Errorf("update topic: %w", err)
	}
	return t.TopicID, nil
}

// LookupUserForTopic returns the owner of topicID in the staff chat.
func (d *TopicDirectory) LookupUserForTopic(ctx context.Context, topicID int) (int64, bool, error) {
	tr := otel.Tracer("services/TopicDirectory")
	ctx, span := tr.Start(ctx, "LookupUserForTopic",
		trace.WithAttributes(attribute.Int("topic.id", topicID)),
	)
	defer span.End()

	t, err := d.Repo.GetTopicByThread(ctx, d.DB, d.Settings.Snapshot().TargetChat, topicID)
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return 0, false, err
	}
	return t.UserID, true, nil
}

// Topic returns the stored topic of userID, or ErrNotFound.
func (d *TopicDirectory) Topic(ctx context.Context, userID int64) (*domain.Topic, error) {
	return d.Repo.GetTopicByUser(ctx, d.DB, userID)
}

// Relabel renames userID's topic to category, typically a status marker.
// A user without a topic is not an error.
func (d *TopicDirectory) Relabel(ctx context.Context, userID int64, category domain.Category) error {
	tr := otel.Tracer("services/TopicDirectory")
	ctx, span := tr.Start(ctx, "Relabel",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.String("category", string(category)),
		),
	)
	defer span.End()

	unlock := d.locks.Lock(userID)
	defer unlock()

	t, err := d.Repo.GetTopicByUser(ctx, d.DB, userID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup topic: %w", err)
	}
	if t.Category == category {
		return nil
	}
	name := d.TopicName(d.Settings.Snapshot(), t.Owner(), category)
	if err := d.Transport.RenameTopic(ctx, t.ChatID, t.TopicID, name); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: rename topic: %w", ErrTransport, err)
	}
	return d.Repo.UpdateTopicLabel(ctx, d.DB, userID, category, t.DisplayName, t.Handle)
}

// TopicName renders "[marker] Display Name @handle", using a placeholder when
// the user has no handle. The result is NFC-normalised and clipped.
func (d *TopicDirectory) TopicName(snap *settings.Snapshot, user domain.User, category domain.Category) string {
	handle := noHandlePlaceholder
	if h := strings.TrimPrefix(strings.TrimSpace(user.Handle), "@"); h != "" {
		handle = "@" + h
	}
	display := strings.Join(strings.Fields(user.DisplayName), " ")

	parts := []string{"[" + snap.Marker(category) + "]"}
	if display != "" {
		parts = append(parts, display)
	}
	parts = append(parts, handle)
	return clipRunes(norm.NFC.String(strings.Join(parts, " ")), d.maxNameRunes())
}

func (d *TopicDirectory) maxNameRunes() int {
	if d.MaxNameRunes > 0 {
		return d.MaxNameRunes
	}
	return defaultTopicNameRunes
}

func clipRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
