package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/forumdesk/internal/domain"
)

func TestTopics_PutGetAndLookupByThread(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, &domain.Topic{})

	if _, err := GetTopicByUser(ctx, db, 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	in := &domain.Topic{UserID: 7, ChatID: -100, TopicID: 55, Category: domain.CategoryReport, DisplayName: "Ann", Handle: "ann"}
	if err := PutTopic(ctx, db, in); err != nil {
		t.Fatalf("PutTopic: %v", err)
	}

	got, err := GetTopicByUser(ctx, db, 7)
	if err != nil {
		t.Fatalf("GetTopicByUser: %v", err)
	}
	if got.TopicID != 55 || got.ChatID != -100 || got.Category != domain.CategoryReport {
		t.Fatalf("unexpected topic: %+v", got)
	}

	byThread, err := GetTopicByThread(ctx, db, -100, 55)
	if err != nil || byThread.UserID != 7 {
		t.Fatalf("GetTopicByThread = %+v, %v", byThread, err)
	}
	if _, err := GetTopicByThread(ctx, db, -200, 55); !errors.Is(err, ErrNotFound) {
		t.Fatalf("thread in another chat must not match, got %v", err)
	}
}

func TestPutTopic_ReplacesPreviousTopicOfUser(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, &domain.Topic{})

	_ = PutTopic(ctx, db, &domain.Topic{UserID: 1, ChatID: -100, TopicID: 3, Category: domain.CategoryOther})
	if err := PutTopic(ctx, db, &domain.Topic{UserID: 1, ChatID: -200, TopicID: 4, Category: domain.CategoryEvent}); err != nil {
		t.Fatalf("PutTopic replace: %v", err)
	}

	got, _ := GetTopicByUser(ctx, db, 1)
	if got.ChatID != -200 || got.TopicID != 4 || got.Category != domain.CategoryEvent {
		t.Fatalf("topic not replaced: %+v", got)
	}
	if n, _ := CountTopics(ctx, db); n != 1 {
		t.Fatalf("expected one topic row, got %d", n)
	}
}

func TestPutTopic_ThreadOwnedByAnotherUserFails(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, &domain.Topic{})

	_ = PutTopic(ctx, db, &domain.Topic{UserID: 1, ChatID: -100, TopicID: 3, Category: domain.CategoryOther})
	if err := PutTopic(ctx, db, &domain.Topic{UserID: 2, ChatID: -100, TopicID: 3, Category: domain.CategoryOther}); err == nil {
		t.Fatalf("expected unique violation for shared thread")
	}
}

func TestUpdateTopicLabel(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, &domain.Topic{})

	if err := UpdateTopicLabel(ctx, db, 9, domain.CategoryBanned, "X", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing topic, got %v", err)
	}

	_ = PutTopic(ctx, db, &domain.Topic{UserID: 9, ChatID: -1, TopicID: 2, Category: domain.CategoryStaff, DisplayName: "Old"})
	if err := UpdateTopicLabel(ctx, db, 9, domain.CategoryBanned, "New Name", "nn"); err != nil {
		t.Fatalf("UpdateTopicLabel: %v", err)
	}
	got, _ := GetTopicByUser(ctx, db, 9)
	if got.Category != domain.CategoryBanned || got.DisplayName != "New Name" || got.Handle != "nn" {
		t.Fatalf("label not updated: %+v", got)
	}
}
