// Package services – sessions
//
// SessionManager owns the per-user flow state (which request the user is
// writing, and when they last did anything). Every session it opens is added
// to a TrackedSet, the shared registry the timeout sweeper walks.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/tbourn/forumdesk/internal/clock"
	"github.com/tbourn/forumdesk/internal/domain"
	"github.com/tbourn/forumdesk/internal/repo"
)

// TrackedSet is a mutex-guarded set of session keys.
type TrackedSet struct {
	mu   sync.Mutex
	keys map[domain.SessionKey]struct{}
}

// NewTrackedSet returns an empty set.
func NewTrackedSet() *TrackedSet {
	return &TrackedSet{keys: map[domain.SessionKey]struct{}{}}
}

// Add inserts k.
func (s *TrackedSet) Add(k domain.SessionKey) {
	s.mu.Lock()
	s.keys[k] = struct{}{}
	s.mu.Unlock()
}

// Remove deletes k.
func (s *TrackedSet) Remove(k domain.SessionKey) {
	s.mu.Lock()
	delete(s.keys, k)
	s.mu.Unlock()
}

// Contains reports whether k is tracked.
func (s *TrackedSet) Contains(k domain.SessionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[k]
	return ok
}

// Len returns the number of tracked keys.
func (s *TrackedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Keys returns a copy of the tracked keys.
func (s *TrackedSet) Keys() []domain.SessionKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SessionKey, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	return out
}

// SessionManager opens, reads, touches and clears flow sessions.
type SessionManager struct {
	DB      *gorm.DB
	Clock   clock.Clock
	BotID   int64
	Tracked *TrackedSet
}

// NewSessionManager wires a manager for botID.
func NewSessionManager(db *gorm.DB, clk clock.Clock, botID int64, tracked *TrackedSet) *SessionManager {
	if clk == nil {
		clk = clock.Real()
	}
	if tracked == nil {
		tracked = NewTrackedSet()
	}
	return &SessionManager{DB: db, Clock: clk, BotID: botID, Tracked: tracked}
}

// Key builds the session key of userID talking in chatID.
func (m *SessionManager) Key(chatID, userID int64) domain.SessionKey {
	return domain.SessionKey{BotID: m.BotID, ChatID: chatID, UserID: userID}
}

// Begin puts the user into the request flow for category, replacing any
// previous session.
func (m *SessionManager) Begin(ctx context.Context, chatID, userID int64, category domain.Category) error {
	k := m.Key(chatID, userID)
	s := &domain.Session{
		BotID:        k.BotID,
		ChatID:       k.ChatID,
		UserID:       k.UserID,
		Flow:         domain.FlowRequest,
		Category:     category,
		Data:         map[string]string{"type": string(category)},
		LastActivity: m.Clock.Now().UnixMilli(),
	}
	if err := repo.PutSession(ctx, m.DB, s); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	m.Tracked.Add(k)
	return nil
}

// Get returns the session of userID in chatID, or nil when there is none.
func (m *SessionManager) Get(ctx context.Context, chatID, userID int64) (*domain.Session, error) {
	s, err := repo.GetSession(ctx, m.DB, m.Key(chatID, userID))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	return s, err
}

// Touch records activity on k now. A session that vanished meanwhile is
// reported as ErrNotFound and untracked.
func (m *SessionManager) Touch(ctx context.Context, k domain.SessionKey) error {
	err := repo.TouchSession(ctx, m.DB, k, m.Clock.Now())
	if errors.Is(err, repo.ErrNotFound) {
		m.Tracked.Remove(k)
	}
	return err
}

// Clear ends the session of userID in chatID. It reports whether one existed.
func (m *SessionManager) Clear(ctx context.Context, chatID, userID int64) (bool, error) {
	k := m.Key(chatID, userID)
	existed, err := repo.DeleteSession(ctx, m.DB, k)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	m.Tracked.Remove(k)
	return existed, nil
}
