package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/forumdesk/internal/domain"
)

func TestSessionManager_BeginGetClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if s, err := f.sessions.Get(ctx, 1, 1); s != nil || err != nil {
		t.Fatalf("Get on empty = %+v, %v", s, err)
	}
	if err := f.sessions.Begin(ctx, 1, 1, domain.CategoryReward); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	s, err := f.sessions.Get(ctx, 1, 1)
	if err != nil || s == nil || s.Flow != domain.FlowRequest || s.Category != domain.CategoryReward {
		t.Fatalf("Get = %+v, %v", s, err)
	}
	if s.Data["type"] != "reward" || s.BotID != testBotID {
		t.Fatalf("unexpected session payload: %+v", s)
	}
	if !f.sessions.Tracked.Contains(s.Key()) {
		t.Fatalf("session not tracked")
	}

	existed, err := f.sessions.Clear(ctx, 1, 1)
	if err != nil || !existed || f.sessions.Tracked.Len() != 0 {
		t.Fatalf("Clear = %v, %v (tracked %d)", existed, err, f.sessions.Tracked.Len())
	}
}

func TestSessionManager_TouchMissingUntracks(t *testing.T) {
	f := newFixture(t)
	k := f.sessions.Key(3, 3)
	f.sessions.Tracked.Add(k)
	if err := f.sessions.Touch(context.Background(), k); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Touch = %v", err)
	}
	if f.sessions.Tracked.Contains(k) {
		t.Fatalf("missing session still tracked")
	}
}

func TestCooldown_OnePerWindow(t *testing.T) {
	c, err := NewCooldown(0)
	if err != nil {
		t.Fatalf("NewCooldown: %v", err)
	}
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	w := time.Minute

	if !c.Allow(1, t0, w) {
		t.Fatalf("first confirmation denied")
	}
	if c.Allow(1, t0.Add(59*time.Second), w) {
		t.Fatalf("second confirmation inside window allowed")
	}
	if !c.Allow(2, t0.Add(time.Second), w) {
		t.Fatalf("other user affected")
	}
	if !c.Allow(1, t0.Add(time.Minute), w) {
		t.Fatalf("confirmation after window denied")
	}
	c.Reset(1)
	if !c.Allow(1, t0.Add(time.Minute+time.Second), w) {
		t.Fatalf("Reset ignored")
	}
	if !c.Allow(3, t0, 0) || !c.Allow(3, t0, 0) {
		t.Fatalf("zero window must always allow")
	}
}

func TestKeyedMutex_SerializesPerKey(t *testing.T) {
	var k keyedMutex
	unlockA := k.Lock(1)
	acquired := make(chan struct{})
	go func() {
		u := k.Lock(1)
		u()
		close(acquired)
	}()
	// A different key is independent.
	unlockB := k.Lock(2)
	unlockB()

	select {
	case <-acquired:
		t.Fatalf("same key acquired twice")
	case <-time.After(20 * time.Millisecond):
	}
	unlockA()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("waiter never acquired")
	}
	if k.size() != 0 {
		t.Fatalf("entries leaked: %d", k.size())
	}
}
