// Package services – SessionTimeoutSweeper
//
// The sweeper is an owned background task: Start launches the loop, Stop
// cancels it and waits for it to exit. Every Interval it walks the tracked
// session keys and clears sessions idle for at least the configured
// state_timeout, relabelling the user's topic as expired in multiple mode.
// One user's failure is logged and never stops the pass.
//
// The sweeper also prunes relay records older than RelayRetention, at most
// once per hour.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/forumdesk/internal/clock"
	"github.com/tbourn/forumdesk/internal/domain"
	"github.com/tbourn/forumdesk/internal/repo"
)

const (
	// DefaultSweepInterval is the pass period when none is configured.
	DefaultSweepInterval = 10 * time.Second

	relayPruneEvery = time.Hour
)

// ErrSweeperRunning is returned by Start when the loop is already running.
var ErrSweeperRunning = errors.New("sweeper already running")

// Relabeler renames a user's topic to a status marker.
type Relabeler interface {
	Relabel(ctx context.Context, userID int64, category domain.Category) error
}

// SessionTimeoutSweeper expires idle sessions.
type SessionTimeoutSweeper struct {
	DB             *gorm.DB
	Clock          clock.Clock
	Tracked        *TrackedSet
	Topics         Relabeler
	Settings       SettingsSource
	Interval       time.Duration
	RelayRetention time.Duration
	Log            zerolog.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	lastPrune time.Time
}

// NewSessionTimeoutSweeper wires a sweeper; call Start to run it.
func NewSessionTimeoutSweeper(db *gorm.DB, clk clock.Clock, tracked *TrackedSet, topics Relabeler, s SettingsSource, interval time.Duration, log zerolog.Logger) *SessionTimeoutSweeper {
	if clk == nil {
		clk = clock.Real()
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &SessionTimeoutSweeper{
		DB:       db,
		Clock:    clk,
		Tracked:  tracked,
		Topics:   topics,
		Settings: s,
		Interval: interval,
		Log:      log.With().Str("component", "sweeper").Logger(),
	}
}

// Start seeds the tracked set from the store and launches the loop. The loop
// stops when ctx is cancelled or Stop is called.
func (w *SessionTimeoutSweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		return ErrSweeperRunning
	}

	keys, err := repo.ListSessionKeys(ctx, w.DB)
	if err != nil {
		return err
	}
	for _, k := range keys {
		w.Tracked.Add(k)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	ticker := w.Clock.NewTicker(w.Interval)

	go func(done chan struct{}) {
		defer close(done)
		defer ticker.Stop()
		w.Log.Info().Dur("interval", w.Interval).Int("tracked", len(keys)).Msg("sweeper started")
		for {
			select {
			case <-ctx.Done():
				w.Log.Info().Msg("sweeper stopped")
				return
			case <-ticker.C:
				if _, err := w.SweepOnce(ctx); err != nil && ctx.Err() == nil {
					w.Log.Error().Err(err).Msg("sweep failed")
				}
			}
		}
	}(w.done)
	return nil
}

// Stop cancels the loop and waits for it to exit. It is a no-op when the
// sweeper is not running.
func (w *SessionTimeoutSweeper) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// SweepOnce runs a single pass and returns how many sessions expired.
func (w *SessionTimeoutSweeper) SweepOnce(ctx context.Context) (int, error) {
	tr := otel.Tracer("services/SessionTimeoutSweeper")
	ctx, span := tr.Start(ctx, "SweepOnce")
	defer span.End()

	start := time.Now()
	defer func() { sweepDuration.Observe(time.Since(start).Seconds()) }()

	snap := w.Settings.Snapshot()
	now := w.Clock.Now()
	expired := 0

	for _, k := range w.Tracked.Keys() {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		log := w.Log.With().Int64("user_id", k.UserID).Int64("chat_id", k.ChatID).Logger()

		s, err := repo.GetSession(ctx, w.DB, k)
		if errors.Is(err, repo.ErrNotFound) {
			w.Tracked.Remove(k)
			continue
		}
		if err != nil {
			log.Error().Err(err).Msg("read session")
			continue
		}
		if s.IdleFor(now) < snap.StateTimeout {
			continue
		}

		// Untrack first: a Begin racing with the delete re-adds the key after
		// this point and keeps it.
		w.Tracked.Remove(k)
		removed, err := repo.DeleteIdleSession(ctx, w.DB, k, now.Add(-snap.StateTimeout))
		if err != nil || !removed {
			w.Tracked.Add(k)
			if err != nil {
				log.Error().Err(err).Msg("clear expired session")
			}
			continue
		}
		expired++
		sessionsExpired.Inc()

		if snap.Multiple() {
			if err := w.Topics.Relabel(ctx, k.UserID, domain.CategoryExpired); err != nil {
				log.Warn().Err(err).Msg("relabel expired topic")
			}
		}
		log.Info().Dur("idle", s.IdleFor(now)).Msg("session expired")
	}

	w.pruneRelays(ctx, now)
	span.SetAttributes(attribute.Int("sessions.expired", expired))
	return expired, nil
}

func (w *SessionTimeoutSweeper) pruneRelays(ctx context.Context, now time.Time) {
	if w.RelayRetention <= 0 {
		return
	}
	w.mu.Lock()
	due := now.Sub(w.lastPrune) >= relayPruneEvery
	if due {
		w.lastPrune = now
	}
	w.mu.Unlock()
	if !due {
		return
	}
	n, err := repo.PruneRelays(ctx, w.DB, now.Add(-w.RelayRetention))
	if err != nil {
		w.Log.Warn().Err(err).Msg("prune relays")
		return
	}
	if n > 0 {
		w.Log.Info().Int64("removed", n).Msg("relays pruned")
	}
}
