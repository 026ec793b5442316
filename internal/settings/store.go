// Package settings is the runtime configuration store of the desk: a
// key-value table in SQLite with a typed, atomically swapped Snapshot that
// readers consult on every event.
//
// Writes go through Set, which validates at the boundary; a rejected value
// never replaces the stored one. The snapshot is rebuilt after every write and
// periodically by Run so that edits made by another process become visible.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/forumdesk/internal/clock"
	"github.com/tbourn/forumdesk/internal/repo"
)

var tracer = otel.Tracer("settings")

// Store is safe for concurrent use.
type Store struct {
	DB    *gorm.DB
	Log   zerolog.Logger
	Clock clock.Clock

	snap   atomic.Pointer[Snapshot]
	reload sync.Mutex
}

// New returns a Store serving Defaults until Reload is called.
func New(db *gorm.DB, log zerolog.Logger, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.Real()
	}
	s := &Store{
		DB:    db,
		Log:   log.With().Str("component", "settings").Logger(),
		Clock: clk,
	}
	s.snap.Store(Defaults())
	return s
}

// Snapshot returns the current typed view. Callers must not mutate it.
func (s *Store) Snapshot() *Snapshot { return s.snap.Load() }

// Reload rebuilds the snapshot from the table.
func (s *Store) Reload(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Reload")
	defer span.End()

	s.reload.Lock()
	defer s.reload.Unlock()

	rows, err := repo.ListSettings(ctx, s.DB)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load settings: %w", err)
	}
	m := make(map[string]string, len(rows))
	for _, r := range rows {
		m[r.Key] = r.Value
	}
	snap, bad := build(m)
	for _, e := range bad {
		s.Log.Warn().Err(e).Msg("stored setting ignored")
	}
	s.snap.Store(snap)
	return nil
}

// Get returns the stored value of key. ok is false when nothing is stored.
func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	row, err := repo.GetSetting(ctx, s.DB, strings.TrimSpace(key))
	if errors.Is(err, repo.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

// All returns every stored setting.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	rows, err := repo.ListSettings(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// Set validates and stores value under key, then refreshes the snapshot.
// It returns the normalised value that was stored.
func (s *Store) Set(ctx context.Context, key, value string) (string, error) {
	ctx, span := tracer.Start(ctx, "Set")
	defer span.End()
	span.SetAttributes(attribute.String("setting.key", key))

	norm, err := Normalize(key, value)
	if err != nil {
		return "", err
	}
	key = strings.TrimSpace(key)
	if err := repo.PutSetting(ctx, s.DB, key, norm); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("store setting %s: %w", key, err)
	}
	s.Log.Info().Str("key", key).Str("value", norm).Msg("setting updated")
	return norm, s.Reload(ctx)
}

// Run reloads the snapshot every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	t := s.Clock.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.Reload(ctx); err != nil && ctx.Err() == nil {
				s.Log.Error().Err(err).Msg("settings refresh failed")
			}
		}
	}
}
