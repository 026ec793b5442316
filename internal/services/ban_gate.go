// Package services – BanGate
//
// BanGate admits or silently drops inbound traffic from banned users. It keeps
// an in-memory map of active bans (user id -> ban end, Unix ms) that is fully
// reloaded once it is older than TTL; concurrent reloads collapse into one via
// singleflight. A user missing from the map is checked against the store with
// a single-row read, so bans written by another process take effect at once.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/tbourn/forumdesk/internal/domain"
	"github.com/tbourn/forumdesk/internal/repo"
)

// DefaultBanCacheTTL is how long a loaded ban list is trusted.
const DefaultBanCacheTTL = 60 * time.Second

// BanGate is safe for concurrent use.
type BanGate struct {
	DB  *gorm.DB
	TTL time.Duration
	Log zerolog.Logger

	mu          sync.RWMutex
	cache       map[int64]int64
	lastRefresh time.Time

	group singleflight.Group
}

// NewBanGate returns a gate whose first Admit loads the ban list.
func NewBanGate(db *gorm.DB, ttl time.Duration, log zerolog.Logger) *BanGate {
	if ttl <= 0 {
		ttl = DefaultBanCacheTTL
	}
	return &BanGate{
		DB:    db,
		TTL:   ttl,
		Log:   log.With().Str("component", "ban_gate").Logger(),
		cache: map[int64]int64{},
	}
}

// Admit reports whether traffic from userID may pass at now. Store failures
// are returned; the caller decides whether to drop the event.
func (g *BanGate) Admit(ctx context.Context, userID int64, now time.Time) (bool, error) {
	tr := otel.Tracer("services/BanGate")
	ctx, span := tr.Start(ctx, "Admit",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	if g.stale(now) {
		if err := g.refresh(ctx, now); err != nil {
			span.RecordError(err)
			return false, err
		}
	}

	g.mu.RLock()
	until, cached := g.cache[userID]
	g.mu.RUnlock()
	if cached && now.UnixMilli() < until {
		return false, nil
	}

	ban, err := repo.GetBan(ctx, g.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("read ban: %w", err)
	}
	if ban.ActiveAt(now) {
		g.remember(userID, ban.BanUntil)
		return false, nil
	}
	return true, nil
}

func (g *BanGate) stale(now time.Time) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastRefresh.IsZero() || now.Sub(g.lastRefresh) > g.TTL
}

// refresh reloads the active ban list. Callers arriving while a reload is in
// flight wait for it instead of starting their own.
func (g *BanGate) refresh(ctx context.Context, now time.Time) error {
	_, err, _ := g.group.Do("refresh", func() (any, error) {
		if !g.stale(now) {
			return nil, nil
		}
		bans, err := repo.ListActiveBans(ctx, g.DB, now)
		if err != nil {
			banRefreshes.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("load bans: %w", err)
		}
		next := make(map[int64]int64, len(bans))
		for _, b := range bans {
			next[b.UserID] = b.BanUntil
		}
		g.mu.Lock()
		g.cache = next
		g.lastRefresh = now
		g.mu.Unlock()
		banRefreshes.WithLabelValues("ok").Inc()
		g.Log.Debug().Int("active", len(next)).Msg("ban cache refreshed")
		return nil, nil
	})
	return err
}

func (g *BanGate) remember(userID, until int64) {
	g.mu.Lock()
	g.cache[userID] = until
	g.mu.Unlock()
}

// Remember records a freshly written ban so it applies before the next reload.
func (g *BanGate) Remember(b domain.Ban) { g.remember(b.UserID, b.BanUntil) }

// Forget drops userID from the cache after an unban.
func (g *BanGate) Forget(userID int64) {
	g.mu.Lock()
	delete(g.cache, userID)
	g.mu.Unlock()
}

// ResolveEffectiveSubject names the user an event is really about: the
// original sender of a forwarded message, else the original sender of the
// forwarded message being replied to, else the sender.
func (g *BanGate) ResolveEffectiveSubject(msg domain.Message) int64 {
	return EffectiveSubject(msg)
}

// EffectiveSubject is ResolveEffectiveSubject without a gate.
func EffectiveSubject(msg domain.Message) int64 {
	if msg.ForwardFrom != nil && msg.ForwardFrom.ID != 0 {
		return msg.ForwardFrom.ID
	}
	if msg.ReplyTo != nil && msg.ReplyTo.ForwardFrom != nil && msg.ReplyTo.ForwardFrom.ID != 0 {
		return msg.ReplyTo.ForwardFrom.ID
	}
	return msg.From.ID
}
