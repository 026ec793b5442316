// Package services – Moderation
//
// Moderation is the write path of the ban list. Staff ban and unban users
// from the forum chat; the admin API does the same on behalf of SystemActor.
// Who may ban whom is decided by the ban_policy setting.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/forumdesk/internal/clock"
	"github.com/tbourn/forumdesk/internal/domain"
	"github.com/tbourn/forumdesk/internal/repo"
)

// SystemActor identifies moderation requests that bypass the ban policy.
const SystemActor int64 = 0

// Moderation bans and unbans users.
type Moderation struct {
	DB        *gorm.DB
	Gate      *BanGate
	Topics    Relabeler
	Transport Transport
	Settings  SettingsSource
	Clock     clock.Clock
	Log       zerolog.Logger
}

// Ban blocks target for d from the current time. d must be positive;
// BanPermanently is the only way to ban without an end.
func (m *Moderation) Ban(ctx context.Context, actorID, target int64, d time.Duration) (*domain.Ban, error) {
	if d <= 0 {
		return nil, fmt.Errorf("%w: ban length must be positive, got %s", ErrInvalidDuration, d)
	}
	return m.ban(ctx, actorID, target, d)
}

// BanPermanently blocks target until the ban is lifted.
func (m *Moderation) BanPermanently(ctx context.Context, actorID, target int64) (*domain.Ban, error) {
	return m.ban(ctx, actorID, target, 0)
}

// ban stores the ban; d == 0 means permanent.
func (m *Moderation) ban(ctx context.Context, actorID, target int64, d time.Duration) (*domain.Ban, error) {
	tr := otel.Tracer("services/Moderation")
	ctx, span := tr.Start(ctx, "Ban",
		trace.WithAttributes(
			attribute.Int64("actor.id", actorID),
			attribute.Int64("user.id", target),
			attribute.String("duration", d.String()),
			attribute.Bool("permanent", d == 0),
		),
	)
	defer span.End()

	snap := m.Settings.Snapshot()
	if err := m.authorize(ctx, actorID, target, true); err != nil {
		span.RecordError(err)
		return nil, err
	}

	now := m.Clock.Now()
	until := time.UnixMilli(domain.PermanentBanUntil)
	if d > 0 {
		until = now.Add(d)
	}
	ban, err := repo.UpsertBan(ctx, m.DB, target, until, now)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("store ban: %w", err)
	}
	m.Gate.Remember(*ban)

	if snap.Multiple() {
		if err := m.Topics.Relabel(ctx, target, domain.CategoryBanned); err != nil {
			m.Log.Warn().Err(err).Int64("user_id", target).Msg("relabel banned topic")
		}
	}
	m.Log.Info().Int64("actor_id", actorID).Int64("user_id", target).Time("until", ban.Until()).Msg("user banned")
	return ban, nil
}

// Unban lifts target's ban. It reports whether a ban existed.
func (m *Moderation) Unban(ctx context.Context, actorID, target int64) (bool, error) {
	tr := otel.Tracer("services/Moderation")
	ctx, span := tr.Start(ctx, "Unban",
		trace.WithAttributes(
			attribute.Int64("actor.id", actorID),
			attribute.Int64("user.id", target),
		),
	)
	defer span.End()

	snap := m.Settings.Snapshot()
	if err := m.authorize(ctx, actorID, target, false); err != nil {
		span.RecordError(err)
		return false, err
	}

	existed, err := repo.DeleteBan(ctx, m.DB, target)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("delete ban: %w", err)
	}
	m.Gate.Forget(target)

	if existed && snap.Multiple() {
		if err := m.Topics.Relabel(ctx, target, domain.CategoryUnbanned); err != nil {
			m.Log.Warn().Err(err).Int64("user_id", target).Msg("relabel unbanned topic")
		}
	}
	m.Log.Info().Int64("actor_id", actorID).Int64("user_id", target).Bool("existed", existed).Msg("user unbanned")
	return existed, nil
}

// authorize applies the ban policy. Target protection only applies to bans.
func (m *Moderation) authorize(ctx context.Context, actorID, target int64, banning bool) error {
	if actorID == SystemActor {
		return nil
	}
	snap := m.Settings.Snapshot()
	if snap.TargetChat == 0 {
		return ErrNoTargetChat
	}
	policy := snap.BanPolicy

	if policy.RequiresActorAdmin() {
		role, err := m.Transport.MemberRole(ctx, snap.TargetChat, actorID)
		if err != nil {
			return fmt.Errorf("%w: actor role: %w", ErrTransport, err)
		}
		if !role.Admin() {
			return fmt.Errorf("%w: actor %d is not an administrator", ErrForbidden, actorID)
		}
	}
	if banning && policy.ProtectsAdmins() {
		role, err := m.Transport.MemberRole(ctx, snap.TargetChat, target)
		if err != nil {
			return fmt.Errorf("%w: target role: %w", ErrTransport, err)
		}
		if role.Admin() {
			return fmt.Errorf("%w: user %d administers the staff chat", ErrForbidden, target)
		}
	}
	return nil
}
