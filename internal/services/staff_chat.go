package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/forumdesk/internal/settings"
)

// StaffChatBinder makes the chat a command was issued in the staff forum.
type StaffChatBinder struct {
	Settings  SettingsWriter
	Transport Transport
	Log       zerolog.Logger
}

// Bind stores chatID as the target chat on behalf of actorID, who must
// administer chatID. It reports false when chatID already was the target.
func (b *StaffChatBinder) Bind(ctx context.Context, chatID, actorID int64) (bool, error) {
	tr := otel.Tracer("services/StaffChatBinder")
	ctx, span := tr.Start(ctx, "Bind",
		trace.WithAttributes(
			attribute.Int64("chat.id", chatID),
			attribute.Int64("actor.id", actorID),
		),
	)
	defer span.End()

	prev := b.Settings.Snapshot().TargetChat
	if prev == chatID {
		return false, nil
	}
	role, err := b.Transport.MemberRole(ctx, chatID, actorID)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("%w: actor role: %w", ErrTransport, err)
	}
	if !role.Admin() {
		return false, fmt.Errorf("%w: actor %d does not administer chat %d", ErrForbidden, actorID, chatID)
	}
	if _, err := b.Settings.Set(ctx, settings.KeyTargetChat, strconv.FormatInt(chatID, 10)); err != nil {
		span.RecordError(err)
		return false, err
	}
	b.Log.Info().Int64("chat_id", chatID).Int64("previous", prev).Int64("actor_id", actorID).Msg("staff chat bound")
	return true, nil
}
