// Package services – MessageRouter
//
// MessageRouter orchestrates every inbound event. User messages pass the ban
// gate, must belong to an open request flow, and are copied into the user's
// topic (or the shared thread in single mode). Staff messages in the forum
// chat are attributed to a user through the topic directory or, for replies,
// through the relay records, filtered by the reply mode, and copied back.
//
// Policy drops (banned sender, unknown topic, reply not allowed) are silent
// and return nil. Store and transport failures are returned wrapped.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/forumdesk/internal/clock"
	"github.com/tbourn/forumdesk/internal/domain"
	"github.com/tbourn/forumdesk/internal/repo"
	"github.com/tbourn/forumdesk/internal/settings"
)

// MessageRouter is safe for concurrent use.
type MessageRouter struct {
	DB         *gorm.DB
	Gate       *BanGate
	Topics     *TopicDirectory
	Sessions   *SessionManager
	Cooldown   *Cooldown
	Moderation *Moderation
	Transport  Transport
	Settings   SettingsSource
	Clock      clock.Clock
	Log        zerolog.Logger

	// BotID is the bot's own user id; its messages are never routed.
	BotID int64
}

func outcome(direction, result string) { eventsTotal.WithLabelValues(direction, result).Inc() }

// admit runs the gate on the effective subject of msg.
func (r *MessageRouter) admit(ctx context.Context, msg domain.Message) (bool, error) {
	subject := r.Gate.ResolveEffectiveSubject(msg)
	ok, err := r.Gate.Admit(ctx, subject, r.Clock.Now())
	if err != nil {
		return false, fmt.Errorf("ban gate: %w", err)
	}
	return ok, nil
}

// HandleUserMessage routes a private message from an end-user to staff.
func (r *MessageRouter) HandleUserMessage(ctx context.Context, msg domain.Message) error {
	tr := otel.Tracer("services/MessageRouter")
	ctx, span := tr.Start(ctx, "HandleUserMessage",
		trace.WithAttributes(
			attribute.Int64("user.id", msg.From.ID),
			attribute.Int("message.id", msg.ID),
		),
	)
	defer span.End()

	if !msg.Private || msg.From.ID == r.BotID {
		outcome("user", "ignored")
		return nil
	}
	ok, err := r.admit(ctx, msg)
	if err != nil {
		outcome("user", "error")
		span.RecordError(err)
		return err
	}
	if !ok {
		outcome("user", "banned")
		return nil
	}

	sess, err := r.Sessions.Get(ctx, msg.ChatID, msg.From.ID)
	if err != nil {
		outcome("user", "error")
		return fmt.Errorf("read session: %w", err)
	}
	if sess == nil || sess.Flow != domain.FlowRequest {
		outcome("user", "no_flow")
		return ErrNotInFlow
	}
	if err := r.Sessions.Touch(ctx, sess.Key()); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Expired between the read and the touch.
			outcome("user", "no_flow")
			return ErrNotInFlow
		}
		outcome("user", "error")
		return fmt.Errorf("touch session: %w", err)
	}

	snap := r.Settings.Snapshot()
	if snap.TargetChat == 0 {
		outcome("user", "error")
		return ErrNoTargetChat
	}

	thread := snap.SingleThread
	if snap.Multiple() {
		thread, err = r.Topics.ResolveOrCreate(ctx, msg.From, sess.Category)
		if err != nil {
			outcome("user", "error")
			span.RecordError(err)
			return err
		}
	}

	copyID, err := r.Transport.CopyMessage(ctx, snap.TargetChat, thread, msg.ChatID, msg.ID)
	if err != nil {
		outcome("user", "error")
		span.RecordError(err)
		return fmt.Errorf("%w: copy to staff: %w", ErrTransport, err)
	}

	rel := &domain.Relay{
		ChatID:    snap.TargetChat,
		MessageID: copyID,
		UserID:    msg.From.ID,
		ThreadID:  thread,
		CreatedAt: r.Clock.Now().UTC(),
	}
	if err := repo.CreateRelay(ctx, r.DB, rel); err != nil {
		r.Log.Warn().Err(err).Int64("user_id", msg.From.ID).Int("message_id", copyID).Msg("record relay")
	}

	if r.Cooldown.Allow(msg.From.ID, r.Clock.Now(), snap.Cooldown) {
		if _, err := r.Transport.SendText(ctx, msg.ChatID, 0, snap.Text(settings.TextConfirmation)); err != nil {
			r.Log.Warn().Err(err).Int64("user_id", msg.From.ID).Msg("send confirmation")
		}
	}
	outcome("user", "forwarded")
	return nil
}

// HandleStaffMessage routes a message written in the staff forum chat back
// to the user it concerns.
func (r *MessageRouter) HandleStaffMessage(ctx context.Context, msg domain.Message) error {
	tr := otel.Tracer("services/MessageRouter")
	ctx, span := tr.Start(ctx, "HandleStaffMessage",
		trace.WithAttributes(
			attribute.Int64("staff.id", msg.From.ID),
			attribute.Int("thread.id", msg.ThreadID),
		),
	)
	defer span.End()

	snap := r.Settings.Snapshot()
	if snap.TargetChat == 0 || msg.ChatID != snap.TargetChat || msg.From.ID == r.BotID {
		outcome("staff", "ignored")
		return nil
	}
	ok, err := r.admit(ctx, msg)
	if err != nil {
		outcome("staff", "error")
		span.RecordError(err)
		return err
	}
	if !ok {
		outcome("staff", "banned")
		return nil
	}

	userID, found, err := r.recipient(ctx, snap, msg)
	if err != nil {
		outcome("staff", "error")
		return err
	}
	if !found {
		outcome("staff", "no_topic")
		return nil
	}
	if snap.ReplyMode == domain.ReplyModeNecessary {
		allowed, err := r.repliesToRelay(ctx, snap, msg, userID)
		if err != nil {
			outcome("staff", "error")
			return err
		}
		if !allowed {
			outcome("staff", "not_reply")
			return nil
		}
	}

	if _, err := r.Transport.CopyMessage(ctx, userID, 0, msg.ChatID, msg.ID); err != nil {
		outcome("staff", "error")
		span.RecordError(err)
		notice := fmt.Sprintf("%s: %v", snap.Text(settings.TextDeliveryFailed), err)
		if _, nerr := r.Transport.SendText(ctx, msg.ChatID, msg.ThreadID, notice); nerr != nil {
			r.Log.Warn().Err(nerr).Int("thread_id", msg.ThreadID).Msg("report delivery failure")
		}
		return fmt.Errorf("%w: copy to user %d: %w", ErrTransport, userID, err)
	}
	outcome("staff", "delivered")
	return nil
}

// recipient finds the user a staff message is addressed to. A reply to a
// relayed message names its author in both modes; in multiple mode the topic
// owner is used otherwise.
func (r *MessageRouter) recipient(ctx context.Context, snap *settings.Snapshot, msg domain.Message) (int64, bool, error) {
	if msg.ReplyTo != nil {
		rel, err := repo.GetRelay(ctx, r.DB, msg.ChatID, msg.ReplyTo.ID)
		switch {
		case err == nil:
			return rel.UserID, true, nil
		case !errors.Is(err, repo.ErrNotFound):
			return 0, false, fmt.Errorf("read relay: %w", err)
		}
	}
	if !snap.Multiple() || msg.ThreadID == 0 {
		return 0, false, nil
	}
	return r.Topics.LookupUserForTopic(ctx, msg.ThreadID)
}

// repliesToRelay reports whether msg replies to a message relayed from userID.
func (r *MessageRouter) repliesToRelay(ctx context.Context, snap *settings.Snapshot, msg domain.Message, userID int64) (bool, error) {
	if msg.ReplyTo == nil {
		return false, nil
	}
	rel, err := repo.GetRelay(ctx, r.DB, msg.ChatID, msg.ReplyTo.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read relay: %w", err)
	}
	if rel.UserID != userID {
		return false, nil
	}
	if snap.Multiple() && rel.ThreadID != msg.ThreadID {
		return false, nil
	}
	return true, nil
}

// BeginRequest opens a request flow for user under category and returns the
// prompt to show. Banned users get an empty prompt and no session.
func (r *MessageRouter) BeginRequest(ctx context.Context, user domain.User, chatID int64, category domain.Category) (string, error) {
	tr := otel.Tracer("services/MessageRouter")
	ctx, span := tr.Start(ctx, "BeginRequest",
		trace.WithAttributes(
			attribute.Int64("user.id", user.ID),
			attribute.String("category", string(category)),
		),
	)
	defer span.End()

	if !category.Selectable() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	ok, err := r.Gate.Admit(ctx, user.ID, r.Clock.Now())
	if err != nil {
		return "", fmt.Errorf("ban gate: %w", err)
	}
	if !ok {
		return "", nil
	}
	if err := r.Sessions.Begin(ctx, chatID, user.ID, category); err != nil {
		return "", err
	}
	return r.Settings.Snapshot().Text(string(category)), nil
}

// Cancel ends user's flow and returns the text to show.
func (r *MessageRouter) Cancel(ctx context.Context, user domain.User, chatID int64) (string, error) {
	if _, err := r.Sessions.Clear(ctx, chatID, user.ID); err != nil {
		return "", err
	}
	// The next request starts with a fresh confirmation window.
	r.Cooldown.Reset(user.ID)
	return r.Settings.Snapshot().Text(settings.TextCancelled), nil
}

// HandleStaffCommand runs "/ban [duration]" or "/unban" issued in the staff
// chat. The target is the owner of the topic, or the author of the relayed
// message being replied to. Results are reported into the thread.
func (r *MessageRouter) HandleStaffCommand(ctx context.Context, msg domain.Message, command, args string) error {
	snap := r.Settings.Snapshot()
	if snap.TargetChat == 0 || msg.ChatID != snap.TargetChat || msg.From.ID == r.BotID {
		return nil
	}
	reply := func(text string) {
		if _, err := r.Transport.SendText(ctx, msg.ChatID, msg.ThreadID, text); err != nil {
			r.Log.Warn().Err(err).Str("command", command).Msg("reply to staff command")
		}
	}

	target, found, err := r.recipient(ctx, snap, msg)
	if err != nil {
		return err
	}
	if !found {
		reply(snap.Text(settings.TextNoTarget))
		return ErrNoTopic
	}

	switch strings.ToLower(command) {
	case "ban":
		var ban *domain.Ban
		if a := strings.TrimSpace(args); a == "" {
			ban, err = r.Moderation.BanPermanently(ctx, msg.From.ID, target)
		} else {
			var d time.Duration
			if d, err = settings.ParseDuration(a); err == nil {
				ban, err = r.Moderation.Ban(ctx, msg.From.ID, target, d)
			}
		}
		if errors.Is(err, ErrInvalidDuration) {
			reply(snap.Text(settings.TextBadDuration))
			return err
		}
		if errors.Is(err, ErrForbidden) {
			reply(snap.Text(settings.TextForbidden))
			return err
		}
		if err != nil {
			return err
		}
		until := "forever"
		if !ban.Permanent() {
			until = ban.Until().Format(time.RFC3339)
		}
		reply(snap.Text(settings.TextBanned) + " " + until)
	case "unban":
		_, err := r.Moderation.Unban(ctx, msg.From.ID, target)
		if errors.Is(err, ErrForbidden) {
			reply(snap.Text(settings.TextForbidden))
			return err
		}
		if err != nil {
			return err
		}
		reply(snap.Text(settings.TextUnbanned))
	default:
		return fmt.Errorf("%w: command %q", ErrUnknownAction, command)
	}
	return nil
}
