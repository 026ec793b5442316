// Package telegram adapts the Telegram Bot API (gopkg.in/telebot.v4) to the
// desk core: Transport implements services.Transport with paced outbound
// calls, and Bot turns updates into router calls.
package telegram

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/tbourn/forumdesk/internal/domain"
	"github.com/tbourn/forumdesk/internal/services"
)

var (
	_ API                = (*tele.Bot)(nil)
	_ services.Transport = (*Transport)(nil)
)

// API is the subset of *tele.Bot the transport uses.
type API interface {
	CreateTopic(chat *tele.Chat, topic *tele.Topic) (*tele.Topic, error)
	EditTopic(chat *tele.Chat, topic *tele.Topic) error
	Copy(to tele.Recipient, msg tele.Editable, opts ...interface{}) (*tele.Message, error)
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
}

// Transport paces every call through a token bucket so bursts stay under the
// platform's flood limits.
type Transport struct {
	api     API
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewTransport wraps api; rps and burst configure the outbound pacing.
func NewTransport(api API, rps float64, burst int, log zerolog.Logger) *Transport {
	if burst < 1 {
		burst = 1
	}
	return &Transport{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log.With().Str("component", "transport").Logger(),
	}
}

func (t *Transport) wait(ctx context.Context, op string) (context.Context, trace.Span, error) {
	ctx, span := otel.Tracer("telegram/Transport").Start(ctx, op)
	if err := t.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.End()
		return ctx, nil, err
	}
	return ctx, span, nil
}

// CreateTopic opens a forum topic and returns its thread id.
func (t *Transport) CreateTopic(ctx context.Context, chatID int64, name string) (int, error) {
	_, span, err := t.wait(ctx, "CreateTopic")
	if err != nil {
		return 0, err
	}
	defer span.End()
	span.SetAttributes(attribute.Int64("chat.id", chatID))

	topic, err := t.api.CreateTopic(&tele.Chat{ID: chatID}, &tele.Topic{Name: name})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return topic.ThreadID, nil
}

// RenameTopic changes a topic title.
func (t *Transport) RenameTopic(ctx context.Context, chatID int64, topicID int, name string) error {
	_, span, err := t.wait(ctx, "RenameTopic")
	if err != nil {
		return err
	}
	defer span.End()
	span.SetAttributes(attribute.Int64("chat.id", chatID), attribute.Int("topic.id", topicID))

	if err := t.api.EditTopic(&tele.Chat{ID: chatID}, &tele.Topic{ThreadID: topicID, Name: name}); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// CopyMessage copies a message without the "forwarded from" header.
func (t *Transport) CopyMessage(ctx context.Context, toChat int64, toThread int, fromChat int64, messageID int) (int, error) {
	_, span, err := t.wait(ctx, "CopyMessage")
	if err != nil {
		return 0, err
	}
	defer span.End()
	span.SetAttributes(attribute.Int64("chat.to", toChat), attribute.Int("thread.to", toThread))

	src := tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: fromChat}
	msg, err := t.api.Copy(&tele.Chat{ID: toChat}, src, &tele.SendOptions{ThreadID: toThread})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return msg.ID, nil
}

// SendText posts plain text, optionally inside a thread.
func (t *Transport) SendText(ctx context.Context, chatID int64, threadID int, text string) (int, error) {
	_, span, err := t.wait(ctx, "SendText")
	if err != nil {
		return 0, err
	}
	defer span.End()

	msg, err := t.api.Send(&tele.Chat{ID: chatID}, text, &tele.SendOptions{ThreadID: threadID})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return msg.ID, nil
}

// MemberRole looks up userID's status in chatID.
func (t *Transport) MemberRole(ctx context.Context, chatID, userID int64) (domain.MemberRole, error) {
	_, span, err := t.wait(ctx, "MemberRole")
	if err != nil {
		return "", err
	}
	defer span.End()

	m, err := t.api.ChatMemberOf(&tele.Chat{ID: chatID}, &tele.User{ID: userID})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return roleOf(m.Role), nil
}

// Send delivers arbitrary content (e.g. a message with a keyboard). It is
// paced like every other call.
func (t *Transport) Send(ctx context.Context, chatID int64, what interface{}, opts ...interface{}) error {
	_, span, err := t.wait(ctx, "Send")
	if err != nil {
		return err
	}
	defer span.End()
	if _, err := t.api.Send(&tele.Chat{ID: chatID}, what, opts...); err != nil {
		span.RecordError(err)
		return fmt.Errorf("send to %d: %w", chatID, err)
	}
	return nil
}
