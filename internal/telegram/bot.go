package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	tele "gopkg.in/telebot.v4"

	"github.com/tbourn/forumdesk/internal/domain"
	"github.com/tbourn/forumdesk/internal/services"
	"github.com/tbourn/forumdesk/internal/settings"
)

// Router is the part of services.MessageRouter the bot drives.
type Router interface {
	HandleUserMessage(ctx context.Context, msg domain.Message) error
	HandleStaffMessage(ctx context.Context, msg domain.Message) error
	HandleStaffCommand(ctx context.Context, msg domain.Message, command, args string) error
	BeginRequest(ctx context.Context, user domain.User, chatID int64, category domain.Category) (string, error)
	Cancel(ctx context.Context, user domain.User, chatID int64) (string, error)
}

var _ Router = (*services.MessageRouter)(nil)

// ChatBinder makes a group the staff forum.
type ChatBinder interface {
	Bind(ctx context.Context, chatID, actorID int64) (bool, error)
}

var _ ChatBinder = (*services.StaffChatBinder)(nil)

// Replier sends bot replies that carry keyboards.
type Replier interface {
	Send(ctx context.Context, chatID int64, what interface{}, opts ...interface{}) error
}

// Bot dispatches platform updates to the router. Updates are handled
// concurrently; at most MaxHandlers run at once.
type Bot struct {
	Router   Router
	Binder   ChatBinder
	Settings services.SettingsSource
	Out      Replier
	Log      zerolog.Logger

	tb   *tele.Bot
	sem  *semaphore.Weighted
	base context.Context
	stop context.CancelFunc
}

// NewAPI builds a long-polling client. It does not start polling.
func NewAPI(token string, pollTimeout time.Duration, log zerolog.Logger) (*tele.Bot, error) {
	return tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: pollTimeout},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("telegram update failed")
		},
	})
}

// NewBot wires handlers onto tb. tb may be nil in tests, in which case only
// the dispatch methods are usable.
func NewBot(tb *tele.Bot, r Router, binder ChatBinder, s services.SettingsSource, out Replier, maxHandlers int, log zerolog.Logger) *Bot {
	if maxHandlers < 1 {
		maxHandlers = 1
	}
	b := &Bot{
		Router:   r,
		Binder:   binder,
		Settings: s,
		Out:      out,
		Log:      log.With().Str("component", "bot").Logger(),
		tb:       tb,
		sem:      semaphore.NewWeighted(int64(maxHandlers)),
		base:     context.Background(),
	}
	if tb != nil {
		b.register()
	}
	return b
}

func (b *Bot) register() {
	b.tb.Use(limit(b.sem, b.context))

	b.tb.Handle("/start", b.wrap(func(ctx context.Context, c tele.Context) error {
		return b.onStart(ctx, c.Message())
	}))
	b.tb.Handle("/set_chat", b.wrap(func(ctx context.Context, c tele.Context) error {
		return b.onSetChat(ctx, c.Message())
	}))
	for _, cmd := range []string{"ban", "unban"} {
		cmd := cmd
		b.tb.Handle("/"+cmd, b.wrap(func(ctx context.Context, c tele.Context) error {
			return b.onCommand(ctx, c.Message(), cmd)
		}))
	}
	b.tb.Handle(tele.OnCallback, b.wrap(func(ctx context.Context, c tele.Context) error {
		cb := c.Callback()
		defer func() {
			if err := c.Respond(); err != nil {
				b.Log.Debug().Err(err).Msg("answer callback")
			}
		}()
		if cb == nil || cb.Sender == nil || cb.Message == nil || cb.Message.Chat == nil {
			return nil
		}
		return b.onAction(ctx, toUser(cb.Sender), cb.Message.Chat.ID, cb.Data)
	}))

	onMessage := b.wrap(func(ctx context.Context, c tele.Context) error {
		return b.onMessage(ctx, c.Message())
	})
	for _, ev := range []string{tele.OnText, tele.OnMedia, tele.OnSticker, tele.OnLocation, tele.OnContact, tele.OnVenue, tele.OnPoll, tele.OnDice} {
		b.tb.Handle(ev, onMessage)
	}
}

func (b *Bot) context() context.Context { return b.base }

// wrap injects the bot's context and logs handler errors instead of handing
// them back to telebot, so one bad update never affects the others.
func (b *Bot) wrap(fn func(ctx context.Context, c tele.Context) error) tele.HandlerFunc {
	return func(c tele.Context) error {
		if err := fn(b.base, c); err != nil {
			b.Log.Warn().Err(err).Msg("handle update")
		}
		return nil
	}
}

// limit bounds concurrent handlers with a weighted semaphore. Waiting
// handlers give up when ctx() is cancelled.
func limit(sem *semaphore.Weighted, ctx func() context.Context) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if err := sem.Acquire(ctx(), 1); err != nil {
				return err
			}
			defer sem.Release(1)
			return next(c)
		}
	}
}

// Start begins long polling in the background. It returns immediately.
func (b *Bot) Start(ctx context.Context) {
	b.base, b.stop = context.WithCancel(ctx)
	if b.tb != nil {
		go b.tb.Start()
	}
	b.Log.Info().Msg("bot polling started")
}

// Stop halts polling and cancels in-flight handlers.
func (b *Bot) Stop() {
	if b.tb != nil {
		b.tb.Stop()
	}
	if b.stop != nil {
		b.stop()
	}
}

func (b *Bot) onStart(ctx context.Context, m *tele.Message) error {
	if m == nil || m.Chat == nil || m.Chat.Type != tele.ChatPrivate {
		return nil
	}
	snap := b.Settings.Snapshot()
	return b.Out.Send(ctx, m.Chat.ID, snap.Text(settings.TextGreeting), RequestMenu(snap))
}

func (b *Bot) onAction(ctx context.Context, user domain.User, chatID int64, data string) error {
	act, err := domain.ParseAction(data)
	if err != nil {
		return err
	}
	switch act.Kind {
	case domain.ActionRequest:
		prompt, err := b.Router.BeginRequest(ctx, user, chatID, act.Category)
		if err != nil || prompt == "" {
			return err
		}
		return b.Out.Send(ctx, chatID, prompt, CancelMenu())
	case domain.ActionReset:
		text, err := b.Router.Cancel(ctx, user, chatID)
		if err != nil {
			return err
		}
		return b.Out.Send(ctx, chatID, text, RequestMenu(b.Settings.Snapshot()))
	}
	return domain.ErrUnknownAction
}

func (b *Bot) onMessage(ctx context.Context, m *tele.Message) error {
	if m == nil || m.Chat == nil {
		return nil
	}
	msg := ToMessage(m)
	if !msg.Private {
		return b.Router.HandleStaffMessage(ctx, msg)
	}
	err := b.Router.HandleUserMessage(ctx, msg)
	if errors.Is(err, services.ErrNotInFlow) {
		snap := b.Settings.Snapshot()
		return b.Out.Send(ctx, msg.ChatID, snap.Text(settings.TextNoFlow), RequestMenu(snap))
	}
	return err
}

func (b *Bot) onCommand(ctx context.Context, m *tele.Message, cmd string) error {
	if m == nil || m.Chat == nil || m.Chat.Type == tele.ChatPrivate {
		return nil
	}
	err := b.Router.HandleStaffCommand(ctx, ToMessage(m), cmd, strings.TrimSpace(m.Payload))
	switch {
	case errors.Is(err, services.ErrNoTopic),
		errors.Is(err, services.ErrForbidden),
		errors.Is(err, settings.ErrInvalidDuration):
		// already answered in the thread
		b.Log.Debug().Err(err).Str("command", cmd).Msg("staff command rejected")
		return nil
	}
	return err
}

func (b *Bot) onSetChat(ctx context.Context, m *tele.Message) error {
	if m == nil || m.Chat == nil || m.Sender == nil || m.Chat.Type == tele.ChatPrivate {
		return nil
	}
	msg := ToMessage(m)
	snap := b.Settings.Snapshot()
	changed, err := b.Binder.Bind(ctx, msg.ChatID, msg.From.ID)
	text := snap.Text(settings.TextChatBound)
	switch {
	case errors.Is(err, services.ErrForbidden):
		b.Log.Debug().Err(err).Msg("set_chat rejected")
		text = snap.Text(settings.TextForbidden)
	case err != nil:
		return err
	case !changed:
		text = snap.Text(settings.TextChatIsBound)
	}
	return b.Out.Send(ctx, msg.ChatID, text, &tele.SendOptions{ThreadID: msg.ThreadID})
}
