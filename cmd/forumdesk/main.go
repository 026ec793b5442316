// Command forumdesk runs the support desk: a Telegram bot that relays
// private conversations into forum topics of a staff chat, plus the admin
// HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/tbourn/forumdesk/internal/clock"
	"github.com/tbourn/forumdesk/internal/config"
	httpapi "github.com/tbourn/forumdesk/internal/http"
	"github.com/tbourn/forumdesk/internal/observability"
	"github.com/tbourn/forumdesk/internal/repo"
	"github.com/tbourn/forumdesk/internal/services"
	"github.com/tbourn/forumdesk/internal/settings"
	"github.com/tbourn/forumdesk/internal/sysutil"
	"github.com/tbourn/forumdesk/internal/telegram"
)

// version is set with -ldflags "-X main.version=...".
var version string

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "forumdesk: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.Bot.Token == "" {
		return errors.New("config: BOT_TOKEN is required")
	}
	ver := sysutil.FirstNonEmpty(version, "dev")
	log := observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}

	db, err := repo.OpenSQLite(cfg.DBPath, repo.Options{Tracing: cfg.OTEL.Enabled, Silent: true})
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	clk := clock.Real()
	store := settings.New(db, log, clk)
	if cfg.SeedPath != "" {
		n, err := store.SeedFile(ctx, cfg.SeedPath)
		if err != nil {
			return fmt.Errorf("seed settings: %w", err)
		}
		log.Info().Int("written", n).Str("path", cfg.SeedPath).Msg("settings seeded")
	}
	if err := store.Reload(ctx); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	settingsDone := make(chan struct{})
	go func() {
		defer close(settingsDone)
		store.Run(ctx, cfg.SettingsRefresh)
	}()

	api, err := telegram.NewAPI(cfg.Bot.Token, cfg.Bot.PollTimeout, log)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	transport := telegram.NewTransport(api, cfg.Bot.RPS, cfg.Bot.Burst, log)

	tracked := services.NewTrackedSet()
	gate := services.NewBanGate(db, cfg.Bot.BanCacheTTL, log)
	topics := services.NewTopicDirectory(db, services.RepoTopics{}, transport, store, log)
	cooldown, err := services.NewCooldown(100_000)
	if err != nil {
		return err
	}
	mod := &services.Moderation{DB: db, Gate: gate, Topics: topics, Transport: transport, Settings: store, Clock: clk, Log: log}
	router := &services.MessageRouter{
		DB:         db,
		Gate:       gate,
		Topics:     topics,
		Sessions:   services.NewSessionManager(db, clk, api.Me.ID, tracked),
		Cooldown:   cooldown,
		Moderation: mod,
		Transport:  transport,
		Settings:   store,
		Clock:      clk,
		Log:        log.With().Str("component", "router").Logger(),
		BotID:      api.Me.ID,
	}

	sweeper := services.NewSessionTimeoutSweeper(db, clk, tracked, topics, store, cfg.Bot.SweepInterval, log)
	sweeper.RelayRetention = cfg.Bot.RelayRetention
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}

	binder := &services.StaffChatBinder{Settings: store, Transport: transport, Log: log}
	bot := telegram.NewBot(api, router, binder, store, transport, cfg.Bot.MaxHandlers, log)
	bot.Start(ctx)

	srv, err := newHTTPServer(cfg, httpapi.Deps{
		Moderation: mod,
		Reports:    &services.Reports{DB: db, Clock: clk},
		Topics:     topics,
		Settings:   store,
		Ready:      sqlDB.PingContext,
	}, log)
	if err != nil {
		return err
	}
	srvErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", ver).Msg("admin API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error().Err(err).Msg("admin API failed")
		}
		stop()
	}

	bot.Stop()
	sweeper.Stop()
	<-settingsDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	return nil
}

func newHTTPServer(cfg config.Config, deps httpapi.Deps, log zerolog.Logger) (*http.Server, error) {
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	if err := httpapi.RegisterRoutes(r, deps, cfg, log.With().Str("component", "http").Logger()); err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}, nil
}
