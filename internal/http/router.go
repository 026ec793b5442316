// Package httpapi serves the admin API: ban management, topic lookup,
// runtime settings and desk statistics, plus /healthz and /metrics.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. AccessLog (redacting)
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. CORS and security headers
//
// The API group adds bearer auth, rate limiting and gzip.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/forumdesk/internal/config"
	"github.com/tbourn/forumdesk/internal/http/handlers"
	"github.com/tbourn/forumdesk/internal/http/middleware"
)

// Deps are the services behind the API. They are shared with the bot so
// that, for example, a ban issued here updates the same ban cache.
type Deps struct {
	Moderation handlers.Moderator
	Reports    handlers.Reports
	Topics     handlers.TopicFinder
	Settings   handlers.SettingsStore
	// Ready reports whether the store is reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

// RegisterRoutes attaches middleware and endpoints to r. When
// cfg.AdminToken is empty only /healthz and /metrics are served.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config, log zerolog.Logger) error {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(log, middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(64 << 10))
	r.Use(middleware.Metrics())
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		NoStore:    true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		if deps.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Ready(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.AdminToken == "" {
		log.Warn().Msg("ADMIN_TOKEN is empty; admin API disabled")
		return nil
	}

	rl, err := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByPrincipalOrIP())
	if err != nil {
		return err
	}
	h := handlers.New(deps.Moderation, deps.Reports, deps.Topics, deps.Settings)

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.AdminAuth(cfg.AdminToken), rl.Handler(), gzip.Gzip(gzip.DefaultCompression))
	{
		api.GET("/bans", h.ListBans)
		api.PUT("/bans/:user_id", h.PutBan)
		api.DELETE("/bans/:user_id", h.DeleteBan)

		api.GET("/topics/:topic_id", h.GetTopic)

		api.GET("/settings", h.ListSettings)
		api.PUT("/settings/:key", h.PutSetting)

		api.GET("/stats", h.Stats)
	}
	return nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cors.New(cc)
}

// limitBody caps request bodies at maxBytes.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix treats "" and "/" as the root group.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
