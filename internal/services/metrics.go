package services

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forumdesk_events_total",
			Help: "Inbound events by direction and outcome.",
		},
		[]string{"direction", "outcome"},
	)

	banRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forumdesk_ban_cache_refresh_total",
			Help: "Ban cache reloads by result.",
		},
		[]string{"result"},
	)

	topicsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forumdesk_topics_created_total",
			Help: "Forum topics created for users.",
		},
	)

	sessionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forumdesk_sessions_expired_total",
			Help: "Sessions cleared by the timeout sweeper.",
		},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forumdesk_sweep_duration_seconds",
			Help:    "Duration of a session sweep pass.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(eventsTotal, banRefreshes, topicsCreated, sessionsExpired, sweepDuration)
}
