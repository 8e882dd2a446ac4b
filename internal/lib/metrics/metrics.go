package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AuthEvents counts auth operations by event and outcome ("ok" or an error kind).
	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campus_echo",
		Name:      "auth_events_total",
		Help:      "Auth operations by event and outcome.",
	}, []string{"event", "outcome"})

	// VoiceQueries counts processed queries by classified type and response source.
	VoiceQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campus_echo",
		Name:      "voice_queries_total",
		Help:      "Processed voice queries by type and response source.",
	}, []string{"type", "source"})

	MailPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "campus_echo",
		Name:      "mail_publish_failures_total",
		Help:      "Notification messages that could not be queued.",
	})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campus_echo",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	}, []string{"route"})
)

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
