package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	resp "campus_echo/internal/lib/api/response"
	sl "campus_echo/internal/lib/logger"
	"campus_echo/internal/lib/metrics"

	httprate "github.com/go-chi/httprate"
	"github.com/go-chi/render"
)

const tooManyRequests = "Too many requests, please try again later"

// Counter is a shared fixed-window counter, implemented by storage/redis.
type Counter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type Limiter struct {
	log     *slog.Logger
	counter Counter
	limit   int
	window  time.Duration
}

// New returns a per-IP limiter. With a nil counter the window is kept in
// process memory by httprate.
func New(log *slog.Logger, counter Counter, limit int, window time.Duration) *Limiter {
	return &Limiter{
		log:     log,
		counter: counter,
		limit:   limit,
		window:  window,
	}
}

// * Scope возвращает middleware с отдельным счетчиком для группы маршрутов
func (l *Limiter) Scope(scope string) func(http.Handler) http.Handler {
	if l.counter == nil {
		return httprate.Limit(l.limit, l.window,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				metrics.RateLimited.WithLabelValues(scope).Inc()
				reject(w, r)
			}),
		)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, err := httprate.KeyByIP(r)
			if err != nil {
				ip = r.RemoteAddr
			}

			count, ttl, err := l.counter.IncrWindow(r.Context(), "ratelimit:"+scope+":"+ip, l.window)
			if err != nil {
				// counter outage must not lock users out
				l.log.Error("rate limit counter failed", slog.String("scope", scope), sl.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			remaining := int64(l.limit) - count
			if remaining < 0 {
				remaining = 0
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(l.limit) {
				w.Header().Set("Retry-After", strconv.Itoa(int(ttl.Seconds()+0.5)))
				metrics.RateLimited.WithLabelValues(scope).Inc()
				reject(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusTooManyRequests)
	render.JSON(w, r, resp.Error(tooManyRequests))
}
