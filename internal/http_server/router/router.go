package router

import (
	"log/slog"
	"net/http"
	"time"

	"campus_echo/internal/auth"
	"campus_echo/internal/campus"
	"campus_echo/internal/http_server/handlers/faculty"
	forgot "campus_echo/internal/http_server/handlers/forgot_password"
	"campus_echo/internal/http_server/handlers/login"
	"campus_echo/internal/http_server/handlers/logout"
	"campus_echo/internal/http_server/handlers/me"
	"campus_echo/internal/http_server/handlers/refresh"
	"campus_echo/internal/http_server/handlers/register"
	resend "campus_echo/internal/http_server/handlers/resend_verification_email"
	reset "campus_echo/internal/http_server/handlers/reset_password"
	"campus_echo/internal/http_server/handlers/student"
	"campus_echo/internal/http_server/handlers/verify"
	"campus_echo/internal/http_server/handlers/voice/history"
	"campus_echo/internal/http_server/handlers/voice/query"
	"campus_echo/internal/http_server/handlers/voice/transcribe"
	"campus_echo/internal/http_server/middleware/authn"
	"campus_echo/internal/http_server/middleware/ratelimit"
	"campus_echo/internal/lib/metrics"
	"campus_echo/internal/models"
	"campus_echo/internal/voice"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"
)

type Deps struct {
	Log         *slog.Logger
	Validate    *validator.Validate
	Auth        *auth.Auth
	Tokens      authn.TokenParser
	Voice       *voice.Service
	Transcriber transcribe.Transcriber
	Campus      *campus.Service
	Limiter     *ratelimit.Limiter

	AllowedOrigins []string
	RefreshTTL     time.Duration
	SecureCookie   bool
	TrustProxy     bool
}

type health struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// * New собирает все маршруты API
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if d.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	r.Handle("/metrics", metrics.Handler())

	requireAuth := authn.Authenticate(d.Log, d.Tokens)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, health{
				Success:   true,
				Message:   "Campus Echo API is running",
				Timestamp: time.Now().UTC(),
			})
		})

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(d.Limiter.Scope("auth"))

				r.Post("/register/student", register.NewStudent(d.Log, d.Validate, d.Auth))
				r.Post("/register/faculty", register.NewFaculty(d.Log, d.Validate, d.Auth))
				r.Post("/login", login.New(d.Log, d.Validate, d.Auth, login.CookieOptions{
					TTL:    d.RefreshTTL,
					Secure: d.SecureCookie,
				}))
			})

			r.Get("/verify-email", verify.New(d.Log, d.Auth))
			r.With(d.Limiter.Scope("resend")).
				Post("/verify-email/resend", resend.New(d.Log, d.Validate, d.Auth))
			r.Post("/forgot-password", forgot.New(d.Log, d.Validate, d.Auth))
			r.Post("/reset-password", reset.New(d.Log, d.Validate, d.Auth))
			r.Post("/refresh", refresh.New(d.Log, d.Auth))

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)

				r.Post("/logout", logout.New(d.Log, d.Auth, d.SecureCookie))
				r.Get("/me", me.New(d.Log, d.Auth))
			})
		})

		r.With(requireAuth, authn.RequireRole(models.RoleStudent)).
			Mount("/student", student.Routes(d.Log, d.Campus))
		r.With(requireAuth, authn.RequireRole(models.RoleFaculty)).
			Mount("/faculty", faculty.Routes(d.Log, d.Validate, d.Campus))

		r.Route("/voice", func(r chi.Router) {
			r.Use(requireAuth)

			r.Post("/query", query.New(d.Log, d.Validate, d.Voice))
			r.Post("/transcribe", transcribe.New(d.Log, d.Transcriber))
			r.Get("/history", history.New(d.Log, d.Voice))
		})
	})

	return r
}
