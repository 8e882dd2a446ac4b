// Package handlers holds helpers shared by the per-route handler packages.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	resp "campus_echo/internal/lib/api/response"
	sl "campus_echo/internal/lib/logger"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

const (
	RefreshCookieName = "refreshToken"
	refreshCookiePath = "/api/auth"
)

// * Decode читает JSON тело и проверяет его валидатором. При ошибке ответ уже записан
func Decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, validate *validator.Validate, dst any) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		if errors.Is(err, io.EOF) {
			log.Warn("request body is empty")
			Fail(w, r, http.StatusBadRequest, "Empty request body")
			return false
		}

		log.Error("Failed to decode request body", sl.Err(err))
		Fail(w, r, http.StatusBadRequest, "Failed to decode request")
		return false
	}

	return Validate(w, r, log, validate, dst)
}

func Validate(w http.ResponseWriter, r *http.Request, log *slog.Logger, validate *validator.Validate, v any) bool {
	if err := validate.Struct(v); err != nil {
		var validateErr validator.ValidationErrors
		if !errors.As(err, &validateErr) {
			log.Error("validation failed", sl.Err(err))
			Fail(w, r, http.StatusInternalServerError, "Internal error")
			return false
		}

		log.Info("Invalid request", sl.Err(err))

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.ValidationError(validateErr))
		return false
	}

	return true
}

func Fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, resp.Error(msg))
}

func SetRefreshCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func ClearRefreshCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// RefreshToken prefers the cookie and falls back to the token sent in the body.
func RefreshToken(r *http.Request, fromBody string) string {
	if c := refreshCookie(r); c != "" {
		return c
	}

	return fromBody
}

// SessionToken picks the session to end: a token named in the body wins over
// the cookie. fromCookie reports whether the cookie's session was picked.
func SessionToken(r *http.Request, fromBody string) (token string, fromCookie bool) {
	if fromBody != "" {
		return fromBody, fromBody == refreshCookie(r)
	}

	c := refreshCookie(r)

	return c, c != ""
}

func refreshCookie(r *http.Request) string {
	if c, err := r.Cookie(RefreshCookieName); err == nil {
		return c.Value
	}

	return ""
}
