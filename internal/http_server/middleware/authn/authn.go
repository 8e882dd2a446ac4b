package authn

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	resp "campus_echo/internal/lib/api/response"
	"campus_echo/internal/lib/jwt"
	"campus_echo/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Identity struct {
	AccountID int64
	Role      models.Role
}

type TokenParser interface {
	ParseAccessToken(token string) (jwt.Claims, error)
}

type identityKey struct{}

// * Authenticate проверяет bearer токен и кладет Identity в контекст запроса
func Authenticate(log *slog.Logger, parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("No token provided"))
				return
			}

			claims, err := parser.ParseAccessToken(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
			if err != nil {
				log.Debug("access token rejected",
					slog.String("op", "authn.Authenticate"),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Invalid or expired token"))
				return
			}

			ctx := WithIdentity(r.Context(), Identity{AccountID: claims.AccountID, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole must run after Authenticate.
func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("No token provided"))
				return
			}

			if id.Role != role {
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, resp.Error("Access denied. "+roleTitle(role)+" role required."))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func roleTitle(role models.Role) string {
	s := strings.ToLower(string(role))
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}
