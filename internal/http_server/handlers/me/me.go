package me

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"campus_echo/internal/auth"
	"campus_echo/internal/http_server/handlers"
	"campus_echo/internal/http_server/middleware/authn"
	resp "campus_echo/internal/lib/api/response"
	sl "campus_echo/internal/lib/logger"
	"campus_echo/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type UserProvider interface {
	GetCurrentUser(ctx context.Context, accountID int64) (models.User, error)
}

// New godoc
// @Summary      Текущий пользователь
// @Description  Возвращает аккаунт и профиль владельца access токена.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  object{success=bool,data=models.User}  "Пользователь"
// @Failure      401  {object}  object{success=bool,message=string}  "Access токен не передан или невалиден"  example({"success": false, "message": "No token provided"})
// @Failure      404  {object}  object{success=bool,message=string}  "Пользователь не найден"  example({"success": false, "message": "User not found"})
// @Router       /auth/me [get]
// @x-order      10
func New(log *slog.Logger, provider UserProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.me.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, ok := authn.IdentityFromContext(r.Context())
		if !ok {
			handlers.Fail(w, r, http.StatusUnauthorized, "No token provided")
			return
		}

		user, err := provider.GetCurrentUser(r.Context(), id.AccountID)
		if err != nil {
			if errors.Is(err, auth.ErrAccountNotFound) {
				handlers.Fail(w, r, http.StatusNotFound, "User not found")
				return
			}

			log.Error("failed to fetch user", sl.Err(err))
			handlers.Fail(w, r, http.StatusInternalServerError, "Internal error")
			return
		}

		render.JSON(w, r, resp.Data("", user))
	}
}
