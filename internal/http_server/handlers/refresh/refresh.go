package refresh

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"campus_echo/internal/auth"
	"campus_echo/internal/http_server/handlers"
	resp "campus_echo/internal/lib/api/response"
	sl "campus_echo/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type TokenRefresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
}

type Request struct {
	RefreshToken string `json:"refreshToken"`
}

type Response struct {
	AccessToken string `json:"accessToken"`
}

// New godoc
// @Summary      Обновление access токена
// @Description  ## Описание
// @Description  Выдает новый access токен по refresh токену. Cookie `refreshToken` имеет приоритет над телом запроса.
// @Description  Refresh токен при этом не меняется.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        token  body  Request  false  "Refresh токен, если нет cookie"
// @Success      200  {object}  object{success=bool,message=string,data=Response}  "Новый access токен"
// @Failure      401  {object}  object{success=bool,message=string}  "Токен не передан, невалиден или истек"  example({"success": false, "message": "Invalid or expired refresh token"})
// @Failure      500  {object}  object{success=bool,message=string}  "Внутренняя ошибка сервера"  example({"success": false, "message": "Internal error"})
// @Router       /auth/refresh [post]
// @x-order      5
func New(log *slog.Logger, refresher TokenRefresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.refresh.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			log.Warn("Failed to decode request body", sl.Err(err))
		}

		token := handlers.RefreshToken(r, req.RefreshToken)
		if token == "" {
			handlers.Fail(w, r, http.StatusUnauthorized, "No refresh token provided")
			return
		}

		accessToken, err := refresher.RefreshAccessToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidRefreshToken) {
				handlers.Fail(w, r, http.StatusUnauthorized, "Invalid or expired refresh token")
				return
			}

			log.Error("failed to refresh access token", sl.Err(err))
			handlers.Fail(w, r, http.StatusInternalServerError, "Internal error")
			return
		}

		render.JSON(w, r, resp.Data("Token refreshed", Response{AccessToken: accessToken}))
	}
}
