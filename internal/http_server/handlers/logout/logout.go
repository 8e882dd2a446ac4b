package logout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"campus_echo/internal/http_server/handlers"
	"campus_echo/internal/http_server/middleware/authn"
	resp "campus_echo/internal/lib/api/response"
	sl "campus_echo/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type SessionCloser interface {
	Logout(ctx context.Context, accountID int64, refreshToken string) error
}

type Request struct {
	RefreshToken string `json:"refreshToken"`
}

// New godoc
// @Summary      Выход из системы
// @Description  ## Описание
// @Description  Завершает сессию пользователя, удаляя refresh токен.
// @Description
// @Description  ### Выбор токена:
// @Description  1. Непустой `refreshToken` в теле запроса
// @Description  2. Иначе cookie `refreshToken`
// @Description
// @Description  ### Особенности:
// @Description  - Cookie очищается, только если завершена именно ее сессия
// @Description  - Повторный выход возвращает 200
// @Description  - Access токен остается валидным до истечения TTL
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        token  body  Request  false  "Refresh токен сессии"  example({"refreshToken": "3f9c..."})
// @Success      200  {object}  object{success=bool,message=string}  "Успешный выход"  example({"success": true, "message": "Logout successful"})
// @Failure      401  {object}  object{success=bool,message=string}  "Access токен не передан или невалиден"  example({"success": false, "message": "No token provided"})
// @Failure      500  {object}  object{success=bool,message=string}  "Внутренняя ошибка сервера"  example({"success": false, "message": "Internal error"})
// @Router       /auth/logout [post]
// @x-order      4
func New(log *slog.Logger, closer SessionCloser, secureCookie bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.logout.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, ok := authn.IdentityFromContext(r.Context())
		if !ok {
			handlers.Fail(w, r, http.StatusUnauthorized, "No token provided")
			return
		}

		var req Request
		if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			log.Warn("Failed to decode request body", sl.Err(err))
		}

		token, fromCookie := handlers.SessionToken(r, req.RefreshToken)

		if err := closer.Logout(r.Context(), id.AccountID, token); err != nil {
			log.Error("failed to logout", sl.Err(err))
			handlers.Fail(w, r, http.StatusInternalServerError, "Internal error")
			return
		}

		// a cookie that belongs to another, still open session is kept
		if fromCookie || token == "" {
			handlers.ClearRefreshCookie(w, secureCookie)
		}

		render.JSON(w, r, resp.OK("Logout successful"))
	}
}
