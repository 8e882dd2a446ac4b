package verify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"campus_echo/internal/auth"
	"campus_echo/internal/http_server/handlers"
	resp "campus_echo/internal/lib/api/response"
	sl "campus_echo/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type EmailVerifier interface {
	VerifyEmail(ctx context.Context, token string) error
}

// New godoc
// @Summary      Подтверждение email
// @Description  ## Описание
// @Description  Подтверждает email по одноразовому токену из письма. Токен удаляется после использования.
// @Tags         auth
// @Produce      json
// @Param        token  query  string  true  "Токен подтверждения"
// @Success      200  {object}  object{success=bool,message=string}  "Email подтвержден"  example({"success": true, "message": "Email verified successfully"})
// @Failure      400  {object}  object{success=bool,message=string}  "Токен отсутствует, невалиден или истек"  example({"success": false, "message": "Invalid verification token"})
// @Failure      500  {object}  object{success=bool,message=string}  "Внутренняя ошибка сервера"  example({"success": false, "message": "Internal error"})
// @Router       /auth/verify-email [get]
// @x-order      6
func New(log *slog.Logger, verifier EmailVerifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.verify.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token := r.URL.Query().Get("token")
		if token == "" {
			log.Warn("missing verification token")
			handlers.Fail(w, r, http.StatusBadRequest, "Invalid verification token")
			return
		}

		if err := verifier.VerifyEmail(r.Context(), token); err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidToken):
				handlers.Fail(w, r, http.StatusBadRequest, "Invalid verification token")
			case errors.Is(err, auth.ErrExpiredToken):
				handlers.Fail(w, r, http.StatusBadRequest, "Verification token has expired")
			default:
				log.Error("failed to verify email", sl.Err(err))
				handlers.Fail(w, r, http.StatusInternalServerError, "Internal error")
			}
			return
		}

		log.Info("email verified successfully")

		render.JSON(w, r, resp.OK("Email verified successfully"))
	}
}
