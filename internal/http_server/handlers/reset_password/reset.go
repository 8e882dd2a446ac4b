package reset

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
	"github.com/go-playground/validator/v10"
)

type PasswordResetter interface {
	ResetPassword(ctx context.Context, token, newPassword, confirmPassword string) error
}

type Request struct {
	Token           string `json:"token" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

// New godoc
// @Summary      Сброс пароля
// @Description  ## Описание
// @Description  Устанавливает новый пароль по токену сброса. Все refresh токены аккаунта отзываются.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body  Request  true  "Токен и новый пароль"
// @Success      200  {object}  object{success=bool,message=string}  "Пароль изменен"  example({"success": true, "message": "Password reset successfully"})
// @Failure      400  {object}  object{success=bool,message=string}  "Токен невалиден или истек, пароль не прошел проверку"  example({"success": false, "message": "Invalid reset token"})
// @Failure      500  {object}  object{success=bool,message=string}  "Внутренняя ошибка сервера"  example({"success": false, "message": "Internal error"})
// @Router       /auth/reset-password [post]
// @x-order      9
func New(log *slog.Logger, validate *validator.Validate, resetter PasswordResetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.reset.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if !handlers.Decode(w, r, log, validate, &req) {
			return
		}

		if err := resetter.ResetPassword(r.Context(), req.Token, req.NewPassword, req.ConfirmPassword); err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidToken):
				handlers.Fail(w, r, http.StatusBadRequest, "Invalid reset token")
			case errors.Is(err, auth.ErrExpiredToken):
				handlers.Fail(w, r, http.StatusBadRequest, "Reset token has expired")
			case errors.Is(err, auth.ErrPasswordMismatch):
				handlers.Fail(w, r, http.StatusBadRequest, "Passwords do not match")
			default:
				log.Error("failed to reset password", sl.Err(err))
				handlers.Fail(w, r, http.StatusInternalServerError, "Internal error")
			}
			return
		}

		log.Info("password reset successfully")

		render.JSON(w, r, resp.OK("Password reset successfully"))
	}
}
