package forgot

import (
	"context"
	"log/slog"
	"net/http"

	"campus_echo/internal/http_server/handlers"
	resp "campus_echo/internal/lib/api/response"
	sl "campus_echo/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

const genericMessage = "If email exists, reset link has been sent"

type PasswordForgetter interface {
	ForgotPassword(ctx context.Context, email string) error
}

type Request struct {
	Email string `json:"email" validate:"required,email"`
}

// New godoc
// @Summary      Запрос сброса пароля
// @Description  ## Описание
// @Description  Отправляет ссылку для сброса пароля. Ответ и время ответа не зависят от существования аккаунта.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body  Request  true  "Email аккаунта"
// @Success      200  {object}  object{success=bool,message=string}  "Запрос принят"
// @Failure      400  {object}  object{success=bool,message=string}  "Ошибка валидации"  example({"success": false, "message": "Validation error"})
// @Router       /auth/forgot-password [post]
// @x-order      8
func New(log *slog.Logger, validate *validator.Validate, forgetter PasswordForgetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.forgot.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if !handlers.Decode(w, r, log, validate, &req) {
			return
		}

		// lookup failures are logged only; the reply never depends on the account
		if err := forgetter.ForgotPassword(r.Context(), req.Email); err != nil {
			log.Error("forgot password failed", sl.Err(err))
		}

		render.JSON(w, r, resp.OK(genericMessage))
	}
}
