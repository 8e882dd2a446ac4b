package resend

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

type VerificationResender interface {
	ResendVerification(ctx context.Context, email string) error
}

type Request struct {
	Email string `json:"email" validate:"required,email"`
}

// New godoc
// @Summary      Повторная отправка письма подтверждения
// @Description  ## Описание
// @Description  Выдает новый токен подтверждения и отправляет письмо. Предыдущий токен перестает действовать.
// @Description
// @Description  ### Безопасность:
// @Description  - Ответ одинаков для существующих и несуществующих аккаунтов
// @Description  - Ограничение частоты запросов по IP
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body  Request  true  "Email аккаунта"  example({"email": "student@college.edu"})
// @Success      200  {object}  object{success=bool,message=string}  "Запрос принят"
// @Failure      400  {object}  object{success=bool,message=string}  "Ошибка валидации"  example({"success": false, "message": "Validation error"})
// @Failure      429  {object}  object{success=bool,message=string}  "Слишком много запросов"  example({"success": false, "message": "Too many requests, please try again later"})
// @Failure      500  {object}  object{success=bool,message=string}  "Внутренняя ошибка сервера"  example({"success": false, "message": "Internal error"})
// @Router       /auth/verify-email/resend [post]
// @x-order      7
func New(log *slog.Logger, validate *validator.Validate, resender VerificationResender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resend.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if !handlers.Decode(w, r, log, validate, &req) {
			return
		}

		if err := resender.ResendVerification(r.Context(), req.Email); err != nil {
			log.Error("failed to resend verification email", sl.Err(err))
			handlers.Fail(w, r, http.StatusInternalServerError, "Internal error")
			return
		}

		render.JSON(w, r, resp.OK("If the account exists and is not verified, a new verification link has been sent"))
	}
}
