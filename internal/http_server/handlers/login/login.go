package login

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"campus_echo/internal/auth"
	"campus_echo/internal/http_server/handlers"
	resp "campus_echo/internal/lib/api/response"
	sl "campus_echo/internal/lib/logger"
	"campus_echo/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Authenticator interface {
	Login(ctx context.Context, email, password string) (auth.LoginResult, error)
}

type Request struct {
	Email string `json:"email" validate:"required,email"`
	Pass  string `json:"password" validate:"required"`
}

type Response struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         models.User `json:"user"`
}

type CookieOptions struct {
	TTL    time.Duration
	Secure bool
}

// New godoc
// @Summary      Вход в систему
// @Description  ## Описание
// @Description  Проверяет email и пароль, выдает access токен (JWT) и refresh токен.
// @Description
// @Description  ### Особенности:
// @Description  - Refresh токен возвращается в теле и в HttpOnly cookie `refreshToken` (path `/api/auth`)
// @Description  - Неподтвержденный или неактивный аккаунт получает 403
// @Description  - Неверный email и неверный пароль неразличимы
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        credentials  body  Request  true  "Email и пароль"  example({"email": "student@college.edu", "password": "Campus!Echo2026&Go"})
// @Success      200  {object}  object{success=bool,message=string,data=Response}  "Успешный вход"
// @Failure      400  {object}  object{success=bool,message=string}  "Ошибка валидации"  example({"success": false, "message": "Validation error"})
// @Failure      401  {object}  object{success=bool,message=string}  "Неверные учетные данные"  example({"success": false, "message": "Invalid credentials"})
// @Failure      403  {object}  object{success=bool,message=string}  "Email не подтвержден или аккаунт неактивен"  example({"success": false, "message": "Please verify your email first"})
// @Failure      429  {object}  object{success=bool,message=string}  "Слишком много запросов"  example({"success": false, "message": "Too many requests, please try again later"})
// @Failure      500  {object}  object{success=bool,message=string}  "Внутренняя ошибка сервера"  example({"success": false, "message": "Internal error"})
// @Router       /auth/login [post]
// @x-order      3
func New(
	log *slog.Logger,
	validate *validator.Validate,
	authenticator Authenticator,
	cookie CookieOptions,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if !handlers.Decode(w, r, log, validate, &req) {
			return
		}

		res, err := authenticator.Login(r.Context(), req.Email, req.Pass)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidCredentials):
				handlers.Fail(w, r, http.StatusUnauthorized, "Invalid credentials")
			case errors.Is(err, auth.ErrEmailNotVerified):
				handlers.Fail(w, r, http.StatusForbidden, "Please verify your email first")
			case errors.Is(err, auth.ErrAccountInactive):
				handlers.Fail(w, r, http.StatusForbidden, "Account is inactive")
			default:
				log.Error("failed to login user", sl.Err(err))
				handlers.Fail(w, r, http.StatusInternalServerError, "Internal error")
			}
			return
		}

		handlers.SetRefreshCookie(w, res.RefreshToken, cookie.TTL, cookie.Secure)

		log.Info("User logged in successfully", slog.Int64("account_id", res.User.ID))

		render.JSON(w, r, resp.Data("Login successful", Response{
			AccessToken:  res.AccessToken,
			RefreshToken: res.RefreshToken,
			User:         res.User,
		}))
	}
}
