package register

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"campus_echo/internal/auth"
	"campus_echo/internal/http_server/handlers"
	resp "campus_echo/internal/lib/api/response"
	sl "campus_echo/internal/lib/logger"
	"campus_echo/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Registrar interface {
	Register(ctx context.Context, reg auth.Registration) (int64, error)
}

type credentials struct {
	FullName        string `json:"fullName" validate:"required,max=120"`
	Email           string `json:"email" validate:"required,email"`
	Department      string `json:"department" validate:"required"`
	Phone           string `json:"phone" validate:"required,phone"`
	Password        string `json:"password" validate:"required,min=8,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type StudentRequest struct {
	credentials
	RollNumber string `json:"rollNumber" validate:"required"`
	Year       string `json:"year" validate:"required"`
}

type FacultyRequest struct {
	credentials
	EmployeeID  string `json:"employeeId" validate:"required"`
	Designation string `json:"designation" validate:"required"`
}

type Response struct {
	UserID int64 `json:"userId"`
}

// NewStudent godoc
// @Summary      Регистрация студента
// @Description  ## Описание
// @Description  Создает учетную запись студента вместе с профилем и отправляет письмо для подтверждения email.
// @Description
// @Description  ### Процесс регистрации:
// @Description  1. Валидация полей и сложности пароля
// @Description  2. Проверка уникальности email (без учета регистра) и номера зачетки
// @Description  3. Сохранение аккаунта и профиля в одной транзакции
// @Description  4. Публикация письма с ссылкой подтверждения в очередь
// @Description
// @Description  ### Особенности:
// @Description  - Вход возможен только после подтверждения email
// @Description  - Ограничение частоты запросов по IP
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body  StudentRequest  true  "Данные студента"
// @Success      201  {object}  object{success=bool,message=string,data=object{userId=int}}  "Аккаунт создан"
// @Failure      400  {object}  object{success=bool,message=string}  "Ошибка валидации или пароли не совпадают"  example({"success": false, "message": "Validation error"})
// @Failure      409  {object}  object{success=bool,message=string}  "Email или номер зачетки уже заняты"  example({"success": false, "message": "Email already registered"})
// @Failure      429  {object}  object{success=bool,message=string}  "Слишком много запросов"  example({"success": false, "message": "Too many requests, please try again later"})
// @Failure      500  {object}  object{success=bool,message=string}  "Внутренняя ошибка сервера"  example({"success": false, "message": "Internal error"})
// @Router       /auth/register/student [post]
// @x-order      1
func NewStudent(log *slog.Logger, validate *validator.Validate, registrar Registrar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.register.NewStudent"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req StudentRequest
		if !handlers.Decode(w, r, log, validate, &req) {
			return
		}

		reg := registration(models.RoleStudent, req.credentials)
		reg.Profile.RollNumber = strings.TrimSpace(req.RollNumber)
		reg.Profile.Year = req.Year

		register(w, r, log, registrar, reg)
	}
}

// NewFaculty godoc
// @Summary      Регистрация преподавателя
// @Description  ## Описание
// @Description  Создает учетную запись преподавателя с профилем (табельный номер, должность).
// @Description  Работает так же, как регистрация студента: транзакция, письмо подтверждения, лимит по IP.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body  FacultyRequest  true  "Данные преподавателя"
// @Success      201  {object}  object{success=bool,message=string,data=object{userId=int}}  "Аккаунт создан"
// @Failure      400  {object}  object{success=bool,message=string}  "Ошибка валидации или пароли не совпадают"  example({"success": false, "message": "Validation error"})
// @Failure      409  {object}  object{success=bool,message=string}  "Email или табельный номер уже заняты"  example({"success": false, "message": "Roll number or employee ID already registered"})
// @Failure      429  {object}  object{success=bool,message=string}  "Слишком много запросов"  example({"success": false, "message": "Too many requests, please try again later"})
// @Failure      500  {object}  object{success=bool,message=string}  "Внутренняя ошибка сервера"  example({"success": false, "message": "Internal error"})
// @Router       /auth/register/faculty [post]
// @x-order      2
func NewFaculty(log *slog.Logger, validate *validator.Validate, registrar Registrar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.register.NewFaculty"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req FacultyRequest
		if !handlers.Decode(w, r, log, validate, &req) {
			return
		}

		reg := registration(models.RoleFaculty, req.credentials)
		reg.Profile.EmployeeID = strings.TrimSpace(req.EmployeeID)
		reg.Profile.Designation = req.Designation

		register(w, r, log, registrar, reg)
	}
}

func registration(role models.Role, c credentials) auth.Registration {
	return auth.Registration{
		Role:            role,
		Email:           strings.TrimSpace(c.Email),
		Password:        c.Password,
		ConfirmPassword: c.ConfirmPassword,
		Profile: models.Profile{
			FullName:   strings.TrimSpace(c.FullName),
			Department: c.Department,
			Phone:      c.Phone,
		},
	}
}

func register(w http.ResponseWriter, r *http.Request, log *slog.Logger, registrar Registrar, reg auth.Registration) {
	id, err := registrar.Register(r.Context(), reg)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			handlers.Fail(w, r, http.StatusConflict, "Email already registered")
		case errors.Is(err, auth.ErrDuplicateProfile):
			handlers.Fail(w, r, http.StatusConflict, "Roll number or employee ID already registered")
		case errors.Is(err, auth.ErrPasswordMismatch):
			handlers.Fail(w, r, http.StatusBadRequest, "Passwords do not match")
		case errors.Is(err, auth.ErrInvalidRole), errors.Is(err, auth.ErrInvalidProfile):
			handlers.Fail(w, r, http.StatusBadRequest, "Profile does not match account type")
		default:
			log.Error("failed to register user", sl.Err(err))
			handlers.Fail(w, r, http.StatusInternalServerError, "Internal error")
		}
		return
	}

	log.Info("user registered", slog.Int64("account_id", id))

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp.Data("Registration successful. Please verify your email.", Response{UserID: id}))
}
