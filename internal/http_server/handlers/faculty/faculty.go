package faculty

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"campus_echo/internal/campus"
	"campus_echo/internal/http_server/handlers"
	"campus_echo/internal/http_server/middleware/authn"
	resp "campus_echo/internal/lib/api/response"
	sl "campus_echo/internal/lib/logger"
	"campus_echo/internal/models"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Campus interface {
	Dashboard(accountID int64, role models.Role) campus.Dashboard
	CreateNotice(ctx context.Context, authorID int64, in campus.NoticeInput) (models.Notice, error)
	UpdateNotice(ctx context.Context, authorID, id int64, in campus.NoticeInput) (models.Notice, error)
	DeleteNotice(ctx context.Context, authorID, id int64) error
	Students(ctx context.Context) ([]models.StudentSummary, error)
	MarkAttendance(facultyID int64, a campus.Attendance) campus.Attendance
}

type NoticeRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Body     string `json:"body" validate:"required,max=5000"`
	Category string `json:"category" validate:"omitempty,max=50"`
}

type AttendanceRecord struct {
	StudentID int64  `json:"studentId" validate:"required,gt=0"`
	Status    string `json:"status" validate:"required,oneof=PRESENT ABSENT LATE"`
}

type AttendanceRequest struct {
	CourseCode string             `json:"courseCode" validate:"required"`
	Date       string             `json:"date" validate:"required,datetime=2006-01-02"`
	Records    []AttendanceRecord `json:"records" validate:"required,min=1,dive"`
}

type handler struct {
	log      *slog.Logger
	validate *validator.Validate
	svc      Campus
}

// Routes mounts the faculty area. Authentication and role checks are applied by the caller.
func Routes(log *slog.Logger, validate *validator.Validate, svc Campus) http.Handler {
	h := &handler{log: log, validate: validate, svc: svc}

	r := chi.NewRouter()

	r.Get("/dashboard", h.dashboard)
	r.Post("/notices", h.createNotice)
	r.Put("/notices/{id}", h.updateNotice)
	r.Delete("/notices/{id}", h.deleteNotice)
	r.Get("/students", h.students)
	r.Post("/attendance", h.attendance)

	return r
}

func (h *handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func (h *handler) dashboard(w http.ResponseWriter, r *http.Request) {
	id, _ := authn.IdentityFromContext(r.Context())
	render.JSON(w, r, resp.Data("Faculty dashboard", h.svc.Dashboard(id.AccountID, models.RoleFaculty)))
}

func (h *handler) createNotice(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.faculty.createNotice")
	id, _ := authn.IdentityFromContext(r.Context())

	var req NoticeRequest
	if !handlers.Decode(w, r, log, h.validate, &req) {
		return
	}

	n, err := h.svc.CreateNotice(r.Context(), id.AccountID, campus.NoticeInput(req))
	if err != nil {
		log.Error("failed to create notice", sl.Err(err))
		handlers.Fail(w, r, http.StatusInternalServerError, "Internal error")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp.Data("Notice created successfully", n))
}

func (h *handler) updateNotice(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.faculty.updateNotice")
	id, _ := authn.IdentityFromContext(r.Context())

	noticeID, ok := noticeIDParam(w, r)
	if !ok {
		return
	}

	var req NoticeRequest
	if !handlers.Decode(w, r, log, h.validate, &req) {
		return
	}

	n, err := h.svc.UpdateNotice(r.Context(), id.AccountID, noticeID, campus.NoticeInput(req))
	if err != nil {
		if errors.Is(err, campus.ErrNoticeNotFound) {
			handlers.Fail(w, r, http.StatusNotFound, "Notice not found")
			return
		}
		log.Error("failed to update notice", sl.Err(err))
		handlers.Fail(w, r, http.StatusInternalServerError, "Internal error")
		return
	}

	render.JSON(w, r, resp.Data("Notice updated successfully", n))
}

func (h *handler) deleteNotice(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.faculty.deleteNotice")
	id, _ := authn.IdentityFromContext(r.Context())

	noticeID, ok := noticeIDParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteNotice(r.Context(), id.AccountID, noticeID); err != nil {
		if errors.Is(err, campus.ErrNoticeNotFound) {
			handlers.Fail(w, r, http.StatusNotFound, "Notice not found")
			return
		}
		log.Error("failed to delete notice", sl.Err(err))
		handlers.Fail(w, r, http.StatusInternalServerError, "Internal error")
		return
	}

	render.JSON(w, r, resp.OK("Notice deleted successfully"))
}

func (h *handler) students(w http.ResponseWriter, r *http.Request) {
	students, err := h.svc.Students(r.Context())
	if err != nil {
		h.logger(r, "handlers.faculty.students").Error("failed to fetch students", sl.Err(err))
		handlers.Fail(w, r, http.StatusInternalServerError, "Internal error")
		return
	}

	render.JSON(w, r, resp.Data("Students retrieved", map[string]any{"students": students}))
}

func (h *handler) attendance(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.faculty.attendance")
	id, _ := authn.IdentityFromContext(r.Context())

	var req AttendanceRequest
	if !handlers.Decode(w, r, log, h.validate, &req) {
		return
	}

	records := make([]campus.AttendanceRecord, 0, len(req.Records))
	for _, rec := range req.Records {
		records = append(records, campus.AttendanceRecord(rec))
	}

	marked := h.svc.MarkAttendance(id.AccountID, campus.Attendance{
		CourseCode: req.CourseCode,
		Date:       req.Date,
		Records:    records,
	})

	render.JSON(w, r, resp.Data("Attendance marked successfully", marked))
}

func noticeIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		handlers.Fail(w, r, http.StatusBadRequest, "Invalid notice id")
		return 0, false
	}

	return id, true
}
