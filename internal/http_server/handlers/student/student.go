package student

import (
	"context"
	"log/slog"
	"net/http"

	"campus_echo/internal/campus"
	"campus_echo/internal/http_server/handlers"
	"campus_echo/internal/http_server/middleware/authn"
	resp "campus_echo/internal/lib/api/response"
	sl "campus_echo/internal/lib/logger"
	"campus_echo/internal/models"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Campus interface {
	Dashboard(accountID int64, role models.Role) campus.Dashboard
	Notices(ctx context.Context) ([]models.Notice, error)
	Events() []campus.Event
	Resources() []campus.Resource
}

// Routes mounts the student area. Authentication and role checks are applied by the caller.
func Routes(log *slog.Logger, svc Campus) http.Handler {
	r := chi.NewRouter()

	r.Get("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		id, _ := authn.IdentityFromContext(r.Context())
		render.JSON(w, r, resp.Data("Student dashboard", svc.Dashboard(id.AccountID, models.RoleStudent)))
	})

	r.Get("/notices", func(w http.ResponseWriter, r *http.Request) {
		notices, err := svc.Notices(r.Context())
		if err != nil {
			log.Error("failed to fetch notices",
				slog.String("op", "handlers.student.notices"),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				sl.Err(err),
			)
			handlers.Fail(w, r, http.StatusInternalServerError, "Internal error")
			return
		}

		render.JSON(w, r, resp.Data("Campus notices retrieved", map[string]any{"notices": notices}))
	})

	r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, resp.Data("Campus events retrieved", map[string]any{"events": svc.Events()}))
	})

	r.Get("/resources", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, resp.Data("Academic resources retrieved", map[string]any{"resources": svc.Resources()}))
	})

	return r
}
