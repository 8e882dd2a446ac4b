package history

import (
	"context"
	"log/slog"
	"net/http"

	"campus_echo/internal/http_server/handlers"
	"campus_echo/internal/http_server/middleware/authn"
	resp "campus_echo/internal/lib/api/response"
	sl "campus_echo/internal/lib/logger"
	"campus_echo/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type HistoryProvider interface {
	GetHistory(ctx context.Context, accountID int64) ([]models.VoiceQuery, error)
}

func New(log *slog.Logger, provider HistoryProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.voice.history.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, ok := authn.IdentityFromContext(r.Context())
		if !ok {
			handlers.Fail(w, r, http.StatusUnauthorized, "No token provided")
			return
		}

		queries, err := provider.GetHistory(r.Context(), id.AccountID)
		if err != nil {
			log.Error("failed to fetch history", sl.Err(err))
			handlers.Fail(w, r, http.StatusInternalServerError, "Failed to fetch history")
			return
		}

		if queries == nil {
			queries = []models.VoiceQuery{}
		}

		render.JSON(w, r, resp.Data("", queries))
	}
}
