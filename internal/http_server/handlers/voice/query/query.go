package query

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"campus_echo/internal/http_server/handlers"
	"campus_echo/internal/http_server/middleware/authn"
	resp "campus_echo/internal/lib/api/response"
	sl "campus_echo/internal/lib/logger"
	"campus_echo/internal/voice"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type QueryProcessor interface {
	ProcessQuery(ctx context.Context, accountID int64, query string) (voice.Result, error)
}

type Request struct {
	Query string `json:"query" validate:"max=2000"`
}

func New(log *slog.Logger, validate *validator.Validate, processor QueryProcessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.voice.query.New"

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
		if !handlers.Decode(w, r, log, validate, &req) {
			return
		}

		res, err := processor.ProcessQuery(r.Context(), id.AccountID, req.Query)
		if err != nil {
			if errors.Is(err, voice.ErrEmptyQuery) {
				handlers.Fail(w, r, http.StatusBadRequest, "Query cannot be empty")
				return
			}

			log.Error("failed to process query", sl.Err(err))
			handlers.Fail(w, r, http.StatusInternalServerError, "Failed to process query")
			return
		}

		render.JSON(w, r, resp.Data("", res))
	}
}
