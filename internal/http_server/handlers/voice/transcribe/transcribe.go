package transcribe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"campus_echo/internal/clients/stt"
	"campus_echo/internal/http_server/handlers"
	resp "campus_echo/internal/lib/api/response"
	sl "campus_echo/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

// MaxAudioBytes matches the upload limit of the transcription API.
const MaxAudioBytes = 25 << 20

type Transcriber interface {
	Transcribe(ctx context.Context, audio stt.Audio) (string, error)
}

type Response struct {
	Transcript string `json:"transcript"`
}

func New(log *slog.Logger, transcriber Transcriber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.voice.transcribe.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		r.Body = http.MaxBytesReader(w, r.Body, MaxAudioBytes+1<<20)

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			log.Warn("failed to parse multipart form", sl.Err(err))
			handlers.Fail(w, r, http.StatusBadRequest, "Audio file is required")
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("audio")
		if err != nil {
			handlers.Fail(w, r, http.StatusBadRequest, "Audio file is required")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, MaxAudioBytes+1))
		if err != nil {
			log.Error("failed to read audio", sl.Err(err))
			handlers.Fail(w, r, http.StatusBadRequest, "Failed to read audio")
			return
		}
		if len(data) > MaxAudioBytes {
			handlers.Fail(w, r, http.StatusRequestEntityTooLarge, "Audio file is too large")
			return
		}

		text, err := transcriber.Transcribe(r.Context(), stt.Audio{
			Data:        data,
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Language:    r.FormValue("language"),
		})
		if err != nil {
			if errors.Is(err, stt.ErrEmptyAudio) {
				handlers.Fail(w, r, http.StatusBadRequest, "Audio file is empty")
				return
			}

			log.Error("transcription failed", sl.Err(err))
			handlers.Fail(w, r, http.StatusBadGateway, "Speech-to-text service unavailable")
			return
		}

		render.JSON(w, r, resp.Data("", Response{Transcript: text}))
	}
}
