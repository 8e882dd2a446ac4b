package transcribe

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"campus_echo/internal/clients/stt"
)

type transcriberMock struct {
	transcribe func(ctx context.Context, audio stt.Audio) (string, error)
}

func (m *transcriberMock) Transcribe(ctx context.Context, audio stt.Audio) (string, error) {
	return m.transcribe(ctx, audio)
}

func upload(t *testing.T, field string, data []byte, language string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if field != "" {
		fw, err := mw.CreateFormFile(field, "clip.webm")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if language != "" {
		if err := mw.WriteField("language", language); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/voice/transcribe", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestTranscribe(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name     string
		field    string
		data     []byte
		result   string
		err      error
		wantCode int
		wantBody string
	}{
		{name: "ok", field: "audio", data: []byte("RIFF"), result: "when is my exam", wantCode: http.StatusOK, wantBody: "when is my exam"},
		{name: "missing file", field: "", wantCode: http.StatusBadRequest, wantBody: "Audio file is required"},
		{name: "empty audio", field: "audio", data: []byte("x"), err: stt.ErrEmptyAudio, wantCode: http.StatusBadRequest, wantBody: "Audio file is empty"},
		{name: "upstream down", field: "audio", data: []byte("RIFF"), err: errors.Join(stt.ErrUpstream, errors.New("503")), wantCode: http.StatusBadGateway, wantBody: "Speech-to-text service unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got stt.Audio
			h := New(log, &transcriberMock{transcribe: func(_ context.Context, a stt.Audio) (string, error) {
				got = a
				return tt.result, tt.err
			}})

			rec := httptest.NewRecorder()
			h(rec, upload(t, tt.field, tt.data, "en"))

			if rec.Code != tt.wantCode {
				t.Fatalf("status %d, want %d: %s", rec.Code, tt.wantCode, rec.Body)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Fatalf("body %s does not contain %q", rec.Body, tt.wantBody)
			}
			if tt.wantCode == http.StatusOK && (got.Filename != "clip.webm" || got.Language != "en") {
				t.Fatalf("unexpected audio passed: %+v", got)
			}
		})
	}
}
