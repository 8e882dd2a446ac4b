package stt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campus_echo/internal/config"
)

func TestTranscribeSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("language") != "en" {
			t.Errorf("unexpected fields: %v", r.MultipartForm.Value)
		}

		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("file part: %v", err)
		}
		defer f.Close()

		data, _ := io.ReadAll(f)
		if string(data) != "RIFF...." || hdr.Filename != "clip.wav" {
			t.Errorf("unexpected file %q %q", hdr.Filename, data)
		}
		if hdr.Header.Get("Content-Type") != "audio/wav" {
			t.Errorf("unexpected part content type %q", hdr.Header.Get("Content-Type"))
		}

		_, _ = w.Write([]byte(`{"text":"when is my next exam"}`))
	}))
	defer srv.Close()

	c := New(config.STT{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Model: "whisper-1", Timeout: time.Second})

	text, err := c.Transcribe(context.Background(), Audio{
		Data:        []byte("RIFF...."),
		Filename:    "clip.wav",
		ContentType: "audio/wav",
		Language:    "en",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "when is my next exam" {
		t.Fatalf("unexpected transcript %q", text)
	}
}

func TestTranscribeErrors(t *testing.T) {
	ctx := context.Background()

	if _, err := New(config.STT{}).Transcribe(ctx, Audio{Data: []byte("x")}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}

	c := New(config.STT{APIKey: "k", BaseURL: "http://127.0.0.1:0"})
	if _, err := c.Transcribe(ctx, Audio{}); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("expected ErrEmptyAudio, got %v", err)
	}

	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "upstream 500", status: http.StatusInternalServerError, body: `{"error":"x"}`, want: ErrUpstream},
		{name: "empty transcript", status: http.StatusOK, body: `{"text":"  "}`, want: ErrEmptyTranscript},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(config.STT{BaseURL: srv.URL, APIKey: "k", Model: "whisper-1", Timeout: time.Second})
			if _, err := c.Transcribe(ctx, Audio{Data: []byte("x")}); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
