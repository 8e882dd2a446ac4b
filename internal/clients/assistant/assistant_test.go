package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campus_echo/internal/config"

	"github.com/sony/gobreaker"
)

func newClient(url string) *Client {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), config.Assistant{
		URL:         url,
		Timeout:     time.Second,
		MaxFailures: 2,
		OpenFor:     time.Minute,
	})
}

func TestAskReadsNestedAndFlatBodies(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantText   string
		wantIntent string
	}{
		{name: "nested", body: `{"data":{"response":"Exam on Monday","intent":"exam"}}`, wantText: "Exam on Monday", wantIntent: "exam"},
		{name: "flat", body: `{"response":"Hello","intent":""}`, wantText: "Hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/query" || r.Method != http.MethodPost {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}

				var req queryRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("decode: %v", err)
				}
				if req.UserID != 42 || req.Query != "when is my exam" {
					t.Errorf("unexpected payload: %+v", req)
				}

				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			ans, err := newClient(srv.URL+"/").Ask(context.Background(), 42, "when is my exam")
			if err != nil {
				t.Fatalf("Ask: %v", err)
			}
			if ans.Response != tt.wantText || ans.Intent != tt.wantIntent {
				t.Fatalf("got %+v", ans)
			}
		})
	}
}

func TestAskFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom", want: ErrUpstream},
		{name: "empty response", status: http.StatusOK, body: `{"data":{"response":"  "}}`, want: ErrEmptyResponse},
		{name: "bad json", status: http.StatusOK, body: `not json`, want: ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newClient(srv.URL).Ask(context.Background(), 1, "q")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newClient(srv.URL)

	for i := 0; i < 2; i++ {
		if _, err := c.Ask(context.Background(), 1, "q"); err == nil {
			t.Fatal("expected failure")
		}
	}

	_, err := c.Ask(context.Background(), 1, "q")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("open breaker must not call upstream, calls=%d", calls)
	}
}
