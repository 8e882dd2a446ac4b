package voice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"campus_echo/internal/clients/assistant"
	"campus_echo/internal/models"
	"campus_echo/internal/storage/memory"
)

type assistantMock struct {
	AskFunc func(ctx context.Context, accountID int64, query string) (assistant.Answer, error)
}

func (m *assistantMock) Ask(ctx context.Context, accountID int64, query string) (assistant.Answer, error) {
	return m.AskFunc(ctx, accountID, query)
}

type countingStore struct {
	*memory.Repo
	saves int
}

func (c *countingStore) SaveVoiceQuery(ctx context.Context, q models.VoiceQuery) (int64, error) {
	c.saves++
	return c.Repo.SaveVoiceQuery(ctx, q)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"Any new NOTICES?", TypeNotice},
		{"what is due this week", TypeDeadline},
		{"What's today's exam schedule?", TypeExam},
		{"my class timings", TypeSchedule},
		{"upcoming events", TypeEvent},
		{"add a task", TypeTask},
		{"weather today", TypeWeather},
		{"solve 2x=4", TypeCalculate},
		{"summarize this", TypeSummarize},
		{"play youtube", TypeYouTube},
		{"tell me a joke", TypeJoke},
		{"hello there", TypeGeneral},
		{"notice about the exam deadline", TypeNotice},
	}

	for _, tt := range tests {
		if got := Classify(tt.query); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.query, got, tt.want)
		}
	}
}

func TestProcessQueryExamWithoutAssistant(t *testing.T) {
	repo := memory.New()
	svc := New(discard(), repo, nil, time.Second)

	res, err := svc.ProcessQuery(context.Background(), 1, "What's today's exam schedule?")
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}

	if res.Response != canned[TypeExam] {
		t.Fatalf("unexpected response %q", res.Response)
	}

	hist, err := repo.VoiceQueries(context.Background(), 1, 10)
	if err != nil || len(hist) != 1 {
		t.Fatalf("expected one stored row, got %v %v", hist, err)
	}
	if hist[0].QueryType != TypeExam || hist[0].Response == nil || *hist[0].Response != res.Response {
		t.Fatalf("stored row not completed: %+v", hist[0])
	}
}

func TestProcessQueryEcho(t *testing.T) {
	svc := New(discard(), memory.New(), nil, time.Second)

	res, err := svc.ProcessQuery(context.Background(), 1, "hello")
	if err != nil {
		t.Fatal(err)
	}

	want := `I understood: "hello". How can I help you with campus information?`
	if res.Response != want {
		t.Fatalf("got %q, want %q", res.Response, want)
	}
}

func TestProcessQueryEmptyBeforePersistence(t *testing.T) {
	store := &countingStore{Repo: memory.New()}
	svc := New(discard(), store, nil, time.Second)

	for _, q := range []string{"", "   \t\n"} {
		if _, err := svc.ProcessQuery(context.Background(), 1, q); !errors.Is(err, ErrEmptyQuery) {
			t.Fatalf("expected ErrEmptyQuery for %q, got %v", q, err)
		}
	}

	if store.saves != 0 {
		t.Fatalf("nothing must be persisted, saves=%d", store.saves)
	}
}

func TestProcessQueryUsesAssistant(t *testing.T) {
	repo := memory.New()
	ai := &assistantMock{AskFunc: func(ctx context.Context, accountID int64, query string) (assistant.Answer, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("assistant call must carry a deadline")
		}
		return assistant.Answer{Response: "Library closes at 8 PM.", Intent: " library "}, nil
	}}
	svc := New(discard(), repo, ai, time.Second)

	res, err := svc.ProcessQuery(context.Background(), 5, "when does the library close")
	if err != nil {
		t.Fatal(err)
	}
	if res.Response != "Library closes at 8 PM." {
		t.Fatalf("unexpected response %q", res.Response)
	}

	hist, _ := repo.VoiceQueries(context.Background(), 5, 1)
	if hist[0].QueryType != "LIBRARY" {
		t.Fatalf("intent should override query type, got %s", hist[0].QueryType)
	}
}

func TestProcessQueryFallsBackOnAssistantFailure(t *testing.T) {
	ai := &assistantMock{AskFunc: func(ctx context.Context, _ int64, _ string) (assistant.Answer, error) {
		<-ctx.Done()
		return assistant.Answer{}, ctx.Err()
	}}
	svc := New(discard(), memory.New(), ai, 20*time.Millisecond)

	res, err := svc.ProcessQuery(context.Background(), 1, "any event this week?")
	if err != nil {
		t.Fatal(err)
	}
	if res.Response != canned[TypeEvent] {
		t.Fatalf("expected canned event response, got %q", res.Response)
	}
}

func TestGetHistoryLimitOrderScope(t *testing.T) {
	repo := memory.New()
	svc := New(discard(), repo, nil, time.Second)

	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	step := 0
	svc.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}

	for i := 0; i < 25; i++ {
		if _, err := svc.ProcessQuery(context.Background(), 1, "exam"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.ProcessQuery(context.Background(), 2, "other account"); err != nil {
		t.Fatal(err)
	}

	hist, err := svc.GetHistory(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != HistoryLimit {
		t.Fatalf("expected %d rows, got %d", HistoryLimit, len(hist))
	}
	for i, q := range hist {
		if q.AccountID != 1 {
			t.Fatalf("row of another account returned: %+v", q)
		}
		if i > 0 && !q.ProcessedAt.Before(hist[i-1].ProcessedAt) {
			t.Fatalf("rows not strictly descending at %d", i)
		}
	}
}
