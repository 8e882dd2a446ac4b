package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"campus_echo/internal/clients/assistant"
	sl "campus_echo/internal/lib/logger"
	"campus_echo/internal/lib/metrics"
	"campus_echo/internal/models"
)

const HistoryLimit = 20

var ErrEmptyQuery = errors.New("query cannot be empty")

type QueryStore interface {
	SaveVoiceQuery(ctx context.Context, q models.VoiceQuery) (int64, error)
	UpdateVoiceQuery(ctx context.Context, id int64, response, queryType string) error
	VoiceQueries(ctx context.Context, accountID int64, limit int) ([]models.VoiceQuery, error)
}

type Assistant interface {
	Ask(ctx context.Context, accountID int64, query string) (assistant.Answer, error)
}

type Service struct {
	log       *slog.Logger
	store     QueryStore
	assistant Assistant
	timeout   time.Duration
	now       func() time.Time
}

type Result struct {
	QueryID  int64  `json:"queryId"`
	Query    string `json:"query"`
	Response string `json:"response"`
}

// New builds the query responder. ai may be nil; canned responses are used then.
func New(log *slog.Logger, store QueryStore, ai Assistant, timeout time.Duration) *Service {
	return &Service{
		log:       log,
		store:     store,
		assistant: ai,
		timeout:   timeout,
		now:       time.Now,
	}
}

// * ProcessQuery сохраняет запрос, получает ответ от AI сервиса или из локальных ответов
func (s *Service) ProcessQuery(ctx context.Context, accountID int64, query string) (Result, error) {
	const op = "voice.ProcessQuery"

	log := s.log.With(
		slog.String("op", op),
		slog.Int64("account_id", accountID),
	)

	if strings.TrimSpace(query) == "" {
		return Result{}, ErrEmptyQuery
	}

	queryType := Classify(query)

	id, err := s.store.SaveVoiceQuery(ctx, models.VoiceQuery{
		AccountID:   accountID,
		Query:       query,
		QueryType:   queryType,
		ProcessedAt: s.now(),
	})
	if err != nil {
		log.Error("failed to save query", sl.Err(err))
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	response, source := "", "canned"

	if s.assistant != nil {
		actx, cancel := context.WithTimeout(ctx, s.timeout)
		answer, err := s.assistant.Ask(actx, accountID, query)
		cancel()

		if err != nil {
			log.Warn("assistant unavailable, falling back to local responses", sl.Err(err))
		} else {
			response, source = answer.Response, "assistant"
			if intent := strings.ToUpper(strings.TrimSpace(answer.Intent)); intent != "" {
				queryType = intent
			}
		}
	}

	if response == "" {
		response = CannedResponse(query)
	}

	// the row is completed even if the client went away meanwhile
	if err := s.store.UpdateVoiceQuery(context.WithoutCancel(ctx), id, response, queryType); err != nil {
		log.Error("failed to save response", sl.Err(err))
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	metrics.VoiceQueries.WithLabelValues(queryType, source).Inc()

	return Result{
		QueryID:  id,
		Query:    query,
		Response: response,
	}, nil
}

// * GetHistory возвращает последние запросы аккаунта, новые первыми
func (s *Service) GetHistory(ctx context.Context, accountID int64) ([]models.VoiceQuery, error) {
	const op = "voice.GetHistory"

	queries, err := s.store.VoiceQueries(ctx, accountID, HistoryLimit)
	if err != nil {
		s.log.Error("failed to fetch history", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return queries, nil
}
