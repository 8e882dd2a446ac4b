// Package assistant calls the external campus AI query service.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"campus_echo/internal/config"

	"github.com/sony/gobreaker"
)

var (
	ErrEmptyResponse = errors.New("assistant returned an empty response")
	ErrUpstream      = errors.New("assistant upstream error")
)

type Answer struct {
	Response string
	Intent   string
}

type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
}

type queryRequest struct {
	UserID int64  `json:"userId"`
	Query  string `json:"query"`
}

type queryResponse struct {
	Response *string `json:"response"`
	Intent   string  `json:"intent"`
	Data     *struct {
		Response *string `json:"response"`
		Intent   string  `json:"intent"`
	} `json:"data"`
}

func New(log *slog.Logger, cfg config.Assistant) *Client {
	st := gobreaker.Settings{
		Name:        "assistant",
		MaxRequests: 1,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		cb:      gobreaker.NewCircuitBreaker(st),
	}
}

// * Ask отправляет запрос пользователя в AI сервис через circuit breaker
func (c *Client) Ask(ctx context.Context, accountID int64, query string) (Answer, error) {
	const op = "clients.assistant.Ask"

	res, err := c.cb.Execute(func() (interface{}, error) {
		return c.do(ctx, accountID, query)
	})
	if err != nil {
		return Answer{}, fmt.Errorf("%s: %w", op, err)
	}

	return res.(Answer), nil
}

func (c *Client) do(ctx context.Context, accountID int64, query string) (Answer, error) {
	body, err := json.Marshal(queryRequest{UserID: accountID, Query: query})
	if err != nil {
		return Answer{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return Answer{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Answer{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Answer{}, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Answer{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	answer := Answer{Intent: out.Intent}
	if out.Response != nil {
		answer.Response = *out.Response
	}
	if out.Data != nil {
		answer.Intent = out.Data.Intent
		if out.Data.Response != nil {
			answer.Response = *out.Data.Response
		}
	}

	if strings.TrimSpace(answer.Response) == "" {
		return Answer{}, ErrEmptyResponse
	}

	return answer, nil
}
