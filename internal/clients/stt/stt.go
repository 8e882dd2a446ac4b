// Package stt transcribes audio through an OpenAI-compatible transcription API.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"campus_echo/internal/config"
)

var (
	ErrNotConfigured   = errors.New("speech-to-text is not configured")
	ErrEmptyAudio      = errors.New("audio is empty")
	ErrEmptyTranscript = errors.New("transcription returned an empty transcript")
	ErrUpstream        = errors.New("speech-to-text upstream error")
)

type Audio struct {
	Data        []byte
	Filename    string
	ContentType string
	Language    string
}

type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

func New(cfg config.STT) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) Transcribe(ctx context.Context, audio Audio) (string, error) {
	const op = "clients.stt.Transcribe"

	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	if len(audio.Data) == 0 {
		return "", ErrEmptyAudio
	}

	body, contentType, err := c.form(audio)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%s: %w: status %d: %s", op, ErrUpstream, resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, ErrUpstream, err)
	}

	if strings.TrimSpace(out.Text) == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyTranscript)
	}

	return out.Text, nil
}

func (c *Client) form(audio Audio) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := audio.Filename
	if filename == "" {
		filename = "audio.webm"
	}
	contentType := audio.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", err
	}

	if err := w.WriteField("model", c.model); err != nil {
		return nil, "", err
	}
	if audio.Language != "" {
		if err := w.WriteField("language", audio.Language); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
