package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/foliochat/folio-chat-ui/internal/models"
)

// Assistant talks to the portfolio chat backend over HTTP. It sends one request per chat turn,
// classifies the response, and decodes the streamed reply body into stream events. It implements
// the chat.Assistant interface.
type Assistant struct {
	baseURL string

	frameDelay time.Duration

	client *http.Client

	logger *slog.Logger
}

type chatRequest struct {
	Message   string        `json:"message"`
	Messages  []chatMessage `json:"messages"`
	SessionID string        `json:"session_id"`
	Timestamp float64       `json:"timestamp"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type rateLimitResponse struct {
	FriendlyMessage string `json:"friendly_message"`
	RetryAfter      int    `json:"retry_after"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// RateLimit describes a turn the backend refused because the visitor is sending too quickly.
type RateLimit struct {
	// Message is the user-facing explanation supplied by the backend, or a default one.
	Message string
	// RetryAfter is the advised wait in seconds before the next attempt.
	RetryAfter int
}

// SendOutcome is the classified result of a successful request/response exchange. Exactly one of
// RateLimit and Body is set.
type SendOutcome struct {
	RateLimit *RateLimit
	Body      io.ReadCloser
}

const defaultRateLimitMessage = "You've reached the rate limit. Please wait before sending more messages."

// NewAssistant creates an Assistant for the chat backend at baseURL. frameDelay is slept between
// decoded stream frames so the widget renders smooth incremental typing; tests pass zero.
func NewAssistant(baseURL string, frameDelay time.Duration, logger *slog.Logger) Assistant {
	return Assistant{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		frameDelay: frameDelay,
		client:     &http.Client{},
		logger:     logger.With(slog.String("module", "assistant")),
	}
}

// Send issues the chat request and classifies the response. On 2xx it hands back the raw streamable
// body for the decoder to consume. On 429 it returns a classified rate limit instead of an error.
// Any other status, and any network-level failure, is returned as an error carrying the backend's
// detail message when one is available. Messages still receiving streamed content are stripped from
// the history before transmission, and every message is reduced to role and content on the wire.
func (a Assistant) Send(
	ctx context.Context,
	message string,
	history []models.Message,
	sessionID string,
) (SendOutcome, error) {
	msgs := make([]chatMessage, 0, len(history))
	for _, m := range history {
		if m.Typing() {
			continue
		}
		msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	reqBody := chatRequest{
		Message:   message,
		Messages:  msgs,
		SessionID: sessionID,
		Timestamp: float64(time.Now().UnixMilli()) / 1000,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return SendOutcome{}, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat", bytes.NewBuffer(jsonBody))
	if err != nil {
		return SendOutcome{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return SendOutcome{}, fmt.Errorf("error sending request: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		defer resp.Body.Close()

		rl := RateLimit{Message: defaultRateLimitMessage}
		var body rateLimitResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
			if body.FriendlyMessage != "" {
				rl.Message = body.FriendlyMessage
			}
			rl.RetryAfter = body.RetryAfter
		}
		return SendOutcome{RateLimit: &rl}, nil
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()

		detail := "failed to send message"
		var body errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Detail != "" {
			detail = body.Detail
		}
		return SendOutcome{}, fmt.Errorf("chat backend returned %d: %s", resp.StatusCode, detail)
	}

	return SendOutcome{Body: resp.Body}, nil
}

// Chat runs one full turn against the backend: it sends the request and yields decoded stream
// events. A rate-limited turn yields a single rate-limited event; a streamed reply yields chunk
// events followed by a complete event. Transport and decode failures are yielded as errors and
// terminate the sequence.
func (a Assistant) Chat(
	ctx context.Context,
	message string,
	history []models.Message,
	sessionID string,
	stop func() bool,
) iter.Seq2[models.StreamEvent, error] {
	return func(yield func(models.StreamEvent, error) bool) {
		outcome, err := a.Send(ctx, message, history, sessionID)
		if err != nil {
			yield(models.StreamEvent{}, err)
			return
		}

		if outcome.RateLimit != nil {
			yield(models.StreamEvent{
				Kind:       models.StreamEventRateLimited,
				Content:    outcome.RateLimit.Message,
				RetryAfter: outcome.RateLimit.RetryAfter,
			}, nil)
			return
		}

		defer outcome.Body.Close()

		for ev, err := range DecodeStream(outcome.Body, stop, a.frameDelay, a.logger) {
			if !yield(ev, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}
