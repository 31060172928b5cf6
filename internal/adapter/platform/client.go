// Package platform is the outbound HTTP adapter for confirmation calls
// against the marketplace REST API: create-message, toggle-like and the
// authoritative fetches the reconciler corrects cache views from.
//
// Every request is idempotent-by-id or safely retriable, runs under a
// circuit breaker, and maps HTTP failures onto the domain error taxonomy
// (401/403 -> ErrAuthExpired, everything else -> RemoteCallError).
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hirelink/realtime-gateway/internal/domain/model"
)

const tracerName = "hirelink.realtime-gateway/platform"

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type Client struct {
	logger  *slog.Logger
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	tracer  trace.Tracer
	baseURL string
	token   string
}

func NewClient(logger *slog.Logger, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "platform-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("BREAKER_STATE_CHANGED",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &Client{
		logger:  logger.With(slog.String("component", "platform")),
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		tracer:  otel.Tracer(tracerName),
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
	}
}

// CreateMessage posts a new chat message and returns the server-assigned
// entity. Quick-apply reuses this as an "apply to company" send.
func (c *Client) CreateMessage(ctx context.Context, recipientID int64, content string) (*model.Message, error) {
	body := map[string]any{
		"recipient_id": recipientID,
		"content":      content,
	}
	var out model.Message
	if err := c.call(ctx, "create-message", http.MethodPost, "/api/v1/messages", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ToggleLike flips the viewer's like on a publication and returns the
// authoritative like state, the reconcile target for the optimistic toggle.
func (c *Client) ToggleLike(ctx context.Context, publicationID int64) (model.LikeState, error) {
	var out model.LikeState
	path := fmt.Sprintf("/api/v1/publications/%d/like", publicationID)
	if err := c.call(ctx, "toggle-like", http.MethodPost, path, nil, &out); err != nil {
		return model.LikeState{}, err
	}
	return out, nil
}

// PendingApplications returns the authoritative count of outstanding
// applications for the viewer.
func (c *Client) PendingApplications(ctx context.Context) (int64, error) {
	var out struct {
		Total int64 `json:"total"`
	}
	if err := c.call(ctx, "fetch-pending-applications", http.MethodGet, "/api/v1/applications/pending/count", nil, &out); err != nil {
		return 0, err
	}
	return out.Total, nil
}

// PeerContact fetches the raw contact record for a peer. The caller redacts
// fields before anything reaches a renderer; this adapter never masks.
func (c *Client) PeerContact(ctx context.Context, peerID int64) (model.PeerContact, error) {
	var out model.PeerContact
	path := fmt.Sprintf("/api/v1/users/%d/contact", peerID)
	if err := c.call(ctx, "fetch-peer-contact", http.MethodGet, path, nil, &out); err != nil {
		return model.PeerContact{}, err
	}
	return out, nil
}

// Conversations fetches the authoritative conversation list used to seed the
// index on startup and to audit unread drift.
func (c *Client) Conversations(ctx context.Context) ([]model.Conversation, error) {
	var out struct {
		Conversations []model.Conversation `json:"conversations"`
	}
	if err := c.call(ctx, "fetch-conversations", http.MethodGet, "/api/v1/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

func (c *Client) call(ctx context.Context, op, method, path string, in, out any) error {
	ctx, span := c.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	))
	defer span.End()

	payload, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, op, method, path, in)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &model.RemoteCallError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, &model.RemoteCallError{Op: op, Err: err}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &model.RemoteCallError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, &model.RemoteCallError{Op: op, Err: err}
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, &model.RemoteCallError{Op: op, Err: err}
	}

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s: %w", op, model.ErrAuthExpired)
	case res.StatusCode >= 300:
		return nil, &model.RemoteCallError{
			Op:     op,
			Status: res.StatusCode,
			Err:    fmt.Errorf("unexpected status"),
		}
	}
	return payload, nil
}
