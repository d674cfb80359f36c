// Package sink delivers events to an analytics backend.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Openpanel-dev/mock/internal/config"
	"github.com/Openpanel-dev/mock/internal/core"
)

var (
	// ErrUnavailable indicates the sink could not be reached or kept
	// answering with server errors after retries.
	ErrUnavailable = errors.New("event sink unavailable")

	// ErrRejected indicates the sink refused the event; retrying the same
	// payload will not help.
	ErrRejected = errors.New("event sink rejected event")
)

const (
	trackPath      = "/track"
	requestTimeout = 10 * time.Second
	maxRetries     = 3
)

// trackRequest is the OpenPanel track payload envelope.
type trackRequest struct {
	Type    string       `json:"type"`
	Payload trackPayload `json:"payload"`
}

type trackPayload struct {
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
}

// OpenPanel sends events to the OpenPanel track endpoint, authenticating
// with client credentials and attaching the visitor's client IP and user
// agent as request context headers. Safe for concurrent use.
type OpenPanel struct {
	cfg     config.SinkConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.SugaredLogger

	// retryInterval overrides the initial backoff interval in tests.
	retryInterval time.Duration
}

// NewOpenPanel creates the HTTP sink. A non-zero RPS config paces all
// outbound requests through a shared token bucket.
func NewOpenPanel(cfg config.SinkConfig, log *zap.SugaredLogger) *OpenPanel {
	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), cfg.RPS)
	}
	return &OpenPanel{
		cfg: cfg,
		client: &http.Client{
			Timeout: requestTimeout,
		},
		limiter: limiter,
		log:     log,
	}
}

// Track delivers one event. Transport failures and server errors are
// retried with exponential backoff before giving up with ErrUnavailable;
// client errors surface immediately as ErrRejected.
func (s *OpenPanel) Track(ctx context.Context, visitor *core.Visitor, name string, properties map[string]any) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	body, err := json.Marshal(trackRequest{
		Type: "track",
		Payload: trackPayload{
			Name:       name,
			Properties: properties,
		},
	})
	if err != nil {
		return fmt.Errorf("encoding track payload: %w", err)
	}

	operation := func() error {
		return s.send(ctx, visitor, body)
	}
	if err := backoff.Retry(operation, s.retryPolicy(ctx)); err != nil {
		return err
	}
	return nil
}

func (s *OpenPanel) retryPolicy(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	if s.retryInterval > 0 {
		bo.InitialInterval = s.retryInterval
	}
	return backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx)
}

func (s *OpenPanel) send(ctx context.Context, visitor *core.Visitor, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL+trackPath, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("openpanel-client-id", s.cfg.ClientID)
	req.Header.Set("openpanel-client-secret", s.cfg.ClientSecret)
	req.Header.Set("x-client-ip", visitor.IPAddress)
	req.Header.Set("User-Agent", visitor.UserAgent)
	if s.cfg.Origin != "" {
		req.Header.Set("Origin", s.cfg.Origin)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		s.log.Debugw("track request failed, will retry", "error", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		s.log.Debugw("track request got server error, will retry", "status", resp.StatusCode)
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode))
	}
}
