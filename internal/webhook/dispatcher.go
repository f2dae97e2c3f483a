// Package webhook pushes canonical events to the external sink. One
// POST per event, routed by kind, strictly best-effort: a failing or
// slow sink never reaches back into the session.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/heitorfr/wahook/internal/event"
)

// Endpoints maps event kinds to sink URLs. Unknown kinds fall back to
// the message endpoint.
type Endpoints struct {
	Message  string
	Receipt  string
	Presence string
	Media    string
}

// URLFor selects the sink URL for a kind.
func (e Endpoints) URLFor(kind event.Kind) string {
	switch kind {
	case event.KindReceipt:
		return e.Receipt
	case event.KindPresence:
		return e.Presence
	case event.KindMedia:
		return e.Media
	default:
		return e.Message
	}
}

// Dispatcher delivers canonical events over HTTP. It never propagates
// failure to its caller: errors are logged and the event is dropped.
type Dispatcher struct {
	endpoints Endpoints
	client    *http.Client
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher with the given sink endpoints.
func NewDispatcher(endpoints Endpoints, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		endpoints: endpoints,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// Dispatch launches a best-effort delivery of payload to the endpoint
// for kind and returns immediately. The outcome is only logged.
func (d *Dispatcher) Dispatch(kind event.Kind, payload any) {
	go func() {
		if err := d.post(context.Background(), kind, payload); err != nil {
			d.logger.Warn("webhook push failed",
				zap.String("kind", string(kind)),
				zap.Error(err))
		}
	}()
}

// post performs one synchronous delivery attempt. No retries.
func (d *Dispatcher) post(ctx context.Context, kind event.Kind, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	url := d.endpoints.URLFor(kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: sink returned %s", url, resp.Status)
	}
	return nil
}
