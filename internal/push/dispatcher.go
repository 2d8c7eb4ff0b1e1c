package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Notification is the payload handed to the external push service for
// users with no live connections.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Dispatcher delivers notifications to offline users. Delivery is best
// effort and never blocks or fails message fan-out.
type Dispatcher interface {
	NotifyOffline(ctx context.Context, userIDs []string, note Notification)
}

const dispatchTimeout = 10 * time.Second

type httpDispatcher struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewHTTPDispatcher posts notifications to the configured push relay
// endpoint. Failures are logged and otherwise swallowed.
func NewHTTPDispatcher(endpoint string, logger *zap.Logger) Dispatcher {
	return &httpDispatcher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: dispatchTimeout},
		logger:   logger,
	}
}

type pushRequest struct {
	UserIDs      []string     `json:"userIds"`
	Notification Notification `json:"notification"`
}

func (d *httpDispatcher) NotifyOffline(ctx context.Context, userIDs []string, note Notification) {
	if len(userIDs) == 0 {
		return
	}

	// Detach from the caller so a slow push relay cannot stall
	// broadcast delivery.
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		if err := d.post(sendCtx, pushRequest{UserIDs: userIDs, Notification: note}); err != nil {
			d.logger.Warn("Push dispatch failed",
				zap.Int("recipients", len(userIDs)),
				zap.Error(err))
		}
	}()
}

func (d *httpDispatcher) post(ctx context.Context, req pushRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode push request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to reach push relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("push relay responded with status %d", resp.StatusCode)
	}
	return nil
}

type nopDispatcher struct{}

// NewNopDispatcher is used when no push endpoint is configured.
func NewNopDispatcher() Dispatcher { return nopDispatcher{} }

func (nopDispatcher) NotifyOffline(context.Context, []string, Notification) {}
