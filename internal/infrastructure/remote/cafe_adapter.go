// Package remote holds HTTP adapters to services outside this process.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/beataims/backend/internal/domain/inventory"
	"github.com/beataims/backend/internal/domain/shared"
)

// maxResponseSize caps how much of a webhook response is read (64KB). The
// receiver only ever answers with a small JSON acknowledgement.
const maxResponseSize = 64 * 1024

// ErrRemoteUnavailable indicates the downstream service did not accept the push.
var ErrRemoteUnavailable = shared.NewDomainError("REMOTE_UNAVAILABLE", "Downstream service unavailable")

// CafeAdapter implements sync.RemoteNotifier against the point-of-sale
// service's stock webhook. Calls are deliberately short-lived: a slow or
// dead receiver must never hold up the sales path longer than the timeout.
type CafeAdapter struct {
	webhookURL string
	httpClient *http.Client
}

// NewCafeAdapter creates a new CafeAdapter
func NewCafeAdapter(webhookURL string, timeout time.Duration) (*CafeAdapter, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CafeAdapter{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// PushStockUpdate posts one absolute stock snapshot to the webhook.
func (a *CafeAdapter) PushStockUpdate(ctx context.Context, snapshot inventory.StockChanged) error {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	// Drain a bounded amount so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: webhook returned status %d", ErrRemoteUnavailable, resp.StatusCode)
	}
	return nil
}
