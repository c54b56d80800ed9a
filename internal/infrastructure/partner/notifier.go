// Package partner notifies the subscriber partner about activations.
package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/jaxspot/billing/internal/domain/subscription"
	"github.com/jaxspot/billing/internal/shared/config"
	"github.com/jaxspot/billing/internal/shared/logger"
)

const (
	defaultTimeout = 5 * time.Second
	maxAttempts    = 3
	// Maximum response body size kept for logging (4KB)
	maxResponseSize = 4 << 10
)

// activationPayload is the JSON body posted to the partner.
type activationPayload struct {
	Event          string     `json:"event"`
	SubscriptionID uint       `json:"subscription_id"`
	MemberID       uint       `json:"member_id"`
	Provider       string     `json:"provider"`
	Code           string     `json:"code"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// HTTPNotifier posts activation events to the partner endpoint. Server
// errors are retried with exponential backoff; client errors are not.
type HTTPNotifier struct {
	url        string
	apiKey     string
	httpClient *http.Client
	backoff    func() backoff.BackOff
	logger     logger.Interface
}

func NewHTTPNotifier(cfg config.PartnerConfig, logger logger.Interface) *HTTPNotifier {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &HTTPNotifier{
		url:        cfg.NotifyURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		backoff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		logger: logger,
	}
}

// NotifyActivation posts the activation. A notifier without a URL is disabled.
func (n *HTTPNotifier) NotifyActivation(ctx context.Context, sub *subscription.Subscription) error {
	if n.url == "" {
		return nil
	}

	body, err := json.Marshal(activationPayload{
		Event:          "subscription.activated",
		SubscriptionID: sub.ID(),
		MemberID:       sub.MemberID(),
		Provider:       sub.Provider().String(),
		Code:           sub.Code(),
		ExpiresAt:      sub.ExpiresAt(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode partner payload: %w", err)
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, n.post(ctx, body)
	},
		backoff.WithBackOff(n.backoff()),
		backoff.WithMaxTries(maxAttempts),
	)
	if err != nil {
		return fmt.Errorf("failed to notify partner: %w", err)
	}

	n.logger.Debugw("partner notified of activation", "subscription_id", sub.ID())
	return nil
}

func (n *HTTPNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("partner request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	statusErr := fmt.Errorf("partner responded %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return statusErr
	}
	return backoff.Permanent(statusErr)
}
