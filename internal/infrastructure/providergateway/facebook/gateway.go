// Package facebook binds the social-platform payments system to the provider
// gateway contract. Checkout runs in the platform's client-side dialog; this
// side only reads order state through the Graph API.
package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/jaxspot/billing/internal/application/subscription/providergateway"
	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
	"github.com/jaxspot/billing/internal/shared/config"
	"github.com/jaxspot/billing/internal/shared/logger"
	"github.com/jaxspot/billing/internal/shared/utils/logutil"
)

// Maximum Graph API response body read (64KB)
const maxGraphResponseSize = 64 << 10

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Gateway implements providergateway.Gateway for Facebook payments.
type Gateway struct {
	graphURL   string
	httpClient *http.Client
	logger     logger.Interface
}

// NewGateway builds a gateway authenticating with an app access token
// obtained through the client credentials grant.
func NewGateway(cfg config.FacebookConfig, logger logger.Interface) *Gateway {
	graphURL := strings.TrimRight(cfg.GraphURL, "/")

	cc := &clientcredentials.Config{
		ClientID:     cfg.AppID,
		ClientSecret: cfg.AppSecret,
		TokenURL:     graphURL + "/oauth/access_token",
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	base := &http.Client{Timeout: cfg.Timeout()}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := cc.Client(ctx)
	client.Timeout = cfg.Timeout()

	return &Gateway{
		graphURL:   graphURL,
		httpClient: client,
		logger:     logger,
	}
}

var _ providergateway.Gateway = (*Gateway)(nil)

func (g *Gateway) Provider() vo.Provider {
	return vo.ProviderFacebook
}

// AcquirePurchaseURL always fails: orders are opened by the client-side pay
// dialog and reported back through the payments callback.
func (g *Gateway) AcquirePurchaseURL(_ context.Context, _ providergateway.ClientContext, _ string) providergateway.PurchaseResult {
	return providergateway.PurchaseFailed(providergateway.ReasonClientSideCheckout)
}

func (g *Gateway) QueryStatus(ctx context.Context, code string) vo.SubscriptionStatus {
	if code == "" {
		return vo.StatusUnknown
	}

	order, err := g.fetchOrder(ctx, code)
	if err != nil {
		g.logger.Errorw("failed to get facebook order status", "order_id", code, "error", err)
		return vo.StatusUnknown
	}

	status := mapOrderStatus(order.Status)
	if status == vo.StatusUnknown {
		g.logger.Warnw("unknown facebook order status", "order_id", code, "status", order.Status)
	}
	return status
}

// RequestCancellation succeeds without a provider round-trip. Orders are
// one-off purchases, so there is no recurring charge to stop.
func (g *Gateway) RequestCancellation(_ context.Context, code string) providergateway.CancellationResult {
	g.logger.Debugw("facebook order cancellation is local only", "order_id", code)
	return providergateway.CancellationResult{Success: true}
}

func (g *Gateway) fetchOrder(ctx context.Context, code string) (*orderResponse, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=%s", g.graphURL, url.PathEscape(code), url.QueryEscape("id,status"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", providergateway.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxGraphResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", providergateway.ErrProviderUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		var gErr graphError
		if json.Unmarshal(data, &gErr) == nil && gErr.Error.Message != "" {
			return nil, fmt.Errorf("%w: graph error %d: %s", providergateway.ErrProviderUnavailable, gErr.Error.Code, gErr.Error.Message)
		}
		return nil, fmt.Errorf("%w: http %d: %s", providergateway.ErrProviderUnavailable, resp.StatusCode, logutil.TruncateForLog(string(data), 256))
	}

	var order orderResponse
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("%w: decode order: %v", providergateway.ErrProviderUnavailable, err)
	}
	return &order, nil
}

func mapOrderStatus(raw string) vo.SubscriptionStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "settled":
		return vo.StatusActive
	case "placed", "reserved":
		return vo.StatusPending
	case "refunded", "canceled", "cancelled", "disputed":
		return vo.StatusCanceled
	default:
		return vo.StatusUnknown
	}
}
