// Package mpulse binds the mobile-carrier WAP billing gateway, a SOAP 1.1
// service, to the provider gateway contract.
package mpulse

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/jaxspot/billing/internal/application/subscription/providergateway"
	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
	"github.com/jaxspot/billing/internal/shared/config"
	"github.com/jaxspot/billing/internal/shared/logger"
	"github.com/jaxspot/billing/internal/shared/utils/logutil"
)

const logPayloadLimit = 2048

// Gateway implements providergateway.Gateway for mPulse.
type Gateway struct {
	client      *soapClient
	product     string
	callbackURL string
	queries     singleflight.Group
	logger      logger.Interface
}

func NewGateway(cfg config.MPulseConfig, logger logger.Interface) *Gateway {
	return &Gateway{
		client:      newSOAPClient(cfg),
		product:     cfg.Product,
		callbackURL: cfg.CallbackURL,
		logger:      logger,
	}
}

var _ providergateway.Gateway = (*Gateway)(nil)

func (g *Gateway) Provider() vo.Provider {
	return vo.ProviderMPulse
}

// AcquirePurchaseURL opens a carrier-billed subscription. The gateway sends
// the user back to the callback URL with the subscription id as tid.
func (g *Gateway) AcquirePurchaseURL(ctx context.Context, client providergateway.ClientContext, reference string) providergateway.PurchaseResult {
	body, err := g.client.call(ctx, startSubscriptionRequest{
		Name:        g.product,
		IPAddress:   client.RemoteAddr,
		RedirectURL: g.callbackURL + "?provider=" + vo.ProviderMPulse.String(),
		Operator:    client.Operator,
		Reference:   reference,
	})
	if err != nil {
		g.logCallError("failed to start mpulse subscription", err, "client_ip", client.RemoteAddr, "reference", reference)
		return providergateway.PurchaseFailed(providergateway.ReasonUnavailable)
	}

	if body.Fault != nil {
		g.logger.Warnw("mpulse refused subscription",
			"client_ip", client.RemoteAddr,
			"operator", client.Operator,
			"fault", body.Fault.FaultString,
		)
		return providergateway.PurchaseFailed(providergateway.ReasonRejected)
	}

	if body.Start == nil || body.Start.ID == "" || body.Start.RedirectURL == "" {
		g.logger.Errorw("mpulse start response missing subscription id or redirect url", "reference", reference)
		return providergateway.PurchaseFailed(providergateway.ReasonInvalidResponse)
	}

	return providergateway.PurchaseSucceeded(body.Start.ID, body.Start.RedirectURL)
}

// QueryStatus never fails. A SOAP fault means the gateway does not know the
// subscription yet and is reported as pending.
func (g *Gateway) QueryStatus(ctx context.Context, code string) vo.SubscriptionStatus {
	if code == "" {
		return vo.StatusUnknown
	}

	v, _, _ := g.queries.Do(code, func() (interface{}, error) {
		return g.queryStatus(ctx, code), nil
	})
	return v.(vo.SubscriptionStatus)
}

func (g *Gateway) queryStatus(ctx context.Context, code string) vo.SubscriptionStatus {
	body, err := g.client.call(ctx, subscriptionStatusRequest{SubscriptionID: code})
	if err != nil {
		g.logCallError("failed to get mpulse subscription status", err, "subscription_id", code)
		return vo.StatusUnknown
	}

	if body.Fault != nil {
		g.logger.Debugw("mpulse status fault, treating as pending", "subscription_id", code, "fault", body.Fault.FaultString)
		return vo.StatusPending
	}

	if body.Status == nil {
		g.logger.Errorw("mpulse status response has no status element", "subscription_id", code)
		return vo.StatusUnknown
	}

	status := mapStatus(body.Status.Status)
	if status == vo.StatusUnknown {
		g.logger.Errorw("unknown mpulse subscription status", "subscription_id", code, "status", body.Status.Status)
	}
	return status
}

func (g *Gateway) RequestCancellation(ctx context.Context, code string) providergateway.CancellationResult {
	body, err := g.client.call(ctx, cancelSubscriptionRequest{SubscriptionID: code})
	if err != nil {
		g.logCallError("failed to cancel mpulse subscription", err, "subscription_id", code)
		return providergateway.CancellationResult{Reason: providergateway.ReasonUnavailable}
	}

	if body.Fault != nil {
		g.logger.Errorw("mpulse cancel subscription fault", "subscription_id", code, "fault", body.Fault.FaultString)
		return providergateway.CancellationResult{Reason: providergateway.ReasonRejected}
	}

	result := providergateway.CancellationResult{Success: true}
	if body.Cancel != nil {
		result.PendingRedirectURL = body.Cancel.RedirectURL
	}
	return result
}

func (g *Gateway) logCallError(msg string, err error, keysAndValues ...interface{}) {
	keysAndValues = append(keysAndValues, "error", err)
	var respErr *responseError
	if errors.As(err, &respErr) {
		keysAndValues = append(keysAndValues, "payload", logutil.TruncateForLog(string(respErr.data), logPayloadLimit))
	}
	g.logger.Errorw(msg, keysAndValues...)
}
