// Package providergateway defines the capability set every external billing
// provider binding implements, and the helpers built on top of it.
package providergateway

import (
	"context"
	"errors"

	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
)

var (
	// ErrProviderUnavailable marks transport or parse failures inside a gateway.
	// Gateways convert it to StatusUnknown or a failed result before returning.
	ErrProviderUnavailable = errors.New("billing provider unavailable")
	ErrWaitTimeout         = errors.New("timed out waiting for provider status")
	ErrUnsupportedProvider = errors.New("unsupported billing provider")
)

// Gateway is implemented once per billing provider. No method returns a
// transport error: failures are folded into the result types.
type Gateway interface {
	Provider() vo.Provider

	// AcquirePurchaseURL asks the provider to open a purchase. It changes no
	// local state; the caller records the pending subscription on success.
	AcquirePurchaseURL(ctx context.Context, client ClientContext, reference string) PurchaseResult

	// QueryStatus returns StatusActive, StatusCanceled, StatusPending or
	// StatusUnknown. StatusUnknown means no evidence either way.
	QueryStatus(ctx context.Context, code string) vo.SubscriptionStatus

	RequestCancellation(ctx context.Context, code string) CancellationResult
}

// ClientContext describes the end user's request that triggered a purchase.
type ClientContext struct {
	RemoteAddr string
	UserAgent  string
	// Operator is the carrier or partner code the member signed up through.
	Operator string
	MemberID uint
}

// PurchaseResult is either a success carrying the provider's code and the
// URL the user must visit, or a failure with a reason code.
type PurchaseResult struct {
	Code        string
	RedirectURL string
	Reason      string
}

func PurchaseSucceeded(code, redirectURL string) PurchaseResult {
	return PurchaseResult{Code: code, RedirectURL: redirectURL}
}

func PurchaseFailed(reason string) PurchaseResult {
	return PurchaseResult{Reason: reason}
}

func (r PurchaseResult) OK() bool {
	return r.Reason == "" && r.Code != ""
}

// CancellationResult reports the provider's answer to a cancellation request.
// A non-empty PendingRedirectURL means the user must confirm out of band and
// the local cancel must wait for a later confirmation.
type CancellationResult struct {
	Success            bool
	PendingRedirectURL string
	Reason             string
}

func (r CancellationResult) NeedsConfirmation() bool {
	return r.Success && r.PendingRedirectURL != ""
}

// Reason codes reported in failed results.
const (
	ReasonUnavailable        = "provider_unavailable"
	ReasonRejected           = "provider_rejected"
	ReasonClientSideCheckout = "client_side_checkout"
	ReasonInvalidResponse    = "invalid_response"
)
