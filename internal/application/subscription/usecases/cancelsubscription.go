package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jaxspot/billing/internal/application/subscription/providergateway"
	"github.com/jaxspot/billing/internal/domain/subscription"
	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
	apperrors "github.com/jaxspot/billing/internal/shared/errors"
	"github.com/jaxspot/billing/internal/shared/logger"
)

type CancelSubscriptionCommand struct {
	MemberID uint
	Provider vo.Provider
}

// CancelSubscriptionResult either reports a completed cancellation or
// carries the provider page where the member must confirm it.
type CancelSubscriptionResult struct {
	SubscriptionID uint
	Canceled       bool
	RedirectURL    string
}

// CancelSubscriptionUseCase cancels a member's live subscription on the
// provider side first, then locally.
type CancelSubscriptionUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	gateways         *providergateway.Registry
	confirmAttempts  int
	confirmInterval  time.Duration
	logger           logger.Interface
}

func NewCancelSubscriptionUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	gateways *providergateway.Registry,
	logger logger.Interface,
) *CancelSubscriptionUseCase {
	return &CancelSubscriptionUseCase{
		subscriptionRepo: subscriptionRepo,
		gateways:         gateways,
		logger:           logger,
	}
}

// SetConfirmation makes the use case poll the provider until it reports the
// subscription canceled before cancelling locally. attempts <= 0 disables it.
func (uc *CancelSubscriptionUseCase) SetConfirmation(attempts int, interval time.Duration) {
	uc.confirmAttempts = attempts
	uc.confirmInterval = interval
}

func (uc *CancelSubscriptionUseCase) Execute(ctx context.Context, cmd CancelSubscriptionCommand) (*CancelSubscriptionResult, error) {
	gw, err := uc.gateways.Get(cmd.Provider)
	if err != nil {
		return nil, apperrors.NewBadRequestError("unsupported provider", cmd.Provider.String())
	}

	sub, err := uc.subscriptionRepo.ActiveOrPendingFor(ctx, cmd.MemberID, cmd.Provider)
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			return nil, apperrors.NewNotFoundError("no subscription to cancel")
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	status := gw.QueryStatus(ctx, sub.Code())
	switch status {
	case vo.StatusActive:
		res := gw.RequestCancellation(ctx, sub.Code())
		if !res.Success {
			uc.logger.Warnw("provider refused cancellation",
				"subscription_id", sub.ID(),
				"reason", res.Reason,
			)
			return nil, apperrors.NewProviderError("cancellation failed", res.Reason)
		}
		if res.NeedsConfirmation() {
			uc.logger.Infow("cancellation awaits member confirmation",
				"subscription_id", sub.ID(),
			)
			return &CancelSubscriptionResult{
				SubscriptionID: sub.ID(),
				RedirectURL:    res.PendingRedirectURL,
			}, nil
		}
		if err := uc.awaitCanceled(ctx, gw, sub); err != nil {
			return nil, err
		}
	case vo.StatusUnknown:
		return nil, apperrors.NewProviderError("provider status unavailable", providergateway.ReasonUnavailable)
	}

	if err := sub.Cancel(); err != nil {
		return nil, apperrors.NewConflictError("subscription cannot be canceled").WithCause(err)
	}
	if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
		if errors.Is(err, subscription.ErrConcurrentModification) {
			return nil, apperrors.NewConflictError("subscription changed, retry").WithCause(err)
		}
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}

	uc.logger.Infow("subscription canceled",
		"subscription_id", sub.ID(),
		"member_id", sub.MemberID(),
		"provider_status", status.String(),
	)

	return &CancelSubscriptionResult{SubscriptionID: sub.ID(), Canceled: true}, nil
}

func (uc *CancelSubscriptionUseCase) awaitCanceled(ctx context.Context, gw providergateway.Gateway, sub *subscription.Subscription) error {
	if uc.confirmAttempts <= 0 {
		return nil
	}

	err := providergateway.WaitUntil(ctx, gw, sub.Code(), vo.StatusCanceled, uc.confirmAttempts, uc.confirmInterval)
	if err == nil {
		return nil
	}

	uc.logger.Warnw("provider did not confirm cancellation",
		"subscription_id", sub.ID(),
		"error", err,
	)
	if errors.Is(err, providergateway.ErrWaitTimeout) {
		return apperrors.NewTimeoutError("provider did not confirm cancellation").WithCause(err)
	}
	return fmt.Errorf("failed to confirm cancellation: %w", err)
}
