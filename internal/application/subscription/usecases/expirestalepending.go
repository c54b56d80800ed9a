package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/jaxspot/billing/internal/application/subscription/providergateway"
	"github.com/jaxspot/billing/internal/domain/subscription"
	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
	"github.com/jaxspot/billing/internal/shared/biztime"
	"github.com/jaxspot/billing/internal/shared/logger"
)

// ExpireStalePendingUseCase gives up on purchases that stayed pending for
// longer than the TTL. Abandoned purchases are canceled, never deleted, so
// the member can start a new one.
type ExpireStalePendingUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	gateways         *providergateway.Registry
	terms            Terms
	notifier         *ActivationNotifier
	ttl              time.Duration
	clock            biztime.Clock
	logger           logger.Interface
}

// NewExpireStalePendingUseCase creates a new ExpireStalePendingUseCase
func NewExpireStalePendingUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	gateways *providergateway.Registry,
	terms Terms,
	notifier *ActivationNotifier,
	ttl time.Duration,
	logger logger.Interface,
) *ExpireStalePendingUseCase {
	return &ExpireStalePendingUseCase{
		subscriptionRepo: subscriptionRepo,
		gateways:         gateways,
		terms:            terms,
		notifier:         notifier,
		ttl:              ttl,
		clock:            biztime.SystemClock,
		logger:           logger,
	}
}

func (uc *ExpireStalePendingUseCase) SetClock(clock biztime.Clock) {
	uc.clock = clock
}

// Execute returns the number of stale subscriptions resolved, either
// canceled or, when the provider turns out to have settled them, activated.
func (uc *ExpireStalePendingUseCase) Execute(ctx context.Context) (int, error) {
	// A started run works through its whole candidate list.
	ctx = context.WithoutCancel(ctx)
	now := uc.clock()

	stale, err := uc.subscriptionRepo.PendingCreatedBefore(ctx, now.Add(-uc.ttl))
	if err != nil {
		return 0, fmt.Errorf("failed to find stale pending subscriptions: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	uc.logger.Infow("found stale pending subscriptions", "count", len(stale), "ttl", uc.ttl)

	resolved := 0
	for _, sub := range stale {
		done, err := uc.resolve(ctx, sub, now)
		if err != nil {
			logItemFailure(uc.logger, "stale-pending", sub, err)
			continue
		}
		if done {
			resolved++
		}
	}

	return resolved, nil
}

func (uc *ExpireStalePendingUseCase) resolve(ctx context.Context, sub *subscription.Subscription, now time.Time) (bool, error) {
	gw, err := uc.gateways.Get(sub.Provider())
	if err != nil {
		return false, err
	}

	status := gw.QueryStatus(ctx, sub.Code())
	activated := false
	switch status {
	case vo.StatusActive:
		if err := activateForTerm(sub, uc.terms, now); err != nil {
			return false, err
		}
		activated = true
	case vo.StatusPending, vo.StatusCanceled:
		if err := sub.Cancel(); err != nil {
			return false, err
		}
	default:
		// No answer from the provider; try again on the next run.
		return false, nil
	}

	if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
		return false, fmt.Errorf("failed to update subscription: %w", err)
	}

	uc.logger.Infow("stale pending subscription resolved",
		"subscription_id", sub.ID(),
		"provider_status", status.String(),
		"status", sub.Status().String(),
	)

	if activated {
		uc.notifier.Recovered(sub)
	}
	return true, nil
}
