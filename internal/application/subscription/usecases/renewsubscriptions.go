package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/jaxspot/billing/internal/application/subscription/providergateway"
	"github.com/jaxspot/billing/internal/domain/subscription"
	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
	"github.com/jaxspot/billing/internal/shared/biztime"
	"github.com/jaxspot/billing/internal/shared/logger"
)

// RenewSubscriptionsUseCase walks renewable subscriptions whose term has
// elapsed and mirrors the provider's answer: still active means billed for
// another term, canceled means the subscription is over.
type RenewSubscriptionsUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	gateways         *providergateway.Registry
	terms            Terms
	clock            biztime.Clock
	logger           logger.Interface
}

// NewRenewSubscriptionsUseCase creates a new RenewSubscriptionsUseCase
func NewRenewSubscriptionsUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	gateways *providergateway.Registry,
	terms Terms,
	logger logger.Interface,
) *RenewSubscriptionsUseCase {
	return &RenewSubscriptionsUseCase{
		subscriptionRepo: subscriptionRepo,
		gateways:         gateways,
		terms:            terms,
		clock:            biztime.SystemClock,
		logger:           logger,
	}
}

func (uc *RenewSubscriptionsUseCase) SetClock(clock biztime.Clock) {
	uc.clock = clock
}

// Execute processes every renewable expired subscription once.
// Returns the number of subscriptions that were extended or finished.
func (uc *RenewSubscriptionsUseCase) Execute(ctx context.Context) (int, error) {
	// A started run works through its whole candidate list.
	ctx = context.WithoutCancel(ctx)
	now := uc.clock()

	expired, err := uc.subscriptionRepo.RenewableExpiredAt(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to find renewable expired subscriptions: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	uc.logger.Infow("found renewable subscriptions to reconcile", "count", len(expired))

	processed := 0
	for _, sub := range expired {
		changed, err := uc.renew(ctx, sub)
		if err != nil {
			logItemFailure(uc.logger, "renewal", sub, err)
			continue
		}
		if changed {
			processed++
		}
	}

	return processed, nil
}

func (uc *RenewSubscriptionsUseCase) renew(ctx context.Context, sub *subscription.Subscription) (bool, error) {
	gw, err := uc.gateways.Get(sub.Provider())
	if err != nil {
		return false, err
	}

	status := gw.QueryStatus(ctx, sub.Code())
	switch status {
	case vo.StatusActive:
		expiresAt := sub.ExpiresAt()
		if expiresAt == nil {
			return false, fmt.Errorf("active subscription %d has no expiry", sub.ID())
		}
		days, err := uc.terms.ExtensionDays(sub.Provider(), *expiresAt)
		if err != nil {
			return false, err
		}
		if err := sub.Extend(days); err != nil {
			return false, err
		}
	case vo.StatusCanceled:
		if err := sub.Finish(); err != nil {
			return false, err
		}
	default:
		uc.logger.Debugw("provider status inconclusive, renewal deferred",
			"subscription_id", sub.ID(),
			"provider_status", status.String(),
		)
		return false, nil
	}

	if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
		return false, fmt.Errorf("failed to update subscription: %w", err)
	}

	uc.logger.Infow("subscription renewal reconciled",
		"subscription_id", sub.ID(),
		"provider", sub.Provider(),
		"provider_status", status.String(),
		"status", sub.Status().String(),
	)
	return true, nil
}

// logItemFailure logs one failed candidate of a batch job. Races with a
// concurrent writer are expected and logged quieter than real failures.
func logItemFailure(log logger.Interface, job string, sub *subscription.Subscription, err error) {
	fields := []interface{}{
		"job", job,
		"subscription_id", sub.ID(),
		"provider", sub.Provider(),
		"status", sub.Status().String(),
		"error", err,
	}

	if errors.Is(err, subscription.ErrConcurrentModification) || errors.Is(err, subscription.ErrIllegalTransition) {
		log.Warnw("subscription skipped", fields...)
		return
	}
	log.Errorw("failed to reconcile subscription", fields...)
}
