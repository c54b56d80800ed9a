package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jaxspot/billing/internal/application/subscription/providergateway"
	"github.com/jaxspot/billing/internal/domain/subscription"
	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
	"github.com/jaxspot/billing/internal/shared/biztime"
	"github.com/jaxspot/billing/internal/shared/logger"
)

// RecoverPendingSubscriptionsUseCase activates pending subscriptions the
// provider has settled without us hearing about it, typically because the
// member never came back from the provider's checkout page.
type RecoverPendingSubscriptionsUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	gateways         *providergateway.Registry
	terms            Terms
	notifier         *ActivationNotifier
	clock            biztime.Clock
	logger           logger.Interface
}

// NewRecoverPendingSubscriptionsUseCase creates a new RecoverPendingSubscriptionsUseCase
func NewRecoverPendingSubscriptionsUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	gateways *providergateway.Registry,
	terms Terms,
	notifier *ActivationNotifier,
	logger logger.Interface,
) *RecoverPendingSubscriptionsUseCase {
	return &RecoverPendingSubscriptionsUseCase{
		subscriptionRepo: subscriptionRepo,
		gateways:         gateways,
		terms:            terms,
		notifier:         notifier,
		clock:            biztime.SystemClock,
		logger:           logger,
	}
}

func (uc *RecoverPendingSubscriptionsUseCase) SetClock(clock biztime.Clock) {
	uc.clock = clock
}

// Execute checks the pending subscriptions of every registered provider.
// Returns the number of subscriptions activated.
func (uc *RecoverPendingSubscriptionsUseCase) Execute(ctx context.Context) (int, error) {
	// A started run works through its whole candidate list.
	ctx = context.WithoutCancel(ctx)
	var errs []error
	processed := 0

	for _, provider := range uc.gateways.Providers() {
		pending, err := uc.subscriptionRepo.PendingFor(ctx, provider)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to find pending %s subscriptions: %w", provider, err))
			continue
		}
		if len(pending) == 0 {
			continue
		}

		uc.logger.Infow("found pending subscriptions to recover",
			"provider", provider,
			"count", len(pending),
		)

		for _, sub := range pending {
			recovered, err := uc.recover(ctx, sub)
			if err != nil {
				logItemFailure(uc.logger, "recovery", sub, err)
				continue
			}
			if recovered {
				processed++
			}
		}
	}

	return processed, errors.Join(errs...)
}

func (uc *RecoverPendingSubscriptionsUseCase) recover(ctx context.Context, sub *subscription.Subscription) (bool, error) {
	gw, err := uc.gateways.Get(sub.Provider())
	if err != nil {
		return false, err
	}

	status := gw.QueryStatus(ctx, sub.Code())
	if status != vo.StatusActive {
		uc.logger.Debugw("pending subscription not settled yet",
			"subscription_id", sub.ID(),
			"provider_status", status.String(),
		)
		return false, nil
	}

	if err := activateForTerm(sub, uc.terms, uc.clock()); err != nil {
		return false, err
	}
	if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
		return false, fmt.Errorf("failed to update subscription: %w", err)
	}

	uc.logger.Infow("pending subscription recovered",
		"subscription_id", sub.ID(),
		"member_id", sub.MemberID(),
		"provider", sub.Provider(),
		"expires_at", sub.ExpiresAt(),
	)

	uc.notifier.Recovered(sub)
	return true, nil
}

// activateForTerm activates sub for one full term starting at now.
func activateForTerm(sub *subscription.Subscription, terms Terms, now time.Time) error {
	term, err := terms.For(sub.Provider())
	if err != nil {
		return err
	}
	return sub.Activate(term.From(now))
}
