package usecases

import (
	"context"
	"fmt"

	"github.com/jaxspot/billing/internal/domain/subscription"
	"github.com/jaxspot/billing/internal/shared/biztime"
	"github.com/jaxspot/billing/internal/shared/logger"
)

// CloseSubscriptionsUseCase finishes one-off subscriptions whose paid term
// has elapsed. The provider is not consulted: nothing will be billed again.
type CloseSubscriptionsUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	clock            biztime.Clock
	logger           logger.Interface
}

// NewCloseSubscriptionsUseCase creates a new CloseSubscriptionsUseCase
func NewCloseSubscriptionsUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	logger logger.Interface,
) *CloseSubscriptionsUseCase {
	return &CloseSubscriptionsUseCase{
		subscriptionRepo: subscriptionRepo,
		clock:            biztime.SystemClock,
		logger:           logger,
	}
}

func (uc *CloseSubscriptionsUseCase) SetClock(clock biztime.Clock) {
	uc.clock = clock
}

// Execute finishes every non-renewable expired subscription.
// Returns the number of subscriptions finished.
func (uc *CloseSubscriptionsUseCase) Execute(ctx context.Context) (int, error) {
	// A started run works through its whole candidate list.
	ctx = context.WithoutCancel(ctx)
	expired, err := uc.subscriptionRepo.NonRenewableExpiredAt(ctx, uc.clock())
	if err != nil {
		return 0, fmt.Errorf("failed to find non-renewable expired subscriptions: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	uc.logger.Infow("found subscriptions to close", "count", len(expired))

	closed := 0
	for _, sub := range expired {
		if err := sub.Finish(); err != nil {
			logItemFailure(uc.logger, "closing", sub, err)
			continue
		}
		if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
			logItemFailure(uc.logger, "closing", sub, err)
			continue
		}

		closed++
		uc.logger.Debugw("subscription closed",
			"subscription_id", sub.ID(),
			"member_id", sub.MemberID(),
		)
	}

	return closed, nil
}
