package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/jaxspot/billing/internal/application/subscription/providergateway"
	"github.com/jaxspot/billing/internal/domain/member"
	"github.com/jaxspot/billing/internal/domain/subscription"
	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
	"github.com/jaxspot/billing/internal/shared/biztime"
	"github.com/jaxspot/billing/internal/shared/constants"
	"github.com/jaxspot/billing/internal/shared/db"
	apperrors "github.com/jaxspot/billing/internal/shared/errors"
	"github.com/jaxspot/billing/internal/shared/logger"
)

// ProviderReturnCommand describes a member's browser coming back from the
// provider's checkout page.
type ProviderReturnCommand struct {
	Provider vo.Provider
	Code     string
	// MemberID is the member of the current session, 0 when unknown.
	MemberID uint
	Session  SessionEstablisher
}

type ProviderReturnResult struct {
	SubscriptionID uint
	Activated      bool
	ProviderStatus vo.SubscriptionStatus
}

// HandleProviderReturnUseCase activates the subscription when the provider
// confirms the purchase the member just returned from.
type HandleProviderReturnUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	memberRepo       member.Repository
	gateways         *providergateway.Registry
	terms            Terms
	notifier         *ActivationNotifier
	txMgr            *db.TransactionManager
	clock            biztime.Clock
	logger           logger.Interface
}

// NewHandleProviderReturnUseCase creates the use case. A nil txMgr runs the
// lookup, insert and activation without a surrounding transaction.
func NewHandleProviderReturnUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	memberRepo member.Repository,
	gateways *providergateway.Registry,
	terms Terms,
	notifier *ActivationNotifier,
	txMgr *db.TransactionManager,
	logger logger.Interface,
) *HandleProviderReturnUseCase {
	return &HandleProviderReturnUseCase{
		subscriptionRepo: subscriptionRepo,
		memberRepo:       memberRepo,
		gateways:         gateways,
		terms:            terms,
		notifier:         notifier,
		txMgr:            txMgr,
		clock:            biztime.SystemClock,
		logger:           logger,
	}
}

func (uc *HandleProviderReturnUseCase) SetClock(clock biztime.Clock) {
	uc.clock = clock
}

func (uc *HandleProviderReturnUseCase) Execute(ctx context.Context, cmd ProviderReturnCommand) (*ProviderReturnResult, error) {
	if cmd.Code == "" {
		return nil, apperrors.NewValidationError("subscription code is required")
	}
	gw, err := uc.gateways.Get(cmd.Provider)
	if err != nil {
		return nil, apperrors.NewBadRequestError("unsupported provider", cmd.Provider.String())
	}

	status := gw.QueryStatus(ctx, cmd.Code)
	result := &ProviderReturnResult{ProviderStatus: status}
	if status != vo.StatusActive {
		uc.logger.Infow("provider return without settled purchase",
			"provider", cmd.Provider,
			"code", cmd.Code,
			"provider_status", status.String(),
		)
		return result, nil
	}

	var (
		sub        *subscription.Subscription
		wasPending bool
	)
	// The insert of a missing subscription and its activation commit together.
	txErr := uc.inTransaction(ctx, func(txCtx context.Context) error {
		var err error
		sub, err = uc.findOrCreate(txCtx, cmd)
		if err != nil {
			return err
		}
		wasPending = sub.Status() == vo.StatusPending

		if sub.IsActive() {
			return nil
		}
		if err := activateForTerm(sub, uc.terms, uc.clock()); err != nil {
			if errors.Is(err, subscription.ErrIllegalTransition) {
				return apperrors.NewConflictError("subscription is closed").WithCause(err)
			}
			return err
		}
		if err := uc.subscriptionRepo.Update(txCtx, sub); err != nil {
			if errors.Is(err, subscription.ErrConcurrentModification) {
				return apperrors.NewConflictError("subscription changed, retry").WithCause(err)
			}
			return fmt.Errorf("failed to update subscription: %w", err)
		}
		result.Activated = true
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	result.SubscriptionID = sub.ID()

	if wasPending && cmd.Session != nil {
		uc.establishSession(ctx, cmd.Session, sub)
	}

	if !result.Activated {
		uc.logger.Debugw("provider return for active subscription", "subscription_id", sub.ID())
		return result, nil
	}

	uc.logger.Infow("subscription activated on provider return",
		"subscription_id", sub.ID(),
		"member_id", sub.MemberID(),
		"expires_at", sub.ExpiresAt(),
	)

	uc.notifier.Activated(sub)
	return result, nil
}

func (uc *HandleProviderReturnUseCase) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if uc.txMgr == nil {
		return fn(ctx)
	}
	return uc.txMgr.RunInTransaction(ctx, fn)
}

// findOrCreate loads the subscription by code. A purchase we never recorded,
// for instance when the pending insert was lost, is created on the spot for
// the session's member.
func (uc *HandleProviderReturnUseCase) findOrCreate(ctx context.Context, cmd ProviderReturnCommand) (*subscription.Subscription, error) {
	sub, err := uc.subscriptionRepo.FindByCode(ctx, cmd.Provider, cmd.Code)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, subscription.ErrSubscriptionNotFound) {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}

	if cmd.MemberID == 0 {
		return nil, apperrors.NewNotFoundError("unknown subscription", cmd.Code)
	}

	sub, err = subscription.NewPendingSubscription(cmd.Provider, cmd.Code, cmd.MemberID, cmd.Provider.IsRenewable())
	if err != nil {
		return nil, apperrors.NewValidationError("invalid subscription", err.Error())
	}
	if err := uc.subscriptionRepo.Create(ctx, sub); err != nil {
		if errors.Is(err, subscription.ErrSubscriptionConflict) {
			return nil, apperrors.NewConflictError(constants.ErrMsgAlreadySubscriber).WithCause(err)
		}
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	uc.logger.Infow("created missing subscription on provider return",
		"subscription_id", sub.ID(),
		"member_id", cmd.MemberID,
		"code", cmd.Code,
	)
	return sub, nil
}

func (uc *HandleProviderReturnUseCase) establishSession(ctx context.Context, session SessionEstablisher, sub *subscription.Subscription) {
	m, err := uc.memberRepo.GetByID(ctx, sub.MemberID())
	if err != nil {
		uc.logger.Warnw("failed to load member for session", "member_id", sub.MemberID(), "error", err)
		return
	}
	if !m.IsAnonymous() {
		return
	}
	if err := session.EstablishSession(ctx, m); err != nil {
		uc.logger.Warnw("failed to establish member session", "member_id", m.ID(), "error", err)
	}
}
