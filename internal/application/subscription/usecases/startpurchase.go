package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jaxspot/billing/internal/application/subscription/providergateway"
	"github.com/jaxspot/billing/internal/domain/member"
	"github.com/jaxspot/billing/internal/domain/subscription"
	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
	"github.com/jaxspot/billing/internal/shared/constants"
	apperrors "github.com/jaxspot/billing/internal/shared/errors"
	"github.com/jaxspot/billing/internal/shared/logger"
)

type StartPurchaseCommand struct {
	MemberID   uint
	Provider   vo.Provider
	RemoteAddr string
	UserAgent  string
}

type StartPurchaseResult struct {
	SubscriptionID uint
	Code           string
	RedirectURL    string
}

// StartPurchaseUseCase opens a purchase with the provider and records it as
// a pending subscription until the provider settles it.
type StartPurchaseUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	memberRepo       member.Repository
	gateways         *providergateway.Registry
	logger           logger.Interface
}

func NewStartPurchaseUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	memberRepo member.Repository,
	gateways *providergateway.Registry,
	logger logger.Interface,
) *StartPurchaseUseCase {
	return &StartPurchaseUseCase{
		subscriptionRepo: subscriptionRepo,
		memberRepo:       memberRepo,
		gateways:         gateways,
		logger:           logger,
	}
}

func (uc *StartPurchaseUseCase) Execute(ctx context.Context, cmd StartPurchaseCommand) (*StartPurchaseResult, error) {
	gw, err := uc.gateways.Get(cmd.Provider)
	if err != nil {
		return nil, apperrors.NewBadRequestError("unsupported provider", cmd.Provider.String())
	}

	m, err := uc.memberRepo.GetByID(ctx, cmd.MemberID)
	if err != nil {
		if errors.Is(err, member.ErrMemberNotFound) {
			return nil, apperrors.NewNotFoundError("member not found")
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	if existing, err := uc.subscriptionRepo.ActiveOrPendingFor(ctx, m.ID(), cmd.Provider); err == nil {
		uc.logger.Infow("member already holds a subscription",
			"member_id", m.ID(),
			"subscription_id", existing.ID(),
			"status", existing.Status().String(),
		)
		return nil, apperrors.NewConflictError(constants.ErrMsgAlreadySubscriber)
	} else if !errors.Is(err, subscription.ErrSubscriptionNotFound) {
		return nil, fmt.Errorf("failed to check existing subscription: %w", err)
	}

	reference := uuid.NewString()
	result := gw.AcquirePurchaseURL(ctx, providergateway.ClientContext{
		RemoteAddr: cmd.RemoteAddr,
		UserAgent:  cmd.UserAgent,
		Operator:   m.Operator(),
		MemberID:   m.ID(),
	}, reference)
	if !result.OK() {
		uc.logger.Warnw("provider refused to open purchase",
			"member_id", m.ID(),
			"provider", cmd.Provider,
			"reference", reference,
			"reason", result.Reason,
		)
		if result.Reason == providergateway.ReasonClientSideCheckout {
			return nil, apperrors.NewBadRequestError("purchase must be started client side", result.Reason)
		}
		return nil, apperrors.NewProviderError("purchase could not be started", result.Reason)
	}

	sub, err := subscription.NewPendingSubscription(cmd.Provider, result.Code, m.ID(), cmd.Provider.IsRenewable())
	if err != nil {
		return nil, fmt.Errorf("failed to build pending subscription: %w", err)
	}

	if err := uc.subscriptionRepo.Create(ctx, sub); err != nil {
		if errors.Is(err, subscription.ErrSubscriptionConflict) {
			return nil, apperrors.NewConflictError(constants.ErrMsgAlreadySubscriber).WithCause(err)
		}
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	uc.logger.Infow("purchase started",
		"subscription_id", sub.ID(),
		"member_id", m.ID(),
		"provider", cmd.Provider,
		"code", sub.Code(),
		"reference", reference,
	)

	return &StartPurchaseResult{
		SubscriptionID: sub.ID(),
		Code:           sub.Code(),
		RedirectURL:    result.RedirectURL,
	}, nil
}
