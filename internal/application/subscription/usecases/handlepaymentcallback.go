package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/jaxspot/billing/internal/domain/member"
	"github.com/jaxspot/billing/internal/domain/subscription"
	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
	"github.com/jaxspot/billing/internal/shared/biztime"
	"github.com/jaxspot/billing/internal/shared/constants"
	apperrors "github.com/jaxspot/billing/internal/shared/errors"
	"github.com/jaxspot/billing/internal/shared/logger"
)

// Callback methods and payment statuses sent by the payments platform.
const (
	MethodPaymentsStatusUpdate = "payments_status_update"
	MethodPaymentsGetItems     = "payments_get_items"

	PaymentStatusPlaced  = "placed"
	PaymentStatusSettled = "settled"
)

// ProviderCallback is an inbound payment event pushed by a provider.
type ProviderCallback struct {
	Provider        vo.Provider
	Method          string
	Status          string
	Code            string
	BuyerFacebookID string
}

// CallbackResponse is echoed back to the provider as JSON.
type CallbackResponse struct {
	Method  string      `json:"method"`
	Content interface{} `json:"content"`
}

type OrderStatusContent struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// CatalogItem describes the single purchasable item.
type CatalogItem struct {
	ItemID      string `json:"item_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	ProductURL  string `json:"product_url"`
	Price       int    `json:"price"`
}

// HandlePaymentCallbackUseCase applies "placed" and "settled" payment events
// and answers item lookups.
type HandlePaymentCallbackUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	memberRepo       member.Repository
	terms            Terms
	notifier         *ActivationNotifier
	dedup            SettledEventDeduplicator
	item             CatalogItem
	clock            biztime.Clock
	logger           logger.Interface
}

func NewHandlePaymentCallbackUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	memberRepo member.Repository,
	terms Terms,
	notifier *ActivationNotifier,
	item CatalogItem,
	logger logger.Interface,
) *HandlePaymentCallbackUseCase {
	return &HandlePaymentCallbackUseCase{
		subscriptionRepo: subscriptionRepo,
		memberRepo:       memberRepo,
		terms:            terms,
		notifier:         notifier,
		item:             item,
		clock:            biztime.SystemClock,
		logger:           logger,
	}
}

// SetDeduplicator enables dropping of repeated "settled" events.
func (uc *HandlePaymentCallbackUseCase) SetDeduplicator(dedup SettledEventDeduplicator) {
	uc.dedup = dedup
}

func (uc *HandlePaymentCallbackUseCase) SetClock(clock biztime.Clock) {
	uc.clock = clock
}

func (uc *HandlePaymentCallbackUseCase) Execute(ctx context.Context, cb ProviderCallback) (*CallbackResponse, error) {
	switch cb.Method {
	case MethodPaymentsGetItems:
		return &CallbackResponse{Method: MethodPaymentsGetItems, Content: []CatalogItem{uc.item}}, nil
	case MethodPaymentsStatusUpdate:
	default:
		return nil, apperrors.NewBadRequestError("unsupported callback method", cb.Method)
	}

	if cb.Code == "" {
		return nil, apperrors.NewValidationError("order id is required")
	}

	switch cb.Status {
	case PaymentStatusPlaced:
		return uc.placed(ctx, cb)
	case PaymentStatusSettled:
		return uc.settled(ctx, cb)
	default:
		return nil, apperrors.NewBadRequestError("unsupported payment status", cb.Status)
	}
}

func (uc *HandlePaymentCallbackUseCase) placed(ctx context.Context, cb ProviderCallback) (*CallbackResponse, error) {
	m, err := uc.memberRepo.GetByFacebookID(ctx, cb.BuyerFacebookID)
	if err != nil {
		if errors.Is(err, member.ErrMemberNotFound) {
			return nil, apperrors.NewNotFoundError("buyer is not a member")
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	sub, err := subscription.NewPendingSubscription(cb.Provider, cb.Code, m.ID(), cb.Provider.IsRenewable())
	if err != nil {
		return nil, apperrors.NewValidationError("invalid payment", err.Error())
	}

	if err := uc.subscriptionRepo.Create(ctx, sub); err != nil {
		if !errors.Is(err, subscription.ErrSubscriptionConflict) {
			return nil, fmt.Errorf("failed to create subscription: %w", err)
		}
		// A replayed "placed" event for an order we already recorded is fine.
		existing, findErr := uc.subscriptionRepo.FindByCode(ctx, cb.Provider, cb.Code)
		if findErr != nil || existing.MemberID() != m.ID() {
			return nil, apperrors.NewConflictError(constants.ErrMsgAlreadySubscriber).WithCause(err)
		}
		uc.logger.Debugw("duplicate placed event", "subscription_id", existing.ID())
	} else {
		uc.logger.Infow("payment placed, subscription pending",
			"subscription_id", sub.ID(),
			"member_id", m.ID(),
			"code", cb.Code,
		)
	}

	return &CallbackResponse{
		Method:  MethodPaymentsStatusUpdate,
		Content: OrderStatusContent{OrderID: cb.Code, Status: PaymentStatusSettled},
	}, nil
}

func (uc *HandlePaymentCallbackUseCase) settled(ctx context.Context, cb ProviderCallback) (*CallbackResponse, error) {
	ack := &CallbackResponse{
		Method:  MethodPaymentsStatusUpdate,
		Content: OrderStatusContent{OrderID: cb.Code, Status: PaymentStatusSettled},
	}

	key := fmt.Sprintf("%s:%s:%s", cb.Provider, PaymentStatusSettled, cb.Code)
	if uc.dedup != nil {
		first, err := uc.dedup.Acquire(ctx, key)
		if err != nil {
			uc.logger.Warnw("settled event deduplication unavailable", "key", key, "error", err)
		} else if !first {
			uc.logger.Debugw("duplicate settled event dropped", "key", key)
			return ack, nil
		}
	}

	if err := uc.activate(ctx, cb); err != nil {
		if uc.dedup != nil {
			if relErr := uc.dedup.Release(ctx, key); relErr != nil {
				uc.logger.Warnw("failed to release settled event key", "key", key, "error", relErr)
			}
		}
		return nil, err
	}
	return ack, nil
}

func (uc *HandlePaymentCallbackUseCase) activate(ctx context.Context, cb ProviderCallback) error {
	sub, err := uc.subscriptionRepo.FindByCode(ctx, cb.Provider, cb.Code)
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			return apperrors.NewNotFoundError("unknown order", cb.Code)
		}
		return fmt.Errorf("failed to find subscription: %w", err)
	}

	if sub.IsActive() {
		uc.logger.Debugw("settled event for active subscription ignored", "subscription_id", sub.ID())
		return nil
	}

	if err := activateForTerm(sub, uc.terms, uc.clock()); err != nil {
		if errors.Is(err, subscription.ErrIllegalTransition) {
			return apperrors.NewConflictError("subscription is closed").WithCause(err)
		}
		return err
	}
	if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
		if errors.Is(err, subscription.ErrConcurrentModification) {
			return apperrors.NewConflictError("subscription changed, retry").WithCause(err)
		}
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	uc.logger.Infow("payment settled, subscription active",
		"subscription_id", sub.ID(),
		"member_id", sub.MemberID(),
		"expires_at", sub.ExpiresAt(),
	)

	uc.notifier.Activated(sub)
	return nil
}
