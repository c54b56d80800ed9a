package subscription

import (
	"context"
	"time"

	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
)

// SubscriptionRepository is the store of locally cached provider state.
type SubscriptionRepository interface {
	// ActiveOrPendingFor returns ErrSubscriptionNotFound when the member holds
	// no live subscription with the provider.
	ActiveOrPendingFor(ctx context.Context, memberID uint, provider vo.Provider) (*Subscription, error)
	FindByCode(ctx context.Context, provider vo.Provider, code string) (*Subscription, error)

	RenewableExpiredAt(ctx context.Context, now time.Time) ([]*Subscription, error)
	NonRenewableExpiredAt(ctx context.Context, now time.Time) ([]*Subscription, error)
	PendingFor(ctx context.Context, provider vo.Provider) ([]*Subscription, error)
	// PendingCreatedBefore lists pending subscriptions of any provider that
	// were created before cutoff.
	PendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*Subscription, error)

	// Create returns ErrSubscriptionConflict if the member already holds a
	// live subscription with the provider or the code is already recorded.
	Create(ctx context.Context, subscription *Subscription) error
	// Update returns ErrConcurrentModification if the stored version moved on.
	Update(ctx context.Context, subscription *Subscription) error
}
