package subscription

import (
	"fmt"
	"time"

	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
)

// Subscription represents the subscription aggregate root. Its status mirrors
// the state held by the external billing provider.
type Subscription struct {
	id        uint
	code      string
	provider  vo.Provider
	status    vo.SubscriptionStatus
	renewable bool
	expiresAt *time.Time
	memberID  uint
	version   int
	createdAt time.Time
	updatedAt time.Time
}

// NewPendingSubscription creates a subscription for a purchase the provider
// has just accepted but not yet settled.
func NewPendingSubscription(provider vo.Provider, code string, memberID uint, renewable bool) (*Subscription, error) {
	if !provider.IsValid() {
		return nil, fmt.Errorf("invalid provider: %q", provider)
	}
	if code == "" {
		return nil, fmt.Errorf("subscription code is required")
	}
	if memberID == 0 {
		return nil, fmt.Errorf("member ID is required")
	}

	now := time.Now().UTC()
	return &Subscription{
		code:      code,
		provider:  provider,
		status:    vo.StatusPending,
		renewable: renewable,
		memberID:  memberID,
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructSubscription reconstructs a subscription from persistence
func ReconstructSubscription(
	id uint,
	code string,
	provider vo.Provider,
	status vo.SubscriptionStatus,
	renewable bool,
	expiresAt *time.Time,
	memberID uint,
	version int,
	createdAt, updatedAt time.Time,
) (*Subscription, error) {
	if id == 0 {
		return nil, fmt.Errorf("subscription ID cannot be zero")
	}
	if code == "" {
		return nil, fmt.Errorf("subscription code is required")
	}
	if !provider.IsValid() {
		return nil, fmt.Errorf("invalid provider: %q", provider)
	}
	if !vo.StoredStatuses[status] {
		return nil, fmt.Errorf("invalid stored status: %q", status)
	}
	if memberID == 0 {
		return nil, fmt.Errorf("member ID is required")
	}
	if status == vo.StatusPending && expiresAt != nil {
		return nil, fmt.Errorf("pending subscription cannot have an expiry")
	}

	return &Subscription{
		id:        id,
		code:      code,
		provider:  provider,
		status:    status,
		renewable: renewable,
		expiresAt: expiresAt,
		memberID:  memberID,
		version:   version,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}, nil
}

func (s *Subscription) ID() uint {
	return s.id
}

func (s *Subscription) Code() string {
	return s.code
}

func (s *Subscription) Provider() vo.Provider {
	return s.provider
}

func (s *Subscription) Status() vo.SubscriptionStatus {
	return s.status
}

func (s *Subscription) Renewable() bool {
	return s.renewable
}

// ExpiresAt returns nil while the subscription is pending.
func (s *Subscription) ExpiresAt() *time.Time {
	if s.expiresAt == nil {
		return nil
	}
	t := *s.expiresAt
	return &t
}

func (s *Subscription) MemberID() uint {
	return s.memberID
}

func (s *Subscription) Version() int {
	return s.version
}

func (s *Subscription) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Subscription) UpdatedAt() time.Time {
	return s.updatedAt
}

// SetID sets the subscription ID (only for persistence layer use)
func (s *Subscription) SetID(id uint) error {
	if s.id != 0 {
		return fmt.Errorf("subscription ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("subscription ID cannot be zero")
	}
	s.id = id
	return nil
}

// IsActive reports whether the subscription currently grants access.
func (s *Subscription) IsActive() bool {
	return s.status == vo.StatusActive
}

// Activate marks the subscription paid until the given time. Calling it on an
// already active subscription moves the expiry to until.
func (s *Subscription) Activate(until time.Time) error {
	if !s.status.CanTransitionTo(vo.StatusActive) {
		return illegalTransition(s.status, vo.StatusActive, "activate")
	}
	if until.IsZero() {
		return fmt.Errorf("activation expiry is required")
	}

	u := until.UTC()
	s.status = vo.StatusActive
	s.expiresAt = &u
	s.touch()
	return nil
}

// Extend pushes the expiry forward by days, counted from the current expiry
// so that consecutive renewals compound.
func (s *Subscription) Extend(days int) error {
	if s.status != vo.StatusActive {
		return illegalTransition(s.status, vo.StatusActive, "extend")
	}
	if days <= 0 {
		return fmt.Errorf("extension must be positive, got %d days", days)
	}

	base := s.updatedAt
	if s.expiresAt != nil {
		base = *s.expiresAt
	}
	next := base.AddDate(0, 0, days)
	s.expiresAt = &next
	s.touch()
	return nil
}

func (s *Subscription) Cancel() error {
	if !s.status.CanTransitionTo(vo.StatusCanceled) {
		return illegalTransition(s.status, vo.StatusCanceled, "cancel")
	}

	s.status = vo.StatusCanceled
	s.touch()
	return nil
}

// Finish closes the subscription for good. Finishing a finished subscription
// is a no-op.
func (s *Subscription) Finish() error {
	if s.status == vo.StatusFinished {
		return nil
	}
	if !s.status.CanTransitionTo(vo.StatusFinished) {
		return illegalTransition(s.status, vo.StatusFinished, "finish")
	}

	s.status = vo.StatusFinished
	s.touch()
	return nil
}

// IsExpiredAt reports whether an active subscription's term has elapsed at now.
func (s *Subscription) IsExpiredAt(now time.Time) bool {
	return s.status == vo.StatusActive && s.expiresAt != nil && !s.expiresAt.After(now)
}

// LiveSlot returns the key that is unique across all pending or active
// subscriptions, or "" when the subscription no longer holds the slot.
func (s *Subscription) LiveSlot() string {
	if !s.status.IsLive() {
		return ""
	}
	return fmt.Sprintf("%d:%s", s.memberID, s.provider)
}

func (s *Subscription) touch() {
	s.updatedAt = time.Now().UTC()
	s.version++
}
