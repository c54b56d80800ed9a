package subscription

import (
	"errors"
	"fmt"

	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrSubscriptionConflict means the member already holds an active or
	// pending subscription with the provider, or the code is already taken.
	ErrSubscriptionConflict = errors.New("subscription conflict")
	// ErrIllegalTransition is returned for any transition the state machine
	// forbids, including every transition out of a terminal state.
	ErrIllegalTransition = errors.New("illegal subscription transition")
	// ErrConcurrentModification means the stored record changed since it was read.
	ErrConcurrentModification = errors.New("subscription modified concurrently")
)

func illegalTransition(from, to vo.SubscriptionStatus, op string) error {
	return fmt.Errorf("%w: %s from %s to %s", ErrIllegalTransition, op, from, to)
}
