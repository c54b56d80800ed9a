package valueobjects

import (
	"fmt"
	"strings"
)

// SubscriptionStatus is the shared state vocabulary every provider answer is
// normalized into.
type SubscriptionStatus string

const (
	StatusPending  SubscriptionStatus = "pending"
	StatusActive   SubscriptionStatus = "active"
	StatusCanceled SubscriptionStatus = "canceled"
	StatusFinished SubscriptionStatus = "finished"
	// StatusUnknown is only ever returned by provider queries. It is never stored.
	StatusUnknown SubscriptionStatus = "unknown"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is legal.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == StatusCanceled || s == StatusFinished
}

// IsLive reports whether the status occupies the member's single
// active-or-pending slot for a provider.
func (s SubscriptionStatus) IsLive() bool {
	return s == StatusPending || s == StatusActive
}

// CanTransitionTo reports whether the state machine allows s -> target.
// ACTIVE -> ACTIVE is the re-activation/extension edge.
func (s SubscriptionStatus) CanTransitionTo(target SubscriptionStatus) bool {
	allowed, ok := transitions[s]
	if !ok {
		return false
	}
	for _, a := range allowed {
		if a == target {
			return true
		}
	}
	return false
}

var transitions = map[SubscriptionStatus][]SubscriptionStatus{
	StatusPending:  {StatusActive, StatusCanceled},
	StatusActive:   {StatusActive, StatusCanceled, StatusFinished},
	StatusCanceled: {StatusFinished},
	StatusFinished: {},
}

// StoredStatuses are the statuses a persisted subscription may hold.
var StoredStatuses = map[SubscriptionStatus]bool{
	StatusPending:  true,
	StatusActive:   true,
	StatusCanceled: true,
	StatusFinished: true,
}

func ParseSubscriptionStatus(s string) (SubscriptionStatus, error) {
	status := SubscriptionStatus(strings.ToLower(strings.TrimSpace(s)))
	if !StoredStatuses[status] && status != StatusUnknown {
		return "", fmt.Errorf("invalid subscription status: %q", s)
	}
	return status, nil
}
