package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/jaxspot/billing/internal/domain/member"
	"github.com/jaxspot/billing/internal/domain/subscription"
	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
)

// RecoveryMailer tells a member that a purchase they may have given up on
// went through after all.
type RecoveryMailer interface {
	SendRecoveryMail(ctx context.Context, m *member.Member, sub *subscription.Subscription) error
}

// PartnerNotifier informs the subscriber partner that a subscription became active.
type PartnerNotifier interface {
	NotifyActivation(ctx context.Context, sub *subscription.Subscription) error
}

// SettledEventDeduplicator drops repeated "settled" events for the same code
// inside a short window.
type SettledEventDeduplicator interface {
	// Acquire returns false when the key was already seen inside the window.
	Acquire(ctx context.Context, key string) (bool, error)
	// Release forgets the key so a retried event is processed again.
	Release(ctx context.Context, key string) error
}

// SessionEstablisher logs an anonymous member in after their first purchase.
// It is bound to the request that carried the provider return.
type SessionEstablisher interface {
	EstablishSession(ctx context.Context, m *member.Member) error
}

// Terms maps each provider to the length of one paid period.
type Terms map[vo.Provider]vo.Term

// For returns the term configured for the provider.
func (t Terms) For(provider vo.Provider) (vo.Term, error) {
	term, ok := t[provider]
	if !ok || term.IsZero() {
		return vo.Term{}, fmt.Errorf("no subscription term configured for provider %s", provider)
	}
	return term, nil
}

// ExtensionDays converts the term into whole days counted from start.
func (t Terms) ExtensionDays(provider vo.Provider, start time.Time) (int, error) {
	term, err := t.For(provider)
	if err != nil {
		return 0, err
	}
	if term.Months == 0 {
		return term.Days, nil
	}
	start = start.UTC()
	return int(term.From(start).Sub(start).Hours() / 24), nil
}
