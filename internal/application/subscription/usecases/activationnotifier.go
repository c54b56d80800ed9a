package usecases

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jaxspot/billing/internal/domain/member"
	"github.com/jaxspot/billing/internal/domain/subscription"
	"github.com/jaxspot/billing/internal/shared/goroutine"
	"github.com/jaxspot/billing/internal/shared/logger"
)

const defaultNotifyTimeout = 30 * time.Second

// ActivationNotifier runs the downstream side effects of an activation in the
// background. A failing side effect is logged; the activation that triggered
// it has already been stored and is never rolled back.
type ActivationNotifier struct {
	memberRepo member.Repository
	mailer     RecoveryMailer
	partner    PartnerNotifier
	timeout    time.Duration
	logger     logger.Interface

	inflight sync.WaitGroup
}

// NewActivationNotifier creates a notifier. mailer and partner may be nil.
func NewActivationNotifier(
	memberRepo member.Repository,
	mailer RecoveryMailer,
	partner PartnerNotifier,
	logger logger.Interface,
) *ActivationNotifier {
	return &ActivationNotifier{
		memberRepo: memberRepo,
		mailer:     mailer,
		partner:    partner,
		timeout:    defaultNotifyTimeout,
		logger:     logger,
	}
}

// Activated notifies the partner.
func (n *ActivationNotifier) Activated(sub *subscription.Subscription) {
	n.dispatch(sub, false)
}

// Recovered notifies the partner and mails the member.
func (n *ActivationNotifier) Recovered(sub *subscription.Subscription) {
	n.dispatch(sub, true)
}

func (n *ActivationNotifier) dispatch(sub *subscription.Subscription, withMail bool) {
	if n == nil {
		return
	}

	if n.partner != nil {
		n.goTracked("partner-notify", func() {
			ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
			defer cancel()

			if err := n.partner.NotifyActivation(ctx, sub); err != nil {
				n.logger.Warnw("failed to notify partner of activation",
					"subscription_id", sub.ID(),
					"provider", sub.Provider(),
					"error", err,
				)
			}
		})
	}

	if withMail && n.mailer != nil {
		n.goTracked("recovery-mail", func() {
			ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
			defer cancel()
			n.sendRecoveryMail(ctx, sub)
		})
	}
}

func (n *ActivationNotifier) goTracked(name string, fn func()) {
	n.inflight.Add(1)
	goroutine.SafeGo(n.logger, name, func() {
		defer n.inflight.Done()
		fn()
	})
}

// Wait blocks until every notification already dispatched has finished, or
// ctx is done. Callers stop producing activations before calling it.
func (n *ActivationNotifier) Wait(ctx context.Context) error {
	if n == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		n.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pending activation notifications: %w", ctx.Err())
	}
}

func (n *ActivationNotifier) sendRecoveryMail(ctx context.Context, sub *subscription.Subscription) {
	m, err := n.memberRepo.GetByID(ctx, sub.MemberID())
	if err != nil {
		n.logger.Warnw("failed to load member for recovery mail",
			"subscription_id", sub.ID(),
			"member_id", sub.MemberID(),
			"error", err,
		)
		return
	}
	if !m.CanReceiveMail() {
		n.logger.Debugw("member cannot receive mail, skipping recovery mail",
			"member_id", m.ID(),
		)
		return
	}

	if err := n.mailer.SendRecoveryMail(ctx, m, sub); err != nil {
		n.logger.Warnw("failed to send recovery mail",
			"subscription_id", sub.ID(),
			"member_id", m.ID(),
			"error", err,
		)
	}
}
