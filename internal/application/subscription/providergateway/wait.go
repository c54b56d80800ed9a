package providergateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
)

// WaitUntil polls gw at a fixed interval until code reaches expected. It
// returns ErrWaitTimeout once maxAttempts queries have not observed it, or the
// context error if ctx ends first.
func WaitUntil(
	ctx context.Context,
	gw Gateway,
	code string,
	expected vo.SubscriptionStatus,
	maxAttempts int,
	interval time.Duration,
) error {
	if maxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", maxAttempts)
	}

	var last vo.SubscriptionStatus
	_, err := backoff.Retry(ctx, func() (vo.SubscriptionStatus, error) {
		last = gw.QueryStatus(ctx, code)
		if last != expected {
			return last, errNotYet
		}
		return last, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s %s is %s after %d attempts, want %s",
		ErrWaitTimeout, gw.Provider(), code, last, maxAttempts, expected)
}

var errNotYet = errors.New("status not reached")
