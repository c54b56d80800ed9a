package subscription

import (
	"errors"
	"testing"
	"time"

	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

func newPending(t *testing.T) *Subscription {
	t.Helper()
	sub, err := NewPendingSubscription(vo.ProviderMPulse, "tid-1", 10, true)
	require.NoError(t, err)
	require.NotNil(t, sub)
	return sub
}

func reconstruct(t *testing.T, status vo.SubscriptionStatus, expiresAt *time.Time) *Subscription {
	t.Helper()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sub, err := ReconstructSubscription(1, "tid-1", vo.ProviderMPulse, status, true, expiresAt, 10, 3, created, created)
	require.NoError(t, err)
	return sub
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// --- construction ---

func TestNewPendingSubscription(t *testing.T) {
	sub := newPending(t)

	assert.Equal(t, vo.StatusPending, sub.Status())
	assert.Nil(t, sub.ExpiresAt())
	assert.Equal(t, "tid-1", sub.Code())
	assert.Equal(t, vo.ProviderMPulse, sub.Provider())
	assert.Equal(t, uint(10), sub.MemberID())
	assert.True(t, sub.Renewable())
	assert.Equal(t, 1, sub.Version())
	assert.Equal(t, "10:mpulse", sub.LiveSlot())
}

func TestNewPendingSubscription_Validation(t *testing.T) {
	tests := []struct {
		name     string
		provider vo.Provider
		code     string
		memberID uint
	}{
		{name: "unknown provider", provider: "paypal", code: "c", memberID: 1},
		{name: "empty code", provider: vo.ProviderFacebook, code: "", memberID: 1},
		{name: "no member", provider: vo.ProviderFacebook, code: "c", memberID: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := NewPendingSubscription(tt.provider, tt.code, tt.memberID, false)
			assert.Error(t, err)
			assert.Nil(t, sub)
		})
	}
}

func TestReconstructSubscription_RejectsPendingWithExpiry(t *testing.T) {
	created := time.Now().UTC()
	_, err := ReconstructSubscription(1, "c", vo.ProviderMPulse, vo.StatusPending, true, &created, 10, 1, created, created)
	assert.Error(t, err)
}

func TestReconstructSubscription_RejectsUnknownStatus(t *testing.T) {
	created := time.Now().UTC()
	_, err := ReconstructSubscription(1, "c", vo.ProviderMPulse, vo.StatusUnknown, true, nil, 10, 1, created, created)
	assert.Error(t, err)
}

// --- activate ---

func TestActivate_FromPending(t *testing.T) {
	sub := newPending(t)
	until := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

	require.NoError(t, sub.Activate(until))

	assert.Equal(t, vo.StatusActive, sub.Status())
	require.NotNil(t, sub.ExpiresAt())
	assert.True(t, until.Equal(*sub.ExpiresAt()))
	assert.Equal(t, 2, sub.Version())
}

func TestActivate_AgainReplacesExpiry(t *testing.T) {
	first := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	sub := reconstruct(t, vo.StatusActive, timePtr(first))

	second := first.AddDate(0, 4, 0)
	require.NoError(t, sub.Activate(second))

	assert.True(t, second.Equal(*sub.ExpiresAt()))
	assert.Equal(t, vo.StatusActive, sub.Status())
}

func TestActivate_RequiresExpiry(t *testing.T) {
	sub := newPending(t)
	assert.Error(t, sub.Activate(time.Time{}))
	assert.Equal(t, vo.StatusPending, sub.Status())
}

// --- extend ---

func TestExtend_CompoundsFromCurrentExpiry(t *testing.T) {
	expiry := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	sub := reconstruct(t, vo.StatusActive, timePtr(expiry))

	require.NoError(t, sub.Extend(8))
	require.NoError(t, sub.Extend(8))

	assert.True(t, expiry.AddDate(0, 0, 16).Equal(*sub.ExpiresAt()))
	assert.Equal(t, 5, sub.Version())
}

func TestExtend_RejectsPending(t *testing.T) {
	sub := newPending(t)

	err := sub.Extend(8)
	assert.True(t, errors.Is(err, ErrIllegalTransition))
	assert.Nil(t, sub.ExpiresAt())
}

func TestExtend_RejectsNonPositiveDays(t *testing.T) {
	expiry := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	sub := reconstruct(t, vo.StatusActive, timePtr(expiry))

	assert.Error(t, sub.Extend(0))
	assert.True(t, expiry.Equal(*sub.ExpiresAt()))
}

// --- cancel / finish ---

func TestCancel(t *testing.T) {
	t.Run("from pending", func(t *testing.T) {
		sub := newPending(t)
		require.NoError(t, sub.Cancel())
		assert.Equal(t, vo.StatusCanceled, sub.Status())
		assert.Empty(t, sub.LiveSlot())
	})

	t.Run("from active keeps expiry", func(t *testing.T) {
		expiry := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
		sub := reconstruct(t, vo.StatusActive, timePtr(expiry))
		require.NoError(t, sub.Cancel())
		assert.Equal(t, vo.StatusCanceled, sub.Status())
		assert.True(t, expiry.Equal(*sub.ExpiresAt()))
	})
}

func TestFinish(t *testing.T) {
	expiry := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("from active", func(t *testing.T) {
		sub := reconstruct(t, vo.StatusActive, timePtr(expiry))
		require.NoError(t, sub.Finish())
		assert.Equal(t, vo.StatusFinished, sub.Status())
	})

	t.Run("from canceled", func(t *testing.T) {
		sub := reconstruct(t, vo.StatusCanceled, timePtr(expiry))
		require.NoError(t, sub.Finish())
		assert.Equal(t, vo.StatusFinished, sub.Status())
	})

	t.Run("idempotent when finished", func(t *testing.T) {
		sub := reconstruct(t, vo.StatusFinished, timePtr(expiry))
		require.NoError(t, sub.Finish())
		assert.Equal(t, vo.StatusFinished, sub.Status())
		assert.Equal(t, 3, sub.Version())
	})

	t.Run("rejected from pending", func(t *testing.T) {
		sub := newPending(t)
		assert.ErrorIs(t, sub.Finish(), ErrIllegalTransition)
		assert.Equal(t, vo.StatusPending, sub.Status())
	})
}

// --- terminal states ---

func TestTerminalStates_RejectMutation(t *testing.T) {
	expiry := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, status := range []vo.SubscriptionStatus{vo.StatusCanceled, vo.StatusFinished} {
		t.Run(status.String(), func(t *testing.T) {
			sub := reconstruct(t, status, timePtr(expiry))

			assert.ErrorIs(t, sub.Activate(expiry.AddDate(0, 1, 0)), ErrIllegalTransition)
			assert.ErrorIs(t, sub.Extend(8), ErrIllegalTransition)
			assert.ErrorIs(t, sub.Cancel(), ErrIllegalTransition)

			assert.Equal(t, status, sub.Status())
			assert.True(t, expiry.Equal(*sub.ExpiresAt()))
			assert.Equal(t, 3, sub.Version())
			assert.Empty(t, sub.LiveSlot())
		})
	}
}

func TestIsExpiredAt(t *testing.T) {
	expiry := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	sub := reconstruct(t, vo.StatusActive, timePtr(expiry))

	assert.False(t, sub.IsExpiredAt(expiry.Add(-time.Second)))
	assert.True(t, sub.IsExpiredAt(expiry))
	assert.True(t, sub.IsExpiredAt(expiry.Add(time.Hour)))
}

func TestExpiresAt_ReturnsCopy(t *testing.T) {
	expiry := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	sub := reconstruct(t, vo.StatusActive, timePtr(expiry))

	got := sub.ExpiresAt()
	*got = got.AddDate(1, 0, 0)

	assert.True(t, expiry.Equal(*sub.ExpiresAt()))
}
