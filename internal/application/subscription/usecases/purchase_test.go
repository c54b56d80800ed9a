package usecases

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jaxspot/billing/internal/application/subscription/providergateway"
	"github.com/jaxspot/billing/internal/domain/member"
	"github.com/jaxspot/billing/internal/domain/subscription"
	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
	"github.com/jaxspot/billing/internal/shared/constants"
	apperrors "github.com/jaxspot/billing/internal/shared/errors"
	"github.com/jaxspot/billing/internal/shared/logger"
)

// --- start purchase ---

func TestStartPurchase_Success(t *testing.T) {
	members := new(mockMemberRepository)
	members.On("GetByID", mock.Anything, uint(7)).Return(testMember(t, 7, false), nil)

	repo := new(mockSubscriptionRepository)
	repo.On("ActiveOrPendingFor", mock.Anything, uint(7), vo.ProviderMPulse).Return(nil, subscription.ErrSubscriptionNotFound)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*subscription.Subscription")).
		Run(func(args mock.Arguments) {
			sub := args.Get(1).(*subscription.Subscription)
			require.NoError(t, sub.SetID(55))
		}).Return(nil)

	gw := newMockGateway(vo.ProviderMPulse)
	gw.On("AcquirePurchaseURL", mock.Anything, mock.MatchedBy(func(c providergateway.ClientContext) bool {
		return c.MemberID == 7 && c.Operator == "orange" && c.RemoteAddr == "10.0.0.1"
	}), mock.AnythingOfType("string")).Return(providergateway.PurchaseSucceeded("tid-9", "https://pay.example/tid-9"))

	uc := NewStartPurchaseUseCase(repo, members, providergateway.NewRegistry(gw), logger.NewNop())

	result, err := uc.Execute(context.Background(), StartPurchaseCommand{
		MemberID:   7,
		Provider:   vo.ProviderMPulse,
		RemoteAddr: "10.0.0.1",
	})

	require.NoError(t, err)
	assert.Equal(t, uint(55), result.SubscriptionID)
	assert.Equal(t, "tid-9", result.Code)
	assert.Equal(t, "https://pay.example/tid-9", result.RedirectURL)

	created := repo.Calls[1].Arguments.Get(1).(*subscription.Subscription)
	assert.Equal(t, vo.StatusPending, created.Status())
	assert.True(t, created.Renewable())
}

func TestStartPurchase_AlreadySubscriber(t *testing.T) {
	members := new(mockMemberRepository)
	members.On("GetByID", mock.Anything, uint(7)).Return(testMember(t, 7, false), nil)

	repo := new(mockSubscriptionRepository)
	repo.On("ActiveOrPendingFor", mock.Anything, uint(7), vo.ProviderMPulse).
		Return(pendingSub(t, 1, "tid-1", vo.ProviderMPulse), nil)

	gw := newMockGateway(vo.ProviderMPulse)
	uc := NewStartPurchaseUseCase(repo, members, providergateway.NewRegistry(gw), logger.NewNop())

	_, err := uc.Execute(context.Background(), StartPurchaseCommand{MemberID: 7, Provider: vo.ProviderMPulse})

	require.Error(t, err)
	assert.True(t, apperrors.IsConflictError(err))
	assert.Equal(t, constants.ErrMsgAlreadySubscriber, apperrors.GetAppError(err).Message)
	gw.AssertNotCalled(t, "AcquirePurchaseURL", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartPurchase_CreateConflict(t *testing.T) {
	members := new(mockMemberRepository)
	members.On("GetByID", mock.Anything, uint(7)).Return(testMember(t, 7, false), nil)

	repo := new(mockSubscriptionRepository)
	repo.On("ActiveOrPendingFor", mock.Anything, uint(7), vo.ProviderMPulse).Return(nil, subscription.ErrSubscriptionNotFound)
	repo.On("Create", mock.Anything, mock.Anything).Return(subscription.ErrSubscriptionConflict)

	gw := newMockGateway(vo.ProviderMPulse)
	gw.On("AcquirePurchaseURL", mock.Anything, mock.Anything, mock.Anything).
		Return(providergateway.PurchaseSucceeded("tid-9", "https://pay.example"))

	uc := NewStartPurchaseUseCase(repo, members, providergateway.NewRegistry(gw), logger.NewNop())

	_, err := uc.Execute(context.Background(), StartPurchaseCommand{MemberID: 7, Provider: vo.ProviderMPulse})

	assert.True(t, apperrors.IsConflictError(err))
	assert.ErrorIs(t, err, subscription.ErrSubscriptionConflict)
}

func TestStartPurchase_ProviderFailure(t *testing.T) {
	tests := []struct {
		name     string
		reason   string
		wantType apperrors.ErrorType
	}{
		{name: "unavailable", reason: providergateway.ReasonUnavailable, wantType: apperrors.ErrorTypeProvider},
		{name: "client side", reason: providergateway.ReasonClientSideCheckout, wantType: apperrors.ErrorTypeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			members := new(mockMemberRepository)
			members.On("GetByID", mock.Anything, uint(7)).Return(testMember(t, 7, false), nil)

			repo := new(mockSubscriptionRepository)
			repo.On("ActiveOrPendingFor", mock.Anything, uint(7), vo.ProviderMPulse).Return(nil, subscription.ErrSubscriptionNotFound)

			gw := newMockGateway(vo.ProviderMPulse)
			gw.On("AcquirePurchaseURL", mock.Anything, mock.Anything, mock.Anything).
				Return(providergateway.PurchaseFailed(tt.reason))

			uc := NewStartPurchaseUseCase(repo, members, providergateway.NewRegistry(gw), logger.NewNop())

			_, err := uc.Execute(context.Background(), StartPurchaseCommand{MemberID: 7, Provider: vo.ProviderMPulse})

			appErr := apperrors.GetAppError(err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.wantType, appErr.Type)
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestStartPurchase_UnknownMember(t *testing.T) {
	members := new(mockMemberRepository)
	members.On("GetByID", mock.Anything, uint(7)).Return(nil, member.ErrMemberNotFound)

	uc := NewStartPurchaseUseCase(new(mockSubscriptionRepository), members,
		providergateway.NewRegistry(newMockGateway(vo.ProviderMPulse)), logger.NewNop())

	_, err := uc.Execute(context.Background(), StartPurchaseCommand{MemberID: 7, Provider: vo.ProviderMPulse})

	assert.True(t, apperrors.IsNotFoundError(err))
}

// --- cancel ---

func TestCancelSubscription(t *testing.T) {
	expiry := runAt.AddDate(0, 0, 3)

	t.Run("provider confirms immediately", func(t *testing.T) {
		sub := activeSub(t, 1, "tid-1", expiry)
		repo := new(mockSubscriptionRepository)
		repo.On("ActiveOrPendingFor", mock.Anything, uint(101), vo.ProviderMPulse).Return(sub, nil)
		repo.On("Update", mock.Anything, sub).Return(nil)

		gw := newMockGateway(vo.ProviderMPulse)
		gw.On("QueryStatus", mock.Anything, "tid-1").Return(vo.StatusActive)
		gw.On("RequestCancellation", mock.Anything, "tid-1").Return(providergateway.CancellationResult{Success: true})

		uc := NewCancelSubscriptionUseCase(repo, providergateway.NewRegistry(gw), logger.NewNop())
		result, err := uc.Execute(context.Background(), CancelSubscriptionCommand{MemberID: 101, Provider: vo.ProviderMPulse})

		require.NoError(t, err)
		assert.True(t, result.Canceled)
		assert.Equal(t, vo.StatusCanceled, sub.Status())
	})

	t.Run("member must confirm", func(t *testing.T) {
		sub := activeSub(t, 1, "tid-1", expiry)
		repo := new(mockSubscriptionRepository)
		repo.On("ActiveOrPendingFor", mock.Anything, uint(101), vo.ProviderMPulse).Return(sub, nil)

		gw := newMockGateway(vo.ProviderMPulse)
		gw.On("QueryStatus", mock.Anything, "tid-1").Return(vo.StatusActive)
		gw.On("RequestCancellation", mock.Anything, "tid-1").
			Return(providergateway.CancellationResult{Success: true, PendingRedirectURL: "https://confirm.example"})

		uc := NewCancelSubscriptionUseCase(repo, providergateway.NewRegistry(gw), logger.NewNop())
		result, err := uc.Execute(context.Background(), CancelSubscriptionCommand{MemberID: 101, Provider: vo.ProviderMPulse})

		require.NoError(t, err)
		assert.False(t, result.Canceled)
		assert.Equal(t, "https://confirm.example", result.RedirectURL)
		assert.Equal(t, vo.StatusActive, sub.Status())
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("not active at provider cancels locally", func(t *testing.T) {
		sub := pendingSub(t, 1, "tid-1", vo.ProviderMPulse)
		repo := new(mockSubscriptionRepository)
		repo.On("ActiveOrPendingFor", mock.Anything, uint(101), vo.ProviderMPulse).Return(sub, nil)
		repo.On("Update", mock.Anything, sub).Return(nil)

		gw := newMockGateway(vo.ProviderMPulse)
		gw.On("QueryStatus", mock.Anything, "tid-1").Return(vo.StatusPending)

		uc := NewCancelSubscriptionUseCase(repo, providergateway.NewRegistry(gw), logger.NewNop())
		result, err := uc.Execute(context.Background(), CancelSubscriptionCommand{MemberID: 101, Provider: vo.ProviderMPulse})

		require.NoError(t, err)
		assert.True(t, result.Canceled)
		gw.AssertNotCalled(t, "RequestCancellation", mock.Anything, mock.Anything)
	})

	t.Run("provider refuses", func(t *testing.T) {
		sub := activeSub(t, 1, "tid-1", expiry)
		repo := new(mockSubscriptionRepository)
		repo.On("ActiveOrPendingFor", mock.Anything, uint(101), vo.ProviderMPulse).Return(sub, nil)

		gw := newMockGateway(vo.ProviderMPulse)
		gw.On("QueryStatus", mock.Anything, "tid-1").Return(vo.StatusActive)
		gw.On("RequestCancellation", mock.Anything, "tid-1").
			Return(providergateway.CancellationResult{Reason: providergateway.ReasonRejected})

		uc := NewCancelSubscriptionUseCase(repo, providergateway.NewRegistry(gw), logger.NewNop())
		_, err := uc.Execute(context.Background(), CancelSubscriptionCommand{MemberID: 101, Provider: vo.ProviderMPulse})

		appErr := apperrors.GetAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, apperrors.ErrorTypeProvider, appErr.Type)
		assert.Equal(t, vo.StatusActive, sub.Status())
	})

	t.Run("confirmation times out", func(t *testing.T) {
		sub := activeSub(t, 1, "tid-1", expiry)
		repo := new(mockSubscriptionRepository)
		repo.On("ActiveOrPendingFor", mock.Anything, uint(101), vo.ProviderMPulse).Return(sub, nil)

		gw := newMockGateway(vo.ProviderMPulse)
		gw.On("QueryStatus", mock.Anything, "tid-1").Return(vo.StatusActive)
		gw.On("RequestCancellation", mock.Anything, "tid-1").Return(providergateway.CancellationResult{Success: true})

		uc := NewCancelSubscriptionUseCase(repo, providergateway.NewRegistry(gw), logger.NewNop())
		uc.SetConfirmation(2, time.Millisecond)
		_, err := uc.Execute(context.Background(), CancelSubscriptionCommand{MemberID: 101, Provider: vo.ProviderMPulse})

		appErr := apperrors.GetAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, apperrors.ErrorTypeTimeout, appErr.Type)
		assert.Equal(t, vo.StatusActive, sub.Status())
		gw.AssertNumberOfCalls(t, "QueryStatus", 3)
	})

	t.Run("nothing to cancel", func(t *testing.T) {
		repo := new(mockSubscriptionRepository)
		repo.On("ActiveOrPendingFor", mock.Anything, uint(101), vo.ProviderMPulse).Return(nil, subscription.ErrSubscriptionNotFound)

		uc := NewCancelSubscriptionUseCase(repo, providergateway.NewRegistry(newMockGateway(vo.ProviderMPulse)), logger.NewNop())
		_, err := uc.Execute(context.Background(), CancelSubscriptionCommand{MemberID: 101, Provider: vo.ProviderMPulse})

		assert.True(t, apperrors.IsNotFoundError(err))
	})
}

// --- terms ---

func TestTerms_ExtensionDays(t *testing.T) {
	days, err := testTerms.ExtensionDays(vo.ProviderMPulse, runAt)
	require.NoError(t, err)
	assert.Equal(t, 8, days)

	// May 10 + 4 months crosses May, June, July and August.
	days, err = testTerms.ExtensionDays(vo.ProviderFacebook, runAt)
	require.NoError(t, err)
	assert.Equal(t, 123, days)

	_, err = Terms{}.ExtensionDays(vo.ProviderMPulse, runAt)
	assert.Error(t, err)
}

func TestActivationNotifier_NilIsNoop(t *testing.T) {
	var n *ActivationNotifier
	assert.NotPanics(t, func() { n.Activated(pendingSub(t, 1, "tid-1", vo.ProviderMPulse)) })
}

func TestActivationNotifier_PartnerFailureIsLogged(t *testing.T) {
	partner := &recordingPartner{err: errors.New("partner down")}
	n := newNotifier(t, partner, nil)

	n.Activated(pendingSub(t, 1, "tid-1", vo.ProviderMPulse))

	assert.Eventually(t, func() bool { return len(partner.Codes()) == 1 }, time.Second, 5*time.Millisecond)
}

// blockingPartner holds every notice until release is closed.
type blockingPartner struct {
	release chan struct{}
	done    atomic.Int32
}

func (p *blockingPartner) NotifyActivation(_ context.Context, _ *subscription.Subscription) error {
	<-p.release
	p.done.Add(1)
	return nil
}

func TestActivationNotifier_WaitBlocksUntilDelivered(t *testing.T) {
	partner := &blockingPartner{release: make(chan struct{})}
	n := NewActivationNotifier(memberStub{}, nil, partner, logger.NewNop())

	n.Activated(pendingSub(t, 1, "tid-1", vo.ProviderMPulse))

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := n.Wait(short)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(partner.release)
	require.NoError(t, n.Wait(context.Background()))
	assert.Equal(t, int32(1), partner.done.Load())
}

func TestActivationNotifier_WaitWithNothingInFlight(t *testing.T) {
	var nilNotifier *ActivationNotifier
	assert.NoError(t, nilNotifier.Wait(context.Background()))
	assert.NoError(t, newNotifier(t, &recordingPartner{}, nil).Wait(context.Background()))
}
