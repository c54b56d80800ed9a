package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jaxspot/billing/internal/application/subscription/providergateway"
	"github.com/jaxspot/billing/internal/domain/member"
	"github.com/jaxspot/billing/internal/domain/subscription"
	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
	"github.com/jaxspot/billing/internal/shared/biztime"
	apperrors "github.com/jaxspot/billing/internal/shared/errors"
	"github.com/jaxspot/billing/internal/shared/logger"
)

func newPaymentCallbackUseCase(repo *mockSubscriptionRepository, members member.Repository, partner *recordingPartner) *HandlePaymentCallbackUseCase {
	uc := NewHandlePaymentCallbackUseCase(repo, members, testTerms,
		NewActivationNotifier(members, nil, partner, logger.NewNop()),
		CatalogItem{ItemID: "subscription", Title: "Jaxspot", ProductURL: "https://jaxspot.example/item", Price: 50},
		logger.NewNop())
	uc.SetClock(biztime.Fixed(runAt))
	return uc
}

func settledCallback(code string) ProviderCallback {
	return ProviderCallback{
		Provider: vo.ProviderFacebook,
		Method:   MethodPaymentsStatusUpdate,
		Status:   PaymentStatusSettled,
		Code:     code,
	}
}

func TestPaymentCallback_PlacedCreatesPending(t *testing.T) {
	members := new(mockMemberRepository)
	members.On("GetByFacebookID", mock.Anything, "fb-1").Return(testMember(t, 7, false), nil)

	repo := new(mockSubscriptionRepository)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(s *subscription.Subscription) bool {
		return s.Code() == "order-1" && s.MemberID() == 7 && s.Status() == vo.StatusPending && !s.Renewable()
	})).Return(nil)

	uc := newPaymentCallbackUseCase(repo, members, &recordingPartner{})

	resp, err := uc.Execute(context.Background(), ProviderCallback{
		Provider:        vo.ProviderFacebook,
		Method:          MethodPaymentsStatusUpdate,
		Status:          PaymentStatusPlaced,
		Code:            "order-1",
		BuyerFacebookID: "fb-1",
	})

	require.NoError(t, err)
	assert.Equal(t, MethodPaymentsStatusUpdate, resp.Method)
	assert.Equal(t, OrderStatusContent{OrderID: "order-1", Status: "settled"}, resp.Content)
	repo.AssertExpectations(t)
}

func TestPaymentCallback_PlacedReplayIsAccepted(t *testing.T) {
	members := new(mockMemberRepository)
	members.On("GetByFacebookID", mock.Anything, "fb-1").Return(testMember(t, 107, false), nil)

	existing := pendingSub(t, 7, "order-1", vo.ProviderFacebook)
	repo := new(mockSubscriptionRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(subscription.ErrSubscriptionConflict)
	repo.On("FindByCode", mock.Anything, vo.ProviderFacebook, "order-1").Return(existing, nil)

	uc := newPaymentCallbackUseCase(repo, members, &recordingPartner{})

	_, err := uc.Execute(context.Background(), ProviderCallback{
		Provider: vo.ProviderFacebook, Method: MethodPaymentsStatusUpdate,
		Status: PaymentStatusPlaced, Code: "order-1", BuyerFacebookID: "fb-1",
	})

	assert.NoError(t, err)
}

func TestPaymentCallback_PlacedWhileSubscribed(t *testing.T) {
	members := new(mockMemberRepository)
	members.On("GetByFacebookID", mock.Anything, "fb-1").Return(testMember(t, 7, false), nil)

	repo := new(mockSubscriptionRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(subscription.ErrSubscriptionConflict)
	repo.On("FindByCode", mock.Anything, vo.ProviderFacebook, "order-2").Return(nil, subscription.ErrSubscriptionNotFound)

	uc := newPaymentCallbackUseCase(repo, members, &recordingPartner{})

	_, err := uc.Execute(context.Background(), ProviderCallback{
		Provider: vo.ProviderFacebook, Method: MethodPaymentsStatusUpdate,
		Status: PaymentStatusPlaced, Code: "order-2", BuyerFacebookID: "fb-1",
	})

	assert.True(t, apperrors.IsConflictError(err))
}

func TestPaymentCallback_SettledActivates(t *testing.T) {
	sub := pendingSub(t, 1, "order-1", vo.ProviderFacebook)

	repo := new(mockSubscriptionRepository)
	repo.On("FindByCode", mock.Anything, vo.ProviderFacebook, "order-1").Return(sub, nil)
	repo.On("Update", mock.Anything, sub).Return(nil).Once()

	partner := &recordingPartner{}
	uc := newPaymentCallbackUseCase(repo, new(mockMemberRepository), partner)

	_, err := uc.Execute(context.Background(), settledCallback("order-1"))

	require.NoError(t, err)
	assert.Equal(t, vo.StatusActive, sub.Status())
	assert.True(t, runAt.AddDate(0, 4, 0).Equal(*sub.ExpiresAt()))
	assert.Eventually(t, func() bool { return len(partner.Codes()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestPaymentCallback_SettledTwiceIsNoop(t *testing.T) {
	expiry := runAt.AddDate(0, 4, 0)
	sub := storedSub(t, 1, "order-1", vo.ProviderFacebook, vo.StatusActive, &expiry)

	repo := new(mockSubscriptionRepository)
	repo.On("FindByCode", mock.Anything, vo.ProviderFacebook, "order-1").Return(sub, nil)

	partner := &recordingPartner{}
	uc := newPaymentCallbackUseCase(repo, new(mockMemberRepository), partner)

	_, err := uc.Execute(context.Background(), settledCallback("order-1"))

	require.NoError(t, err)
	assert.True(t, expiry.Equal(*sub.ExpiresAt()))
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	assert.Empty(t, partner.Codes())
}

func TestPaymentCallback_DeduplicatorDropsRepeat(t *testing.T) {
	repo := new(mockSubscriptionRepository)
	dedup := new(mockDeduplicator)
	dedup.On("Acquire", mock.Anything, "facebook:settled:order-1").Return(false, nil)

	uc := newPaymentCallbackUseCase(repo, new(mockMemberRepository), &recordingPartner{})
	uc.SetDeduplicator(dedup)

	resp, err := uc.Execute(context.Background(), settledCallback("order-1"))

	require.NoError(t, err)
	assert.NotNil(t, resp)
	repo.AssertNotCalled(t, "FindByCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentCallback_DeduplicatorReleasedOnFailure(t *testing.T) {
	repo := new(mockSubscriptionRepository)
	repo.On("FindByCode", mock.Anything, vo.ProviderFacebook, "order-1").Return(nil, errors.New("db down"))

	dedup := new(mockDeduplicator)
	dedup.On("Acquire", mock.Anything, "facebook:settled:order-1").Return(true, nil)
	dedup.On("Release", mock.Anything, "facebook:settled:order-1").Return(nil).Once()

	uc := newPaymentCallbackUseCase(repo, new(mockMemberRepository), &recordingPartner{})
	uc.SetDeduplicator(dedup)

	_, err := uc.Execute(context.Background(), settledCallback("order-1"))

	assert.Error(t, err)
	dedup.AssertExpectations(t)
}

func TestPaymentCallback_SettledForClosedSubscription(t *testing.T) {
	expiry := runAt.AddDate(0, -1, 0)
	sub := storedSub(t, 1, "order-1", vo.ProviderFacebook, vo.StatusFinished, &expiry)

	repo := new(mockSubscriptionRepository)
	repo.On("FindByCode", mock.Anything, vo.ProviderFacebook, "order-1").Return(sub, nil)

	uc := newPaymentCallbackUseCase(repo, new(mockMemberRepository), &recordingPartner{})

	_, err := uc.Execute(context.Background(), settledCallback("order-1"))

	assert.True(t, apperrors.IsConflictError(err))
	assert.ErrorIs(t, err, subscription.ErrIllegalTransition)
	assert.Equal(t, vo.StatusFinished, sub.Status())
}

func TestPaymentCallback_GetItems(t *testing.T) {
	uc := newPaymentCallbackUseCase(new(mockSubscriptionRepository), new(mockMemberRepository), &recordingPartner{})

	resp, err := uc.Execute(context.Background(), ProviderCallback{Provider: vo.ProviderFacebook, Method: MethodPaymentsGetItems})

	require.NoError(t, err)
	items, ok := resp.Content.([]CatalogItem)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "subscription", items[0].ItemID)
}

func TestPaymentCallback_RejectsUnknownInput(t *testing.T) {
	uc := newPaymentCallbackUseCase(new(mockSubscriptionRepository), new(mockMemberRepository), &recordingPartner{})

	_, err := uc.Execute(context.Background(), ProviderCallback{Method: "payments_refund"})
	assert.Error(t, err)

	_, err = uc.Execute(context.Background(), ProviderCallback{Method: MethodPaymentsStatusUpdate, Status: "refunded", Code: "x"})
	assert.Error(t, err)

	_, err = uc.Execute(context.Background(), ProviderCallback{Method: MethodPaymentsStatusUpdate, Status: PaymentStatusSettled})
	assert.Error(t, err)
}

// --- provider return ---

func newReturnUseCase(repo *mockSubscriptionRepository, members member.Repository, gw *mockGateway, partner *recordingPartner) *HandleProviderReturnUseCase {
	uc := NewHandleProviderReturnUseCase(repo, members, providergateway.NewRegistry(gw), testTerms,
		NewActivationNotifier(members, nil, partner, logger.NewNop()), nil, logger.NewNop())
	uc.SetClock(biztime.Fixed(runAt))
	return uc
}

func TestProviderReturn_ActivatesAndEstablishesSession(t *testing.T) {
	sub := pendingSub(t, 1, "tid-1", vo.ProviderMPulse)
	anonymous := testMember(t, 101, true)

	repo := new(mockSubscriptionRepository)
	repo.On("FindByCode", mock.Anything, vo.ProviderMPulse, "tid-1").Return(sub, nil)
	repo.On("Update", mock.Anything, sub).Return(nil)

	members := new(mockMemberRepository)
	members.On("GetByID", mock.Anything, uint(101)).Return(anonymous, nil)

	gw := newMockGateway(vo.ProviderMPulse)
	gw.On("QueryStatus", mock.Anything, "tid-1").Return(vo.StatusActive)

	session := new(mockSession)
	session.On("EstablishSession", mock.Anything, anonymous).Return(nil).Once()

	partner := &recordingPartner{}
	uc := newReturnUseCase(repo, members, gw, partner)

	result, err := uc.Execute(context.Background(), ProviderReturnCommand{
		Provider: vo.ProviderMPulse,
		Code:     "tid-1",
		Session:  session,
	})

	require.NoError(t, err)
	assert.True(t, result.Activated)
	assert.True(t, runAt.AddDate(0, 0, 8).Equal(*sub.ExpiresAt()))
	session.AssertExpectations(t)
	assert.Eventually(t, func() bool { return len(partner.Codes()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestProviderReturn_CreatesMissingSubscription(t *testing.T) {
	repo := new(mockSubscriptionRepository)
	repo.On("FindByCode", mock.Anything, vo.ProviderMPulse, "tid-9").Return(nil, subscription.ErrSubscriptionNotFound)
	repo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		require.NoError(t, args.Get(1).(*subscription.Subscription).SetID(9))
	}).Return(nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	members := new(mockMemberRepository)
	members.On("GetByID", mock.Anything, uint(7)).Return(testMember(t, 7, false), nil)

	gw := newMockGateway(vo.ProviderMPulse)
	gw.On("QueryStatus", mock.Anything, "tid-9").Return(vo.StatusActive)

	session := new(mockSession)
	uc := newReturnUseCase(repo, members, gw, &recordingPartner{})

	result, err := uc.Execute(context.Background(), ProviderReturnCommand{
		Provider: vo.ProviderMPulse,
		Code:     "tid-9",
		MemberID: 7,
		Session:  session,
	})

	require.NoError(t, err)
	assert.Equal(t, uint(9), result.SubscriptionID)
	assert.True(t, result.Activated)

	created := repo.Calls[1].Arguments.Get(1).(*subscription.Subscription)
	assert.True(t, created.Renewable())
	assert.Equal(t, vo.StatusActive, created.Status())
	session.AssertNotCalled(t, "EstablishSession", mock.Anything, mock.Anything)
}

func TestProviderReturn_NotSettled(t *testing.T) {
	repo := new(mockSubscriptionRepository)
	gw := newMockGateway(vo.ProviderMPulse)
	gw.On("QueryStatus", mock.Anything, "tid-1").Return(vo.StatusPending)

	uc := newReturnUseCase(repo, new(mockMemberRepository), gw, &recordingPartner{})

	result, err := uc.Execute(context.Background(), ProviderReturnCommand{Provider: vo.ProviderMPulse, Code: "tid-1"})

	require.NoError(t, err)
	assert.False(t, result.Activated)
	assert.Equal(t, vo.StatusPending, result.ProviderStatus)
	repo.AssertNotCalled(t, "FindByCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestProviderReturn_UnknownCodeWithoutSession(t *testing.T) {
	repo := new(mockSubscriptionRepository)
	repo.On("FindByCode", mock.Anything, vo.ProviderMPulse, "tid-1").Return(nil, subscription.ErrSubscriptionNotFound)

	gw := newMockGateway(vo.ProviderMPulse)
	gw.On("QueryStatus", mock.Anything, "tid-1").Return(vo.StatusActive)

	uc := newReturnUseCase(repo, new(mockMemberRepository), gw, &recordingPartner{})

	_, err := uc.Execute(context.Background(), ProviderReturnCommand{Provider: vo.ProviderMPulse, Code: "tid-1"})

	assert.True(t, apperrors.IsNotFoundError(err))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
