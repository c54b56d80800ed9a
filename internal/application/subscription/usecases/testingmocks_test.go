package usecases

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jaxspot/billing/internal/application/subscription/providergateway"
	"github.com/jaxspot/billing/internal/domain/member"
	"github.com/jaxspot/billing/internal/domain/subscription"
	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
)

type mockSubscriptionRepository struct {
	mock.Mock
}

func (m *mockSubscriptionRepository) ActiveOrPendingFor(ctx context.Context, memberID uint, provider vo.Provider) (*subscription.Subscription, error) {
	args := m.Called(ctx, memberID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepository) FindByCode(ctx context.Context, provider vo.Provider, code string) (*subscription.Subscription, error) {
	args := m.Called(ctx, provider, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepository) RenewableExpiredAt(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*subscription.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepository) NonRenewableExpiredAt(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*subscription.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepository) PendingFor(ctx context.Context, provider vo.Provider) ([]*subscription.Subscription, error) {
	args := m.Called(ctx, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*subscription.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepository) PendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*subscription.Subscription, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*subscription.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *mockSubscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

type mockMemberRepository struct {
	mock.Mock
}

func (m *mockMemberRepository) GetByID(ctx context.Context, id uint) (*member.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*member.Member), args.Error(1)
}

func (m *mockMemberRepository) GetByFacebookID(ctx context.Context, facebookID string) (*member.Member, error) {
	args := m.Called(ctx, facebookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*member.Member), args.Error(1)
}

type mockGateway struct {
	mock.Mock
	provider vo.Provider
}

func newMockGateway(provider vo.Provider) *mockGateway {
	return &mockGateway{provider: provider}
}

func (m *mockGateway) Provider() vo.Provider {
	return m.provider
}

func (m *mockGateway) AcquirePurchaseURL(ctx context.Context, client providergateway.ClientContext, reference string) providergateway.PurchaseResult {
	args := m.Called(ctx, client, reference)
	return args.Get(0).(providergateway.PurchaseResult)
}

func (m *mockGateway) QueryStatus(ctx context.Context, code string) vo.SubscriptionStatus {
	args := m.Called(ctx, code)
	return args.Get(0).(vo.SubscriptionStatus)
}

func (m *mockGateway) RequestCancellation(ctx context.Context, code string) providergateway.CancellationResult {
	args := m.Called(ctx, code)
	return args.Get(0).(providergateway.CancellationResult)
}

// recordingPartner counts activation notices. It is safe for use from the
// notifier's goroutines.
type recordingPartner struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (p *recordingPartner) NotifyActivation(_ context.Context, sub *subscription.Subscription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes = append(p.codes, sub.Code())
	return p.err
}

func (p *recordingPartner) Codes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.codes...)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []uint
}

func (r *recordingMailer) SendRecoveryMail(_ context.Context, m *member.Member, _ *subscription.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, m.ID())
	return nil
}

func (r *recordingMailer) Sent() []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint(nil), r.sent...)
}

// memberStub returns a mailable member for any ID.
type memberStub struct{}

func (memberStub) GetByID(_ context.Context, id uint) (*member.Member, error) {
	return member.ReconstructMember(id, "m@example.com", "Member", "fr_FR", false, "", "orange")
}

func (memberStub) GetByFacebookID(context.Context, string) (*member.Member, error) {
	return nil, member.ErrMemberNotFound
}

type mockDeduplicator struct {
	mock.Mock
}

func (m *mockDeduplicator) Acquire(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockDeduplicator) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type mockSession struct {
	mock.Mock
}

func (m *mockSession) EstablishSession(ctx context.Context, mem *member.Member) error {
	args := m.Called(ctx, mem)
	return args.Error(0)
}

// --- fixtures ---

var (
	runAt     = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	testTerms = Terms{
		vo.ProviderMPulse:   vo.Days(8),
		vo.ProviderFacebook: vo.Months(4),
	}
)

func activeSub(t *testing.T, id uint, code string, expiresAt time.Time) *subscription.Subscription {
	t.Helper()
	return storedSub(t, id, code, vo.ProviderMPulse, vo.StatusActive, &expiresAt)
}

func pendingSub(t *testing.T, id uint, code string, provider vo.Provider) *subscription.Subscription {
	t.Helper()
	return storedSub(t, id, code, provider, vo.StatusPending, nil)
}

func storedSub(t *testing.T, id uint, code string, provider vo.Provider, status vo.SubscriptionStatus, expiresAt *time.Time) *subscription.Subscription {
	t.Helper()
	created := runAt.AddDate(0, -1, 0)
	sub, err := subscription.ReconstructSubscription(id, code, provider, status, provider.IsRenewable(), expiresAt, 100+id, 1, created, created)
	require.NoError(t, err)
	return sub
}

func testMember(t *testing.T, id uint, anonymous bool) *member.Member {
	t.Helper()
	m, err := member.ReconstructMember(id, "m@example.com", "Member", "fr_FR", anonymous, "fb-1", "orange")
	require.NoError(t, err)
	return m
}
