package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/internal/events"
	"github.com/Dhoini/billing-service/internal/gateway"
	"github.com/Dhoini/billing-service/internal/metrics"
	"github.com/Dhoini/billing-service/internal/repository"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptedGateway одобряет платежи, пока не задана ошибка или паника
type scriptedGateway struct {
	mu      sync.Mutex
	err     error
	panics  bool
	settled int
}

func (g *scriptedGateway) Settle(_ context.Context, _ *domain.Payment) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settled++
	if g.panics {
		panic("gateway client is nil")
	}
	if g.err != nil {
		return "", g.err
	}
	return "tx_test", nil
}

func (g *scriptedGateway) decline(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

type failingUpdateRepo struct {
	repository.SubscriptionRepository
	failUpdates bool
}

func (r *failingUpdateRepo) Update(ctx context.Context, sub *domain.Subscription) error {
	if r.failUpdates {
		return errors.New("connection reset")
	}
	return r.SubscriptionRepository.Update(ctx, sub)
}

type BillingSuite struct {
	suite.Suite

	ctx           context.Context
	clock         *testClock
	gw            *scriptedGateway
	bus           *events.MemoryBus
	subsRepo      *failingUpdateRepo
	paymentRepo   *repository.InMemoryPaymentRepository
	plans         *repository.InMemoryPlanRepository
	payments      PaymentService
	subscriptions SubscriptionService

	plan domain.Plan
}

func (s *BillingSuite) SetupTest() {
	log := logger.NewNop()
	s.ctx = context.Background()
	s.clock = &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s.gw = &scriptedGateway{}
	s.bus = events.NewMemoryBus()

	s.plan = domain.Plan{
		ID:       "plan-monthly",
		Name:     "Monthly",
		Price:    decimal.NewFromInt(50),
		Duration: domain.PlanDurationMonthly,
		Status:   domain.PlanStatusActive,
	}
	s.plans = repository.NewInMemoryPlanRepository(log, s.plan, domain.Plan{
		ID:       "plan-legacy",
		Name:     "Legacy",
		Price:    decimal.NewFromInt(10),
		Duration: domain.PlanDurationMonthly,
		Status:   domain.PlanStatusInactive,
	})
	subscribers := repository.NewInMemorySubscriberRepository(log,
		domain.Subscriber{ID: "user-1", Email: "one@example.com", Name: "One"},
		domain.Subscriber{ID: "user-2", Email: "two@example.com", Name: "Two"},
	)

	s.subsRepo = &failingUpdateRepo{SubscriptionRepository: repository.NewInMemorySubscriptionRepository(log)}
	s.paymentRepo = repository.NewInMemoryPaymentRepository(log)

	m := metrics.New(log)
	dispatcher := events.NewDispatcher(s.bus, s.bus, m.Events, log, events.WithPublishRetry(0, time.Millisecond))
	opts := []Option{WithClock(s.clock.Now), WithGatewayTimeout(time.Second)}

	s.payments = NewPaymentService(s.paymentRepo, s.subsRepo, subscribers, s.gw, dispatcher, m.Payments, log, opts...)
	s.subscriptions = NewSubscriptionService(s.subsRepo, s.plans, subscribers, s.payments, dispatcher, m.Subscriptions, log, opts...)
}

func (s *BillingSuite) createSubscription(subscriberID string) *domain.Subscription {
	sub, err := s.subscriptions.Create(s.ctx, domain.SubscriptionRequest{SubscriberID: subscriberID, PlanID: s.plan.ID})
	s.Require().NoError(err)
	return sub
}

// Сценарий A
func (s *BillingSuite) TestCreate_ActiveWithApprovedPayment() {
	now := s.clock.Now()
	sub := s.createSubscription("user-1")

	s.Equal(domain.SubscriptionStatusActive, sub.Status)
	s.True(sub.EndDate.Equal(now.AddDate(0, 0, 30)))

	payments, err := s.payments.FindBySubscription(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Require().Len(payments, 1)
	s.Equal(domain.PaymentStatusApproved, payments[0].Status)
	s.True(payments[0].Amount.Equal(decimal.NewFromInt(50)))
	s.Equal("tx_test", payments[0].TransactionID)

	s.Equal([]string{
		domain.EventSubscriptionCreated,
		string(domain.NotificationSubscriptionCreated),
		domain.EventPaymentCreated,
		domain.EventPaymentApproved,
		string(domain.NotificationPaymentSuccess),
	}, s.bus.Names())
}

func (s *BillingSuite) TestCreate_Rejections() {
	_, err := s.subscriptions.Create(s.ctx, domain.SubscriptionRequest{SubscriberID: "ghost", PlanID: s.plan.ID})
	s.ErrorIs(err, domain.ErrNotFound)

	_, err = s.subscriptions.Create(s.ctx, domain.SubscriptionRequest{SubscriberID: "user-1", PlanID: "missing"})
	s.ErrorIs(err, domain.ErrNotFound)

	_, err = s.subscriptions.Create(s.ctx, domain.SubscriptionRequest{SubscriberID: "user-1", PlanID: "plan-legacy"})
	s.ErrorIs(err, domain.ErrPlanInactive)

	s.createSubscription("user-1")
	_, err = s.subscriptions.Create(s.ctx, domain.SubscriptionRequest{SubscriberID: "user-1", PlanID: s.plan.ID})
	s.ErrorIs(err, domain.ErrDuplicateActiveSubscription)
}

func (s *BillingSuite) TestCreate_OptimisticOnDeclinedPayment() {
	s.gw.decline(errors.New("card declined"))

	sub := s.createSubscription("user-1")
	s.Equal(domain.SubscriptionStatusActive, sub.Status)

	payments, err := s.payments.FindByUser(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Require().Len(payments, 1)
	s.Equal(domain.PaymentStatusFailed, payments[0].Status)
	s.Contains(payments[0].FailureReason, "card declined")
}

// Сценарий B
func (s *BillingSuite) TestCheckRenewals_RenewsFromPreviousEndDate() {
	sub := s.createSubscription("user-1")
	oldEnd := sub.EndDate

	s.clock.Advance(35 * 24 * time.Hour)
	renewed, err := s.subscriptions.CheckRenewals(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(renewed, 1)

	got, err := s.subscriptions.FindByID(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(domain.SubscriptionStatusActive, got.Status)
	s.True(got.EndDate.Equal(oldEnd.AddDate(0, 0, 30)))
	s.Equal(0, got.FailedPaymentAttempts)

	payments, err := s.payments.FindBySubscription(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Len(payments, 2)
}

func (s *BillingSuite) TestCheckRenewals_SkipsNotDue() {
	s.createSubscription("user-1")

	renewed, err := s.subscriptions.CheckRenewals(s.ctx)
	s.Require().NoError(err)
	s.Empty(renewed)
}

// Сценарий C: подписка в pending снова попадает в обход, третья неудача переводит ее в expired
func (s *BillingSuite) TestCheckRenewals_EscalatesToExpired() {
	sub := s.createSubscription("user-1")
	oldEnd := sub.EndDate
	s.gw.decline(errors.New("insufficient funds"))
	s.clock.Advance(31 * 24 * time.Hour)

	var statuses []domain.SubscriptionStatus
	for i := 0; i < 4; i++ {
		renewed, err := s.subscriptions.CheckRenewals(s.ctx)
		s.Require().NoError(err)
		s.Empty(renewed)

		got, err := s.subscriptions.FindByID(s.ctx, sub.ID)
		s.Require().NoError(err)
		statuses = append(statuses, got.Status)
		s.True(got.EndDate.Equal(oldEnd))
	}

	s.Equal([]domain.SubscriptionStatus{
		domain.SubscriptionStatusPending,
		domain.SubscriptionStatusPending,
		domain.SubscriptionStatusExpired,
		domain.SubscriptionStatusExpired,
	}, statuses)

	got, err := s.subscriptions.FindByID(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(3, got.FailedPaymentAttempts)

	eventNames := s.bus.EventNames()
	s.Equal(2, countOf(eventNames, domain.EventSubscriptionPending))
	s.Equal(1, countOf(eventNames, domain.EventSubscriptionExpired))
}

func (s *BillingSuite) TestCheckRenewals_PendingRecoversOnApproval() {
	sub := s.createSubscription("user-1")
	s.clock.Advance(31 * 24 * time.Hour)

	s.gw.decline(errors.New("insufficient funds"))
	_, err := s.subscriptions.CheckRenewals(s.ctx)
	s.Require().NoError(err)

	s.gw.decline(nil)
	renewed, err := s.subscriptions.CheckRenewals(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(renewed, 1)
	s.Equal(sub.ID, renewed[0].ID)
	s.Equal(domain.SubscriptionStatusActive, renewed[0].Status)
	s.Equal(0, renewed[0].FailedPaymentAttempts)
}

func (s *BillingSuite) TestCheckRenewals_MarkAsPendingFailureIsSkipped() {
	s.createSubscription("user-1")
	s.createSubscription("user-2")
	s.gw.decline(errors.New("declined"))
	s.clock.Advance(31 * 24 * time.Hour)
	s.subsRepo.failUpdates = true

	renewed, err := s.subscriptions.CheckRenewals(s.ctx)
	s.NoError(err)
	s.Empty(renewed)
	s.Equal(2+2, s.gw.settled)
}

func (s *BillingSuite) TestRenew_DeclinedLeavesSubscriptionUntouched() {
	sub := s.createSubscription("user-1")
	s.gw.decline(errors.New("do not honor"))

	_, err := s.subscriptions.Renew(s.ctx, sub.ID)
	s.ErrorIs(err, domain.ErrPaymentDeclined)

	var declined *domain.PaymentDeclinedError
	s.Require().ErrorAs(err, &declined)
	s.Equal(sub.ID, declined.SubscriptionID)

	got, err := s.subscriptions.FindByID(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.True(got.EndDate.Equal(sub.EndDate))
	s.Equal(domain.SubscriptionStatusActive, got.Status)
}

func (s *BillingSuite) TestRenew_TerminalSubscription() {
	sub := s.createSubscription("user-1")
	_, err := s.subscriptions.Cancel(s.ctx, sub.ID)
	s.Require().NoError(err)

	settled := s.gw.settled
	_, err = s.subscriptions.Renew(s.ctx, sub.ID)
	s.ErrorIs(err, domain.ErrInvalidTransition)
	s.Equal(settled, s.gw.settled)

	_, err = s.subscriptions.Renew(s.ctx, "missing")
	s.ErrorIs(err, domain.ErrNotFound)
}

// Сценарий E
func (s *BillingSuite) TestCancel() {
	sub := s.createSubscription("user-1")

	canceled, err := s.subscriptions.Cancel(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(domain.SubscriptionStatusCanceled, canceled.Status)
	s.Require().NotNil(canceled.CanceledAt)

	_, err = s.subscriptions.Cancel(s.ctx, sub.ID)
	s.ErrorIs(err, domain.ErrInvalidTransition)

	pending := s.createSubscription("user-1")
	_, err = s.subscriptions.MarkAsPending(s.ctx, pending.ID)
	s.Require().NoError(err)
	canceled, err = s.subscriptions.Cancel(s.ctx, pending.ID)
	s.Require().NoError(err)
	s.NotNil(canceled.CanceledAt)

	_, err = s.subscriptions.Cancel(s.ctx, "missing")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *BillingSuite) TestMarkAsExpired() {
	sub := s.createSubscription("user-1")
	s.bus.Reset()

	got, err := s.subscriptions.MarkAsExpired(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(domain.SubscriptionStatusExpired, got.Status)
	s.Equal([]string{domain.EventSubscriptionExpired}, s.bus.Names())

	_, err = s.subscriptions.MarkAsExpired(s.ctx, sub.ID)
	s.ErrorIs(err, domain.ErrInvalidTransition)
}

func (s *BillingSuite) TestFindActiveByUser() {
	_, err := s.subscriptions.FindActiveByUser(s.ctx, "user-1")
	s.ErrorIs(err, domain.ErrNotFound)

	sub := s.createSubscription("user-1")
	got, err := s.subscriptions.FindActiveByUser(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(sub.ID, got.ID)

	_, err = s.subscriptions.MarkAsPending(s.ctx, sub.ID)
	s.Require().NoError(err)
	_, err = s.subscriptions.FindActiveByUser(s.ctx, "user-1")
	s.ErrorIs(err, domain.ErrNotFound)

	all, err := s.subscriptions.FindByUser(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Len(all, 1)
}

// Сценарий D
func (s *BillingSuite) TestRefund() {
	old, err := s.payments.Create(s.ctx, domain.PaymentRequest{SubscriberID: "user-1", Amount: decimal.NewFromInt(80)})
	s.Require().NoError(err)
	old, err = s.payments.Process(s.ctx, old)
	s.Require().NoError(err)

	s.clock.Advance(8 * 24 * time.Hour)
	_, err = s.payments.Refund(s.ctx, old.ID, domain.RefundRequest{PercentageToRefund: 100, Reason: "late"})
	s.ErrorIs(err, domain.ErrRefundWindowExpired)

	fresh, err := s.payments.Create(s.ctx, domain.PaymentRequest{SubscriberID: "user-1", Amount: decimal.NewFromInt(80)})
	s.Require().NoError(err)
	fresh, err = s.payments.Process(s.ctx, fresh)
	s.Require().NoError(err)
	s.bus.Reset()

	refunded, err := s.payments.Refund(s.ctx, fresh.ID, domain.RefundRequest{PercentageToRefund: 100, Reason: "customer request"})
	s.Require().NoError(err)
	s.Equal(domain.PaymentStatusRefunded, refunded.Status)
	s.NotNil(refunded.RefundedAt)
	s.Equal("customer request", refunded.FailureReason)

	evts := s.bus.Events()
	s.Require().Len(evts, 1)
	payload, ok := evts[0].Payload.(domain.PaymentEvent)
	s.Require().True(ok)
	s.Require().NotNil(payload.RefundAmount)
	s.True(payload.RefundAmount.Equal(decimal.NewFromInt(80)))

	_, err = s.payments.Refund(s.ctx, fresh.ID, domain.RefundRequest{PercentageToRefund: 100})
	s.ErrorIs(err, domain.ErrInvalidTransition)
}

func (s *BillingSuite) TestRefund_Validation() {
	p, err := s.payments.Create(s.ctx, domain.PaymentRequest{SubscriberID: "user-1", Amount: decimal.NewFromInt(20)})
	s.Require().NoError(err)

	_, err = s.payments.Refund(s.ctx, p.ID, domain.RefundRequest{PercentageToRefund: 101})
	s.ErrorIs(err, domain.ErrInvalidInput)

	_, err = s.payments.Refund(s.ctx, p.ID, domain.RefundRequest{PercentageToRefund: 50})
	s.ErrorIs(err, domain.ErrInvalidTransition)

	_, err = s.payments.Refund(s.ctx, "missing", domain.RefundRequest{PercentageToRefund: 50})
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *BillingSuite) TestCreatePayment_Rejections() {
	_, err := s.payments.Create(s.ctx, domain.PaymentRequest{SubscriberID: "user-1", Amount: decimal.NewFromInt(-1)})
	s.ErrorIs(err, domain.ErrInvalidAmount)

	_, err = s.payments.Create(s.ctx, domain.PaymentRequest{SubscriberID: "ghost", Amount: decimal.NewFromInt(1)})
	s.ErrorIs(err, domain.ErrNotFound)

	p, err := s.payments.Create(s.ctx, domain.PaymentRequest{SubscriberID: "user-1", Amount: decimal.Zero})
	s.Require().NoError(err)
	s.Equal(domain.PaymentStatusPending, p.Status)
}

func (s *BillingSuite) TestCreatePayment_SubscriptionOwnership() {
	other := s.createSubscription("user-2")

	_, err := s.payments.Create(s.ctx, domain.PaymentRequest{
		SubscriberID:   "user-1",
		SubscriptionID: &other.ID,
		Amount:         decimal.NewFromInt(5),
	})
	s.ErrorIs(err, domain.ErrInvalidInput)

	missing := "no-such-subscription"
	_, err = s.payments.Create(s.ctx, domain.PaymentRequest{
		SubscriberID:   "user-1",
		SubscriptionID: &missing,
		Amount:         decimal.NewFromInt(5),
	})
	s.ErrorIs(err, domain.ErrNotFound)

	own, err := s.payments.Create(s.ctx, domain.PaymentRequest{
		SubscriberID:   "user-2",
		SubscriptionID: &other.ID,
		Amount:         decimal.NewFromInt(5),
	})
	s.Require().NoError(err)

	bySub, err := s.payments.FindBySubscription(s.ctx, other.ID)
	s.Require().NoError(err)
	s.Len(bySub, 2)
	s.Contains(paymentIDs(bySub), own.ID)
}

func (s *BillingSuite) TestProcess_OnlyPendingReachesGateway() {
	p, err := s.payments.Create(s.ctx, domain.PaymentRequest{SubscriberID: "user-1", Amount: decimal.NewFromInt(5)})
	s.Require().NoError(err)

	approved, err := s.payments.Process(s.ctx, p)
	s.Require().NoError(err)
	s.Equal(domain.PaymentStatusApproved, approved.Status)
	s.Equal(1, s.gw.settled)

	_, err = s.payments.Process(s.ctx, approved)
	s.ErrorIs(err, domain.ErrInvalidTransition)
	s.Equal(1, s.gw.settled)

	stored, err := s.payments.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(domain.PaymentStatusApproved, stored.Status)
	s.Equal("tx_test", stored.TransactionID)
}

func (s *BillingSuite) TestProcess_GatewayPanicFailsPayment() {
	p, err := s.payments.Create(s.ctx, domain.PaymentRequest{SubscriberID: "user-1", Amount: decimal.NewFromInt(5)})
	s.Require().NoError(err)

	s.gw.panics = true
	got, err := s.payments.Process(s.ctx, p)
	s.Require().NoError(err)
	s.Equal(domain.PaymentStatusFailed, got.Status)
	s.Contains(got.FailureReason, "gateway client is nil")
}

func (s *BillingSuite) TestMarkAsFailed_DefaultReason() {
	p, err := s.payments.Create(s.ctx, domain.PaymentRequest{SubscriberID: "user-1", Amount: decimal.NewFromInt(5)})
	s.Require().NoError(err)

	got, err := s.payments.MarkAsFailed(s.ctx, p.ID, "")
	s.Require().NoError(err)
	s.Equal(domain.DefaultFailureReason, got.FailureReason)

	_, err = s.payments.MarkAsApproved(s.ctx, p.ID, "tx_late")
	s.ErrorIs(err, domain.ErrInvalidTransition)
}

func (s *BillingSuite) TestNotifierFailureDoesNotFailTransition() {
	s.bus.FailNotify(errors.New("mail relay down"))

	sub := s.createSubscription("user-1")
	s.Equal(domain.SubscriptionStatusActive, sub.Status)
	s.Empty(s.bus.Notifications())
	s.Contains(s.bus.EventNames(), domain.EventSubscriptionCreated)

	canceled, err := s.subscriptions.Cancel(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(domain.SubscriptionStatusCanceled, canceled.Status)
}

func (s *BillingSuite) TestEventOrdering_EventBeforeNotification() {
	sub := s.createSubscription("user-1")
	s.bus.Reset()

	_, err := s.subscriptions.Cancel(s.ctx, sub.ID)
	s.Require().NoError(err)

	records := s.bus.Records()
	s.Require().Len(records, 2)
	s.Equal(events.RecordEvent, records[0].Type)
	s.Equal(domain.EventSubscriptionCancelled, records[0].Event.Name)
	s.Equal(events.RecordNotification, records[1].Type)
	s.Equal(domain.NotificationSubscriptionCancelled, records[1].Notification.Kind)
}

func countOf(names []string, name string) int {
	n := 0
	for _, v := range names {
		if v == name {
			n++
		}
	}
	return n
}

func TestBillingSuite(t *testing.T) {
	suite.Run(t, new(BillingSuite))
}

var _ gateway.Gateway = (*scriptedGateway)(nil)

func paymentIDs(payments []*domain.Payment) []string {
	return lo.Map(payments, func(p *domain.Payment, _ int) string { return p.ID })
}
