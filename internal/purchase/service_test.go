package purchase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/exlearn/billing-service/internal/catalog"
	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/internal/kafka"
	"github.com/exlearn/billing-service/internal/notification"
	"github.com/exlearn/billing-service/internal/repository"
	"github.com/exlearn/billing-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type spendCall struct {
	userID string
	amount int64
}

type fakeLedger struct {
	spendErr error
	spends   []spendCall
}

func (f *fakeLedger) GetBalance(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}

func (f *fakeLedger) GrantCredits(ctx context.Context, userID string, amount, ttlSeconds int64) error {
	return nil
}

func (f *fakeLedger) Spend(ctx context.Context, userID string, amount int64, allowAutoTopUp bool) error {
	if f.spendErr != nil {
		return f.spendErr
	}
	f.spends = append(f.spends, spendCall{userID: userID, amount: amount})
	return nil
}

type fakeDispatcher struct {
	err     error
	notices []notification.OrderNotice
}

func (f *fakeDispatcher) OrderCommitted(ctx context.Context, notice notification.OrderNotice) error {
	f.notices = append(f.notices, notice)
	return f.err
}

type fakeMetrics struct {
	purchases       map[string]int
	persistFailures int
	observed        []float64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{purchases: make(map[string]int)}
}

func (f *fakeMetrics) IncPurchase(category, outcome string) { f.purchases[category+"/"+outcome]++ }
func (f *fakeMetrics) IncPersistFailure(category string)    { f.persistFailures++ }
func (f *fakeMetrics) ObserveDebitedAmount(category string, amount float64) {
	f.observed = append(f.observed, amount)
}

type fakeEvents struct {
	created       []kafka.OrderEvent
	persistFailed []kafka.OrderEvent
}

func (f *fakeEvents) PublishOrderCreated(ctx context.Context, event kafka.OrderEvent) error {
	f.created = append(f.created, event)
	return nil
}

func (f *fakeEvents) PublishOrderPersistFailed(ctx context.Context, event kafka.OrderEvent) error {
	f.persistFailed = append(f.persistFailed, event)
	return nil
}

func (f *fakeEvents) Close() error { return nil }

type failingOrders struct {
	*repository.InMemoryOrderRepository
	insertErr error
}

func (f *failingOrders) Insert(ctx context.Context, userID, payerID string, items []domain.OrderItem) (string, error) {
	if f.insertErr != nil {
		return "", f.insertErr
	}
	return f.InMemoryOrderRepository.Insert(ctx, userID, payerID, items)
}

type fixture struct {
	service    *Service
	catalog    *repository.InMemoryCatalog
	users      *repository.InMemoryUserRepository
	orders     *failingOrders
	ledger     *fakeLedger
	dispatcher *fakeDispatcher
	metrics    *fakeMetrics
	events     *fakeEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.New(logger.ERROR)

	cat := repository.NewInMemoryCatalog(log)
	cat.PutCourse(domain.Course{ID: "course-1", Title: "Intro to Go", VerifiedCertCost: 50})
	cat.PutSchedule(domain.CourseSchedule{
		ID:        "sched-1",
		CourseID:  "course-1",
		ListPrice: 40,
		Runs: []domain.ScheduledRun{
			{ID: "run-list"},
			{ID: "run-offered", OfferedAtPrice: &domain.OfferedPrice{Amount: 30}},
		},
	})
	now := time.Now()
	cat.PutDiploma(domain.DigitalDiploma{
		ID:    "dd-1",
		Title: "Backend Diploma",
		Plans: []domain.DiplomaPlan{
			{ID: "plan-open", Title: "Standard", Cost: 200, OpensAt: now.Add(-time.Hour), ClosesAt: now.Add(time.Hour)},
			{ID: "plan-future", Title: "Early", Cost: 150, OpensAt: now.Add(time.Hour), ClosesAt: now.Add(2 * time.Hour)},
		},
	})

	users := repository.NewInMemoryUserRepository(log)
	orders := &failingOrders{InMemoryOrderRepository: repository.NewInMemoryOrderRepository(log)}
	ledgerClient := &fakeLedger{}
	dispatcher := &fakeDispatcher{}
	purchaseMetrics := newFakeMetrics()
	events := &fakeEvents{}

	resolver := catalog.NewPriceResolver(cat, cat, cat, 1, log)
	service := NewService(resolver, users, orders, ledgerClient, dispatcher, events, purchaseMetrics, "USD", log)

	return &fixture{
		service:    service,
		catalog:    cat,
		users:      users,
		orders:     orders,
		ledger:     ledgerClient,
		dispatcher: dispatcher,
		metrics:    purchaseMetrics,
		events:     events,
	}
}

func payer() domain.User {
	return domain.User{ID: "user-1", FullName: "Ada Lovelace", PrimaryEmail: "ada@example.com"}
}

func courseRunItem(runID string) domain.PurchaseItem {
	return domain.PurchaseItem{
		Category: domain.CategoryCourseRun,
		Refs: map[string]string{
			domain.RefSchedID: "sched-1",
			domain.RefRunID:   runID,
		},
	}
}

func TestPurchaseCourseRunUsesOfferedPrice(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.Purchase(context.Background(), Input{
		Payer: payer(),
		Item:  courseRunItem("run-offered"),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.OrderID)
	assert.Equal(t, int64(30), result.Amount)
	require.Len(t, f.ledger.spends, 1)
	assert.Equal(t, int64(30), f.ledger.spends[0].amount)
	assert.Equal(t, "user-1", f.ledger.spends[0].userID)

	require.Len(t, f.dispatcher.notices, 1)
	assert.Equal(t, result.OrderID, f.dispatcher.notices[0].OrderID)
	assert.Equal(t, 1, f.metrics.purchases["course_run/completed"])
	assert.Equal(t, []float64{30}, f.metrics.observed)
}

func TestPurchaseCourseRunFallsBackToListPrice(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.Purchase(context.Background(), Input{
		Payer: payer(),
		Item:  courseRunItem("run-list"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(40), result.Amount)
}

func TestPurchaseDuplicateCourseRunDebitsOnce(t *testing.T) {
	f := newFixture(t)

	first, err := f.service.Purchase(context.Background(), Input{
		Payer: payer(),
		Item:  courseRunItem("run-offered"),
	})
	require.NoError(t, err)

	second, err := f.service.Purchase(context.Background(), Input{
		Payer: payer(),
		Item:  courseRunItem("run-offered"),
	})
	require.NoError(t, err)

	assert.True(t, second.AlreadyPurchased)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, int64(0), second.Amount)
	assert.NotEmpty(t, second.Message)

	assert.Len(t, f.ledger.spends, 1)
	assert.Len(t, f.dispatcher.notices, 1)
	assert.Equal(t, 1, f.metrics.purchases["course_run/duplicate"])
}

func TestPurchaseCertificateMultipliesQuantity(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.Purchase(context.Background(), Input{
		Payer: payer(),
		Item: domain.PurchaseItem{
			Category: domain.CategoryCourseCertificate,
			Refs:     map[string]string{domain.RefCourseID: "course-1"},
			Quantity: 2,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(100), result.Amount)
	require.Len(t, f.ledger.spends, 1)
	assert.Equal(t, int64(100), f.ledger.spends[0].amount)
}

func TestPurchaseCertificateIsRepeatable(t *testing.T) {
	f := newFixture(t)

	item := domain.PurchaseItem{
		Category: domain.CategoryCourseCertificate,
		Refs:     map[string]string{domain.RefCourseID: "course-1"},
	}

	first, err := f.service.Purchase(context.Background(), Input{Payer: payer(), Item: item})
	require.NoError(t, err)
	second, err := f.service.Purchase(context.Background(), Input{Payer: payer(), Item: item})
	require.NoError(t, err)

	assert.False(t, second.AlreadyPurchased)
	assert.NotEqual(t, first.OrderID, second.OrderID)
	assert.Len(t, f.ledger.spends, 2)
}

func TestPurchaseWithoutContactEmailForbidden(t *testing.T) {
	f := newFixture(t)

	anonymous := domain.User{ID: "demo-1", FullName: "Anonymous Panda", IsDemo: true}
	_, err := f.service.Purchase(context.Background(), Input{
		Payer: anonymous,
		Item:  courseRunItem("run-offered"),
	})

	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	assert.Empty(t, f.ledger.spends)
	assert.Equal(t, 1, f.metrics.purchases["course_run/rejected"])

	// The identity check runs before anything is resolved, so it wins
	// even over an unknown category.
	_, err = f.service.Purchase(context.Background(), Input{
		Payer: anonymous,
		Item:  domain.PurchaseItem{Category: "mystery_box", Refs: map[string]string{"box_id": "b-1"}},
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
}

func TestPurchaseUnknownCategoryRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Purchase(context.Background(), Input{
		Payer: payer(),
		Item: domain.PurchaseItem{
			Category: "mystery_box",
			Refs:     map[string]string{"box_id": "b-1"},
		},
	})

	require.Error(t, err)
	assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))
	assert.Empty(t, f.ledger.spends)
}

func TestPurchaseDeclinedSpendLeavesNoOrder(t *testing.T) {
	f := newFixture(t)
	f.ledger.spendErr = domain.E(domain.KindInsufficientCredits, "insufficient credits")

	_, err := f.service.Purchase(context.Background(), Input{
		Payer: payer(),
		Item:  courseRunItem("run-offered"),
	})

	require.Error(t, err)
	assert.Equal(t, domain.KindPaymentFailed, domain.KindOf(err))

	existing, findErr := f.orders.FindByUserAndItemRef(context.Background(), "user-1", domain.CategoryCourseRun, "run-offered")
	require.NoError(t, findErr)
	assert.Nil(t, existing)
	assert.Empty(t, f.dispatcher.notices)
	assert.Equal(t, 1, f.metrics.purchases["course_run/rejected"])
}

func TestPurchaseLedgerOutagePropagates(t *testing.T) {
	f := newFixture(t)
	f.ledger.spendErr = domain.E(domain.KindLedgerUnavailable, "credit service unavailable")

	_, err := f.service.Purchase(context.Background(), Input{
		Payer: payer(),
		Item:  courseRunItem("run-offered"),
	})

	require.Error(t, err)
	assert.Equal(t, domain.KindLedgerUnavailable, domain.KindOf(err))
}

func TestPurchasePersistFailureAfterDebit(t *testing.T) {
	f := newFixture(t)
	f.orders.insertErr = errors.New("connection reset")

	_, err := f.service.Purchase(context.Background(), Input{
		Payer: payer(),
		Item:  courseRunItem("run-offered"),
	})

	require.Error(t, err)
	assert.Equal(t, domain.KindPersistence, domain.KindOf(err))

	// The debit already happened and is not rolled back.
	assert.Len(t, f.ledger.spends, 1)
	assert.Equal(t, 1, f.metrics.persistFailures)
	assert.Equal(t, 1, f.metrics.purchases["course_run/failed"])
	require.Len(t, f.events.persistFailed, 1)
	assert.Equal(t, "run-offered", f.events.persistFailed[0].ItemRefID)
	assert.Empty(t, f.dispatcher.notices)
}

func TestPurchaseDiplomaPlanNotYetOpenSkipsDebit(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Purchase(context.Background(), Input{
		Payer: payer(),
		Item: domain.PurchaseItem{
			Category: domain.CategoryDigitalDiplomaPlan,
			Refs: map[string]string{
				domain.RefDiplomaID: "dd-1",
				domain.RefPlanID:    "plan-future",
			},
		},
	})

	require.Error(t, err)
	assert.Equal(t, domain.KindPlanNotYetOpen, domain.KindOf(err))
	assert.Empty(t, f.ledger.spends)
}

func TestPurchaseNotificationFailureIsWarningOnly(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.err = errors.New("smtp timeout")

	result, err := f.service.Purchase(context.Background(), Input{
		Payer: payer(),
		Item:  courseRunItem("run-offered"),
	})

	require.NoError(t, err)
	assert.NotEmpty(t, result.OrderID)
	assert.NotEmpty(t, result.Warning)
	assert.Equal(t, 1, f.metrics.purchases["course_run/completed"])
}

func TestPurchaseForBeneficiaryDebitsPayer(t *testing.T) {
	f := newFixture(t)

	beneficiary, err := f.users.Create(context.Background(), domain.User{
		FullName:     "Grace Hopper",
		PrimaryEmail: "grace@example.com",
	})
	require.NoError(t, err)

	result, err := f.service.Purchase(context.Background(), Input{
		Payer:         payer(),
		BeneficiaryID: beneficiary.ID,
		Item:          courseRunItem("run-offered"),
	})
	require.NoError(t, err)

	require.Len(t, f.ledger.spends, 1)
	assert.Equal(t, "user-1", f.ledger.spends[0].userID)

	// The order belongs to the beneficiary, so their dedup check trips.
	existing, err := f.orders.FindByUserAndItemRef(context.Background(), beneficiary.ID, domain.CategoryCourseRun, "run-offered")
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, result.OrderID, existing.ID)
}

func TestPurchaseUnknownBeneficiaryNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Purchase(context.Background(), Input{
		Payer:         payer(),
		BeneficiaryID: "nobody",
		Item:          courseRunItem("run-offered"),
	})

	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	assert.Empty(t, f.ledger.spends)
}
