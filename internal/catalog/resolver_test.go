package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/internal/repository"
	"github.com/exlearn/billing-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testClock = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestResolver(t *testing.T) (*PriceResolver, *repository.InMemoryCatalog) {
	t.Helper()
	log := logger.New(logger.ERROR)

	cat := repository.NewInMemoryCatalog(log)
	cat.PutCourse(domain.Course{ID: "course-1", Title: "Distributed Systems", VerifiedCertCost: 50})
	cat.PutCourse(domain.Course{ID: "course-free", Title: "Open Course", VerifiedCertCost: 0})
	cat.PutSchedule(domain.CourseSchedule{
		ID:        "sched-1",
		CourseID:  "course-1",
		ListPrice: 40,
		Runs: []domain.ScheduledRun{
			{ID: "run-1"},
			{ID: "run-2", OfferedAtPrice: &domain.OfferedPrice{Amount: 30}},
			{ID: "run-zero", OfferedAtPrice: &domain.OfferedPrice{Amount: 0}},
		},
	})
	cat.PutDiploma(domain.DigitalDiploma{
		ID:    "dd-1",
		Title: "Cloud Diploma",
		Plans: []domain.DiplomaPlan{
			{
				ID: "plan-open", Title: "Standard", Cost: 200,
				OpensAt:  testClock.Add(-24 * time.Hour),
				ClosesAt: testClock.Add(24 * time.Hour),
			},
			{
				ID: "plan-closed", Title: "Legacy", Cost: 100,
				OpensAt:  testClock.Add(-48 * time.Hour),
				ClosesAt: testClock.Add(-24 * time.Hour),
			},
			{
				ID: "plan-future", Title: "Next cohort", Cost: 180,
				OpensAt:  testClock.Add(24 * time.Hour),
				ClosesAt: testClock.Add(48 * time.Hour),
			},
			{
				ID: "plan-hidden", Title: "Internal", Cost: 1, IsHidden: true,
				OpensAt:  testClock.Add(-24 * time.Hour),
				ClosesAt: testClock.Add(24 * time.Hour),
			},
			{
				ID: "plan-shipped", Title: "With kit", Cost: 300, RequiresShipping: true,
				OpensAt:  testClock.Add(-24 * time.Hour),
				ClosesAt: testClock.Add(24 * time.Hour),
			},
		},
	})

	resolver := NewPriceResolver(cat, cat, cat, 5, log).WithClock(func() time.Time { return testClock })
	return resolver, cat
}

func TestResolveCourseRunListPrice(t *testing.T) {
	resolver, _ := newTestResolver(t)

	price, err := resolver.Resolve(context.Background(), domain.PurchaseItem{
		Category: domain.CategoryCourseRun,
		Refs:     map[string]string{domain.RefSchedID: "sched-1", domain.RefRunID: "run-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(40), price.Amount)
	assert.Equal(t, 1, price.Quantity)
}

func TestResolveCourseRunOfferedPriceOverrides(t *testing.T) {
	resolver, _ := newTestResolver(t)

	price, err := resolver.Resolve(context.Background(), domain.PurchaseItem{
		Category: domain.CategoryCourseRun,
		Refs:     map[string]string{domain.RefSchedID: "sched-1", domain.RefRunID: "run-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(30), price.Amount)
}

func TestResolveCourseRunZeroPriceRejected(t *testing.T) {
	resolver, _ := newTestResolver(t)

	_, err := resolver.Resolve(context.Background(), domain.PurchaseItem{
		Category: domain.CategoryCourseRun,
		Refs:     map[string]string{domain.RefSchedID: "sched-1", domain.RefRunID: "run-zero"},
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidPrice, domain.KindOf(err))
}

func TestResolveCourseRunMissingRefs(t *testing.T) {
	resolver, _ := newTestResolver(t)

	_, err := resolver.Resolve(context.Background(), domain.PurchaseItem{
		Category: domain.CategoryCourseRun,
		Refs:     map[string]string{domain.RefSchedID: "sched-1"},
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))
}

func TestResolveCourseRunUnknownRun(t *testing.T) {
	resolver, _ := newTestResolver(t)

	_, err := resolver.Resolve(context.Background(), domain.PurchaseItem{
		Category: domain.CategoryCourseRun,
		Refs:     map[string]string{domain.RefSchedID: "sched-1", domain.RefRunID: "run-404"},
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestResolveCertificateDefaultsQuantityToOne(t *testing.T) {
	resolver, _ := newTestResolver(t)

	price, err := resolver.Resolve(context.Background(), domain.PurchaseItem{
		Category: domain.CategoryCourseCertificate,
		Refs:     map[string]string{domain.RefCourseID: "course-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50), price.Amount)
	assert.Equal(t, 1, price.Quantity)
}

func TestResolveCertificateMultipliesByQuantity(t *testing.T) {
	resolver, _ := newTestResolver(t)

	price, err := resolver.Resolve(context.Background(), domain.PurchaseItem{
		Category: domain.CategoryCourseCertificate,
		Refs:     map[string]string{domain.RefCourseID: "course-1"},
		Quantity: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(150), price.Amount)
	assert.Equal(t, 3, price.Quantity)
}

func TestResolveCertificateUnsupportedType(t *testing.T) {
	resolver, _ := newTestResolver(t)

	_, err := resolver.Resolve(context.Background(), domain.PurchaseItem{
		Category: domain.CategoryCourseCertificate,
		Refs:     map[string]string{domain.RefCourseID: "course-1"},
		Options:  map[string]string{domain.OptCertType: "honor_code"},
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindUnsupported, domain.KindOf(err))
}

func TestResolveCertificateNotOffered(t *testing.T) {
	resolver, _ := newTestResolver(t)

	_, err := resolver.Resolve(context.Background(), domain.PurchaseItem{
		Category: domain.CategoryCourseCertificate,
		Refs:     map[string]string{domain.RefCourseID: "course-free"},
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindUnsupported, domain.KindOf(err))
}

func diplomaItem(planID string, options map[string]string) domain.PurchaseItem {
	return domain.PurchaseItem{
		Category: domain.CategoryDigitalDiplomaPlan,
		Refs:     map[string]string{domain.RefDiplomaID: "dd-1", domain.RefPlanID: planID},
		Options:  options,
	}
}

func TestResolveDiplomaPlanWithinWindow(t *testing.T) {
	resolver, _ := newTestResolver(t)

	price, err := resolver.Resolve(context.Background(), diplomaItem("plan-open", nil))
	require.NoError(t, err)
	assert.Equal(t, int64(200), price.Amount)
}

func TestResolveDiplomaPlanWindowEdges(t *testing.T) {
	resolver, _ := newTestResolver(t)

	_, err := resolver.Resolve(context.Background(), diplomaItem("plan-future", nil))
	require.Error(t, err)
	assert.Equal(t, domain.KindPlanNotYetOpen, domain.KindOf(err))

	_, err = resolver.Resolve(context.Background(), diplomaItem("plan-closed", nil))
	require.Error(t, err)
	assert.Equal(t, domain.KindPlanExpired, domain.KindOf(err))
}

func TestResolveDiplomaPlanHiddenIsNotFound(t *testing.T) {
	resolver, _ := newTestResolver(t)

	_, err := resolver.Resolve(context.Background(), diplomaItem("plan-hidden", nil))
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestResolveDiplomaPlanShippingRequired(t *testing.T) {
	resolver, _ := newTestResolver(t)

	_, err := resolver.Resolve(context.Background(), diplomaItem("plan-shipped", nil))
	require.Error(t, err)
	assert.Equal(t, domain.KindMissingShippingInfo, domain.KindOf(err))

	price, err := resolver.Resolve(context.Background(), diplomaItem("plan-shipped", map[string]string{
		OptShippingFullName: "Ada Lovelace",
		OptShippingLine1:    "1 Analytical Way",
		OptShippingCity:     "London",
		OptShippingState:    "LDN",
		OptShippingCountry:  "GB",
		OptShippingZip:      "E1 6AN",
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(300), price.Amount)
}

func TestResolveBookingDepositFixedAmount(t *testing.T) {
	resolver, _ := newTestResolver(t)

	price, err := resolver.Resolve(context.Background(), domain.PurchaseItem{
		Category: domain.CategoryBookingDeposit,
		Refs:     map[string]string{domain.RefBookingID: "booking-7"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), price.Amount)

	_, err = resolver.Resolve(context.Background(), domain.PurchaseItem{
		Category: domain.CategoryBookingDeposit,
		Refs:     map[string]string{},
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))
}
