package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/internal/repository"
	"github.com/exlearn/billing-service/pkg/logger"
)

// Shipping option keys expected on digital-diploma purchases whose
// plan ships physical goods.
const (
	OptShippingFullName = "shipping_full_name"
	OptShippingLine1    = "shipping_line1"
	OptShippingCity     = "shipping_city"
	OptShippingState    = "shipping_state"
	OptShippingCountry  = "shipping_country"
	OptShippingZip      = "shipping_zip"
)

// PriceResolver resolves the authoritative price of a purchasable item
// at purchase time. Client-supplied amounts are never consulted.
type PriceResolver struct {
	courses       repository.CourseStore
	schedules     repository.ScheduleStore
	diplomas      repository.DiplomaStore
	depositAmount int64
	now           func() time.Time
	log           *logger.Logger
}

// NewPriceResolver creates a resolver over the catalog stores.
func NewPriceResolver(courses repository.CourseStore, schedules repository.ScheduleStore, diplomas repository.DiplomaStore, bookingDepositAmount int64, log *logger.Logger) *PriceResolver {
	return &PriceResolver{
		courses:       courses,
		schedules:     schedules,
		diplomas:      diplomas,
		depositAmount: bookingDepositAmount,
		now:           time.Now,
		log:           log,
	}
}

// WithClock overrides the resolver clock, for tests.
func (r *PriceResolver) WithClock(now func() time.Time) *PriceResolver {
	r.now = now
	return r
}

// Resolve dispatches on the item category.
func (r *PriceResolver) Resolve(ctx context.Context, item domain.PurchaseItem) (domain.ResolvedPrice, error) {
	switch item.Category {
	case domain.CategoryCourseRun:
		return r.resolveCourseRun(ctx, item)
	case domain.CategoryCourseCertificate:
		return r.resolveCertificate(ctx, item)
	case domain.CategoryDigitalDiplomaPlan:
		return r.resolveDiplomaPlan(ctx, item)
	case domain.CategoryBookingDeposit:
		return r.resolveBookingDeposit(item)
	}
	return domain.ResolvedPrice{}, domain.E(domain.KindBadRequest,
		fmt.Sprintf("unknown item category %q", item.Category))
}

// resolveCourseRun prices a seat on a scheduled run. The run's
// offered-at price overrides the schedule's list price when present.
func (r *PriceResolver) resolveCourseRun(ctx context.Context, item domain.PurchaseItem) (domain.ResolvedPrice, error) {
	schedID := item.Ref(domain.RefSchedID)
	runID := item.Ref(domain.RefRunID)
	if schedID == "" || runID == "" {
		return domain.ResolvedPrice{}, domain.E(domain.KindBadRequest,
			"course run purchases require cd_sched_id and cd_run_id")
	}

	schedule, err := r.schedules.GetSchedule(ctx, schedID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ResolvedPrice{}, domain.E(domain.KindNotFound, "course schedule not found")
		}
		return domain.ResolvedPrice{}, domain.Wrap(domain.KindInternal, "failed to load course schedule", err)
	}

	run, ok := schedule.RunByID(runID)
	if !ok {
		return domain.ResolvedPrice{}, domain.E(domain.KindNotFound, "scheduled run not found")
	}

	amount := schedule.ListPrice
	if run.OfferedAtPrice != nil {
		amount = run.OfferedAtPrice.Amount
	}
	if amount <= 0 {
		r.log.Warnw("Course run resolved to a non-positive price", "sched_id", schedID, "run_id", runID, "amount", amount)
		return domain.ResolvedPrice{}, domain.E(domain.KindInvalidPrice, "course run has no valid price")
	}

	return domain.ResolvedPrice{
		Amount:      amount,
		Quantity:    1,
		Description: fmt.Sprintf("Course run %s", runID),
	}, nil
}

// resolveCertificate prices verified certificates: per-unit cost times quantity.
func (r *PriceResolver) resolveCertificate(ctx context.Context, item domain.PurchaseItem) (domain.ResolvedPrice, error) {
	courseID := item.Ref(domain.RefCourseID)
	if courseID == "" {
		return domain.ResolvedPrice{}, domain.E(domain.KindBadRequest,
			"certificate purchases require course_id")
	}

	certType := item.Option(domain.OptCertType)
	if certType == "" {
		certType = domain.CertTypeValue
	}
	if certType != domain.CertTypeValue {
		return domain.ResolvedPrice{}, domain.E(domain.KindUnsupported,
			fmt.Sprintf("certificate type %q is not supported", certType))
	}

	course, err := r.courses.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ResolvedPrice{}, domain.E(domain.KindNotFound, "course not found")
		}
		return domain.ResolvedPrice{}, domain.Wrap(domain.KindInternal, "failed to load course", err)
	}

	if course.VerifiedCertCost <= 0 {
		return domain.ResolvedPrice{}, domain.E(domain.KindUnsupported,
			"course does not offer verified certificates")
	}

	quantity := item.NormalizedQuantity()
	return domain.ResolvedPrice{
		Amount:      course.VerifiedCertCost * int64(quantity),
		Quantity:    quantity,
		Description: fmt.Sprintf("Verified certificate for %s", course.Title),
	}, nil
}

// resolveDiplomaPlan prices a digital-diploma plan, enforcing the
// availability window and shipping requirements.
func (r *PriceResolver) resolveDiplomaPlan(ctx context.Context, item domain.PurchaseItem) (domain.ResolvedPrice, error) {
	diplomaID := item.Ref(domain.RefDiplomaID)
	planID := item.Ref(domain.RefPlanID)
	if diplomaID == "" || planID == "" {
		return domain.ResolvedPrice{}, domain.E(domain.KindBadRequest,
			"diploma plan purchases require dd_id and dd_plan_id")
	}

	diploma, err := r.diplomas.GetDiploma(ctx, diplomaID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ResolvedPrice{}, domain.E(domain.KindNotFound, "digital diploma not found")
		}
		return domain.ResolvedPrice{}, domain.Wrap(domain.KindInternal, "failed to load digital diploma", err)
	}

	plan, ok := diploma.PlanByID(planID)
	if !ok || plan.IsHidden {
		return domain.ResolvedPrice{}, domain.E(domain.KindNotFound, "diploma plan not found")
	}

	now := r.now()
	if now.Before(plan.OpensAt) {
		return domain.ResolvedPrice{}, domain.E(domain.KindPlanNotYetOpen, "diploma plan is not open for purchase yet")
	}
	if !now.Before(plan.ClosesAt) {
		return domain.ResolvedPrice{}, domain.E(domain.KindPlanExpired, "diploma plan is no longer available")
	}

	if plan.RequiresShipping && !shippingFromOptions(item).Complete() {
		return domain.ResolvedPrice{}, domain.E(domain.KindMissingShippingInfo,
			"diploma plan requires a complete shipping address")
	}

	return domain.ResolvedPrice{
		Amount:      plan.Cost,
		Quantity:    1,
		Description: fmt.Sprintf("%s - %s", diploma.Title, plan.Title),
	}, nil
}

// resolveBookingDeposit prices an instructor booking deposit: a fixed
// configured constant, no catalog lookup.
func (r *PriceResolver) resolveBookingDeposit(item domain.PurchaseItem) (domain.ResolvedPrice, error) {
	if item.Ref(domain.RefBookingID) == "" {
		return domain.ResolvedPrice{}, domain.E(domain.KindBadRequest,
			"booking deposit purchases require booking_id")
	}

	return domain.ResolvedPrice{
		Amount:      r.depositAmount,
		Quantity:    1,
		Description: "Instructor booking deposit",
	}, nil
}

func shippingFromOptions(item domain.PurchaseItem) domain.ShippingAddress {
	return domain.ShippingAddress{
		FullName: item.Option(OptShippingFullName),
		Line1:    item.Option(OptShippingLine1),
		City:     item.Option(OptShippingCity),
		State:    item.Option(OptShippingState),
		Country:  item.Option(OptShippingCountry),
		Zip:      item.Option(OptShippingZip),
	}
}
