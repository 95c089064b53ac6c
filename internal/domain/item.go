package domain

// ItemCategory is the closed set of purchasable item kinds.
type ItemCategory string

const (
	CategoryCourseRun          ItemCategory = "course_run"
	CategoryCourseCertificate  ItemCategory = "course_certificate"
	CategoryDigitalDiplomaPlan ItemCategory = "digital_diploma_plan"
	CategoryBookingDeposit     ItemCategory = "instructor_booking_deposit"
)

// Item ref keys per category. The idempotency lookup and the order
// record both key on these.
const (
	RefCourseID   = "course_id"
	RefSchedID    = "cd_sched_id"
	RefRunID      = "cd_run_id"
	RefDiplomaID  = "dd_id"
	RefPlanID     = "dd_plan_id"
	RefBookingID  = "booking_id"
	OptCertType   = "certificate_type"
	CertTypeValue = "verified"
)

// Valid reports whether the category is one of the four known kinds.
func (c ItemCategory) Valid() bool {
	switch c {
	case CategoryCourseRun, CategoryCourseCertificate, CategoryDigitalDiplomaPlan, CategoryBookingDeposit:
		return true
	}
	return false
}

// OneTime reports whether repeat purchases of the same reference are
// meaningless and must be deduplicated. Certificates and deposits may
// legitimately be bought more than once.
func (c ItemCategory) OneTime() bool {
	return c == CategoryCourseRun || c == CategoryDigitalDiplomaPlan
}

// DedupRefKey names the ref field the idempotency lookup matches on.
func (c ItemCategory) DedupRefKey() string {
	switch c {
	case CategoryCourseCertificate:
		return RefCourseID
	case CategoryCourseRun:
		return RefRunID
	case CategoryDigitalDiplomaPlan:
		return RefPlanID
	case CategoryBookingDeposit:
		return RefBookingID
	}
	return ""
}

// PurchaseItem is the client-supplied description of what is being
// bought. Amounts are never taken from here; pricing is resolved
// server-side at purchase time.
type PurchaseItem struct {
	Category ItemCategory      `json:"category"`
	Refs     map[string]string `json:"refs"`
	Options  map[string]string `json:"options,omitempty"`
	Quantity int               `json:"quantity,omitempty"`
}

// Ref returns the named ref value or "".
func (i PurchaseItem) Ref(key string) string {
	if i.Refs == nil {
		return ""
	}
	return i.Refs[key]
}

// Option returns the named option value or "".
func (i PurchaseItem) Option(key string) string {
	if i.Options == nil {
		return ""
	}
	return i.Options[key]
}

// DedupRefID returns the value the idempotency check keys on.
func (i PurchaseItem) DedupRefID() string {
	return i.Ref(i.Category.DedupRefKey())
}

// NormalizedQuantity applies the default of 1 when quantity is absent.
func (i PurchaseItem) NormalizedQuantity() int {
	if i.Quantity < 1 {
		return 1
	}
	return i.Quantity
}
