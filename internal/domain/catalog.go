package domain

import "time"

// Course carries the certificate pricing configuration. A zero
// VerifiedCertCost means certificates are not offered for the course.
type Course struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	VerifiedCertCost int64  `json:"verified_cert_cost"`
}

// OfferedPrice is a run-specific price override.
type OfferedPrice struct {
	Amount int64 `json:"amount"`
}

// ScheduledRun is one dated run inside a course delivery schedule.
type ScheduledRun struct {
	ID             string        `json:"id"`
	StartsAt       time.Time     `json:"run_start_date"`
	OfferedAtPrice *OfferedPrice `json:"offered_at_price,omitempty"`
}

// CourseSchedule is a delivery structure: a list price plus the
// scheduled runs that may override it.
type CourseSchedule struct {
	ID        string         `json:"id"`
	CourseID  string         `json:"course_id"`
	ListPrice int64          `json:"list_price"`
	Runs      []ScheduledRun `json:"scheduled_runs"`
}

// RunByID locates a run within the schedule.
func (s CourseSchedule) RunByID(runID string) (ScheduledRun, bool) {
	for _, r := range s.Runs {
		if r.ID == runID {
			return r, true
		}
	}
	return ScheduledRun{}, false
}

// DiplomaPlan is one purchasable digital-diploma plan with an
// open/close availability window.
type DiplomaPlan struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Cost             int64     `json:"cost"`
	IsHidden         bool      `json:"is_hidden"`
	OpensAt          time.Time `json:"opens_at"`
	ClosesAt         time.Time `json:"closes_at"`
	RequiresShipping bool      `json:"requires_shipping"`
}

// DigitalDiploma groups the plans under one diploma program.
type DigitalDiploma struct {
	ID    string        `json:"id"`
	Title string        `json:"title"`
	Plans []DiplomaPlan `json:"plans"`
}

// PlanByID locates a plan within the diploma.
func (d DigitalDiploma) PlanByID(planID string) (DiplomaPlan, bool) {
	for _, p := range d.Plans {
		if p.ID == planID {
			return p, true
		}
	}
	return DiplomaPlan{}, false
}

// ShippingAddress is required for diploma plans that ship physical goods.
type ShippingAddress struct {
	FullName string `json:"full_name"`
	Line1    string `json:"line1"`
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
	Zip      string `json:"zip"`
}

// Complete reports whether every field needed to ship is present.
func (a ShippingAddress) Complete() bool {
	return a.FullName != "" && a.Line1 != "" && a.City != "" &&
		a.State != "" && a.Country != "" && a.Zip != ""
}
