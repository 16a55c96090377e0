package billing

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Billing record statuses. Records move one way only: draft ->
// confirmed -> submitted -> paid. Confirming freezes the record; a
// wrong month is fixed by regenerating before confirmation, not by
// thawing.
const (
	StatusDraft     = "draft"
	StatusConfirmed = "confirmed"
	StatusSubmitted = "submitted"
	StatusPaid      = "paid"
)

var validTransitions = map[string][]string{
	StatusDraft:     {StatusConfirmed},
	StatusConfirmed: {StatusSubmitted},
	StatusSubmitted: {StatusPaid},
	StatusPaid:      {},
}

// CanTransition reports whether a record may move from one status to
// another.
func CanTransition(from, to string) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var (
	// ErrNotFound is returned when no billing record or detail matches.
	ErrNotFound = errors.New("billing record not found")
	// ErrInvalidState is returned when an operation is not allowed in
	// the record's current status.
	ErrInvalidState = errors.New("operation not allowed in current status")
	// ErrIndexOutOfRange is returned when an addition index does not
	// exist on a detail.
	ErrIndexOutOfRange = errors.New("addition index out of range")
	// ErrUnknownServiceCode is returned when a code is not in the
	// catalog.
	ErrUnknownServiceCode = errors.New("unknown service code")
	// ErrFacilityNotFound is returned by a BatchSource when the
	// requested facility does not exist.
	ErrFacilityNotFound = errors.New("facility not found")
)

// BillingRecord maps to the billing_records table. One row per child per
// billed month. UnitPrice and UpperLimitAmount are snapshotted at
// generation time so later master-data edits do not change issued
// claims.
type BillingRecord struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	FacilityID       uuid.UUID  `db:"facility_id" json:"facility_id"`
	ChildID          uuid.UUID  `db:"child_id" json:"child_id"`
	YearMonth        string     `db:"year_month" json:"year_month"`
	ServiceType      string     `db:"service_type" json:"service_type"`
	TotalUnits       int        `db:"total_units" json:"total_units"`
	UnitPrice        int        `db:"unit_price" json:"unit_price"`
	TotalAmount      int        `db:"total_amount" json:"total_amount"`
	CopayAmount      int        `db:"copay_amount" json:"copay_amount"`
	InsuranceAmount  int        `db:"insurance_amount" json:"insurance_amount"`
	UpperLimitAmount int        `db:"upper_limit_amount" json:"upper_limit_amount"`
	Status           string     `db:"status" json:"status"`
	ConfirmedAt      *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	SubmittedAt      *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	PaidAt           *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// BillingAddition is one addition applied on a service day, stored as
// JSONB on the detail row.
type BillingAddition struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Units int    `json:"units"`
}

// BillingDetail maps to the billing_details table. One row per service
// day. UnitCount is the day total, base units plus all addition units.
type BillingDetail struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	RecordID    uuid.UUID         `db:"record_id" json:"record_id"`
	ServiceDate time.Time         `db:"service_date" json:"service_date"`
	ServiceCode string            `db:"service_code" json:"service_code"`
	UnitCount   int               `db:"unit_count" json:"unit_count"`
	IsAbsence   bool              `db:"is_absence" json:"is_absence"`
	AbsenceType *string           `db:"absence_type" json:"absence_type,omitempty"`
	Additions   []BillingAddition `db:"additions" json:"additions"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// AdditionUnits returns the addition portion of the day total.
func (d *BillingDetail) AdditionUnits() int {
	sum := 0
	for _, a := range d.Additions {
		sum += a.Units
	}
	return sum
}

// DayFact is one day of service for one child, as derived from usage
// records. AdditionCodes carries every addition applicable on the day,
// including transport and absence-response codes. AbsenceType names the
// kind of absence for unattended days and is empty otherwise.
type DayFact struct {
	ChildID       uuid.UUID
	Date          time.Time
	Attended      bool
	AbsenceType   string
	AdditionCodes []string
}

// ChildInfo is the child master data the billing engine needs, decoupled
// from the children table representation.
type ChildInfo struct {
	ID                uuid.UUID
	Name              string
	BeneficiaryNumber string
	ServiceType       string
	UpperLimitAmount  int
}

// FacilityInfo is the facility master data the billing engine needs.
type FacilityInfo struct {
	ID         uuid.UUID
	Name       string
	OfficeCode string
	UnitPrice  int
}

// Warning flags a day excluded from generation or a record that needs
// attention before submission.
type Warning struct {
	ChildID   uuid.UUID `json:"child_id"`
	ChildName string    `json:"child_name,omitempty"`
	Date      string    `json:"date,omitempty"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message"`
}

// GenerateResult reports the outcome of a monthly generation run.
type GenerateResult struct {
	Generated []*BillingRecord `json:"generated"`
	Skipped   []uuid.UUID      `json:"skipped"`
	Warnings  []Warning        `json:"warnings"`
}

// Batch is a month of billing records assembled for validation and
// submission export. Records are sorted by child ID.
type Batch struct {
	Facility  FacilityInfo
	YearMonth string
	Records   []*BillingRecord
	Details   map[uuid.UUID][]*BillingDetail
	Children  map[uuid.UUID]ChildInfo
}

// ValidYearMonth reports whether s is a "YYYY-MM" month.
func ValidYearMonth(s string) bool {
	if len(s) != 7 {
		return false
	}
	_, err := time.Parse("2006-01", s)
	return err == nil
}
