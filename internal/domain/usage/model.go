package usage

import (
	"time"

	"github.com/google/uuid"
)

// Usage record statuses. An attended day bills the base service; a
// no-charge absence keeps the day on record without billing; an
// absence handled with a response call bills the absence-response
// addition only.
const (
	StatusAttended        = "attended"
	StatusAbsence         = "absence"
	StatusAbsenceAddition = "absence-addition"
)

// Slots within a service day.
const (
	SlotAM = "am"
	SlotPM = "pm"
)

// UsageRecord maps to the usage_records table. One row per child per
// service date. AddonCodes lists extra addition codes applied on the
// day beyond those derived from transport flags.
type UsageRecord struct {
	ID            uuid.UUID `db:"id" json:"id"`
	FacilityID    uuid.UUID `db:"facility_id" json:"facility_id"`
	ChildID       uuid.UUID `db:"child_id" json:"child_id"`
	Date          time.Time `db:"service_date" json:"date"`
	Status        string    `db:"status" json:"status"`
	Slot          *string   `db:"slot" json:"slot,omitempty"`
	StartTime     *string   `db:"start_time" json:"start_time,omitempty"`
	EndTime       *string   `db:"end_time" json:"end_time,omitempty"`
	Pickup        bool      `db:"pickup" json:"pickup"`
	Dropoff       bool      `db:"dropoff" json:"dropoff"`
	AddonCodes    []string  `db:"addon_codes" json:"addon_codes,omitempty"`
	BillingTarget bool      `db:"billing_target" json:"billing_target"`
	Notes         *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
