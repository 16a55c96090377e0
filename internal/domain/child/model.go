package child

import (
	"time"

	"github.com/google/uuid"
)

// Income categories for copay cap determination. The monthly cap of a
// household is set when the beneficiary certificate is issued; the
// amounts below are the standard caps used when no explicit amount is
// recorded.
const (
	IncomeCategoryGeneral    = "general"
	IncomeCategoryGeneralLow = "general-low"
	IncomeCategoryLowIncome  = "low-income"
	IncomeCategoryWelfare    = "welfare"
)

// DefaultUpperLimit returns the standard monthly copay cap in yen for an
// income category. A zero cap means the copay is not capped.
func DefaultUpperLimit(category string) int {
	switch category {
	case IncomeCategoryGeneral:
		return 37200
	case IncomeCategoryGeneralLow:
		return 4600
	default:
		return 0
	}
}

// Child maps to the children table. BeneficiaryNumber is the 10-digit
// number on the child's beneficiary certificate; ServiceType selects the
// base reward code used when billing attended days.
type Child struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	FacilityID        uuid.UUID  `db:"facility_id" json:"facility_id"`
	Name              string     `db:"name" json:"name"`
	Kana              *string    `db:"kana" json:"kana,omitempty"`
	BirthDate         *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	BeneficiaryNumber string     `db:"beneficiary_number" json:"beneficiary_number"`
	ServiceType       string     `db:"service_type" json:"service_type"`
	IncomeCategory    string     `db:"income_category" json:"income_category"`
	UpperLimitAmount  int        `db:"upper_limit_amount" json:"upper_limit_amount"`
	GuardianName      *string    `db:"guardian_name" json:"guardian_name,omitempty"`
	Notes             *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}
