package facility

import (
	"time"

	"github.com/google/uuid"
)

// Facility maps to the facilities table. OfficeCode is the 10-digit
// designated-office number used in claim submissions; UnitPrice is the
// yen value of one reward unit in this facility's area grade.
type Facility struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	OfficeCode string    `db:"office_code" json:"office_code"`
	UnitPrice  int       `db:"unit_price" json:"unit_price"`
	Address    *string   `db:"address" json:"address,omitempty"`
	Phone      *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
