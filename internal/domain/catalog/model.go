package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service categories. Base-service categories determine the default base
// reward code for a child's service type; additions stack on top of a
// base service day.
const (
	CategoryChildDevelopment = "child-development"
	CategoryAfterSchoolDay   = "after-school-day"
	CategoryAddition         = "addition"
)

// Well-known codes from the national reward table.
const (
	CodeChildDevelopmentBase = "611111"
	CodeAfterSchoolDayBase   = "631111"
	CodeTransportOneWay      = "616701"
	CodeTransportRoundTrip   = "616702"
	CodeAbsenceResponse      = "617101"
)

// ServiceCode maps to the service_codes table. Reference data: rows are
// loaded once and treated as immutable for the life of a catalog snapshot.
type ServiceCode struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Code          string     `db:"code" json:"code"`
	Name          string     `db:"name" json:"name"`
	Category      string     `db:"category" json:"category"`
	BaseUnits     int        `db:"base_units" json:"base_units"`
	Description   *string    `db:"description" json:"description,omitempty"`
	EffectiveFrom *time.Time `db:"effective_from" json:"effective_from,omitempty"`
	EffectiveTo   *time.Time `db:"effective_to" json:"effective_to,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// Catalog is an immutable lookup table over a loaded set of service codes.
// Construct one per load and pass it into the billing engine; tests can
// substitute fixture catalogs.
type Catalog struct {
	codes  []*ServiceCode
	byCode map[string]*ServiceCode
}

// NewCatalog builds a catalog from a slice of codes. Load order is
// preserved for Filter and Codes. Duplicate codes keep the first entry.
func NewCatalog(codes []*ServiceCode) *Catalog {
	c := &Catalog{
		codes:  make([]*ServiceCode, 0, len(codes)),
		byCode: make(map[string]*ServiceCode, len(codes)),
	}
	for _, sc := range codes {
		if _, exists := c.byCode[sc.Code]; exists {
			continue
		}
		c.codes = append(c.codes, sc)
		c.byCode[sc.Code] = sc
	}
	return c
}

// Lookup returns the service code entry for code, if present.
func (c *Catalog) Lookup(code string) (*ServiceCode, bool) {
	sc, ok := c.byCode[code]
	return sc, ok
}

// Filter returns the codes matching the given category and search text.
// Empty filters match everything. The search is a case-insensitive
// substring match against code, name, and description. Load order is
// preserved.
func (c *Catalog) Filter(category, search string) []*ServiceCode {
	search = strings.ToLower(search)
	var out []*ServiceCode
	for _, sc := range c.codes {
		if category != "" && sc.Category != category {
			continue
		}
		if search != "" && !matchesSearch(sc, search) {
			continue
		}
		out = append(out, sc)
	}
	return out
}

func matchesSearch(sc *ServiceCode, lowered string) bool {
	if strings.Contains(strings.ToLower(sc.Code), lowered) {
		return true
	}
	if strings.Contains(strings.ToLower(sc.Name), lowered) {
		return true
	}
	if sc.Description != nil && strings.Contains(strings.ToLower(*sc.Description), lowered) {
		return true
	}
	return false
}

// Codes returns all entries in load order. The returned slice is shared;
// callers must not modify it.
func (c *Catalog) Codes() []*ServiceCode {
	return c.codes
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.codes)
}
