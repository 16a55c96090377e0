package billing

import (
	"fmt"
	"sort"

	"github.com/tsumiki/tsumiki/internal/domain/catalog"
)

// Fallback used when the catalog is missing the base code for a service
// type. Matches the after-school day-service base entry of the national
// reward table.
const (
	fallbackBaseCode  = catalog.CodeAfterSchoolDayBase
	fallbackBaseUnits = 604
)

// resolveBase returns the base reward code and units for a child's
// service type.
func resolveBase(serviceType string, cat *catalog.Catalog) (string, int) {
	code := catalog.CodeAfterSchoolDayBase
	if serviceType == catalog.CategoryChildDevelopment {
		code = catalog.CodeChildDevelopmentBase
	}
	if sc, ok := cat.Lookup(code); ok {
		return sc.Code, sc.BaseUnits
	}
	return fallbackBaseCode, fallbackBaseUnits
}

// Copay computes the guardian copay in yen: one tenth of the total
// amount rounded down, limited by the monthly cap. A cap of zero or
// less means the copay is not capped; the copay never exceeds the total
// amount.
func Copay(totalAmount, upperLimit int) int {
	if totalAmount <= 0 {
		return 0
	}
	copay := totalAmount / 10
	if upperLimit > 0 && copay > upperLimit {
		copay = upperLimit
	}
	if copay > totalAmount {
		copay = totalAmount
	}
	return copay
}

// buildChildRecord computes one child's monthly record and day details
// from that child's facts. Days referencing a code missing from the
// catalog are excluded and reported as warnings.
func buildChildRecord(fac FacilityInfo, child ChildInfo, yearMonth string, facts []DayFact, cat *catalog.Catalog) (*BillingRecord, []*BillingDetail, []Warning) {
	baseCode, baseUnits := resolveBase(child.ServiceType, cat)

	sorted := make([]DayFact, len(facts))
	copy(sorted, facts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var details []*BillingDetail
	var warnings []Warning
	totalUnits := 0

dayLoop:
	for _, fact := range sorted {
		var additions []BillingAddition
		for _, code := range fact.AdditionCodes {
			sc, ok := cat.Lookup(code)
			if !ok {
				warnings = append(warnings, Warning{
					ChildID:   child.ID,
					ChildName: child.Name,
					Date:      fact.Date.Format("2006-01-02"),
					Code:      code,
					Message:   fmt.Sprintf("unknown service code %s for %s on %s, day excluded", code, child.Name, fact.Date.Format("2006-01-02")),
				})
				continue dayLoop
			}
			additions = append(additions, BillingAddition{Code: sc.Code, Name: sc.Name, Units: sc.BaseUnits})
		}

		detail := &BillingDetail{
			ServiceDate: fact.Date,
			ServiceCode: baseCode,
			IsAbsence:   !fact.Attended,
			Additions:   additions,
		}
		if !fact.Attended && fact.AbsenceType != "" {
			detail.AbsenceType = &fact.AbsenceType
		}

		dayUnits := detail.AdditionUnits()
		if fact.Attended {
			dayUnits += baseUnits
		}
		detail.UnitCount = dayUnits

		details = append(details, detail)
		totalUnits += dayUnits
	}

	totalAmount := totalUnits * fac.UnitPrice
	copay := Copay(totalAmount, child.UpperLimitAmount)

	rec := &BillingRecord{
		FacilityID:       fac.ID,
		ChildID:          child.ID,
		YearMonth:        yearMonth,
		ServiceType:      child.ServiceType,
		TotalUnits:       totalUnits,
		UnitPrice:        fac.UnitPrice,
		TotalAmount:      totalAmount,
		CopayAmount:      copay,
		InsuranceAmount:  totalAmount - copay,
		UpperLimitAmount: child.UpperLimitAmount,
		Status:           StatusDraft,
	}
	return rec, details, warnings
}

// recomputeTotals refreshes a record's money fields from its current
// details, using the unit price and copay cap snapshotted on the record.
func recomputeTotals(rec *BillingRecord, details []*BillingDetail) {
	totalUnits := 0
	for _, d := range details {
		totalUnits += d.UnitCount
	}
	rec.TotalUnits = totalUnits
	rec.TotalAmount = totalUnits * rec.UnitPrice
	rec.CopayAmount = Copay(rec.TotalAmount, rec.UpperLimitAmount)
	rec.InsuranceAmount = rec.TotalAmount - rec.CopayAmount
}
