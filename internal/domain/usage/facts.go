package usage

import (
	"github.com/tsumiki/tsumiki/internal/domain/billing"
	"github.com/tsumiki/tsumiki/internal/domain/catalog"
)

// BillingFacts converts usage records into billing day facts. Records
// flagged out of billing are skipped. Transport flags become transport
// addition codes, and an absence handled with a response call becomes
// an addition-only day.
func BillingFacts(records []*UsageRecord) []billing.DayFact {
	var facts []billing.DayFact
	for _, rec := range records {
		if !rec.BillingTarget {
			continue
		}

		fact := billing.DayFact{ChildID: rec.ChildID, Date: rec.Date}
		switch rec.Status {
		case StatusAttended:
			fact.Attended = true
			if rec.Pickup && rec.Dropoff {
				fact.AdditionCodes = append(fact.AdditionCodes, catalog.CodeTransportRoundTrip)
			} else if rec.Pickup || rec.Dropoff {
				fact.AdditionCodes = append(fact.AdditionCodes, catalog.CodeTransportOneWay)
			}
			fact.AdditionCodes = append(fact.AdditionCodes, rec.AddonCodes...)
		case StatusAbsence:
			// kept on record as a zero-unit day
			fact.AbsenceType = StatusAbsence
		case StatusAbsenceAddition:
			fact.AbsenceType = StatusAbsenceAddition
			fact.AdditionCodes = append(fact.AdditionCodes, catalog.CodeAbsenceResponse)
		default:
			continue
		}
		facts = append(facts, fact)
	}
	return facts
}
