package billing

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tsumiki/tsumiki/internal/domain/catalog"
)

func testCatalog() *catalog.Catalog {
	return catalog.NewCatalog([]*catalog.ServiceCode{
		{ID: uuid.New(), Code: catalog.CodeChildDevelopmentBase, Name: "児童発達支援給付費", Category: catalog.CategoryChildDevelopment, BaseUnits: 885},
		{ID: uuid.New(), Code: catalog.CodeAfterSchoolDayBase, Name: "放課後等デイサービス給付費", Category: catalog.CategoryAfterSchoolDay, BaseUnits: 611},
		{ID: uuid.New(), Code: catalog.CodeTransportOneWay, Name: "送迎加算（片道）", Category: catalog.CategoryAddition, BaseUnits: 54},
		{ID: uuid.New(), Code: catalog.CodeTransportRoundTrip, Name: "送迎加算（往復）", Category: catalog.CategoryAddition, BaseUnits: 108},
		{ID: uuid.New(), Code: catalog.CodeAbsenceResponse, Name: "欠席時対応加算", Category: catalog.CategoryAddition, BaseUnits: 94},
	})
}

func testFacility() FacilityInfo {
	return FacilityInfo{ID: uuid.New(), Name: "つみき園", OfficeCode: "1310001234", UnitPrice: 10}
}

func afterSchoolChild(upperLimit int) ChildInfo {
	return ChildInfo{
		ID:                uuid.New(),
		Name:              "山田 太郎",
		BeneficiaryNumber: "1234567890",
		ServiceType:       catalog.CategoryAfterSchoolDay,
		UpperLimitAmount:  upperLimit,
	}
}

func attendedDays(childID uuid.UUID, n int) []DayFact {
	facts := make([]DayFact, n)
	for i := range facts {
		facts[i] = DayFact{
			ChildID:  childID,
			Date:     time.Date(2026, 4, i+1, 0, 0, 0, 0, time.UTC),
			Attended: true,
		}
	}
	return facts
}

func TestCopay(t *testing.T) {
	tests := []struct {
		name        string
		totalAmount int
		upperLimit  int
		want        int
	}{
		{"tenth of total", 122200, 37200, 12220},
		{"capped", 122200, 4600, 4600},
		{"zero cap means uncapped", 122200, 0, 12220},
		{"negative cap means uncapped", 122200, -1, 12220},
		{"rounds down", 1999, 0, 199},
		{"never exceeds total", 5, 37200, 0},
		{"zero total", 0, 4600, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Copay(tt.totalAmount, tt.upperLimit); got != tt.want {
				t.Errorf("Copay(%d, %d) = %d, want %d", tt.totalAmount, tt.upperLimit, got, tt.want)
			}
		})
	}
}

func TestBuildChildRecord_TwentyAttendedDays(t *testing.T) {
	child := afterSchoolChild(37200)
	rec, details, warnings := buildChildRecord(testFacility(), child, "2026-04", attendedDays(child.ID, 20), testCatalog())

	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(details) != 20 {
		t.Fatalf("expected 20 details, got %d", len(details))
	}
	if rec.TotalUnits != 12220 {
		t.Errorf("expected 12220 total units, got %d", rec.TotalUnits)
	}
	if rec.TotalAmount != 122200 {
		t.Errorf("expected total amount 122200, got %d", rec.TotalAmount)
	}
	if rec.CopayAmount != 12220 {
		t.Errorf("expected copay 12220, got %d", rec.CopayAmount)
	}
	if rec.InsuranceAmount != 109980 {
		t.Errorf("expected insurance 109980, got %d", rec.InsuranceAmount)
	}
	if rec.Status != StatusDraft {
		t.Errorf("expected draft status, got %s", rec.Status)
	}
	for _, d := range details {
		if d.ServiceCode != catalog.CodeAfterSchoolDayBase {
			t.Errorf("expected base code %s, got %s", catalog.CodeAfterSchoolDayBase, d.ServiceCode)
		}
		if d.UnitCount != 611 {
			t.Errorf("expected 611 units per day, got %d", d.UnitCount)
		}
	}
}

func TestBuildChildRecord_CopayCapped(t *testing.T) {
	child := afterSchoolChild(4600)
	rec, _, _ := buildChildRecord(testFacility(), child, "2026-04", attendedDays(child.ID, 20), testCatalog())

	if rec.CopayAmount != 4600 {
		t.Errorf("expected copay 4600, got %d", rec.CopayAmount)
	}
	if rec.InsuranceAmount != 117600 {
		t.Errorf("expected insurance 117600, got %d", rec.InsuranceAmount)
	}
}

func TestBuildChildRecord_ChildDevelopmentBase(t *testing.T) {
	child := afterSchoolChild(37200)
	child.ServiceType = catalog.CategoryChildDevelopment

	rec, details, _ := buildChildRecord(testFacility(), child, "2026-04", attendedDays(child.ID, 1), testCatalog())
	if rec.TotalUnits != 885 {
		t.Errorf("expected 885 units, got %d", rec.TotalUnits)
	}
	if details[0].ServiceCode != catalog.CodeChildDevelopmentBase {
		t.Errorf("expected base code %s, got %s", catalog.CodeChildDevelopmentBase, details[0].ServiceCode)
	}
}

func TestBuildChildRecord_TransportAdditions(t *testing.T) {
	child := afterSchoolChild(37200)
	facts := []DayFact{{
		ChildID:       child.ID,
		Date:          time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Attended:      true,
		AdditionCodes: []string{catalog.CodeTransportRoundTrip},
	}}

	rec, details, _ := buildChildRecord(testFacility(), child, "2026-04", facts, testCatalog())
	if details[0].UnitCount != 611+108 {
		t.Errorf("expected day units %d, got %d", 611+108, details[0].UnitCount)
	}
	if rec.TotalUnits != 719 {
		t.Errorf("expected 719 total units, got %d", rec.TotalUnits)
	}
	if len(details[0].Additions) != 1 || details[0].Additions[0].Code != catalog.CodeTransportRoundTrip {
		t.Errorf("expected round-trip addition, got %v", details[0].Additions)
	}
}

func TestBuildChildRecord_AbsenceDays(t *testing.T) {
	child := afterSchoolChild(37200)
	facts := []DayFact{
		{ChildID: child.ID, Date: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
			AbsenceType: "absence"},
		{ChildID: child.ID, Date: time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
			AbsenceType: "absence-addition", AdditionCodes: []string{catalog.CodeAbsenceResponse}},
	}

	rec, details, _ := buildChildRecord(testFacility(), child, "2026-04", facts, testCatalog())
	if len(details) != 2 {
		t.Fatalf("expected 2 details, got %d", len(details))
	}

	// A no-charge absence stays on record with zero units.
	if details[0].UnitCount != 0 || !details[0].IsAbsence {
		t.Errorf("expected zero-unit absence detail, got %+v", details[0])
	}
	if details[0].AbsenceType == nil || *details[0].AbsenceType != "absence" {
		t.Errorf("expected absence type carried onto the detail, got %v", details[0].AbsenceType)
	}
	// An absence handled with a response call bills only the addition.
	if details[1].UnitCount != 94 || !details[1].IsAbsence {
		t.Errorf("expected 94-unit absence-addition detail, got %+v", details[1])
	}
	if details[1].AbsenceType == nil || *details[1].AbsenceType != "absence-addition" {
		t.Errorf("expected absence-addition type carried onto the detail, got %v", details[1].AbsenceType)
	}
	if rec.TotalUnits != 94 {
		t.Errorf("expected 94 total units, got %d", rec.TotalUnits)
	}
}

func TestBuildChildRecord_UnknownCodeExcludesDay(t *testing.T) {
	child := afterSchoolChild(37200)
	facts := []DayFact{
		{ChildID: child.ID, Date: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), Attended: true},
		{ChildID: child.ID, Date: time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC), Attended: true,
			AdditionCodes: []string{"ZZ99"}},
	}

	rec, details, warnings := buildChildRecord(testFacility(), child, "2026-04", facts, testCatalog())
	if len(details) != 1 {
		t.Fatalf("expected the bad day excluded, got %d details", len(details))
	}
	if rec.TotalUnits != 611 {
		t.Errorf("expected 611 total units, got %d", rec.TotalUnits)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	w := warnings[0]
	if w.Code != "ZZ99" || w.Date != "2026-04-02" || w.ChildID != child.ID {
		t.Errorf("warning missing context: %+v", w)
	}
	if !strings.Contains(w.Message, "ZZ99") || !strings.Contains(w.Message, child.Name) || !strings.Contains(w.Message, "2026-04-02") {
		t.Errorf("warning message should name code, child, and date: %s", w.Message)
	}
}

func TestBuildChildRecord_SortsDetailsByDate(t *testing.T) {
	child := afterSchoolChild(37200)
	facts := []DayFact{
		{ChildID: child.ID, Date: time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC), Attended: true},
		{ChildID: child.ID, Date: time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC), Attended: true},
	}

	_, details, _ := buildChildRecord(testFacility(), child, "2026-04", facts, testCatalog())
	if !details[0].ServiceDate.Before(details[1].ServiceDate) {
		t.Error("expected details sorted by service date")
	}
}

func TestBuildChildRecord_FallbackBase(t *testing.T) {
	empty := catalog.NewCatalog(nil)
	child := afterSchoolChild(0)

	rec, details, _ := buildChildRecord(testFacility(), child, "2026-04", attendedDays(child.ID, 1), empty)
	if rec.TotalUnits != fallbackBaseUnits {
		t.Errorf("expected fallback %d units, got %d", fallbackBaseUnits, rec.TotalUnits)
	}
	if details[0].ServiceCode != fallbackBaseCode {
		t.Errorf("expected fallback code %s, got %s", fallbackBaseCode, details[0].ServiceCode)
	}
}

func TestRecomputeTotals(t *testing.T) {
	rec := &BillingRecord{UnitPrice: 10, UpperLimitAmount: 4600}
	details := []*BillingDetail{
		{UnitCount: 611},
		{UnitCount: 719},
		{UnitCount: 0},
	}

	recomputeTotals(rec, details)
	if rec.TotalUnits != 1330 {
		t.Errorf("expected 1330 units, got %d", rec.TotalUnits)
	}
	if rec.TotalAmount != 13300 {
		t.Errorf("expected 13300 yen, got %d", rec.TotalAmount)
	}
	if rec.CopayAmount != 1330 {
		t.Errorf("expected copay 1330, got %d", rec.CopayAmount)
	}
	if rec.InsuranceAmount != 11970 {
		t.Errorf("expected insurance 11970, got %d", rec.InsuranceAmount)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusDraft, StatusConfirmed, true},
		{StatusConfirmed, StatusSubmitted, true},
		{StatusConfirmed, StatusDraft, false},
		{StatusSubmitted, StatusPaid, true},
		{StatusDraft, StatusSubmitted, false},
		{StatusDraft, StatusPaid, false},
		{StatusSubmitted, StatusDraft, false},
		{StatusPaid, StatusSubmitted, false},
		{StatusPaid, StatusDraft, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestValidYearMonth(t *testing.T) {
	valid := []string{"2026-04", "1999-12", "2026-01"}
	invalid := []string{"", "2026", "2026-13", "2026-00", "2026-4", "2026/04", "20260-4"}

	for _, s := range valid {
		if !ValidYearMonth(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range invalid {
		if ValidYearMonth(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}
