package catalog

import (
	"testing"

	"github.com/google/uuid"
)

func strPtr(s string) *string { return &s }

func fixtureCodes() []*ServiceCode {
	return []*ServiceCode{
		{ID: uuid.New(), Code: CodeChildDevelopmentBase, Name: "児童発達支援給付費", Category: CategoryChildDevelopment, BaseUnits: 885},
		{ID: uuid.New(), Code: CodeAfterSchoolDayBase, Name: "放課後等デイサービス給付費", Category: CategoryAfterSchoolDay, BaseUnits: 604},
		{ID: uuid.New(), Code: CodeTransportOneWay, Name: "送迎加算（片道）", Category: CategoryAddition, BaseUnits: 54, Description: strPtr("one-way transport")},
		{ID: uuid.New(), Code: CodeTransportRoundTrip, Name: "送迎加算（往復）", Category: CategoryAddition, BaseUnits: 108},
		{ID: uuid.New(), Code: CodeAbsenceResponse, Name: "欠席時対応加算", Category: CategoryAddition, BaseUnits: 94},
	}
}

func TestCatalog_Lookup(t *testing.T) {
	c := NewCatalog(fixtureCodes())

	sc, ok := c.Lookup(CodeChildDevelopmentBase)
	if !ok {
		t.Fatal("expected lookup to succeed")
	}
	if sc.BaseUnits != 885 {
		t.Errorf("expected 885 units, got %d", sc.BaseUnits)
	}

	if _, ok := c.Lookup("ZZ99"); ok {
		t.Error("expected lookup of unknown code to fail")
	}
}

func TestCatalog_FilterByCategory(t *testing.T) {
	c := NewCatalog(fixtureCodes())

	additions := c.Filter(CategoryAddition, "")
	if len(additions) != 3 {
		t.Fatalf("expected 3 additions, got %d", len(additions))
	}
	for _, sc := range additions {
		if sc.Category != CategoryAddition {
			t.Errorf("unexpected category %s", sc.Category)
		}
	}
}

func TestCatalog_FilterBySearch(t *testing.T) {
	c := NewCatalog(fixtureCodes())

	// Search matches code substrings.
	got := c.Filter("", "6167")
	if len(got) != 2 {
		t.Fatalf("expected 2 matches for code search, got %d", len(got))
	}

	// Search matches names.
	got = c.Filter("", "欠席")
	if len(got) != 1 || got[0].Code != CodeAbsenceResponse {
		t.Fatalf("expected absence-response match, got %v", got)
	}

	// Search is case-insensitive over descriptions.
	got = c.Filter("", "ONE-WAY")
	if len(got) != 1 || got[0].Code != CodeTransportOneWay {
		t.Fatalf("expected one-way transport match, got %v", got)
	}
}

func TestCatalog_FilterCombined(t *testing.T) {
	c := NewCatalog(fixtureCodes())

	got := c.Filter(CategoryAddition, "送迎")
	if len(got) != 2 {
		t.Fatalf("expected 2 transport additions, got %d", len(got))
	}
}

func TestCatalog_FilterPreservesOrder(t *testing.T) {
	c := NewCatalog(fixtureCodes())

	got := c.Filter("", "")
	want := []string{"611111", "631111", "616701", "616702", "617101"}
	if len(got) != len(want) {
		t.Fatalf("expected %d codes, got %d", len(want), len(got))
	}
	for i, code := range want {
		if got[i].Code != code {
			t.Errorf("position %d: expected %s, got %s", i, code, got[i].Code)
		}
	}
}

func TestNewCatalog_DuplicateKeepsFirst(t *testing.T) {
	codes := []*ServiceCode{
		{Code: "611111", Name: "first", Category: CategoryChildDevelopment, BaseUnits: 885},
		{Code: "611111", Name: "second", Category: CategoryChildDevelopment, BaseUnits: 999},
	}
	c := NewCatalog(codes)

	if c.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", c.Len())
	}
	sc, _ := c.Lookup("611111")
	if sc.Name != "first" {
		t.Errorf("expected first entry to win, got %s", sc.Name)
	}
}
