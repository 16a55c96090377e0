package billing

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// utf8BOM is prepended to the export so spreadsheet tools on the
// receiving side decode Japanese text correctly.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Record type tags in the submission file layout.
const (
	csvTypeHeader  = "1"
	csvTypeRecord  = "2"
	csvTypeDetail  = "3"
	csvTypeTrailer = "9"
)

// Filename returns the submission file name for the batch month.
func (b *Batch) Filename() string {
	return fmt.Sprintf("kokuhoren_%s.csv", b.YearMonth)
}

// Validate checks the batch for conditions that block or taint a
// submission: unconfirmed records, zero-unit records, and children
// missing master data.
func (b *Batch) Validate() []Warning {
	var warnings []Warning
	for _, rec := range b.Records {
		child, known := b.Children[rec.ChildID]
		name := child.Name

		if rec.Status == StatusDraft {
			warnings = append(warnings, Warning{
				ChildID:   rec.ChildID,
				ChildName: name,
				Message:   fmt.Sprintf("record for %s is still draft", displayName(name, rec.ChildID.String())),
			})
		}
		if rec.TotalUnits == 0 {
			warnings = append(warnings, Warning{
				ChildID:   rec.ChildID,
				ChildName: name,
				Message:   fmt.Sprintf("record for %s has zero units", displayName(name, rec.ChildID.String())),
			})
		}
		if !known {
			warnings = append(warnings, Warning{
				ChildID: rec.ChildID,
				Message: fmt.Sprintf("record references unknown child %s", rec.ChildID),
			})
		} else if child.BeneficiaryNumber == "" {
			warnings = append(warnings, Warning{
				ChildID:   rec.ChildID,
				ChildName: name,
				Message:   fmt.Sprintf("child %s has no beneficiary number", name),
			})
		}
	}
	return warnings
}

func displayName(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

// HasBlockingWarnings reports whether any validation warning should stop
// an export. Draft records and missing master data block; zero-unit
// records are advisory.
func (b *Batch) HasBlockingWarnings() bool {
	for _, w := range b.Validate() {
		if !strings.Contains(w.Message, "zero units") {
			return true
		}
	}
	return false
}

// WriteCSV writes the submission file: a BOM, then one header row, then
// per child a record row followed by its day detail rows, then a
// trailer with batch totals. Records are already sorted by child ID.
func (b *Batch) WriteCSV(w io.Writer) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	cw := csv.NewWriter(w)

	header := []string{
		csvTypeHeader,
		b.Facility.OfficeCode,
		b.Facility.Name,
		b.YearMonth,
		strconv.Itoa(len(b.Records)),
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	totalUnits := 0
	totalAmount := 0
	for _, rec := range b.Records {
		child := b.Children[rec.ChildID]

		row := []string{
			csvTypeRecord,
			child.BeneficiaryNumber,
			child.Name,
			rec.ServiceType,
			strconv.Itoa(rec.TotalUnits),
			strconv.Itoa(rec.UnitPrice),
			strconv.Itoa(rec.TotalAmount),
			strconv.Itoa(rec.CopayAmount),
			strconv.Itoa(rec.InsuranceAmount),
			rec.Status,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write record row: %w", err)
		}

		for _, d := range b.Details[rec.ID] {
			row := []string{
				csvTypeDetail,
				child.BeneficiaryNumber,
				d.ServiceDate.Format("2006-01-02"),
				d.ServiceCode,
				strconv.Itoa(d.UnitCount),
				boolFlag(d.IsAbsence),
				formatAdditions(d.Additions),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("failed to write detail row: %w", err)
			}
		}

		totalUnits += rec.TotalUnits
		totalAmount += rec.TotalAmount
	}

	trailer := []string{
		csvTypeTrailer,
		strconv.Itoa(len(b.Records)),
		strconv.Itoa(totalUnits),
		strconv.Itoa(totalAmount),
	}
	if err := cw.Write(trailer); err != nil {
		return fmt.Errorf("failed to write trailer row: %w", err)
	}

	cw.Flush()
	return cw.Error()
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// formatAdditions packs a detail's additions into one field as
// "code:units" pairs separated by semicolons.
func formatAdditions(additions []BillingAddition) string {
	if len(additions) == 0 {
		return ""
	}
	parts := make([]string, len(additions))
	for i, a := range additions {
		parts[i] = fmt.Sprintf("%s:%d", a.Code, a.Units)
	}
	return strings.Join(parts, ";")
}
