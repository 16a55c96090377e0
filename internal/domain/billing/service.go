package billing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tsumiki/tsumiki/internal/domain/catalog"
)

// CatalogLoader supplies the service-code catalog used to resolve base
// codes and additions.
type CatalogLoader interface {
	Load(ctx context.Context) (*catalog.Catalog, error)
}

type Service struct {
	repo Repository
	cat  CatalogLoader
}

func NewService(repo Repository, cat CatalogLoader) *Service {
	return &Service{repo: repo, cat: cat}
}

// GenerateMonthly rebuilds the draft billing records for a facility
// month from usage-derived day facts. Children holding a confirmed or
// later record are skipped; existing drafts are replaced. The whole
// rebuild runs in one transaction.
func (s *Service) GenerateMonthly(ctx context.Context, fac FacilityInfo, children []ChildInfo, yearMonth string, facts []DayFact) (*GenerateResult, error) {
	if !ValidYearMonth(yearMonth) {
		return nil, fmt.Errorf("invalid year-month: %s", yearMonth)
	}
	if fac.UnitPrice <= 0 {
		return nil, fmt.Errorf("facility unit price must be positive")
	}

	cat, err := s.cat.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load service-code catalog: %w", err)
	}

	childByID := make(map[uuid.UUID]ChildInfo, len(children))
	for _, ch := range children {
		childByID[ch.ID] = ch
	}

	result := &GenerateResult{Generated: []*BillingRecord{}, Skipped: []uuid.UUID{}}

	factsByChild := make(map[uuid.UUID][]DayFact)
	for _, fact := range facts {
		if _, ok := childByID[fact.ChildID]; !ok {
			result.Warnings = append(result.Warnings, Warning{
				ChildID: fact.ChildID,
				Date:    fact.Date.Format("2006-01-02"),
				Message: fmt.Sprintf("usage on %s references unknown child %s, day excluded", fact.Date.Format("2006-01-02"), fact.ChildID),
			})
			continue
		}
		factsByChild[fact.ChildID] = append(factsByChild[fact.ChildID], fact)
	}

	existing, err := s.repo.GetRecords(ctx, fac.ID, yearMonth)
	if err != nil {
		return nil, err
	}
	locked := make(map[uuid.UUID]bool)
	for _, rec := range existing {
		if rec.Status != StatusDraft {
			locked[rec.ChildID] = true
		}
	}

	childIDs := make([]uuid.UUID, 0, len(factsByChild))
	for id := range factsByChild {
		childIDs = append(childIDs, id)
	}
	sort.Slice(childIDs, func(i, j int) bool { return childIDs[i].String() < childIDs[j].String() })

	err = s.repo.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.DeleteDraftRecords(ctx, fac.ID, yearMonth); err != nil {
			return err
		}
		for _, childID := range childIDs {
			if locked[childID] {
				result.Skipped = append(result.Skipped, childID)
				continue
			}
			child := childByID[childID]
			rec, details, warnings := buildChildRecord(fac, child, yearMonth, factsByChild[childID], cat)
			result.Warnings = append(result.Warnings, warnings...)

			if err := s.repo.InsertRecord(ctx, rec); err != nil {
				return err
			}
			for _, d := range details {
				d.RecordID = rec.ID
			}
			if err := s.repo.InsertDetails(ctx, details); err != nil {
				return err
			}
			result.Generated = append(result.Generated, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// editDetail applies mutate to one detail and re-aggregates the parent
// record from a fresh read of all sibling details, atomically. Only
// draft records can be edited.
func (s *Service) editDetail(ctx context.Context, detailID uuid.UUID, mutate func(d *BillingDetail) error) (*BillingDetail, *BillingRecord, error) {
	var (
		outDetail *BillingDetail
		outRecord *BillingRecord
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		d, err := s.repo.GetDetail(ctx, detailID)
		if err != nil {
			return err
		}
		rec, err := s.repo.GetRecord(ctx, d.RecordID)
		if err != nil {
			return err
		}
		if rec.Status != StatusDraft {
			return fmt.Errorf("%w: record is %s", ErrInvalidState, rec.Status)
		}
		if err := mutate(d); err != nil {
			return err
		}
		if err := s.repo.UpdateDetail(ctx, d); err != nil {
			return err
		}
		siblings, err := s.repo.GetDetails(ctx, rec.ID)
		if err != nil {
			return err
		}
		recomputeTotals(rec, siblings)
		if err := s.repo.UpdateRecordTotals(ctx, rec); err != nil {
			return err
		}
		outDetail, outRecord = d, rec
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return outDetail, outRecord, nil
}

// SetUnitCount overrides a detail's day total and re-aggregates the
// parent record.
func (s *Service) SetUnitCount(ctx context.Context, detailID uuid.UUID, unitCount int) (*BillingDetail, *BillingRecord, error) {
	if unitCount < 0 {
		return nil, nil, fmt.Errorf("unit count must not be negative")
	}
	return s.editDetail(ctx, detailID, func(d *BillingDetail) error {
		d.UnitCount = unitCount
		return nil
	})
}

// AddAddition applies a catalog addition to a detail, raising its day
// total by the addition's units.
func (s *Service) AddAddition(ctx context.Context, detailID uuid.UUID, code string) (*BillingDetail, *BillingRecord, error) {
	cat, err := s.cat.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load service-code catalog: %w", err)
	}
	sc, ok := cat.Lookup(code)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownServiceCode, code)
	}
	return s.editDetail(ctx, detailID, func(d *BillingDetail) error {
		d.Additions = append(d.Additions, BillingAddition{Code: sc.Code, Name: sc.Name, Units: sc.BaseUnits})
		d.UnitCount += sc.BaseUnits
		return nil
	})
}

// RemoveAddition removes the addition at index from a detail, lowering
// its day total by that addition's units.
func (s *Service) RemoveAddition(ctx context.Context, detailID uuid.UUID, index int) (*BillingDetail, *BillingRecord, error) {
	return s.editDetail(ctx, detailID, func(d *BillingDetail) error {
		if index < 0 || index >= len(d.Additions) {
			return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(d.Additions))
		}
		d.UnitCount -= d.Additions[index].Units
		d.Additions = append(d.Additions[:index], d.Additions[index+1:]...)
		return nil
	})
}

// ConfirmAll moves every draft record for the month to confirmed and
// returns how many records changed.
func (s *Service) ConfirmAll(ctx context.Context, facilityID uuid.UUID, yearMonth string) (int, error) {
	if !ValidYearMonth(yearMonth) {
		return 0, fmt.Errorf("invalid year-month: %s", yearMonth)
	}
	return s.repo.BulkConfirm(ctx, facilityID, yearMonth, time.Now())
}

// Transition advances one record along the status state machine,
// stamping the matching timestamp. Transitions are one-directional.
func (s *Service) Transition(ctx context.Context, recordID uuid.UUID, next string) (*BillingRecord, error) {
	rec, err := s.repo.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(rec.Status, next) {
		return nil, fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidState, rec.Status, next)
	}

	now := time.Now()
	rec.Status = next
	switch next {
	case StatusConfirmed:
		rec.ConfirmedAt = &now
	case StatusSubmitted:
		rec.SubmittedAt = &now
	case StatusPaid:
		rec.PaidAt = &now
	}

	if err := s.repo.UpdateRecordStatus(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) Records(ctx context.Context, facilityID uuid.UUID, yearMonth string) ([]*BillingRecord, error) {
	if !ValidYearMonth(yearMonth) {
		return nil, fmt.Errorf("invalid year-month: %s", yearMonth)
	}
	return s.repo.GetRecords(ctx, facilityID, yearMonth)
}

func (s *Service) Record(ctx context.Context, id uuid.UUID) (*BillingRecord, error) {
	return s.repo.GetRecord(ctx, id)
}

func (s *Service) Details(ctx context.Context, recordID uuid.UUID) ([]*BillingDetail, error) {
	if _, err := s.repo.GetRecord(ctx, recordID); err != nil {
		return nil, err
	}
	return s.repo.GetDetails(ctx, recordID)
}

// BuildBatch assembles the month's records, details, and child master
// data for validation and submission export.
func (s *Service) BuildBatch(ctx context.Context, fac FacilityInfo, children []ChildInfo, yearMonth string) (*Batch, error) {
	if !ValidYearMonth(yearMonth) {
		return nil, fmt.Errorf("invalid year-month: %s", yearMonth)
	}
	records, err := s.repo.GetRecords(ctx, fac.ID, yearMonth)
	if err != nil {
		return nil, err
	}

	details := make(map[uuid.UUID][]*BillingDetail, len(records))
	for _, rec := range records {
		ds, err := s.repo.GetDetails(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		details[rec.ID] = ds
	}

	childByID := make(map[uuid.UUID]ChildInfo, len(children))
	for _, ch := range children {
		childByID[ch.ID] = ch
	}

	return &Batch{
		Facility:  fac,
		YearMonth: yearMonth,
		Records:   records,
		Details:   details,
		Children:  childByID,
	}, nil
}
