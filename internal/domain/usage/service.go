package usage

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

var validStatuses = map[string]bool{
	StatusAttended:        true,
	StatusAbsence:         true,
	StatusAbsenceAddition: true,
}

var timePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) validate(rec *UsageRecord) error {
	if rec.FacilityID == uuid.Nil {
		return fmt.Errorf("facility ID is required")
	}
	if rec.ChildID == uuid.Nil {
		return fmt.Errorf("child ID is required")
	}
	if rec.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	if !validStatuses[rec.Status] {
		return fmt.Errorf("invalid status: %s", rec.Status)
	}
	if rec.Slot != nil && *rec.Slot != SlotAM && *rec.Slot != SlotPM {
		return fmt.Errorf("invalid slot: %s", *rec.Slot)
	}
	if rec.StartTime != nil && !timePattern.MatchString(*rec.StartTime) {
		return fmt.Errorf("invalid start time: %s", *rec.StartTime)
	}
	if rec.EndTime != nil && !timePattern.MatchString(*rec.EndTime) {
		return fmt.Errorf("invalid end time: %s", *rec.EndTime)
	}
	if rec.Status != StatusAttended && (rec.Pickup || rec.Dropoff) {
		return fmt.Errorf("transport flags require an attended day")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, rec *UsageRecord) error {
	if err := s.validate(rec); err != nil {
		return err
	}
	return s.repo.Create(ctx, rec)
}

// BulkImport stores a batch of records atomically. The whole batch is
// rejected if any record fails validation.
func (s *Service) BulkImport(ctx context.Context, recs []*UsageRecord) error {
	if len(recs) == 0 {
		return fmt.Errorf("no records to import")
	}
	for i, rec := range recs {
		if err := s.validate(rec); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return s.repo.WithTx(ctx, func(ctx context.Context) error {
		return s.repo.BulkCreate(ctx, recs)
	})
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*UsageRecord, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, rec *UsageRecord) error {
	if err := s.validate(rec); err != nil {
		return err
	}
	return s.repo.Update(ctx, rec)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListByFacilityMonth(ctx context.Context, facilityID uuid.UUID, yearMonth string) ([]*UsageRecord, error) {
	return s.repo.ListByFacilityMonth(ctx, facilityID, yearMonth)
}

func (s *Service) ListByChildMonth(ctx context.Context, childID uuid.UUID, yearMonth string) ([]*UsageRecord, error) {
	return s.repo.ListByChildMonth(ctx, childID, yearMonth)
}
