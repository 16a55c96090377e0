package facility

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

var officeCodePattern = regexp.MustCompile(`^\d{10}$`)

// Service implements facility business logic. defaultUnitPrice fills in
// the unit price for facilities created without one.
type Service struct {
	repo             Repository
	defaultUnitPrice int
}

func NewService(repo Repository, defaultUnitPrice int) *Service {
	return &Service{repo: repo, defaultUnitPrice: defaultUnitPrice}
}

func (s *Service) validate(f *Facility) error {
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	if f.OfficeCode == "" {
		return fmt.Errorf("office code is required")
	}
	if !officeCodePattern.MatchString(f.OfficeCode) {
		return fmt.Errorf("office code must be 10 digits")
	}
	if f.UnitPrice < 0 {
		return fmt.Errorf("unit price must not be negative")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, f *Facility) error {
	if f.UnitPrice == 0 {
		f.UnitPrice = s.defaultUnitPrice
	}
	if err := s.validate(f); err != nil {
		return err
	}
	return s.repo.Create(ctx, f)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Facility, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, f *Facility) error {
	if f.UnitPrice == 0 {
		f.UnitPrice = s.defaultUnitPrice
	}
	if err := s.validate(f); err != nil {
		return err
	}
	return s.repo.Update(ctx, f)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Facility, int, error) {
	return s.repo.List(ctx, limit, offset)
}
