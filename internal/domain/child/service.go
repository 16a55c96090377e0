package child

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/tsumiki/tsumiki/internal/domain/catalog"
)

var beneficiaryNumberPattern = regexp.MustCompile(`^\d{10}$`)

var validServiceTypes = map[string]bool{
	catalog.CategoryChildDevelopment: true,
	catalog.CategoryAfterSchoolDay:   true,
}

var validIncomeCategories = map[string]bool{
	IncomeCategoryGeneral:    true,
	IncomeCategoryGeneralLow: true,
	IncomeCategoryLowIncome:  true,
	IncomeCategoryWelfare:    true,
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) validate(ch *Child) error {
	if ch.FacilityID == uuid.Nil {
		return fmt.Errorf("facility ID is required")
	}
	if ch.Name == "" {
		return fmt.Errorf("name is required")
	}
	if ch.BeneficiaryNumber == "" {
		return fmt.Errorf("beneficiary number is required")
	}
	if !beneficiaryNumberPattern.MatchString(ch.BeneficiaryNumber) {
		return fmt.Errorf("beneficiary number must be 10 digits")
	}
	if !validServiceTypes[ch.ServiceType] {
		return fmt.Errorf("invalid service type: %s", ch.ServiceType)
	}
	if !validIncomeCategories[ch.IncomeCategory] {
		return fmt.Errorf("invalid income category: %s", ch.IncomeCategory)
	}
	if ch.UpperLimitAmount < 0 {
		return fmt.Errorf("upper limit amount must not be negative")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, ch *Child) error {
	if ch.UpperLimitAmount == 0 {
		ch.UpperLimitAmount = DefaultUpperLimit(ch.IncomeCategory)
	}
	if err := s.validate(ch); err != nil {
		return err
	}
	return s.repo.Create(ctx, ch)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Child, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, ch *Child) error {
	if err := s.validate(ch); err != nil {
		return err
	}
	return s.repo.Update(ctx, ch)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListByFacility(ctx context.Context, facilityID uuid.UUID, limit, offset int) ([]*Child, int, error) {
	return s.repo.ListByFacility(ctx, facilityID, limit, offset)
}
