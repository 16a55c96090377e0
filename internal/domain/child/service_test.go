package child

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tsumiki/tsumiki/internal/domain/catalog"
)

type mockRepo struct {
	created []*Child
}

func (m *mockRepo) Create(ctx context.Context, ch *Child) error {
	ch.ID = uuid.New()
	m.created = append(m.created, ch)
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Child, error) {
	return nil, ErrNotFound
}

func (m *mockRepo) Update(ctx context.Context, ch *Child) error { return nil }

func (m *mockRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (m *mockRepo) ListByFacility(ctx context.Context, facilityID uuid.UUID, limit, offset int) ([]*Child, int, error) {
	return nil, 0, nil
}

func validChild() Child {
	return Child{
		FacilityID:        uuid.New(),
		Name:              "山田 太郎",
		BeneficiaryNumber: "1234567890",
		ServiceType:       catalog.CategoryAfterSchoolDay,
		IncomeCategory:    IncomeCategoryGeneral,
	}
}

func TestService_CreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Child)
		wantErr string
	}{
		{"missing facility", func(ch *Child) { ch.FacilityID = uuid.Nil }, "facility ID is required"},
		{"missing name", func(ch *Child) { ch.Name = "" }, "name is required"},
		{"missing beneficiary number", func(ch *Child) { ch.BeneficiaryNumber = "" }, "beneficiary number is required"},
		{"short beneficiary number", func(ch *Child) { ch.BeneficiaryNumber = "12345" }, "must be 10 digits"},
		{"bad service type", func(ch *Child) { ch.ServiceType = "respite" }, "invalid service type"},
		{"addition as service type", func(ch *Child) { ch.ServiceType = catalog.CategoryAddition }, "invalid service type"},
		{"bad income category", func(ch *Child) { ch.IncomeCategory = "rich" }, "invalid income category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&mockRepo{})
			ch := validChild()
			tt.mutate(&ch)
			err := svc.Create(context.Background(), &ch)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestService_CreateDefaultsUpperLimit(t *testing.T) {
	tests := []struct {
		category string
		want     int
	}{
		{IncomeCategoryGeneral, 37200},
		{IncomeCategoryGeneralLow, 4600},
		{IncomeCategoryLowIncome, 0},
		{IncomeCategoryWelfare, 0},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			svc := NewService(&mockRepo{})
			ch := validChild()
			ch.IncomeCategory = tt.category
			if err := svc.Create(context.Background(), &ch); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ch.UpperLimitAmount != tt.want {
				t.Errorf("expected upper limit %d, got %d", tt.want, ch.UpperLimitAmount)
			}
		})
	}
}

func TestService_CreateKeepsExplicitUpperLimit(t *testing.T) {
	svc := NewService(&mockRepo{})
	ch := validChild()
	ch.UpperLimitAmount = 9300
	if err := svc.Create(context.Background(), &ch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.UpperLimitAmount != 9300 {
		t.Errorf("expected upper limit 9300, got %d", ch.UpperLimitAmount)
	}
}
