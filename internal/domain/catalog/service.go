package catalog

import (
	"context"
	"fmt"
	"sync"
)

var validCategories = map[string]bool{
	CategoryChildDevelopment: true,
	CategoryAfterSchoolDay:   true,
	CategoryAddition:         true,
}

// Service loads service-code reference data and caches an immutable
// catalog snapshot. Registering a new code invalidates the snapshot.
type Service struct {
	repo Repository

	mu     sync.RWMutex
	cached *Catalog
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Load returns the cached catalog, loading it from the repository on
// first use.
func (s *Service) Load(ctx context.Context) (*Catalog, error) {
	s.mu.RLock()
	if s.cached != nil {
		c := s.cached
		s.mu.RUnlock()
		return c, nil
	}
	s.mu.RUnlock()
	return s.Reload(ctx)
}

// Reload discards the cached snapshot and reloads from the repository.
func (s *Service) Reload(ctx context.Context) (*Catalog, error) {
	codes, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	c := NewCatalog(codes)

	s.mu.Lock()
	s.cached = c
	s.mu.Unlock()
	return c, nil
}

// Search returns the catalog entries matching category and search text.
func (s *Service) Search(ctx context.Context, category, search string) ([]*ServiceCode, error) {
	if category != "" && !validCategories[category] {
		return nil, fmt.Errorf("invalid category: %s", category)
	}
	c, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return c.Filter(category, search), nil
}

// Register adds a new service code and invalidates the cached catalog.
func (s *Service) Register(ctx context.Context, sc *ServiceCode) error {
	if sc.Code == "" {
		return fmt.Errorf("code is required")
	}
	if sc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !validCategories[sc.Category] {
		return fmt.Errorf("invalid category: %s", sc.Category)
	}
	if sc.BaseUnits < 0 {
		return fmt.Errorf("base units must not be negative")
	}

	c, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if _, exists := c.Lookup(sc.Code); exists {
		return fmt.Errorf("service code already exists: %s", sc.Code)
	}

	if err := s.repo.Create(ctx, sc); err != nil {
		return err
	}

	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
	return nil
}
