package memstore

import (
	"context"
	"sync"

	"github.com/kary-hub/kary-sync-engine/internal/domain/casefile"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
)

// CasefileRepository is an in-memory casefile.Repository.
type CasefileRepository struct {
	mu sync.RWMutex

	cases     map[string]*casefile.Case
	caseOrder []string
	plans     map[string]*casefile.SupportPlan
	planOrder []string
}

// NewCasefileRepository creates an empty repository.
func NewCasefileRepository() *CasefileRepository {
	return &CasefileRepository{
		cases: make(map[string]*casefile.Case),
		plans: make(map[string]*casefile.SupportPlan),
	}
}

// CreateCase stores a new case.
func (r *CasefileRepository) CreateCase(ctx context.Context, c *casefile.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cases[c.ID]; ok {
		return shared.NewDomainError("casefile", "CreateCase", shared.ErrAlreadyExists, "case already exists")
	}
	r.cases[c.ID] = c.Clone()
	r.caseOrder = append(r.caseOrder, c.ID)
	return nil
}

// GetCase returns a case by ID.
func (r *CasefileRepository) GetCase(ctx context.Context, id string) (*casefile.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.cases[id]
	if !ok {
		return nil, shared.ErrCaseNotFound
	}
	return c.Clone(), nil
}

// UpdateCase overwrites an existing case.
func (r *CasefileRepository) UpdateCase(ctx context.Context, c *casefile.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cases[c.ID]; !ok {
		return shared.ErrCaseNotFound
	}
	r.cases[c.ID] = c.Clone()
	return nil
}

// ListCases returns every case matching the filter in insertion order.
func (r *CasefileRepository) ListCases(ctx context.Context, filter casefile.CaseFilter) ([]*casefile.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*casefile.Case
	for _, id := range r.caseOrder {
		if c, ok := r.cases[id]; ok && filter.Matches(c) {
			result = append(result, c.Clone())
		}
	}
	return result, nil
}

// CreatePlan stores a new support plan.
func (r *CasefileRepository) CreatePlan(ctx context.Context, p *casefile.SupportPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.plans[p.ID]; ok {
		return shared.NewDomainError("casefile", "CreatePlan", shared.ErrAlreadyExists, "support plan already exists")
	}
	r.plans[p.ID] = p.Clone()
	r.planOrder = append(r.planOrder, p.ID)
	return nil
}

// GetPlan returns a support plan by ID.
func (r *CasefileRepository) GetPlan(ctx context.Context, id string) (*casefile.SupportPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plans[id]
	if !ok {
		return nil, shared.ErrSupportPlanNotFound
	}
	return p.Clone(), nil
}

// UpdatePlan overwrites an existing support plan.
func (r *CasefileRepository) UpdatePlan(ctx context.Context, p *casefile.SupportPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.plans[p.ID]; !ok {
		return shared.ErrSupportPlanNotFound
	}
	r.plans[p.ID] = p.Clone()
	return nil
}

// ListPlans returns every support plan matching the filter in insertion
// order.
func (r *CasefileRepository) ListPlans(ctx context.Context, filter casefile.PlanFilter) ([]*casefile.SupportPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*casefile.SupportPlan
	for _, id := range r.planOrder {
		if p, ok := r.plans[id]; ok && filter.Matches(p) {
			result = append(result, p.Clone())
		}
	}
	return result, nil
}
