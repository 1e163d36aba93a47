package casefile

import (
	"context"
)

// CaseFilter selects cases by equality on indexed fields.
type CaseFilter struct {
	StudentID         string
	PsychopedagogueID string
	Status            CaseStatus
}

// Matches reports whether c satisfies every set field.
func (f CaseFilter) Matches(c *Case) bool {
	if f.StudentID != "" && c.StudentID != f.StudentID {
		return false
	}
	if f.PsychopedagogueID != "" && c.PsychopedagogueID != f.PsychopedagogueID {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	return true
}

// PlanFilter selects support plans by equality on indexed fields.
type PlanFilter struct {
	StudentID string
	CaseID    string
	AuthorID  string
	Status    PlanStatus
}

// Matches reports whether p satisfies every set field.
func (f PlanFilter) Matches(p *SupportPlan) bool {
	if f.StudentID != "" && p.StudentID != f.StudentID {
		return false
	}
	if f.CaseID != "" && p.CaseID != f.CaseID {
		return false
	}
	if f.AuthorID != "" && p.AuthorID != f.AuthorID {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	return true
}

// Repository defines the persistence contract for cases and support plans.
type Repository interface {
	// CreateCase stores a new case.
	CreateCase(ctx context.Context, c *Case) error

	// GetCase returns a case by ID.
	// Returns shared.ErrCaseNotFound if no record matches.
	GetCase(ctx context.Context, id string) (*Case, error)

	// UpdateCase overwrites an existing case.
	UpdateCase(ctx context.Context, c *Case) error

	// ListCases returns every case matching the filter.
	ListCases(ctx context.Context, filter CaseFilter) ([]*Case, error)

	// CreatePlan stores a new support plan.
	CreatePlan(ctx context.Context, p *SupportPlan) error

	// GetPlan returns a support plan by ID.
	// Returns shared.ErrSupportPlanNotFound if no record matches.
	GetPlan(ctx context.Context, id string) (*SupportPlan, error)

	// UpdatePlan overwrites an existing support plan.
	UpdatePlan(ctx context.Context, p *SupportPlan) error

	// ListPlans returns every support plan matching the filter.
	ListPlans(ctx context.Context, filter PlanFilter) ([]*SupportPlan, error)
}
