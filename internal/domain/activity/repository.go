package activity

import (
	"context"
)

// TemplateFilter selects activity templates by equality on indexed fields.
type TemplateFilter struct {
	CreatedBy string
	Subject   string
	Grade     string
	Status    Status
}

// Matches reports whether the template satisfies every set field.
func (f TemplateFilter) Matches(a *Activity) bool {
	if f.CreatedBy != "" && a.CreatedBy != f.CreatedBy {
		return false
	}
	if f.Subject != "" && a.Subject != f.Subject {
		return false
	}
	if f.Grade != "" && a.Grade != f.Grade {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}

// AssignmentFilter selects assignments by equality on indexed fields.
type AssignmentFilter struct {
	ParentActivityID string
	AssignedTo       string
	CreatedBy        string
	Status           Status
	Category         string
}

// Matches reports whether the assignment satisfies every set field.
func (f AssignmentFilter) Matches(a *Assignment) bool {
	if f.ParentActivityID != "" && a.ParentActivityID != f.ParentActivityID {
		return false
	}
	if f.AssignedTo != "" && a.AssignedTo != f.AssignedTo {
		return false
	}
	if f.CreatedBy != "" && a.CreatedBy != f.CreatedBy {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Category != "" && a.Category != f.Category {
		return false
	}
	return true
}

// Repository defines the persistence contract for templates and assignments.
type Repository interface {
	// Templates

	// CreateTemplate stores a new activity template.
	CreateTemplate(ctx context.Context, a *Activity) error

	// GetTemplate returns a template by ID.
	// Returns shared.ErrActivityNotFound if no record matches.
	GetTemplate(ctx context.Context, id string) (*Activity, error)

	// UpdateTemplate overwrites an existing template.
	UpdateTemplate(ctx context.Context, a *Activity) error

	// DeleteTemplate removes a template. Hard delete; activities are one of
	// the two entity kinds the platform actually deletes.
	DeleteTemplate(ctx context.Context, id string) error

	// ListTemplates returns every template matching the filter.
	ListTemplates(ctx context.Context, filter TemplateFilter) ([]*Activity, error)

	// Assignments

	// CreateAssignment stores a new assignment clone.
	// Returns shared.ErrDuplicateAssignment if the (template, student) pair
	// already has one.
	CreateAssignment(ctx context.Context, a *Assignment) error

	// GetAssignment returns an assignment by ID.
	GetAssignment(ctx context.Context, id string) (*Assignment, error)

	// FindAssignment locates the unique assignment for a
	// (template, student) pair.
	// Returns shared.ErrAssignmentNotFound if no record matches.
	FindAssignment(ctx context.Context, parentActivityID, studentID string) (*Assignment, error)

	// UpdateAssignment overwrites an existing assignment.
	UpdateAssignment(ctx context.Context, a *Assignment) error

	// DeleteAssignmentsByTemplate removes every assignment cloned from the
	// template. Used when the owning teacher deletes the template.
	DeleteAssignmentsByTemplate(ctx context.Context, parentActivityID string) error

	// ListAssignments returns every assignment matching the filter.
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]*Assignment, error)
}
