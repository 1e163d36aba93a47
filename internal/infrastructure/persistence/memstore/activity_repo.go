package memstore

import (
	"context"
	"sync"

	"github.com/kary-hub/kary-sync-engine/internal/domain/activity"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
)

// ActivityRepository is an in-memory activity.Repository covering both
// templates and assignments.
type ActivityRepository struct {
	mu sync.RWMutex

	templates       map[string]*activity.Activity
	templateOrder   []string
	assignments     map[string]*activity.Assignment
	assignmentOrder []string
}

// NewActivityRepository creates an empty repository.
func NewActivityRepository() *ActivityRepository {
	return &ActivityRepository{
		templates:   make(map[string]*activity.Activity),
		assignments: make(map[string]*activity.Assignment),
	}
}

// CreateTemplate stores a new activity template.
func (r *ActivityRepository) CreateTemplate(ctx context.Context, a *activity.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[a.ID]; ok {
		return shared.NewDomainError("activity", "CreateTemplate", shared.ErrAlreadyExists, "template already exists")
	}
	r.templates[a.ID] = a.Clone()
	r.templateOrder = append(r.templateOrder, a.ID)
	return nil
}

// GetTemplate returns a template by ID.
func (r *ActivityRepository) GetTemplate(ctx context.Context, id string) (*activity.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.templates[id]
	if !ok {
		return nil, shared.ErrActivityNotFound
	}
	return a.Clone(), nil
}

// UpdateTemplate overwrites an existing template.
func (r *ActivityRepository) UpdateTemplate(ctx context.Context, a *activity.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[a.ID]; !ok {
		return shared.ErrActivityNotFound
	}
	r.templates[a.ID] = a.Clone()
	return nil
}

// DeleteTemplate removes a template.
func (r *ActivityRepository) DeleteTemplate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[id]; !ok {
		return shared.ErrActivityNotFound
	}
	delete(r.templates, id)
	for i, tid := range r.templateOrder {
		if tid == id {
			r.templateOrder = append(r.templateOrder[:i], r.templateOrder[i+1:]...)
			break
		}
	}
	return nil
}

// ListTemplates returns every template matching the filter in insertion
// order.
func (r *ActivityRepository) ListTemplates(ctx context.Context, filter activity.TemplateFilter) ([]*activity.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*activity.Activity
	for _, id := range r.templateOrder {
		if a, ok := r.templates[id]; ok && filter.Matches(a) {
			result = append(result, a.Clone())
		}
	}
	return result, nil
}

// CreateAssignment stores a new assignment clone, enforcing uniqueness of
// the (template, student) pair.
func (r *ActivityRepository) CreateAssignment(ctx context.Context, a *activity.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.assignments {
		if existing.ParentActivityID == a.ParentActivityID && existing.AssignedTo == a.AssignedTo {
			return shared.ErrDuplicateAssignment
		}
	}
	if _, ok := r.assignments[a.ID]; ok {
		return shared.NewDomainError("activity", "CreateAssignment", shared.ErrAlreadyExists, "assignment already exists")
	}
	r.assignments[a.ID] = a.Clone()
	r.assignmentOrder = append(r.assignmentOrder, a.ID)
	return nil
}

// GetAssignment returns an assignment by ID.
func (r *ActivityRepository) GetAssignment(ctx context.Context, id string) (*activity.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assignments[id]
	if !ok {
		return nil, shared.ErrAssignmentNotFound
	}
	return a.Clone(), nil
}

// FindAssignment locates the unique assignment for a (template, student)
// pair.
func (r *ActivityRepository) FindAssignment(ctx context.Context, parentActivityID, studentID string) (*activity.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.assignments {
		if a.ParentActivityID == parentActivityID && a.AssignedTo == studentID {
			return a.Clone(), nil
		}
	}
	return nil, shared.ErrAssignmentNotFound
}

// UpdateAssignment overwrites an existing assignment.
func (r *ActivityRepository) UpdateAssignment(ctx context.Context, a *activity.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.assignments[a.ID]; !ok {
		return shared.ErrAssignmentNotFound
	}
	r.assignments[a.ID] = a.Clone()
	return nil
}

// DeleteAssignmentsByTemplate removes every assignment cloned from the
// template.
func (r *ActivityRepository) DeleteAssignmentsByTemplate(ctx context.Context, parentActivityID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.assignmentOrder[:0]
	for _, id := range r.assignmentOrder {
		a := r.assignments[id]
		if a != nil && a.ParentActivityID == parentActivityID {
			delete(r.assignments, id)
			continue
		}
		kept = append(kept, id)
	}
	r.assignmentOrder = kept
	return nil
}

// ListAssignments returns every assignment matching the filter in
// insertion order.
func (r *ActivityRepository) ListAssignments(ctx context.Context, filter activity.AssignmentFilter) ([]*activity.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*activity.Assignment
	for _, id := range r.assignmentOrder {
		if a, ok := r.assignments[id]; ok && filter.Matches(a) {
			result = append(result, a.Clone())
		}
	}
	return result, nil
}
