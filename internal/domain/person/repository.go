package person

import (
	"context"
)

// Filter selects person records by equality on indexed fields. Zero values
// mean "any". Filters combine with AND.
type Filter struct {
	// Role restricts to a single role.
	Role Role

	// IDs restricts to an explicit ID set.
	IDs []string

	// TeacherID matches students supervised by this teacher.
	TeacherID string

	// PsychopedagogueID matches students tracked by this psychopedagogue.
	PsychopedagogueID string

	// ParentID matches students linked to this parent.
	ParentID string

	// Grade matches students in a grade.
	Grade string
}

// Matches reports whether p satisfies every set field of the filter.
func (f Filter) Matches(p *Person) bool {
	if f.Role != "" && p.Role != f.Role {
		return false
	}
	if f.TeacherID != "" && p.TeacherID != f.TeacherID {
		return false
	}
	if f.PsychopedagogueID != "" && p.PsychopedagogueID != f.PsychopedagogueID {
		return false
	}
	if f.ParentID != "" && p.ParentID != f.ParentID {
		return false
	}
	if f.Grade != "" && p.Grade != f.Grade {
		return false
	}
	if len(f.IDs) > 0 {
		found := false
		for _, id := range f.IDs {
			if id == p.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Repository defines the persistence contract for person records.
// Implementations live in infrastructure/persistence.
type Repository interface {
	// Create stores a new person.
	// Returns shared.ErrPersonAlreadyExists if the ID is taken.
	Create(ctx context.Context, p *Person) error

	// GetByID returns a person by ID.
	// Returns shared.ErrPersonNotFound if no record matches.
	GetByID(ctx context.Context, id string) (*Person, error)

	// Update overwrites an existing person.
	// Returns shared.ErrPersonNotFound if no record matches.
	Update(ctx context.Context, p *Person) error

	// List returns every person matching the filter.
	List(ctx context.Context, filter Filter) ([]*Person, error)

	// Count returns the number of matching persons.
	Count(ctx context.Context, filter Filter) (int, error)
}
