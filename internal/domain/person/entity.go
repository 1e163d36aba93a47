// Package person contains the role-tagged profile records of the Kary
// platform: students, teachers, psychopedagogues, parents and directives.
// This is core business logic with no external dependencies.
package person

import (
	"errors"
	"time"
)

// Validation errors local to the person aggregate.
var (
	// ErrInvalidRole is returned for a role outside the five dashboard roles.
	ErrInvalidRole = errors.New("person: invalid role")
	// ErrNameRequired is returned when a profile has no name.
	ErrNameRequired = errors.New("person: name is required")
	// ErrReferenceOnNonStudent is returned when a non-student record carries
	// student cross-references.
	ErrReferenceOnNonStudent = errors.New("person: only students may carry teacher/psychopedagogue/parent references")
)

// ══════════════════════════════════════════════════════════════════════════════
// ROLES
// ══════════════════════════════════════════════════════════════════════════════

// Role tags a person record with its dashboard role.
type Role string

const (
	// RoleStudent - a student enrolled on the platform.
	RoleStudent Role = "student"
	// RoleTeacher - a teacher responsible for a group of students.
	RoleTeacher Role = "teacher"
	// RolePsychopedagogue - a psychopedagogue tracking support cases.
	RolePsychopedagogue Role = "psychopedagogue"
	// RoleParent - a parent linked to one or more students.
	RoleParent Role = "parent"
	// RoleDirective - an administrative directive account.
	RoleDirective Role = "directive"
)

// IsValid reports whether the role is one of the five dashboard roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RolePsychopedagogue, RoleParent, RoleDirective:
		return true
	default:
		return false
	}
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// CanReviewLinkRequests reports whether this role may approve or reject
// parent-student link requests.
func (r Role) CanReviewLinkRequests() bool {
	return r == RolePsychopedagogue || r == RoleDirective
}

// IDPrefix returns the prefix used when generating IDs for this role.
func (r Role) IDPrefix() string {
	return string(r)
}

// ══════════════════════════════════════════════════════════════════════════════
// PERSON ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Person is a role-tagged profile with cross-references to related records.
// The cross-reference fields are only meaningful for certain roles: a
// student carries TeacherID/PsychopedagogueID/ParentID, a teacher or a
// psychopedagogue carries AssignedStudents. JSON tags match the legacy
// kary_unified_data snapshot.
type Person struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`

	// Student cross-references. When set they must point at an existing
	// record of the matching role; the entity store enforces this.
	TeacherID         string `json:"teacherId,omitempty"`
	PsychopedagogueID string `json:"psychopedagogueId,omitempty"`
	ParentID          string `json:"parentId,omitempty"`

	// Grade the student belongs to (students only).
	Grade string `json:"grade,omitempty"`

	// AssignedStudents lists student IDs this teacher/psychopedagogue is
	// responsible for.
	AssignedStudents []string `json:"assignedStudents,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Version supports optimistic locking in versioned stores. It is not
	// part of the snapshot wire format.
	Version int64 `json:"-"`
}

// Validate checks the invariants that hold without looking at other
// records. Cross-reference existence is the entity store's concern.
func (p *Person) Validate() error {
	if !p.Role.IsValid() {
		return ErrInvalidRole
	}
	if p.Name == "" {
		return ErrNameRequired
	}
	if p.Role != RoleStudent && (p.TeacherID != "" || p.PsychopedagogueID != "" || p.ParentID != "") {
		return ErrReferenceOnNonStudent
	}
	return nil
}

// References returns the student's cross-references paired with the role
// each must resolve to. Empty references are omitted.
func (p *Person) References() map[string]Role {
	refs := make(map[string]Role, 3)
	if p.TeacherID != "" {
		refs[p.TeacherID] = RoleTeacher
	}
	if p.PsychopedagogueID != "" {
		refs[p.PsychopedagogueID] = RolePsychopedagogue
	}
	if p.ParentID != "" {
		refs[p.ParentID] = RoleParent
	}
	return refs
}

// AssignStudent records a student under this teacher/psychopedagogue.
// Adding the same student twice is a no-op.
func (p *Person) AssignStudent(studentID string) {
	for _, id := range p.AssignedStudents {
		if id == studentID {
			return
		}
	}
	p.AssignedStudents = append(p.AssignedStudents, studentID)
}

// HasAssignedStudent reports whether studentID is assigned to this person.
func (p *Person) HasAssignedStudent(studentID string) bool {
	for _, id := range p.AssignedStudents {
		if id == studentID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (p *Person) Clone() *Person {
	cp := *p
	if p.AssignedStudents != nil {
		cp.AssignedStudents = make([]string, len(p.AssignedStudents))
		copy(cp.AssignedStudents, p.AssignedStudents)
	}
	return &cp
}
