// Package casefile contains the psychopedagogue-owned tracking records:
// cases opened for a student and the intervention support plans tied to
// them.
package casefile

import (
	"time"
)

// CaseStatus is the lifecycle state of a tracking case.
type CaseStatus string

const (
	CaseActive     CaseStatus = "active"
	CaseInProgress CaseStatus = "in_progress"
	CaseCompleted  CaseStatus = "completed"
	CaseClosed     CaseStatus = "closed"
)

// IsValid reports whether the status is known.
func (s CaseStatus) IsValid() bool {
	switch s {
	case CaseActive, CaseInProgress, CaseCompleted, CaseClosed:
		return true
	default:
		return false
	}
}

// IsOpen reports whether the case still needs attention.
func (s CaseStatus) IsOpen() bool {
	return s == CaseActive || s == CaseInProgress
}

// Case is a psychopedagogue-owned tracking record for one student.
// JSON tags match the legacy kary_unified_data snapshot.
type Case struct {
	ID                string     `json:"id"`
	StudentID         string     `json:"studentId"`
	PsychopedagogueID string     `json:"psychopedagogueId"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Status            CaseStatus `json:"status"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`

	// Version supports optimistic locking in versioned stores.
	Version int64 `json:"-"`
}

// Clone returns a copy.
func (c *Case) Clone() *Case {
	cp := *c
	return &cp
}

// PlanStatus is the lifecycle state of a support plan.
type PlanStatus string

const (
	PlanActive    PlanStatus = "active"
	PlanCompleted PlanStatus = "completed"
	PlanArchived  PlanStatus = "archived"
)

// IsValid reports whether the status is known.
func (s PlanStatus) IsValid() bool {
	switch s {
	case PlanActive, PlanCompleted, PlanArchived:
		return true
	default:
		return false
	}
}

// SupportPlan is an intervention record authored by a psychopedagogue or
// teacher for one student, optionally attached to a case.
type SupportPlan struct {
	ID          string     `json:"id"`
	StudentID   string     `json:"studentId"`
	CaseID      string     `json:"caseId,omitempty"`
	AuthorID    string     `json:"authorId"`
	Title       string     `json:"title"`
	Objectives  []string   `json:"objectives,omitempty"`
	Status      PlanStatus `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Version supports optimistic locking in versioned stores.
	Version int64 `json:"-"`
}

// Clone returns a deep copy.
func (p *SupportPlan) Clone() *SupportPlan {
	cp := *p
	if p.Objectives != nil {
		cp.Objectives = make([]string, len(p.Objectives))
		copy(cp.Objectives, p.Objectives)
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
