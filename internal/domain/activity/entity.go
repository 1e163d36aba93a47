// Package activity contains the activity template and per-student assignment
// model. A template is authored once by a teacher; assigning it clones one
// independent Assignment per student, each with its own progress and status.
package activity

import (
	"errors"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

// Status is the lifecycle state of an assignment. For assignments it is a
// pure function of progress; StatusDraft only appears on duplicated
// templates that have not been re-assigned yet.
type Status string

const (
	// StatusDraft - a duplicated template awaiting edits and assignment.
	StatusDraft Status = "draft"
	// StatusAssigned - created, no progress recorded yet.
	StatusAssigned Status = "assigned"
	// StatusInProgress - progress strictly between 0 and 100.
	StatusInProgress Status = "in_progress"
	// StatusCompleted - progress reached 100.
	StatusCompleted Status = "completed"
)

// IsValid reports whether the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusAssigned, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// StatusForProgress derives the status from a clamped progress value:
// completed iff progress >= 100, in_progress iff 0 < progress < 100,
// otherwise assigned.
func StatusForProgress(progress int) Status {
	switch {
	case progress >= 100:
		return StatusCompleted
	case progress > 0:
		return StatusInProgress
	default:
		return StatusAssigned
	}
}

// ClampProgress forces progress into [0, 100].
func ClampProgress(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY TEMPLATE
// ══════════════════════════════════════════════════════════════════════════════

// Activity is a teacher-authored template. It never carries progress; that
// lives on the per-student Assignment clones. JSON tags match the legacy
// kary_activities snapshot, where templates are the records without an
// assignedTo field.
type Activity struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Grade       string `json:"grade,omitempty"`

	// Category groups activities for derived metrics ("emotional",
	// "academic", ...). Empty means academic.
	Category string `json:"category,omitempty"`

	DueDate   *time.Time `json:"dueDate,omitempty"`
	CreatedBy string     `json:"createdBy"`

	// AssignedStudentIDs lists the students this template has been assigned
	// to. Kept in sync by the lifecycle manager.
	AssignedStudentIDs []string `json:"assignedStudentIds,omitempty"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Version supports optimistic locking in versioned stores.
	Version int64 `json:"-"`
}

// ErrTitleRequired is returned when an activity has no title.
var ErrTitleRequired = errors.New("activity: title is required")

// Validate checks template invariants.
func (a *Activity) Validate() error {
	if a.Title == "" {
		return ErrTitleRequired
	}
	return nil
}

// IsAssignedTo reports whether the template already has an assignment for
// the given student.
func (a *Activity) IsAssignedTo(studentID string) bool {
	for _, id := range a.AssignedStudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (a *Activity) Clone() *Activity {
	cp := *a
	if a.DueDate != nil {
		d := *a.DueDate
		cp.DueDate = &d
	}
	if a.AssignedStudentIDs != nil {
		cp.AssignedStudentIDs = make([]string, len(a.AssignedStudentIDs))
		copy(cp.AssignedStudentIDs, a.AssignedStudentIDs)
	}
	return &cp
}

// Duplicate produces a fresh draft copy of the template with assignment
// state reset: no assignees, no due progress, status draft.
func (a *Activity) Duplicate(newID string, now time.Time) *Activity {
	return &Activity{
		ID:          newID,
		Title:       a.Title,
		Description: a.Description,
		Subject:     a.Subject,
		Grade:       a.Grade,
		Category:    a.Category,
		DueDate:     a.DueDate,
		CreatedBy:   a.CreatedBy,
		Status:      StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENT
// ══════════════════════════════════════════════════════════════════════════════

// Submission is one piece of work handed in for an assignment.
type Submission struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Feedback is the assignment's single teacher feedback slot. There is no
// per-submission feedback history; new feedback overwrites.
type Feedback struct {
	Content   string    `json:"content"`
	TeacherID string    `json:"teacherId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Assignment is a per-student clone of an Activity template with
// independent progress. Exactly one Assignment exists per
// (template, student) pair.
type Assignment struct {
	ID               string `json:"id"`
	ParentActivityID string `json:"parentActivityId"`
	AssignedTo       string `json:"assignedTo"`

	// Cloned template fields.
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Subject     string     `json:"subject,omitempty"`
	Grade       string     `json:"grade,omitempty"`
	Category    string     `json:"category,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedBy   string     `json:"createdBy"`

	Progress int    `json:"progress"`
	Status   Status `json:"status"`

	Submissions []Submission `json:"submissions,omitempty"`
	Feedback    *Feedback    `json:"feedback,omitempty"`

	AssignedAt  time.Time  `json:"assignedAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Version supports optimistic locking in versioned stores.
	Version int64 `json:"-"`
}

// NewAssignment deep-clones the template into an assignment for one student
// with status=assigned and progress=0.
func NewAssignment(id string, tpl *Activity, studentID string, now time.Time) *Assignment {
	var due *time.Time
	if tpl.DueDate != nil {
		d := *tpl.DueDate
		due = &d
	}
	return &Assignment{
		ID:               id,
		ParentActivityID: tpl.ID,
		AssignedTo:       studentID,
		Title:            tpl.Title,
		Description:      tpl.Description,
		Subject:          tpl.Subject,
		Grade:            tpl.Grade,
		Category:         tpl.Category,
		DueDate:          due,
		CreatedBy:        tpl.CreatedBy,
		Progress:         0,
		Status:           StatusAssigned,
		AssignedAt:       now,
		UpdatedAt:        now,
	}
}

// ApplyProgress clamps the value into [0,100], derives the status and
// stamps UpdatedAt; CompletedAt is set on the transition to completed and
// cleared if progress drops back below 100.
func (a *Assignment) ApplyProgress(progress int, now time.Time) {
	a.Progress = ClampProgress(progress)
	a.Status = StatusForProgress(a.Progress)
	a.UpdatedAt = now

	if a.Status == StatusCompleted {
		if a.CompletedAt == nil {
			t := now
			a.CompletedAt = &t
		}
	} else {
		a.CompletedAt = nil
	}
}

// AddSubmission appends a submission record and forces completion.
func (a *Assignment) AddSubmission(sub Submission, now time.Time) {
	a.Submissions = append(a.Submissions, sub)
	a.ApplyProgress(100, now)
}

// SetFeedback overwrites the single feedback slot.
func (a *Assignment) SetFeedback(content, teacherID string, now time.Time) {
	a.Feedback = &Feedback{
		Content:   content,
		TeacherID: teacherID,
		CreatedAt: now,
	}
	a.UpdatedAt = now
}

// Clone returns a deep copy.
func (a *Assignment) Clone() *Assignment {
	cp := *a
	if a.DueDate != nil {
		d := *a.DueDate
		cp.DueDate = &d
	}
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		cp.CompletedAt = &t
	}
	if a.Submissions != nil {
		cp.Submissions = make([]Submission, len(a.Submissions))
		copy(cp.Submissions, a.Submissions)
	}
	if a.Feedback != nil {
		fb := *a.Feedback
		cp.Feedback = &fb
	}
	return &cp
}

// IsCompleted reports whether the assignment reached 100 progress.
func (a *Assignment) IsCompleted() bool {
	return a.Status == StatusCompleted
}

// IsEmotional reports whether the assignment counts toward the emotional
// metric subset.
func (a *Assignment) IsEmotional() bool {
	return a.Category == "emotional"
}
