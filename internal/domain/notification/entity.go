// Package notification contains the notification model and the fixed
// routing table that fans one domain event out to its role-targeted
// recipients.
package notification

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Kind identifies what a notification is about. The values double as the
// type tags stored in the kary_realtime_notifications snapshot and as the
// keys of the routing table.
type Kind string

const (
	// KindActivityCreated - creator summary after assigning an activity.
	KindActivityCreated Kind = "activity_created"
	// KindActivityAssigned - a student received a new assignment.
	KindActivityAssigned Kind = "activity_assigned"
	// KindStudentProgressUpdated - an assignment's progress changed.
	KindStudentProgressUpdated Kind = "student_progress_updated"
	// KindActivityCompleted - a student reached 100 progress.
	KindActivityCompleted Kind = "activity_completed"
	// KindFeedbackReceived - a teacher left feedback on a submission.
	KindFeedbackReceived Kind = "feedback_received"
	// KindCaseCreated - a psychopedagogue opened a case for a student.
	KindCaseCreated Kind = "case_created"
	// KindSupportPlanCreated - an intervention plan was authored.
	KindSupportPlanCreated Kind = "support_plan_created"
	// KindEmotionalAlert - a derived alert about a student's emotional state.
	KindEmotionalAlert Kind = "emotional_alert"
	// KindProgressAlert - a derived threshold alert from the sync aggregator.
	KindProgressAlert Kind = "progress_alert"
	// KindLinkRequestCreated - a parent requested to link to a student.
	KindLinkRequestCreated Kind = "link_request_created"
	// KindLinkRequestApproved - a link request was approved.
	KindLinkRequestApproved Kind = "link_request_approved"
	// KindLinkRequestRejected - a link request was rejected.
	KindLinkRequestRejected Kind = "link_request_rejected"
	// KindLinkRequestExpired - a pending request aged out.
	KindLinkRequestExpired Kind = "link_request_expired"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Priority expresses delivery urgency. The zero value is not valid; callers
// that pass an unknown priority get PriorityMedium.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid reports whether the priority is one of the four levels.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Normalize returns the priority itself when valid and PriorityMedium
// otherwise. Out-of-domain priorities default rather than fail.
func (p Priority) Normalize() Priority {
	if p.IsValid() {
		return p
	}
	return PriorityMedium
}

// ══════════════════════════════════════════════════════════════════════════════
// RECIPIENT
// ══════════════════════════════════════════════════════════════════════════════

// RecipientRole tags a recipient with the dashboard role the notification
// targets.
type RecipientRole string

const (
	RecipientStudent         RecipientRole = "student"
	RecipientTeacher         RecipientRole = "teacher"
	RecipientPsychopedagogue RecipientRole = "psychopedagogue"
	RecipientParent          RecipientRole = "parent"
	RecipientDirective       RecipientRole = "directive"
)

// legacyPrefix is the prefix this role uses in the scoped legacy key form.
func (r RecipientRole) legacyPrefix() string {
	if r == RecipientPsychopedagogue {
		return "psycho"
	}
	return string(r)
}

// Recipient is a typed recipient descriptor. It replaces the legacy
// string-pattern keys ("teacher-{studentId}") while still being able to
// render them for snapshot compatibility.
//
// Two shapes exist:
//   - direct: UserID set, the notification goes to that account;
//   - student-scoped: ScopeStudentID set, the notification goes to whoever
//     holds Role for that student ("the teacher of s1").
type Recipient struct {
	Role           RecipientRole
	UserID         string
	ScopeStudentID string
}

// DirectRecipient addresses one concrete account.
func DirectRecipient(role RecipientRole, userID string) Recipient {
	return Recipient{Role: role, UserID: userID}
}

// ScopedRecipient addresses the holder of role for a student, resolved at
// read time.
func ScopedRecipient(role RecipientRole, studentID string) Recipient {
	return Recipient{Role: role, ScopeStudentID: studentID}
}

// IsZero reports whether the recipient is unaddressed.
func (r Recipient) IsZero() bool {
	return r.UserID == "" && r.ScopeStudentID == ""
}

// Key renders the storage key under which the recipient's notifications are
// indexed. Direct recipients key by account ID; scoped recipients keep the
// legacy "<role>-<studentId>" wire form.
func (r Recipient) Key() string {
	if r.UserID != "" {
		return r.UserID
	}
	return fmt.Sprintf("%s-%s", r.Role.legacyPrefix(), r.ScopeStudentID)
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Data carries the structured payload attached to a notification. Only the
// fields relevant to the kind are set.
type Data struct {
	StudentID    string `json:"studentId,omitempty"`
	StudentName  string `json:"studentName,omitempty"`
	ActivityID   string `json:"activityId,omitempty"`
	AssignmentID string `json:"assignmentId,omitempty"`
	CaseID       string `json:"caseId,omitempty"`
	PlanID       string `json:"planId,omitempty"`
	RequestID    string `json:"requestId,omitempty"`
	Progress     int    `json:"progress,omitempty"`
	AlertType    string `json:"alertType,omitempty"`
	Relationship string `json:"relationship,omitempty"`
	Extra        string `json:"extra,omitempty"`
}

// Notification is a role-targeted message derived from a domain event.
// JSON tags match the legacy kary_realtime_notifications snapshot: the
// recipient key is stored under userId and the role hint under
// recipientType.
type Notification struct {
	ID            string        `json:"id"`
	RecipientKey  string        `json:"userId"`
	RecipientRole RecipientRole `json:"recipientType,omitempty"`
	Type          Kind          `json:"type"`
	Title         string        `json:"title"`
	Message       string        `json:"message"`
	Data          Data          `json:"data"`
	Priority      Priority      `json:"priority"`
	Read          bool          `json:"read"`
	CreatedAt     time.Time     `json:"createdAt"`
	ReadAt        *time.Time    `json:"readAt,omitempty"`

	// Version supports optimistic locking in versioned stores.
	Version int64 `json:"-"`
}

// MarkRead transitions the notification to read exactly once. ReadAt is set
// on the first call and never cleared; later calls are no-ops.
func (n *Notification) MarkRead(now time.Time) bool {
	if n.Read {
		return false
	}
	n.Read = true
	t := now
	n.ReadAt = &t
	return true
}

// Clone returns a deep copy.
func (n *Notification) Clone() *Notification {
	cp := *n
	if n.ReadAt != nil {
		t := *n.ReadAt
		cp.ReadAt = &t
	}
	return &cp
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS
// ══════════════════════════════════════════════════════════════════════════════

// Stats summarizes a recipient's notifications.
type Stats struct {
	Total      int              `json:"total"`
	Unread     int              `json:"unread"`
	Read       int              `json:"read"`
	ByPriority map[Priority]int `json:"byPriority"`
	ByType     map[Kind]int     `json:"byType"`
}

// ComputeStats builds the summary in a single pass.
func ComputeStats(items []*Notification) Stats {
	stats := Stats{
		ByPriority: make(map[Priority]int),
		ByType:     make(map[Kind]int),
	}
	for _, n := range items {
		stats.Total++
		if n.Read {
			stats.Read++
		} else {
			stats.Unread++
		}
		stats.ByPriority[n.Priority]++
		stats.ByType[n.Type]++
	}
	return stats
}
