package shared

import (
	"time"
)

// EventType represents the type of domain event. The string values double as
// event bus topics and match the type tags stored in the legacy notification
// snapshot, so they must not be renamed casually.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents one mutation applied through the entity store or one
// of the lifecycle services.
const (
	// Person events
	EventStudentCreated EventType = "student_created"
	EventStudentUpdated EventType = "student_updated"
	EventPersonCreated  EventType = "person_created"
	EventPersonUpdated  EventType = "person_updated"

	// Activity template events
	EventActivityCreated    EventType = "activity_created"
	EventActivityUpdated    EventType = "activity_updated"
	EventActivityDeleted    EventType = "activity_deleted"
	EventActivityDuplicated EventType = "activity_duplicated"

	// Assignment lifecycle events
	EventActivityAssigned        EventType = "activity_assigned"
	EventActivityProgressUpdated EventType = "activity_progress_updated"
	EventActivitySubmitted       EventType = "activity_submitted"
	EventActivityFeedbackAdded   EventType = "activity_feedback_added"

	// Case and support plan events
	EventCaseCreated        EventType = "case_created"
	EventCaseUpdated        EventType = "case_updated"
	EventSupportPlanCreated EventType = "support_plan_created"
	EventSupportPlanUpdated EventType = "support_plan_updated"

	// Notification events
	EventNotificationCreated EventType = "notification_created"
	EventNotificationRead    EventType = "notification_read"

	// Link request workflow events
	EventLinkRequestCreated  EventType = "link_request_created"
	EventLinkRequestApproved EventType = "link_request_approved"
	EventLinkRequestRejected EventType = "link_request_rejected"
	EventLinkRequestExpired  EventType = "link_request_expired"

	// Cross-role sync events
	EventParentViewSynced EventType = "parent_view_synced"
	EventProgressAlert    EventType = "progress_alert"
)

// String returns the topic form of the event type.
func (t EventType) String() string {
	return string(t)
}

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the entity that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// EventPublisher publishes domain events to subscribers. The messaging bus
// implements it; services depend on this interface so tests can capture
// published events.
type EventPublisher interface {
	Publish(event Event) error
}

// StudentScoped is implemented by events that concern exactly one student.
// The event bus delivers such events to student-scoped subscribers in
// addition to the topic subscribers.
type StudentScoped interface {
	StudentID() string
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		ID:          NewID("evt"),
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Person Events
// ═══════════════════════════════════════════════════════════════════════════

// PersonCreatedEvent is emitted when any role-tagged person record is created.
// Students additionally get the dedicated EventStudentCreated topic.
type PersonCreatedEvent struct {
	BaseEvent
	PersonID string `json:"person_id"`
	Role     string `json:"role"`
	Name     string `json:"name"`
}

// Payload implements Event.
func (e PersonCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"person_id": e.PersonID,
		"role":      e.Role,
		"name":      e.Name,
	}
}

// NewPersonCreatedEvent creates a new PersonCreatedEvent on the topic
// matching the person's role.
func NewPersonCreatedEvent(eventType EventType, personID, role, name string) PersonCreatedEvent {
	return PersonCreatedEvent{
		BaseEvent: NewBaseEvent(eventType, personID),
		PersonID:  personID,
		Role:      role,
		Name:      name,
	}
}

// PersonUpdatedEvent is emitted when a person record is patched.
type PersonUpdatedEvent struct {
	BaseEvent
	PersonID      string   `json:"person_id"`
	Role          string   `json:"role"`
	ChangedFields []string `json:"changed_fields"`
}

// Payload implements Event.
func (e PersonUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"person_id":      e.PersonID,
		"role":           e.Role,
		"changed_fields": e.ChangedFields,
	}
}

// NewPersonUpdatedEvent creates a new PersonUpdatedEvent.
func NewPersonUpdatedEvent(eventType EventType, personID, role string, changed []string) PersonUpdatedEvent {
	return PersonUpdatedEvent{
		BaseEvent:     NewBaseEvent(eventType, personID),
		PersonID:      personID,
		Role:          role,
		ChangedFields: changed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Activity Events
// ═══════════════════════════════════════════════════════════════════════════

// ActivityCreatedEvent is emitted when a teacher stores a new activity
// template. No assignments exist yet at this point.
type ActivityCreatedEvent struct {
	BaseEvent
	ActivityID string `json:"activity_id"`
	Title      string `json:"title"`
	Subject    string `json:"subject"`
	CreatedBy  string `json:"created_by"`
}

// Payload implements Event.
func (e ActivityCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"activity_id": e.ActivityID,
		"title":       e.Title,
		"subject":     e.Subject,
		"created_by":  e.CreatedBy,
	}
}

// NewActivityCreatedEvent creates a new ActivityCreatedEvent.
func NewActivityCreatedEvent(activityID, title, subject, createdBy string) ActivityCreatedEvent {
	return ActivityCreatedEvent{
		BaseEvent:  NewBaseEvent(EventActivityCreated, activityID),
		ActivityID: activityID,
		Title:      title,
		Subject:    subject,
		CreatedBy:  createdBy,
	}
}

// ActivityDeletedEvent is emitted when the owning teacher deletes a
// template; its assignments are removed with it.
type ActivityDeletedEvent struct {
	BaseEvent
	ActivityID string `json:"activity_id"`
	DeletedBy  string `json:"deleted_by"`
}

// Payload implements Event.
func (e ActivityDeletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"activity_id": e.ActivityID,
		"deleted_by":  e.DeletedBy,
	}
}

// NewActivityDeletedEvent creates a new ActivityDeletedEvent.
func NewActivityDeletedEvent(activityID, deletedBy string) ActivityDeletedEvent {
	return ActivityDeletedEvent{
		BaseEvent:  NewBaseEvent(EventActivityDeleted, activityID),
		ActivityID: activityID,
		DeletedBy:  deletedBy,
	}
}

// ActivityDuplicatedEvent is emitted when a template is copied into a fresh
// draft.
type ActivityDuplicatedEvent struct {
	BaseEvent
	SourceActivityID string `json:"source_activity_id"`
	NewActivityID    string `json:"new_activity_id"`
	DuplicatedBy     string `json:"duplicated_by"`
}

// Payload implements Event.
func (e ActivityDuplicatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"source_activity_id": e.SourceActivityID,
		"new_activity_id":    e.NewActivityID,
		"duplicated_by":      e.DuplicatedBy,
	}
}

// NewActivityDuplicatedEvent creates a new ActivityDuplicatedEvent.
func NewActivityDuplicatedEvent(sourceID, newID, duplicatedBy string) ActivityDuplicatedEvent {
	return ActivityDuplicatedEvent{
		BaseEvent:        NewBaseEvent(EventActivityDuplicated, newID),
		SourceActivityID: sourceID,
		NewActivityID:    newID,
		DuplicatedBy:     duplicatedBy,
	}
}

// ActivityAssignedEvent is emitted once per assignment created from a
// template, carrying the student the clone was assigned to.
type ActivityAssignedEvent struct {
	BaseEvent
	AssignmentID     string `json:"assignment_id"`
	ParentActivityID string `json:"parent_activity_id"`
	Title            string `json:"title"`
	AssignedTo       string `json:"assigned_to"`
	AssignedBy       string `json:"assigned_by"`
}

// Payload implements Event.
func (e ActivityAssignedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"assignment_id":      e.AssignmentID,
		"parent_activity_id": e.ParentActivityID,
		"title":              e.Title,
		"assigned_to":        e.AssignedTo,
		"assigned_by":        e.AssignedBy,
	}
}

// StudentID implements StudentScoped.
func (e ActivityAssignedEvent) StudentID() string {
	return e.AssignedTo
}

// NewActivityAssignedEvent creates a new ActivityAssignedEvent.
func NewActivityAssignedEvent(assignmentID, parentActivityID, title, assignedTo, assignedBy string) ActivityAssignedEvent {
	return ActivityAssignedEvent{
		BaseEvent:        NewBaseEvent(EventActivityAssigned, assignmentID),
		AssignmentID:     assignmentID,
		ParentActivityID: parentActivityID,
		Title:            title,
		AssignedTo:       assignedTo,
		AssignedBy:       assignedBy,
	}
}

// ActivityProgressUpdatedEvent is emitted whenever an assignment's progress
// changes, including the forced completion performed by a submission.
type ActivityProgressUpdatedEvent struct {
	BaseEvent
	AssignmentID     string `json:"assignment_id"`
	ParentActivityID string `json:"parent_activity_id"`
	Student          string `json:"student_id"`
	Progress         int    `json:"progress"`
	Status           string `json:"status"`
	Completed        bool   `json:"completed"`
}

// Payload implements Event.
func (e ActivityProgressUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"assignment_id":      e.AssignmentID,
		"parent_activity_id": e.ParentActivityID,
		"student_id":         e.Student,
		"progress":           e.Progress,
		"status":             e.Status,
		"completed":          e.Completed,
	}
}

// StudentID implements StudentScoped.
func (e ActivityProgressUpdatedEvent) StudentID() string {
	return e.Student
}

// NewActivityProgressUpdatedEvent creates a new ActivityProgressUpdatedEvent.
func NewActivityProgressUpdatedEvent(assignmentID, parentActivityID, studentID string, progress int, status string) ActivityProgressUpdatedEvent {
	return ActivityProgressUpdatedEvent{
		BaseEvent:        NewBaseEvent(EventActivityProgressUpdated, assignmentID),
		AssignmentID:     assignmentID,
		ParentActivityID: parentActivityID,
		Student:          studentID,
		Progress:         progress,
		Status:           status,
		Completed:        progress >= 100,
	}
}

// ActivitySubmittedEvent is emitted when a student submits work for an
// assignment.
type ActivitySubmittedEvent struct {
	BaseEvent
	AssignmentID     string `json:"assignment_id"`
	ParentActivityID string `json:"parent_activity_id"`
	Student          string `json:"student_id"`
	SubmissionID     string `json:"submission_id"`
}

// Payload implements Event.
func (e ActivitySubmittedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"assignment_id":      e.AssignmentID,
		"parent_activity_id": e.ParentActivityID,
		"student_id":         e.Student,
		"submission_id":      e.SubmissionID,
	}
}

// StudentID implements StudentScoped.
func (e ActivitySubmittedEvent) StudentID() string {
	return e.Student
}

// NewActivitySubmittedEvent creates a new ActivitySubmittedEvent.
func NewActivitySubmittedEvent(assignmentID, parentActivityID, studentID, submissionID string) ActivitySubmittedEvent {
	return ActivitySubmittedEvent{
		BaseEvent:        NewBaseEvent(EventActivitySubmitted, assignmentID),
		AssignmentID:     assignmentID,
		ParentActivityID: parentActivityID,
		Student:          studentID,
		SubmissionID:     submissionID,
	}
}

// ActivityFeedbackAddedEvent is emitted when a teacher leaves feedback on an
// assignment. The assignment carries a single feedback slot, so repeated
// feedback overwrites.
type ActivityFeedbackAddedEvent struct {
	BaseEvent
	AssignmentID string `json:"assignment_id"`
	Student      string `json:"student_id"`
	TeacherID    string `json:"teacher_id"`
}

// Payload implements Event.
func (e ActivityFeedbackAddedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"assignment_id": e.AssignmentID,
		"student_id":    e.Student,
		"teacher_id":    e.TeacherID,
	}
}

// StudentID implements StudentScoped.
func (e ActivityFeedbackAddedEvent) StudentID() string {
	return e.Student
}

// NewActivityFeedbackAddedEvent creates a new ActivityFeedbackAddedEvent.
func NewActivityFeedbackAddedEvent(assignmentID, studentID, teacherID string) ActivityFeedbackAddedEvent {
	return ActivityFeedbackAddedEvent{
		BaseEvent:    NewBaseEvent(EventActivityFeedbackAdded, assignmentID),
		AssignmentID: assignmentID,
		Student:      studentID,
		TeacherID:    teacherID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Case / Support Plan Events
// ═══════════════════════════════════════════════════════════════════════════

// CaseCreatedEvent is emitted when a psychopedagogue opens a tracking case
// for a student.
type CaseCreatedEvent struct {
	BaseEvent
	CaseID            string `json:"case_id"`
	Student           string `json:"student_id"`
	PsychopedagogueID string `json:"psychopedagogue_id"`
	Title             string `json:"title"`
}

// Payload implements Event.
func (e CaseCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"case_id":            e.CaseID,
		"student_id":         e.Student,
		"psychopedagogue_id": e.PsychopedagogueID,
		"title":              e.Title,
	}
}

// StudentID implements StudentScoped.
func (e CaseCreatedEvent) StudentID() string {
	return e.Student
}

// NewCaseCreatedEvent creates a new CaseCreatedEvent.
func NewCaseCreatedEvent(caseID, studentID, psychopedagogueID, title string) CaseCreatedEvent {
	return CaseCreatedEvent{
		BaseEvent:         NewBaseEvent(EventCaseCreated, caseID),
		CaseID:            caseID,
		Student:           studentID,
		PsychopedagogueID: psychopedagogueID,
		Title:             title,
	}
}

// CaseUpdatedEvent is emitted when a case's status or details change.
type CaseUpdatedEvent struct {
	BaseEvent
	CaseID  string `json:"case_id"`
	Student string `json:"student_id"`
	Status  string `json:"status"`
}

// Payload implements Event.
func (e CaseUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"case_id":    e.CaseID,
		"student_id": e.Student,
		"status":     e.Status,
	}
}

// StudentID implements StudentScoped.
func (e CaseUpdatedEvent) StudentID() string {
	return e.Student
}

// NewCaseUpdatedEvent creates a new CaseUpdatedEvent.
func NewCaseUpdatedEvent(caseID, studentID, status string) CaseUpdatedEvent {
	return CaseUpdatedEvent{
		BaseEvent: NewBaseEvent(EventCaseUpdated, caseID),
		CaseID:    caseID,
		Student:   studentID,
		Status:    status,
	}
}

// SupportPlanCreatedEvent is emitted when an intervention plan is authored
// for a student.
type SupportPlanCreatedEvent struct {
	BaseEvent
	PlanID   string `json:"plan_id"`
	Student  string `json:"student_id"`
	AuthorID string `json:"author_id"`
}

// Payload implements Event.
func (e SupportPlanCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"plan_id":    e.PlanID,
		"student_id": e.Student,
		"author_id":  e.AuthorID,
	}
}

// StudentID implements StudentScoped.
func (e SupportPlanCreatedEvent) StudentID() string {
	return e.Student
}

// NewSupportPlanCreatedEvent creates a new SupportPlanCreatedEvent.
func NewSupportPlanCreatedEvent(planID, studentID, authorID string) SupportPlanCreatedEvent {
	return SupportPlanCreatedEvent{
		BaseEvent: NewBaseEvent(EventSupportPlanCreated, planID),
		PlanID:    planID,
		Student:   studentID,
		AuthorID:  authorID,
	}
}

// SupportPlanUpdatedEvent is emitted when a plan's status or objectives
// change.
type SupportPlanUpdatedEvent struct {
	BaseEvent
	PlanID  string `json:"plan_id"`
	Student string `json:"student_id"`
	Status  string `json:"status"`
}

// Payload implements Event.
func (e SupportPlanUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"plan_id":    e.PlanID,
		"student_id": e.Student,
		"status":     e.Status,
	}
}

// StudentID implements StudentScoped.
func (e SupportPlanUpdatedEvent) StudentID() string {
	return e.Student
}

// NewSupportPlanUpdatedEvent creates a new SupportPlanUpdatedEvent.
func NewSupportPlanUpdatedEvent(planID, studentID, status string) SupportPlanUpdatedEvent {
	return SupportPlanUpdatedEvent{
		BaseEvent: NewBaseEvent(EventSupportPlanUpdated, planID),
		PlanID:    planID,
		Student:   studentID,
		Status:    status,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Notification Events
// ═══════════════════════════════════════════════════════════════════════════

// NotificationCreatedEvent is emitted after a notification is persisted.
// The fan-out engine publishes it so downstream views (sync aggregator,
// unread counters) can refresh without polling.
type NotificationCreatedEvent struct {
	BaseEvent
	NotificationID string `json:"notification_id"`
	RecipientKey   string `json:"recipient_key"`
	Kind           string `json:"kind"`
	Priority       string `json:"priority"`
}

// Payload implements Event.
func (e NotificationCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"notification_id": e.NotificationID,
		"recipient_key":   e.RecipientKey,
		"kind":            e.Kind,
		"priority":        e.Priority,
	}
}

// NewNotificationCreatedEvent creates a new NotificationCreatedEvent.
func NewNotificationCreatedEvent(notificationID, recipientKey, kind, priority string) NotificationCreatedEvent {
	return NotificationCreatedEvent{
		BaseEvent:      NewBaseEvent(EventNotificationCreated, notificationID),
		NotificationID: notificationID,
		RecipientKey:   recipientKey,
		Kind:           kind,
		Priority:       priority,
	}
}

// NotificationReadEvent is emitted when a recipient marks a notification as
// read for the first time.
type NotificationReadEvent struct {
	BaseEvent
	NotificationID string `json:"notification_id"`
	RecipientKey   string `json:"recipient_key"`
}

// Payload implements Event.
func (e NotificationReadEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"notification_id": e.NotificationID,
		"recipient_key":   e.RecipientKey,
	}
}

// NewNotificationReadEvent creates a new NotificationReadEvent.
func NewNotificationReadEvent(notificationID, recipientKey string) NotificationReadEvent {
	return NotificationReadEvent{
		BaseEvent:      NewBaseEvent(EventNotificationRead, notificationID),
		NotificationID: notificationID,
		RecipientKey:   recipientKey,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Link Request Events
// ═══════════════════════════════════════════════════════════════════════════

// LinkRequestEvent covers every transition of the link request state
// machine; Type distinguishes created/approved/rejected/expired.
type LinkRequestEvent struct {
	BaseEvent
	RequestID    string `json:"request_id"`
	ParentID     string `json:"parent_id"`
	Student      string `json:"student_id"`
	Status       string `json:"status"`
	ResolvedBy   string `json:"resolved_by,omitempty"`
	RejectReason string `json:"reject_reason,omitempty"`
}

// Payload implements Event.
func (e LinkRequestEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"request_id":    e.RequestID,
		"parent_id":     e.ParentID,
		"student_id":    e.Student,
		"status":        e.Status,
		"resolved_by":   e.ResolvedBy,
		"reject_reason": e.RejectReason,
	}
}

// StudentID implements StudentScoped.
func (e LinkRequestEvent) StudentID() string {
	return e.Student
}

// NewLinkRequestEvent creates a link request transition event.
func NewLinkRequestEvent(eventType EventType, requestID, parentID, studentID, status string) LinkRequestEvent {
	return LinkRequestEvent{
		BaseEvent: NewBaseEvent(eventType, requestID),
		RequestID: requestID,
		ParentID:  parentID,
		Student:   studentID,
		Status:    status,
	}
}

// WithResolution records who resolved the request and why.
func (e LinkRequestEvent) WithResolution(resolvedBy, reason string) LinkRequestEvent {
	e.ResolvedBy = resolvedBy
	e.RejectReason = reason
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Sync Events
// ═══════════════════════════════════════════════════════════════════════════

// ProgressAlertEvent is emitted when the sync aggregator detects a threshold
// condition on a student's derived metrics.
type ProgressAlertEvent struct {
	BaseEvent
	Student   string `json:"student_id"`
	AlertType string `json:"alert_type"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	Value     int    `json:"value"`
}

// Payload implements Event.
func (e ProgressAlertEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.Student,
		"alert_type": e.AlertType,
		"severity":   e.Severity,
		"message":    e.Message,
		"value":      e.Value,
	}
}

// StudentID implements StudentScoped.
func (e ProgressAlertEvent) StudentID() string {
	return e.Student
}

// NewProgressAlertEvent creates a new ProgressAlertEvent.
func NewProgressAlertEvent(studentID, alertType, severity, message string, value int) ProgressAlertEvent {
	return ProgressAlertEvent{
		BaseEvent: NewBaseEvent(EventProgressAlert, studentID),
		Student:   studentID,
		AlertType: alertType,
		Severity:  severity,
		Message:   message,
		Value:     value,
	}
}

// ParentViewSyncedEvent is emitted when the aggregator republishes a fresh
// consolidated view for a parent.
type ParentViewSyncedEvent struct {
	BaseEvent
	ParentID   string `json:"parent_id"`
	Student    string `json:"student_id"`
	AlertCount int    `json:"alert_count"`
	Overall    int    `json:"overall"`
}

// Payload implements Event.
func (e ParentViewSyncedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"parent_id":   e.ParentID,
		"student_id":  e.Student,
		"alert_count": e.AlertCount,
		"overall":     e.Overall,
	}
}

// StudentID implements StudentScoped.
func (e ParentViewSyncedEvent) StudentID() string {
	return e.Student
}

// NewParentViewSyncedEvent creates a new ParentViewSyncedEvent.
func NewParentViewSyncedEvent(parentID, studentID string, alertCount, overall int) ParentViewSyncedEvent {
	return ParentViewSyncedEvent{
		BaseEvent:  NewBaseEvent(EventParentViewSynced, parentID),
		ParentID:   parentID,
		Student:    studentID,
		AlertCount: alertCount,
		Overall:    overall,
	}
}
