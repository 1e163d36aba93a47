// Package lifecycle implements the activity lifecycle manager: template
// authoring, per-student assignment cloning, progress, submissions,
// feedback, deletion and duplication.
package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/kary-hub/kary-sync-engine/internal/domain/activity"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// Service manages activity templates and their per-student assignments.
type Service struct {
	activities activity.Repository
	publisher  shared.EventPublisher
	logger     *slog.Logger
}

// NewService creates a new lifecycle service.
func NewService(activities activity.Repository, publisher shared.EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		activities: activities,
		publisher:  publisher,
		logger:     logger.With("service", "lifecycle"),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TEMPLATES
// ══════════════════════════════════════════════════════════════════════════════

// CreateActivityInput carries the fields of a new activity template.
type CreateActivityInput struct {
	Title       string
	Description string
	Subject     string
	Grade       string
	Category    string
	DueDate     *time.Time
	CreatedBy   string
}

// CreateActivity stores a new template. No assignments exist until
// AssignToStudents is called.
func (s *Service) CreateActivity(ctx context.Context, in CreateActivityInput) (*activity.Activity, error) {
	now := time.Now().UTC()
	a := &activity.Activity{
		ID:          shared.NewID("activity"),
		Title:       in.Title,
		Description: in.Description,
		Subject:     in.Subject,
		Grade:       in.Grade,
		Category:    in.Category,
		DueDate:     in.DueDate,
		CreatedBy:   in.CreatedBy,
		Status:      activity.StatusAssigned,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := a.Validate(); err != nil {
		return nil, shared.WrapError("activity", "CreateActivity", shared.ErrValidation, "invalid activity", err)
	}

	if err := s.activities.CreateTemplate(ctx, a); err != nil {
		return nil, err
	}

	s.publish(shared.NewActivityCreatedEvent(a.ID, a.Title, a.Subject, a.CreatedBy))
	s.logger.Info("activity created", "activity_id", a.ID, "created_by", a.CreatedBy)
	return a, nil
}

// GetActivity returns a template by ID.
func (s *Service) GetActivity(ctx context.Context, id string) (*activity.Activity, error) {
	return s.activities.GetTemplate(ctx, id)
}

// ListActivities returns every template matching the filter.
func (s *Service) ListActivities(ctx context.Context, filter activity.TemplateFilter) ([]*activity.Activity, error) {
	return s.activities.ListTemplates(ctx, filter)
}

// AssignToStudents clones the template into one independent assignment per
// student, each starting at status=assigned, progress=0. Students already
// holding an assignment for this template are skipped.
func (s *Service) AssignToStudents(ctx context.Context, activityID string, studentIDs []string) ([]*activity.Assignment, error) {
	if len(studentIDs) == 0 {
		return nil, shared.ErrEmptyAssigneeList
	}

	tpl, err := s.activities.GetTemplate(ctx, activityID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var created []*activity.Assignment
	for _, studentID := range studentIDs {
		if tpl.IsAssignedTo(studentID) {
			continue
		}

		a := activity.NewAssignment(shared.NewID("assignment"), tpl, studentID, now)
		if err := s.activities.CreateAssignment(ctx, a); err != nil {
			return created, err
		}
		tpl.AssignedStudentIDs = append(tpl.AssignedStudentIDs, studentID)
		created = append(created, a)

		s.publish(shared.NewActivityAssignedEvent(a.ID, tpl.ID, tpl.Title, studentID, tpl.CreatedBy))
	}

	if len(created) > 0 {
		tpl.Status = activity.StatusAssigned
		tpl.UpdatedAt = now
		if err := s.activities.UpdateTemplate(ctx, tpl); err != nil {
			return created, err
		}
	}

	s.logger.Info("activity assigned",
		"activity_id", tpl.ID,
		"assignments", len(created),
	)
	return created, nil
}

// Delete removes a template and all assignments cloned from it. Only the
// owning teacher may delete.
func (s *Service) Delete(ctx context.Context, activityID, requestedBy string) error {
	tpl, err := s.activities.GetTemplate(ctx, activityID)
	if err != nil {
		return err
	}
	if tpl.CreatedBy != requestedBy {
		return shared.ErrNotActivityOwner
	}

	if err := s.activities.DeleteAssignmentsByTemplate(ctx, activityID); err != nil {
		return err
	}
	if err := s.activities.DeleteTemplate(ctx, activityID); err != nil {
		return err
	}

	s.publish(shared.NewActivityDeletedEvent(activityID, requestedBy))
	s.logger.Info("activity deleted", "activity_id", activityID, "deleted_by", requestedBy)
	return nil
}

// Duplicate copies a template into a fresh draft with assignment state
// reset. Only the owning teacher may duplicate.
func (s *Service) Duplicate(ctx context.Context, activityID, requestedBy string) (*activity.Activity, error) {
	tpl, err := s.activities.GetTemplate(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if tpl.CreatedBy != requestedBy {
		return nil, shared.ErrNotActivityOwner
	}

	draft := tpl.Duplicate(shared.NewID("activity"), time.Now().UTC())
	if err := s.activities.CreateTemplate(ctx, draft); err != nil {
		return nil, err
	}

	s.publish(shared.NewActivityDuplicatedEvent(tpl.ID, draft.ID, requestedBy))
	return draft, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENTS
// ══════════════════════════════════════════════════════════════════════════════

// GetAssignment returns an assignment by ID.
func (s *Service) GetAssignment(ctx context.Context, id string) (*activity.Assignment, error) {
	return s.activities.GetAssignment(ctx, id)
}

// ListAssignments returns every assignment matching the filter.
func (s *Service) ListAssignments(ctx context.Context, filter activity.AssignmentFilter) ([]*activity.Assignment, error) {
	return s.activities.ListAssignments(ctx, filter)
}

// UpdateProgress sets an assignment's progress. The value is clamped into
// [0, 100] rather than rejected; status is derived from the clamped value.
// The assignment is located by its (template, student) pair.
func (s *Service) UpdateProgress(ctx context.Context, activityID, studentID string, progress int) (*activity.Assignment, error) {
	a, err := s.activities.FindAssignment(ctx, activityID, studentID)
	if err != nil {
		return nil, err
	}

	a.ApplyProgress(progress, time.Now().UTC())
	if err := s.activities.UpdateAssignment(ctx, a); err != nil {
		return nil, err
	}

	s.publish(shared.NewActivityProgressUpdatedEvent(a.ID, a.ParentActivityID, a.AssignedTo, a.Progress, string(a.Status)))
	return a, nil
}

// Submit appends a submission to the assignment and forces completion.
func (s *Service) Submit(ctx context.Context, assignmentID, studentID, content string) (*activity.Assignment, error) {
	if content == "" {
		return nil, shared.ErrSubmissionEmpty
	}

	a, err := s.activities.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.AssignedTo != studentID {
		return nil, shared.NewDomainError("activity", "Submit", shared.ErrUnauthorized, "assignment belongs to another student")
	}

	now := time.Now().UTC()
	sub := activity.Submission{
		ID:          shared.NewID("submission"),
		Content:     content,
		SubmittedAt: now,
	}
	a.AddSubmission(sub, now)

	if err := s.activities.UpdateAssignment(ctx, a); err != nil {
		return nil, err
	}

	s.publish(shared.NewActivitySubmittedEvent(a.ID, a.ParentActivityID, a.AssignedTo, sub.ID))
	s.publish(shared.NewActivityProgressUpdatedEvent(a.ID, a.ParentActivityID, a.AssignedTo, a.Progress, string(a.Status)))
	return a, nil
}

// AddFeedback overwrites the assignment's single feedback slot. Only the
// teacher who owns the parent template may leave feedback.
func (s *Service) AddFeedback(ctx context.Context, assignmentID, teacherID, content string) (*activity.Assignment, error) {
	if content == "" {
		return nil, shared.ErrFeedbackContentEmpty
	}

	a, err := s.activities.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.CreatedBy != teacherID {
		return nil, shared.ErrNotActivityOwner
	}

	a.SetFeedback(content, teacherID, time.Now().UTC())
	if err := s.activities.UpdateAssignment(ctx, a); err != nil {
		return nil, err
	}

	s.publish(shared.NewActivityFeedbackAddedEvent(a.ID, a.AssignedTo, teacherID))
	return a, nil
}

func (s *Service) publish(event shared.Event) {
	if err := s.publisher.Publish(event); err != nil {
		s.logger.Error("event publish failed",
			"event_type", event.EventType().String(),
			"aggregate_id", event.AggregateID(),
			"error", err,
		)
	}
}
