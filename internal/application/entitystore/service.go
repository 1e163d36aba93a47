// Package entitystore is the facade owning the canonical person, case and
// support plan records. Every mutation validates cross-role references,
// persists through the repositories and publishes exactly one typed event
// after the write succeeds.
package entitystore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kary-hub/kary-sync-engine/internal/domain/casefile"
	"github.com/kary-hub/kary-sync-engine/internal/domain/person"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// Service owns the canonical records. Construct one per process and inject
// it into consumers; there is no package-level instance.
type Service struct {
	persons   person.Repository
	casefiles casefile.Repository
	publisher shared.EventPublisher
	logger    *slog.Logger
}

// NewService creates a new entity store service.
func NewService(
	persons person.Repository,
	casefiles casefile.Repository,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		persons:   persons,
		casefiles: casefiles,
		publisher: publisher,
		logger:    logger.With("service", "entitystore"),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PERSONS
// ══════════════════════════════════════════════════════════════════════════════

// CreatePersonInput carries the fields of a new person record.
type CreatePersonInput struct {
	Role              person.Role
	Name              string
	Email             string
	TeacherID         string
	PsychopedagogueID string
	ParentID          string
	Grade             string
}

// CreatePerson stores a new role-tagged record. Students' cross-references
// must resolve to existing records of the matching role.
func (s *Service) CreatePerson(ctx context.Context, in CreatePersonInput) (*person.Person, error) {
	now := time.Now().UTC()
	p := &person.Person{
		ID:                shared.NewID(in.Role.IDPrefix()),
		Role:              in.Role,
		Name:              in.Name,
		Email:             in.Email,
		TeacherID:         in.TeacherID,
		PsychopedagogueID: in.PsychopedagogueID,
		ParentID:          in.ParentID,
		Grade:             in.Grade,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := p.Validate(); err != nil {
		return nil, shared.WrapError("person", "CreatePerson", shared.ErrValidation, "invalid person", err)
	}
	if err := s.checkReferences(ctx, p); err != nil {
		return nil, err
	}

	if err := s.persons.Create(ctx, p); err != nil {
		return nil, err
	}

	s.publishPersonCreated(p)
	s.logger.Info("person created", "person_id", p.ID, "role", p.Role.String())
	return p, nil
}

// GetPerson returns one record by ID.
func (s *Service) GetPerson(ctx context.Context, id string) (*person.Person, error) {
	return s.persons.GetByID(ctx, id)
}

// ListPersons returns every record matching the filter.
func (s *Service) ListPersons(ctx context.Context, filter person.Filter) ([]*person.Person, error) {
	return s.persons.List(ctx, filter)
}

// CountPersons returns the number of matching records.
func (s *Service) CountPersons(ctx context.Context, filter person.Filter) (int, error) {
	return s.persons.Count(ctx, filter)
}

// PersonPatch carries the mutable fields of an update. Nil pointers leave
// the stored value untouched; an empty string clears a reference.
type PersonPatch struct {
	Name              *string
	Email             *string
	TeacherID         *string
	PsychopedagogueID *string
	ParentID          *string
	Grade             *string
}

// UpdatePerson merges the patch into the stored record, re-validates the
// cross-role references and persists.
func (s *Service) UpdatePerson(ctx context.Context, id string, patch PersonPatch) (*person.Person, error) {
	p, err := s.persons.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var changed []string
	apply := func(field string, dst *string, src *string) {
		if src != nil && *dst != *src {
			*dst = *src
			changed = append(changed, field)
		}
	}
	apply("name", &p.Name, patch.Name)
	apply("email", &p.Email, patch.Email)
	apply("teacherId", &p.TeacherID, patch.TeacherID)
	apply("psychopedagogueId", &p.PsychopedagogueID, patch.PsychopedagogueID)
	apply("parentId", &p.ParentID, patch.ParentID)
	apply("grade", &p.Grade, patch.Grade)

	if len(changed) == 0 {
		return p, nil
	}

	if err := p.Validate(); err != nil {
		return nil, shared.WrapError("person", "UpdatePerson", shared.ErrValidation, "invalid person", err)
	}
	if err := s.checkReferences(ctx, p); err != nil {
		return nil, err
	}

	p.UpdatedAt = time.Now().UTC()
	if err := s.persons.Update(ctx, p); err != nil {
		return nil, err
	}

	eventType := shared.EventPersonUpdated
	if p.Role == person.RoleStudent {
		eventType = shared.EventStudentUpdated
	}
	s.publish(shared.NewPersonUpdatedEvent(eventType, p.ID, p.Role.String(), changed))
	return p, nil
}

// checkReferences verifies every cross-reference of a student points at an
// existing record of the expected role.
func (s *Service) checkReferences(ctx context.Context, p *person.Person) error {
	for refID, wantRole := range p.References() {
		ref, err := s.persons.GetByID(ctx, refID)
		if err != nil {
			return fmt.Errorf("%w: %s", shared.ErrDanglingReference, refID)
		}
		if ref.Role != wantRole {
			return fmt.Errorf("%w: %s is %s, expected %s", shared.ErrRoleMismatch, refID, ref.Role, wantRole)
		}
	}
	return nil
}

func (s *Service) publishPersonCreated(p *person.Person) {
	eventType := shared.EventPersonCreated
	if p.Role == person.RoleStudent {
		eventType = shared.EventStudentCreated
	}
	s.publish(shared.NewPersonCreatedEvent(eventType, p.ID, p.Role.String(), p.Name))
}

// ══════════════════════════════════════════════════════════════════════════════
// CASES
// ══════════════════════════════════════════════════════════════════════════════

// CreateCaseInput carries the fields of a new tracking case.
type CreateCaseInput struct {
	StudentID         string
	PsychopedagogueID string
	Title             string
	Description       string
}

// CreateCase opens a tracking case for a student. Both the student and the
// owning psychopedagogue must exist.
func (s *Service) CreateCase(ctx context.Context, in CreateCaseInput) (*casefile.Case, error) {
	if err := s.requireRole(ctx, in.StudentID, person.RoleStudent); err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, in.PsychopedagogueID, person.RolePsychopedagogue); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := &casefile.Case{
		ID:                shared.NewID("case"),
		StudentID:         in.StudentID,
		PsychopedagogueID: in.PsychopedagogueID,
		Title:             in.Title,
		Description:       in.Description,
		Status:            casefile.CaseActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.casefiles.CreateCase(ctx, c); err != nil {
		return nil, err
	}

	s.publish(shared.NewCaseCreatedEvent(c.ID, c.StudentID, c.PsychopedagogueID, c.Title))
	s.logger.Info("case created", "case_id", c.ID, "student_id", c.StudentID)
	return c, nil
}

// GetCase returns one case by ID.
func (s *Service) GetCase(ctx context.Context, id string) (*casefile.Case, error) {
	return s.casefiles.GetCase(ctx, id)
}

// ListCases returns every case matching the filter.
func (s *Service) ListCases(ctx context.Context, filter casefile.CaseFilter) ([]*casefile.Case, error) {
	return s.casefiles.ListCases(ctx, filter)
}

// UpdateCaseStatus transitions a case to a new status.
func (s *Service) UpdateCaseStatus(ctx context.Context, id string, status casefile.CaseStatus) (*casefile.Case, error) {
	if !status.IsValid() {
		return nil, shared.ErrInvalidCaseStatus
	}

	c, err := s.casefiles.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == status {
		return c, nil
	}

	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	if err := s.casefiles.UpdateCase(ctx, c); err != nil {
		return nil, err
	}

	s.publish(shared.NewCaseUpdatedEvent(c.ID, c.StudentID, string(c.Status)))
	return c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SUPPORT PLANS
// ══════════════════════════════════════════════════════════════════════════════

// CreatePlanInput carries the fields of a new support plan.
type CreatePlanInput struct {
	StudentID  string
	CaseID     string
	AuthorID   string
	Title      string
	Objectives []string
}

// CreatePlan authors an intervention plan for a student, optionally tied to
// an existing case.
func (s *Service) CreatePlan(ctx context.Context, in CreatePlanInput) (*casefile.SupportPlan, error) {
	if err := s.requireRole(ctx, in.StudentID, person.RoleStudent); err != nil {
		return nil, err
	}
	if in.CaseID != "" {
		if _, err := s.casefiles.GetCase(ctx, in.CaseID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	p := &casefile.SupportPlan{
		ID:         shared.NewID("plan"),
		StudentID:  in.StudentID,
		CaseID:     in.CaseID,
		AuthorID:   in.AuthorID,
		Title:      in.Title,
		Objectives: in.Objectives,
		Status:     casefile.PlanActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.casefiles.CreatePlan(ctx, p); err != nil {
		return nil, err
	}

	s.publish(shared.NewSupportPlanCreatedEvent(p.ID, p.StudentID, p.AuthorID))
	s.logger.Info("support plan created", "plan_id", p.ID, "student_id", p.StudentID)
	return p, nil
}

// GetPlan returns one support plan by ID.
func (s *Service) GetPlan(ctx context.Context, id string) (*casefile.SupportPlan, error) {
	return s.casefiles.GetPlan(ctx, id)
}

// ListPlans returns every support plan matching the filter.
func (s *Service) ListPlans(ctx context.Context, filter casefile.PlanFilter) ([]*casefile.SupportPlan, error) {
	return s.casefiles.ListPlans(ctx, filter)
}

// UpdatePlanStatus transitions a plan to a new status, stamping CompletedAt
// on the transition to completed.
func (s *Service) UpdatePlanStatus(ctx context.Context, id string, status casefile.PlanStatus) (*casefile.SupportPlan, error) {
	if !status.IsValid() {
		return nil, shared.NewDomainError("casefile", "UpdatePlanStatus", shared.ErrStateTransition, "invalid plan status")
	}

	p, err := s.casefiles.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == status {
		return p, nil
	}

	now := time.Now().UTC()
	p.Status = status
	p.UpdatedAt = now
	if status == casefile.PlanCompleted && p.CompletedAt == nil {
		t := now
		p.CompletedAt = &t
	}

	if err := s.casefiles.UpdatePlan(ctx, p); err != nil {
		return nil, err
	}

	s.publish(shared.NewSupportPlanUpdatedEvent(p.ID, p.StudentID, string(p.Status)))
	return p, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Service) requireRole(ctx context.Context, id string, want person.Role) error {
	p, err := s.persons.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %s", shared.ErrDanglingReference, id)
	}
	if p.Role != want {
		return fmt.Errorf("%w: %s is %s, expected %s", shared.ErrRoleMismatch, id, p.Role, want)
	}
	return nil
}

// publish sends an event on the bus. Publish failures are logged, never
// surfaced to the caller: the write already succeeded.
func (s *Service) publish(event shared.Event) {
	if err := s.publisher.Publish(event); err != nil {
		s.logger.Error("event publish failed",
			"event_type", event.EventType().String(),
			"aggregate_id", event.AggregateID(),
			"error", err,
		)
	}
}
