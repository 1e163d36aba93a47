// Package linkflow implements the parent-student link request workflow:
// creation, review by an authorized role, and the expiry sweep.
package linkflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kary-hub/kary-sync-engine/internal/domain/link"
	"github.com/kary-hub/kary-sync-engine/internal/domain/person"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// Service drives the link request state machine. Reviewers must hold the
// psychopedagogue or directive role.
type Service struct {
	links     link.Repository
	persons   person.Repository
	publisher shared.EventPublisher
	logger    *slog.Logger
}

// NewService creates a new link workflow service.
func NewService(
	links link.Repository,
	persons person.Repository,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		links:     links,
		persons:   persons,
		publisher: publisher,
		logger:    logger.With("service", "linkflow"),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// CreateLinkRequest opens a pending request for a parent to be linked to a
// student. The relationship must be one of the known kinship labels, both
// accounts must exist with the expected roles, and the pair must not
// already be linked.
func (s *Service) CreateLinkRequest(ctx context.Context, parentID, studentID, relationship string) (*link.Request, error) {
	if err := link.ValidateRelationship(relationship); err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, parentID, person.RoleParent); err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, studentID, person.RoleStudent); err != nil {
		return nil, err
	}

	existing, err := s.links.ListLinks(ctx, link.LinkFilter{ParentID: parentID, StudentID: studentID})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, shared.ErrLinkAlreadyActive
	}

	req := link.NewRequest(shared.NewID("linkreq"), parentID, studentID, relationship, time.Now().UTC())
	if err := s.links.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	s.publish(shared.NewLinkRequestEvent(shared.EventLinkRequestCreated, req.ID, req.ParentID, req.StudentID, string(req.Status)))
	s.logger.Info("link request created",
		"request_id", req.ID,
		"parent_id", req.ParentID,
		"student_id", req.StudentID,
	)
	return req, nil
}

// GetRequest returns a request by ID.
func (s *Service) GetRequest(ctx context.Context, id string) (*link.Request, error) {
	return s.links.GetRequest(ctx, id)
}

// ListRequests returns every request matching the filter.
func (s *Service) ListRequests(ctx context.Context, filter link.RequestFilter) ([]*link.Request, error) {
	return s.links.ListRequests(ctx, filter)
}

// ListLinks returns every active link matching the filter.
func (s *Service) ListLinks(ctx context.Context, filter link.LinkFilter) ([]*link.ActiveLink, error) {
	return s.links.ListLinks(ctx, filter)
}

// Approve transitions a pending request to approved, creates exactly one
// active link and records the parent on the student profile. Approving a
// resolved request returns shared.ErrLinkRequestResolved.
func (s *Service) Approve(ctx context.Context, requestID, approvedBy string) (*link.ActiveLink, error) {
	if err := s.requireReviewer(ctx, approvedBy); err != nil {
		return nil, err
	}

	req, err := s.links.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := req.Approve(approvedBy, now); err != nil {
		return nil, err
	}
	if err := s.links.UpdateRequest(ctx, req); err != nil {
		return nil, err
	}

	active := link.NewActiveLink(shared.NewID("link"), req, now)
	if err := s.links.CreateLink(ctx, active); err != nil {
		return nil, err
	}

	s.recordParentOnStudent(ctx, req.StudentID, req.ParentID)

	event := shared.NewLinkRequestEvent(shared.EventLinkRequestApproved, req.ID, req.ParentID, req.StudentID, string(req.Status))
	s.publish(event.WithResolution(approvedBy, ""))
	s.logger.Info("link request approved",
		"request_id", req.ID,
		"approved_by", approvedBy,
	)
	return active, nil
}

// Reject transitions a pending request to rejected. Rejecting a resolved
// request returns shared.ErrLinkRequestResolved.
func (s *Service) Reject(ctx context.Context, requestID, reason, rejectedBy string) (*link.Request, error) {
	if err := s.requireReviewer(ctx, rejectedBy); err != nil {
		return nil, err
	}

	req, err := s.links.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := req.Reject(reason, rejectedBy, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.links.UpdateRequest(ctx, req); err != nil {
		return nil, err
	}

	event := shared.NewLinkRequestEvent(shared.EventLinkRequestRejected, req.ID, req.ParentID, req.StudentID, string(req.Status))
	s.publish(event.WithResolution(rejectedBy, reason))
	return req, nil
}

// CleanupExpired expires every request still pending after the pending TTL
// and returns how many changed. Resolved requests are untouched regardless
// of age.
func (s *Service) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	pending, err := s.links.ListRequests(ctx, link.RequestFilter{Status: link.StatusPending})
	if err != nil {
		return 0, err
	}

	var expired int
	for _, req := range pending {
		if !req.ExpireIfStale(now) {
			continue
		}
		if err := s.links.UpdateRequest(ctx, req); err != nil {
			return expired, err
		}
		expired++
		s.publish(shared.NewLinkRequestEvent(shared.EventLinkRequestExpired, req.ID, req.ParentID, req.StudentID, string(req.Status)))
	}

	if expired > 0 {
		s.logger.Info("expired stale link requests", "count", expired)
	}
	return expired, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Service) requireReviewer(ctx context.Context, reviewerID string) error {
	reviewer, err := s.persons.GetByID(ctx, reviewerID)
	if err != nil {
		return err
	}
	if !reviewer.Role.CanReviewLinkRequests() {
		return shared.ErrLinkReviewerRole
	}
	return nil
}

func (s *Service) requireRole(ctx context.Context, id string, want person.Role) error {
	p, err := s.persons.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.Role != want {
		return fmt.Errorf("%w: %s is %s, expected %s", shared.ErrRoleMismatch, id, p.Role, want)
	}
	return nil
}

// recordParentOnStudent stamps the approved parent on the student profile.
// Best effort: the active link is already the source of truth.
func (s *Service) recordParentOnStudent(ctx context.Context, studentID, parentID string) {
	student, err := s.persons.GetByID(ctx, studentID)
	if err != nil || student.ParentID == parentID {
		return
	}
	student.ParentID = parentID
	student.UpdatedAt = time.Now().UTC()
	if err := s.persons.Update(ctx, student); err != nil {
		s.logger.Error("failed to record parent on student",
			"student_id", studentID,
			"parent_id", parentID,
			"error", err,
		)
	}
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
