// Package syncagg implements the cross-role sync aggregator: it assembles
// the consolidated view a parent sees for a linked student, derives the
// progress metrics and threshold alerts, publishes the bundle and caches
// it.
package syncagg

import (
	"context"
	"log/slog"
	"time"

	"github.com/kary-hub/kary-sync-engine/internal/domain/activity"
	"github.com/kary-hub/kary-sync-engine/internal/domain/link"
	"github.com/kary-hub/kary-sync-engine/internal/domain/notification"
	"github.com/kary-hub/kary-sync-engine/internal/domain/person"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
	domainsync "github.com/kary-hub/kary-sync-engine/internal/domain/sync"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// Service assembles consolidated parent views. The alert list is
// regenerated from scratch on every refresh; dedup is left to consumers
// via the alert fingerprints.
type Service struct {
	persons       person.Repository
	activities    activity.Repository
	notifications notification.Repository
	links         link.Repository
	cache         domainsync.ViewCache
	publisher     shared.EventPublisher
	logger        *slog.Logger

	cacheTTL time.Duration
}

// NewService creates a new sync aggregator. cache may be nil when no Redis
// is configured; views are then assembled fresh on every call.
func NewService(
	persons person.Repository,
	activities activity.Repository,
	notifications notification.Repository,
	links link.Repository,
	cache domainsync.ViewCache,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		persons:       persons,
		activities:    activities,
		notifications: notifications,
		links:         links,
		cache:         cache,
		publisher:     publisher,
		logger:        logger.With("service", "syncagg"),
		cacheTTL:      10 * time.Minute,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// SyncParentWithStudent assembles a fresh consolidated view for a linked
// (parent, student) pair, publishes it on the bus and caches it. The parent
// must hold an active link to the student.
func (s *Service) SyncParentWithStudent(ctx context.Context, parentID, studentID string) (*domainsync.ParentView, error) {
	if err := s.requireLink(ctx, parentID, studentID); err != nil {
		return nil, err
	}

	student, err := s.persons.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student.Role != person.RoleStudent {
		return nil, shared.ErrStudentNotFound
	}

	assignments, err := s.activities.ListAssignments(ctx, activity.AssignmentFilter{AssignedTo: studentID})
	if err != nil {
		return nil, err
	}

	notifs, err := s.notifications.List(ctx, notification.Filter{RecipientKey: studentID})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	progress := domainsync.DeriveProgress(assignments, now)
	alerts := domainsync.DeriveAlerts(studentID, progress)

	view := &domainsync.ParentView{
		ParentID:      parentID,
		StudentID:     studentID,
		Student:       student,
		Assignments:   assignments,
		Progress:      progress,
		Notifications: notifs,
		Alerts:        alerts,
		GeneratedAt:   now,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, view, s.cacheTTL); err != nil {
			s.logger.Warn("parent view cache write failed",
				"parent_id", parentID,
				"student_id", studentID,
				"error", err,
			)
		}
	}

	for _, alert := range alerts {
		s.publish(shared.NewProgressAlertEvent(
			studentID,
			string(alert.Type),
			string(alert.Priority),
			alert.Message,
			alertValue(alert.Type, progress),
		))
	}
	s.publish(shared.NewParentViewSyncedEvent(parentID, studentID, len(alerts), progress.Overall))

	s.logger.Info("parent view synced",
		"parent_id", parentID,
		"student_id", studentID,
		"overall", progress.Overall,
		"alerts", len(alerts),
	)
	return view, nil
}

// GetParentView returns the cached view when fresh, assembling a new one
// otherwise.
func (s *Service) GetParentView(ctx context.Context, parentID, studentID string) (*domainsync.ParentView, error) {
	if s.cache != nil {
		if view, err := s.cache.Get(ctx, parentID, studentID); err == nil {
			return view, nil
		}
	}
	return s.SyncParentWithStudent(ctx, parentID, studentID)
}

// RefreshAll re-runs the aggregator for every active link. Used by the
// scheduled refresh job; per-pair failures are logged and skipped so one
// broken record cannot stall the sweep.
func (s *Service) RefreshAll(ctx context.Context) (int, error) {
	active, err := s.links.ListLinks(ctx, link.LinkFilter{})
	if err != nil {
		return 0, err
	}

	var refreshed int
	for _, l := range active {
		if _, err := s.SyncParentWithStudent(ctx, l.ParentID, l.StudentID); err != nil {
			s.logger.Error("parent view refresh failed",
				"parent_id", l.ParentID,
				"student_id", l.StudentID,
				"error", err,
			)
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// InvalidateStudent drops every cached view involving the student. Called
// when the student's data changes between scheduled refreshes.
func (s *Service) InvalidateStudent(ctx context.Context, studentID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateStudent(ctx, studentID)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// requireLink verifies the parent is linked to the student. A parent with
// no links at all gets ErrNoLinkedStudent; one linked to other students
// but not this one gets ErrParentNotLinked.
func (s *Service) requireLink(ctx context.Context, parentID, studentID string) error {
	linked, err := s.links.ListLinks(ctx, link.LinkFilter{ParentID: parentID, StudentID: studentID})
	if err != nil {
		return err
	}
	if len(linked) > 0 {
		return nil
	}

	any, err := s.links.ListLinks(ctx, link.LinkFilter{ParentID: parentID})
	if err != nil {
		return err
	}
	if len(any) == 0 {
		return shared.ErrNoLinkedStudent
	}
	return shared.ErrParentNotLinked
}

// alertValue picks the metric that tripped the rule.
func alertValue(t domainsync.AlertType, p domainsync.Progress) int {
	switch t {
	case domainsync.AlertAcademicConcern:
		return p.Academic
	case domainsync.AlertPositiveReinforcement:
		return p.WeeklyStreak
	case domainsync.AlertEmotionalSupport:
		return p.Emotional
	default:
		return 0
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
