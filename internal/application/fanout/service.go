// Package fanout implements the notification fan-out engine: it turns
// domain events into role-targeted notifications via the fixed routing
// table and owns the read/unread lifecycle.
package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kary-hub/kary-sync-engine/internal/domain/activity"
	"github.com/kary-hub/kary-sync-engine/internal/domain/notification"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
	"github.com/kary-hub/kary-sync-engine/internal/infrastructure/external/content"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// Service creates and manages notifications. User-facing copy is Spanish,
// matching the platform's dashboards.
type Service struct {
	notifications notification.Repository
	publisher     shared.EventPublisher
	enricher      content.Provider
	logger        *slog.Logger
}

// NewService creates a new fan-out service.
func NewService(notifications notification.Repository, publisher shared.EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		notifications: notifications,
		publisher:     publisher,
		logger:        logger.With("service", "fanout"),
	}
}

// SetEnricher installs an optional content provider used to personalize
// alert copy. A nil enricher leaves the built-in copy untouched.
func (s *Service) SetEnricher(p content.Provider) {
	s.enricher = p
}

// ══════════════════════════════════════════════════════════════════════════════
// CREATION
// ══════════════════════════════════════════════════════════════════════════════

// CreateInput carries the fields of a new notification.
type CreateInput struct {
	Recipient notification.Recipient
	Kind      notification.Kind
	Title     string
	Message   string
	Data      notification.Data
	Priority  notification.Priority
}

// CreateNotification persists one notification for the primary recipient
// and one copy per additional recipient from the routing table. Read starts
// false; an out-of-domain priority defaults to medium.
func (s *Service) CreateNotification(ctx context.Context, in CreateInput) (*notification.Notification, error) {
	if in.Recipient.IsZero() {
		return nil, shared.ErrEmptyRecipient
	}

	primary, err := s.store(ctx, in.Recipient, in)
	if err != nil {
		return nil, err
	}

	for _, extra := range notification.AdditionalRecipients(in.Kind, in.Data) {
		if extra.Key() == in.Recipient.Key() {
			continue
		}
		if _, err := s.store(ctx, extra, in); err != nil {
			s.logger.Error("fan-out copy failed",
				"kind", in.Kind.String(),
				"recipient", extra.Key(),
				"error", err,
			)
		}
	}

	return primary, nil
}

// store persists a single notification and publishes its created event.
func (s *Service) store(ctx context.Context, recipient notification.Recipient, in CreateInput) (*notification.Notification, error) {
	n := &notification.Notification{
		ID:            shared.NewID("notif"),
		RecipientKey:  recipient.Key(),
		RecipientRole: recipient.Role,
		Type:          in.Kind,
		Title:         in.Title,
		Message:       in.Message,
		Data:          in.Data,
		Priority:      in.Priority.Normalize(),
		Read:          false,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, err
	}

	s.publish(shared.NewNotificationCreatedEvent(n.ID, n.RecipientKey, n.Type.String(), string(n.Priority)))
	return n, nil
}

// CreateActivityNotifications produces the assignment bundle: exactly one
// creator summary plus one high-priority activity_assigned notification per
// assignment.
func (s *Service) CreateActivityNotifications(ctx context.Context, tpl *activity.Activity, assignments []*activity.Assignment) ([]*notification.Notification, error) {
	created := make([]*notification.Notification, 0, 1+len(assignments))

	summary, err := s.CreateNotification(ctx, CreateInput{
		Recipient: notification.DirectRecipient(notification.RecipientTeacher, tpl.CreatedBy),
		Kind:      notification.KindActivityCreated,
		Title:     "Actividad creada",
		Message:   fmt.Sprintf("La actividad \"%s\" fue asignada a %d estudiante(s).", tpl.Title, len(assignments)),
		Data: notification.Data{
			ActivityID: tpl.ID,
		},
		Priority: notification.PriorityMedium,
	})
	if err != nil {
		return nil, err
	}
	created = append(created, summary)

	for _, a := range assignments {
		n, err := s.CreateNotification(ctx, CreateInput{
			Recipient: notification.DirectRecipient(notification.RecipientStudent, a.AssignedTo),
			Kind:      notification.KindActivityAssigned,
			Title:     "Nueva actividad asignada",
			Message:   fmt.Sprintf("Tienes una nueva actividad: \"%s\".", a.Title),
			Data: notification.Data{
				StudentID:    a.AssignedTo,
				ActivityID:   a.ParentActivityID,
				AssignmentID: a.ID,
			},
			Priority: notification.PriorityHigh,
		})
		if err != nil {
			return created, err
		}
		created = append(created, n)
	}

	s.logger.Info("activity notifications created",
		"activity_id", tpl.ID,
		"count", len(created),
	)
	return created, nil
}

// CreateProgressNotification notifies the assignment's teacher of a
// progress change. Priority is high exactly when the assignment completed.
func (s *Service) CreateProgressNotification(ctx context.Context, a *activity.Assignment, studentName string) (*notification.Notification, error) {
	priority := notification.PriorityMedium
	message := fmt.Sprintf("%s avanzó al %d%% en \"%s\".", displayName(studentName, a.AssignedTo), a.Progress, a.Title)
	if a.Progress >= 100 {
		priority = notification.PriorityHigh
		message = fmt.Sprintf("%s completó la actividad \"%s\".", displayName(studentName, a.AssignedTo), a.Title)
	}

	return s.CreateNotification(ctx, CreateInput{
		Recipient: notification.DirectRecipient(notification.RecipientTeacher, a.CreatedBy),
		Kind:      notification.KindStudentProgressUpdated,
		Title:     "Progreso actualizado",
		Message:   message,
		Data: notification.Data{
			StudentID:    a.AssignedTo,
			StudentName:  studentName,
			ActivityID:   a.ParentActivityID,
			AssignmentID: a.ID,
			Progress:     a.Progress,
		},
		Priority: priority,
	})
}

func displayName(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT HANDLING
// ══════════════════════════════════════════════════════════════════════════════

// HandleEvent turns a domain event into its notifications. Wire it to the
// dispatcher for the case, support plan, feedback, link request and alert
// topics; assignment notifications go through CreateActivityNotifications
// instead, so the 1 + N bundle stays a single operation.
func (s *Service) HandleEvent(ctx context.Context, event shared.Event) error {
	switch e := event.(type) {
	case shared.CaseCreatedEvent:
		_, err := s.CreateNotification(ctx, CreateInput{
			Recipient: notification.DirectRecipient(notification.RecipientPsychopedagogue, e.PsychopedagogueID),
			Kind:      notification.KindCaseCreated,
			Title:     "Caso creado",
			Message:   fmt.Sprintf("Se abrió el caso \"%s\".", e.Title),
			Data: notification.Data{
				StudentID: e.Student,
				CaseID:    e.CaseID,
			},
			Priority: notification.PriorityMedium,
		})
		return err

	case shared.SupportPlanCreatedEvent:
		_, err := s.CreateNotification(ctx, CreateInput{
			Recipient: notification.ScopedRecipient(notification.RecipientParent, e.Student),
			Kind:      notification.KindSupportPlanCreated,
			Title:     "Plan de apoyo creado",
			Message:   "Se creó un nuevo plan de apoyo para el estudiante.",
			Data: notification.Data{
				StudentID: e.Student,
				PlanID:    e.PlanID,
			},
			Priority: notification.PriorityMedium,
		})
		return err

	case shared.ActivityFeedbackAddedEvent:
		_, err := s.CreateNotification(ctx, CreateInput{
			Recipient: notification.DirectRecipient(notification.RecipientStudent, e.Student),
			Kind:      notification.KindFeedbackReceived,
			Title:     "Retroalimentación recibida",
			Message:   "Tu docente dejó comentarios sobre tu actividad.",
			Data: notification.Data{
				StudentID:    e.Student,
				AssignmentID: e.AssignmentID,
			},
			Priority: notification.PriorityMedium,
		})
		return err

	case shared.LinkRequestEvent:
		return s.handleLinkRequest(ctx, e)

	case shared.ProgressAlertEvent:
		title, message := s.enrichedAlertCopy(ctx, e, "Alerta de progreso", e.Message)
		_, err := s.CreateNotification(ctx, CreateInput{
			Recipient: notification.ScopedRecipient(notification.RecipientParent, e.Student),
			Kind:      alertKind(e.AlertType),
			Title:     title,
			Message:   message,
			Data: notification.Data{
				StudentID: e.Student,
				AlertType: e.AlertType,
			},
			Priority: notification.Priority(e.Severity),
		})
		return err
	}

	return nil
}

// enrichedAlertCopy asks the content provider for personalized alert copy.
// Any provider trouble keeps the built-in Spanish copy.
func (s *Service) enrichedAlertCopy(ctx context.Context, e shared.ProgressAlertEvent, title, message string) (string, string) {
	if s.enricher == nil {
		return title, message
	}

	generated, err := s.enricher.Generate(ctx, content.Request{
		Role: string(notification.RecipientParent),
		Context: map[string]interface{}{
			"studentId": e.Student,
			"alertType": e.AlertType,
			"severity":  e.Severity,
			"value":     e.Value,
		},
	})
	if err != nil || generated == nil {
		return title, message
	}

	if generated.Title != "" {
		title = generated.Title
	}
	if generated.Body != "" {
		message = generated.Body
	}
	return title, message
}

// alertKind maps a derived alert type to its notification kind. Emotional
// support alerts use the emotional_alert kind so the routing table fans
// them out to the teacher and the psychopedagogue.
func alertKind(alertType string) notification.Kind {
	if alertType == "emotional_support" {
		return notification.KindEmotionalAlert
	}
	return notification.KindProgressAlert
}

// handleLinkRequest notifies both sides of a link transition: the parent
// who filed the request and the reviewing queue of the student's
// psychopedagogue.
func (s *Service) handleLinkRequest(ctx context.Context, e shared.LinkRequestEvent) error {
	parent := notification.DirectRecipient(notification.RecipientParent, e.ParentID)
	queue := notification.ScopedRecipient(notification.RecipientPsychopedagogue, e.Student)

	var (
		kind          notification.Kind
		parentMessage string
		queueMessage  string
		priority      = notification.PriorityMedium
		queuePriority = notification.PriorityMedium
	)

	switch e.EventType() {
	case shared.EventLinkRequestCreated:
		kind = notification.KindLinkRequestCreated
		parentMessage = "Tu solicitud de vinculación fue enviada y está en revisión."
		queueMessage = "Un padre solicitó vincularse con un estudiante."
		queuePriority = notification.PriorityHigh
	case shared.EventLinkRequestApproved:
		kind = notification.KindLinkRequestApproved
		parentMessage = "Tu solicitud de vinculación fue aprobada."
		queueMessage = "Una solicitud de vinculación fue aprobada."
	case shared.EventLinkRequestRejected:
		kind = notification.KindLinkRequestRejected
		parentMessage = "Tu solicitud de vinculación fue rechazada."
		if e.RejectReason != "" {
			parentMessage = fmt.Sprintf("Tu solicitud de vinculación fue rechazada: %s", e.RejectReason)
		}
		queueMessage = "Una solicitud de vinculación fue rechazada."
	case shared.EventLinkRequestExpired:
		kind = notification.KindLinkRequestExpired
		parentMessage = "Tu solicitud de vinculación expiró sin respuesta."
		queueMessage = "Una solicitud de vinculación expiró sin resolverse."
		priority = notification.PriorityLow
		queuePriority = notification.PriorityLow
	default:
		return nil
	}

	data := notification.Data{
		StudentID: e.Student,
		RequestID: e.RequestID,
	}
	if _, err := s.CreateNotification(ctx, CreateInput{
		Recipient: parent,
		Kind:      kind,
		Title:     linkTitles[kind],
		Message:   parentMessage,
		Data:      data,
		Priority:  priority,
	}); err != nil {
		return err
	}
	_, err := s.CreateNotification(ctx, CreateInput{
		Recipient: queue,
		Kind:      kind,
		Title:     linkTitles[kind],
		Message:   queueMessage,
		Data:      data,
		Priority:  queuePriority,
	})
	return err
}

var linkTitles = map[notification.Kind]string{
	notification.KindLinkRequestCreated:  "Solicitud de vinculación",
	notification.KindLinkRequestApproved: "Solicitud aprobada",
	notification.KindLinkRequestRejected: "Solicitud rechazada",
	notification.KindLinkRequestExpired:  "Solicitud expirada",
}

// ══════════════════════════════════════════════════════════════════════════════
// READ LIFECYCLE AND QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// List returns a recipient's notifications, newest first.
func (s *Service) List(ctx context.Context, recipient notification.Recipient, onlyUnread bool) ([]*notification.Notification, error) {
	return s.notifications.List(ctx, notification.Filter{
		RecipientKey: recipient.Key(),
		OnlyUnread:   onlyUnread,
	})
}

// MarkRead marks a single notification as read. Marking an already-read
// notification is a no-op.
func (s *Service) MarkRead(ctx context.Context, id string) (*notification.Notification, error) {
	n, err := s.notifications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !n.MarkRead(time.Now().UTC()) {
		return n, nil
	}

	if err := s.notifications.Update(ctx, n); err != nil {
		return nil, err
	}

	s.publish(shared.NewNotificationReadEvent(n.ID, n.RecipientKey))
	return n, nil
}

// MarkAllRead marks every unread notification of a recipient as read and
// returns how many changed. A non-empty kind restricts the sweep to
// notifications of that kind.
func (s *Service) MarkAllRead(ctx context.Context, recipient notification.Recipient, kind notification.Kind) (int, error) {
	unread, err := s.notifications.List(ctx, notification.Filter{
		RecipientKey: recipient.Key(),
		OnlyUnread:   true,
		Type:         kind,
	})
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	var count int
	for _, n := range unread {
		if !n.MarkRead(now) {
			continue
		}
		if err := s.notifications.Update(ctx, n); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Delete removes a notification.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.notifications.Delete(ctx, id)
}

// Stats summarizes a recipient's notifications in one pass. A non-empty
// kind restricts the summary to notifications of that kind.
func (s *Service) Stats(ctx context.Context, recipient notification.Recipient, kind notification.Kind) (notification.Stats, error) {
	items, err := s.notifications.List(ctx, notification.Filter{
		RecipientKey: recipient.Key(),
		Type:         kind,
	})
	if err != nil {
		return notification.Stats{}, err
	}
	return notification.ComputeStats(items), nil
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
