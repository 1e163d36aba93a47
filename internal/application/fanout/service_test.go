package fanout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kary-hub/kary-sync-engine/internal/domain/activity"
	"github.com/kary-hub/kary-sync-engine/internal/domain/notification"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
	"github.com/kary-hub/kary-sync-engine/internal/infrastructure/external/content"
	"github.com/kary-hub/kary-sync-engine/internal/infrastructure/persistence/memstore"
)

type capturePublisher struct {
	events []shared.Event
}

func (p *capturePublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func newTestService() (*Service, notification.Repository) {
	repo := memstore.NewNotificationRepository()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, &capturePublisher{}, log), repo
}

func listAll(t *testing.T, repo notification.Repository, key string) []*notification.Notification {
	t.Helper()
	items, err := repo.List(context.Background(), notification.Filter{RecipientKey: key})
	require.NoError(t, err)
	return items
}

func TestCreateNotification_EmptyRecipientRejected(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateNotification(context.Background(), CreateInput{
		Kind:  notification.KindCaseCreated,
		Title: "x",
	})
	assert.ErrorIs(t, err, shared.ErrEmptyValue)
}

func TestCreateNotification_UnknownPriorityDefaultsToMedium(t *testing.T) {
	svc, _ := newTestService()

	n, err := svc.CreateNotification(context.Background(), CreateInput{
		Recipient: notification.DirectRecipient(notification.RecipientTeacher, "teacher-1"),
		Kind:      notification.KindActivityCreated,
		Title:     "x",
		Priority:  notification.Priority("shouting"),
	})
	require.NoError(t, err)
	assert.Equal(t, notification.PriorityMedium, n.Priority)
	assert.False(t, n.Read)
}

func TestCreateNotification_RoutingTableCopies(t *testing.T) {
	svc, repo := newTestService()

	// student_progress_updated fans out to the student's teacher and
	// psychopedagogue scopes on top of the primary recipient.
	_, err := svc.CreateNotification(context.Background(), CreateInput{
		Recipient: notification.DirectRecipient(notification.RecipientTeacher, "teacher-1"),
		Kind:      notification.KindStudentProgressUpdated,
		Title:     "Progreso",
		Data:      notification.Data{StudentID: "student-1"},
	})
	require.NoError(t, err)

	assert.Len(t, listAll(t, repo, "teacher-1"), 1)
	assert.Len(t, listAll(t, repo, "teacher-student-1"), 1)
	assert.Len(t, listAll(t, repo, "psycho-student-1"), 1)
}

func TestCreateNotification_NoStudentMeansNoCopies(t *testing.T) {
	svc, repo := newTestService()

	_, err := svc.CreateNotification(context.Background(), CreateInput{
		Recipient: notification.DirectRecipient(notification.RecipientTeacher, "teacher-1"),
		Kind:      notification.KindStudentProgressUpdated,
		Title:     "Progreso",
	})
	require.NoError(t, err)

	assert.Len(t, listAll(t, repo, "teacher-1"), 1)
	assert.Empty(t, listAll(t, repo, "teacher-"))
}

func TestCreateActivityNotifications_BundleSize(t *testing.T) {
	svc, repo := newTestService()
	now := time.Now().UTC()

	tpl := &activity.Activity{ID: "act-1", Title: "Math Quiz", CreatedBy: "teacher-1"}
	assignments := []*activity.Assignment{
		activity.NewAssignment("assign-1", tpl, "student-1", now),
		activity.NewAssignment("assign-2", tpl, "student-2", now),
		activity.NewAssignment("assign-3", tpl, "student-3", now),
	}

	created, err := svc.CreateActivityNotifications(context.Background(), tpl, assignments)
	require.NoError(t, err)

	// One creator summary plus one per assignment.
	assert.Len(t, created, 1+len(assignments))

	summary := listAll(t, repo, "teacher-1")
	require.Len(t, summary, 1)
	assert.Equal(t, notification.KindActivityCreated, summary[0].Type)
	assert.Equal(t, notification.PriorityMedium, summary[0].Priority)

	for _, studentID := range []string{"student-1", "student-2", "student-3"} {
		items := listAll(t, repo, studentID)
		require.Len(t, items, 1)
		assert.Equal(t, notification.KindActivityAssigned, items[0].Type)
		assert.Equal(t, notification.PriorityHigh, items[0].Priority)
	}
}

func TestCreateProgressNotification_HighPriorityExactlyAtCompletion(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	now := time.Now().UTC()

	tpl := &activity.Activity{ID: "act-1", Title: "Quiz", CreatedBy: "teacher-1"}
	a := activity.NewAssignment("assign-1", tpl, "student-1", now)

	a.ApplyProgress(99, now)
	n, err := svc.CreateProgressNotification(ctx, a, "Ana")
	require.NoError(t, err)
	assert.Equal(t, notification.PriorityMedium, n.Priority)
	assert.Contains(t, n.Message, "99%")

	a.ApplyProgress(100, now)
	n, err = svc.CreateProgressNotification(ctx, a, "Ana")
	require.NoError(t, err)
	assert.Equal(t, notification.PriorityHigh, n.Priority)
	assert.Contains(t, n.Message, "completó")
}

func TestHandleEvent_CaseCreated(t *testing.T) {
	svc, repo := newTestService()

	err := svc.HandleEvent(context.Background(), shared.NewCaseCreatedEvent("case-1", "student-1", "psycho-1", "Seguimiento"))
	require.NoError(t, err)

	items := listAll(t, repo, "psycho-1")
	require.Len(t, items, 1)
	assert.Equal(t, notification.KindCaseCreated, items[0].Type)
	// case_created also copies to the student's teacher scope.
	assert.Len(t, listAll(t, repo, "teacher-student-1"), 1)
}

func TestHandleEvent_LinkRequestLifecycle(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	ofKind := func(items []*notification.Notification, kind notification.Kind) []*notification.Notification {
		var out []*notification.Notification
		for _, n := range items {
			if n.Type == kind {
				out = append(out, n)
			}
		}
		return out
	}

	// Every transition lands in both the parent inbox and the reviewing
	// queue of the student's psychopedagogue.
	created := shared.NewLinkRequestEvent(shared.EventLinkRequestCreated, "req-1", "parent-1", "student-1", "pending")
	require.NoError(t, svc.HandleEvent(ctx, created))

	queue := listAll(t, repo, "psycho-student-1")
	require.Len(t, queue, 1)
	assert.Equal(t, notification.PriorityHigh, queue[0].Priority)
	inbox := listAll(t, repo, "parent-1")
	require.Len(t, inbox, 1)
	assert.Equal(t, notification.KindLinkRequestCreated, inbox[0].Type)

	approved := shared.NewLinkRequestEvent(shared.EventLinkRequestApproved, "req-1", "parent-1", "student-1", "approved")
	require.NoError(t, svc.HandleEvent(ctx, approved))

	inbox = listAll(t, repo, "parent-1")
	require.Len(t, ofKind(inbox, notification.KindLinkRequestApproved), 1)
	queue = listAll(t, repo, "psycho-student-1")
	require.Len(t, ofKind(queue, notification.KindLinkRequestApproved), 1)

	rejected := shared.NewLinkRequestEvent(shared.EventLinkRequestRejected, "req-2", "parent-1", "student-1", "rejected")
	require.NoError(t, svc.HandleEvent(ctx, rejected.WithResolution("psycho-1", "datos incompletos")))

	inbox = listAll(t, repo, "parent-1")
	rejections := ofKind(inbox, notification.KindLinkRequestRejected)
	require.Len(t, rejections, 1)
	assert.Contains(t, rejections[0].Message, "datos incompletos")
	queue = listAll(t, repo, "psycho-student-1")
	require.Len(t, ofKind(queue, notification.KindLinkRequestRejected), 1)

	expired := shared.NewLinkRequestEvent(shared.EventLinkRequestExpired, "req-3", "parent-1", "student-1", "expired")
	require.NoError(t, svc.HandleEvent(ctx, expired))

	inbox = listAll(t, repo, "parent-1")
	expirations := ofKind(inbox, notification.KindLinkRequestExpired)
	require.Len(t, expirations, 1)
	assert.Equal(t, notification.PriorityLow, expirations[0].Priority)
	queue = listAll(t, repo, "psycho-student-1")
	require.Len(t, ofKind(queue, notification.KindLinkRequestExpired), 1)
}

func TestHandleEvent_EmotionalAlertFansOut(t *testing.T) {
	svc, repo := newTestService()

	alert := shared.NewProgressAlertEvent("student-1", "emotional_support", "medium", "Bienestar bajo", 55)
	require.NoError(t, svc.HandleEvent(context.Background(), alert))

	// The parent gets the primary; the emotional kind also copies to the
	// teacher and psychopedagogue scopes.
	assert.Len(t, listAll(t, repo, "parent-student-1"), 1)
	assert.Len(t, listAll(t, repo, "teacher-student-1"), 1)
	assert.Len(t, listAll(t, repo, "psycho-student-1"), 1)
}

// stubProvider returns a fixed generation result or an error.
type stubProvider struct {
	generated *content.Generated
	err       error
}

func (p *stubProvider) Generate(context.Context, content.Request) (*content.Generated, error) {
	return p.generated, p.err
}

func TestHandleEvent_AlertEnrichment(t *testing.T) {
	svc, repo := newTestService()
	svc.SetEnricher(&stubProvider{generated: &content.Generated{
		Title: "Hola familia",
		Body:  "Ana necesita un empujón esta semana.",
	}})

	alert := shared.NewProgressAlertEvent("student-1", "academic_concern", "high", "Progreso bajo", 40)
	require.NoError(t, svc.HandleEvent(context.Background(), alert))

	items := listAll(t, repo, "parent-student-1")
	require.Len(t, items, 1)
	assert.Equal(t, "Hola familia", items[0].Title)
	assert.Equal(t, "Ana necesita un empujón esta semana.", items[0].Message)
}

func TestHandleEvent_EnricherFailureKeepsBuiltinCopy(t *testing.T) {
	svc, repo := newTestService()
	svc.SetEnricher(&stubProvider{err: errors.New("provider down")})

	alert := shared.NewProgressAlertEvent("student-1", "academic_concern", "high", "Progreso bajo", 40)
	require.NoError(t, svc.HandleEvent(context.Background(), alert))

	items := listAll(t, repo, "parent-student-1")
	require.Len(t, items, 1)
	assert.Equal(t, "Alerta de progreso", items[0].Title)
	assert.Equal(t, "Progreso bajo", items[0].Message)
}

func TestMarkRead_Idempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	n, err := svc.CreateNotification(ctx, CreateInput{
		Recipient: notification.DirectRecipient(notification.RecipientParent, "parent-1"),
		Kind:      notification.KindProgressAlert,
		Title:     "x",
	})
	require.NoError(t, err)

	read, err := svc.MarkRead(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, read.Read)
	require.NotNil(t, read.ReadAt)
	firstReadAt := *read.ReadAt

	again, err := svc.MarkRead(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, again.Read)
	assert.Equal(t, firstReadAt, *again.ReadAt)
}

func TestMarkAllReadAndStats(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	recipient := notification.DirectRecipient(notification.RecipientParent, "parent-1")

	for i := 0; i < 3; i++ {
		_, err := svc.CreateNotification(ctx, CreateInput{
			Recipient: recipient,
			Kind:      notification.KindProgressAlert,
			Title:     "x",
			Priority:  notification.PriorityHigh,
		})
		require.NoError(t, err)
	}

	count, err := svc.MarkAllRead(ctx, recipient, "")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// A second sweep changes nothing.
	count, err = svc.MarkAllRead(ctx, recipient, "")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	stats, err := svc.Stats(ctx, recipient, "")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.Read)
	assert.Equal(t, 0, stats.Unread)
	assert.Equal(t, 3, stats.ByPriority[notification.PriorityHigh])
	assert.Equal(t, 3, stats.ByType[notification.KindProgressAlert])
}

func TestMarkAllReadAndStats_KindScoped(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	recipient := notification.DirectRecipient(notification.RecipientParent, "parent-1")

	for _, kind := range []notification.Kind{
		notification.KindProgressAlert,
		notification.KindProgressAlert,
		notification.KindEmotionalAlert,
	} {
		_, err := svc.CreateNotification(ctx, CreateInput{
			Recipient: recipient,
			Kind:      kind,
			Title:     "x",
		})
		require.NoError(t, err)
	}

	// The sweep only touches the requested kind.
	count, err := svc.MarkAllRead(ctx, recipient, notification.KindProgressAlert)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stats, err := svc.Stats(ctx, recipient, notification.KindEmotionalAlert)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Unread)

	stats, err = svc.Stats(ctx, recipient, "")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Unread)
}
