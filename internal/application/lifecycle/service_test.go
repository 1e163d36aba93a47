package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kary-hub/kary-sync-engine/internal/domain/activity"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
	"github.com/kary-hub/kary-sync-engine/internal/infrastructure/persistence/memstore"
)

// capturePublisher records published events for assertions.
type capturePublisher struct {
	events []shared.Event
}

func (p *capturePublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) ofType(t shared.EventType) []shared.Event {
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestService() (*Service, *capturePublisher) {
	pub := &capturePublisher{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(memstore.NewActivityRepository(), pub, log), pub
}

func TestCreateActivity_RequiresTitle(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateActivity(context.Background(), CreateActivityInput{
		CreatedBy: "teacher-1",
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestAssignToStudents_OneAssignmentPerStudent(t *testing.T) {
	svc, pub := newTestService()
	ctx := context.Background()

	tpl, err := svc.CreateActivity(ctx, CreateActivityInput{
		Title:     "Math Quiz",
		Subject:   "math",
		CreatedBy: "teacher-1",
	})
	require.NoError(t, err)

	students := []string{"student-1", "student-2", "student-3"}
	assignments, err := svc.AssignToStudents(ctx, tpl.ID, students)
	require.NoError(t, err)
	require.Len(t, assignments, 3)

	for i, a := range assignments {
		assert.Equal(t, tpl.ID, a.ParentActivityID)
		assert.Equal(t, students[i], a.AssignedTo)
		assert.Equal(t, "Math Quiz", a.Title)
		assert.Equal(t, 0, a.Progress)
		assert.Equal(t, activity.StatusAssigned, a.Status)
	}

	assert.Len(t, pub.ofType(shared.EventActivityAssigned), 3)
}

func TestAssignToStudents_AlreadyAssignedSkipped(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tpl, err := svc.CreateActivity(ctx, CreateActivityInput{Title: "Essay", CreatedBy: "teacher-1"})
	require.NoError(t, err)

	first, err := svc.AssignToStudents(ctx, tpl.ID, []string{"student-1"})
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Re-assigning the same student plus a new one creates only one.
	second, err := svc.AssignToStudents(ctx, tpl.ID, []string{"student-1", "student-2"})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "student-2", second[0].AssignedTo)
}

func TestAssignToStudents_EmptyListRejected(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AssignToStudents(context.Background(), "act-1", nil)
	assert.ErrorIs(t, err, shared.ErrEmptyValue)
}

func TestUpdateProgress_ClampsAndDerivesStatus(t *testing.T) {
	svc, pub := newTestService()
	ctx := context.Background()

	tpl, err := svc.CreateActivity(ctx, CreateActivityInput{Title: "Quiz", CreatedBy: "teacher-1"})
	require.NoError(t, err)
	_, err = svc.AssignToStudents(ctx, tpl.ID, []string{"student-1"})
	require.NoError(t, err)

	a, err := svc.UpdateProgress(ctx, tpl.ID, "student-1", 150)
	require.NoError(t, err)
	assert.Equal(t, 100, a.Progress)
	assert.Equal(t, activity.StatusCompleted, a.Status)
	assert.NotNil(t, a.CompletedAt)

	// Clamped input is idempotent: setting 100 again changes nothing new.
	a, err = svc.UpdateProgress(ctx, tpl.ID, "student-1", 100)
	require.NoError(t, err)
	assert.Equal(t, 100, a.Progress)

	a, err = svc.UpdateProgress(ctx, tpl.ID, "student-1", -5)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Progress)
	assert.Equal(t, activity.StatusAssigned, a.Status)
	assert.Nil(t, a.CompletedAt)

	assert.Len(t, pub.ofType(shared.EventActivityProgressUpdated), 3)
}

func TestUpdateProgress_IndependentPerStudent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tpl, err := svc.CreateActivity(ctx, CreateActivityInput{Title: "Quiz", CreatedBy: "teacher-1"})
	require.NoError(t, err)
	_, err = svc.AssignToStudents(ctx, tpl.ID, []string{"student-1", "student-2"})
	require.NoError(t, err)

	_, err = svc.UpdateProgress(ctx, tpl.ID, "student-1", 80)
	require.NoError(t, err)

	other, err := svc.ListAssignments(ctx, activity.AssignmentFilter{
		ParentActivityID: tpl.ID,
		AssignedTo:       "student-2",
	})
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, 0, other[0].Progress)
}

func TestSubmit_ForcesCompletionAndRecordsSubmission(t *testing.T) {
	svc, pub := newTestService()
	ctx := context.Background()

	tpl, err := svc.CreateActivity(ctx, CreateActivityInput{Title: "Quiz", CreatedBy: "teacher-1"})
	require.NoError(t, err)
	assignments, err := svc.AssignToStudents(ctx, tpl.ID, []string{"student-1"})
	require.NoError(t, err)

	a, err := svc.Submit(ctx, assignments[0].ID, "student-1", "my answers")
	require.NoError(t, err)
	assert.Equal(t, 100, a.Progress)
	assert.Equal(t, activity.StatusCompleted, a.Status)
	require.Len(t, a.Submissions, 1)
	assert.Equal(t, "my answers", a.Submissions[0].Content)

	assert.Len(t, pub.ofType(shared.EventActivitySubmitted), 1)
}

func TestSubmit_WrongStudentRejected(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tpl, err := svc.CreateActivity(ctx, CreateActivityInput{Title: "Quiz", CreatedBy: "teacher-1"})
	require.NoError(t, err)
	assignments, err := svc.AssignToStudents(ctx, tpl.ID, []string{"student-1"})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, assignments[0].ID, "student-2", "stolen work")
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestSubmit_EmptyContentRejected(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Submit(context.Background(), "assign-1", "student-1", "")
	assert.ErrorIs(t, err, shared.ErrEmptyValue)
}

func TestAddFeedback_OnlyOwnerAndOverwrites(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tpl, err := svc.CreateActivity(ctx, CreateActivityInput{Title: "Quiz", CreatedBy: "teacher-1"})
	require.NoError(t, err)
	assignments, err := svc.AssignToStudents(ctx, tpl.ID, []string{"student-1"})
	require.NoError(t, err)

	_, err = svc.AddFeedback(ctx, assignments[0].ID, "teacher-2", "not yours")
	assert.ErrorIs(t, err, shared.ErrUnauthorized)

	a, err := svc.AddFeedback(ctx, assignments[0].ID, "teacher-1", "good start")
	require.NoError(t, err)
	require.NotNil(t, a.Feedback)
	assert.Equal(t, "good start", a.Feedback.Content)

	// The feedback slot overwrites; there is no history.
	a, err = svc.AddFeedback(ctx, assignments[0].ID, "teacher-1", "much better")
	require.NoError(t, err)
	assert.Equal(t, "much better", a.Feedback.Content)
}

func TestDelete_RemovesTemplateAndAssignments(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tpl, err := svc.CreateActivity(ctx, CreateActivityInput{Title: "Quiz", CreatedBy: "teacher-1"})
	require.NoError(t, err)
	_, err = svc.AssignToStudents(ctx, tpl.ID, []string{"student-1", "student-2"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, tpl.ID, "teacher-2"), shared.ErrUnauthorized)
	require.NoError(t, svc.Delete(ctx, tpl.ID, "teacher-1"))

	_, err = svc.GetActivity(ctx, tpl.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	left, err := svc.ListAssignments(ctx, activity.AssignmentFilter{ParentActivityID: tpl.ID})
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestDuplicate_ResetsAssignmentState(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tpl, err := svc.CreateActivity(ctx, CreateActivityInput{
		Title:     "Quiz",
		Subject:   "math",
		Category:  "academic",
		CreatedBy: "teacher-1",
	})
	require.NoError(t, err)
	_, err = svc.AssignToStudents(ctx, tpl.ID, []string{"student-1"})
	require.NoError(t, err)

	draft, err := svc.Duplicate(ctx, tpl.ID, "teacher-1")
	require.NoError(t, err)
	assert.NotEqual(t, tpl.ID, draft.ID)
	assert.Equal(t, "Quiz", draft.Title)
	assert.Equal(t, activity.StatusDraft, draft.Status)
	assert.Empty(t, draft.AssignedStudentIDs)

	// The duplicate has no assignments of its own.
	assignments, err := svc.ListAssignments(ctx, activity.AssignmentFilter{ParentActivityID: draft.ID})
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestMathQuizScenario(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tpl, err := svc.CreateActivity(ctx, CreateActivityInput{Title: "Math Quiz", Subject: "math", CreatedBy: "teacher-1"})
	require.NoError(t, err)

	assignments, err := svc.AssignToStudents(ctx, tpl.ID, []string{"ana", "luis", "sofia"})
	require.NoError(t, err)
	require.Len(t, assignments, 3)

	_, err = svc.UpdateProgress(ctx, tpl.ID, "ana", 100)
	require.NoError(t, err)
	_, err = svc.UpdateProgress(ctx, tpl.ID, "luis", 40)
	require.NoError(t, err)

	all, err := svc.ListAssignments(ctx, activity.AssignmentFilter{ParentActivityID: tpl.ID})
	require.NoError(t, err)

	byStudent := map[string]activity.Status{}
	for _, a := range all {
		byStudent[a.AssignedTo] = a.Status
	}
	assert.Equal(t, activity.StatusCompleted, byStudent["ana"])
	assert.Equal(t, activity.StatusInProgress, byStudent["luis"])
	assert.Equal(t, activity.StatusAssigned, byStudent["sofia"])
}
