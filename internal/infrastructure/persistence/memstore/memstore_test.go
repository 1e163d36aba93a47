package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kary-hub/kary-sync-engine/internal/domain/activity"
	"github.com/kary-hub/kary-sync-engine/internal/domain/notification"
	"github.com/kary-hub/kary-sync-engine/internal/domain/person"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
)

func TestPersonRepository_ReadsAreIsolatedCopies(t *testing.T) {
	repo := NewPersonRepository()
	ctx := context.Background()

	p := &person.Person{
		ID:               "teacher-1",
		Role:             person.RoleTeacher,
		Name:             "Laura",
		AssignedStudents: []string{"student-1"},
	}
	assert.NoError(t, repo.Create(ctx, p))

	// Mutating the stored-from value must not leak into the store.
	p.Name = "changed"
	p.AssignedStudents[0] = "student-99"

	got, err := repo.GetByID(ctx, "teacher-1")
	assert.NoError(t, err)
	assert.Equal(t, "Laura", got.Name)
	assert.Equal(t, []string{"student-1"}, got.AssignedStudents)

	// Mutating a read result must not leak either.
	got.AssignedStudents = append(got.AssignedStudents, "student-2")
	again, err := repo.GetByID(ctx, "teacher-1")
	assert.NoError(t, err)
	assert.Len(t, again.AssignedStudents, 1)
}

func TestPersonRepository_CreateDuplicateFails(t *testing.T) {
	repo := NewPersonRepository()
	ctx := context.Background()

	p := &person.Person{ID: "student-1", Role: person.RoleStudent, Name: "Ana"}
	assert.NoError(t, repo.Create(ctx, p))
	err := repo.Create(ctx, p)
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestActivityRepository_DuplicateAssignmentRejected(t *testing.T) {
	repo := NewActivityRepository()
	ctx := context.Background()
	now := time.Now()

	tpl := &activity.Activity{ID: "act-1", Title: "Math Quiz", CreatedBy: "teacher-1", Status: activity.StatusAssigned}
	assert.NoError(t, repo.CreateTemplate(ctx, tpl))

	a1 := activity.NewAssignment("assign-1", tpl, "student-1", now)
	assert.NoError(t, repo.CreateAssignment(ctx, a1))

	a2 := activity.NewAssignment("assign-2", tpl, "student-1", now)
	err := repo.CreateAssignment(ctx, a2)
	assert.ErrorIs(t, err, shared.ErrDuplicateAssignment)

	// A different student is fine.
	a3 := activity.NewAssignment("assign-3", tpl, "student-2", now)
	assert.NoError(t, repo.CreateAssignment(ctx, a3))
}

func TestActivityRepository_DeleteAssignmentsByTemplate(t *testing.T) {
	repo := NewActivityRepository()
	ctx := context.Background()
	now := time.Now()

	tpl1 := &activity.Activity{ID: "act-1", Title: "Quiz", CreatedBy: "teacher-1"}
	tpl2 := &activity.Activity{ID: "act-2", Title: "Essay", CreatedBy: "teacher-1"}
	assert.NoError(t, repo.CreateTemplate(ctx, tpl1))
	assert.NoError(t, repo.CreateTemplate(ctx, tpl2))

	assert.NoError(t, repo.CreateAssignment(ctx, activity.NewAssignment("assign-1", tpl1, "student-1", now)))
	assert.NoError(t, repo.CreateAssignment(ctx, activity.NewAssignment("assign-2", tpl1, "student-2", now)))
	assert.NoError(t, repo.CreateAssignment(ctx, activity.NewAssignment("assign-3", tpl2, "student-1", now)))

	assert.NoError(t, repo.DeleteAssignmentsByTemplate(ctx, "act-1"))

	remaining, err := repo.ListAssignments(ctx, activity.AssignmentFilter{})
	assert.NoError(t, err)
	assert.Len(t, remaining, 1)
	assert.Equal(t, "assign-3", remaining[0].ID)
}

func TestNotificationRepository_ListNewestFirst(t *testing.T) {
	repo := NewNotificationRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"n1", "n2", "n3"} {
		n := &notification.Notification{
			ID:           id,
			RecipientKey: "teacher-1",
			Type:         notification.KindCaseCreated,
			Priority:     notification.PriorityHigh,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		assert.NoError(t, repo.Create(ctx, n))
	}

	list, err := repo.List(ctx, notification.Filter{RecipientKey: "teacher-1"})
	assert.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, "n3", list[0].ID)
	assert.Equal(t, "n1", list[2].ID)
}

func TestNotificationRepository_UnreadFilter(t *testing.T) {
	repo := NewNotificationRepository()
	ctx := context.Background()
	now := time.Now()

	read := &notification.Notification{ID: "n1", RecipientKey: "parent-1", Type: notification.KindProgressAlert, CreatedAt: now}
	read.MarkRead(now)
	unread := &notification.Notification{ID: "n2", RecipientKey: "parent-1", Type: notification.KindProgressAlert, CreatedAt: now}

	assert.NoError(t, repo.Create(ctx, read))
	assert.NoError(t, repo.Create(ctx, unread))

	list, err := repo.List(ctx, notification.Filter{RecipientKey: "parent-1", OnlyUnread: true})
	assert.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "n2", list[0].ID)
}
