package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kary-hub/kary-sync-engine/internal/domain/activity"
	"github.com/kary-hub/kary-sync-engine/internal/domain/notification"
	"github.com/kary-hub/kary-sync-engine/internal/domain/person"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
)

func TestStore_UnifiedRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	ctx := context.Background()

	doc := &UnifiedData{}
	doc.SetPersons([]*person.Person{
		{ID: "teacher-1", Role: person.RoleTeacher, Name: "Laura", AssignedStudents: []string{"student-1"}},
		{ID: "student-1", Role: person.RoleStudent, Name: "Ana", TeacherID: "teacher-1", Grade: "5A"},
	})
	assert.NoError(t, store.SaveUnified(ctx, doc))
	assert.False(t, doc.LastUpdate.IsZero())

	loaded, err := store.LoadUnified(ctx)
	assert.NoError(t, err)
	assert.Len(t, loaded.Students, 1)
	assert.Len(t, loaded.Teachers, 1)
	assert.Equal(t, "teacher-1", loaded.Students[0].TeacherID)
	assert.Len(t, loaded.Persons(), 2)
}

func TestStore_MissingFileIsEmptyNotError(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	ctx := context.Background()

	doc, err := store.LoadUnified(ctx)
	assert.NoError(t, err)
	assert.Empty(t, doc.Persons())

	items, err := store.LoadNotifications(ctx)
	assert.NoError(t, err)
	assert.Nil(t, items)
}

func TestStore_CorruptFileReported(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)
	ctx := context.Background()

	assert.NoError(t, os.WriteFile(filepath.Join(dir, UnifiedDataFile), []byte("{not json"), 0o644))

	_, err := store.LoadUnified(ctx)
	assert.ErrorIs(t, err, shared.ErrSnapshotCorrupt)
}

func TestStore_ActivitiesSplitByAssignedTo(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	tpl := &activity.Activity{
		ID:                 "act-1",
		Title:              "Math Quiz",
		CreatedBy:          "teacher-1",
		AssignedStudentIDs: []string{"student-1"},
		Status:             activity.StatusAssigned,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	assign := activity.NewAssignment("assign-1", tpl, "student-1", now)

	assert.NoError(t, store.SaveActivities(ctx, &ActivityData{
		Templates:   []*activity.Activity{tpl},
		Assignments: []*activity.Assignment{assign},
	}))

	loaded, err := store.LoadActivities(ctx)
	assert.NoError(t, err)
	assert.Len(t, loaded.Templates, 1)
	assert.Len(t, loaded.Assignments, 1)
	assert.Equal(t, "act-1", loaded.Templates[0].ID)
	assert.Equal(t, "student-1", loaded.Assignments[0].AssignedTo)
	assert.Equal(t, "act-1", loaded.Assignments[0].ParentActivityID)
}

func TestStore_NotificationsRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	items := []*notification.Notification{
		{
			ID:           "notif-1",
			RecipientKey: "teacher-student-1",
			Type:         notification.KindCaseCreated,
			Title:        "Nuevo caso",
			Priority:     notification.PriorityHigh,
			CreatedAt:    now,
		},
	}
	assert.NoError(t, store.SaveNotifications(ctx, items))

	loaded, err := store.LoadNotifications(ctx)
	assert.NoError(t, err)
	assert.Len(t, loaded, 1)
	assert.Equal(t, "teacher-student-1", loaded[0].RecipientKey)
	assert.False(t, loaded[0].Read)
}
