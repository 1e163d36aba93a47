package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kary-hub/kary-sync-engine/internal/domain/person"
	"github.com/kary-hub/kary-sync-engine/internal/infrastructure/persistence/memstore"
)

func memRepositories() Repositories {
	return Repositories{
		Persons:       memstore.NewPersonRepository(),
		Activities:    memstore.NewActivityRepository(),
		Casefiles:     memstore.NewCasefileRepository(),
		Notifications: memstore.NewNotificationRepository(),
		Links:         memstore.NewLinkRepository(),
	}
}

func TestImport_ReadsRoleKeyedUnifiedData(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)
	ctx := context.Background()

	// A file as the dashboards write it: one array per role.
	doc := `{
		"students": [
			{"id": "student-1", "role": "student", "name": "Ana", "teacherId": "teacher-1", "grade": "5A"}
		],
		"teachers": [
			{"id": "teacher-1", "role": "teacher", "name": "Laura", "assignedStudents": ["student-1"]}
		],
		"psychopedagogues": [],
		"parents": [],
		"directives": [],
		"lastUpdate": "2026-03-10T09:00:00Z"
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, UnifiedDataFile), []byte(doc), 0o644))

	repos := memRepositories()
	require.NoError(t, store.Import(ctx, repos))

	people, err := repos.Persons.List(ctx, person.Filter{})
	require.NoError(t, err)
	assert.Len(t, people, 2)

	student, err := repos.Persons.GetByID(ctx, "student-1")
	require.NoError(t, err)
	assert.Equal(t, person.RoleStudent, student.Role)
	assert.Equal(t, "teacher-1", student.TeacherID)

	teacher, err := repos.Persons.GetByID(ctx, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, person.RoleTeacher, teacher.Role)
}

func TestExport_WritesRoleKeyedUnifiedData(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)
	ctx := context.Background()

	repos := memRepositories()
	require.NoError(t, repos.Persons.Create(ctx, &person.Person{
		ID: "student-1", Role: person.RoleStudent, Name: "Ana",
	}))
	require.NoError(t, repos.Persons.Create(ctx, &person.Person{
		ID: "parent-1", Role: person.RoleParent, Name: "Rosa",
	}))

	require.NoError(t, store.Export(ctx, repos))

	raw, err := os.ReadFile(filepath.Join(dir, UnifiedDataFile))
	require.NoError(t, err)

	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &keys))
	assert.Contains(t, keys, "students")
	assert.Contains(t, keys, "parents")
	assert.NotContains(t, keys, "users")

	loaded, err := store.LoadUnified(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded.Students, 1)
	assert.Len(t, loaded.Parents, 1)
	assert.Equal(t, "parent-1", loaded.Parents[0].ID)
}
