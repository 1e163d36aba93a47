package entitystore

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kary-hub/kary-sync-engine/internal/domain/casefile"
	"github.com/kary-hub/kary-sync-engine/internal/domain/person"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
	"github.com/kary-hub/kary-sync-engine/internal/infrastructure/persistence/memstore"
)

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
	return NewService(memstore.NewPersonRepository(), memstore.NewCasefileRepository(), pub, log), pub
}

func mustCreate(t *testing.T, svc *Service, in CreatePersonInput) *person.Person {
	t.Helper()
	p, err := svc.CreatePerson(context.Background(), in)
	require.NoError(t, err)
	return p
}

func TestCreatePerson_PublishesRoleSpecificEvent(t *testing.T) {
	svc, pub := newTestService()

	mustCreate(t, svc, CreatePersonInput{Role: person.RoleTeacher, Name: "Laura"})
	mustCreate(t, svc, CreatePersonInput{Role: person.RoleStudent, Name: "Ana"})

	assert.Len(t, pub.ofType(shared.EventPersonCreated), 1)
	assert.Len(t, pub.ofType(shared.EventStudentCreated), 1)
}

func TestCreatePerson_DanglingReferenceRejected(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreatePerson(context.Background(), CreatePersonInput{
		Role:      person.RoleStudent,
		Name:      "Ana",
		TeacherID: "nobody",
	})
	assert.ErrorIs(t, err, shared.ErrInvalidEntity)
}

func TestCreatePerson_RoleMismatchRejected(t *testing.T) {
	svc, _ := newTestService()

	parent := mustCreate(t, svc, CreatePersonInput{Role: person.RoleParent, Name: "Carmen"})

	// The parent record cannot serve as a teacher reference.
	_, err := svc.CreatePerson(context.Background(), CreatePersonInput{
		Role:      person.RoleStudent,
		Name:      "Ana",
		TeacherID: parent.ID,
	})
	assert.ErrorIs(t, err, shared.ErrRoleMismatch)
}

func TestCreatePerson_ValidStudentReferences(t *testing.T) {
	svc, _ := newTestService()

	teacher := mustCreate(t, svc, CreatePersonInput{Role: person.RoleTeacher, Name: "Laura"})
	psycho := mustCreate(t, svc, CreatePersonInput{Role: person.RolePsychopedagogue, Name: "Jorge"})

	student := mustCreate(t, svc, CreatePersonInput{
		Role:              person.RoleStudent,
		Name:              "Ana",
		TeacherID:         teacher.ID,
		PsychopedagogueID: psycho.ID,
		Grade:             "5B",
	})
	assert.Equal(t, teacher.ID, student.TeacherID)
}

func TestUpdatePerson_NoopPatchPublishesNothing(t *testing.T) {
	svc, pub := newTestService()
	ctx := context.Background()

	p := mustCreate(t, svc, CreatePersonInput{Role: person.RoleTeacher, Name: "Laura"})
	before := len(pub.events)

	same := p.Name
	updated, err := svc.UpdatePerson(ctx, p.ID, PersonPatch{Name: &same})
	require.NoError(t, err)
	assert.Equal(t, "Laura", updated.Name)
	assert.Len(t, pub.events, before)
}

func TestUpdatePerson_RevalidatesReferences(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	teacher := mustCreate(t, svc, CreatePersonInput{Role: person.RoleTeacher, Name: "Laura"})
	student := mustCreate(t, svc, CreatePersonInput{Role: person.RoleStudent, Name: "Ana", TeacherID: teacher.ID})

	bad := "nobody"
	_, err := svc.UpdatePerson(ctx, student.ID, PersonPatch{TeacherID: &bad})
	assert.ErrorIs(t, err, shared.ErrInvalidEntity)

	// The stored record is unchanged after the failed patch.
	got, err := svc.GetPerson(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, teacher.ID, got.TeacherID)
}

func TestCreateCase_RequiresBothRoles(t *testing.T) {
	svc, pub := newTestService()
	ctx := context.Background()

	student := mustCreate(t, svc, CreatePersonInput{Role: person.RoleStudent, Name: "Ana"})
	psycho := mustCreate(t, svc, CreatePersonInput{Role: person.RolePsychopedagogue, Name: "Jorge"})

	_, err := svc.CreateCase(ctx, CreateCaseInput{StudentID: "ghost", PsychopedagogueID: psycho.ID, Title: "x"})
	assert.ErrorIs(t, err, shared.ErrInvalidEntity)

	_, err = svc.CreateCase(ctx, CreateCaseInput{StudentID: student.ID, PsychopedagogueID: student.ID, Title: "x"})
	assert.ErrorIs(t, err, shared.ErrRoleMismatch)

	c, err := svc.CreateCase(ctx, CreateCaseInput{
		StudentID:         student.ID,
		PsychopedagogueID: psycho.ID,
		Title:             "Seguimiento lectura",
	})
	require.NoError(t, err)
	assert.Equal(t, casefile.CaseActive, c.Status)
	assert.Len(t, pub.ofType(shared.EventCaseCreated), 1)
}

func TestUpdateCaseStatus_InvalidStatusRejected(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	student := mustCreate(t, svc, CreatePersonInput{Role: person.RoleStudent, Name: "Ana"})
	psycho := mustCreate(t, svc, CreatePersonInput{Role: person.RolePsychopedagogue, Name: "Jorge"})
	c, err := svc.CreateCase(ctx, CreateCaseInput{StudentID: student.ID, PsychopedagogueID: psycho.ID, Title: "x"})
	require.NoError(t, err)

	_, err = svc.UpdateCaseStatus(ctx, c.ID, casefile.CaseStatus("finished"))
	assert.ErrorIs(t, err, shared.ErrStateTransition)

	updated, err := svc.UpdateCaseStatus(ctx, c.ID, casefile.CaseClosed)
	require.NoError(t, err)
	assert.Equal(t, casefile.CaseClosed, updated.Status)
}

func TestCreatePlan_OptionalCaseMustExist(t *testing.T) {
	svc, pub := newTestService()
	ctx := context.Background()

	student := mustCreate(t, svc, CreatePersonInput{Role: person.RoleStudent, Name: "Ana"})

	_, err := svc.CreatePlan(ctx, CreatePlanInput{StudentID: student.ID, CaseID: "ghost", Title: "x"})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	// Without a case the plan stands alone.
	p, err := svc.CreatePlan(ctx, CreatePlanInput{
		StudentID:  student.ID,
		AuthorID:   "psycho-1",
		Title:      "Plan de lectura",
		Objectives: []string{"leer 20 minutos diarios"},
	})
	require.NoError(t, err)
	assert.Equal(t, casefile.PlanActive, p.Status)
	assert.Len(t, pub.ofType(shared.EventSupportPlanCreated), 1)
}

func TestUpdatePlanStatus_StampsCompletedAtOnce(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	student := mustCreate(t, svc, CreatePersonInput{Role: person.RoleStudent, Name: "Ana"})
	p, err := svc.CreatePlan(ctx, CreatePlanInput{StudentID: student.ID, Title: "Plan"})
	require.NoError(t, err)

	done, err := svc.UpdatePlanStatus(ctx, p.ID, casefile.PlanCompleted)
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	completedAt := *done.CompletedAt

	archived, err := svc.UpdatePlanStatus(ctx, p.ID, casefile.PlanArchived)
	require.NoError(t, err)
	require.NotNil(t, archived.CompletedAt)
	assert.Equal(t, completedAt, *archived.CompletedAt)
}
