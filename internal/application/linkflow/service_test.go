package linkflow

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kary-hub/kary-sync-engine/internal/domain/link"
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

func newTestService(t *testing.T) (*Service, person.Repository, *capturePublisher) {
	t.Helper()
	persons := memstore.NewPersonRepository()
	pub := &capturePublisher{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(memstore.NewLinkRepository(), persons, pub, log)

	ctx := context.Background()
	for _, p := range []*person.Person{
		{ID: "parent-1", Role: person.RoleParent, Name: "Carmen"},
		{ID: "student-1", Role: person.RoleStudent, Name: "Ana"},
		{ID: "psycho-1", Role: person.RolePsychopedagogue, Name: "Jorge"},
		{ID: "directive-1", Role: person.RoleDirective, Name: "Marta"},
		{ID: "teacher-1", Role: person.RoleTeacher, Name: "Laura"},
	} {
		require.NoError(t, persons.Create(ctx, p))
	}
	return svc, persons, pub
}

func TestCreateLinkRequest_StartsPendingWithCode(t *testing.T) {
	svc, _, pub := newTestService(t)

	req, err := svc.CreateLinkRequest(context.Background(), "parent-1", "student-1", "madre")
	require.NoError(t, err)
	assert.Equal(t, link.StatusPending, req.Status)
	assert.Len(t, req.VerificationCode, 6)
	assert.Len(t, pub.ofType(shared.EventLinkRequestCreated), 1)
}

func TestCreateLinkRequest_UnknownRelationshipRejected(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateLinkRequest(ctx, "parent-1", "student-1", "primo")
	assert.ErrorIs(t, err, shared.ErrLinkRelationshipType)
	assert.Empty(t, pub.ofType(shared.EventLinkRequestCreated))

	for _, relationship := range []string{"madre", "padre", "tutor", "otro"} {
		req, err := svc.CreateLinkRequest(ctx, "parent-1", "student-1", relationship)
		require.NoError(t, err)
		assert.Equal(t, relationship, req.Relationship)
	}
}

func TestCreateLinkRequest_RoleChecks(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateLinkRequest(ctx, "teacher-1", "student-1", "madre")
	assert.ErrorIs(t, err, shared.ErrRoleMismatch)

	_, err = svc.CreateLinkRequest(ctx, "parent-1", "teacher-1", "madre")
	assert.ErrorIs(t, err, shared.ErrRoleMismatch)

	_, err = svc.CreateLinkRequest(ctx, "ghost", "student-1", "madre")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApprove_CreatesOneActiveLinkAndStampsParent(t *testing.T) {
	svc, persons, pub := newTestService(t)
	ctx := context.Background()

	req, err := svc.CreateLinkRequest(ctx, "parent-1", "student-1", "madre")
	require.NoError(t, err)

	active, err := svc.Approve(ctx, req.ID, "psycho-1")
	require.NoError(t, err)
	assert.Equal(t, "parent-1", active.ParentID)
	assert.Equal(t, "student-1", active.StudentID)
	assert.Equal(t, req.ID, active.RequestID)

	links, err := svc.ListLinks(ctx, link.LinkFilter{ParentID: "parent-1", StudentID: "student-1"})
	require.NoError(t, err)
	assert.Len(t, links, 1)

	student, err := persons.GetByID(ctx, "student-1")
	require.NoError(t, err)
	assert.Equal(t, "parent-1", student.ParentID)

	assert.Len(t, pub.ofType(shared.EventLinkRequestApproved), 1)
}

func TestApprove_DoubleApproveRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	req, err := svc.CreateLinkRequest(ctx, "parent-1", "student-1", "madre")
	require.NoError(t, err)

	_, err = svc.Approve(ctx, req.ID, "psycho-1")
	require.NoError(t, err)

	_, err = svc.Approve(ctx, req.ID, "psycho-1")
	assert.ErrorIs(t, err, shared.ErrAlreadyResolved)

	// Still exactly one active link for the pair.
	links, err := svc.ListLinks(ctx, link.LinkFilter{ParentID: "parent-1", StudentID: "student-1"})
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestApprove_ReviewerRoleEnforced(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	req, err := svc.CreateLinkRequest(ctx, "parent-1", "student-1", "madre")
	require.NoError(t, err)

	_, err = svc.Approve(ctx, req.ID, "teacher-1")
	assert.ErrorIs(t, err, shared.ErrForbidden)

	// Directives can review too.
	_, err = svc.Approve(ctx, req.ID, "directive-1")
	assert.NoError(t, err)
}

func TestReject_RecordsReasonAndBlocksReapproval(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	req, err := svc.CreateLinkRequest(ctx, "parent-1", "student-1", "madre")
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, req.ID, "datos incompletos", "psycho-1")
	require.NoError(t, err)
	assert.Equal(t, link.StatusRejected, rejected.Status)
	assert.Equal(t, "datos incompletos", rejected.RejectReason)

	_, err = svc.Approve(ctx, req.ID, "psycho-1")
	assert.ErrorIs(t, err, shared.ErrAlreadyResolved)
}

func TestCreateLinkRequest_AlreadyLinkedPairRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	req, err := svc.CreateLinkRequest(ctx, "parent-1", "student-1", "madre")
	require.NoError(t, err)
	_, err = svc.Approve(ctx, req.ID, "psycho-1")
	require.NoError(t, err)

	_, err = svc.CreateLinkRequest(ctx, "parent-1", "student-1", "madre")
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestCleanupExpired_OnlyStalePendingRequests(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	fresh, err := svc.CreateLinkRequest(ctx, "parent-1", "student-1", "madre")
	require.NoError(t, err)

	// Age one request past the pending TTL by rewriting its creation time.
	stale := link.NewRequest("linkreq-stale", "parent-1", "student-1", "padre", time.Now().UTC().Add(-8*24*time.Hour))
	require.NoError(t, svcLinks(svc).CreateRequest(ctx, stale))

	// A resolved request older than the TTL must stay untouched.
	resolved := link.NewRequest("linkreq-resolved", "parent-1", "student-1", "tutor", time.Now().UTC().Add(-30*24*time.Hour))
	require.NoError(t, resolved.Reject("sin datos", "psycho-1", time.Now().UTC().Add(-29*24*time.Hour)))
	require.NoError(t, svcLinks(svc).CreateRequest(ctx, resolved))

	expired, err := svc.CleanupExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	got, err := svc.GetRequest(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, link.StatusExpired, got.Status)

	got, err = svc.GetRequest(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, link.StatusPending, got.Status)

	got, err = svc.GetRequest(ctx, resolved.ID)
	require.NoError(t, err)
	assert.Equal(t, link.StatusRejected, got.Status)

	assert.Len(t, pub.ofType(shared.EventLinkRequestExpired), 1)
}

// svcLinks exposes the repository for test seeding.
func svcLinks(s *Service) link.Repository {
	return s.links
}
