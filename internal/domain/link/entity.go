// Package link contains the parent-to-student account linking workflow: a
// small approval state machine over link requests plus the active links
// that approvals create.
package link

import (
	"crypto/rand"
	"time"

	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

// RequestStatus is the state of a link request. pending is the only
// non-terminal state; every transition out of it is one-way.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
	StatusExpired  RequestStatus = "expired"
)

// IsValid reports whether the status is known.
func (s RequestStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is permitted.
func (s RequestStatus) IsTerminal() bool {
	return s != StatusPending
}

// PendingTTL is how long a request may stay pending before the cleanup
// sweep expires it.
const PendingTTL = 7 * 24 * time.Hour

// codeAlphabet excludes nothing; the legacy platform used plain
// alphanumerics for verification codes.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// codeLength is the verification code length.
const codeLength = 6

// NewVerificationCode generates a 6-character alphanumeric code.
func NewVerificationCode() string {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken; fall back to a
		// constant rather than panic in a domain constructor.
		return "000000"
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}

// ══════════════════════════════════════════════════════════════════════════════
// LINK REQUEST
// ══════════════════════════════════════════════════════════════════════════════

// Request is a parent's pending petition to be linked to a student account.
// JSON tags match the legacy kary_unified_data snapshot.
type Request struct {
	ID               string        `json:"id"`
	ParentID         string        `json:"parentId"`
	StudentID        string        `json:"studentId"`
	Relationship     string        `json:"relationship"`
	VerificationCode string        `json:"verificationCode"`
	Status           RequestStatus `json:"status"`

	CreatedAt    time.Time  `json:"createdAt"`
	ApprovedAt   *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy   string     `json:"approvedBy,omitempty"`
	RejectedAt   *time.Time `json:"rejectedAt,omitempty"`
	RejectedBy   string     `json:"rejectedBy,omitempty"`
	RejectReason string     `json:"rejectReason,omitempty"`
	ExpiredAt    *time.Time `json:"expiredAt,omitempty"`

	// Version supports optimistic locking in versioned stores.
	Version int64 `json:"-"`
}

// relationships are the kinships the dashboards offer when a parent files
// a request.
var relationships = map[string]bool{
	"madre": true,
	"padre": true,
	"tutor": true,
	"otro":  true,
}

// ValidateRelationship rejects kinship labels outside the fixed set.
func ValidateRelationship(relationship string) error {
	if !relationships[relationship] {
		return shared.ErrLinkRelationshipType
	}
	return nil
}

// NewRequest creates a pending request with a fresh verification code.
func NewRequest(id, parentID, studentID, relationship string, now time.Time) *Request {
	return &Request{
		ID:               id,
		ParentID:         parentID,
		StudentID:        studentID,
		Relationship:     relationship,
		VerificationCode: NewVerificationCode(),
		Status:           StatusPending,
		CreatedAt:        now,
	}
}

// Approve transitions pending → approved. Calling it on a resolved request
// returns shared.ErrLinkRequestResolved and changes nothing.
func (r *Request) Approve(approvedBy string, now time.Time) error {
	if r.Status.IsTerminal() {
		return shared.ErrLinkRequestResolved
	}
	r.Status = StatusApproved
	t := now
	r.ApprovedAt = &t
	r.ApprovedBy = approvedBy
	return nil
}

// Reject transitions pending → rejected. Calling it on a resolved request
// returns shared.ErrLinkRequestResolved and changes nothing.
func (r *Request) Reject(reason, rejectedBy string, now time.Time) error {
	if r.Status.IsTerminal() {
		return shared.ErrLinkRequestResolved
	}
	r.Status = StatusRejected
	t := now
	r.RejectedAt = &t
	r.RejectedBy = rejectedBy
	r.RejectReason = reason
	return nil
}

// ExpireIfStale transitions pending → expired when the request is older
// than PendingTTL. Resolved requests are never touched regardless of age.
func (r *Request) ExpireIfStale(now time.Time) bool {
	if r.Status != StatusPending {
		return false
	}
	if now.Sub(r.CreatedAt) <= PendingTTL {
		return false
	}
	r.Status = StatusExpired
	t := now
	r.ExpiredAt = &t
	return true
}

// Clone returns a deep copy.
func (r *Request) Clone() *Request {
	cp := *r
	if r.ApprovedAt != nil {
		t := *r.ApprovedAt
		cp.ApprovedAt = &t
	}
	if r.RejectedAt != nil {
		t := *r.RejectedAt
		cp.RejectedAt = &t
	}
	if r.ExpiredAt != nil {
		t := *r.ExpiredAt
		cp.ExpiredAt = &t
	}
	return &cp
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVE LINK
// ══════════════════════════════════════════════════════════════════════════════

// ActiveLink records an approved parent-student association. One exists if
// and only if some request for the pair reached approved.
type ActiveLink struct {
	ID           string    `json:"id"`
	RequestID    string    `json:"requestId"`
	ParentID     string    `json:"parentId"`
	StudentID    string    `json:"studentId"`
	Relationship string    `json:"relationship"`
	LinkedAt     time.Time `json:"linkedAt"`
}

// NewActiveLink materializes the link an approval creates.
func NewActiveLink(id string, req *Request, now time.Time) *ActiveLink {
	return &ActiveLink{
		ID:           id,
		RequestID:    req.ID,
		ParentID:     req.ParentID,
		StudentID:    req.StudentID,
		Relationship: req.Relationship,
		LinkedAt:     now,
	}
}

// Clone returns a copy.
func (l *ActiveLink) Clone() *ActiveLink {
	cp := *l
	return &cp
}
