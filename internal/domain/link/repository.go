package link

import (
	"context"
)

// RequestFilter selects link requests by equality on indexed fields.
type RequestFilter struct {
	ParentID  string
	StudentID string
	Status    RequestStatus
}

// Matches reports whether r satisfies every set field.
func (f RequestFilter) Matches(r *Request) bool {
	if f.ParentID != "" && r.ParentID != f.ParentID {
		return false
	}
	if f.StudentID != "" && r.StudentID != f.StudentID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

// LinkFilter selects active links by equality on indexed fields.
type LinkFilter struct {
	ParentID  string
	StudentID string
}

// Matches reports whether l satisfies every set field.
func (f LinkFilter) Matches(l *ActiveLink) bool {
	if f.ParentID != "" && l.ParentID != f.ParentID {
		return false
	}
	if f.StudentID != "" && l.StudentID != f.StudentID {
		return false
	}
	return true
}

// Repository defines the persistence contract for requests and links.
type Repository interface {
	// CreateRequest stores a new link request.
	CreateRequest(ctx context.Context, r *Request) error

	// GetRequest returns a request by ID.
	// Returns shared.ErrLinkRequestNotFound if no record matches.
	GetRequest(ctx context.Context, id string) (*Request, error)

	// UpdateRequest overwrites an existing request.
	UpdateRequest(ctx context.Context, r *Request) error

	// ListRequests returns every request matching the filter.
	ListRequests(ctx context.Context, filter RequestFilter) ([]*Request, error)

	// CreateLink stores a new active link.
	CreateLink(ctx context.Context, l *ActiveLink) error

	// ListLinks returns every active link matching the filter.
	ListLinks(ctx context.Context, filter LinkFilter) ([]*ActiveLink, error)
}
