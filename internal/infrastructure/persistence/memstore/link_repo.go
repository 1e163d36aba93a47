package memstore

import (
	"context"
	"sync"

	"github.com/kary-hub/kary-sync-engine/internal/domain/link"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
)

// LinkRepository is an in-memory link.Repository.
type LinkRepository struct {
	mu sync.RWMutex

	requests     map[string]*link.Request
	requestOrder []string
	links        map[string]*link.ActiveLink
	linkOrder    []string
}

// NewLinkRepository creates an empty repository.
func NewLinkRepository() *LinkRepository {
	return &LinkRepository{
		requests: make(map[string]*link.Request),
		links:    make(map[string]*link.ActiveLink),
	}
}

// CreateRequest stores a new link request.
func (r *LinkRepository) CreateRequest(ctx context.Context, req *link.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.requests[req.ID]; ok {
		return shared.NewDomainError("link", "CreateRequest", shared.ErrAlreadyExists, "link request already exists")
	}
	r.requests[req.ID] = req.Clone()
	r.requestOrder = append(r.requestOrder, req.ID)
	return nil
}

// GetRequest returns a request by ID.
func (r *LinkRepository) GetRequest(ctx context.Context, id string) (*link.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, shared.ErrLinkRequestNotFound
	}
	return req.Clone(), nil
}

// UpdateRequest overwrites an existing request.
func (r *LinkRepository) UpdateRequest(ctx context.Context, req *link.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.requests[req.ID]; !ok {
		return shared.ErrLinkRequestNotFound
	}
	r.requests[req.ID] = req.Clone()
	return nil
}

// ListRequests returns every request matching the filter in insertion
// order.
func (r *LinkRepository) ListRequests(ctx context.Context, filter link.RequestFilter) ([]*link.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*link.Request
	for _, id := range r.requestOrder {
		if req, ok := r.requests[id]; ok && filter.Matches(req) {
			result = append(result, req.Clone())
		}
	}
	return result, nil
}

// CreateLink stores a new active link.
func (r *LinkRepository) CreateLink(ctx context.Context, l *link.ActiveLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.links[l.ID]; ok {
		return shared.NewDomainError("link", "CreateLink", shared.ErrAlreadyExists, "link already exists")
	}
	r.links[l.ID] = l.Clone()
	r.linkOrder = append(r.linkOrder, l.ID)
	return nil
}

// ListLinks returns every active link matching the filter in insertion
// order.
func (r *LinkRepository) ListLinks(ctx context.Context, filter link.LinkFilter) ([]*link.ActiveLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*link.ActiveLink
	for _, id := range r.linkOrder {
		if l, ok := r.links[id]; ok && filter.Matches(l) {
			result = append(result, l.Clone())
		}
	}
	return result, nil
}
