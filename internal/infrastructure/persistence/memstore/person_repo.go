// Package memstore provides map-backed repository implementations guarded
// by RWMutex. Values are deep-copied on both write and read so callers can
// never alias stored state. Used in tests and in snapshot-file deployments
// where postgres is not configured.
package memstore

import (
	"context"
	"sync"

	"github.com/kary-hub/kary-sync-engine/internal/domain/person"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
)

// PersonRepository is an in-memory person.Repository.
type PersonRepository struct {
	mu      sync.RWMutex
	byID    map[string]*person.Person
	ordered []string
}

// NewPersonRepository creates an empty repository.
func NewPersonRepository() *PersonRepository {
	return &PersonRepository{
		byID: make(map[string]*person.Person),
	}
}

// Create stores a new person.
func (r *PersonRepository) Create(ctx context.Context, p *person.Person) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[p.ID]; ok {
		return shared.ErrPersonAlreadyExists
	}
	r.byID[p.ID] = p.Clone()
	r.ordered = append(r.ordered, p.ID)
	return nil
}

// GetByID returns a person by ID.
func (r *PersonRepository) GetByID(ctx context.Context, id string) (*person.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrPersonNotFound
	}
	return p.Clone(), nil
}

// Update overwrites an existing person.
func (r *PersonRepository) Update(ctx context.Context, p *person.Person) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[p.ID]; !ok {
		return shared.ErrPersonNotFound
	}
	r.byID[p.ID] = p.Clone()
	return nil
}

// List returns every person matching the filter in insertion order.
func (r *PersonRepository) List(ctx context.Context, filter person.Filter) ([]*person.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*person.Person
	for _, id := range r.ordered {
		if p, ok := r.byID[id]; ok && filter.Matches(p) {
			result = append(result, p.Clone())
		}
	}
	return result, nil
}

// Count returns the number of matching persons.
func (r *PersonRepository) Count(ctx context.Context, filter person.Filter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, p := range r.byID {
		if filter.Matches(p) {
			count++
		}
	}
	return count, nil
}
