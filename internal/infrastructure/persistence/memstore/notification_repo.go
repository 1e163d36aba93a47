package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/kary-hub/kary-sync-engine/internal/domain/notification"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
)

// NotificationRepository is an in-memory notification.Repository.
type NotificationRepository struct {
	mu      sync.RWMutex
	byID    map[string]*notification.Notification
	ordered []string
}

// NewNotificationRepository creates an empty repository.
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{
		byID: make(map[string]*notification.Notification),
	}
}

// Create stores a new notification.
func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[n.ID]; ok {
		return shared.NewDomainError("notification", "Create", shared.ErrAlreadyExists, "notification already exists")
	}
	r.byID[n.ID] = n.Clone()
	r.ordered = append(r.ordered, n.ID)
	return nil
}

// GetByID returns a notification by ID.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*notification.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotificationNotFound
	}
	return n.Clone(), nil
}

// Update overwrites an existing notification.
func (r *NotificationRepository) Update(ctx context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[n.ID]; !ok {
		return shared.ErrNotificationNotFound
	}
	r.byID[n.ID] = n.Clone()
	return nil
}

// Delete removes a notification.
func (r *NotificationRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return shared.ErrNotificationNotFound
	}
	delete(r.byID, id)
	for i, nid := range r.ordered {
		if nid == id {
			r.ordered = append(r.ordered[:i], r.ordered[i+1:]...)
			break
		}
	}
	return nil
}

// List returns every notification matching the filter, newest first.
func (r *NotificationRepository) List(ctx context.Context, filter notification.Filter) ([]*notification.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*notification.Notification
	for _, id := range r.ordered {
		if n, ok := r.byID[id]; ok && filter.Matches(n) {
			result = append(result, n.Clone())
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}
