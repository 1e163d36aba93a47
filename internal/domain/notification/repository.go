package notification

import (
	"context"
)

// Filter selects notifications by equality on indexed fields.
type Filter struct {
	// RecipientKey matches the stored recipient key (account ID or legacy
	// scoped key).
	RecipientKey string

	// Type restricts to one kind.
	Type Kind

	// Priority restricts to one priority level.
	Priority Priority

	// OnlyUnread keeps unread notifications only.
	OnlyUnread bool
}

// Matches reports whether n satisfies every set field.
func (f Filter) Matches(n *Notification) bool {
	if f.RecipientKey != "" && n.RecipientKey != f.RecipientKey {
		return false
	}
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	if f.Priority != "" && n.Priority != f.Priority {
		return false
	}
	if f.OnlyUnread && n.Read {
		return false
	}
	return true
}

// Repository defines the persistence contract for notifications.
type Repository interface {
	// Create stores a new notification.
	Create(ctx context.Context, n *Notification) error

	// GetByID returns a notification by ID.
	// Returns shared.ErrNotificationNotFound if no record matches.
	GetByID(ctx context.Context, id string) (*Notification, error)

	// Update overwrites an existing notification.
	Update(ctx context.Context, n *Notification) error

	// Delete removes a notification. Notifications and activities are the
	// only hard-deleted entities.
	Delete(ctx context.Context, id string) error

	// List returns every notification matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]*Notification, error)
}
