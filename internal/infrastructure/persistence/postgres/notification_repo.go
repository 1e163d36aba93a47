package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/kary-hub/kary-sync-engine/internal/domain/notification"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// NotificationRepository implements notification.Repository for PostgreSQL.
type NotificationRepository struct {
	conn *Connection
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(conn *Connection) *NotificationRepository {
	return &NotificationRepository{conn: conn}
}

const notificationColumns = `id, recipient_key, recipient_role, type, title,
	message, data, priority, read, created_at, read_at, version`

// Create stores a new notification.
func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	query := `
		INSERT INTO notifications (
			id, recipient_key, recipient_role, type, title,
			message, data, priority, read, created_at, read_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
	`

	dataJSON, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal notification data: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		n.ID,
		n.RecipientKey,
		string(n.RecipientRole),
		string(n.Type),
		n.Title,
		n.Message,
		dataJSON,
		string(n.Priority),
		n.Read,
		n.CreatedAt,
		n.ReadAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("notification", "Create", shared.ErrAlreadyExists, "notification already exists")
		}
		return fmt.Errorf("failed to create notification: %w", err)
	}

	n.Version = 1
	return nil
}

// GetByID returns a notification by ID.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*notification.Notification, error) {
	query := fmt.Sprintf("SELECT %s FROM notifications WHERE id = $1", notificationColumns)
	row := r.conn.QueryRow(ctx, query, id)
	return r.scanNotification(row)
}

// Update overwrites an existing notification with a compare-and-swap on
// version. Only the read state is mutable after creation.
func (r *NotificationRepository) Update(ctx context.Context, n *notification.Notification) error {
	query := `
		UPDATE notifications SET
			read = $1,
			read_at = $2,
			version = version + 1
		WHERE id = $3 AND version = $4
	`

	result, err := r.conn.Exec(ctx, query,
		n.Read,
		n.ReadAt,
		n.ID,
		n.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.conn.resolveUpdateMiss(ctx, "notifications", n.ID, shared.ErrNotificationNotFound)
	}

	n.Version++
	return nil
}

// Delete removes a notification.
func (r *NotificationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, "DELETE FROM notifications WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotificationNotFound
	}
	return nil
}

// List returns every notification matching the filter, newest first.
func (r *NotificationRepository) List(ctx context.Context, filter notification.Filter) ([]*notification.Notification, error) {
	var (
		clauses []string
		args    []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.RecipientKey != "" {
		clauses = append(clauses, "recipient_key = "+arg(filter.RecipientKey))
	}
	if filter.Type != "" {
		clauses = append(clauses, "type = "+arg(string(filter.Type)))
	}
	if filter.Priority != "" {
		clauses = append(clauses, "priority = "+arg(string(filter.Priority)))
	}
	if filter.OnlyUnread {
		clauses = append(clauses, "read = FALSE")
	}

	query := fmt.Sprintf("SELECT %s FROM notifications", notificationColumns)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var result []*notification.Notification
	for rows.Next() {
		n, err := r.scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *NotificationRepository) scanNotification(row pgx.Row) (*notification.Notification, error) {
	var (
		n        notification.Notification
		role     string
		kind     string
		priority string
		dataJSON []byte
	)

	err := row.Scan(
		&n.ID,
		&n.RecipientKey,
		&role,
		&kind,
		&n.Title,
		&n.Message,
		&dataJSON,
		&priority,
		&n.Read,
		&n.CreatedAt,
		&n.ReadAt,
		&n.Version,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}

	n.RecipientRole = notification.RecipientRole(role)
	n.Type = notification.Kind(kind)
	n.Priority = notification.Priority(priority)
	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &n.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification data: %w", err)
		}
	}
	return &n, nil
}
