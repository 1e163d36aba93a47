package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kary-hub/kary-sync-engine/internal/domain/link"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LINK REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LinkRepository implements link.Repository for PostgreSQL.
type LinkRepository struct {
	conn *Connection
}

// NewLinkRepository creates a new LinkRepository.
func NewLinkRepository(conn *Connection) *LinkRepository {
	return &LinkRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Requests
// ─────────────────────────────────────────────────────────────────────────────

const requestColumns = `id, parent_id, student_id, relationship, verification_code,
	status, created_at, approved_at, approved_by, rejected_at, rejected_by,
	reject_reason, expired_at, version`

// CreateRequest stores a new link request.
func (r *LinkRepository) CreateRequest(ctx context.Context, req *link.Request) error {
	query := `
		INSERT INTO link_requests (
			id, parent_id, student_id, relationship, verification_code,
			status, created_at, approved_at, approved_by, rejected_at,
			rejected_by, reject_reason, expired_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1)
	`

	_, err := r.conn.Exec(ctx, query,
		req.ID,
		req.ParentID,
		req.StudentID,
		req.Relationship,
		req.VerificationCode,
		string(req.Status),
		req.CreatedAt,
		req.ApprovedAt,
		req.ApprovedBy,
		req.RejectedAt,
		req.RejectedBy,
		req.RejectReason,
		req.ExpiredAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("link", "CreateRequest", shared.ErrAlreadyExists, "link request already exists")
		}
		return fmt.Errorf("failed to create link request: %w", err)
	}

	req.Version = 1
	return nil
}

// GetRequest returns a request by ID.
func (r *LinkRepository) GetRequest(ctx context.Context, id string) (*link.Request, error) {
	query := fmt.Sprintf("SELECT %s FROM link_requests WHERE id = $1", requestColumns)
	row := r.conn.QueryRow(ctx, query, id)
	return r.scanRequest(row)
}

// UpdateRequest overwrites an existing request with a compare-and-swap on
// version. Only the resolution fields change after creation.
func (r *LinkRepository) UpdateRequest(ctx context.Context, req *link.Request) error {
	query := `
		UPDATE link_requests SET
			status = $1,
			approved_at = $2,
			approved_by = $3,
			rejected_at = $4,
			rejected_by = $5,
			reject_reason = $6,
			expired_at = $7,
			version = version + 1
		WHERE id = $8 AND version = $9
	`

	result, err := r.conn.Exec(ctx, query,
		string(req.Status),
		req.ApprovedAt,
		req.ApprovedBy,
		req.RejectedAt,
		req.RejectedBy,
		req.RejectReason,
		req.ExpiredAt,
		req.ID,
		req.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update link request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.conn.resolveUpdateMiss(ctx, "link_requests", req.ID, shared.ErrLinkRequestNotFound)
	}

	req.Version++
	return nil
}

// ListRequests returns every request matching the filter.
func (r *LinkRepository) ListRequests(ctx context.Context, filter link.RequestFilter) ([]*link.Request, error) {
	var (
		clauses []string
		args    []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ParentID != "" {
		clauses = append(clauses, "parent_id = "+arg(filter.ParentID))
	}
	if filter.StudentID != "" {
		clauses = append(clauses, "student_id = "+arg(filter.StudentID))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = "+arg(string(filter.Status)))
	}

	query := fmt.Sprintf("SELECT %s FROM link_requests", requestColumns)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list link requests: %w", err)
	}
	defer rows.Close()

	var result []*link.Request
	for rows.Next() {
		req, err := r.scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

func (r *LinkRepository) scanRequest(row pgx.Row) (*link.Request, error) {
	var (
		req    link.Request
		status string
	)

	err := row.Scan(
		&req.ID,
		&req.ParentID,
		&req.StudentID,
		&req.Relationship,
		&req.VerificationCode,
		&status,
		&req.CreatedAt,
		&req.ApprovedAt,
		&req.ApprovedBy,
		&req.RejectedAt,
		&req.RejectedBy,
		&req.RejectReason,
		&req.ExpiredAt,
		&req.Version,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLinkRequestNotFound
		}
		return nil, fmt.Errorf("failed to scan link request: %w", err)
	}

	req.Status = link.RequestStatus(status)
	return &req, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Active links
// ─────────────────────────────────────────────────────────────────────────────

const linkColumns = `id, request_id, parent_id, student_id, relationship, linked_at`

// CreateLink stores a new active link. The unique index on
// (parent_id, student_id) enforces one link per pair.
func (r *LinkRepository) CreateLink(ctx context.Context, l *link.ActiveLink) error {
	query := `
		INSERT INTO active_links (
			id, request_id, parent_id, student_id, relationship, linked_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	linkedAt := l.LinkedAt
	if linkedAt.IsZero() {
		linkedAt = time.Now().UTC()
	}

	_, err := r.conn.Exec(ctx, query,
		l.ID,
		l.RequestID,
		l.ParentID,
		l.StudentID,
		l.Relationship,
		linkedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrLinkAlreadyActive
		}
		return fmt.Errorf("failed to create active link: %w", err)
	}
	return nil
}

// ListLinks returns every active link matching the filter.
func (r *LinkRepository) ListLinks(ctx context.Context, filter link.LinkFilter) ([]*link.ActiveLink, error) {
	var (
		clauses []string
		args    []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ParentID != "" {
		clauses = append(clauses, "parent_id = "+arg(filter.ParentID))
	}
	if filter.StudentID != "" {
		clauses = append(clauses, "student_id = "+arg(filter.StudentID))
	}

	query := fmt.Sprintf("SELECT %s FROM active_links", linkColumns)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY linked_at"

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list active links: %w", err)
	}
	defer rows.Close()

	var result []*link.ActiveLink
	for rows.Next() {
		var l link.ActiveLink
		err := rows.Scan(
			&l.ID,
			&l.RequestID,
			&l.ParentID,
			&l.StudentID,
			&l.Relationship,
			&l.LinkedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan active link: %w", err)
		}
		result = append(result, &l)
	}
	return result, rows.Err()
}
