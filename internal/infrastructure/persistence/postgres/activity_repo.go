package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kary-hub/kary-sync-engine/internal/domain/activity"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ActivityRepository implements activity.Repository for PostgreSQL.
// Templates and assignments live in separate tables; the snapshot codec
// commingles them again on export.
type ActivityRepository struct {
	conn *Connection
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(conn *Connection) *ActivityRepository {
	return &ActivityRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Templates
// ─────────────────────────────────────────────────────────────────────────────

const templateColumns = `id, title, description, subject, grade, category, due_date,
	created_by, assigned_student_ids, status, created_at, updated_at, version`

// CreateTemplate stores a new activity template.
func (r *ActivityRepository) CreateTemplate(ctx context.Context, a *activity.Activity) error {
	query := `
		INSERT INTO activity_templates (
			id, title, description, subject, grade, category, due_date,
			created_by, assigned_student_ids, status, created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)
	`

	idsJSON, err := marshalStrings(a.AssignedStudentIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal assigned student ids: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		a.ID,
		a.Title,
		a.Description,
		a.Subject,
		a.Grade,
		a.Category,
		a.DueDate,
		a.CreatedBy,
		idsJSON,
		string(a.Status),
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("activity", "CreateTemplate", shared.ErrAlreadyExists, "template already exists")
		}
		return fmt.Errorf("failed to create template: %w", err)
	}

	a.Version = 1
	return nil
}

// GetTemplate returns a template by ID.
func (r *ActivityRepository) GetTemplate(ctx context.Context, id string) (*activity.Activity, error) {
	query := fmt.Sprintf("SELECT %s FROM activity_templates WHERE id = $1", templateColumns)
	row := r.conn.QueryRow(ctx, query, id)
	return r.scanTemplate(row)
}

// UpdateTemplate overwrites an existing template with a compare-and-swap
// on version.
func (r *ActivityRepository) UpdateTemplate(ctx context.Context, a *activity.Activity) error {
	query := `
		UPDATE activity_templates SET
			title = $1,
			description = $2,
			subject = $3,
			grade = $4,
			category = $5,
			due_date = $6,
			assigned_student_ids = $7,
			status = $8,
			updated_at = $9,
			version = version + 1
		WHERE id = $10 AND version = $11
	`

	idsJSON, err := marshalStrings(a.AssignedStudentIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal assigned student ids: %w", err)
	}

	result, err := r.conn.Exec(ctx, query,
		a.Title,
		a.Description,
		a.Subject,
		a.Grade,
		a.Category,
		a.DueDate,
		idsJSON,
		string(a.Status),
		time.Now().UTC(),
		a.ID,
		a.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.conn.resolveUpdateMiss(ctx, "activity_templates", a.ID, shared.ErrActivityNotFound)
	}

	a.Version++
	return nil
}

// DeleteTemplate removes a template.
func (r *ActivityRepository) DeleteTemplate(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, "DELETE FROM activity_templates WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrActivityNotFound
	}
	return nil
}

// ListTemplates returns every template matching the filter.
func (r *ActivityRepository) ListTemplates(ctx context.Context, filter activity.TemplateFilter) ([]*activity.Activity, error) {
	var (
		clauses []string
		args    []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CreatedBy != "" {
		clauses = append(clauses, "created_by = "+arg(filter.CreatedBy))
	}
	if filter.Subject != "" {
		clauses = append(clauses, "subject = "+arg(filter.Subject))
	}
	if filter.Grade != "" {
		clauses = append(clauses, "grade = "+arg(filter.Grade))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = "+arg(string(filter.Status)))
	}

	query := fmt.Sprintf("SELECT %s FROM activity_templates", templateColumns)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var result []*activity.Activity
	for rows.Next() {
		t, err := r.scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *ActivityRepository) scanTemplate(row pgx.Row) (*activity.Activity, error) {
	var (
		a       activity.Activity
		status  string
		idsJSON []byte
	)

	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Description,
		&a.Subject,
		&a.Grade,
		&a.Category,
		&a.DueDate,
		&a.CreatedBy,
		&idsJSON,
		&status,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.Version,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to scan template: %w", err)
	}

	a.Status = activity.Status(status)
	if len(idsJSON) > 0 {
		if err := json.Unmarshal(idsJSON, &a.AssignedStudentIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal assigned student ids: %w", err)
		}
	}
	if len(a.AssignedStudentIDs) == 0 {
		a.AssignedStudentIDs = nil
	}
	return &a, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Assignments
// ─────────────────────────────────────────────────────────────────────────────

const assignmentColumns = `id, parent_activity_id, assigned_to, title, description,
	subject, grade, category, due_date, created_by, progress, status,
	submissions, feedback, assigned_at, updated_at, completed_at, version`

// CreateAssignment stores a new assignment clone. The unique index on
// (parent_activity_id, assigned_to) enforces one clone per pair.
func (r *ActivityRepository) CreateAssignment(ctx context.Context, a *activity.Assignment) error {
	query := `
		INSERT INTO assignments (
			id, parent_activity_id, assigned_to, title, description,
			subject, grade, category, due_date, created_by, progress, status,
			submissions, feedback, assigned_at, updated_at, completed_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, 1)
	`

	subsJSON, feedbackJSON, err := marshalAssignmentParts(a)
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(ctx, query,
		a.ID,
		a.ParentActivityID,
		a.AssignedTo,
		a.Title,
		a.Description,
		a.Subject,
		a.Grade,
		a.Category,
		a.DueDate,
		a.CreatedBy,
		a.Progress,
		string(a.Status),
		subsJSON,
		feedbackJSON,
		a.AssignedAt,
		a.UpdatedAt,
		a.CompletedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateAssignment
		}
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	a.Version = 1
	return nil
}

// GetAssignment returns an assignment by ID.
func (r *ActivityRepository) GetAssignment(ctx context.Context, id string) (*activity.Assignment, error) {
	query := fmt.Sprintf("SELECT %s FROM assignments WHERE id = $1", assignmentColumns)
	row := r.conn.QueryRow(ctx, query, id)
	return r.scanAssignment(row)
}

// FindAssignment locates the unique assignment for a (template, student)
// pair.
func (r *ActivityRepository) FindAssignment(ctx context.Context, parentActivityID, studentID string) (*activity.Assignment, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM assignments WHERE parent_activity_id = $1 AND assigned_to = $2",
		assignmentColumns,
	)
	row := r.conn.QueryRow(ctx, query, parentActivityID, studentID)
	return r.scanAssignment(row)
}

// UpdateAssignment overwrites an existing assignment with a
// compare-and-swap on version.
func (r *ActivityRepository) UpdateAssignment(ctx context.Context, a *activity.Assignment) error {
	query := `
		UPDATE assignments SET
			progress = $1,
			status = $2,
			submissions = $3,
			feedback = $4,
			updated_at = $5,
			completed_at = $6,
			version = version + 1
		WHERE id = $7 AND version = $8
	`

	subsJSON, feedbackJSON, err := marshalAssignmentParts(a)
	if err != nil {
		return err
	}

	result, err := r.conn.Exec(ctx, query,
		a.Progress,
		string(a.Status),
		subsJSON,
		feedbackJSON,
		time.Now().UTC(),
		a.CompletedAt,
		a.ID,
		a.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.conn.resolveUpdateMiss(ctx, "assignments", a.ID, shared.ErrAssignmentNotFound)
	}

	a.Version++
	return nil
}

// DeleteAssignmentsByTemplate removes every assignment cloned from the
// template.
func (r *ActivityRepository) DeleteAssignmentsByTemplate(ctx context.Context, parentActivityID string) error {
	_, err := r.conn.Exec(ctx, "DELETE FROM assignments WHERE parent_activity_id = $1", parentActivityID)
	if err != nil {
		return fmt.Errorf("failed to delete assignments: %w", err)
	}
	return nil
}

// ListAssignments returns every assignment matching the filter.
func (r *ActivityRepository) ListAssignments(ctx context.Context, filter activity.AssignmentFilter) ([]*activity.Assignment, error) {
	var (
		clauses []string
		args    []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ParentActivityID != "" {
		clauses = append(clauses, "parent_activity_id = "+arg(filter.ParentActivityID))
	}
	if filter.AssignedTo != "" {
		clauses = append(clauses, "assigned_to = "+arg(filter.AssignedTo))
	}
	if filter.CreatedBy != "" {
		clauses = append(clauses, "created_by = "+arg(filter.CreatedBy))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = "+arg(string(filter.Status)))
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = "+arg(filter.Category))
	}

	query := fmt.Sprintf("SELECT %s FROM assignments", assignmentColumns)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY assigned_at"

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var result []*activity.Assignment
	for rows.Next() {
		a, err := r.scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *ActivityRepository) scanAssignment(row pgx.Row) (*activity.Assignment, error) {
	var (
		a            activity.Assignment
		status       string
		subsJSON     []byte
		feedbackJSON []byte
	)

	err := row.Scan(
		&a.ID,
		&a.ParentActivityID,
		&a.AssignedTo,
		&a.Title,
		&a.Description,
		&a.Subject,
		&a.Grade,
		&a.Category,
		&a.DueDate,
		&a.CreatedBy,
		&a.Progress,
		&status,
		&subsJSON,
		&feedbackJSON,
		&a.AssignedAt,
		&a.UpdatedAt,
		&a.CompletedAt,
		&a.Version,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to scan assignment: %w", err)
	}

	a.Status = activity.Status(status)
	if len(subsJSON) > 0 {
		if err := json.Unmarshal(subsJSON, &a.Submissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal submissions: %w", err)
		}
	}
	if len(a.Submissions) == 0 {
		a.Submissions = nil
	}
	if len(feedbackJSON) > 0 {
		if err := json.Unmarshal(feedbackJSON, &a.Feedback); err != nil {
			return nil, fmt.Errorf("failed to unmarshal feedback: %w", err)
		}
	}
	return &a, nil
}

func marshalAssignmentParts(a *activity.Assignment) ([]byte, []byte, error) {
	subs := a.Submissions
	if subs == nil {
		subs = []activity.Submission{}
	}
	subsJSON, err := json.Marshal(subs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal submissions: %w", err)
	}

	var feedbackJSON []byte
	if a.Feedback != nil {
		feedbackJSON, err = json.Marshal(a.Feedback)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal feedback: %w", err)
		}
	}
	return subsJSON, feedbackJSON, nil
}
