package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kary-hub/kary-sync-engine/internal/domain/casefile"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CASEFILE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CasefileRepository implements casefile.Repository for PostgreSQL.
type CasefileRepository struct {
	conn *Connection
}

// NewCasefileRepository creates a new CasefileRepository.
func NewCasefileRepository(conn *Connection) *CasefileRepository {
	return &CasefileRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Cases
// ─────────────────────────────────────────────────────────────────────────────

const caseColumns = `id, student_id, psychopedagogue_id, title, description,
	status, created_at, updated_at, version`

// CreateCase stores a new case.
func (r *CasefileRepository) CreateCase(ctx context.Context, c *casefile.Case) error {
	query := `
		INSERT INTO cases (
			id, student_id, psychopedagogue_id, title, description,
			status, created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
	`

	_, err := r.conn.Exec(ctx, query,
		c.ID,
		c.StudentID,
		c.PsychopedagogueID,
		c.Title,
		c.Description,
		string(c.Status),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("casefile", "CreateCase", shared.ErrAlreadyExists, "case already exists")
		}
		return fmt.Errorf("failed to create case: %w", err)
	}

	c.Version = 1
	return nil
}

// GetCase returns a case by ID.
func (r *CasefileRepository) GetCase(ctx context.Context, id string) (*casefile.Case, error) {
	query := fmt.Sprintf("SELECT %s FROM cases WHERE id = $1", caseColumns)
	row := r.conn.QueryRow(ctx, query, id)
	return r.scanCase(row)
}

// UpdateCase overwrites an existing case with a compare-and-swap on
// version.
func (r *CasefileRepository) UpdateCase(ctx context.Context, c *casefile.Case) error {
	query := `
		UPDATE cases SET
			title = $1,
			description = $2,
			status = $3,
			updated_at = $4,
			version = version + 1
		WHERE id = $5 AND version = $6
	`

	result, err := r.conn.Exec(ctx, query,
		c.Title,
		c.Description,
		string(c.Status),
		time.Now().UTC(),
		c.ID,
		c.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update case: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.conn.resolveUpdateMiss(ctx, "cases", c.ID, shared.ErrCaseNotFound)
	}

	c.Version++
	return nil
}

// ListCases returns every case matching the filter.
func (r *CasefileRepository) ListCases(ctx context.Context, filter casefile.CaseFilter) ([]*casefile.Case, error) {
	var (
		clauses []string
		args    []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.StudentID != "" {
		clauses = append(clauses, "student_id = "+arg(filter.StudentID))
	}
	if filter.PsychopedagogueID != "" {
		clauses = append(clauses, "psychopedagogue_id = "+arg(filter.PsychopedagogueID))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = "+arg(string(filter.Status)))
	}

	query := fmt.Sprintf("SELECT %s FROM cases", caseColumns)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var result []*casefile.Case
	for rows.Next() {
		c, err := r.scanCase(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *CasefileRepository) scanCase(row pgx.Row) (*casefile.Case, error) {
	var (
		c      casefile.Case
		status string
	)

	err := row.Scan(
		&c.ID,
		&c.StudentID,
		&c.PsychopedagogueID,
		&c.Title,
		&c.Description,
		&status,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.Version,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCaseNotFound
		}
		return nil, fmt.Errorf("failed to scan case: %w", err)
	}

	c.Status = casefile.CaseStatus(status)
	return &c, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Support plans
// ─────────────────────────────────────────────────────────────────────────────

const planColumns = `id, student_id, case_id, author_id, title, objectives,
	status, created_at, updated_at, completed_at, version`

// CreatePlan stores a new support plan.
func (r *CasefileRepository) CreatePlan(ctx context.Context, p *casefile.SupportPlan) error {
	query := `
		INSERT INTO support_plans (
			id, student_id, case_id, author_id, title, objectives,
			status, created_at, updated_at, completed_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1)
	`

	objectivesJSON, err := marshalStrings(p.Objectives)
	if err != nil {
		return fmt.Errorf("failed to marshal objectives: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		p.ID,
		p.StudentID,
		p.CaseID,
		p.AuthorID,
		p.Title,
		objectivesJSON,
		string(p.Status),
		p.CreatedAt,
		p.UpdatedAt,
		p.CompletedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("casefile", "CreatePlan", shared.ErrAlreadyExists, "support plan already exists")
		}
		return fmt.Errorf("failed to create support plan: %w", err)
	}

	p.Version = 1
	return nil
}

// GetPlan returns a support plan by ID.
func (r *CasefileRepository) GetPlan(ctx context.Context, id string) (*casefile.SupportPlan, error) {
	query := fmt.Sprintf("SELECT %s FROM support_plans WHERE id = $1", planColumns)
	row := r.conn.QueryRow(ctx, query, id)
	return r.scanPlan(row)
}

// UpdatePlan overwrites an existing support plan with a compare-and-swap
// on version.
func (r *CasefileRepository) UpdatePlan(ctx context.Context, p *casefile.SupportPlan) error {
	query := `
		UPDATE support_plans SET
			title = $1,
			objectives = $2,
			status = $3,
			updated_at = $4,
			completed_at = $5,
			version = version + 1
		WHERE id = $6 AND version = $7
	`

	objectivesJSON, err := marshalStrings(p.Objectives)
	if err != nil {
		return fmt.Errorf("failed to marshal objectives: %w", err)
	}

	result, err := r.conn.Exec(ctx, query,
		p.Title,
		objectivesJSON,
		string(p.Status),
		time.Now().UTC(),
		p.CompletedAt,
		p.ID,
		p.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update support plan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.conn.resolveUpdateMiss(ctx, "support_plans", p.ID, shared.ErrSupportPlanNotFound)
	}

	p.Version++
	return nil
}

// ListPlans returns every support plan matching the filter.
func (r *CasefileRepository) ListPlans(ctx context.Context, filter casefile.PlanFilter) ([]*casefile.SupportPlan, error) {
	var (
		clauses []string
		args    []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.StudentID != "" {
		clauses = append(clauses, "student_id = "+arg(filter.StudentID))
	}
	if filter.CaseID != "" {
		clauses = append(clauses, "case_id = "+arg(filter.CaseID))
	}
	if filter.AuthorID != "" {
		clauses = append(clauses, "author_id = "+arg(filter.AuthorID))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = "+arg(string(filter.Status)))
	}

	query := fmt.Sprintf("SELECT %s FROM support_plans", planColumns)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list support plans: %w", err)
	}
	defer rows.Close()

	var result []*casefile.SupportPlan
	for rows.Next() {
		p, err := r.scanPlan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *CasefileRepository) scanPlan(row pgx.Row) (*casefile.SupportPlan, error) {
	var (
		p              casefile.SupportPlan
		status         string
		objectivesJSON []byte
	)

	err := row.Scan(
		&p.ID,
		&p.StudentID,
		&p.CaseID,
		&p.AuthorID,
		&p.Title,
		&objectivesJSON,
		&status,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.CompletedAt,
		&p.Version,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSupportPlanNotFound
		}
		return nil, fmt.Errorf("failed to scan support plan: %w", err)
	}

	p.Status = casefile.PlanStatus(status)
	if len(objectivesJSON) > 0 {
		if err := json.Unmarshal(objectivesJSON, &p.Objectives); err != nil {
			return nil, fmt.Errorf("failed to unmarshal objectives: %w", err)
		}
	}
	if len(p.Objectives) == 0 {
		p.Objectives = nil
	}
	return &p, nil
}
