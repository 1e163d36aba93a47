package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kary-hub/kary-sync-engine/internal/domain/person"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERSON REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// PersonRepository implements person.Repository for PostgreSQL.
type PersonRepository struct {
	conn *Connection
}

// NewPersonRepository creates a new PersonRepository.
func NewPersonRepository(conn *Connection) *PersonRepository {
	return &PersonRepository{conn: conn}
}

const personColumns = `id, role, name, email, teacher_id, psychopedagogue_id,
	parent_id, grade, assigned_students, created_at, updated_at, version`

// Create creates a new person.
func (r *PersonRepository) Create(ctx context.Context, p *person.Person) error {
	query := `
		INSERT INTO people (
			id, role, name, email, teacher_id, psychopedagogue_id,
			parent_id, grade, assigned_students, created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
	`

	studentsJSON, err := marshalStrings(p.AssignedStudents)
	if err != nil {
		return fmt.Errorf("failed to marshal assigned students: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		p.ID,
		string(p.Role),
		p.Name,
		p.Email,
		p.TeacherID,
		p.PsychopedagogueID,
		p.ParentID,
		p.Grade,
		studentsJSON,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrPersonAlreadyExists
		}
		return fmt.Errorf("failed to create person: %w", err)
	}

	p.Version = 1
	return nil
}

// GetByID returns a person by ID.
func (r *PersonRepository) GetByID(ctx context.Context, id string) (*person.Person, error) {
	query := fmt.Sprintf("SELECT %s FROM people WHERE id = $1", personColumns)
	row := r.conn.QueryRow(ctx, query, id)
	return r.scanPerson(row)
}

// Update overwrites an existing person with a compare-and-swap on version.
func (r *PersonRepository) Update(ctx context.Context, p *person.Person) error {
	query := `
		UPDATE people SET
			role = $1,
			name = $2,
			email = $3,
			teacher_id = $4,
			psychopedagogue_id = $5,
			parent_id = $6,
			grade = $7,
			assigned_students = $8,
			updated_at = $9,
			version = version + 1
		WHERE id = $10 AND version = $11
	`

	studentsJSON, err := marshalStrings(p.AssignedStudents)
	if err != nil {
		return fmt.Errorf("failed to marshal assigned students: %w", err)
	}

	result, err := r.conn.Exec(ctx, query,
		string(p.Role),
		p.Name,
		p.Email,
		p.TeacherID,
		p.PsychopedagogueID,
		p.ParentID,
		p.Grade,
		studentsJSON,
		time.Now().UTC(),
		p.ID,
		p.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update person: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.conn.resolveUpdateMiss(ctx, "people", p.ID, shared.ErrPersonNotFound)
	}

	p.Version++
	return nil
}

// List returns every person matching the filter.
func (r *PersonRepository) List(ctx context.Context, filter person.Filter) ([]*person.Person, error) {
	query, args := r.buildFilterQuery(fmt.Sprintf("SELECT %s FROM people", personColumns), filter)
	query += " ORDER BY created_at"

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}
	defer rows.Close()

	var result []*person.Person
	for rows.Next() {
		p, err := r.scanPerson(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Count returns the number of matching persons.
func (r *PersonRepository) Count(ctx context.Context, filter person.Filter) (int, error) {
	query, args := r.buildFilterQuery("SELECT COUNT(*) FROM people", filter)

	var count int
	if err := r.conn.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count people: %w", err)
	}
	return count, nil
}

func (r *PersonRepository) buildFilterQuery(base string, filter person.Filter) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Role != "" {
		clauses = append(clauses, "role = "+arg(string(filter.Role)))
	}
	if filter.TeacherID != "" {
		clauses = append(clauses, "teacher_id = "+arg(filter.TeacherID))
	}
	if filter.PsychopedagogueID != "" {
		clauses = append(clauses, "psychopedagogue_id = "+arg(filter.PsychopedagogueID))
	}
	if filter.ParentID != "" {
		clauses = append(clauses, "parent_id = "+arg(filter.ParentID))
	}
	if filter.Grade != "" {
		clauses = append(clauses, "grade = "+arg(filter.Grade))
	}
	if len(filter.IDs) > 0 {
		clauses = append(clauses, "id = ANY("+arg(filter.IDs)+")")
	}

	if len(clauses) == 0 {
		return base, args
	}
	return base + " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *PersonRepository) scanPerson(row pgx.Row) (*person.Person, error) {
	var (
		p            person.Person
		role         string
		studentsJSON []byte
	)

	err := row.Scan(
		&p.ID,
		&role,
		&p.Name,
		&p.Email,
		&p.TeacherID,
		&p.PsychopedagogueID,
		&p.ParentID,
		&p.Grade,
		&studentsJSON,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Version,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrPersonNotFound
		}
		return nil, fmt.Errorf("failed to scan person: %w", err)
	}

	p.Role = person.Role(role)
	if len(studentsJSON) > 0 {
		if err := json.Unmarshal(studentsJSON, &p.AssignedStudents); err != nil {
			return nil, fmt.Errorf("failed to unmarshal assigned students: %w", err)
		}
	}
	if len(p.AssignedStudents) == 0 {
		p.AssignedStudents = nil
	}
	return &p, nil
}
