package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

// GroupRepository manages persistence for student groups.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs a GroupRepository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

const groupColumns = `id, code, strength, department, semester, academic_year, active, created_at, updated_at`

// List returns all active groups ordered by code.
func (r *GroupRepository) List(ctx context.Context) ([]models.StudentGroup, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_groups WHERE active = TRUE ORDER BY code`, groupColumns)
	var groups []models.StudentGroup
	if err := r.db.SelectContext(ctx, &groups, query); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// ListByIDs returns the groups matching ids. Unknown ids are simply absent
// from the result, leaving the caller to detect the gap.
func (r *GroupRepository) ListByIDs(ctx context.Context, ids []string) ([]models.StudentGroup, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM student_groups WHERE id IN (?)`, groupColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build group id query: %w", err)
	}
	query = r.db.Rebind(query)
	var groups []models.StudentGroup
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, fmt.Errorf("list groups by id: %w", err)
	}
	return groups, nil
}

// FindByID fetches a group by ID.
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*models.StudentGroup, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_groups WHERE id = $1`, groupColumns)
	var group models.StudentGroup
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find group: %w", err)
	}
	return &group, nil
}

// Create inserts a new student group record.
func (r *GroupRepository) Create(ctx context.Context, group *models.StudentGroup) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	const query = `INSERT INTO student_groups (id, code, strength, department, semester, academic_year, active, created_at, updated_at)
		VALUES (:id, :code, :strength, :department, :semester, :academic_year, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// Update modifies an existing student group record.
func (r *GroupRepository) Update(ctx context.Context, group *models.StudentGroup) error {
	group.UpdatedAt = time.Now().UTC()
	const query = `UPDATE student_groups SET code = :code, strength = :strength, department = :department,
		semester = :semester, academic_year = :academic_year, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return nil
}
