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

// SubjectRepository manages persistence for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

const subjectColumns = `id, code, name, hours_per_week, course_type, department, semester, requires_consecutive_periods, max_periods_per_day, active, created_at, updated_at`

// List returns all active subjects ordered by code.
func (r *SubjectRepository) List(ctx context.Context) ([]models.Subject, error) {
	query := fmt.Sprintf(`SELECT %s FROM subjects WHERE active = TRUE ORDER BY code`, subjectColumns)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// ListByIDs fetches subjects whose id is in the given set.
func (r *SubjectRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Subject, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM subjects WHERE id IN (?)`, subjectColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build subject id query: %w", err)
	}
	query = r.db.Rebind(query)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, fmt.Errorf("list subjects by id: %w", err)
	}
	return subjects, nil
}

// FindByID fetches a subject by ID.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	query := fmt.Sprintf(`SELECT %s FROM subjects WHERE id = $1`, subjectColumns)
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	return &subject, nil
}

// Create inserts a new subject record.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	const query = `INSERT INTO subjects (id, code, name, hours_per_week, course_type, department, semester, requires_consecutive_periods, max_periods_per_day, active, created_at, updated_at)
		VALUES (:id, :code, :name, :hours_per_week, :course_type, :department, :semester, :requires_consecutive_periods, :max_periods_per_day, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update modifies an existing subject record.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET code = :code, name = :name, hours_per_week = :hours_per_week,
		course_type = :course_type, department = :department, semester = :semester,
		requires_consecutive_periods = :requires_consecutive_periods, max_periods_per_day = :max_periods_per_day,
		active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return nil
}

// SubjectsOfGroup returns the subjects a group must study this term, per
// the subject_class_assignments join.
func (r *SubjectRepository) SubjectsOfGroup(ctx context.Context, groupID string) ([]models.Subject, error) {
	query := fmt.Sprintf(`SELECT s.id, s.code, s.name, s.hours_per_week, s.course_type, s.department, s.semester,
		s.requires_consecutive_periods, s.max_periods_per_day, s.active, s.created_at, s.updated_at
		FROM subjects s
		JOIN subject_class_assignments sca ON sca.subject_id = s.id
		WHERE sca.group_id = $1 AND s.active = TRUE ORDER BY s.code`)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, groupID); err != nil {
		return nil, fmt.Errorf("subjects of group: %w", err)
	}
	return subjects, nil
}
