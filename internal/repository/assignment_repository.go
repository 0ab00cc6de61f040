package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

// AssignmentRepository manages persistence for teacher-subject eligibility
// and subject-group demand declarations.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs an AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// TeachersOfSubject returns the teachers eligible to teach a subject,
// pre-joined and ordered by priority then code, matching the scheduler's
// value-ordering heuristic for teachers.
func (r *AssignmentRepository) TeachersOfSubject(ctx context.Context, subjectID string) ([]models.EligibleTeacher, error) {
	const query = `SELECT tsa.teacher_id AS teacher_id, t.code AS teacher_code, t.name AS teacher_name, tsa.priority AS priority
		FROM teacher_subject_assignments tsa
		JOIN teachers t ON t.id = tsa.teacher_id
		WHERE tsa.subject_id = $1 AND t.active = TRUE
		ORDER BY tsa.priority ASC, t.code ASC`
	var teachers []models.EligibleTeacher
	if err := r.db.SelectContext(ctx, &teachers, query, subjectID); err != nil {
		return nil, fmt.Errorf("teachers of subject: %w", err)
	}
	return teachers, nil
}

// GroupSubjectDemand lists each (group, subject) pair a group must satisfy
// this term, as raw subject_class_assignments rows; the subject's weekly
// hour demand is not joined in.
func (r *AssignmentRepository) GroupSubjectDemand(ctx context.Context, groupIDs []string) ([]models.SubjectClassAssignment, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, subject_id, group_id, created_at FROM subject_class_assignments WHERE group_id IN (?)`, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("build demand query: %w", err)
	}
	query = r.db.Rebind(query)
	var assignments []models.SubjectClassAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("group subject demand: %w", err)
	}
	return assignments, nil
}

// CreateTeacherSubjectAssignment declares a teacher eligible to teach a subject.
func (r *AssignmentRepository) CreateTeacherSubjectAssignment(ctx context.Context, a *models.TeacherSubjectAssignment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO teacher_subject_assignments (id, teacher_id, subject_id, priority, created_at)
		VALUES (:id, :teacher_id, :subject_id, :priority, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create teacher subject assignment: %w", err)
	}
	return nil
}

// CreateSubjectClassAssignment declares that a group must study a subject.
func (r *AssignmentRepository) CreateSubjectClassAssignment(ctx context.Context, a *models.SubjectClassAssignment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO subject_class_assignments (id, subject_id, group_id, created_at)
		VALUES (:id, :subject_id, :group_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create subject class assignment: %w", err)
	}
	return nil
}
