package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

// UnavailabilityRepository manages persistence for teacher unavailability
// windows.
type UnavailabilityRepository struct {
	db *sqlx.DB
}

// NewUnavailabilityRepository constructs an UnavailabilityRepository.
func NewUnavailabilityRepository(db *sqlx.DB) *UnavailabilityRepository {
	return &UnavailabilityRepository{db: db}
}

const unavailabilityColumns = `id, teacher_id, day_of_week, period_number, reason, is_permanent, start_date, end_date, created_at`

// UnavailabilityOf returns every unavailability row declared for a teacher,
// regardless of whether it is currently active on the reference date; the
// caller filters with TeacherUnavailability.ActiveOn.
func (r *UnavailabilityRepository) UnavailabilityOf(ctx context.Context, teacherID string) ([]models.TeacherUnavailability, error) {
	query := fmt.Sprintf(`SELECT %s FROM teacher_unavailability WHERE teacher_id = $1`, unavailabilityColumns)
	var rows []models.TeacherUnavailability
	if err := r.db.SelectContext(ctx, &rows, query, teacherID); err != nil {
		return nil, fmt.Errorf("unavailability of teacher: %w", err)
	}
	return rows, nil
}

// UnavailabilityForTeachers batches UnavailabilityOf across many teachers,
// used by the constraint compiler to preload the whole forbidden set once
// per generation request instead of per cell.
func (r *UnavailabilityRepository) UnavailabilityForTeachers(ctx context.Context, teacherIDs []string) ([]models.TeacherUnavailability, error) {
	if len(teacherIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM teacher_unavailability WHERE teacher_id IN (?)`, unavailabilityColumns), teacherIDs)
	if err != nil {
		return nil, fmt.Errorf("build unavailability query: %w", err)
	}
	query = r.db.Rebind(query)
	var rows []models.TeacherUnavailability
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("unavailability for teachers: %w", err)
	}
	return rows, nil
}

// Create inserts a new unavailability declaration.
func (r *UnavailabilityRepository) Create(ctx context.Context, u *models.TeacherUnavailability) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO teacher_unavailability (id, teacher_id, day_of_week, period_number, reason, is_permanent, start_date, end_date, created_at)
		VALUES (:id, :teacher_id, :day_of_week, :period_number, :reason, :is_permanent, :start_date, :end_date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, u); err != nil {
		return fmt.Errorf("create unavailability: %w", err)
	}
	return nil
}
