package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

// TimetableRepository manages persistence for published timetable slots.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs a TimetableRepository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

const timetableColumns = `id, academic_year, semester_type, day_of_week, period_number, group_id, subject_id, teacher_id, room_id, created_at`

// Read returns every slot published for a partition, ordered by day then
// period then group code.
func (r *TimetableRepository) Read(ctx context.Context, partition models.TimetablePartition) ([]models.TimetableSlot, error) {
	query := fmt.Sprintf(`SELECT t.id, t.academic_year, t.semester_type, t.day_of_week, t.period_number,
		t.group_id, t.subject_id, t.teacher_id, t.room_id, t.created_at
		FROM timetable_slots t
		JOIN student_groups g ON g.id = t.group_id
		WHERE t.academic_year = $1 AND t.semester_type = $2
		ORDER BY t.day_of_week ASC, t.period_number ASC, g.code ASC`)
	var slots []models.TimetableSlot
	if err := r.db.SelectContext(ctx, &slots, query, partition.AcademicYear, partition.SemesterType); err != nil {
		return nil, fmt.Errorf("read timetable: %w", err)
	}
	return slots, nil
}

// ReplaceAll atomically clears every slot in a partition and inserts the
// given slots in a single transaction, so a reader never observes a
// half-written timetable. Callers are expected to hold the partition lock
// for the duration of this call.
func (r *TimetableRepository) ReplaceAll(ctx context.Context, partition models.TimetablePartition, slots []models.TimetableSlot) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace timetable: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM timetable_slots WHERE academic_year = $1 AND semester_type = $2`,
		partition.AcademicYear, partition.SemesterType); err != nil {
		return fmt.Errorf("clear existing timetable: %w", err)
	}

	if len(slots) == 0 {
		if err = tx.Commit(); err != nil {
			return fmt.Errorf("commit replace timetable: %w", err)
		}
		return nil
	}

	now := time.Now().UTC()
	for _, slot := range slots {
		payload := slot
		payload.AcademicYear = partition.AcademicYear
		payload.SemesterType = partition.SemesterType
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		const insert = `INSERT INTO timetable_slots (id, academic_year, semester_type, day_of_week, period_number, group_id, subject_id, teacher_id, room_id, created_at)
			VALUES (:id, :academic_year, :semester_type, :day_of_week, :period_number, :group_id, :subject_id, :teacher_id, :room_id, :created_at)`
		if _, err = tx.NamedExecContext(ctx, insert, &payload); err != nil {
			return fmt.Errorf("insert timetable slot: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace timetable: %w", err)
	}
	return nil
}

// Clear removes every slot in a partition without inserting a replacement,
// implementing the clear_timetable operation.
func (r *TimetableRepository) Clear(ctx context.Context, partition models.TimetablePartition) error {
	const query = `DELETE FROM timetable_slots WHERE academic_year = $1 AND semester_type = $2`
	if _, err := r.db.ExecContext(ctx, query, partition.AcademicYear, partition.SemesterType); err != nil {
		return fmt.Errorf("clear timetable: %w", err)
	}
	return nil
}
