package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

// ElectiveRepository manages persistence for students, elective offerings,
// their declared preferences, and allocation outcomes.
type ElectiveRepository struct {
	db *sqlx.DB
}

// NewElectiveRepository constructs an ElectiveRepository.
func NewElectiveRepository(db *sqlx.DB) *ElectiveRepository {
	return &ElectiveRepository{db: db}
}

// Students returns active students ordered by descending CGPA then ascending
// ID, the exact priority order the allocator iterates in.
func (r *ElectiveRepository) Students(ctx context.Context) ([]models.Student, error) {
	const query = `SELECT id, name, cgpa, active, created_at FROM students WHERE active = TRUE ORDER BY cgpa DESC, id ASC`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// Electives returns active elective offerings ordered by code.
func (r *ElectiveRepository) Electives(ctx context.Context) ([]models.Elective, error) {
	const query = `SELECT id, code, name, capacity, active, created_at FROM electives WHERE active = TRUE ORDER BY code`
	var electives []models.Elective
	if err := r.db.SelectContext(ctx, &electives, query); err != nil {
		return nil, fmt.Errorf("list electives: %w", err)
	}
	return electives, nil
}

// Choices returns every student's ranked elective preferences, ordered by
// rank ascending within each student.
func (r *ElectiveRepository) Choices(ctx context.Context) ([]models.StudentChoice, error) {
	const query = `SELECT student_id, elective_id, rank FROM student_choice_items ORDER BY student_id, rank ASC`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list student choices: %w", err)
	}
	defer rows.Close()

	order := make([]string, 0)
	byStudent := make(map[string][]string)
	for rows.Next() {
		var studentID, electiveID string
		var rank int
		if err := rows.Scan(&studentID, &electiveID, &rank); err != nil {
			return nil, fmt.Errorf("scan student choice: %w", err)
		}
		if _, seen := byStudent[studentID]; !seen {
			order = append(order, studentID)
		}
		byStudent[studentID] = append(byStudent[studentID], electiveID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate student choices: %w", err)
	}

	choices := make([]models.StudentChoice, 0, len(order))
	for _, studentID := range order {
		choices = append(choices, models.StudentChoice{StudentID: studentID, ElectiveIDs: byStudent[studentID]})
	}
	return choices, nil
}

// ReplaceAllocations atomically clears prior allocation outcomes and inserts
// the new ones, in the same delete-then-insert shape used by the timetable
// writer.
func (r *ElectiveRepository) ReplaceAllocations(ctx context.Context, allocations []models.AllocatedElective) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace allocations: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM allocated_electives`); err != nil {
		return fmt.Errorf("clear existing allocations: %w", err)
	}

	now := time.Now().UTC()
	for _, allocation := range allocations {
		payload := allocation
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		const insert = `INSERT INTO allocated_electives (id, student_id, elective_id, outcome, rank, created_at)
			VALUES (:id, :student_id, :elective_id, :outcome, :rank, :created_at)`
		if _, err = tx.NamedExecContext(ctx, insert, &payload); err != nil {
			return fmt.Errorf("insert allocation: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace allocations: %w", err)
	}
	return nil
}
