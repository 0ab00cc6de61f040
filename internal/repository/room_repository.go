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

// RoomRepository manages persistence for rooms.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs a RoomRepository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

const roomColumns = `id, code, capacity, room_type, active, floor, building, has_projector, has_computer, created_at, updated_at`

// List returns all active rooms ordered by ascending capacity, the order the
// scheduler's value-ordering heuristic consumes directly.
func (r *RoomRepository) List(ctx context.Context) ([]models.Room, error) {
	query := fmt.Sprintf(`SELECT %s FROM rooms WHERE active = TRUE ORDER BY capacity ASC, code ASC`, roomColumns)
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// FindByID fetches a room by ID.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	query := fmt.Sprintf(`SELECT %s FROM rooms WHERE id = $1`, roomColumns)
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find room: %w", err)
	}
	return &room, nil
}

// RoomsSatisfying returns active rooms of a kind compatible with courseType
// and with capacity >= minCapacity, ascending by capacity so the scheduler's
// value-ordering heuristic gets the tightest-fit room first.
func (r *RoomRepository) RoomsSatisfying(ctx context.Context, courseType models.CourseType, minCapacity int) ([]models.Room, error) {
	var kindFilter string
	if courseType.RequiresLab() {
		kindFilter = `room_type = 'LAB'`
	} else {
		kindFilter = `room_type IN ('CLASSROOM', 'AUDITORIUM', 'SEMINAR_HALL')`
	}
	query := fmt.Sprintf(`SELECT %s FROM rooms WHERE active = TRUE AND capacity >= $1 AND %s ORDER BY capacity ASC, code ASC`, roomColumns, kindFilter)
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, minCapacity); err != nil {
		return nil, fmt.Errorf("rooms satisfying: %w", err)
	}
	return rooms, nil
}

// Create inserts a new room record.
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	const query = `INSERT INTO rooms (id, code, capacity, room_type, active, floor, building, has_projector, has_computer, created_at, updated_at)
		VALUES (:id, :code, :capacity, :room_type, :active, :floor, :building, :has_projector, :has_computer, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

// Update modifies an existing room record.
func (r *RoomRepository) Update(ctx context.Context, room *models.Room) error {
	room.UpdatedAt = time.Now().UTC()
	const query = `UPDATE rooms SET code = :code, capacity = :capacity, room_type = :room_type, active = :active,
		floor = :floor, building = :building, has_projector = :has_projector, has_computer = :has_computer,
		updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	return nil
}
