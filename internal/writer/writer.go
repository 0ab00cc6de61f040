// Package writer implements the atomic commit protocol that replaces a
// stored timetable partition with a newly accepted solution.
package writer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/models"
	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
)

type timetableStore interface {
	Read(ctx context.Context, partition models.TimetablePartition) ([]models.TimetableSlot, error)
	ReplaceAll(ctx context.Context, partition models.TimetablePartition, slots []models.TimetableSlot) error
	Clear(ctx context.Context, partition models.TimetablePartition) error
}

// partitionLocker is satisfied by *PartitionLock; naming it as an interface
// lets tests substitute a fake lock without standing up a Redis instance.
type partitionLocker interface {
	Acquire(ctx context.Context, partitionKey string) (*heldLock, bool, error)
	Release(ctx context.Context, lock *heldLock) error
}

// Writer persists accepted solutions for a partition under the partition
// lock, guaranteeing the previously stored timetable is preserved unchanged
// on any failure.
type Writer struct {
	store  timetableStore
	lock   partitionLocker
	logger *zap.Logger
}

// New constructs a Writer.
func New(store timetableStore, lock partitionLocker, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, lock: lock, logger: logger}
}

// Publish atomically replaces the timetable for a partition with the given
// slot records, holding the partition lock for the duration of the write.
func (w *Writer) Publish(ctx context.Context, partition models.TimetablePartition, records []dto.SlotRecord, resolve SlotResolver) error {
	key := partitionKey(partition)
	held, ok, err := w.lock.Acquire(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.ErrLockHeld
	}
	defer func() {
		if releaseErr := w.lock.Release(context.WithoutCancel(ctx), held); releaseErr != nil {
			w.logger.Sugar().Warnw("failed to release partition lock", "error", releaseErr, "partition", key)
		}
	}()

	slots := make([]models.TimetableSlot, 0, len(records))
	for _, record := range records {
		slot, err := resolve(record)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve slot record")
		}
		slots = append(slots, slot)
	}

	if err := w.store.ReplaceAll(ctx, partition, slots); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace timetable")
	}
	return nil
}

// Clear removes every slot for a partition, holding the partition lock.
func (w *Writer) Clear(ctx context.Context, partition models.TimetablePartition) error {
	key := partitionKey(partition)
	held, ok, err := w.lock.Acquire(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.ErrLockHeld
	}
	defer func() {
		if releaseErr := w.lock.Release(context.WithoutCancel(ctx), held); releaseErr != nil {
			w.logger.Sugar().Warnw("failed to release partition lock", "error", releaseErr, "partition", key)
		}
	}()

	if err := w.store.Clear(ctx, partition); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear timetable")
	}
	return nil
}

// Read returns the published slots for a partition, with no lock required
// since reads never observe a partial write.
func (w *Writer) Read(ctx context.Context, partition models.TimetablePartition) ([]models.TimetableSlot, error) {
	slots, err := w.store.Read(ctx, partition)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read timetable")
	}
	return slots, nil
}

// SlotResolver maps a display-oriented SlotRecord back to the identifiers a
// TimetableSlot row stores; the scheduler and catalog deal in different
// shapes so the caller supplies the join.
type SlotResolver func(dto.SlotRecord) (models.TimetableSlot, error)

func partitionKey(p models.TimetablePartition) string {
	return fmt.Sprintf("%s:%s", p.AcademicYear, p.SemesterType)
}
