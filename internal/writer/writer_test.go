package writer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/models"
	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
)

type fakeStore struct {
	slots        []models.TimetableSlot
	replaceErr   error
	clearErr     error
	replaceCalls int
}

func (f *fakeStore) Read(ctx context.Context, partition models.TimetablePartition) ([]models.TimetableSlot, error) {
	return f.slots, nil
}

func (f *fakeStore) ReplaceAll(ctx context.Context, partition models.TimetablePartition, slots []models.TimetableSlot) error {
	f.replaceCalls++
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.slots = slots
	return nil
}

func (f *fakeStore) Clear(ctx context.Context, partition models.TimetablePartition) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.slots = nil
	return nil
}

type fakeLock struct {
	held      bool
	acquireOK bool
	acquireErr error
}

func (f *fakeLock) Acquire(ctx context.Context, partitionKey string) (*heldLock, bool, error) {
	if f.acquireErr != nil {
		return nil, false, f.acquireErr
	}
	if !f.acquireOK {
		return nil, false, nil
	}
	f.held = true
	return &heldLock{key: partitionKey, token: "tok"}, true, nil
}

func (f *fakeLock) Release(ctx context.Context, lock *heldLock) error {
	f.held = false
	return nil
}

var testPartition = models.TimetablePartition{AcademicYear: "2026-27", SemesterType: models.SemesterOdd}

func resolveIdentity(record dto.SlotRecord) (models.TimetableSlot, error) {
	return models.TimetableSlot{
		DayOfWeek:    models.ParseDay(record.Day),
		PeriodNumber: record.Period,
		GroupID:      record.Group.ID,
		SubjectID:    record.Subject.ID,
		TeacherID:    record.Teacher.ID,
		RoomID:       record.Room.ID,
	}, nil
}

// P4: publish followed by read yields exactly the published solution.
func TestWriterPublishThenRead_RoundTrips(t *testing.T) {
	store := &fakeStore{}
	lock := &fakeLock{acquireOK: true}
	w := New(store, lock, nil)

	records := []dto.SlotRecord{
		{Day: "MONDAY", Period: 1, Group: dto.GroupRef{ID: "g1"}, Subject: dto.SubjectRef{ID: "s1"}, Teacher: dto.TeacherRef{ID: "t1"}, Room: dto.RoomRef{ID: "r1"}},
	}

	err := w.Publish(context.Background(), testPartition, records, resolveIdentity)
	require.NoError(t, err)
	assert.False(t, lock.held, "lock must be released after publish")

	stored, err := w.Read(context.Background(), testPartition)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "g1", stored[0].GroupID)
	assert.Equal(t, models.Monday, stored[0].DayOfWeek)
}

// P5: a failed publish leaves the previously stored timetable unchanged.
func TestWriterPublish_FailedReplaceLeavesPriorTimetableIntact(t *testing.T) {
	prior := []models.TimetableSlot{{GroupID: "g-old", DayOfWeek: models.Tuesday, PeriodNumber: 2}}
	store := &fakeStore{slots: prior, replaceErr: errors.New("storage failure")}
	lock := &fakeLock{acquireOK: true}
	w := New(store, lock, nil)

	err := w.Publish(context.Background(), testPartition, []dto.SlotRecord{
		{Day: "MONDAY", Period: 1, Group: dto.GroupRef{ID: "g1"}, Subject: dto.SubjectRef{ID: "s1"}, Teacher: dto.TeacherRef{ID: "t1"}, Room: dto.RoomRef{ID: "r1"}},
	}, resolveIdentity)

	require.Error(t, err)
	stored, readErr := w.Read(context.Background(), testPartition)
	require.NoError(t, readErr)
	assert.Equal(t, prior, stored)
}

func TestWriterPublish_LockAlreadyHeldIsSurfacedDistinctly(t *testing.T) {
	store := &fakeStore{}
	lock := &fakeLock{acquireOK: false}
	w := New(store, lock, nil)

	err := w.Publish(context.Background(), testPartition, nil, resolveIdentity)

	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrLockHeld)
	assert.Equal(t, 0, store.replaceCalls)
}

func TestWriterClear_RemovesAllSlots(t *testing.T) {
	store := &fakeStore{slots: []models.TimetableSlot{{GroupID: "g1"}}}
	lock := &fakeLock{acquireOK: true}
	w := New(store, lock, nil)

	err := w.Clear(context.Background(), testPartition)

	require.NoError(t, err)
	stored, _ := w.Read(context.Background(), testPartition)
	assert.Empty(t, stored)
}
