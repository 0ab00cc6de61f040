package allocator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

type stubStore struct {
	students    []models.Student
	electives   []models.Elective
	choices     []models.StudentChoice
	replaced    []models.AllocatedElective
	replaceErr  error
}

func (s *stubStore) Students(ctx context.Context) ([]models.Student, error)   { return s.students, nil }
func (s *stubStore) Electives(ctx context.Context) ([]models.Elective, error) { return s.electives, nil }
func (s *stubStore) Choices(ctx context.Context) ([]models.StudentChoice, error) {
	return s.choices, nil
}
func (s *stubStore) ReplaceAllocations(ctx context.Context, allocations []models.AllocatedElective) error {
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.replaced = allocations
	return nil
}

// Allocator priority scenario from the spec: two students both rank the
// single-seat elective first; the higher-CGPA student must win the seat.
func TestAllocatorRun_HigherCGPAWinsContestedSeat(t *testing.T) {
	store := &stubStore{
		students: []models.Student{
			{ID: "s-high", CGPA: 9.5, Active: true},
			{ID: "s-low", CGPA: 8.0, Active: true},
		},
		electives: []models.Elective{
			{ID: "e1", Code: "E1", Capacity: 1, Active: true},
			{ID: "e2", Code: "E2", Capacity: 5, Active: true},
		},
		choices: []models.StudentChoice{
			{StudentID: "s-high", ElectiveIDs: []string{"e1", "e2"}},
			{StudentID: "s-low", ElectiveIDs: []string{"e1", "e2"}},
		},
	}

	resp, err := New(store, nil).Run(context.Background(), false)

	require.NoError(t, err)
	byStudent := make(map[string]string)
	for _, rec := range resp.Allocations {
		if rec.ElectiveID != nil {
			byStudent[rec.StudentID] = *rec.ElectiveID
		}
	}
	assert.Equal(t, "e1", byStudent["s-high"])
	assert.Equal(t, "e2", byStudent["s-low"], "second-preference seat should go to the lower-CGPA student once e1 is full")
	assert.Equal(t, 0, resp.UnmatchedCount)
	assert.Len(t, store.replaced, 2)
}

func TestAllocatorRun_NoSeatOutcome(t *testing.T) {
	store := &stubStore{
		students: []models.Student{
			{ID: "s1", CGPA: 9.0, Active: true},
			{ID: "s2", CGPA: 8.0, Active: true},
		},
		electives: []models.Elective{{ID: "e1", Code: "E1", Capacity: 1, Active: true}},
		choices: []models.StudentChoice{
			{StudentID: "s1", ElectiveIDs: []string{"e1"}},
			{StudentID: "s2", ElectiveIDs: []string{"e1"}},
		},
	}

	resp, err := New(store, nil).Run(context.Background(), false)

	require.NoError(t, err)
	assert.Equal(t, 1, resp.UnmatchedCount)
	for _, rec := range resp.Allocations {
		if rec.StudentID == "s2" {
			assert.Equal(t, "UNMATCHED", rec.Outcome)
			assert.Nil(t, rec.ElectiveID)
		}
	}
}

// P6: filled count for any elective never exceeds capacity.
func TestAllocatorRun_NeverExceedsCapacity(t *testing.T) {
	store := &stubStore{
		students: []models.Student{
			{ID: "s1", CGPA: 9.0, Active: true},
			{ID: "s2", CGPA: 8.5, Active: true},
			{ID: "s3", CGPA: 8.0, Active: true},
		},
		electives: []models.Elective{{ID: "e1", Code: "E1", Capacity: 2, Active: true}},
		choices: []models.StudentChoice{
			{StudentID: "s1", ElectiveIDs: []string{"e1"}},
			{StudentID: "s2", ElectiveIDs: []string{"e1"}},
			{StudentID: "s3", ElectiveIDs: []string{"e1"}},
		},
	}

	resp, err := New(store, nil).Run(context.Background(), false)

	require.NoError(t, err)
	filled := 0
	for _, rec := range resp.Allocations {
		if rec.ElectiveID != nil && *rec.ElectiveID == "e1" {
			filled++
		}
	}
	assert.LessOrEqual(t, filled, 2)
	assert.Equal(t, 1, resp.UnmatchedCount)
}

func TestAllocatorRun_DryRunDoesNotPersist(t *testing.T) {
	store := &stubStore{
		students:  []models.Student{{ID: "s1", CGPA: 9.0, Active: true}},
		electives: []models.Elective{{ID: "e1", Code: "E1", Capacity: 1, Active: true}},
		choices:   []models.StudentChoice{{StudentID: "s1", ElectiveIDs: []string{"e1"}}},
	}

	_, err := New(store, nil).Run(context.Background(), true)

	require.NoError(t, err)
	assert.Nil(t, store.replaced, "dry run must not call ReplaceAllocations")
}
