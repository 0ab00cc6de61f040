// Package allocator implements the priority-ranked greedy matching of
// students to elective seats.
package allocator

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/models"
	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
)

type electiveStore interface {
	Students(ctx context.Context) ([]models.Student, error)
	Electives(ctx context.Context) ([]models.Elective, error)
	Choices(ctx context.Context) ([]models.StudentChoice, error)
	ReplaceAllocations(ctx context.Context, allocations []models.AllocatedElective) error
}

// Allocator matches students to elective seats using CGPA priority and
// preference rank.
type Allocator struct {
	store  electiveStore
	logger *zap.Logger
}

// New constructs an Allocator.
func New(store electiveStore, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{store: store, logger: logger}
}

// Run executes one allocation pass: students are already returned by the
// store ordered by descending CGPA then ascending id,
// so the algorithm here only needs to walk that order and apply preferences.
func (a *Allocator) Run(ctx context.Context, dryRun bool) (*dto.AllocationResponse, error) {
	students, err := a.store.Students(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	electives, err := a.store.Electives(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load electives")
	}
	choices, err := a.store.Choices(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student choices")
	}

	remaining := make(map[string]int, len(electives))
	for _, e := range electives {
		remaining[e.ID] = e.Capacity
	}
	choicesByStudent := make(map[string][]string, len(choices))
	for _, c := range choices {
		choicesByStudent[c.StudentID] = c.ElectiveIDs
	}

	allocations := make([]models.AllocatedElective, 0, len(students))
	records := make([]dto.AllocationRecord, 0, len(students))
	unmatched := 0

	for _, student := range students {
		preferences := choicesByStudent[student.ID]
		placed := false
		for rank, electiveID := range preferences {
			if remaining[electiveID] <= 0 {
				continue
			}
			remaining[electiveID]--
			rankCopy := rank + 1
			electiveIDCopy := electiveID
			allocations = append(allocations, models.AllocatedElective{
				StudentID:  student.ID,
				ElectiveID: &electiveIDCopy,
				Outcome:    models.OutcomeAllocated,
				Rank:       &rankCopy,
			})
			records = append(records, dto.AllocationRecord{
				StudentID:  student.ID,
				ElectiveID: &electiveIDCopy,
				Outcome:    string(models.OutcomeAllocated),
				Rank:       &rankCopy,
			})
			placed = true
			break
		}
		if !placed {
			unmatched++
			allocations = append(allocations, models.AllocatedElective{
				StudentID: student.ID,
				Outcome:   models.OutcomeUnmatched,
			})
			records = append(records, dto.AllocationRecord{
				StudentID: student.ID,
				Outcome:   string(models.OutcomeUnmatched),
			})
		}
	}

	if !dryRun {
		if err := a.store.ReplaceAllocations(ctx, allocations); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist allocations")
		}
	}

	return &dto.AllocationResponse{
		Allocations:    records,
		UnmatchedCount: unmatched,
		TotalStudents:  len(students),
	}, nil
}
