package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-api/internal/allocator"
	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/metrics"
)

// AllocationService wraps the greedy elective matcher and records the
// unmatched-student count for operators.
type AllocationService struct {
	allocator *allocator.Allocator
	metrics   *metrics.Registry
	logger    *zap.Logger
}

// NewAllocationService wires an AllocationService.
func NewAllocationService(allocatorSvc *allocator.Allocator, metricsReg *metrics.Registry, logger *zap.Logger) *AllocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationService{allocator: allocatorSvc, metrics: metricsReg, logger: logger}
}

// AllocateElectives runs one allocation pass and reports the outcome.
func (s *AllocationService) AllocateElectives(ctx context.Context, req dto.AllocationRequest) (*dto.AllocationResponse, error) {
	result, err := s.allocator.Run(ctx, req.DryRun)
	if err != nil {
		return nil, err
	}
	s.metrics.SetAllocationUnmatched(result.UnmatchedCount)
	s.logger.Sugar().Infow("elective allocation complete",
		"total_students", result.TotalStudents,
		"unmatched", result.UnmatchedCount,
		"dry_run", req.DryRun,
	)
	return result, nil
}
