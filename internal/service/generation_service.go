// Package service wires together the constraint compiler, scheduler core,
// and timetable writer into the entry points external collaborators call:
// generate, publish, read_timetable, clear_timetable.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-api/internal/compiler"
	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/metrics"
	"github.com/noah-isme/sma-adp-api/internal/models"
	"github.com/noah-isme/sma-adp-api/internal/scheduler"
	"github.com/noah-isme/sma-adp-api/internal/supervisor"
	"github.com/noah-isme/sma-adp-api/internal/writer"
	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
)

type roomLookup interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

type teacherLookup interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type subjectLookup interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type groupLookup interface {
	FindByID(ctx context.Context, id string) (*models.StudentGroup, error)
}

// GenerationService orchestrates compile -> search -> publish for a single
// generation request, and exposes the read/clear entry points over the
// same partition.
type GenerationService struct {
	compiler   *compiler.Compiler
	writer     *writer.Writer
	supervisor *supervisor.Supervisor
	metrics    *metrics.Registry
	logger     *zap.Logger

	rooms    roomLookup
	teachers teacherLookup
	subjects subjectLookup
	groups   groupLookup
}

// NewGenerationService wires a GenerationService.
func NewGenerationService(
	compilerSvc *compiler.Compiler,
	writerSvc *writer.Writer,
	supervisorSvc *supervisor.Supervisor,
	metricsReg *metrics.Registry,
	rooms roomLookup,
	teachers teacherLookup,
	subjects subjectLookup,
	groups groupLookup,
	logger *zap.Logger,
) *GenerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationService{
		compiler:   compilerSvc,
		writer:     writerSvc,
		supervisor: supervisorSvc,
		metrics:    metricsReg,
		rooms:      rooms,
		teachers:   teachers,
		subjects:   subjects,
		groups:     groups,
		logger:     logger,
	}
}

// Generate compiles and searches for a feasible timetable, without
// publishing it. Callers that want the result persisted must call Publish
// with the returned slots.
func (s *GenerationService) Generate(ctx context.Context, requestID string, req dto.GenerationRequest) (*dto.GenerationResponse, error) {
	taskCtx, err := s.supervisor.Start(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "generation request already running")
	}
	defer s.supervisor.Finish(requestID)

	problem, err := s.compiler.Compile(taskCtx, req)
	if err != nil {
		if preflightErr, ok := err.(*compiler.PreflightError); ok {
			return &dto.GenerationResponse{
				Outcome:           dto.OutcomeInfeasiblePreflight,
				PreflightFailures: preflightErr.Failures,
			}, nil
		}
		return nil, err
	}

	start := time.Now()
	engine := scheduler.New(problem, s.logger)
	result := engine.Run(taskCtx)
	s.metrics.ObserveGeneration(string(result.Outcome), result.Stats.Iterations, time.Since(start))
	result.Stats.DurationMillis = time.Since(start).Milliseconds()

	return &dto.GenerationResponse{
		Outcome:  result.Outcome,
		Slots:    result.Slots,
		Stats:    result.Stats,
		Warnings: result.Warnings,
	}, nil
}

// Cancel requests early termination of a running generation.
func (s *GenerationService) Cancel(requestID string) bool {
	return s.supervisor.Cancel(requestID)
}

// Publish persists an accepted solution as the timetable for a partition
//, resolving the denormalized slot records back to catalog ids.
func (s *GenerationService) Publish(ctx context.Context, partition models.TimetablePartition, slots []dto.SlotRecord) error {
	err := s.writer.Publish(ctx, partition, slots, s.resolveSlot)
	if err != nil {
		s.metrics.ObservePublish("failure")
		return err
	}
	s.metrics.ObservePublish("success")
	return nil
}

// ReadTimetable returns the published slots for a partition, optionally
// filtered to a set of groups.
func (s *GenerationService) ReadTimetable(ctx context.Context, partition models.TimetablePartition, groupFilter []string) ([]dto.SlotRecord, error) {
	slots, err := s.writer.Read(ctx, partition)
	if err != nil {
		return nil, err
	}

	filter := make(map[string]bool, len(groupFilter))
	for _, id := range groupFilter {
		filter[id] = true
	}

	records := make([]dto.SlotRecord, 0, len(slots))
	for _, slot := range slots {
		if len(filter) > 0 && !filter[slot.GroupID] {
			continue
		}
		record, err := s.denormalizeSlot(ctx, slot)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// ClearTimetable removes every slot for a partition.
func (s *GenerationService) ClearTimetable(ctx context.Context, partition models.TimetablePartition) error {
	return s.writer.Clear(ctx, partition)
}

func (s *GenerationService) resolveSlot(record dto.SlotRecord) (models.TimetableSlot, error) {
	day := models.ParseDay(record.Day)
	if day == 0 {
		return models.TimetableSlot{}, appErrors.Clone(appErrors.ErrValidation, "unknown day in slot record: "+record.Day)
	}
	return models.TimetableSlot{
		ID:           uuid.NewString(),
		DayOfWeek:    day,
		PeriodNumber: record.Period,
		GroupID:      record.Group.ID,
		SubjectID:    record.Subject.ID,
		TeacherID:    record.Teacher.ID,
		RoomID:       record.Room.ID,
	}, nil
}

func (s *GenerationService) denormalizeSlot(ctx context.Context, slot models.TimetableSlot) (dto.SlotRecord, error) {
	teacher, err := s.teachers.FindByID(ctx, slot.TeacherID)
	if err != nil {
		return dto.SlotRecord{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher for slot")
	}
	subject, err := s.subjects.FindByID(ctx, slot.SubjectID)
	if err != nil {
		return dto.SlotRecord{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject for slot")
	}
	group, err := s.groups.FindByID(ctx, slot.GroupID)
	if err != nil {
		return dto.SlotRecord{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group for slot")
	}
	room, err := s.rooms.FindByID(ctx, slot.RoomID)
	if err != nil {
		return dto.SlotRecord{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room for slot")
	}
	if teacher == nil || subject == nil || group == nil || room == nil {
		return dto.SlotRecord{}, appErrors.Clone(appErrors.ErrNotFound, "slot references a missing catalog entity")
	}

	return dto.SlotRecord{
		Day:     slot.DayOfWeek.String(),
		Period:  slot.PeriodNumber,
		Teacher: dto.TeacherRef{ID: teacher.ID, Code: teacher.Code, Name: teacher.Name},
		Subject: dto.SubjectRef{ID: subject.ID, Code: subject.Code, Name: subject.Name, Type: string(subject.CourseType)},
		Group:   dto.GroupRef{ID: group.ID, Code: group.Code},
		Room:    dto.RoomRef{ID: room.ID, Code: room.Code, Type: string(room.RoomType)},
	}, nil
}
