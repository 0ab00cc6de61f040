// Package compiler turns a generation request and the catalog state it
// references into a ProblemInstance the scheduler can search directly,
// rejecting anything that is infeasible before search ever starts.
package compiler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/models"
	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
)

type groupReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.StudentGroup, error)
}

type subjectReader interface {
	SubjectsOfGroup(ctx context.Context, groupID string) ([]models.Subject, error)
}

type teacherReader interface {
	TeachersOfSubject(ctx context.Context, subjectID string) ([]models.EligibleTeacher, error)
}

type roomReader interface {
	RoomsSatisfying(ctx context.Context, courseType models.CourseType, minCapacity int) ([]models.Room, error)
}

type unavailabilityReader interface {
	UnavailabilityForTeachers(ctx context.Context, teacherIDs []string) ([]models.TeacherUnavailability, error)
}

// Demand is one (group, subject) pair's weekly hour requirement, alongside
// the teachers and rooms eligible to satisfy it.
type Demand struct {
	GroupID             string
	Subject             models.Subject
	HoursPerWeek        int
	EligibleTeachers    []models.EligibleTeacher
	EligibleRooms       []models.Room
	ForbiddenTeacherCells map[string]map[models.Cell]bool // teacherID -> blocked cells
}

// ProblemInstance is the fully compiled input to the scheduler: every cell
// the search may use, and every demand it must try to satisfy within them.
type ProblemInstance struct {
	AcademicYear     string
	SemesterType     models.SemesterType
	Cells            []models.Cell
	Groups           []models.StudentGroup
	Demands          []Demand
	LunchBreakPeriod int
	PeriodsPerDay    int
	MaxIterations    int
	Preferences      dto.GenerationPreferences
}

// Compiler loads catalog state and compiles it into a ProblemInstance.
type Compiler struct {
	groups         groupReader
	subjects       subjectReader
	teachers       teacherReader
	rooms          roomReader
	unavailability unavailabilityReader
	logger         *zap.Logger
}

// New constructs a Compiler.
func New(groups groupReader, subjects subjectReader, teachers teacherReader, rooms roomReader, unavailability unavailabilityReader, logger *zap.Logger) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{groups: groups, subjects: subjects, teachers: teachers, rooms: rooms, unavailability: unavailability, logger: logger}
}

// Compile validates req against the catalog and, if feasible, returns a
// ProblemInstance ready for search. Preflight failures are returned as a
// *PreflightError rather than a generic error so callers can surface every
// reason at once.
func (c *Compiler) Compile(ctx context.Context, req dto.GenerationRequest) (*ProblemInstance, error) {
	var failures []dto.PreflightFailure

	days := models.DefaultRequestDays
	if len(req.Days) > 0 {
		days = make([]models.Day, 0, len(req.Days))
		for _, name := range req.Days {
			day := models.ParseDay(name)
			if day == 0 || !day.Valid() {
				failures = append(failures, dto.PreflightFailure{
					Code:    "UNKNOWN_DAY",
					Message: fmt.Sprintf("day %q is not a schedulable weekday", name),
				})
				continue
			}
			days = append(days, day)
		}
		sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	}

	// LunchBreakPeriod is optional; 0 means the request has no lunch break
	// and every period is schedulable. A non-zero value must still fall
	// within the day.
	if req.LunchBreakPeriod != 0 && (req.LunchBreakPeriod < 1 || req.LunchBreakPeriod > req.PeriodsPerDay) {
		failures = append(failures, dto.PreflightFailure{
			Code:    "LUNCH_BREAK_OUT_OF_RANGE",
			Message: fmt.Sprintf("lunch break period %d is outside 1..%d", req.LunchBreakPeriod, req.PeriodsPerDay),
		})
	}

	groups, err := c.groups.ListByIDs(ctx, req.GroupIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load groups")
	}
	foundGroups := make(map[string]models.StudentGroup, len(groups))
	activeGroups := make([]models.StudentGroup, 0, len(groups))
	for _, g := range groups {
		if !g.Active {
			continue
		}
		foundGroups[g.ID] = g
		activeGroups = append(activeGroups, g)
	}
	groups = activeGroups
	for _, id := range req.GroupIDs {
		if _, ok := foundGroups[id]; !ok {
			failures = append(failures, dto.PreflightFailure{
				Code:    "GROUP_NOT_FOUND",
				Message: fmt.Sprintf("group %s does not exist or is inactive", id),
				GroupID: id,
			})
		}
	}

	cells := buildCells(days, req.PeriodsPerDay, req.LunchBreakPeriod)

	var demands []Demand
	for _, group := range groups {
		subjects, err := c.subjects.SubjectsOfGroup(ctx, group.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects of group")
		}

		totalHours := 0
		for _, subject := range subjects {
			totalHours += subject.HoursPerWeek

			eligibleTeachers, err := c.teachers.TeachersOfSubject(ctx, subject.ID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load eligible teachers")
			}
			if len(eligibleTeachers) == 0 {
				failures = append(failures, dto.PreflightFailure{
					Code:    "NO_ELIGIBLE_TEACHER",
					Message: fmt.Sprintf("subject %s has no eligible teacher", subject.Code),
					GroupID: group.ID,
				})
			}

			eligibleRooms, err := c.rooms.RoomsSatisfying(ctx, subject.CourseType, group.Strength)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load eligible rooms")
			}
			if len(eligibleRooms) == 0 {
				failures = append(failures, dto.PreflightFailure{
					Code:    "NO_ELIGIBLE_ROOM",
					Message: fmt.Sprintf("subject %s has no room satisfying group %s", subject.Code, group.Code),
					GroupID: group.ID,
				})
			}

			teacherIDs := make([]string, 0, len(eligibleTeachers))
			for _, t := range eligibleTeachers {
				teacherIDs = append(teacherIDs, t.TeacherID)
			}
			forbidden, err := c.buildForbiddenCells(ctx, teacherIDs)
			if err != nil {
				return nil, err
			}

			demands = append(demands, Demand{
				GroupID:               group.ID,
				Subject:               subject,
				HoursPerWeek:          subject.HoursPerWeek,
				EligibleTeachers:      eligibleTeachers,
				EligibleRooms:         eligibleRooms,
				ForbiddenTeacherCells: forbidden,
			})
		}

		if totalHours > len(cells) {
			failures = append(failures, dto.PreflightFailure{
				Code:    "DEMAND_EXCEEDS_CAPACITY",
				Message: fmt.Sprintf("group %s requires %d weekly hours but only %d cells are available", group.Code, totalHours, len(cells)),
				GroupID: group.ID,
			})
		}
	}

	if len(failures) > 0 {
		c.logger.Sugar().Infow("generation request failed preflight", "failures", len(failures), "first_code", failures[0].Code)
		return nil, &PreflightError{Failures: failures}
	}

	maxIterations := req.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 100000
	}

	sort.Slice(demands, func(i, j int) bool {
		if demands[i].GroupID != demands[j].GroupID {
			return demands[i].GroupID < demands[j].GroupID
		}
		return demands[i].Subject.Code < demands[j].Subject.Code
	})

	preferences := dto.GenerationPreferences{
		MinimizeGaps:              true,
		ConsecutiveLabs:           true,
		BalancedDistribution:      true,
		RespectTeacherPreferences: true,
	}
	if req.Preferences != nil {
		preferences = *req.Preferences
	}

	return &ProblemInstance{
		AcademicYear:     req.AcademicYear,
		SemesterType:     models.SemesterType(req.SemesterType),
		Cells:            cells,
		Groups:           groups,
		Demands:          demands,
		LunchBreakPeriod: req.LunchBreakPeriod,
		PeriodsPerDay:    req.PeriodsPerDay,
		MaxIterations:    maxIterations,
		Preferences:      preferences,
	}, nil
}

func (c *Compiler) buildForbiddenCells(ctx context.Context, teacherIDs []string) (map[string]map[models.Cell]bool, error) {
	rows, err := c.unavailability.UnavailabilityForTeachers(ctx, teacherIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher unavailability")
	}
	reference := time.Now().UTC()
	forbidden := make(map[string]map[models.Cell]bool, len(teacherIDs))
	for _, row := range rows {
		if !row.ActiveOn(reference) {
			continue
		}
		cell := models.Cell{Day: row.DayOfWeek, Period: row.PeriodNumber}
		if forbidden[row.TeacherID] == nil {
			forbidden[row.TeacherID] = make(map[models.Cell]bool)
		}
		forbidden[row.TeacherID][cell] = true
	}
	return forbidden, nil
}

// buildCells enumerates every (day, period) cell in day/period order,
// excluding the lunch break period.
func buildCells(days []models.Day, periodsPerDay, lunchBreakPeriod int) []models.Cell {
	cells := make([]models.Cell, 0, len(days)*periodsPerDay)
	for _, day := range days {
		for period := 1; period <= periodsPerDay; period++ {
			if period == lunchBreakPeriod {
				continue
			}
			cells = append(cells, models.Cell{Day: day, Period: period})
		}
	}
	return cells
}

// PreflightError reports every reason a request was rejected before search
// began.
type PreflightError struct {
	Failures []dto.PreflightFailure
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("infeasible preflight: %d failure(s)", len(e.Failures))
}
