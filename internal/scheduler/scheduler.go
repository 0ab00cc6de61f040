// Package scheduler implements the backtracking search that turns a
// compiled ProblemInstance into a feasible weekly timetable.
package scheduler

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-api/internal/compiler"
	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/models"
)

// yieldInterval is how often the search checks for cancellation: once every
// N iterations (each iteration is one cell visit), checked on entering a cell
// rather than on every single placement attempt.
const yieldInterval = 1000

type demandKey struct {
	GroupID   string
	SubjectID string
}

type placement struct {
	cellIndex int
	demandKey demandKey
	teacherID string
	roomID    string
}

// Engine owns one search's mutable state for the lifetime of a single
// Run call; state is never shared across concurrent generations.
type Engine struct {
	problem *compiler.ProblemInstance
	logger  *zap.Logger

	cellAssignments [][]placement
	teacherBusy     []map[string]bool
	groupBusy       []map[string]bool
	roomBusy        []map[string]bool

	scheduled map[demandKey]int
	demandByKey map[demandKey]*compiler.Demand
	dayCount  map[string]int // "group|subject|day"

	iterations int
}

// Result is the outcome of a single search run.
type Result struct {
	Outcome  dto.GenerationOutcome
	Slots    []dto.SlotRecord
	Stats    dto.GenerationStats
	Warnings []dto.GenerationWarning
}

// New constructs an Engine over a compiled problem instance.
func New(problem *compiler.ProblemInstance, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := len(problem.Cells)
	e := &Engine{
		problem:         problem,
		logger:          logger,
		cellAssignments: make([][]placement, n),
		teacherBusy:     make([]map[string]bool, n),
		groupBusy:       make([]map[string]bool, n),
		roomBusy:        make([]map[string]bool, n),
		scheduled:       make(map[demandKey]int),
		demandByKey:     make(map[demandKey]*compiler.Demand),
		dayCount:        make(map[string]int),
	}
	for i := 0; i < n; i++ {
		e.teacherBusy[i] = make(map[string]bool)
		e.groupBusy[i] = make(map[string]bool)
		e.roomBusy[i] = make(map[string]bool)
	}
	for i := range problem.Demands {
		d := &problem.Demands[i]
		key := demandKey{GroupID: d.GroupID, SubjectID: d.Subject.ID}
		e.demandByKey[key] = d
		e.scheduled[key] = 0
	}
	return e
}

// Run executes the backtracking search to completion, honoring ctx
// cancellation at coarse checkpoints between cells.
func (e *Engine) Run(ctx context.Context) Result {
	done := e.search(ctx, 0)
	if ctx.Err() != nil {
		return Result{Outcome: dto.OutcomeCancelled, Stats: e.stats()}
	}
	if done && e.allSatisfied() {
		return Result{Outcome: dto.OutcomeSAT, Slots: e.exportSlots(), Stats: e.stats(), Warnings: e.consecutivenessWarnings()}
	}
	if e.iterations > e.problem.MaxIterations {
		return Result{Outcome: dto.OutcomeExhausted, Stats: e.stats()}
	}
	return Result{Outcome: dto.OutcomeUnsat, Stats: e.stats()}
}

// search recurses over cell index, returning true once every cell has been
// visited and every demand is met. It returns false when the cells past
// cellIndex cannot complete the demand (the caller then undoes its placement
// and tries the next one), when the iteration budget is blown, or when the
// context is cancelled.
func (e *Engine) search(ctx context.Context, cellIndex int) bool {
	if cellIndex >= len(e.problem.Cells) {
		return e.allSatisfied()
	}

	e.iterations++
	if e.iterations%yieldInterval == 0 {
		select {
		case <-ctx.Done():
			return false
		default:
		}
	}
	if e.iterations > e.problem.MaxIterations {
		return false
	}

	cell := e.problem.Cells[cellIndex]

	for _, key := range e.orderedDemandKeys() {
		demand := e.demandByKey[key]
		if e.scheduled[key] >= demand.HoursPerWeek {
			continue
		}
		if e.groupBusy[cellIndex][key.GroupID] {
			continue
		}
		dayKey := dayCountKey(key, cell.Day)
		if demand.Subject.MaxPeriodsPerDay > 0 && e.dayCount[dayKey] >= demand.Subject.MaxPeriodsPerDay {
			continue
		}

		for _, teacher := range demand.EligibleTeachers {
			if e.teacherBusy[cellIndex][teacher.TeacherID] {
				continue
			}
			if demand.ForbiddenTeacherCells[teacher.TeacherID][cell] {
				continue
			}

			for _, room := range demand.EligibleRooms {
				if e.roomBusy[cellIndex][room.ID] {
					continue
				}

				e.place(cellIndex, key, teacher.TeacherID, room.ID, cell.Day)
				if e.search(ctx, cellIndex+1) {
					return true
				}
				if ctx.Err() != nil || e.iterations > e.problem.MaxIterations {
					return false
				}
				e.undo(cellIndex, key, teacher.TeacherID, room.ID, cell.Day)
			}
		}
	}

	// No placement at this cell; recurse leaving it empty (gaps allowed).
	return e.search(ctx, cellIndex+1)
}

func (e *Engine) place(cellIndex int, key demandKey, teacherID, roomID string, day models.Day) {
	e.cellAssignments[cellIndex] = append(e.cellAssignments[cellIndex], placement{
		cellIndex: cellIndex, demandKey: key, teacherID: teacherID, roomID: roomID,
	})
	e.teacherBusy[cellIndex][teacherID] = true
	e.groupBusy[cellIndex][key.GroupID] = true
	e.roomBusy[cellIndex][roomID] = true
	e.scheduled[key]++
	e.dayCount[dayCountKey(key, day)]++
}

func (e *Engine) undo(cellIndex int, key demandKey, teacherID, roomID string, day models.Day) {
	list := e.cellAssignments[cellIndex]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].demandKey == key && list[i].teacherID == teacherID && list[i].roomID == roomID {
			e.cellAssignments[cellIndex] = append(list[:i], list[i+1:]...)
			break
		}
	}
	delete(e.teacherBusy[cellIndex], teacherID)
	delete(e.groupBusy[cellIndex], key.GroupID)
	delete(e.roomBusy[cellIndex], roomID)
	e.scheduled[key]--
	e.dayCount[dayCountKey(key, day)]--
}

// orderedDemandKeys returns demand keys in the compiler's stable
// (group, subject) ordering, so two runs over the same problem instance
// explore cells in the same order.
func (e *Engine) orderedDemandKeys() []demandKey {
	keys := make([]demandKey, 0, len(e.problem.Demands))
	for _, d := range e.problem.Demands {
		keys = append(keys, demandKey{GroupID: d.GroupID, SubjectID: d.Subject.ID})
	}
	return keys
}

func (e *Engine) allSatisfied() bool {
	for key, demand := range e.demandByKey {
		if e.scheduled[key] < demand.HoursPerWeek {
			return false
		}
	}
	return true
}

func dayCountKey(key demandKey, day models.Day) string {
	return key.GroupID + "|" + key.SubjectID + "|" + string(day)
}

func (e *Engine) totalPlaced() int {
	total := 0
	for _, count := range e.scheduled {
		total += count
	}
	return total
}

func (e *Engine) subjectsFullyScheduled() int {
	count := 0
	for key, demand := range e.demandByKey {
		if e.scheduled[key] >= demand.HoursPerWeek {
			count++
		}
	}
	return count
}

func (e *Engine) stats() dto.GenerationStats {
	totalDemand := 0
	for _, d := range e.demandByKey {
		totalDemand += d.HoursPerWeek
	}
	completion := 100.0
	if totalDemand > 0 {
		completion = 100.0 * float64(e.totalPlaced()) / float64(totalDemand)
	}
	return dto.GenerationStats{
		Iterations:             e.iterations,
		TotalPlaced:            e.totalPlaced(),
		SubjectsFullyScheduled: e.subjectsFullyScheduled(),
		CompletionPercentage:   completion,
	}
}

// consecutivenessWarnings reports, per (group, subject) requiring
// consecutive periods, whether any day's placements ended up
// non-contiguous. The search does not hard-gate this preference (doing so
// inline would require tracking per-day contiguous capacity at every
// placement, which the engine does not); instead it is checked once against
// the finished solution and surfaced as a best-effort downgrade warning
// rather than silently dropped.
func (e *Engine) consecutivenessWarnings() []dto.GenerationWarning {
	type dayPeriods map[models.Day][]int
	byDemand := make(map[demandKey]dayPeriods)

	for cellIndex, list := range e.cellAssignments {
		cell := e.problem.Cells[cellIndex]
		for _, p := range list {
			demand := e.demandByKey[p.demandKey]
			if !demand.Subject.RequiresConsecutivePeriods {
				continue
			}
			if byDemand[p.demandKey] == nil {
				byDemand[p.demandKey] = make(dayPeriods)
			}
			byDemand[p.demandKey][cell.Day] = append(byDemand[p.demandKey][cell.Day], cell.Period)
		}
	}

	var warnings []dto.GenerationWarning
	for key, days := range byDemand {
		demand := e.demandByKey[key]
		for _, periods := range days {
			sort.Ints(periods)
			contiguous := true
			for i := 1; i < len(periods); i++ {
				if periods[i] != periods[i-1]+1 {
					contiguous = false
					break
				}
			}
			if !contiguous {
				warnings = append(warnings, dto.GenerationWarning{
					Code:    "CONSECUTIVE_PERIODS_DOWNGRADED",
					Message: "subject " + demand.Subject.Code + " for group " + key.GroupID + " could not be placed on contiguous periods on at least one day",
				})
			}
		}
	}
	return warnings
}

// exportSlots flattens per-cell placements into sorted slot records
// (day_index, period, group.code), resolving the denormalized display
// fields the wire format requires.
func (e *Engine) exportSlots() []dto.SlotRecord {
	groupByID := make(map[string]models.StudentGroup, len(e.problem.Groups))
	for _, g := range e.problem.Groups {
		groupByID[g.ID] = g
	}
	teacherByID := make(map[string]dto.TeacherRef)
	roomByID := make(map[string]dto.RoomRef)
	for _, d := range e.problem.Demands {
		for _, t := range d.EligibleTeachers {
			teacherByID[t.TeacherID] = dto.TeacherRef{ID: t.TeacherID, Code: t.TeacherCode, Name: t.TeacherName}
		}
		for _, r := range d.EligibleRooms {
			roomByID[r.ID] = dto.RoomRef{ID: r.ID, Code: r.Code, Type: string(r.RoomType)}
		}
	}

	type sortableRecord struct {
		day    models.Day
		record dto.SlotRecord
	}
	var rows []sortableRecord
	for cellIndex, list := range e.cellAssignments {
		cell := e.problem.Cells[cellIndex]
		for _, p := range list {
			demand := e.demandByKey[p.demandKey]
			group := groupByID[p.demandKey.GroupID]
			rows = append(rows, sortableRecord{
				day: cell.Day,
				record: dto.SlotRecord{
					Day:     cell.Day.String(),
					Period:  cell.Period,
					Teacher: teacherByID[p.teacherID],
					Subject: dto.SubjectRef{
						ID:   demand.Subject.ID,
						Code: demand.Subject.Code,
						Name: demand.Subject.Name,
						Type: string(demand.Subject.CourseType),
					},
					Group: dto.GroupRef{ID: group.ID, Code: group.Code},
					Room:  roomByID[p.roomID],
				},
			})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].day != rows[j].day {
			return rows[i].day < rows[j].day
		}
		if rows[i].record.Period != rows[j].record.Period {
			return rows[i].record.Period < rows[j].record.Period
		}
		return rows[i].record.Group.Code < rows[j].record.Group.Code
	})

	records := make([]dto.SlotRecord, len(rows))
	for i, r := range rows {
		records[i] = r.record
	}
	return records
}
