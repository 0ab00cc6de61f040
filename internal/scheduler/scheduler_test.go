package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-api/internal/compiler"
	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/models"
)

func mondayCells(n int) []models.Cell {
	cells := make([]models.Cell, 0, n)
	for p := 1; p <= n; p++ {
		cells = append(cells, models.Cell{Day: models.Monday, Period: p})
	}
	return cells
}

func theorySubject(code string, hours int) models.Subject {
	return models.Subject{
		ID: code, Code: code, Name: code, HoursPerWeek: hours,
		CourseType: models.CourseTheory, MaxPeriodsPerDay: 4, Active: true,
	}
}

// Trivial SAT: 1 group, 1 subject (hours=2), 1 teacher, 1 classroom, Mon only.
func TestEngineRun_TrivialSAT(t *testing.T) {
	subject := theorySubject("MATH101", 2)
	problem := &compiler.ProblemInstance{
		Cells:         mondayCells(4),
		Groups:        []models.StudentGroup{{ID: "g1", Code: "G1", Strength: 30}},
		MaxIterations: 100000,
		Demands: []compiler.Demand{
			{
				GroupID:      "g1",
				Subject:      subject,
				HoursPerWeek: 2,
				EligibleTeachers: []models.EligibleTeacher{
					{TeacherID: "t1", TeacherCode: "T1", TeacherName: "Teacher One", Priority: 1},
				},
				EligibleRooms: []models.Room{
					{ID: "r1", Code: "R1", Capacity: 40, RoomType: models.RoomClassroom},
				},
			},
		},
	}

	result := New(problem, nil).Run(context.Background())

	require.Equal(t, dto.OutcomeSAT, result.Outcome)
	require.Len(t, result.Slots, 2)
	for _, slot := range result.Slots {
		assert.Equal(t, "MONDAY", slot.Day)
		assert.Contains(t, []int{1, 2, 3, 4}, slot.Period)
	}
	assert.NotEqual(t, result.Slots[0].Period, result.Slots[1].Period)
	assert.Equal(t, 2, result.Stats.TotalPlaced)
	assert.Equal(t, 1, result.Stats.SubjectsFullyScheduled)
	assert.Equal(t, 100.0, result.Stats.CompletionPercentage)
}

// Teacher double-book prevented: 2 groups sharing one eligible teacher must
// never land in the same cell (invariant I1).
func TestEngineRun_TeacherExclusivity(t *testing.T) {
	subject := theorySubject("MATH101", 2)
	teacher := models.EligibleTeacher{TeacherID: "t1", TeacherCode: "T1", Priority: 1}
	room := models.Room{ID: "r1", Code: "R1", Capacity: 40, RoomType: models.RoomClassroom}

	problem := &compiler.ProblemInstance{
		Cells: mondayCells(4),
		Groups: []models.StudentGroup{
			{ID: "g1", Code: "G1", Strength: 30},
			{ID: "g2", Code: "G2", Strength: 30},
		},
		MaxIterations: 100000,
		Demands: []compiler.Demand{
			{GroupID: "g1", Subject: subject, HoursPerWeek: 2, EligibleTeachers: []models.EligibleTeacher{teacher}, EligibleRooms: []models.Room{room}},
			{GroupID: "g2", Subject: subject, HoursPerWeek: 2, EligibleTeachers: []models.EligibleTeacher{teacher}, EligibleRooms: []models.Room{room}},
		},
	}

	result := New(problem, nil).Run(context.Background())

	require.Equal(t, dto.OutcomeSAT, result.Outcome)
	require.Len(t, result.Slots, 4)

	type cellTeacher struct {
		day    string
		period int
	}
	seen := make(map[cellTeacher]bool)
	for _, slot := range result.Slots {
		key := cellTeacher{day: slot.Day, period: slot.Period}
		assert.False(t, seen[key], "two slots share (day, period, teacher)")
		seen[key] = true
	}
}

// Unavailability: teacher blocked for the entire day leaves no cell to
// place the subject's demand, so the search reports UNSAT.
func TestEngineRun_UnsatisfiableDueToUnavailability(t *testing.T) {
	subject := theorySubject("MATH101", 2)
	forbidden := map[string]map[models.Cell]bool{
		"t1": {
			{Day: models.Monday, Period: 1}: true,
			{Day: models.Monday, Period: 3}: true,
			{Day: models.Monday, Period: 4}: true,
		},
	}
	problem := &compiler.ProblemInstance{
		Cells:         []models.Cell{{Day: models.Monday, Period: 1}, {Day: models.Monday, Period: 3}, {Day: models.Monday, Period: 4}},
		Groups:        []models.StudentGroup{{ID: "g1", Code: "G1", Strength: 30}},
		MaxIterations: 100000,
		Demands: []compiler.Demand{
			{
				GroupID:      "g1",
				Subject:      subject,
				HoursPerWeek: 2,
				EligibleTeachers: []models.EligibleTeacher{
					{TeacherID: "t1", TeacherCode: "T1", Priority: 1},
				},
				EligibleRooms: []models.Room{
					{ID: "r1", Code: "R1", Capacity: 40, RoomType: models.RoomClassroom},
				},
				ForbiddenTeacherCells: forbidden,
			},
		},
	}

	result := New(problem, nil).Run(context.Background())

	assert.Equal(t, dto.OutcomeUnsat, result.Outcome)
	assert.Empty(t, result.Slots)
}

// Exhausted: an artificially tiny iteration budget stops the search before
// it can finish, surfaced distinctly from UNSAT.
func TestEngineRun_Exhausted(t *testing.T) {
	subject := theorySubject("MATH101", 4)
	teachers := []models.EligibleTeacher{
		{TeacherID: "t1", TeacherCode: "T1", Priority: 1},
		{TeacherID: "t2", TeacherCode: "T2", Priority: 2},
	}
	rooms := []models.Room{
		{ID: "r1", Code: "R1", Capacity: 40, RoomType: models.RoomClassroom},
		{ID: "r2", Code: "R2", Capacity: 40, RoomType: models.RoomClassroom},
	}
	problem := &compiler.ProblemInstance{
		Cells:         mondayCells(4),
		Groups:        []models.StudentGroup{{ID: "g1", Code: "G1", Strength: 30}},
		MaxIterations: 1,
		Demands: []compiler.Demand{
			{GroupID: "g1", Subject: subject, HoursPerWeek: 4, EligibleTeachers: teachers, EligibleRooms: rooms},
		},
	}

	result := New(problem, nil).Run(context.Background())

	assert.Equal(t, dto.OutcomeExhausted, result.Outcome)
}

// P2: identical inputs produce byte-identical (here, deep-equal) output.
func TestEngineRun_Deterministic(t *testing.T) {
	build := func() *compiler.ProblemInstance {
		return &compiler.ProblemInstance{
			Cells:         mondayCells(4),
			Groups:        []models.StudentGroup{{ID: "g1", Code: "G1", Strength: 30}},
			MaxIterations: 100000,
			Demands: []compiler.Demand{
				{
					GroupID: "g1", Subject: theorySubject("MATH101", 2), HoursPerWeek: 2,
					// Pre-sorted by priority then code, as the compiler guarantees.
					EligibleTeachers: []models.EligibleTeacher{
						{TeacherID: "t1", TeacherCode: "T1", Priority: 1},
						{TeacherID: "t2", TeacherCode: "T2", Priority: 2},
					},
					EligibleRooms: []models.Room{
						{ID: "r1", Code: "R1", Capacity: 40, RoomType: models.RoomClassroom},
					},
				},
			},
		}
	}

	first := New(build(), nil).Run(context.Background())
	second := New(build(), nil).Run(context.Background())

	require.Equal(t, dto.OutcomeSAT, first.Outcome)
	assert.Equal(t, first.Slots, second.Slots)
	// Priority ordering: teacher t1 (priority 1) must win over t2.
	for _, slot := range first.Slots {
		assert.Equal(t, "T1", slot.Teacher.Code)
	}
}

func TestEngineRun_Cancelled(t *testing.T) {
	subject := theorySubject("MATH101", 2)
	problem := &compiler.ProblemInstance{
		Cells:         mondayCells(4),
		Groups:        []models.StudentGroup{{ID: "g1", Code: "G1", Strength: 30}},
		MaxIterations: 100000,
		Demands: []compiler.Demand{
			{
				GroupID: "g1", Subject: subject, HoursPerWeek: 2,
				EligibleTeachers: []models.EligibleTeacher{{TeacherID: "t1", TeacherCode: "T1", Priority: 1}},
				EligibleRooms:    []models.Room{{ID: "r1", Code: "R1", Capacity: 40, RoomType: models.RoomClassroom}},
			},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already cancelled before Run ever starts searching

	result := New(problem, nil).Run(ctx)

	assert.Equal(t, dto.OutcomeCancelled, result.Outcome)
}
