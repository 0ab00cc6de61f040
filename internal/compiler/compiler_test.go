package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/models"
)

type stubGroups struct {
	groups []models.StudentGroup
}

func (s stubGroups) ListByIDs(ctx context.Context, ids []string) ([]models.StudentGroup, error) {
	byID := make(map[string]models.StudentGroup, len(s.groups))
	for _, g := range s.groups {
		byID[g.ID] = g
	}
	var out []models.StudentGroup
	for _, id := range ids {
		if g, ok := byID[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

type stubSubjects struct {
	bySubjectOfGroup map[string][]models.Subject
}

func (s stubSubjects) SubjectsOfGroup(ctx context.Context, groupID string) ([]models.Subject, error) {
	return s.bySubjectOfGroup[groupID], nil
}

type stubTeachers struct {
	bySubject map[string][]models.EligibleTeacher
}

func (s stubTeachers) TeachersOfSubject(ctx context.Context, subjectID string) ([]models.EligibleTeacher, error) {
	return s.bySubject[subjectID], nil
}

type stubRooms struct {
	rooms []models.Room
}

func (s stubRooms) RoomsSatisfying(ctx context.Context, courseType models.CourseType, minCapacity int) ([]models.Room, error) {
	var out []models.Room
	for _, r := range s.rooms {
		if r.Satisfies(courseType, minCapacity) {
			out = append(out, r)
		}
	}
	return out, nil
}

type stubUnavailability struct{}

func (s stubUnavailability) UnavailabilityForTeachers(ctx context.Context, teacherIDs []string) ([]models.TeacherUnavailability, error) {
	return nil, nil
}

func baseRequest() dto.GenerationRequest {
	return dto.GenerationRequest{
		AcademicYear:     "2026-27",
		SemesterType:     "ODD",
		GroupIDs:         []string{"g1"},
		Days:             []string{"MONDAY"},
		PeriodsPerDay:    4,
		LunchBreakPeriod: 0,
	}
}

func TestCompile_TrivialSATInstance(t *testing.T) {
	c := New(
		stubGroups{groups: []models.StudentGroup{{ID: "g1", Code: "G1", Strength: 30, Active: true}}},
		stubSubjects{bySubjectOfGroup: map[string][]models.Subject{
			"g1": {{ID: "s1", Code: "MATH101", HoursPerWeek: 2, CourseType: models.CourseTheory, MaxPeriodsPerDay: 4, Active: true}},
		}},
		stubTeachers{bySubject: map[string][]models.EligibleTeacher{
			"s1": {{TeacherID: "t1", TeacherCode: "T1", Priority: 1}},
		}},
		stubRooms{rooms: []models.Room{{ID: "r1", Code: "R1", Capacity: 40, RoomType: models.RoomClassroom, Active: true}}},
		stubUnavailability{},
		nil,
	)

	instance, err := c.Compile(context.Background(), baseRequest())

	require.NoError(t, err)
	assert.Len(t, instance.Cells, 4)
	require.Len(t, instance.Demands, 1)
	assert.Equal(t, 2, instance.Demands[0].HoursPerWeek)
}

func TestCompile_NoLunchBreakKeepsAllCells(t *testing.T) {
	req := baseRequest()
	req.PeriodsPerDay = 6
	req.LunchBreakPeriod = 0

	c := New(
		stubGroups{groups: []models.StudentGroup{{ID: "g1", Code: "G1", Strength: 30, Active: true}}},
		stubSubjects{bySubjectOfGroup: map[string][]models.Subject{"g1": nil}},
		stubTeachers{},
		stubRooms{},
		stubUnavailability{},
		nil,
	)

	instance, err := c.Compile(context.Background(), req)

	require.NoError(t, err)
	assert.Len(t, instance.Cells, 6, "an unset lunch period must not remove any cell")
}

func TestCompile_LunchBreakExcludesCell(t *testing.T) {
	req := baseRequest()
	req.PeriodsPerDay = 6
	req.LunchBreakPeriod = 3

	c := New(
		stubGroups{groups: []models.StudentGroup{{ID: "g1", Code: "G1", Strength: 30, Active: true}}},
		stubSubjects{bySubjectOfGroup: map[string][]models.Subject{"g1": nil}},
		stubTeachers{},
		stubRooms{},
		stubUnavailability{},
		nil,
	)

	instance, err := c.Compile(context.Background(), req)

	require.NoError(t, err)
	assert.Len(t, instance.Cells, 5)
	for _, cell := range instance.Cells {
		assert.NotEqual(t, 3, cell.Period)
	}
}

// Room-kind mismatch: a Lab subject with only a Classroom available must
// fail preflight, not reach the search engine.
func TestCompile_RoomKindMismatchFailsPreflight(t *testing.T) {
	c := New(
		stubGroups{groups: []models.StudentGroup{{ID: "g1", Code: "G1", Strength: 30, Active: true}}},
		stubSubjects{bySubjectOfGroup: map[string][]models.Subject{
			"g1": {{ID: "s1", Code: "PHY-LAB", HoursPerWeek: 2, CourseType: models.CourseLab, MaxPeriodsPerDay: 4, Active: true}},
		}},
		stubTeachers{bySubject: map[string][]models.EligibleTeacher{
			"s1": {{TeacherID: "t1", TeacherCode: "T1", Priority: 1}},
		}},
		stubRooms{rooms: []models.Room{{ID: "r1", Code: "R1", Capacity: 40, RoomType: models.RoomClassroom, Active: true}}},
		stubUnavailability{},
		nil,
	)

	_, err := c.Compile(context.Background(), baseRequest())

	require.Error(t, err)
	preflightErr, ok := err.(*PreflightError)
	require.True(t, ok)
	var found bool
	for _, f := range preflightErr.Failures {
		if f.Code == "NO_ELIGIBLE_ROOM" {
			found = true
		}
	}
	assert.True(t, found)
}

// Capacity: group strength exceeds the only room's capacity.
func TestCompile_CapacityMismatchFailsPreflight(t *testing.T) {
	c := New(
		stubGroups{groups: []models.StudentGroup{{ID: "g1", Code: "G1", Strength: 55, Active: true}}},
		stubSubjects{bySubjectOfGroup: map[string][]models.Subject{
			"g1": {{ID: "s1", Code: "MATH101", HoursPerWeek: 2, CourseType: models.CourseTheory, MaxPeriodsPerDay: 4, Active: true}},
		}},
		stubTeachers{bySubject: map[string][]models.EligibleTeacher{
			"s1": {{TeacherID: "t1", TeacherCode: "T1", Priority: 1}},
		}},
		stubRooms{rooms: []models.Room{{ID: "r1", Code: "R1", Capacity: 40, RoomType: models.RoomClassroom, Active: true}}},
		stubUnavailability{},
		nil,
	)

	_, err := c.Compile(context.Background(), baseRequest())

	require.Error(t, err)
	preflightErr, ok := err.(*PreflightError)
	require.True(t, ok)
	var found bool
	for _, f := range preflightErr.Failures {
		if f.Code == "NO_ELIGIBLE_ROOM" {
			found = true
		}
	}
	assert.True(t, found)
}

// P3: demand exceeding available cells is rejected at preflight.
func TestCompile_DemandExceedsCapacity(t *testing.T) {
	req := baseRequest()
	req.PeriodsPerDay = 4 // 4 cells available on Monday alone

	c := New(
		stubGroups{groups: []models.StudentGroup{{ID: "g1", Code: "G1", Strength: 30, Active: true}}},
		stubSubjects{bySubjectOfGroup: map[string][]models.Subject{
			"g1": {{ID: "s1", Code: "MATH101", HoursPerWeek: 10, CourseType: models.CourseTheory, MaxPeriodsPerDay: 4, Active: true}},
		}},
		stubTeachers{bySubject: map[string][]models.EligibleTeacher{
			"s1": {{TeacherID: "t1", TeacherCode: "T1", Priority: 1}},
		}},
		stubRooms{rooms: []models.Room{{ID: "r1", Code: "R1", Capacity: 40, RoomType: models.RoomClassroom, Active: true}}},
		stubUnavailability{},
		nil,
	)

	_, err := c.Compile(context.Background(), req)

	require.Error(t, err)
	preflightErr, ok := err.(*PreflightError)
	require.True(t, ok)
	var found bool
	for _, f := range preflightErr.Failures {
		if f.Code == "DEMAND_EXCEEDS_CAPACITY" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCompile_UnknownGroupFailsPreflight(t *testing.T) {
	c := New(
		stubGroups{groups: nil},
		stubSubjects{},
		stubTeachers{},
		stubRooms{},
		stubUnavailability{},
		nil,
	)

	_, err := c.Compile(context.Background(), baseRequest())

	require.Error(t, err)
	preflightErr, ok := err.(*PreflightError)
	require.True(t, ok)
	assert.Equal(t, "GROUP_NOT_FOUND", preflightErr.Failures[0].Code)
}
