package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

func newTimetableRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var testPartition = models.TimetablePartition{AcademicYear: "2026-27", SemesterType: models.SemesterOdd}

func TestTimetableRepositoryRead(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	rows := sqlmock.NewRows([]string{"id", "academic_year", "semester_type", "day_of_week", "period_number", "group_id", "subject_id", "teacher_id", "room_id", "created_at"}).
		AddRow("slot-1", "2026-27", "ODD", models.Monday, 1, "g1", "s1", "t1", "r1", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_slots t")).
		WithArgs("2026-27", "ODD").
		WillReturnRows(rows)

	slots, err := repo.Read(context.Background(), testPartition)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "g1", slots[0].GroupID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ReplaceAll must delete then insert within a single transaction, and roll
// back without touching the prior rows if any insert fails.
func TestTimetableRepositoryReplaceAll_CommitsAtomically(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_slots WHERE academic_year = $1 AND semester_type = $2")).
		WithArgs("2026-27", "ODD").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_slots")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	slots := []models.TimetableSlot{
		{DayOfWeek: models.Monday, PeriodNumber: 1, GroupID: "g1", SubjectID: "s1", TeacherID: "t1", RoomID: "r1"},
	}
	err := repo.ReplaceAll(context.Background(), testPartition, slots)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryReplaceAll_RollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_slots WHERE academic_year = $1 AND semester_type = $2")).
		WithArgs("2026-27", "ODD").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_slots")).
		WillReturnError(assertDriverErr)
	mock.ExpectRollback()

	slots := []models.TimetableSlot{
		{DayOfWeek: models.Monday, PeriodNumber: 1, GroupID: "g1", SubjectID: "s1", TeacherID: "t1", RoomID: "r1"},
	}
	err := repo.ReplaceAll(context.Background(), testPartition, slots)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryReplaceAll_EmptySlotsStillCommits(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_slots WHERE academic_year = $1 AND semester_type = $2")).
		WithArgs("2026-27", "ODD").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := repo.ReplaceAll(context.Background(), testPartition, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryClear(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_slots WHERE academic_year = $1 AND semester_type = $2")).
		WithArgs("2026-27", "ODD").
		WillReturnResult(sqlmock.NewResult(0, 5))

	err := repo.Clear(context.Background(), testPartition)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var assertDriverErr = &driverErr{"insert failed"}

type driverErr struct{ msg string }

func (e *driverErr) Error() string { return e.msg }
