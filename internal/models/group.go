package models

import "time"

// StudentGroup is a cohort of students sharing the same weekly timetable.
type StudentGroup struct {
	ID            string    `db:"id" json:"id"`
	Code          string    `db:"code" json:"code"`
	Strength      int       `db:"strength" json:"strength"`
	Department    string    `db:"department" json:"department"`
	Semester      int       `db:"semester" json:"semester"`
	AcademicYear  string    `db:"academic_year" json:"academic_year"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
