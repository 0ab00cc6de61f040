package models

import "time"

// CourseType distinguishes the kind of session a subject requires, which in
// turn decides which room kinds may host it.
type CourseType string

const (
	CourseTheory    CourseType = "THEORY"
	CoursePractical CourseType = "PRACTICAL"
	CourseLab       CourseType = "LAB"
)

// RequiresLab reports whether the course type must be hosted in a Lab room.
func (c CourseType) RequiresLab() bool {
	return c == CoursePractical || c == CourseLab
}

// Subject is a unit of study with a fixed weekly hour demand per group.
type Subject struct {
	ID                       string     `db:"id" json:"id"`
	Code                     string     `db:"code" json:"code"`
	Name                     string     `db:"name" json:"name"`
	HoursPerWeek             int        `db:"hours_per_week" json:"hours_per_week"`
	CourseType               CourseType `db:"course_type" json:"course_type"`
	Department               string     `db:"department" json:"department"`
	Semester                 int        `db:"semester" json:"semester"`
	RequiresConsecutivePeriods bool     `db:"requires_consecutive_periods" json:"requires_consecutive_periods"`
	MaxPeriodsPerDay         int        `db:"max_periods_per_day" json:"max_periods_per_day"`
	Active                   bool       `db:"active" json:"active"`
	CreatedAt                time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time  `db:"updated_at" json:"updated_at"`
}
