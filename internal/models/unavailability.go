package models

import "time"

// TeacherUnavailability blocks a teacher from being placed in a cell.
// Permanent entries always apply; dated entries apply while the reference
// date is not after EndDate (EndDate nil = open-ended). StartDate is stored
// but not consulted. This always represents a hard block, never a soft
// preference.
type TeacherUnavailability struct {
	ID           string     `db:"id" json:"id"`
	TeacherID    string     `db:"teacher_id" json:"teacher_id"`
	DayOfWeek    Day        `db:"day_of_week" json:"day_of_week"`
	PeriodNumber int        `db:"period_number" json:"period_number"`
	Reason       string     `db:"reason" json:"reason,omitempty"`
	IsPermanent  bool       `db:"is_permanent" json:"is_permanent"`
	StartDate    *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate      *time.Time `db:"end_date" json:"end_date,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// ActiveOn reports whether the entry currently blocks the cell, given a
// reference date: permanent entries always apply; dated entries apply only
// when reference <= EndDate, or EndDate is unset.
func (u TeacherUnavailability) ActiveOn(reference time.Time) bool {
	if u.IsPermanent {
		return true
	}
	if u.EndDate == nil {
		return true
	}
	return !reference.After(*u.EndDate)
}

// Cell identifies a (day, period) slot eligible to hold assignments.
type Cell struct {
	Day    Day `db:"day_of_week" json:"day"`
	Period int `db:"period_number" json:"period"`
}
