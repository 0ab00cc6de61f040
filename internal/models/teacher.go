package models

import "time"

// Teacher represents an instructor eligible to be assigned teaching load.
type Teacher struct {
	ID         string    `db:"id" json:"id"`
	Code       string    `db:"code" json:"code"`
	Name       string    `db:"name" json:"name"`
	Department string    `db:"department" json:"department"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
