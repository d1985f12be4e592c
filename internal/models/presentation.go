package models

import "time"

// PresentationSlot schedules the presentation of an assigned pattern on a given day.
type PresentationSlot struct {
	ID          string    `db:"id" json:"id"`
	PatternName string    `db:"pattern_name" json:"pattern_name"`
	ScheduledOn time.Time `db:"scheduled_on" json:"scheduled_on"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// PresentationFilter bounds calendar queries by day (inclusive).
type PresentationFilter struct {
	From *time.Time
	To   *time.Time
}
