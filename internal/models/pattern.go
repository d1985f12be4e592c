package models

import (
	"strings"
	"time"
)

// PatternStatus is the lifecycle state of a catalog pattern.
type PatternStatus string

const (
	PatternStatusAvailable PatternStatus = "available"
	PatternStatusPending   PatternStatus = "pending"
	PatternStatusAssigned  PatternStatus = "assigned"
)

// Valid reports whether s is one of the known statuses.
func (s PatternStatus) Valid() bool {
	switch s {
	case PatternStatusAvailable, PatternStatusPending, PatternStatusAssigned:
		return true
	default:
		return false
	}
}

// Pattern is a cataloged design-pattern topic students can claim.
type Pattern struct {
	Name           string        `db:"name" json:"name"`
	Status         PatternStatus `db:"status" json:"status"`
	Description    string        `db:"description" json:"description"`
	Example        string        `db:"example" json:"example"`
	CatalogVersion string        `db:"catalog_version" json:"catalog_version"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// PatternFilter narrows catalog listings.
type PatternFilter struct {
	Status []PatternStatus
	Search string
}

// PatternKey normalises a pattern name for case-insensitive comparison.
func PatternKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
