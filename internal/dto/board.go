package dto

import (
	"time"

	"github.com/noah-isme/pattern-signup-api/internal/models"
)

// PatternQuery filters catalog listings by display status or name fragment.
type PatternQuery struct {
	Status models.PatternStatus `form:"status"`
	Search string               `form:"q"`
}

// PatternView is a catalog pattern with its derived display status.
type PatternView struct {
	Name            string               `json:"name"`
	Status          models.PatternStatus `json:"status"`
	Description     string               `json:"description"`
	Example         string               `json:"example"`
	CatalogVersion  string               `json:"catalog_version"`
	PendingRequests int                  `json:"pending_requests"`
}

// BoardEntry is one row of the public availability board.
type BoardEntry struct {
	Name             string               `json:"name"`
	Status           models.PatternStatus `json:"status"`
	Description      string               `json:"description,omitempty"`
	Example          string               `json:"example,omitempty"`
	Custom           bool                 `json:"custom"`
	Students         []string             `json:"students"`
	PresentationDate *string              `json:"presentation_date,omitempty"`
	PendingRequests  int                  `json:"pending_requests"`
}

// Board is the public overview of every pattern and its assignment.
type Board struct {
	CatalogVersion string       `json:"catalog_version"`
	Entries        []BoardEntry `json:"entries"`
	GeneratedAt    time.Time    `json:"generated_at"`
}
