package dto

import (
	"strings"

	"github.com/noah-isme/pattern-signup-api/internal/models"
)

// SubmitPatternRequest is the public sign-up payload. Exactly one of SelectedPattern and
// CustomPattern must be set.
type SubmitPatternRequest struct {
	SelectedPattern string `json:"selected_pattern" validate:"omitempty,max=120"`
	CustomPattern   string `json:"custom_pattern" validate:"omitempty,max=120"`
	Student1        string `json:"student1" validate:"required,min=2,max=120"`
	Student2        string `json:"student2" validate:"omitempty,max=120"`
	IP              string `json:"-"`
	UserAgent       string `json:"-"`
}

// Normalize trims every user supplied field.
func (r SubmitPatternRequest) Normalize() SubmitPatternRequest {
	r.SelectedPattern = strings.TrimSpace(r.SelectedPattern)
	r.CustomPattern = strings.TrimSpace(r.CustomPattern)
	r.Student1 = strings.TrimSpace(r.Student1)
	r.Student2 = strings.TrimSpace(r.Student2)
	return r
}

// DecisionRequest carries an administrator verdict.
type DecisionRequest struct {
	Outcome models.DecisionOutcome `json:"outcome" validate:"required,oneof=approve reject"`
	Note    string                 `json:"note" validate:"omitempty,max=500"`
}

// RequestQuery filters the admin request listing.
type RequestQuery struct {
	Status   []models.RequestStatus `form:"status"`
	Pattern  string                 `form:"pattern"`
	Page     int                    `form:"page"`
	PageSize int                    `form:"page_size"`
}
