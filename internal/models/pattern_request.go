package models

import "time"

// RequestStatus captures workflow states for pattern requests.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected:
		return true
	default:
		return false
	}
}

// DecisionOutcome is an administrator verdict on a pending request.
type DecisionOutcome string

const (
	DecisionApprove DecisionOutcome = "approve"
	DecisionReject  DecisionOutcome = "reject"
)

// Status maps the outcome to the resulting request status.
func (o DecisionOutcome) Status() (RequestStatus, bool) {
	switch o {
	case DecisionApprove:
		return RequestStatusApproved, true
	case DecisionReject:
		return RequestStatusRejected, true
	default:
		return "", false
	}
}

// MaxPendingPerPattern caps in-flight requests claiming the same pattern.
const MaxPendingPerPattern = 2

// PatternRequest is a student (or pair) submission claiming a pattern.
type PatternRequest struct {
	ID            string        `db:"id" json:"id"`
	PatternName   string        `db:"pattern_name" json:"pattern_name"`
	CustomPattern bool          `db:"custom_pattern" json:"custom_pattern"`
	Student1Name  string        `db:"student1_name" json:"student1_name"`
	Student2Name  *string       `db:"student2_name" json:"student2_name,omitempty"`
	Status        RequestStatus `db:"status" json:"status"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	DecidedBy     *string       `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt     *time.Time    `db:"decided_at" json:"decided_at,omitempty"`
	Note          *string       `db:"note" json:"note,omitempty"`
}

// Students lists the group members in submission order.
func (r PatternRequest) Students() []string {
	students := []string{r.Student1Name}
	if r.Student2Name != nil && *r.Student2Name != "" {
		students = append(students, *r.Student2Name)
	}
	return students
}

// PatternRequestFilter constrains listing queries.
type PatternRequestFilter struct {
	Status      []RequestStatus
	PatternName string
	Limit       int
	Offset      int
}
