package dto

// DateLayout is the wire format for presentation days.
const DateLayout = "2006-01-02"

// ScheduleRequest sets the presentation day of an assigned pattern.
type ScheduleRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// CalendarQuery bounds the calendar listing (inclusive, YYYY-MM-DD).
type CalendarQuery struct {
	From string `form:"from"`
	To   string `form:"to"`
}

// CalendarPattern is a pattern presented on a calendar day.
type CalendarPattern struct {
	Name     string   `json:"name"`
	Custom   bool     `json:"custom"`
	Students []string `json:"students"`
}

// CalendarDay groups the presentations held on one day.
type CalendarDay struct {
	Date     string            `json:"date"`
	Patterns []CalendarPattern `json:"patterns"`
}

// ExportQuery selects the roster export format.
type ExportQuery struct {
	Format string `form:"format"`
}
