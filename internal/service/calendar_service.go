package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/pattern-signup-api/internal/dto"
	"github.com/noah-isme/pattern-signup-api/internal/models"
	appErrors "github.com/noah-isme/pattern-signup-api/pkg/errors"
)

type slotStore interface {
	Upsert(ctx context.Context, patternName string, day time.Time) (*models.PresentationSlot, error)
	Delete(ctx context.Context, patternName string) error
	List(ctx context.Context, filter models.PresentationFilter) ([]models.PresentationSlot, error)
}

type approvedRequestSource interface {
	List(ctx context.Context, filter models.PatternRequestFilter) ([]models.PatternRequest, error)
}

// CalendarService schedules presentations of assigned patterns.
type CalendarService struct {
	slots     slotStore
	requests  approvedRequestSource
	audit     auditLogger
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCalendarService constructs the service. cache may be nil.
func NewCalendarService(slots slotStore, requests approvedRequestSource, audit auditLogger, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &CalendarService{slots: slots, requests: requests, audit: audit, cache: cache, validator: validate, logger: logger}
}

// Schedule sets the presentation day of a pattern that has an approved request. Rescheduling
// replaces the previous day.
func (s *CalendarService) Schedule(ctx context.Context, patternName string, req dto.ScheduleRequest, actor *models.JWTClaims) (*models.PresentationSlot, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req.Date = strings.TrimSpace(req.Date)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid schedule")
	}
	day, err := time.Parse(dto.DateLayout, req.Date)
	if err != nil {
		return nil, appErrors.Validation("date", "must be a date formatted as "+dto.DateLayout)
	}

	assignment, err := s.approvedRequest(ctx, patternName)
	if err != nil {
		return nil, err
	}

	slot, err := s.slots.Upsert(ctx, assignment.PatternName, day)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to schedule presentation")
	}

	writeAudit(ctx, s.audit, s.logger, "calendar-service", &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionSlotSchedule,
		Resource:   "presentation_slot",
		ResourceID: &slot.ID,
		NewValues:  marshalAudit(slot),
	})
	s.invalidateBoard(ctx)
	return slot, nil
}

// Unschedule removes the presentation day of a pattern.
func (s *CalendarService) Unschedule(ctx context.Context, patternName string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	name := strings.TrimSpace(patternName)
	if err := s.slots.Delete(ctx, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "no presentation scheduled for pattern")
		}
		return appErrors.Storage(err, "failed to remove presentation")
	}

	writeAudit(ctx, s.audit, s.logger, "calendar-service", &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionSlotRemove,
		Resource:   "presentation_slot",
		ResourceID: &name,
	})
	s.invalidateBoard(ctx)
	return nil
}

// List returns presentation days in ascending order within the optional range.
func (s *CalendarService) List(ctx context.Context, query dto.CalendarQuery) ([]dto.CalendarDay, error) {
	filter, err := parseCalendarRange(query)
	if err != nil {
		return nil, err
	}
	slots, err := s.slots.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list presentations")
	}
	approved, err := s.requests.List(ctx, models.PatternRequestFilter{
		Status: []models.RequestStatus{models.RequestStatusApproved},
	})
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list assignments")
	}

	byKey := make(map[string]models.PatternRequest, len(approved))
	for _, req := range approved {
		byKey[models.PatternKey(req.PatternName)] = req
	}

	days := make([]dto.CalendarDay, 0)
	for _, slot := range slots {
		date := slot.ScheduledOn.Format(dto.DateLayout)
		if len(days) == 0 || days[len(days)-1].Date != date {
			days = append(days, dto.CalendarDay{Date: date, Patterns: []dto.CalendarPattern{}})
		}
		entry := dto.CalendarPattern{Name: slot.PatternName, Students: []string{}}
		if req, ok := byKey[models.PatternKey(slot.PatternName)]; ok {
			entry.Custom = req.CustomPattern
			entry.Students = req.Students()
		}
		current := &days[len(days)-1]
		current.Patterns = append(current.Patterns, entry)
	}
	return days, nil
}

func (s *CalendarService) approvedRequest(ctx context.Context, patternName string) (*models.PatternRequest, error) {
	name := strings.TrimSpace(patternName)
	if name == "" {
		return nil, appErrors.Validation("pattern", "pattern name is required")
	}
	approved, err := s.requests.List(ctx, models.PatternRequestFilter{
		Status:      []models.RequestStatus{models.RequestStatusApproved},
		PatternName: name,
		Limit:       1,
	})
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load assignment")
	}
	if len(approved) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "pattern has no approved request to schedule")
	}
	return &approved[0], nil
}

func (s *CalendarService) invalidateBoard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, BoardCachePattern)
}

func parseCalendarRange(query dto.CalendarQuery) (models.PresentationFilter, error) {
	var filter models.PresentationFilter
	if raw := strings.TrimSpace(query.From); raw != "" {
		from, err := time.Parse(dto.DateLayout, raw)
		if err != nil {
			return filter, appErrors.Validation("from", "must be a date formatted as "+dto.DateLayout)
		}
		filter.From = &from
	}
	if raw := strings.TrimSpace(query.To); raw != "" {
		to, err := time.Parse(dto.DateLayout, raw)
		if err != nil {
			return filter, appErrors.Validation("to", "must be a date formatted as "+dto.DateLayout)
		}
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, appErrors.Validation("to", "must not be before from")
	}
	return filter, nil
}
