package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/pattern-signup-api/internal/dto"
	"github.com/noah-isme/pattern-signup-api/internal/models"
	"github.com/noah-isme/pattern-signup-api/internal/repository"
	appErrors "github.com/noah-isme/pattern-signup-api/pkg/errors"
)

// BoardCachePattern matches every cached board payload.
const BoardCachePattern = "board:*"

type patternLookup interface {
	FindByName(ctx context.Context, name string) (*models.Pattern, error)
	ListAvailable(ctx context.Context, maxPending int) ([]models.Pattern, error)
}

type requestLedger interface {
	Create(ctx context.Context, req *models.PatternRequest) error
	GetByID(ctx context.Context, id string) (*models.PatternRequest, error)
	List(ctx context.Context, filter models.PatternRequestFilter) ([]models.PatternRequest, error)
	Count(ctx context.Context, filter models.PatternRequestFilter) (int, error)
	CountByPattern(ctx context.Context, patternName string, status models.RequestStatus) (int, error)
	ApplyDecision(ctx context.Context, params repository.DecisionParams) (*models.PatternRequest, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

type assignmentMetrics interface {
	RecordSubmission(custom bool)
	RecordDecision(outcome models.DecisionOutcome)
}

// AssignmentService resolves pattern requests against the catalog and the request ledger.
type AssignmentService struct {
	patterns  patternLookup
	requests  requestLedger
	audit     auditLogger
	cache     cacheInvalidator
	metrics   assignmentMetrics
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// AssignmentServiceOption configures the service.
type AssignmentServiceOption func(*AssignmentService)

// WithAssignmentCache invalidates cached board payloads after every mutation.
func WithAssignmentCache(cache cacheInvalidator) AssignmentServiceOption {
	return func(s *AssignmentService) {
		s.cache = cache
	}
}

// WithAssignmentMetrics records submissions and decisions.
func WithAssignmentMetrics(metrics assignmentMetrics) AssignmentServiceOption {
	return func(s *AssignmentService) {
		s.metrics = metrics
	}
}

// NewAssignmentService constructs the service.
func NewAssignmentService(patterns patternLookup, requests requestLedger, audit auditLogger, validate *validator.Validate, logger *zap.Logger, opts ...AssignmentServiceOption) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	svc := &AssignmentService{
		patterns:  patterns,
		requests:  requests,
		audit:     audit,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit records a new pending request for a catalog or custom pattern.
func (s *AssignmentService) Submit(ctx context.Context, req dto.SubmitPatternRequest) (*models.PatternRequest, error) {
	req = req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid pattern request")
	}

	switch {
	case req.SelectedPattern == "" && req.CustomPattern == "":
		return nil, appErrors.Validation("pattern", "select a pattern from the catalog or propose a custom one")
	case req.SelectedPattern != "" && req.CustomPattern != "":
		return nil, appErrors.Validation("pattern", "choose either a catalog pattern or a custom pattern, not both")
	}
	if req.Student2 != "" && strings.EqualFold(req.Student1, req.Student2) {
		return nil, appErrors.Validation("student2", "second student must differ from the first")
	}

	record := &models.PatternRequest{
		Student1Name: req.Student1,
		Status:       models.RequestStatusPending,
		CreatedAt:    s.now(),
	}
	if req.Student2 != "" {
		student2 := req.Student2
		record.Student2Name = &student2
	}

	var err error
	if req.SelectedPattern != "" {
		record.PatternName, err = s.resolveCatalogPattern(ctx, req.SelectedPattern)
	} else {
		record.PatternName, err = s.resolveCustomPattern(ctx, req.CustomPattern)
		record.CustomPattern = true
	}
	if err != nil {
		return nil, err
	}

	if err := s.requests.Create(ctx, record); err != nil {
		return nil, appErrors.Storage(err, "failed to store pattern request")
	}

	s.emitAudit(ctx, &models.AuditLog{
		Action:     models.AuditActionRequestSubmit,
		Resource:   "pattern_request",
		ResourceID: &record.ID,
		NewValues:  marshalAudit(record),
		IPAddress:  req.IP,
		UserAgent:  req.UserAgent,
	})
	if s.metrics != nil {
		s.metrics.RecordSubmission(record.CustomPattern)
	}
	s.invalidateBoard(ctx)
	s.logger.Info("pattern request submitted",
		zap.String("request_id", record.ID),
		zap.String("pattern", record.PatternName),
		zap.Bool("custom", record.CustomPattern),
	)
	return record, nil
}

func (s *AssignmentService) resolveCatalogPattern(ctx context.Context, name string) (string, error) {
	const field = "selected_pattern"
	pattern, err := s.patterns.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Validation(field, fmt.Sprintf("%q is not in the pattern catalog", name))
		}
		return "", appErrors.Storage(err, "failed to load pattern")
	}
	if pattern.Status != models.PatternStatusAvailable {
		return "", appErrors.Validation(field, fmt.Sprintf("%s is no longer available", pattern.Name))
	}
	pending, err := s.requests.CountByPattern(ctx, pattern.Name, models.RequestStatusPending)
	if err != nil {
		return "", appErrors.Storage(err, "failed to count pending requests")
	}
	if pending >= models.MaxPendingPerPattern {
		return "", appErrors.Validation(field, fmt.Sprintf("%s already has %d pending requests", pattern.Name, pending))
	}
	return pattern.Name, nil
}

func (s *AssignmentService) resolveCustomPattern(ctx context.Context, name string) (string, error) {
	const field = "custom_pattern"
	existing, err := s.patterns.FindByName(ctx, name)
	switch {
	case err == nil:
		return "", appErrors.Validation(field, fmt.Sprintf("%s is already in the catalog, select it from the list instead", existing.Name))
	case !errors.Is(err, sql.ErrNoRows):
		return "", appErrors.Storage(err, "failed to load pattern")
	}

	approved, err := s.requests.CountByPattern(ctx, name, models.RequestStatusApproved)
	if err != nil {
		return "", appErrors.Storage(err, "failed to count approved requests")
	}
	if approved > 0 {
		return "", appErrors.Validation(field, fmt.Sprintf("%s is already assigned", name))
	}
	pending, err := s.requests.CountByPattern(ctx, name, models.RequestStatusPending)
	if err != nil {
		return "", appErrors.Storage(err, "failed to count pending requests")
	}
	if pending >= models.MaxPendingPerPattern {
		return "", appErrors.Validation(field, fmt.Sprintf("%s already has %d pending requests", name, pending))
	}
	return name, nil
}

// Decide approves or rejects a pending request on behalf of the authenticated admin.
func (s *AssignmentService) Decide(ctx context.Context, id string, req dto.DecisionRequest, actor *models.JWTClaims) (*models.PatternRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req.Note = strings.TrimSpace(req.Note)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid decision")
	}
	status, ok := req.Outcome.Status()
	if !ok {
		return nil, appErrors.Validation("outcome", "must be one of: approve, reject")
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "pattern request not found")
	}

	params := repository.DecisionParams{
		ID:        id,
		Status:    status,
		DecidedBy: actor.UserID,
		DecidedAt: s.now(),
	}
	if req.Note != "" {
		note := req.Note
		params.Note = &note
	}

	decided, err := s.requests.ApplyDecision(ctx, params)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "pattern request not found")
		case errors.Is(err, repository.ErrRequestNotPending):
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "pattern request has already been decided")
		case errors.Is(err, repository.ErrPatternAssigned):
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "pattern is already assigned to another request")
		default:
			return nil, appErrors.Storage(err, "failed to record decision")
		}
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionRequestDecide,
		Resource:   "pattern_request",
		ResourceID: &decided.ID,
		OldValues:  []byte(`{"status":"pending"}`),
		NewValues:  marshalAudit(decided),
	})
	if s.metrics != nil {
		s.metrics.RecordDecision(req.Outcome)
	}
	s.invalidateBoard(ctx)
	s.logger.Info("pattern request decided",
		zap.String("request_id", decided.ID),
		zap.String("pattern", decided.PatternName),
		zap.String("outcome", string(req.Outcome)),
		zap.String("admin_id", actor.UserID),
	)
	return decided, nil
}

// AvailablePatterns lists catalog patterns that can still receive requests, ordered by name.
func (s *AssignmentService) AvailablePatterns(ctx context.Context) ([]models.Pattern, error) {
	patterns, err := s.patterns.ListAvailable(ctx, models.MaxPendingPerPattern)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list available patterns")
	}
	if patterns == nil {
		patterns = []models.Pattern{}
	}
	return patterns, nil
}

// ListRequests returns ledger entries for the admin dashboard.
func (s *AssignmentService) ListRequests(ctx context.Context, query dto.RequestQuery) ([]models.PatternRequest, *models.Pagination, error) {
	for _, status := range query.Status {
		if !status.Valid() {
			return nil, nil, appErrors.Validation("status", fmt.Sprintf("unknown status %q", status))
		}
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	filter := models.PatternRequestFilter{
		Status:      query.Status,
		PatternName: query.Pattern,
		Limit:       size,
		Offset:      (page - 1) * size,
	}
	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Storage(err, "failed to list pattern requests")
	}
	total, err := s.requests.Count(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Storage(err, "failed to count pattern requests")
	}
	if requests == nil {
		requests = []models.PatternRequest{}
	}
	return requests, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetRequest returns a single ledger entry.
func (s *AssignmentService) GetRequest(ctx context.Context, id string) (*models.PatternRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "pattern request not found")
	}
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "pattern request not found")
		}
		return nil, appErrors.Storage(err, "failed to load pattern request")
	}
	return req, nil
}

func (s *AssignmentService) emitAudit(ctx context.Context, log *models.AuditLog) {
	writeAudit(ctx, s.audit, s.logger, "assignment-service", log)
}

func (s *AssignmentService) invalidateBoard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	// failures are logged by CacheService
	_ = s.cache.Invalidate(ctx, BoardCachePattern)
}

