package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/pattern-signup-api/internal/models"
)

const requestColumns = `id, pattern_name, custom_pattern, student1_name, student2_name, status, created_at, decided_by, decided_at, note`

// PatternRequestRepository persists the request ledger.
type PatternRequestRepository struct {
	db *sqlx.DB
}

// NewPatternRequestRepository constructs the repository.
func NewPatternRequestRepository(db *sqlx.DB) *PatternRequestRepository {
	return &PatternRequestRepository{db: db}
}

// Create inserts a new pending request.
func (r *PatternRequestRepository) Create(ctx context.Context, req *models.PatternRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO pattern_requests
	(id, pattern_name, custom_pattern, student1_name, student2_name, status, created_at)
	VALUES (:id, :pattern_name, :custom_pattern, :student1_name, :student2_name, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create pattern request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *PatternRequestRepository) GetByID(ctx context.Context, id string) (*models.PatternRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM pattern_requests WHERE id = $1`
	var req models.PatternRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests matching the filter, oldest first.
func (r *PatternRequestRepository) List(ctx context.Context, filter models.PatternRequestFilter) ([]models.PatternRequest, error) {
	where, args := requestFilterClause(filter)
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + requestColumns + ` FROM pattern_requests`)
	builder.WriteString(where)
	builder.WriteString(" ORDER BY created_at ASC")

	if filter.Limit > 0 {
		limit := filter.Limit
		if limit > 500 {
			limit = 500
		}
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))
	}

	var requests []models.PatternRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list pattern requests: %w", err)
	}
	return requests, nil
}

// Count returns the number of requests matching the filter. Limit and Offset are ignored.
func (r *PatternRequestRepository) Count(ctx context.Context, filter models.PatternRequestFilter) (int, error) {
	where, args := requestFilterClause(filter)
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM pattern_requests`+where, args...); err != nil {
		return 0, fmt.Errorf("count pattern requests: %w", err)
	}
	return total, nil
}

func requestFilterClause(filter models.PatternRequestFilter) (string, []interface{}) {
	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 2)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if name := strings.TrimSpace(filter.PatternName); name != "" {
		args = append(args, name)
		conditions = append(conditions, fmt.Sprintf("LOWER(pattern_name) = LOWER($%d)", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// CountByPattern counts requests for a pattern name (ignoring case) in the given status.
func (r *PatternRequestRepository) CountByPattern(ctx context.Context, patternName string, status models.RequestStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM pattern_requests WHERE LOWER(pattern_name) = LOWER($1) AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, strings.TrimSpace(patternName), status); err != nil {
		return 0, fmt.Errorf("count pattern requests: %w", err)
	}
	return count, nil
}

// PendingCounts returns pending request counts keyed by lower-cased pattern name.
func (r *PatternRequestRepository) PendingCounts(ctx context.Context) (map[string]int, error) {
	const query = `SELECT LOWER(pattern_name) AS pattern_key, COUNT(*) AS pending
FROM pattern_requests WHERE status = $1 GROUP BY LOWER(pattern_name)`
	var rows []struct {
		PatternKey string `db:"pattern_key"`
		Pending    int    `db:"pending"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, models.RequestStatusPending); err != nil {
		return nil, fmt.Errorf("count pending requests: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.PatternKey] = row.Pending
	}
	return counts, nil
}

// DecisionParams groups the values written when a request is decided.
type DecisionParams struct {
	ID        string
	Status    models.RequestStatus
	DecidedBy string
	DecidedAt time.Time
	Note      *string
}

// ApplyDecision transitions a pending request and, on approval of a catalog pattern, marks the
// pattern assigned. Both writes commit together or not at all. The request row and the pattern
// row are locked for the duration.
//
// Returns sql.ErrNoRows for an unknown id, ErrRequestNotPending when the request was already
// decided and ErrPatternAssigned when another request already holds the pattern.
func (r *PatternRequestRepository) ApplyDecision(ctx context.Context, params DecisionParams) (req *models.PatternRequest, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin decision transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.PatternRequest
	lockRequest := `SELECT ` + requestColumns + ` FROM pattern_requests WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockRequest, params.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock pattern request: %w", err)
	}
	if current.Status != models.RequestStatusPending {
		err = ErrRequestNotPending
		return nil, err
	}

	approve := params.Status == models.RequestStatusApproved
	if approve {
		if err = r.ensureAssignable(ctx, tx, current); err != nil {
			return nil, err
		}
	}

	const updateRequest = `UPDATE pattern_requests SET status = $2, decided_by = $3, decided_at = $4, note = $5
WHERE id = $1 AND status = 'pending'`
	res, err := tx.ExecContext(ctx, updateRequest, params.ID, params.Status, params.DecidedBy, params.DecidedAt, params.Note)
	if err != nil {
		if isUniqueViolation(err) {
			err = ErrPatternAssigned
			return nil, err
		}
		return nil, fmt.Errorf("update pattern request: %w", err)
	}
	if affected, rowsErr := res.RowsAffected(); rowsErr == nil && affected == 0 {
		err = ErrRequestNotPending
		return nil, err
	}

	if approve && !current.CustomPattern {
		const assign = `UPDATE patterns SET status = $2, updated_at = $3 WHERE LOWER(name) = LOWER($1)`
		if _, err = tx.ExecContext(ctx, assign, current.PatternName, models.PatternStatusAssigned, params.DecidedAt); err != nil {
			return nil, fmt.Errorf("assign pattern: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			err = ErrPatternAssigned
			return nil, err
		}
		return nil, fmt.Errorf("commit decision: %w", err)
	}

	current.Status = params.Status
	current.DecidedBy = &params.DecidedBy
	current.DecidedAt = &params.DecidedAt
	current.Note = params.Note
	return &current, nil
}

func (r *PatternRequestRepository) ensureAssignable(ctx context.Context, tx *sqlx.Tx, req models.PatternRequest) error {
	if !req.CustomPattern {
		var status models.PatternStatus
		const lockPattern = `SELECT status FROM patterns WHERE LOWER(name) = LOWER($1) FOR UPDATE`
		if err := tx.GetContext(ctx, &status, lockPattern, req.PatternName); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("pattern %s missing from catalog", req.PatternName)
			}
			return fmt.Errorf("lock pattern %s: %w", req.PatternName, err)
		}
		if status == models.PatternStatusAssigned {
			return ErrPatternAssigned
		}
	}

	var approved int
	const countApproved = `SELECT COUNT(*) FROM pattern_requests WHERE LOWER(pattern_name) = LOWER($1) AND status = 'approved'`
	if err := tx.GetContext(ctx, &approved, countApproved, req.PatternName); err != nil {
		return fmt.Errorf("count approved requests: %w", err)
	}
	if approved > 0 {
		return ErrPatternAssigned
	}
	return nil
}
