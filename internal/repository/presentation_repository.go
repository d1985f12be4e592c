package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/pattern-signup-api/internal/models"
)

// PresentationRepository stores presentation slots for assigned patterns.
type PresentationRepository struct {
	db *sqlx.DB
}

// NewPresentationRepository constructs the repository.
func NewPresentationRepository(db *sqlx.DB) *PresentationRepository {
	return &PresentationRepository{db: db}
}

// Upsert schedules a pattern on the given day, replacing any previous slot for the same pattern.
func (r *PresentationRepository) Upsert(ctx context.Context, patternName string, day time.Time) (*models.PresentationSlot, error) {
	const query = `INSERT INTO presentation_slots (id, pattern_name, scheduled_on, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT ((LOWER(pattern_name))) DO UPDATE SET
	scheduled_on = EXCLUDED.scheduled_on,
	updated_at = EXCLUDED.updated_at
RETURNING id, pattern_name, scheduled_on, created_at, updated_at`
	var slot models.PresentationSlot
	now := time.Now().UTC()
	if err := r.db.GetContext(ctx, &slot, query, uuid.NewString(), patternName, day, now); err != nil {
		return nil, fmt.Errorf("upsert presentation slot: %w", err)
	}
	return &slot, nil
}

// Delete removes the slot of a pattern. Returns sql.ErrNoRows when nothing was scheduled.
func (r *PresentationRepository) Delete(ctx context.Context, patternName string) error {
	const query = `DELETE FROM presentation_slots WHERE LOWER(pattern_name) = LOWER($1)`
	result, err := r.db.ExecContext(ctx, query, strings.TrimSpace(patternName))
	if err != nil {
		return fmt.Errorf("delete presentation slot: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check presentation delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns slots within the optional inclusive day range ordered by day then pattern.
func (r *PresentationRepository) List(ctx context.Context, filter models.PresentationFilter) ([]models.PresentationSlot, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 2)
	builder.WriteString(`SELECT id, pattern_name, scheduled_on, created_at, updated_at FROM presentation_slots`)

	conditions := make([]string, 0, 2)
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("scheduled_on >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("scheduled_on <= $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY scheduled_on ASC, pattern_name ASC")

	var slots []models.PresentationSlot
	if err := r.db.SelectContext(ctx, &slots, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list presentation slots: %w", err)
	}
	return slots, nil
}
