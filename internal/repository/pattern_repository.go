package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/pattern-signup-api/internal/models"
)

const patternColumns = `name, status, description, example, catalog_version, created_at, updated_at`

// PatternRepository persists the pattern catalog.
type PatternRepository struct {
	db *sqlx.DB
}

// NewPatternRepository constructs the repository.
func NewPatternRepository(db *sqlx.DB) *PatternRepository {
	return &PatternRepository{db: db}
}

// FindByName looks a pattern up ignoring case. Returns sql.ErrNoRows when absent.
func (r *PatternRepository) FindByName(ctx context.Context, name string) (*models.Pattern, error) {
	query := `SELECT ` + patternColumns + ` FROM patterns WHERE LOWER(name) = LOWER($1) LIMIT 1`
	var pattern models.Pattern
	if err := r.db.GetContext(ctx, &pattern, query, strings.TrimSpace(name)); err != nil {
		return nil, err
	}
	return &pattern, nil
}

// List returns catalog patterns ordered by name.
func (r *PatternRepository) List(ctx context.Context, filter models.PatternFilter) ([]models.Pattern, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT ` + patternColumns + ` FROM patterns`)

	conditions := make([]string, 0, 2)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY name ASC")

	var patterns []models.Pattern
	if err := r.db.SelectContext(ctx, &patterns, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	return patterns, nil
}

// ListAvailable returns available patterns with fewer than maxPending pending requests.
func (r *PatternRepository) ListAvailable(ctx context.Context, maxPending int) ([]models.Pattern, error) {
	const query = `SELECT p.name, p.status, p.description, p.example, p.catalog_version, p.created_at, p.updated_at
FROM patterns p
WHERE p.status = $1
	AND (
		SELECT COUNT(*) FROM pattern_requests pr
		WHERE LOWER(pr.pattern_name) = LOWER(p.name) AND pr.status = $2
	) < $3
ORDER BY p.name ASC`
	var patterns []models.Pattern
	if err := r.db.SelectContext(ctx, &patterns, query, models.PatternStatusAvailable, models.RequestStatusPending, maxPending); err != nil {
		return nil, fmt.Errorf("list available patterns: %w", err)
	}
	return patterns, nil
}

// SyncResult summarises a catalog upsert.
type SyncResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// UpsertCatalog inserts new catalog entries and refreshes metadata of existing ones, matching
// names ignoring case and keeping the stored spelling. A name that already holds an approved
// request is stored as assigned, and pending requests for it stop being custom so their
// approval assigns the catalog row.
func (r *PatternRepository) UpsertCatalog(ctx context.Context, patterns []models.Pattern) (result SyncResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin catalog sync: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const upsert = `INSERT INTO patterns (name, status, description, example, catalog_version, created_at, updated_at)
VALUES ($1,
	CASE WHEN EXISTS (
		SELECT 1 FROM pattern_requests
		WHERE LOWER(pattern_name) = LOWER($1) AND status = $7
	) THEN $8 ELSE $2 END,
	$3, $4, $5, $6, $6)
ON CONFLICT ((LOWER(name))) DO UPDATE SET
	status = CASE WHEN EXCLUDED.status = $8 THEN EXCLUDED.status ELSE patterns.status END,
	description = EXCLUDED.description,
	example = EXCLUDED.example,
	catalog_version = EXCLUDED.catalog_version,
	updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0) AS inserted`
	const adopt = `UPDATE pattern_requests SET custom_pattern = FALSE
WHERE LOWER(pattern_name) = LOWER($1) AND status = $2 AND custom_pattern`

	now := time.Now().UTC()
	for _, p := range patterns {
		var inserted bool
		if err = tx.GetContext(ctx, &inserted, upsert,
			p.Name, models.PatternStatusAvailable, p.Description, p.Example, p.CatalogVersion, now,
			models.RequestStatusApproved, models.PatternStatusAssigned,
		); err != nil {
			return result, fmt.Errorf("upsert pattern %s: %w", p.Name, err)
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
		if _, err = tx.ExecContext(ctx, adopt, p.Name, models.RequestStatusPending); err != nil {
			return result, fmt.Errorf("adopt requests for %s: %w", p.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return result, fmt.Errorf("commit catalog sync: %w", err)
	}
	return result, nil
}
