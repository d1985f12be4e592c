package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/pattern-signup-api/internal/dto"
	"github.com/noah-isme/pattern-signup-api/internal/models"
	"github.com/noah-isme/pattern-signup-api/internal/repository"
	"github.com/noah-isme/pattern-signup-api/pkg/catalog"
	appErrors "github.com/noah-isme/pattern-signup-api/pkg/errors"
)

type patternCatalogStore interface {
	FindByName(ctx context.Context, name string) (*models.Pattern, error)
	List(ctx context.Context, filter models.PatternFilter) ([]models.Pattern, error)
	UpsertCatalog(ctx context.Context, patterns []models.Pattern) (repository.SyncResult, error)
}

type pendingCounter interface {
	PendingCounts(ctx context.Context) (map[string]int, error)
}

// PatternService exposes the pattern registry.
type PatternService struct {
	repo    patternCatalogStore
	pending pendingCounter
	audit   auditLogger
	cache   cacheInvalidator
	logger  *zap.Logger
}

// NewPatternService constructs the service. cache may be nil.
func NewPatternService(repo patternCatalogStore, pending pendingCounter, audit auditLogger, cache cacheInvalidator, logger *zap.Logger) *PatternService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatternService{repo: repo, pending: pending, audit: audit, cache: cache, logger: logger}
}

// List returns catalog patterns with their display status.
func (s *PatternService) List(ctx context.Context, query dto.PatternQuery) ([]dto.PatternView, error) {
	if query.Status != "" && !query.Status.Valid() {
		return nil, appErrors.Validation("status", fmt.Sprintf("unknown status %q", query.Status))
	}
	patterns, err := s.repo.List(ctx, models.PatternFilter{Search: query.Search})
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list patterns")
	}
	counts, err := s.pending.PendingCounts(ctx)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to count pending requests")
	}

	views := make([]dto.PatternView, 0, len(patterns))
	for _, p := range patterns {
		view := patternView(p, counts[models.PatternKey(p.Name)])
		if query.Status != "" && view.Status != query.Status {
			continue
		}
		views = append(views, view)
	}
	return views, nil
}

// Get returns a single pattern by name (case-insensitive).
func (s *PatternService) Get(ctx context.Context, name string) (*dto.PatternView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "pattern not found")
	}
	pattern, err := s.repo.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "pattern not found")
		}
		return nil, appErrors.Storage(err, "failed to load pattern")
	}
	counts, err := s.pending.PendingCounts(ctx)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to count pending requests")
	}
	view := patternView(*pattern, counts[models.PatternKey(pattern.Name)])
	return &view, nil
}

// SyncCatalog upserts the catalog file into the registry. New names start available unless an
// approved custom request already holds them; existing rows get their metadata refreshed.
func (s *PatternService) SyncCatalog(ctx context.Context, c *catalog.Catalog, actorID string) (repository.SyncResult, error) {
	if c == nil || len(c.Patterns) == 0 {
		return repository.SyncResult{}, appErrors.Validation("catalog", "catalog is empty")
	}
	patterns := make([]models.Pattern, 0, len(c.Patterns))
	for _, entry := range c.Patterns {
		patterns = append(patterns, models.Pattern{
			Name:           entry.Name,
			Description:    entry.Description,
			Example:        entry.Example,
			CatalogVersion: c.Version,
		})
	}

	result, err := s.repo.UpsertCatalog(ctx, patterns)
	if err != nil {
		return repository.SyncResult{}, appErrors.Storage(err, "failed to sync pattern catalog")
	}

	log := &models.AuditLog{
		Action:     models.AuditActionCatalogSync,
		Resource:   "pattern_catalog",
		ResourceID: &c.Version,
		NewValues:  marshalAudit(result),
	}
	if actorID != "" {
		log.UserID = &actorID
	}
	writeAudit(ctx, s.audit, s.logger, "pattern-service", log)
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, BoardCachePattern)
	}
	s.logger.Info("pattern catalog synced",
		zap.String("version", c.Version),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
	)
	return result, nil
}

func patternView(p models.Pattern, pending int) dto.PatternView {
	return dto.PatternView{
		Name:            p.Name,
		Status:          displayStatus(p.Status, pending),
		Description:     p.Description,
		Example:         p.Example,
		CatalogVersion:  p.CatalogVersion,
		PendingRequests: pending,
	}
}

// displayStatus derives the public status: assigned wins, otherwise pending while requests await
// a decision.
func displayStatus(stored models.PatternStatus, pending int) models.PatternStatus {
	switch {
	case stored == models.PatternStatusAssigned:
		return models.PatternStatusAssigned
	case pending > 0:
		return models.PatternStatusPending
	default:
		return models.PatternStatusAvailable
	}
}
