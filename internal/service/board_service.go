package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/pattern-signup-api/internal/dto"
	"github.com/noah-isme/pattern-signup-api/internal/models"
	appErrors "github.com/noah-isme/pattern-signup-api/pkg/errors"
)

const boardCacheKey = "board:v1"

type boardPatternSource interface {
	List(ctx context.Context, filter models.PatternFilter) ([]models.Pattern, error)
}

type boardRequestSource interface {
	List(ctx context.Context, filter models.PatternRequestFilter) ([]models.PatternRequest, error)
	PendingCounts(ctx context.Context) (map[string]int, error)
}

type presentationSource interface {
	List(ctx context.Context, filter models.PresentationFilter) ([]models.PresentationSlot, error)
}

type boardCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type boardMetrics interface {
	ObserveBoardBuild(duration time.Duration)
}

// BoardService assembles the public availability board.
type BoardService struct {
	patterns boardPatternSource
	requests boardRequestSource
	slots    presentationSource
	cache    boardCache
	metrics  boardMetrics
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewBoardService constructs the service. cache and metrics may be nil.
func NewBoardService(patterns boardPatternSource, requests boardRequestSource, slots presentationSource, cache boardCache, metrics boardMetrics, ttl time.Duration, logger *zap.Logger) *BoardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardService{
		patterns: patterns,
		requests: requests,
		slots:    slots,
		cache:    cache,
		metrics:  metrics,
		ttl:      ttl,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Board returns the board and whether it was served from cache.
func (s *BoardService) Board(ctx context.Context) (*dto.Board, bool, error) {
	if s.cache != nil {
		var cached dto.Board
		if hit, err := s.cache.Get(ctx, boardCacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	start := time.Now()
	board, err := s.build(ctx)
	if err != nil {
		return nil, false, err
	}
	if s.metrics != nil {
		s.metrics.ObserveBoardBuild(time.Since(start))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, boardCacheKey, board, s.ttl); err != nil {
			s.logger.Debug("board not cached", zap.Error(err))
		}
	}
	return board, false, nil
}

func (s *BoardService) build(ctx context.Context) (*dto.Board, error) {
	var (
		patterns []models.Pattern
		approved []models.PatternRequest
		pending  map[string]int
		slots    []models.PresentationSlot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		patterns, err = s.patterns.List(gctx, models.PatternFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		approved, err = s.requests.List(gctx, models.PatternRequestFilter{
			Status: []models.RequestStatus{models.RequestStatusApproved},
		})
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = s.requests.PendingCounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		slots, err = s.slots.List(gctx, models.PresentationFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Storage(err, "failed to load board")
	}

	approvedByKey := make(map[string]models.PatternRequest, len(approved))
	for _, req := range approved {
		approvedByKey[models.PatternKey(req.PatternName)] = req
	}
	dates := make(map[string]string, len(slots))
	for _, slot := range slots {
		dates[models.PatternKey(slot.PatternName)] = slot.ScheduledOn.Format(dto.DateLayout)
	}

	board := &dto.Board{Entries: make([]dto.BoardEntry, 0, len(patterns)+len(approved)), GeneratedAt: s.now()}
	inCatalog := make(map[string]struct{}, len(patterns))
	for _, p := range patterns {
		key := models.PatternKey(p.Name)
		inCatalog[key] = struct{}{}
		if p.CatalogVersion > board.CatalogVersion {
			board.CatalogVersion = p.CatalogVersion
		}

		entry := dto.BoardEntry{
			Name:            p.Name,
			Status:          displayStatus(p.Status, pending[key]),
			Description:     p.Description,
			Example:         p.Example,
			Students:        []string{},
			PendingRequests: pending[key],
		}
		if req, ok := approvedByKey[key]; ok {
			entry.Status = models.PatternStatusAssigned
			entry.Students = req.Students()
			entry.PresentationDate = lookupDate(dates, key)
		}
		board.Entries = append(board.Entries, entry)
	}

	for key, req := range approvedByKey {
		if _, ok := inCatalog[key]; ok {
			continue
		}
		board.Entries = append(board.Entries, dto.BoardEntry{
			Name:             req.PatternName,
			Status:           models.PatternStatusAssigned,
			Custom:           true,
			Students:         req.Students(),
			PresentationDate: lookupDate(dates, key),
		})
	}

	sort.SliceStable(board.Entries, func(i, j int) bool {
		return strings.ToLower(board.Entries[i].Name) < strings.ToLower(board.Entries[j].Name)
	})
	return board, nil
}

func lookupDate(dates map[string]string, key string) *string {
	if date, ok := dates[key]; ok {
		return &date
	}
	return nil
}
