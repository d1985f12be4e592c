package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pattern-signup-api/internal/dto"
	"github.com/noah-isme/pattern-signup-api/internal/models"
	appErrors "github.com/noah-isme/pattern-signup-api/pkg/errors"
)

type boardCacheStub struct {
	stored *dto.Board
	gets   int
	sets   int
}

func (c *boardCacheStub) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.gets++
	if c.stored == nil {
		return false, nil
	}
	*(dest.(*dto.Board)) = *c.stored
	return true, nil
}

func (c *boardCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.sets++
	c.stored = value.(*dto.Board)
	return nil
}

func newBoardFixture() (*BoardService, *patternRepoStub, *requestRepoStub, *slotRepoStub, *boardCacheStub) {
	patterns := newPatternRepoStub(
		models.Pattern{Name: "Adapter", CatalogVersion: "2025.1"},
		models.Pattern{Name: "Observer", CatalogVersion: "2025.2"},
		models.Pattern{Name: "Singleton", Status: models.PatternStatusAssigned, CatalogVersion: "2025.1"},
	)
	requests := newRequestRepoStub(patterns)
	slots := newSlotRepoStub()
	cache := &boardCacheStub{}
	svc := NewBoardService(patterns, requests, slots, cache, nil, time.Minute, nil)
	return svc, patterns, requests, slots, cache
}

func TestBoardServiceBuildsEntries(t *testing.T) {
	svc, _, requests, slots, _ := newBoardFixture()
	requests.add("Observer", false, models.RequestStatusPending, "Alan")
	requests.add("Singleton", false, models.RequestStatusApproved, "Ada", "Grace")
	requests.add("Event Sourcing", true, models.RequestStatusApproved, "Barbara")
	requests.add("Adapter", false, models.RequestStatusRejected, "Edsger")
	_, err := slots.Upsert(context.Background(), "Singleton", time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	board, hit, err := svc.Board(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "2025.2", board.CatalogVersion)
	require.Len(t, board.Entries, 4)

	byName := make(map[string]dto.BoardEntry, len(board.Entries))
	for _, e := range board.Entries {
		byName[e.Name] = e
	}
	assert.Equal(t, models.PatternStatusAvailable, byName["Adapter"].Status)
	assert.Empty(t, byName["Adapter"].Students)
	assert.Equal(t, models.PatternStatusPending, byName["Observer"].Status)
	assert.Equal(t, 1, byName["Observer"].PendingRequests)

	singleton := byName["Singleton"]
	assert.Equal(t, models.PatternStatusAssigned, singleton.Status)
	assert.Equal(t, []string{"Ada", "Grace"}, singleton.Students)
	require.NotNil(t, singleton.PresentationDate)
	assert.Equal(t, "2025-04-02", *singleton.PresentationDate)

	custom := byName["Event Sourcing"]
	assert.True(t, custom.Custom)
	assert.Equal(t, models.PatternStatusAssigned, custom.Status)
	assert.Nil(t, custom.PresentationDate)

	assert.Equal(t, "Adapter", board.Entries[0].Name)
	assert.Equal(t, "Event Sourcing", board.Entries[1].Name)
}

func TestBoardServiceServesFromCache(t *testing.T) {
	svc, _, _, _, cache := newBoardFixture()

	_, hit, err := svc.Board(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, cache.sets)

	_, hit, err = svc.Board(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, cache.sets)
}

func TestBoardServiceStorageError(t *testing.T) {
	svc, patterns, _, _, cache := newBoardFixture()
	patterns.listErr = errors.New("db down")

	_, _, err := svc.Board(context.Background())
	requireAppError(t, err, appErrors.ErrStorage.Code)
	assert.Equal(t, 0, cache.sets)
}

func TestDisplayStatus(t *testing.T) {
	assert.Equal(t, models.PatternStatusAssigned, displayStatus(models.PatternStatusAssigned, 2))
	assert.Equal(t, models.PatternStatusPending, displayStatus(models.PatternStatusAvailable, 1))
	assert.Equal(t, models.PatternStatusAvailable, displayStatus(models.PatternStatusAvailable, 0))
}
