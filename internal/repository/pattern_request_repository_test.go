package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pattern-signup-api/internal/models"
)

var requestRowColumns = []string{"id", "pattern_name", "custom_pattern", "student1_name", "student2_name", "status", "created_at", "decided_by", "decided_at", "note"}

func pendingRequestRows(id, pattern string, custom bool) *sqlmock.Rows {
	return sqlmock.NewRows(requestRowColumns).
		AddRow(id, pattern, custom, "Ada", "Grace", "pending", time.Now(), nil, nil, nil)
}

func TestPatternRequestRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPatternRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pattern_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.PatternRequest{PatternName: "Singleton", Student1Name: "Ada"}
	require.NoError(t, repo.Create(context.Background(), req))
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.False(t, req.CreatedAt.IsZero())

	mock.ExpectQuery(regexp.QuoteMeta("FROM pattern_requests WHERE id = $1")).
		WithArgs(req.ID).
		WillReturnRows(pendingRequestRows(req.ID, "Singleton", false))

	found, err := repo.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada", "Grace"}, found.Students())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPatternRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPatternRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM pattern_requests WHERE status IN ($1) AND LOWER(pattern_name) = LOWER($2) ORDER BY created_at ASC LIMIT 20 OFFSET 0")).
		WithArgs(models.RequestStatusPending, "Proxy").
		WillReturnRows(pendingRequestRows("req-1", "Proxy", false))

	list, err := repo.List(context.Background(), models.PatternRequestFilter{
		Status:      []models.RequestStatus{models.RequestStatusPending},
		PatternName: "Proxy",
		Limit:       20,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPatternRequestRepositoryCounts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPatternRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM pattern_requests")).
		WithArgs("Proxy", models.RequestStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	count, err := repo.CountByPattern(context.Background(), " Proxy ", models.RequestStatusPending)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY LOWER(pattern_name)")).
		WithArgs(models.RequestStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"pattern_key", "pending"}).
			AddRow("proxy", 1).
			AddRow("my pattern", 2))
	counts, err := repo.PendingCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"proxy": 1, "my pattern": 2}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPatternRequestRepositoryApproveCatalogPattern(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPatternRequestRepository(db)
	decidedAt := time.Now().UTC()
	note := "enjoy"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM pattern_requests WHERE id = $1 FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(pendingRequestRows("req-1", "Proxy", false))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM patterns WHERE LOWER(name) = LOWER($1) FOR UPDATE")).
		WithArgs("Proxy").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("available"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM pattern_requests")).
		WithArgs("Proxy").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE pattern_requests SET status = $2")).
		WithArgs("req-1", models.RequestStatusApproved, "admin-1", decidedAt, &note).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE patterns SET status = $2")).
		WithArgs("Proxy", models.PatternStatusAssigned, decidedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req, err := repo.ApplyDecision(context.Background(), DecisionParams{
		ID:        "req-1",
		Status:    models.RequestStatusApproved,
		DecidedBy: "admin-1",
		DecidedAt: decidedAt,
		Note:      &note,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, req.Status)
	require.NotNil(t, req.DecidedBy)
	assert.Equal(t, "admin-1", *req.DecidedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPatternRequestRepositoryApproveCustomPatternSkipsCatalog(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPatternRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("req-2").
		WillReturnRows(pendingRequestRows("req-2", "Event Sourcing", true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM pattern_requests")).
		WithArgs("Event Sourcing").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE pattern_requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req, err := repo.ApplyDecision(context.Background(), DecisionParams{
		ID:        "req-2",
		Status:    models.RequestStatusApproved,
		DecidedBy: "admin-1",
		DecidedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, req.CustomPattern)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPatternRequestRepositoryRejectLeavesPattern(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPatternRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(pendingRequestRows("req-1", "Proxy", false))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE pattern_requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req, err := repo.ApplyDecision(context.Background(), DecisionParams{
		ID:        "req-1",
		Status:    models.RequestStatusRejected,
		DecidedBy: "admin-1",
		DecidedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, req.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPatternRequestRepositoryDecisionErrors(t *testing.T) {
	t.Run("unknown request", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs("missing").WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := NewPatternRequestRepository(db).ApplyDecision(context.Background(), DecisionParams{ID: "missing", Status: models.RequestStatusApproved})
		assert.ErrorIs(t, err, sql.ErrNoRows)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already decided", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs("req-1").
			WillReturnRows(sqlmock.NewRows(requestRowColumns).
				AddRow("req-1", "Proxy", false, "Ada", nil, "rejected", time.Now(), "admin-1", time.Now(), nil))
		mock.ExpectRollback()

		_, err := NewPatternRequestRepository(db).ApplyDecision(context.Background(), DecisionParams{ID: "req-1", Status: models.RequestStatusApproved})
		assert.ErrorIs(t, err, ErrRequestNotPending)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pattern already assigned", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FROM pattern_requests WHERE id = $1 FOR UPDATE")).WithArgs("req-1").
			WillReturnRows(pendingRequestRows("req-1", "Proxy", false))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM patterns")).WithArgs("Proxy").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("assigned"))
		mock.ExpectRollback()

		_, err := NewPatternRequestRepository(db).ApplyDecision(context.Background(), DecisionParams{ID: "req-1", Status: models.RequestStatusApproved})
		assert.ErrorIs(t, err, ErrPatternAssigned)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique index backstop", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FROM pattern_requests WHERE id = $1 FOR UPDATE")).WithArgs("req-1").
			WillReturnRows(pendingRequestRows("req-1", "Custom Thing", true))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM pattern_requests")).WithArgs("Custom Thing").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE pattern_requests")).
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})
		mock.ExpectRollback()

		_, err := NewPatternRequestRepository(db).ApplyDecision(context.Background(), DecisionParams{ID: "req-1", Status: models.RequestStatusApproved})
		assert.ErrorIs(t, err, ErrPatternAssigned)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pattern write fails after request write", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FROM pattern_requests WHERE id = $1 FOR UPDATE")).WithArgs("req-1").
			WillReturnRows(pendingRequestRows("req-1", "Proxy", false))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM patterns")).WithArgs("Proxy").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("available"))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM pattern_requests")).WithArgs("Proxy").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE pattern_requests SET status = $2")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE patterns SET status = $2")).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		req, err := NewPatternRequestRepository(db).ApplyDecision(context.Background(), DecisionParams{
			ID:        "req-1",
			Status:    models.RequestStatusApproved,
			DecidedBy: "admin-1",
			DecidedAt: time.Now(),
		})
		require.Error(t, err)
		assert.Nil(t, req)
		assert.Contains(t, err.Error(), "assign pattern")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("guarded update touches no row", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs("req-1").
			WillReturnRows(pendingRequestRows("req-1", "Proxy", false))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE pattern_requests")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := NewPatternRequestRepository(db).ApplyDecision(context.Background(), DecisionParams{ID: "req-1", Status: models.RequestStatusRejected})
		assert.ErrorIs(t, err, ErrRequestNotPending)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPatternRequestRepositoryCountIgnoresPaging(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPatternRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM pattern_requests WHERE status IN ($1,$2)")).
		WithArgs(models.RequestStatusPending, models.RequestStatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(73))

	total, err := repo.Count(context.Background(), models.PatternRequestFilter{
		Status: []models.RequestStatus{models.RequestStatusPending, models.RequestStatusApproved},
		Limit:  20,
		Offset: 40,
	})
	require.NoError(t, err)
	assert.Equal(t, 73, total)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM pattern_requests")).
		WillReturnError(errors.New("timeout"))
	_, err = repo.Count(context.Background(), models.PatternRequestFilter{})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
