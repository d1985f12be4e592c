package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrRequestNotPending signals the request already received a decision.
	ErrRequestNotPending = errors.New("pattern request is not pending")
	// ErrPatternAssigned signals the pattern already has an approved request.
	ErrPatternAssigned = errors.New("pattern already assigned")
)

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
