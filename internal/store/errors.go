package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrTournamentNotFound   = errors.New("tournament not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrPoolNotFound         = errors.New("pool not found")
	ErrTeamNotFound         = errors.New("team not found")
	ErrMatchNotFound        = errors.New("match not found")
	// ErrStaleMatch means the row no longer had the status the caller read.
	ErrStaleMatch = errors.New("match was modified concurrently")
	// ErrFixtureSetExists means another request already generated this stage.
	ErrFixtureSetExists = errors.New("fixtures for this stage already exist")
)

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}

// IsUniqueViolation recognises primary key and unique constraint failures
// from either supported driver.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
