package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		kind Kind
	}{
		{"validation", Validation("bad"), KindValidation},
		{"precondition", Preconditionf("pools %d incomplete", 2), KindPrecondition},
		{"not found", NotFoundf("match %s", "x"), KindNotFound},
		{"conflict", Conflictf("busy"), KindConflict},
		{"wrapped by fmt", fmt.Errorf("outer: %w", Conflictf("busy")), KindConflict},
		{"plain error", errors.New("boom"), KindInternal},
		{"internal", Internal(errors.New("boom")), KindInternal},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, KindOf(tc.err))
			assert.True(t, Is(tc.err, tc.kind))
		})
	}
	assert.False(t, Is(nil, KindInternal))
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(sql.ErrNoRows, KindNotFound, "pool not found")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.Equal(t, "pool not found: sql: no rows in result set", err.Error())
	assert.Equal(t, "not_found", err.Kind.String())
}
