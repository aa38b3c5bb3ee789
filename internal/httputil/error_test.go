package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		status   int
		kind     string
		contains string
	}{
		{name: "validation", err: apperr.Validation("bad score"), status: http.StatusBadRequest, kind: "validation", contains: "bad score"},
		{name: "precondition", err: apperr.Preconditionf("pools not complete"), status: http.StatusPreconditionFailed, kind: "precondition", contains: "pools not complete"},
		{name: "not found", err: apperr.NotFoundf("match %d not found", 7), status: http.StatusNotFound, kind: "not_found", contains: "match 7"},
		{name: "conflict", err: apperr.Conflictf("generation in progress"), status: http.StatusConflict, kind: "conflict", contains: "in progress"},
		{name: "internal hides details", err: errors.New("disk on fire"), status: http.StatusInternalServerError, kind: "internal", contains: "Internal Server Error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, "request failed", tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.kind, body.Kind)
			assert.Contains(t, body.Error, tc.contains)
			assert.NotContains(t, body.Error, "disk on fire")
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Spring Open"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), r, &v))
	assert.Equal(t, "Spring Open", v.Name)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nme":"typo"}`))
	err := DecodeJSON(httptest.NewRecorder(), r, &v)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
