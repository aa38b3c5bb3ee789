package httputil

import (
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/apperr"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	JSON(w, http.StatusInternalServerError, errorBody{Error: "Internal Server Error", Kind: apperr.KindInternal.String()})
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	JSON(w, http.StatusBadRequest, errorBody{Error: msg, Kind: apperr.KindValidation.String()})
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	JSON(w, http.StatusNotFound, errorBody{Error: msg, Kind: apperr.KindNotFound.String()})
}

func Unauthorized(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusUnauthorized, errorBody{Error: msg, Kind: "unauthorized"})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindPrecondition:
		return http.StatusPreconditionFailed
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Error writes err with the status of its kind. Internal errors are logged
// and their details withheld from the client.
func Error(w http.ResponseWriter, msg string, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		InternalServerError(w, msg, err)
		return
	}

	slog.Warn(msg, "kind", kind.String(), "error", err)
	JSON(w, StatusFor(kind), errorBody{Error: err.Error(), Kind: kind.String()})
}
