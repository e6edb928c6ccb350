package httpapi

import (
	"encoding/json"
	"net/http"

	"incnet/internal/learner"
	"incnet/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps well-known learner errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case learner.IsInvalidInput(err):
		return http.StatusBadRequest
	case learner.IsTaskInProgress(err), learner.IsNoOpenTask(err):
		return http.StatusConflict
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("encode response")
	}
}
