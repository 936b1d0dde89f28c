package handler

import (
	"errors"
	"net/http"

	"github.com/marniemm/jobsvc/internal/api/response"
	"github.com/marniemm/jobsvc/internal/store"
	"github.com/marniemm/jobsvc/internal/workflow"
)

// writeServiceError maps workflow and store errors onto the response
// envelope. Role failures before state failures, matching the guard.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotPermitted):
		response.Error(w, http.StatusForbidden,
			"FORBIDDEN", "You are not permitted to perform this action", nil)
	case errors.Is(err, workflow.ErrDuplicateQuote):
		response.Error(w, http.StatusUnprocessableEntity,
			"VALIDATION_FAILED", "You must provide a new quote", nil)
	case errors.Is(err, workflow.ErrWrongState):
		response.Error(w, http.StatusPreconditionFailed,
			"WRONG_STATE", capitalize(err.Error()), nil)
	case errors.Is(err, workflow.ErrValidation):
		response.Error(w, http.StatusUnprocessableEntity,
			"VALIDATION_FAILED", capitalize(err.Error()), nil)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound,
			"NOT_FOUND", "Resource not found", nil)
	default:
		response.Error(w, http.StatusInternalServerError,
			"INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
