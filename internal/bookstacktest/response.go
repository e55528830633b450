package bookstacktest

import (
	"encoding/json"
	"net/http"

	"github.com/agentstation/librarian/pkg/errors"
)

// errorBody is the BookStack error envelope.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Encoding errors are ignored as headers are already sent (best effort)
	_ = json.NewEncoder(w).Encode(v)
}

// ok writes a 200 response.
func ok(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, v)
}

// noContent writes a 204 with an empty body, as BookStack does for deletes.
func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// fail writes an error envelope.
func fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: status, Message: message}})
}

// failFromError maps typed errors to BookStack status codes.
func failFromError(w http.ResponseWriter, err error) {
	var rf *errors.RequestFailedError
	switch {
	case errors.As(err, &rf) && rf.StatusCode != 0:
		fail(w, rf.StatusCode, rf.Snippet)
	case errors.IsNotFound(err):
		fail(w, http.StatusNotFound, err.Error())
	case errors.IsConflict(err):
		fail(w, http.StatusUnprocessableEntity, err.Error())
	case errors.IsValidationError(err):
		fail(w, http.StatusBadRequest, err.Error())
	default:
		fail(w, http.StatusInternalServerError, "An unknown error occurred")
	}
}
