package api

import (
	"encoding/json"
	"net/http"

	"github.com/scenario-simulator/internal/errors"
	"github.com/scenario-simulator/internal/logging"
	"github.com/scenario-simulator/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	_ = json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondServiceError maps a service error to its HTTP status.
// System errors are logged and their detail is withheld from the client.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := errors.Categorize(err)
	if errors.IsSystemError(catErr) {
		logging.FromContext(r.Context()).WithError(err).Error("Request failed")
		respondError(w, catErr.StatusCode, catErr.Code, "An internal error occurred", nil)
		return
	}
	respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
}

// respondInvalidInput sends a 400 for a malformed request
func respondInvalidInput(w http.ResponseWriter, message string, details map[string]interface{}) {
	respondError(w, http.StatusBadRequest, errors.CodeInvalidParameter, message, details)
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
