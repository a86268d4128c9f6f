package common

import (
	"encoding/json"
	"net/http"

	apperrors "forgeproxy/pkg/errors"
	"forgeproxy/pkg/utils"
)

// ErrorResponse is the flat error envelope every endpoint returns:
// the status-text name, a human message, the numeric status, and a
// timestamp. Workflow-engine callers key off the status code only.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Timestamp string `json:"timestamp"`
}

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError sends an error response in the standard envelope
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Status:    status,
		Timestamp: utils.NowRFC3339(),
	})
}

// RespondAppError maps an application error to its HTTP status and sends
// the standard envelope. Unknown errors become a 500.
func RespondAppError(w http.ResponseWriter, err error) {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		RespondError(w, appErr.HTTPStatus, appErr.Message)
		return
	}
	RespondError(w, http.StatusInternalServerError, "An unexpected error occurred")
}

// ParseJSONBody parses JSON request body with size limit
func ParseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
