// internal/server/respond.go
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "homewise/internal/common/errors"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	Fields  []string            `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {"error": {code, message, fields}}. Only the user-facing
// message leaves the process.
func writeError(w http.ResponseWriter, err error) {
	payload := errorPayload{Code: apperrors.ErrCodeInternal, Message: "Unexpected error"}
	if stdErr := apperrors.AsStandard(err); stdErr != nil {
		payload = errorPayload{Code: stdErr.Code, Message: stdErr.Message, Fields: stdErr.Fields}
	}
	writeJSON(w, apperrors.HTTPStatus(err), errorBody{Error: payload})
}

// readBody returns the raw request body, capped at maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.NewValidationError("request", []string{"(root): body exceeds 1 MiB"})
		}
		return nil, apperrors.NewValidationError("request", []string{"(root): unreadable body"})
	}
	return body, nil
}
