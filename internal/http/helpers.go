package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"escola/internal/core"
	"escola/internal/log"
	"escola/internal/services"
	"escola/internal/storage"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

var errBadRequest = errors.New("bad request")

var badRequestErrors = []error{
	errBadRequest,
	core.ErrMalformedDate,
	core.ErrOutOfRangeDate,
	core.ErrInvalidItemType,
	core.ErrInvalidStatus,
	core.ErrInvalidAmount,
	core.ErrEmptyRecord,
	core.ErrDescriptionLong,
	core.ErrInvalidReference,
	services.ErrInvalidPlan,
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrAlreadyPaid):
		return http.StatusConflict
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// fail writes the error with the matching status. Server errors are logged
// and their details hidden from the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.NewFields().WithOperation(op).WithError(err).ToSlice()...)
		writeError(w, status, "internal error", nil)
		return
	}
	writeError(w, status, http.StatusText(status), err)
}
