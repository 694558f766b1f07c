package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/michal-palko/smart-claimer/internal/claimer"
)

type errorBody struct {
	Detail               string `json:"detail"`
	ConfirmationRequired bool   `json:"confirmation_required,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps the service error taxonomy onto HTTP statuses.
func statusFor(err error) (int, errorBody) {
	body := errorBody{Detail: err.Error()}

	var confirm *claimer.ConfirmationRequiredError
	var remote *claimer.RemoteError
	switch {
	case errors.As(err, &confirm):
		body.Detail = confirm.Reason
		body.ConfirmationRequired = true
		return http.StatusConflict, body
	case errors.Is(err, claimer.ErrValidation):
		return http.StatusBadRequest, body
	case errors.Is(err, claimer.ErrOwnership):
		return http.StatusForbidden, body
	case errors.Is(err, claimer.ErrNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, claimer.ErrAlreadySubmitted):
		return http.StatusConflict, body
	case errors.As(err, &remote):
		body.Detail = remote.Detail
		if body.Detail == "" {
			body.Detail = remote.Error()
		}
		switch {
		case remote.Rejected:
			return http.StatusBadRequest, body
		case remote.Service == "openai" && remote.Status != 0:
			return remote.Status, body
		default:
			return http.StatusBadGateway, body
		}
	default:
		return http.StatusInternalServerError, body
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request error", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, body)
}
