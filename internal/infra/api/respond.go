package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"mentalspace/internal/domain"
	"mentalspace/internal/infra/logging"
)

type errorBody struct {
	Error     string   `json:"error"`
	Kind      string   `json:"kind"`
	Details   []string `json:"details,omitempty"`
	SessionID string   `json:"sessionId,omitempty"`
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidState, domain.KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError maps err to its status and body. Internal errors are logged and
// replaced with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	kind := domain.KindOf(err)
	body := errorBody{Error: err.Error(), Kind: string(kind)}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Error = "Validation failed"
		body.Details = ve.Details
	}
	var ase *domain.ActiveSessionError
	if errors.As(err, &ase) {
		body.SessionID = ase.SessionID
	}
	if kind == domain.KindInternal {
		logging.With(r.Context(), logger).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		body.Error = "internal server error"
	}
	writeJSON(w, statusFor(kind), body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v as is.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &domain.ValidationError{Details: []string{"request body must be valid JSON"}}
	}
	return nil
}
