package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"myapp.dev/internal/apperr"
	"myapp.dev/internal/audit"
	"myapp.dev/internal/auth"
	"myapp.dev/internal/clients"
	"myapp.dev/internal/idp"
	"myapp.dev/internal/obs"
)

type successEnvelope struct {
	Status   int    `json:"status"`
	Message  string `json:"message,omitempty"`
	Data     any    `json:"data,omitempty"`
	Metadata any    `json:"metadata,omitempty"`
}

type errorEnvelope struct {
	Status    int    `json:"status"`
	Error     string `json:"error,omitempty"`
	Metadata  any    `json:"metadata,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, code int, message string, data, metadata any) {
	writeJSON(w, code, successEnvelope{Status: code, Message: message, Data: data, Metadata: metadata})
}

// writeError is the single exit for failures. Causes are logged, never written.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := classify(err)
	log := obs.From(r.Context())
	fields := []zap.Field{obs.Status(e.Status), obs.Path(r.URL.Path), obs.Method(r.Method)}
	if e.Err != nil {
		fields = append(fields, obs.Err(e.Err))
	}
	if e.Status >= http.StatusInternalServerError {
		log.Error(e.Message, fields...)
	} else {
		log.Warn(e.Message, fields...)
	}
	writeJSON(w, e.Status, errorEnvelope{
		Status:    e.Status,
		Error:     e.Message,
		Metadata:  e.Metadata,
		RequestID: audit.RequestIDFromContext(r.Context()),
	})
}

// classify maps domain sentinels to HTTP failures before falling back to apperr.From.
func classify(err error) *apperr.Error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	var apiErr *idp.APIError
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrRevokedToken),
		errors.Is(err, idp.ErrSessionMissing),
		errors.Is(err, idp.ErrInvalidCredentials):
		return apperr.Unauthorized(err)
	case errors.Is(err, idp.ErrWeakPassword):
		return apperr.BadRequest("Weak password", err)
	case errors.Is(err, idp.ErrRetryableFetch):
		return apperr.Internal(err)
	case errors.As(err, &apiErr):
		return apperr.Unauthorized(err)
	case errors.Is(err, auth.ErrNotFound):
		return apperr.NotFound("User not found")
	case errors.Is(err, clients.ErrNotFound):
		return apperr.NotFound("Client not found")
	case errors.Is(err, clients.ErrContractsNotFound):
		return apperr.NotFound("Contracts not found")
	case errors.Is(err, clients.ErrInvalidInput), errors.Is(err, auth.ErrInvalidInput):
		return apperr.BadRequest(inputMessage(err), err)
	case errors.Is(err, clients.ErrHasContracts):
		e := apperr.BadRequest("Client still has contracts", err)
		e.Status = http.StatusConflict
		return e
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		e := apperr.MalformedRequest("Request body too large", map[string]any{"limit": maxErr.Limit})
		e.Status = http.StatusRequestEntityTooLarge
		e.Err = err
		return e
	}
	return apperr.From(err)
}

// inputMessage strips the package prefix of a wrapped validation error.
func inputMessage(err error) string {
	msg := err.Error()
	for _, prefix := range []string{clients.ErrInvalidInput.Error() + ": ", auth.ErrInvalidInput.Error() + ": "} {
		if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return "Invalid input"
}

// decodeJSON reads a single JSON object. Unknown fields are ignored.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}
