// Package handler contains the HTTP handlers of the veilbet server. Handlers
// declare local interfaces for the service methods they call so the package
// does not depend on concrete service construction.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/veilbet/veilbet/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a service error onto an HTTP status and sends it.
// Sentinel errors carry user-facing messages; anything unmapped is a 500
// with a generic body.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	status, expose := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "handler: request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	if !expose {
		writeError(w, status, http.StatusText(status))
		return
	}
	writeError(w, status, err.Error())
}

// statusFor maps the domain sentinel errors to HTTP status codes. The second
// return reports whether the error text is safe to expose to the client.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrBalanceUnknown):
		return http.StatusNotFound, true
	case errors.Is(err, domain.ErrNoOptionSelected),
		errors.Is(err, domain.ErrNoOutcomeSelected),
		errors.Is(err, domain.ErrAmountOutOfBounds),
		errors.Is(err, domain.ErrInvalidOption):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusPaymentRequired, true
	case errors.Is(err, domain.ErrMarketExpired),
		errors.Is(err, domain.ErrMarketResolved),
		errors.Is(err, domain.ErrMarketInactive):
		return http.StatusConflict, true
	case errors.Is(err, domain.ErrLockHeld):
		return http.StatusConflict, true
	case errors.Is(err, domain.ErrUserCancelled):
		return http.StatusBadRequest, true
	case errors.Is(err, domain.ErrGatewayUnavailable),
		errors.Is(err, domain.ErrDecryptionUnavailable),
		errors.Is(err, domain.ErrEncryptionNotReady):
		return http.StatusServiceUnavailable, true
	default:
		return http.StatusInternalServerError, false
	}
}

// marketIDParam extracts the {id} path parameter as a market ID using Go
// 1.22+ built-in routing (http.Request.PathValue).
func marketIDParam(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid market id")
	}
	return id, nil
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
