package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/progres-gateway/internal/common"
)

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRawJSON(w http.ResponseWriter, body json.RawMessage) {
	if body == nil {
		body = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, apiError{Error: msg})
}

// writeServiceError is the single place where error kinds become HTTP
// statuses. Revoked and merely invalid credentials share one response.
func writeServiceError(w http.ResponseWriter, err error) {
	code, msg := statusFor(err)
	writeError(w, code, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid username or password"
	case errors.Is(err, common.ErrUnauthenticated),
		errors.Is(err, common.ErrRevoked),
		errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, "access denied"
	case errors.Is(err, common.ErrBadRequest):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrRateLimited):
		return http.StatusTooManyRequests, "too many requests, try again later"
	case errors.Is(err, common.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, "upstream service unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
