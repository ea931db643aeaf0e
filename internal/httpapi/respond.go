package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"smart-tasks-backend/internal/apperr"
)

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func OK(w http.ResponseWriter, v any) {
	JSON(w, http.StatusOK, v)
}

// Error maps err onto the taxonomy in apperr. Unknown errors are logged and
// reported as a bare 500 so storage details never reach the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		JSON(w, http.StatusBadRequest, map[string]any{"errors": ve.Fields})
	case errors.Is(err, apperr.ErrNotFound):
		JSON(w, http.StatusNotFound, map[string]any{"detail": "not found"})
	case errors.Is(err, apperr.ErrUnauthorized):
		JSON(w, http.StatusUnauthorized, map[string]any{"detail": "unauthorized"})
	case errors.Is(err, apperr.ErrConflict):
		JSON(w, http.StatusConflict, map[string]any{"detail": err.Error()})
	default:
		zap.L().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		JSON(w, http.StatusInternalServerError, map[string]any{"detail": "internal error"})
	}
}

// FlagAIError marks a response whose AI step failed while the user-facing
// operation itself succeeded.
func FlagAIError(w http.ResponseWriter) {
	w.Header().Set("X-AI-Error", "1")
}

// PathID parses the {name} path segment as a positive id. A malformed id is
// reported as not found, the same as an id the caller does not own.
func PathID(r *http.Request, name string) (uint, error) {
	n, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || n == 0 {
		return 0, apperr.ErrNotFound
	}
	return uint(n), nil
}
