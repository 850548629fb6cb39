package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"tenantchat/internal/domain"
	"tenantchat/internal/httputil"
)

// handleError converts domain errors to HTTP responses.
// Denials carry the engine's reason so clients can tell "request access" from "orphaned".
func handleError(w http.ResponseWriter, err error) {
	var (
		deniedErr   *domain.DeniedError
		conflictErr *domain.ConflictError
	)

	switch {
	case errors.Is(err, domain.ErrUnavailable):
		w.Header().Set("Retry-After", "1")
		httputil.RespondError(w, http.StatusServiceUnavailable, "temporarily unavailable, retry shortly")
	case errors.As(err, &deniedErr):
		httputil.RespondErrorWithExtras(w, http.StatusForbidden, deniedErr.Error(), map[string]interface{}{
			"reason": deniedErr.Reason,
		})
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidGrant):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &conflictErr):
		httputil.RespondErrorWithExtras(w, http.StatusConflict, conflictErr.Error(), map[string]interface{}{
			"resource_type": conflictErr.ResourceType,
			"resource_id":   conflictErr.ResourceID,
		})
	case errors.Is(err, domain.ErrIntegrityViolation), errors.Is(err, domain.ErrConflict):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("unexpected error", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
