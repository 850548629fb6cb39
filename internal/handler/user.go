package handler

import (
	"log/slog"
	"net/http"

	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/services"
	"tenantchat/internal/httputil"
)

// UserHandler handles account HTTP requests
type UserHandler struct {
	userService services.UserService
	logger      *slog.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService services.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

type meResponse struct {
	Principal models.Principal `json:"principal"`
	User      *models.User     `json:"user"`
}

// Me returns the resolved principal and the user row behind it
// GET /api/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal := httputil.GetPrincipal(r)
	user, err := h.userService.GetUser(r.Context(), principal, principal.UserID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, meResponse{Principal: principal, User: user})
}

// SetBusiness sets or clears (null) a user's business affiliation
// PUT /api/users/{id}/business
func (h *UserHandler) SetBusiness(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "User ID")
	if !ok {
		return
	}

	var req services.SetUserBusinessRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.userService.SetUserBusiness(r.Context(), httputil.GetPrincipal(r), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, user)
}

// DeleteUser deletes an account that no longer owns any business
// DELETE /api/users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "User ID")
	if !ok {
		return
	}

	if err := h.userService.DeleteUser(r.Context(), httputil.GetPrincipal(r), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
