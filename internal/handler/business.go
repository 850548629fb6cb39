package handler

import (
	"log/slog"
	"net/http"

	"tenantchat/internal/domain/services"
	"tenantchat/internal/httputil"
)

// BusinessHandler handles tenant and grant HTTP requests
type BusinessHandler struct {
	businessService services.BusinessService
	accessService   services.AccessService
	logger          *slog.Logger
}

// NewBusinessHandler creates a new business handler
func NewBusinessHandler(businessService services.BusinessService, accessService services.AccessService, logger *slog.Logger) *BusinessHandler {
	return &BusinessHandler{
		businessService: businessService,
		accessService:   accessService,
		logger:          logger,
	}
}

// CreateBusiness creates a business owned by the caller
// POST /api/businesses
func (h *BusinessHandler) CreateBusiness(w http.ResponseWriter, r *http.Request) {
	var req services.CreateBusinessRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	business, err := h.businessService.CreateBusiness(r.Context(), httputil.GetPrincipal(r), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, business)
}

// GetBusiness retrieves a business by ID
// GET /api/businesses/{id}
func (h *BusinessHandler) GetBusiness(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Business ID")
	if !ok {
		return
	}

	business, err := h.businessService.GetBusiness(r.Context(), httputil.GetPrincipal(r), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, business)
}

// updateBusinessBody distinguishes an absent fee from an explicit null
type updateBusinessBody struct {
	Name            *string                    `json:"name"`
	IsPublic        *bool                      `json:"is_public"`
	PublicAccessFee httputil.Optional[float64] `json:"public_access_fee"`
}

// UpdateBusiness applies a partial update
// PATCH /api/businesses/{id}
func (h *BusinessHandler) UpdateBusiness(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Business ID")
	if !ok {
		return
	}

	var body updateBusinessBody
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req := services.UpdateBusinessRequest{
		Name:                 body.Name,
		IsPublic:             body.IsPublic,
		PublicAccessFee:      body.PublicAccessFee.Value,
		ClearPublicAccessFee: body.PublicAccessFee.Cleared(),
	}

	business, err := h.businessService.UpdateBusiness(r.Context(), httputil.GetPrincipal(r), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, business)
}

// TransferOwnership hands the business to another user
// POST /api/businesses/{id}/transfer
func (h *BusinessHandler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Business ID")
	if !ok {
		return
	}

	var req services.TransferOwnershipRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	business, err := h.businessService.TransferOwnership(r.Context(), httputil.GetPrincipal(r), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, business)
}

// DeleteBusiness deletes a business; its grants go with it
// DELETE /api/businesses/{id}
func (h *BusinessHandler) DeleteBusiness(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Business ID")
	if !ok {
		return
	}

	if err := h.businessService.DeleteBusiness(r.Context(), httputil.GetPrincipal(r), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListGrants lists grants where the business is either endpoint
// GET /api/businesses/{id}/grants
func (h *BusinessHandler) ListGrants(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Business ID")
	if !ok {
		return
	}

	grants, err := h.accessService.ListGrants(r.Context(), httputil.GetPrincipal(r), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, grants)
}

// CreateGrant lets another business into this one's resources.
// The path business is always the target.
// POST /api/businesses/{id}/grants
func (h *BusinessHandler) CreateGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Business ID")
	if !ok {
		return
	}

	var req services.GrantRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.TargetBusinessID = id

	grant, err := h.accessService.Grant(r.Context(), httputil.GetPrincipal(r), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, grant)
}

// GetGrant retrieves a grant by ID
// GET /api/grants/{id}
func (h *BusinessHandler) GetGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Grant ID")
	if !ok {
		return
	}

	grant, err := h.accessService.GetGrant(r.Context(), httputil.GetPrincipal(r), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, grant)
}

// RevokeGrant switches the grant off; the row is kept
// DELETE /api/grants/{id}
func (h *BusinessHandler) RevokeGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Grant ID")
	if !ok {
		return
	}

	grant, err := h.accessService.Revoke(r.Context(), httputil.GetPrincipal(r), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, grant)
}
