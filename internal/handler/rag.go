package handler

import (
	"log/slog"
	"net/http"

	"tenantchat/internal/domain/services"
	"tenantchat/internal/httputil"
)

// RagHandler handles knowledge-base HTTP requests
type RagHandler struct {
	ragService services.RagService
	logger     *slog.Logger
}

// NewRagHandler creates a new RAG handler
func NewRagHandler(ragService services.RagService, logger *slog.Logger) *RagHandler {
	return &RagHandler{
		ragService: ragService,
		logger:     logger,
	}
}

// AddChunks uploads chunks with precomputed embeddings
// POST /api/businesses/{id}/rag/chunks
func (h *RagHandler) AddChunks(w http.ResponseWriter, r *http.Request) {
	businessID, ok := PathParam(w, r, "id", "Business ID")
	if !ok {
		return
	}

	var req services.AddChunksRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	chunks, err := h.ragService.AddChunks(r.Context(), httputil.GetPrincipal(r), businessID, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, chunks)
}

// ListChunks pages through a business's chunks
// GET /api/businesses/{id}/rag/chunks?limit=&offset=
func (h *RagHandler) ListChunks(w http.ResponseWriter, r *http.Request) {
	businessID, ok := PathParam(w, r, "id", "Business ID")
	if !ok {
		return
	}
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}

	chunks, err := h.ragService.ListChunks(r.Context(), httputil.GetPrincipal(r), businessID, limit, offset)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, chunks)
}

// DeleteChunk removes one chunk
// DELETE /api/rag/chunks/{id}
func (h *RagHandler) DeleteChunk(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Chunk ID")
	if !ok {
		return
	}

	if err := h.ragService.DeleteChunk(r.Context(), httputil.GetPrincipal(r), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Query runs an authorized retrieval against the business's knowledge
// POST /api/businesses/{id}/rag/query
func (h *RagHandler) Query(w http.ResponseWriter, r *http.Request) {
	businessID, ok := PathParam(w, r, "id", "Business ID")
	if !ok {
		return
	}

	var req services.RagQueryRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.ragService.Query(r.Context(), httputil.GetPrincipal(r), businessID, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// ListQueries returns recorded retrievals against the business
// GET /api/businesses/{id}/rag/queries?limit=&offset=
func (h *RagHandler) ListQueries(w http.ResponseWriter, r *http.Request) {
	businessID, ok := PathParam(w, r, "id", "Business ID")
	if !ok {
		return
	}
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}

	queries, err := h.ragService.ListQueries(r.Context(), httputil.GetPrincipal(r), businessID, limit, offset)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, queries)
}
