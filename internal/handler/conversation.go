package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/services"
	"tenantchat/internal/httputil"
)

// ConversationHandler handles conversation and message HTTP requests.
// Handlers only talk to services; every authorization decision happens there.
type ConversationHandler struct {
	conversationService services.ConversationService
	messageService      services.MessageService
	logger              *slog.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(
	conversationService services.ConversationService,
	messageService services.MessageService,
	logger *slog.Logger,
) *ConversationHandler {
	return &ConversationHandler{
		conversationService: conversationService,
		messageService:      messageService,
		logger:              logger,
	}
}

// CreateConversation starts a conversation
// POST /api/conversations
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req services.CreateConversationRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conv, err := h.conversationService.CreateConversation(r.Context(), httputil.GetPrincipal(r), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, conv)
}

// ListConversations lists the caller's conversations, or a business's with ?business_id=
// GET /api/conversations
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	principal := httputil.GetPrincipal(r)

	var (
		convs []models.Conversation
		err   error
	)
	if businessID := r.URL.Query().Get("business_id"); businessID != "" {
		convs, err = h.conversationService.ListBusinessConversations(r.Context(), principal, businessID)
	} else {
		convs, err = h.conversationService.ListMyConversations(r.Context(), principal)
	}
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, convs)
}

// GetConversation retrieves a conversation; public ones are readable anonymously
// GET /api/conversations/{id}
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	conv, err := h.conversationService.GetConversation(r.Context(), httputil.GetPrincipal(r), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, conv)
}

// UpdateConversation changes title and/or visibility
// PATCH /api/conversations/{id}
func (h *ConversationHandler) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	var req services.UpdateConversationRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conv, err := h.conversationService.UpdateConversation(r.Context(), httputil.GetPrincipal(r), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, conv)
}

// DeleteConversation deletes a conversation and its messages
// DELETE /api/conversations/{id}
func (h *ConversationHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	if err := h.conversationService.DeleteConversation(r.Context(), httputil.GetPrincipal(r), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMessages returns messages in sequence order
// GET /api/conversations/{id}/messages
func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	msgs, err := h.messageService.ListMessages(r.Context(), httputil.GetPrincipal(r), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, msgs)
}

// SaveMessages appends a batch of messages
// POST /api/conversations/{id}/messages
func (h *ConversationHandler) SaveMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	var req services.SaveMessagesRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msgs, err := h.messageService.SaveMessages(r.Context(), httputil.GetPrincipal(r), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, msgs)
}

// DeleteMessagesAfter removes messages created at or after ?after=, bounded by ?up_to_sequence=
// DELETE /api/conversations/{id}/messages
func (h *ConversationHandler) DeleteMessagesAfter(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	after, err := httputil.QueryTime(r, "after")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if after.IsZero() {
		httputil.RespondError(w, http.StatusBadRequest, "after query parameter is required")
		return
	}

	req := services.DeleteMessagesAfterRequest{After: after}
	if raw := r.URL.Query().Get("up_to_sequence"); raw != "" {
		seq, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "up_to_sequence must be an integer")
			return
		}
		req.UpToSequence = &seq
	}

	deleted, err := h.messageService.DeleteMessagesAfter(r.Context(), httputil.GetPrincipal(r), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// GetMessage retrieves a single message
// GET /api/messages/{id}
func (h *ConversationHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Message ID")
	if !ok {
		return
	}

	msg, err := h.messageService.GetMessage(r.Context(), httputil.GetPrincipal(r), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, msg)
}

type voteRequest struct {
	Direction models.VoteDirection `json:"direction"`
}

// Vote records an up or down vote
// POST /api/messages/{id}/vote
func (h *ConversationHandler) Vote(w http.ResponseWriter, r *http.Request) {
	id, ok := PathParam(w, r, "id", "Message ID")
	if !ok {
		return
	}

	var req voteRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := h.messageService.Vote(r.Context(), httputil.GetPrincipal(r), id, req.Direction)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, msg)
}
