package handler

import (
	"net/http"

	"tenantchat/internal/middleware"
)

// Handlers groups everything the router serves
type Handlers struct {
	Business     *BusinessHandler
	User         *UserHandler
	Conversation *ConversationHandler
	Rag          *RagHandler
}

// NewRouter registers all routes (Go 1.22+ enhanced patterns).
// Conversation and message reads are the only routes open to anonymous callers.
func NewRouter(h Handlers) *http.ServeMux {
	mux := http.NewServeMux()
	auth := middleware.RequireUser

	// Health check
	mux.HandleFunc("GET /health", HealthCheck)

	mux.HandleFunc("GET /api/me", auth(h.User.Me))

	// Business routes
	mux.HandleFunc("POST /api/businesses", auth(h.Business.CreateBusiness))
	mux.HandleFunc("GET /api/businesses/{id}", auth(h.Business.GetBusiness))
	mux.HandleFunc("PATCH /api/businesses/{id}", auth(h.Business.UpdateBusiness))
	mux.HandleFunc("DELETE /api/businesses/{id}", auth(h.Business.DeleteBusiness))
	mux.HandleFunc("POST /api/businesses/{id}/transfer", auth(h.Business.TransferOwnership))

	// Grant routes
	mux.HandleFunc("GET /api/businesses/{id}/grants", auth(h.Business.ListGrants))
	mux.HandleFunc("POST /api/businesses/{id}/grants", auth(h.Business.CreateGrant))
	mux.HandleFunc("GET /api/grants/{id}", auth(h.Business.GetGrant))
	mux.HandleFunc("DELETE /api/grants/{id}", auth(h.Business.RevokeGrant))

	// User routes
	mux.HandleFunc("PUT /api/users/{id}/business", auth(h.User.SetBusiness))
	mux.HandleFunc("DELETE /api/users/{id}", auth(h.User.DeleteUser))

	// Conversation routes
	mux.HandleFunc("POST /api/conversations", auth(h.Conversation.CreateConversation))
	mux.HandleFunc("GET /api/conversations", auth(h.Conversation.ListConversations))
	mux.HandleFunc("GET /api/conversations/{id}", h.Conversation.GetConversation)
	mux.HandleFunc("PATCH /api/conversations/{id}", auth(h.Conversation.UpdateConversation))
	mux.HandleFunc("DELETE /api/conversations/{id}", auth(h.Conversation.DeleteConversation))

	// Message routes
	mux.HandleFunc("GET /api/conversations/{id}/messages", h.Conversation.ListMessages)
	mux.HandleFunc("POST /api/conversations/{id}/messages", auth(h.Conversation.SaveMessages))
	mux.HandleFunc("DELETE /api/conversations/{id}/messages", auth(h.Conversation.DeleteMessagesAfter))
	mux.HandleFunc("GET /api/messages/{id}", h.Conversation.GetMessage)
	mux.HandleFunc("POST /api/messages/{id}/vote", auth(h.Conversation.Vote))

	// RAG routes
	mux.HandleFunc("POST /api/businesses/{id}/rag/chunks", auth(h.Rag.AddChunks))
	mux.HandleFunc("GET /api/businesses/{id}/rag/chunks", auth(h.Rag.ListChunks))
	mux.HandleFunc("DELETE /api/rag/chunks/{id}", auth(h.Rag.DeleteChunk))
	mux.HandleFunc("POST /api/businesses/{id}/rag/query", auth(h.Rag.Query))
	mux.HandleFunc("GET /api/businesses/{id}/rag/queries", auth(h.Rag.ListQueries))

	return mux
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
