package services

import (
	"context"

	"tenantchat/internal/domain/models"
)

// RagService manages tenant knowledge and authorized retrieval
type RagService interface {
	AddChunks(ctx context.Context, principal models.Principal, businessID string, req *AddChunksRequest) ([]models.RagChunk, error)
	ListChunks(ctx context.Context, principal models.Principal, businessID string, limit, offset int) ([]models.RagChunk, error)
	DeleteChunk(ctx context.Context, principal models.Principal, chunkID string) error

	// Query authorizes a read-rag retrieval, searches, answers and records a RagQuery
	Query(ctx context.Context, principal models.Principal, businessID string, req *RagQueryRequest) (*RagQueryResult, error)

	ListQueries(ctx context.Context, principal models.Principal, businessID string, limit, offset int) ([]models.RagQuery, error)
}

// AnswerGenerator produces the response text for a retrieval
type AnswerGenerator interface {
	Generate(ctx context.Context, query string, sources []models.ScoredChunk) (string, error)
}

// NewChunk is one chunk with its precomputed embedding
type NewChunk struct {
	Text      string                 `json:"text"`
	Embedding []float32              `json:"embedding"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// AddChunksRequest uploads chunks for a business
type AddChunksRequest struct {
	Chunks []NewChunk `json:"chunks"`
}

// RagQueryRequest asks a question against a business's chunks.
// Embedding is computed by the caller.
type RagQueryRequest struct {
	QueryText string    `json:"query_text"`
	Embedding []float32 `json:"embedding"`
	TopK      int       `json:"top_k"`
}

// RagQueryResult is the recorded query plus the chunks it was grounded on
type RagQueryResult struct {
	Query   models.RagQuery      `json:"query"`
	Sources []models.ScoredChunk `json:"sources"`
}
