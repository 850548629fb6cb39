package repositories

import (
	"context"

	"tenantchat/internal/domain/models"
)

// RagChunkRepository defines data access for RAG chunks
type RagChunkRepository interface {
	CreateBatch(ctx context.Context, chunks []*models.RagChunk) error

	// GetByID returns domain.ErrNotFound if the chunk does not exist
	GetByID(ctx context.Context, id string) (*models.RagChunk, error)

	ListByBusiness(ctx context.Context, businessID string, limit, offset int) ([]models.RagChunk, error)

	// Search returns the topK chunks of the business closest to embedding (cosine)
	Search(ctx context.Context, businessID string, embedding []float32, topK int) ([]models.ScoredChunk, error)

	Delete(ctx context.Context, id string) error
}

// RagQueryRepository stores retrieval audit records
type RagQueryRepository interface {
	Create(ctx context.Context, query *models.RagQuery) error

	// ListByBusiness returns records against the business, newest first
	ListByBusiness(ctx context.Context, businessID string, limit, offset int) ([]models.RagQuery, error)

	// ListByUserAndBusiness returns the user's own records against the business
	ListByUserAndBusiness(ctx context.Context, userID, businessID string, limit, offset int) ([]models.RagQuery, error)
}
