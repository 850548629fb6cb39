package models

import "time"

// RagChunk is a piece of tenant knowledge with its embedding.
// BusinessID becomes nil when the owning business is deleted.
type RagChunk struct {
	ID         string                 `json:"id" db:"id"`
	BusinessID *string                `json:"business_id,omitempty" db:"business_id"`
	ChunkText  string                 `json:"chunk_text" db:"chunk_text"`
	Embedding  []float32              `json:"-" db:"embedding"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
}

// Ref builds the authorization metadata for the chunk.
func (c *RagChunk) Ref(accessType string) ResourceRef {
	return ResourceRef{
		Kind:            ResourceRagChunk,
		ID:              c.ID,
		OwnerBusinessID: c.BusinessID,
		AccessType:      accessType,
	}
}

// ScoredChunk is a retrieval hit.
type ScoredChunk struct {
	Chunk RagChunk `json:"chunk"`
	Score float64  `json:"score"`
}

// RagQuery is the audit record of a retrieval against a business's chunks.
type RagQuery struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	BusinessID   *string   `json:"business_id,omitempty" db:"business_id"`
	QueryText    string    `json:"query_text" db:"query_text"`
	ResponseText string    `json:"response_text" db:"response_text"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
}

// Ref builds the authorization metadata for the query record.
func (q *RagQuery) Ref(accessType string) ResourceRef {
	owner := q.UserID
	return ResourceRef{
		Kind:            ResourceRagQuery,
		ID:              q.ID,
		OwnerBusinessID: q.BusinessID,
		OwnerUserID:     &owner,
		AccessType:      accessType,
	}
}
