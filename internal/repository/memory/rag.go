package memory

import (
	"context"
	"fmt"
	"maps"
	"math"
	"sort"

	"github.com/google/uuid"

	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/repositories"
)

// RagChunkRepository implements repositories.RagChunkRepository with brute-force cosine search
type RagChunkRepository struct {
	s *Store
}

// NewRagChunkRepository creates a memory chunk repository
func NewRagChunkRepository(s *Store) repositories.RagChunkRepository {
	return &RagChunkRepository{s: s}
}

func (r *RagChunkRepository) CreateBatch(ctx context.Context, chunks []*models.RagChunk) error {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range chunks {
		if c.BusinessID != nil {
			if _, ok := r.s.businesses[*c.BusinessID]; !ok {
				return &domain.IntegrityError{Message: fmt.Sprintf("business %s does not exist", *c.BusinessID)}
			}
		}
	}

	now := r.s.now()
	for _, c := range chunks {
		c.ID = uuid.NewString()
		c.CreatedAt = now
		stored := *c
		stored.Embedding = append([]float32(nil), c.Embedding...)
		stored.Metadata = maps.Clone(c.Metadata)
		r.s.chunks[c.ID] = stored
	}
	return nil
}

func (r *RagChunkRepository) GetByID(ctx context.Context, id string) (*models.RagChunk, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.chunks[id]
	if !ok {
		return nil, fmt.Errorf("rag chunk %s: %w", id, domain.ErrNotFound)
	}
	return &c, nil
}

func (r *RagChunkRepository) ListByBusiness(ctx context.Context, businessID string, limit, offset int) ([]models.RagChunk, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.RagChunk{}
	for _, c := range r.s.chunks {
		if isRef(c.BusinessID, businessID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return page(out, limit, offset), nil
}

// Search never looks outside the business's chunks
func (r *RagChunkRepository) Search(ctx context.Context, businessID string, embedding []float32, topK int) ([]models.ScoredChunk, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	results := []models.ScoredChunk{}
	for _, c := range r.s.chunks {
		if !isRef(c.BusinessID, businessID) {
			continue
		}
		results = append(results, models.ScoredChunk{Chunk: c, Score: cosineSimilarity(embedding, c.Embedding)})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (r *RagChunkRepository) Delete(ctx context.Context, id string) error {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.chunks[id]; !ok {
		return fmt.Errorf("rag chunk %s: %w", id, domain.ErrNotFound)
	}
	delete(r.s.chunks, id)
	return nil
}

// RagQueryRepository implements repositories.RagQueryRepository
type RagQueryRepository struct {
	s *Store
}

// NewRagQueryRepository creates a memory query-record repository
func NewRagQueryRepository(s *Store) repositories.RagQueryRepository {
	return &RagQueryRepository{s: s}
}

func (r *RagQueryRepository) Create(ctx context.Context, q *models.RagQuery) error {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	q.ID = uuid.NewString()
	if q.Timestamp.IsZero() {
		q.Timestamp = r.s.now()
	}
	r.s.queries[q.ID] = *q
	return nil
}

func (r *RagQueryRepository) ListByBusiness(ctx context.Context, businessID string, limit, offset int) ([]models.RagQuery, error) {
	return r.list(func(q models.RagQuery) bool { return isRef(q.BusinessID, businessID) }, limit, offset), nil
}

func (r *RagQueryRepository) ListByUserAndBusiness(ctx context.Context, userID, businessID string, limit, offset int) ([]models.RagQuery, error) {
	return r.list(func(q models.RagQuery) bool {
		return q.UserID == userID && isRef(q.BusinessID, businessID)
	}, limit, offset), nil
}

// list returns matches newest first
func (r *RagQueryRepository) list(match func(models.RagQuery) bool, limit, offset int) []models.RagQuery {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.RagQuery{}
	for _, q := range r.s.queries {
		if match(q) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return page(out, limit, offset)
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// cosineSimilarity returns 0 for mismatched or zero vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
