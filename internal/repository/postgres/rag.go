package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/repositories"
)

// PostgresRagChunkRepository stores chunks with a pgvector embedding column
type PostgresRagChunkRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	tx     repositories.TransactionManager
}

// NewRagChunkRepository creates a new chunk repository
func NewRagChunkRepository(config *RepositoryConfig) repositories.RagChunkRepository {
	return &PostgresRagChunkRepository{
		pool:   config.Pool,
		tables: config.Tables,
		tx:     NewTransactionManager(config.Pool, config.Logger),
	}
}

// CreateBatch inserts all chunks or none
func (r *PostgresRagChunkRepository) CreateBatch(ctx context.Context, chunks []*models.RagChunk) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (business_id, chunk_text, embedding, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, r.tables.RagChunks)

	return r.tx.ExecTx(ctx, func(ctx context.Context) error {
		executor := GetExecutor(ctx, r.pool)
		for _, c := range chunks {
			metadata := c.Metadata
			if metadata == nil {
				metadata = map[string]interface{}{}
			}
			err := executor.QueryRow(ctx, query, c.BusinessID, c.ChunkText, pgvector.NewVector(c.Embedding), metadata).
				Scan(&c.ID, &c.CreatedAt)
			if err != nil {
				return translateError(err, "insert rag chunk", "rag_chunk", "")
			}
		}
		return nil
	})
}

// GetByID loads chunk metadata; the embedding is not read back
func (r *PostgresRagChunkRepository) GetByID(ctx context.Context, id string) (*models.RagChunk, error) {
	query := fmt.Sprintf(`SELECT id, business_id, chunk_text, metadata, created_at FROM %s WHERE id = $1`, r.tables.RagChunks)

	var c models.RagChunk
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, id).Scan(&c.ID, &c.BusinessID, &c.ChunkText, &c.Metadata, &c.CreatedAt)
	if err != nil {
		return nil, translateError(err, "get rag chunk", "rag chunk", id)
	}
	return &c, nil
}

// ListByBusiness pages through a business's chunks, oldest first
func (r *PostgresRagChunkRepository) ListByBusiness(ctx context.Context, businessID string, limit, offset int) ([]models.RagChunk, error) {
	query := fmt.Sprintf(`
		SELECT id, business_id, chunk_text, metadata, created_at
		FROM %s
		WHERE business_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`, r.tables.RagChunks)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, businessID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list rag chunks: %w", err)
	}
	defer rows.Close()

	chunks := []models.RagChunk{}
	for rows.Next() {
		var c models.RagChunk
		if err := rows.Scan(&c.ID, &c.BusinessID, &c.ChunkText, &c.Metadata, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rag chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Search orders by cosine distance; Score is cosine similarity (1 - distance)
func (r *PostgresRagChunkRepository) Search(ctx context.Context, businessID string, embedding []float32, topK int) ([]models.ScoredChunk, error) {
	query := fmt.Sprintf(`
		SELECT id, business_id, chunk_text, metadata, created_at, 1 - (embedding <=> $2) AS score
		FROM %s
		WHERE business_id = $1
		ORDER BY embedding <=> $2
		LIMIT $3
	`, r.tables.RagChunks)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, businessID, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("search rag chunks: %w", err)
	}
	defer rows.Close()

	results := []models.ScoredChunk{}
	for rows.Next() {
		var sc models.ScoredChunk
		c := &sc.Chunk
		if err := rows.Scan(&c.ID, &c.BusinessID, &c.ChunkText, &c.Metadata, &c.CreatedAt, &sc.Score); err != nil {
			return nil, fmt.Errorf("scan rag hit: %w", err)
		}
		results = append(results, sc)
	}
	return results, rows.Err()
}

// Delete removes one chunk
func (r *PostgresRagChunkRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.RagChunks)

	tag, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete rag chunk: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rag chunk %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// PostgresRagQueryRepository stores retrieval records
type PostgresRagQueryRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewRagQueryRepository creates a new query-record repository
func NewRagQueryRepository(config *RepositoryConfig) repositories.RagQueryRepository {
	return &PostgresRagQueryRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Create inserts a retrieval record
func (r *PostgresRagQueryRepository) Create(ctx context.Context, q *models.RagQuery) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, business_id, query_text, response_text, timestamp)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
		RETURNING id, timestamp
	`, r.tables.RagQueries)

	var ts interface{}
	if !q.Timestamp.IsZero() {
		ts = q.Timestamp
	}
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, q.UserID, q.BusinessID, q.QueryText, q.ResponseText, ts).
		Scan(&q.ID, &q.Timestamp)
	return translateError(err, "create rag query", "rag query", q.UserID)
}

// ListByBusiness returns records against the business, newest first
func (r *PostgresRagQueryRepository) ListByBusiness(ctx context.Context, businessID string, limit, offset int) ([]models.RagQuery, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, business_id, query_text, response_text, timestamp
		FROM %s WHERE business_id = $1
		ORDER BY timestamp DESC LIMIT $2 OFFSET $3
	`, r.tables.RagQueries)
	return r.list(ctx, query, businessID, limit, offset)
}

// ListByUserAndBusiness returns the user's own records against the business
func (r *PostgresRagQueryRepository) ListByUserAndBusiness(ctx context.Context, userID, businessID string, limit, offset int) ([]models.RagQuery, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, business_id, query_text, response_text, timestamp
		FROM %s WHERE business_id = $1 AND user_id = $4
		ORDER BY timestamp DESC LIMIT $2 OFFSET $3
	`, r.tables.RagQueries)
	return r.list(ctx, query, businessID, limit, offset, userID)
}

func (r *PostgresRagQueryRepository) list(ctx context.Context, query string, args ...any) ([]models.RagQuery, error) {
	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rag queries: %w", err)
	}
	defer rows.Close()

	queries := []models.RagQuery{}
	for rows.Next() {
		var q models.RagQuery
		if err := rows.Scan(&q.ID, &q.UserID, &q.BusinessID, &q.QueryText, &q.ResponseText, &q.Timestamp); err != nil {
			return nil, fmt.Errorf("scan rag query: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}
