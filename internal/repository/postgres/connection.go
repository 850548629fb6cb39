package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"tenantchat/internal/domain/repositories"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table names
type TableNames struct {
	Businesses       string
	Users            string
	BusinessAccesses string
	Conversations    string
	Messages         string
	RagChunks        string
	RagQueries       string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Businesses:       fmt.Sprintf("%sbusinesses", prefix),
		Users:            fmt.Sprintf("%susers", prefix),
		BusinessAccesses: fmt.Sprintf("%sbusiness_accesses", prefix),
		Conversations:    fmt.Sprintf("%sconversations", prefix),
		Messages:         fmt.Sprintf("%smessages", prefix),
		RagChunks:        fmt.Sprintf("%srag_chunks", prefix),
		RagQueries:       fmt.Sprintf("%srag_queries", prefix),
	}
}

// All lists tables in dependency order (referenced tables first)
func (t *TableNames) All() []string {
	return []string{t.Users, t.Businesses, t.BusinessAccesses, t.Conversations, t.Messages, t.RagChunks, t.RagQueries}
}

// CreateConnectionPool creates a pgx pool with PgBouncer compatibility.
//
// Port 6543 is Supabase's transaction pooler, which does not support prepared
// statements. There we switch to QueryExecModeCacheDescribe: it keeps the extended
// protocol (needed to encode map[string]interface{} as JSONB) without preparing.
// An explicit default_query_exec_mode in the URL takes precedence.
//
// Each new connection registers the pgvector types. Registration fails until the
// vector extension exists (fresh database before schema bootstrap); the connection
// is kept and vectors fall back to the text format.
func CreateConnectionPool(ctx context.Context, databaseURL string, logger *slog.Logger) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		logger.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if err := pgxvec.RegisterTypes(ctx, conn); err != nil {
			logger.Debug("pgvector types not registered", "error", err)
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// GetExecutor returns the transaction stored in ctx, or the pool.
// Repositories use it so they join a surrounding ExecTx automatically.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx := repositories.GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}
