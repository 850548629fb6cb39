package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SchemaStatements returns the idempotent DDL for all tables.
// dims is the embedding width of rag_chunks.embedding.
func SchemaStatements(t *TableNames, dims int) []string {
	fk := func(name string) string { return strings.ReplaceAll(name, ".", "_") }

	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE EXTENSION IF NOT EXISTS pgcrypto`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('member', 'admin')),
			business_id UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, t.Users),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			owner_id UUID NOT NULL REFERENCES %s(id) ON DELETE RESTRICT,
			name VARCHAR(255) NOT NULL,
			is_public BOOLEAN NOT NULL DEFAULT false,
			public_access_fee NUMERIC(12, 2),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT %s_fee_public CHECK (is_public OR public_access_fee IS NULL),
			CONSTRAINT %s_fee_nonneg CHECK (public_access_fee IS NULL OR public_access_fee >= 0)
		)`, t.Businesses, t.Users, fk(t.Businesses), fk(t.Businesses)),

		// users <-> businesses is circular, so the affiliation FK is added afterwards
		fmt.Sprintf(`DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%s_business_fk') THEN
				ALTER TABLE %s ADD CONSTRAINT %s_business_fk
					FOREIGN KEY (business_id) REFERENCES %s(id) ON DELETE SET NULL;
			END IF;
		END $$`, fk(t.Users), t.Users, fk(t.Users), t.Businesses),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			accessing_business_id UUID NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			target_business_id UUID NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			has_access BOOLEAN NOT NULL DEFAULT false,
			access_type VARCHAR(64) NOT NULL,
			expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT %s_no_self CHECK (accessing_business_id <> target_business_id),
			CONSTRAINT %s_triple UNIQUE (target_business_id, accessing_business_id, access_type)
		)`, t.BusinessAccesses, t.Businesses, t.Businesses, fk(t.BusinessAccesses), fk(t.BusinessAccesses)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_accessing_idx ON %s (accessing_business_id)`,
			fk(t.BusinessAccesses), t.BusinessAccesses),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			business_id UUID REFERENCES %s(id) ON DELETE SET NULL,
			title VARCHAR(255) NOT NULL DEFAULT '',
			visibility TEXT NOT NULL DEFAULT 'private' CHECK (visibility IN ('private', 'public')),
			message_seq BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, t.Conversations, t.Users, t.Businesses),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_user_idx ON %s (user_id, updated_at DESC)`, fk(t.Conversations), t.Conversations),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_business_idx ON %s (business_id)`, fk(t.Conversations), t.Conversations),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			conversation_id UUID NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			sender_id UUID REFERENCES %s(id) ON DELETE SET NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			upvotes INTEGER NOT NULL DEFAULT 0 CHECK (upvotes >= 0),
			downvotes INTEGER NOT NULL DEFAULT 0 CHECK (downvotes >= 0),
			sequence BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT %s_seq UNIQUE (conversation_id, sequence)
		)`, t.Messages, t.Conversations, t.Users, fk(t.Messages)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_created_idx ON %s (conversation_id, created_at)`, fk(t.Messages), t.Messages),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			business_id UUID REFERENCES %s(id) ON DELETE SET NULL,
			chunk_text TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, t.RagChunks, t.Businesses, dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_business_idx ON %s (business_id)`, fk(t.RagChunks), t.RagChunks),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`,
			fk(t.RagChunks), t.RagChunks),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			business_id UUID REFERENCES %s(id) ON DELETE SET NULL,
			query_text TEXT NOT NULL,
			response_text TEXT NOT NULL DEFAULT '',
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, t.RagQueries, t.Users, t.Businesses),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_business_idx ON %s (business_id, timestamp DESC)`, fk(t.RagQueries), t.RagQueries),
	}
}

// EnsureSchema applies SchemaStatements in one transaction
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, t *TableNames, dims int) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, stmt := range SchemaStatements(t, dims) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// DropStatements returns DROP TABLE statements in reverse dependency order
func DropStatements(t *TableNames) []string {
	all := t.All()
	out := make([]string, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", all[i]))
	}
	return out
}
