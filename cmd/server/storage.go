package main

import (
	"context"
	"fmt"
	"log/slog"

	"tenantchat/internal/config"
	"tenantchat/internal/domain/repositories"
	"tenantchat/internal/repository/memory"
	"tenantchat/internal/repository/postgres"
)

// storage bundles the repositories one backend provides
type storage struct {
	users         repositories.UserRepository
	businesses    repositories.BusinessRepository
	grants        repositories.BusinessAccessRepository
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	chunks        repositories.RagChunkRepository
	queries       repositories.RagQueryRepository
	tx            repositories.TransactionManager
	close         func()
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	switch cfg.StorageBackend {
	case "memory":
		logger.Warn("using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return &storage{
			users:         memory.NewUserRepository(store),
			businesses:    memory.NewBusinessRepository(store),
			grants:        memory.NewBusinessAccessRepository(store),
			conversations: memory.NewConversationRepository(store),
			messages:      memory.NewMessageRepository(store),
			chunks:        memory.NewRagChunkRepository(store),
			queries:       memory.NewRagQueryRepository(store),
			tx:            memory.NewTransactionManager(store),
			close:         func() {},
		}, nil

	case "postgres":
		pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL, logger)
		if err != nil {
			return nil, err
		}

		tables := postgres.NewTableNames(cfg.TablePrefix)
		if err := postgres.EnsureSchema(ctx, pool, tables, cfg.EmbeddingDimensions); err != nil {
			pool.Close()
			return nil, err
		}

		repoConfig := &postgres.RepositoryConfig{
			Pool:   pool,
			Tables: tables,
			Logger: logger,
		}
		return &storage{
			users:         postgres.NewUserRepository(repoConfig),
			businesses:    postgres.NewBusinessRepository(repoConfig),
			grants:        postgres.NewBusinessAccessRepository(repoConfig),
			conversations: postgres.NewConversationRepository(repoConfig),
			messages:      postgres.NewMessageRepository(repoConfig),
			chunks:        postgres.NewRagChunkRepository(repoConfig),
			queries:       postgres.NewRagQueryRepository(repoConfig),
			tx:            postgres.NewTransactionManager(pool, logger),
			close:         pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q (want postgres or memory)", cfg.StorageBackend)
	}
}
