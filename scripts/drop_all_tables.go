//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"tenantchat/internal/config"
	"tenantchat/internal/repository/postgres"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.SupabaseDBURL == "" {
		log.Fatal("SUPABASE_DB_URL environment variable is required")
	}
	if cfg.Environment == "prod" {
		log.Fatal("BLOCKED: refusing to drop production tables")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	for _, stmt := range postgres.DropStatements(postgres.NewTableNames(cfg.TablePrefix)) {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
	}

	fmt.Printf("All tables dropped successfully (prefix: %s)\n", cfg.TablePrefix)
}
