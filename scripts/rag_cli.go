//go:build ignore

// rag_cli asks questions against a business's knowledge base as a given user,
// going through the same authorization as the HTTP API.
//
//	go run scripts/rag_cli.go -user <user-id> -business <business-id>
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tenantchat/internal/accesstypes"
	"tenantchat/internal/config"
	"tenantchat/internal/domain/services"
	"tenantchat/internal/repository/postgres"
	"tenantchat/internal/service/audit"
	authsvc "tenantchat/internal/service/auth"
	"tenantchat/internal/service/rag"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func main() {
	userID := flag.String("user", "", "user id to ask as")
	businessID := flag.String("business", "", "business whose knowledge to query")
	topK := flag.Int("k", 3, "number of sources to retrieve")
	flag.Parse()

	if *userID == "" || *businessID == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.Load()

	logger, logPath, err := setupLogger()
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}
	users := postgres.NewUserRepository(repoConfig)
	businesses := postgres.NewBusinessRepository(repoConfig)

	user, err := users.GetByID(ctx, *userID)
	if err != nil {
		log.Fatalf("Unknown user %s: %v", *userID, err)
	}
	principal := user.Principal()

	registry, err := accesstypes.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load access type registry: %v", err)
	}
	generator, err := rag.NewGenerator(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to set up answer generator: %v", err)
	}
	engine := authsvc.NewEngine(postgres.NewBusinessAccessRepository(repoConfig), audit.NewLogSink(logger), cfg.GrantLookupTimeout, logger)
	svc := rag.NewService(
		postgres.NewRagChunkRepository(repoConfig),
		postgres.NewRagQueryRepository(repoConfig),
		businesses,
		engine,
		registry,
		generator,
		cfg.EmbeddingDimensions,
		logger,
	)

	fmt.Printf("%sAsking as %s against business %s (provider: %s)%s\n", colorCyan, user.Email, *businessID, cfg.RAGProvider, colorReset)
	fmt.Printf("Logs: %s. Empty line or Ctrl-D quits.\n\n", logPath)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			break
		}

		qctx, cancel := context.WithTimeout(ctx, time.Minute)
		result, err := svc.Query(qctx, principal, *businessID, &services.RagQueryRequest{
			QueryText: question,
			Embedding: rag.HashEmbedding(question, cfg.EmbeddingDimensions),
			TopK:      *topK,
		})
		cancel()
		if err != nil {
			fmt.Printf("%s%v%s\n\n", colorRed, err, colorReset)
			continue
		}

		for i, src := range result.Sources {
			fmt.Printf("%s[%d] %.3f%s %s\n", colorYellow, i+1, src.Score, colorReset, src.Chunk.ChunkText)
		}
		fmt.Printf("%s%s%s\n\n", colorGreen, result.Query.ResponseText, colorReset)
	}
}

// setupLogger writes debug logs to a timestamped file and warnings to the console
func setupLogger() (*slog.Logger, string, error) {
	if err := os.MkdirAll("logs", 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create logs directory: %w", err)
	}
	logPath := filepath.Join("logs", fmt.Sprintf("rag_cli_%s.log", time.Now().Format("2006-01-02_15-04-05")))
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create log file: %w", err)
	}

	return slog.New(&multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true}),
	}}), logPath, nil
}

// multiHandler writes to multiple handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
