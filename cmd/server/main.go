package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"tenantchat/internal/accesstypes"
	"tenantchat/internal/auth"
	"tenantchat/internal/config"
	"tenantchat/internal/domain/services"
	"tenantchat/internal/handler"
	"tenantchat/internal/middleware"
	"tenantchat/internal/service/audit"
	authsvc "tenantchat/internal/service/auth"
	"tenantchat/internal/service/chat"
	"tenantchat/internal/service/rag"
	"tenantchat/internal/service/tenant"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, cfg.LogMaxFiles)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		out = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"storage", cfg.StorageBackend,
		"table_prefix", cfg.TablePrefix,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.close()

	registry, err := accesstypes.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load access type registry: %v", err)
	}
	logger.Info("access type registry loaded", "access_types", registry.All())

	// Audit: always to the log, additionally to NATS when configured
	sinks := audit.MultiSink{audit.NewLogSink(logger)}
	if cfg.NATSURL != "" {
		nc, err := audit.Connect(cfg.NATSURL, logger)
		if err != nil {
			log.Fatalf("Failed to connect audit sink: %v", err)
		}
		defer nc.Drain()
		sinks = append(sinks, audit.NewNATSSink(nc, cfg.AuditSubject))
		logger.Info("nats audit sink enabled", "subject", cfg.AuditSubject)
	}

	engine := authsvc.NewEngine(store.grants, sinks, cfg.GrantLookupTimeout, logger)

	generator, err := rag.NewGenerator(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to set up answer generator: %v", err)
	}

	// Services
	locks := chat.NewLocker()
	businessService := tenant.NewBusinessService(store.businesses, store.users, store.tx, logger)
	accessService := tenant.NewAccessService(store.grants, store.businesses, registry, nil, logger)
	userService := tenant.NewUserService(store.users, store.businesses, logger)
	conversationService := chat.NewConversationService(store.conversations, engine, registry, store.tx, locks, logger)
	messageService := chat.NewMessageService(store.conversations, store.messages, engine, registry, store.tx, locks, logger)
	var ragService services.RagService = rag.NewService(
		store.chunks,
		store.queries,
		store.businesses,
		engine,
		registry,
		generator,
		cfg.EmbeddingDimensions,
		logger,
	)

	// Identity
	jwtVerifier, err := auth.NewJWTVerifier(ctx, cfg.SupabaseJWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()
	resolver := auth.NewResolver(jwtVerifier, store.users, logger)

	logger.Info("services initialized")

	mux := handler.NewRouter(handler.Handlers{
		Business:     handler.NewBusinessHandler(businessService, accessService, logger),
		User:         handler.NewUserHandler(userService, logger),
		Conversation: handler.NewConversationHandler(conversationService, messageService, logger),
		Rag:          handler.NewRagHandler(ragService, logger),
	})

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Auth → Recovery → Routes
	var h http.Handler = mux
	h = middleware.Recovery(logger)(h)
	h = middleware.Authenticate(resolver, logger)(h)

	// CORS - Must be outermost to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
}
