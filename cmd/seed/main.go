package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"tenantchat/internal/accesstypes"
	"tenantchat/internal/auth"
	"tenantchat/internal/config"
	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/repositories"
	"tenantchat/internal/domain/services"
	"tenantchat/internal/repository/postgres"
	"tenantchat/internal/service/audit"
	authsvc "tenantchat/internal/service/auth"
	"tenantchat/internal/service/rag"
	"tenantchat/internal/service/tenant"
)

const demoPassword = "tenantchat-demo"

// demoTenant is one business with its owner and knowledge base
type demoTenant struct {
	email    string
	name     string
	business string
	chunks   []string
}

var demoTenants = []demoTenant{
	{
		email:    "owner@bakery.test",
		name:     "Bakery Owner",
		business: "Corner Bakery",
		chunks: []string{
			"We open at 7am and close at 3pm, Tuesday through Sunday.",
			"Sourdough is baked fresh every morning; rye on weekends only.",
		},
	},
	{
		email:    "owner@cafe.test",
		name:     "Cafe Owner",
		business: "Harbor Cafe",
		chunks: []string{
			"Harbor Cafe serves bread from Corner Bakery.",
		},
	},
}

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed demo tenants")
	clearData := flag.Bool("clear-data", false, "Clear all rows (keep schema)")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("BLOCKED: Cannot run destructive operations (--drop-tables or --clear-data) in production environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	switch {
	case *clearData:
		log.Printf("Clearing data only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	case *schemaOnly:
		log.Printf("Setting up schema only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	default:
		log.Printf("Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	}

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("Dropping all tables...")
		for _, stmt := range postgres.DropStatements(tables) {
			if _, err := pool.Exec(ctx, stmt); err != nil {
				log.Fatalf("Failed to drop tables: %v", err)
			}
		}
	}

	log.Println("Ensuring database schema is up to date...")
	if err := postgres.EnsureSchema(ctx, pool, tables, cfg.EmbeddingDimensions); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}

	if *schemaOnly {
		log.Println("Schema setup complete (schema-only mode)")
		return
	}

	if err := clearAll(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to clear data: %v", err)
	}
	if *clearData {
		log.Println("Data cleared successfully")
		return
	}

	if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
		log.Fatal("SUPABASE_URL and SUPABASE_KEY (service role) are required to create demo accounts")
	}

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	s := &seeder{
		admin:      auth.NewAdminClient(cfg.SupabaseURL, cfg.SupabaseKey),
		users:      postgres.NewUserRepository(repoConfig),
		businesses: postgres.NewBusinessRepository(repoConfig),
		grants:     postgres.NewBusinessAccessRepository(repoConfig),
		dims:       cfg.EmbeddingDimensions,
		logger:     logger,
	}
	s.init(repoConfig, postgres.NewTransactionManager(pool, logger))

	if err := s.run(ctx); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Println("Seeding complete!")
}

type seeder struct {
	admin      *auth.AdminClient
	users      repositories.UserRepository
	businesses repositories.BusinessRepository
	grants     repositories.BusinessAccessRepository
	dims       int
	logger     *slog.Logger

	businessService services.BusinessService
	accessService   services.AccessService
	ragService      services.RagService
}

func (s *seeder) init(repoConfig *postgres.RepositoryConfig, tx repositories.TransactionManager) {
	registry, err := accesstypes.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load access type registry: %v", err)
	}
	engine := authsvc.NewEngine(s.grants, audit.NewLogSink(s.logger), 5*time.Second, s.logger)

	s.businessService = tenant.NewBusinessService(s.businesses, s.users, tx, s.logger)
	s.accessService = tenant.NewAccessService(s.grants, s.businesses, registry, nil, s.logger)
	s.ragService = rag.NewService(
		postgres.NewRagChunkRepository(repoConfig),
		postgres.NewRagQueryRepository(repoConfig),
		s.businesses,
		engine,
		registry,
		nil,
		s.dims,
		s.logger,
	)
}

// run creates both tenants, loads their chunks and lets the cafe read the bakery's knowledge
func (s *seeder) run(ctx context.Context) error {
	created := make([]*models.Business, 0, len(demoTenants))
	owners := make([]models.Principal, 0, len(demoTenants))

	for _, t := range demoTenants {
		user, err := s.ensureUser(ctx, t)
		if err != nil {
			return err
		}

		business, err := s.businessService.CreateBusiness(ctx, user.Principal(), &services.CreateBusinessRequest{Name: t.business})
		if err != nil {
			return fmt.Errorf("create business %q: %w", t.business, err)
		}

		// reload: creating the business affiliated the owner
		user, err = s.users.GetByID(ctx, user.ID)
		if err != nil {
			return err
		}
		owner := user.Principal()

		req := &services.AddChunksRequest{}
		for _, text := range t.chunks {
			req.Chunks = append(req.Chunks, services.NewChunk{Text: text, Embedding: rag.HashEmbedding(text, s.dims)})
		}
		if _, err := s.ragService.AddChunks(ctx, owner, business.ID, req); err != nil {
			return fmt.Errorf("add chunks for %q: %w", t.business, err)
		}

		log.Printf("Created %s (ID: %s, owner: %s, chunks: %d)", business.Name, business.ID, t.email, len(t.chunks))
		created = append(created, business)
		owners = append(owners, owner)
	}

	expires := time.Now().Add(30 * 24 * time.Hour)
	grant, err := s.accessService.Grant(ctx, owners[0], &services.GrantRequest{
		TargetBusinessID:    created[0].ID,
		AccessingBusinessID: created[1].ID,
		AccessType:          "read-rag",
		ExpiresAt:           &expires,
	})
	if err != nil {
		return fmt.Errorf("grant read-rag: %w", err)
	}
	log.Printf("Granted %s read-rag on %s until %s (grant ID: %s)",
		created[1].Name, created[0].Name, expires.Format(time.RFC3339), grant.ID)
	return nil
}

// ensureUser makes sure the account exists both in Supabase and locally
func (s *seeder) ensureUser(ctx context.Context, t demoTenant) (*models.User, error) {
	id, err := s.admin.EnsureUser(ctx, t.email, demoPassword, t.name)
	if err != nil {
		return nil, fmt.Errorf("ensure supabase user %s: %w", t.email, err)
	}

	user, err := s.users.GetByID(ctx, id)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	user = &models.User{ID: id, Email: t.email, Name: t.name, Role: models.UserRoleMember}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user %s: %w", t.email, err)
	}
	return user, nil
}

// clearAll empties every table, users included; demo accounts are recreated from Supabase
func clearAll(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	_, err := pool.Exec(ctx, "TRUNCATE "+strings.Join(tables.All(), ", ")+" CASCADE")
	return err
}
