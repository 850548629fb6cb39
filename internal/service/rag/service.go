package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"tenantchat/internal/config"
	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/repositories"
	"tenantchat/internal/domain/services"
)

// Service implements services.RagService
type Service struct {
	chunks      repositories.RagChunkRepository
	queries     repositories.RagQueryRepository
	businesses  repositories.BusinessRepository
	authz       services.ResourceAuthorizer
	accessTypes services.AccessTypes
	generator   services.AnswerGenerator
	dimensions  int
	now         func() time.Time
	logger      *slog.Logger
}

// NewService creates the RAG service. dimensions is the embedding width every
// chunk and query must match.
func NewService(
	chunks repositories.RagChunkRepository,
	queries repositories.RagQueryRepository,
	businesses repositories.BusinessRepository,
	authz services.ResourceAuthorizer,
	accessTypes services.AccessTypes,
	generator services.AnswerGenerator,
	dimensions int,
	logger *slog.Logger,
) *Service {
	if generator == nil {
		generator = ContextGenerator{}
	}
	return &Service{
		chunks:      chunks,
		queries:     queries,
		businesses:  businesses,
		authz:       authz,
		accessTypes: accessTypes,
		generator:   generator,
		dimensions:  dimensions,
		now:         time.Now,
		logger:      logger,
	}
}

// SetClock replaces the time source used for ListQueries decisions
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// AddChunks stores chunks for the business; requires write-rag on it
func (s *Service) AddChunks(ctx context.Context, principal models.Principal, businessID string, req *services.AddChunksRequest) ([]models.RagChunk, error) {
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Chunks, validation.Required, validation.Length(1, config.MaxChunksPerUpload)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	for i := range req.Chunks {
		c := &req.Chunks[i]
		c.Text = strings.TrimSpace(c.Text)
		if err := validation.ValidateStruct(c,
			validation.Field(&c.Text, validation.Required, validation.Length(1, config.MaxChunkTextLength)),
			validation.Field(&c.Embedding, validation.Required, validation.By(s.embeddingWidth)),
			validation.Field(&c.Metadata, validation.Length(0, config.MaxMetadataKeys)),
		); err != nil {
			return nil, fmt.Errorf("%w: chunks[%d]: %v", domain.ErrValidation, i, err)
		}
	}

	ref, err := s.collectionRef(ctx, models.ResourceRagChunk, businessID, models.OperationWrite)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Require(ctx, principal, ref, models.OperationWrite); err != nil {
		return nil, err
	}

	batch := make([]*models.RagChunk, len(req.Chunks))
	for i, c := range req.Chunks {
		batch[i] = &models.RagChunk{
			BusinessID: &businessID,
			ChunkText:  c.Text,
			Embedding:  c.Embedding,
			Metadata:   c.Metadata,
		}
	}
	if err := s.chunks.CreateBatch(ctx, batch); err != nil {
		return nil, err
	}

	out := make([]models.RagChunk, len(batch))
	for i, c := range batch {
		out[i] = *c
	}
	s.logger.Info("rag chunks added", "business_id", businessID, "count", len(out), "by_user_id", principal.UserID)
	return out, nil
}

// ListChunks pages through the business's chunks; requires read-rag
func (s *Service) ListChunks(ctx context.Context, principal models.Principal, businessID string, limit, offset int) ([]models.RagChunk, error) {
	ref, err := s.collectionRef(ctx, models.ResourceRagChunk, businessID, models.OperationRead)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Require(ctx, principal, ref, models.OperationRead); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	return s.chunks.ListByBusiness(ctx, businessID, limit, offset)
}

// DeleteChunk removes one chunk. Orphaned chunks have no owning tenant and cannot be deleted here.
func (s *Service) DeleteChunk(ctx context.Context, principal models.Principal, chunkID string) error {
	chunk, err := s.chunks.GetByID(ctx, chunkID)
	if err != nil {
		return err
	}
	ref := chunk.Ref(s.accessTypes.For(models.ResourceRagChunk, models.OperationWrite))
	if err := s.authz.Require(ctx, principal, ref, models.OperationWrite); err != nil {
		return err
	}
	if err := s.chunks.Delete(ctx, chunkID); err != nil {
		return err
	}

	s.logger.Info("rag chunk deleted", "id", chunkID, "by_user_id", principal.UserID)
	return nil
}

// Query authorizes a read-rag retrieval against the business, searches its chunks,
// generates an answer and records the RagQuery. Nothing is recorded on a denial.
func (s *Service) Query(ctx context.Context, principal models.Principal, businessID string, req *services.RagQueryRequest) (*services.RagQueryResult, error) {
	if principal.IsAnonymous() {
		return nil, domain.ErrUnauthorized
	}
	req.QueryText = strings.TrimSpace(req.QueryText)
	if req.TopK == 0 {
		req.TopK = config.DefaultTopK
	}
	if err := validation.ValidateStruct(req,
		validation.Field(&req.QueryText, validation.Required, validation.Length(1, config.MaxQueryTextLength)),
		validation.Field(&req.Embedding, validation.Required, validation.By(s.embeddingWidth)),
		validation.Field(&req.TopK, validation.Min(1), validation.Max(config.MaxTopK)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	ref, err := s.collectionRef(ctx, models.ResourceRagChunk, businessID, models.OperationRead)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Require(ctx, principal, ref, models.OperationRead); err != nil {
		return nil, err
	}

	sources, err := s.chunks.Search(ctx, businessID, req.Embedding, req.TopK)
	if err != nil {
		return nil, err
	}
	answer, err := s.generator.Generate(ctx, req.QueryText, sources)
	if err != nil {
		return nil, &domain.UnavailableError{Op: "generate answer", Err: err}
	}

	record := &models.RagQuery{
		UserID:       principal.UserID,
		BusinessID:   &businessID,
		QueryText:    req.QueryText,
		ResponseText: answer,
	}
	if err := s.queries.Create(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("rag query answered",
		"id", record.ID,
		"business_id", businessID,
		"user_id", principal.UserID,
		"sources", len(sources),
	)
	return &services.RagQueryResult{Query: *record, Sources: sources}, nil
}

// ListQueries returns every record against the business to those allowed to read
// rag queries there (members, grant holders); everyone else gets only their own.
func (s *Service) ListQueries(ctx context.Context, principal models.Principal, businessID string, limit, offset int) ([]models.RagQuery, error) {
	if principal.IsAnonymous() {
		return nil, domain.ErrUnauthorized
	}
	limit, offset = clampPage(limit, offset)

	ref, err := s.collectionRef(ctx, models.ResourceRagQuery, businessID, models.OperationRead)
	if err != nil {
		return nil, err
	}
	// a denial only narrows the listing, so it is not audited
	decision, err := s.authz.Decide(ctx, principal, ref, models.OperationRead, s.now())
	if err != nil {
		return nil, err
	}
	if decision.Allow {
		return s.queries.ListByBusiness(ctx, businessID, limit, offset)
	}
	return s.queries.ListByUserAndBusiness(ctx, principal.UserID, businessID, limit, offset)
}

// collectionRef describes "the kind of resource owned by this business" for
// operations that act on the collection rather than one row. The business owner
// is the owning user, so they keep access while operating as another business.
func (s *Service) collectionRef(ctx context.Context, kind models.ResourceKind, businessID string, op models.Operation) (models.ResourceRef, error) {
	business, err := s.businesses.GetByID(ctx, businessID)
	if err != nil {
		return models.ResourceRef{}, err
	}
	return models.ResourceRef{
		Kind:            kind,
		ID:              business.ID,
		OwnerBusinessID: &business.ID,
		OwnerUserID:     &business.OwnerID,
		AccessType:      s.accessTypes.For(kind, op),
	}, nil
}

func (s *Service) embeddingWidth(value interface{}) error {
	v, _ := value.([]float32)
	if len(v) != s.dimensions {
		return fmt.Errorf("must have %d dimensions, got %d", s.dimensions, len(v))
	}
	return nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = config.DefaultPageSize
	}
	if limit > config.MaxPageSize {
		limit = config.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

var _ services.RagService = (*Service)(nil)
