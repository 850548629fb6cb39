package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	llmprovider "github.com/haowjy/meridian-llm-go"
	"github.com/haowjy/meridian-llm-go/providers/anthropic"
	"github.com/haowjy/meridian-llm-go/providers/lorem"

	"tenantchat/internal/config"
	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/services"
)

// NewGenerator picks the answer generator named by RAG_PROVIDER.
//
// Supported providers:
//   - "anthropic" - Claude via the Anthropic API (needs ANTHROPIC_API_KEY)
//   - "lorem" - mock provider, no API key required
//   - "none" - no model; the answer is the retrieved context itself
func NewGenerator(cfg *config.Config, logger *slog.Logger) (services.AnswerGenerator, error) {
	switch cfg.RAGProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
		provider, err := anthropic.NewProvider(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create Anthropic provider: %w", err)
		}
		logger.Info("rag answer provider", "name", "anthropic", "model", cfg.RAGModel)
		return NewLLMGenerator(provider, cfg.RAGModel, logger), nil

	case "lorem":
		logger.Info("rag answer provider", "name", "lorem")
		return NewLLMGenerator(lorem.NewProvider(), cfg.RAGModel, logger), nil

	case "none", "":
		return ContextGenerator{}, nil

	default:
		return nil, fmt.Errorf("unsupported RAG provider: %s", cfg.RAGProvider)
	}
}

// LLMGenerator answers from the retrieved chunks with a single non-streaming request
type LLMGenerator struct {
	provider llmprovider.Provider
	model    string
	logger   *slog.Logger
}

// NewLLMGenerator wraps a meridian-llm-go provider
func NewLLMGenerator(provider llmprovider.Provider, model string, logger *slog.Logger) *LLMGenerator {
	return &LLMGenerator{
		provider: provider,
		model:    model,
		logger:   logger,
	}
}

func (g *LLMGenerator) Generate(ctx context.Context, query string, sources []models.ScoredChunk) (string, error) {
	prompt := buildPrompt(query, sources)
	req := &llmprovider.GenerateRequest{
		Messages: []llmprovider.Message{
			{
				Role: "user",
				Blocks: []*llmprovider.Block{
					{BlockType: "text", Sequence: 0, TextContent: &prompt},
				},
			},
		},
		Model: g.model,
	}

	resp, err := g.provider.GenerateResponse(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Blocks {
		if block.BlockType == "text" && block.TextContent != nil {
			b.WriteString(*block.TextContent)
		}
	}

	g.logger.Debug("rag answer generated",
		"model", resp.Model,
		"sources", len(sources),
		"answer_length", b.Len(),
	)
	return b.String(), nil
}

// ContextGenerator returns the retrieved chunk texts, best match first
type ContextGenerator struct{}

func (ContextGenerator) Generate(_ context.Context, _ string, sources []models.ScoredChunk) (string, error) {
	texts := make([]string, len(sources))
	for i, s := range sources {
		texts[i] = s.Chunk.ChunkText
	}
	return strings.Join(texts, "\n\n"), nil
}

func buildPrompt(query string, sources []models.ScoredChunk) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the context below. ")
	b.WriteString("If the context does not contain the answer, say so.\n\n")
	for i, s := range sources {
		fmt.Fprintf(&b, "<context index=\"%d\">\n%s\n</context>\n", i+1, s.Chunk.ChunkText)
	}
	fmt.Fprintf(&b, "\nQuestion: %s", query)
	return b.String()
}
