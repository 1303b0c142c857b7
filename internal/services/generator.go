package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/mindgraph-backend/internal/kgerr"
	"github.com/yungbote/mindgraph-backend/internal/platform/logger"
	"github.com/yungbote/mindgraph-backend/internal/platform/openai"
)

// Generator produces grounded answers from a query plus retrieved graph
// context. Structured generation constrains the answer to a caller schema.
type Generator interface {
	GenerateText(ctx context.Context, query string, graphContext string) (string, error)
	GenerateStructured(ctx context.Context, query string, graphContext string, schemaName string, schema map[string]any) (map[string]any, error)
}

type openaiGenerator struct {
	log    *logger.Logger
	client openai.Client
}

func NewGenerator(log *logger.Logger, client openai.Client) (Generator, error) {
	if log == nil {
		return nil, kgerr.Errorf(kgerr.KindInternal, "generator.new", "logger required")
	}
	if client == nil {
		return nil, kgerr.Errorf(kgerr.KindInternal, "generator.new", "openai client required")
	}
	return &openaiGenerator{
		log:    log.With("service", "Generator"),
		client: client,
	}, nil
}

const generationSystem = `You answer questions about a person using only the knowledge graph
context provided. The context lists concepts and labeled relationships
extracted from the person's own writing. If the context does not cover
the question, say so rather than guessing.`

func buildGenerationPrompt(query, graphContext string) string {
	if strings.TrimSpace(graphContext) == "" {
		return fmt.Sprintf("Question: %s\n\n(No graph context was found for this question.)", query)
	}
	return fmt.Sprintf("Graph context:\n%s\n\nQuestion: %s", graphContext, query)
}

func (g *openaiGenerator) GenerateText(ctx context.Context, query string, graphContext string) (string, error) {
	out, err := g.client.GenerateText(ctx, generationSystem, buildGenerationPrompt(query, graphContext))
	if err != nil {
		return "", fmt.Errorf("generator.generate_text: %w", err)
	}
	return out, nil
}

func (g *openaiGenerator) GenerateStructured(ctx context.Context, query string, graphContext string, schemaName string, schema map[string]any) (map[string]any, error) {
	out, err := g.client.GenerateJSON(ctx, generationSystem, buildGenerationPrompt(query, graphContext), schemaName, schema)
	if err != nil {
		return nil, fmt.Errorf("generator.generate_structured: %w", err)
	}
	return out, nil
}
