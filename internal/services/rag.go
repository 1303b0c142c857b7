package services

import (
	"context"
	"strings"

	"github.com/yungbote/mindgraph-backend/internal/domain"
	"github.com/yungbote/mindgraph-backend/internal/kgerr"
	"github.com/yungbote/mindgraph-backend/internal/platform/logger"
)

const (
	defaultRAGTopK    = 5
	defaultRAGMaxHops = DefaultMaxHops
)

// RAG answers questions over a user's graph: retrieve context around the
// query, then generate against it.
type RAG struct {
	log       *logger.Logger
	retriever *ContextRetriever
	ops       *GraphOps
	generator Generator
}

func NewRAG(log *logger.Logger, retriever *ContextRetriever, ops *GraphOps, generator Generator) (*RAG, error) {
	if log == nil {
		return nil, kgerr.Errorf(kgerr.KindInternal, "rag.new", "logger required")
	}
	if retriever == nil || ops == nil || generator == nil {
		return nil, kgerr.Errorf(kgerr.KindInternal, "rag.new", "retriever, graph ops and generator required")
	}
	return &RAG{
		log:       log.With("service", "RAG"),
		retriever: retriever,
		ops:       ops,
		generator: generator,
	}, nil
}

// GetContext returns the rendered graph neighborhood most similar to the
// query. Empty string when the user's graph has nothing relevant.
func (r *RAG) GetContext(ctx context.Context, query, userID string, topK, maxHops int) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", kgerr.Errorf(kgerr.KindEmptyContent, "rag.get_context", "empty query")
	}
	if topK <= 0 {
		topK = defaultRAGTopK
	}
	if maxHops <= 0 {
		maxHops = defaultRAGMaxHops
	}
	return r.retriever.GetRichContext(ctx, query, userID, topK, maxHops)
}

// Query runs full retrieval-augmented generation.
func (r *RAG) Query(ctx context.Context, query, userID string) (string, error) {
	graphContext, err := r.GetContext(ctx, query, userID, defaultRAGTopK, defaultRAGMaxHops)
	if err != nil {
		return "", err
	}
	return r.generator.GenerateText(ctx, query, graphContext)
}

// QueryVectorOnly skips graph expansion and generation: just the node names
// most similar to the query.
func (r *RAG) QueryVectorOnly(ctx context.Context, query, userID string, k int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, kgerr.Errorf(kgerr.KindEmptyContent, "rag.query_vector_only", "empty query")
	}
	if k <= 0 {
		k = defaultRAGTopK
	}

	result, err := r.ops.TextSimilaritySearch(ctx, query, userID, k)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(result.Results))
	for _, hit := range result.Results {
		names = append(names, hit.NodeName)
	}
	return names, nil
}

// AskStructured answers with a caller-supplied JSON schema.
func (r *RAG) AskStructured(ctx context.Context, query, userID, schemaName string, schema map[string]any) (map[string]any, error) {
	graphContext, err := r.GetContext(ctx, query, userID, defaultRAGTopK, defaultRAGMaxHops)
	if err != nil {
		return nil, err
	}
	return r.generator.GenerateStructured(ctx, query, graphContext, schemaName, schema)
}

// Similar returns the scored similarity hits for a free-text query.
func (r *RAG) Similar(ctx context.Context, query, userID string, k int) (domain.SimilarityResult, error) {
	if strings.TrimSpace(query) == "" {
		return domain.SimilarityResult{}, kgerr.Errorf(kgerr.KindEmptyContent, "rag.similar", "empty query")
	}
	return r.ops.TextSimilaritySearch(ctx, query, userID, k)
}
