package services

import (
	"context"

	"github.com/yungbote/mindgraph-backend/internal/domain"
	"github.com/yungbote/mindgraph-backend/internal/kgerr"
	"github.com/yungbote/mindgraph-backend/internal/platform/envutil"
	"github.com/yungbote/mindgraph-backend/internal/platform/logger"
	"github.com/yungbote/mindgraph-backend/internal/platform/openai"
)

// Embedder turns texts into fixed-dimension vectors, order preserved.
// The call is all or nothing: a failed batch fails the whole input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

type openaiEmbedder struct {
	log       *logger.Logger
	client    openai.Client
	dim       int
	batchSize int
}

func NewEmbedder(log *logger.Logger, client openai.Client) (Embedder, error) {
	if log == nil {
		return nil, kgerr.Errorf(kgerr.KindInternal, "embedder.new", "logger required")
	}
	if client == nil {
		return nil, kgerr.Errorf(kgerr.KindInternal, "embedder.new", "openai client required")
	}

	dim := envutil.Int("EMBED_DIM", domain.DefaultEmbeddingDim)
	if dim <= 0 {
		dim = domain.DefaultEmbeddingDim
	}
	batch := envutil.Int("EMBED_BATCH_SIZE", 256)
	if batch <= 0 {
		batch = 256
	}

	return &openaiEmbedder{
		log:       log.With("service", "Embedder"),
		client:    client,
		dim:       dim,
		batchSize: batch,
	}, nil
}

func (e *openaiEmbedder) Dimension() int { return e.dim }

func (e *openaiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vecs, err := e.client.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, kgerr.E(kgerr.KindEmbedFailed, "embedder.embed", err)
		}
		if len(vecs) != end-start {
			return nil, kgerr.Errorf(kgerr.KindEmbedFailed, "embedder.embed",
				"provider returned %d vectors for %d inputs", len(vecs), end-start)
		}
		for i, vec := range vecs {
			if len(vec) != e.dim {
				return nil, kgerr.Errorf(kgerr.KindDimensionMismatch, "embedder.embed",
					"vector %d has %d dimensions, expected %d", start+i, len(vec), e.dim)
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}
