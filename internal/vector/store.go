// Package vector defines the per-user embedding index contract. The reference
// implementation rides Neo4j's native vector index on the shared driver; a
// Qdrant REST implementation can be selected at startup instead.
package vector

import (
	"context"

	"github.com/yungbote/mindgraph-backend/internal/domain"
)

type Store interface {
	// Initialize ensures the named index exists with the configured dimension
	// and cosine similarity. Idempotent; an existing index with a different
	// dimension is a fatal configuration error.
	Initialize(ctx context.Context) error

	// AddEmbedding upserts the vector for (user_id, node_name). Fails typed on
	// dimension mismatch and on missing nodes.
	AddEmbedding(ctx context.Context, nodeName string, vec []float32, userID string) error

	// SearchSimilar returns up to k hits for the user ordered by descending
	// cosine similarity. k <= 0 yields empty results without error; k is
	// clamped to domain.MaxSimilarityTopK. Hits never cross users.
	SearchSimilar(ctx context.Context, vec []float32, userID string, k int) ([]domain.SimilarityHit, error)

	// DeleteUserVectors removes every embedding owned by the user.
	DeleteUserVectors(ctx context.Context, userID string) error

	// DropIndex removes the index. Tests only.
	DropIndex(ctx context.Context) error

	Dimension() int
}

// ClampTopK applies the shared k bounds: non-positive k means "no results",
// anything above the cap is clamped.
func ClampTopK(k int) int {
	if k <= 0 {
		return 0
	}
	if k > domain.MaxSimilarityTopK {
		return domain.MaxSimilarityTopK
	}
	return k
}
