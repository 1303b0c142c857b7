package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/mindgraph-backend/internal/domain"
	"github.com/yungbote/mindgraph-backend/internal/kgerr"
	"github.com/yungbote/mindgraph-backend/internal/platform/logger"
	"github.com/yungbote/mindgraph-backend/internal/platform/neo4jdb"
)

const indexName = "concept_embedding"

// Over-fetch factor for user-scoped similarity: the index query runs globally
// and is narrowed by user_id inside the same Cypher statement, so more
// candidates than k are pulled before the LIMIT.
const overFetchFactor = 4

// Neo4jIndex stores embeddings on the Concept nodes themselves and serves
// similarity through the database's native cosine vector index. It shares the
// graph store's connection pool.
type Neo4jIndex struct {
	client *neo4jdb.Client
	log    *logger.Logger
	dim    int
}

func NewNeo4jIndex(client *neo4jdb.Client, log *logger.Logger, dim int) (*Neo4jIndex, error) {
	if client == nil {
		return nil, fmt.Errorf("neo4j client required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if dim <= 0 {
		dim = domain.DefaultEmbeddingDim
	}
	return &Neo4jIndex{
		client: client,
		log:    log.With("service", "Neo4jVectorIndex"),
		dim:    dim,
	}, nil
}

func (s *Neo4jIndex) Dimension() int { return s.dim }

func (s *Neo4jIndex) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.client.Database,
	})
}

func (s *Neo4jIndex) Initialize(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	// Index options cannot be parameterized; dim is an int from config.
	stmt := fmt.Sprintf(`
CREATE VECTOR INDEX %s IF NOT EXISTS
FOR (c:Concept) ON (c.embedding)
OPTIONS {indexConfig: {
  `+"`vector.dimensions`"+`: %d,
  `+"`vector.similarity_function`"+`: 'cosine'
}}
`, indexName, s.dim)

	if res, err := session.Run(ctx, stmt, nil); err != nil {
		// An equivalent index racing into existence is success.
		if strings.Contains(err.Error(), "EquivalentSchemaRule") {
			s.log.Debug("vector index already exists")
		} else {
			return kgerr.E(kgerr.KindConnectFailed, "vector.initialize", err)
		}
	} else if _, err := res.Consume(ctx); err != nil {
		return kgerr.E(kgerr.KindConnectFailed, "vector.initialize", err)
	}

	if err := s.verifyDimension(ctx, session); err != nil {
		return err
	}

	s.log.Info("Neo4j vector index ready", "index", indexName, "dim", s.dim)
	return nil
}

func (s *Neo4jIndex) verifyDimension(ctx context.Context, session neo4j.SessionWithContext) error {
	res, err := session.Run(ctx, `
SHOW VECTOR INDEXES YIELD name, options
WHERE name = $name
RETURN options
`, map[string]any{"name": indexName})
	if err != nil {
		s.log.Warn("could not inspect vector index options (continuing)", "error", err)
		return nil
	}
	records, err := res.Collect(ctx)
	if err != nil || len(records) == 0 {
		return nil
	}

	options, ok := records[0].Values[0].(map[string]any)
	if !ok {
		return nil
	}
	indexConfig, ok := options["indexConfig"].(map[string]any)
	if !ok {
		return nil
	}
	existing := 0
	switch v := indexConfig["vector.dimensions"].(type) {
	case int64:
		existing = int(v)
	case float64:
		existing = int(v)
	}
	if existing != 0 && existing != s.dim {
		return kgerr.Errorf(kgerr.KindConflictingSchema, "vector.initialize",
			"vector index %q has dimension %d, configured %d", indexName, existing, s.dim)
	}
	return nil
}

func (s *Neo4jIndex) AddEmbedding(ctx context.Context, nodeName string, vec []float32, userID string) error {
	if len(vec) != s.dim {
		return kgerr.Errorf(kgerr.KindDimensionMismatch, "vector.add_embedding",
			"vector for %q has %d dimensions, index has %d", nodeName, len(vec), s.dim)
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	matched, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (c:Concept {user_id: $user_id, name: $name})
CALL db.create.setNodeVectorProperty(c, 'embedding', $vec)
RETURN count(c) AS matched
`, map[string]any{"user_id": userID, "name": nodeName, "vec": vec})
		if err != nil {
			return int64(0), err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return int64(0), err
		}
		return record.Values[0].(int64), nil
	})
	if err != nil {
		return fmt.Errorf("vector.add_embedding: %w", err)
	}
	if matched.(int64) == 0 {
		return kgerr.Errorf(kgerr.KindNodeAbsent, "vector.add_embedding",
			"no node %q for user", nodeName)
	}
	return nil
}

func (s *Neo4jIndex) SearchSimilar(ctx context.Context, vec []float32, userID string, k int) ([]domain.SimilarityHit, error) {
	k = ClampTopK(k)
	if k == 0 {
		return []domain.SimilarityHit{}, nil
	}
	if len(vec) != s.dim {
		return nil, kgerr.Errorf(kgerr.KindDimensionMismatch, "vector.search_similar",
			"query vector has %d dimensions, index has %d", len(vec), s.dim)
	}

	fetchK := k * overFetchFactor
	if fetchK < 20 {
		fetchK = 20
	}

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
CALL db.index.vector.queryNodes($index, $fetch_k, $vec)
YIELD node, score
WHERE node:Concept AND node.user_id = $user_id
RETURN node.name AS name, score
ORDER BY score DESC, name ASC
LIMIT $k
`, map[string]any{
			"index":   indexName,
			"fetch_k": fetchK,
			"vec":     vec,
			"user_id": userID,
			"k":       k,
		})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		hits := make([]domain.SimilarityHit, 0, len(records))
		for _, record := range records {
			name, _ := record.Values[0].(string)
			score, _ := record.Values[1].(float64)
			hits = append(hits, domain.SimilarityHit{NodeName: name, Score: score})
		}
		return hits, nil
	})
	if err != nil {
		return nil, fmt.Errorf("vector.search_similar: %w", err)
	}
	return out.([]domain.SimilarityHit), nil
}

func (s *Neo4jIndex) DeleteUserVectors(ctx context.Context, userID string) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (c:Concept {user_id: $user_id})
REMOVE c.embedding
`, map[string]any{"user_id": userID})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("vector.delete_user_vectors: %w", err)
	}
	return nil
}

func (s *Neo4jIndex) DropIndex(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	stmt := fmt.Sprintf(`DROP INDEX %s IF EXISTS`, indexName)
	if res, err := session.Run(ctx, stmt, nil); err != nil {
		return fmt.Errorf("vector.drop_index: %w", err)
	} else if _, err := res.Consume(ctx); err != nil {
		return fmt.Errorf("vector.drop_index: %w", err)
	}
	return nil
}
