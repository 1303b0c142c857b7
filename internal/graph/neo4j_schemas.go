package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/mindgraph-backend/internal/domain"
)

// Schema persistence shares the concept store's driver. Schemas are plain
// (:Schema) nodes keyed by (user_id, name); attributes and relationships are
// stored as string lists in declaration order.

func (s *Neo4jStore) GetAllSchemas(ctx context.Context, userID string) ([]domain.GraphSchema, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (sc:Schema {user_id: $user_id})
RETURN sc.id, sc.name, sc.description, sc.attributes, sc.relationships, sc.is_seed, sc.created_at
ORDER BY sc.name
`, map[string]any{"user_id": userID})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		schemas := make([]domain.GraphSchema, 0, len(records))
		for _, record := range records {
			schemas = append(schemas, schemaFromValues(record.Values))
		}
		return schemas, nil
	})
	if err != nil {
		return nil, wrapNeo4jErr("graph.get_all_schemas", err)
	}
	return out.([]domain.GraphSchema), nil
}

func (s *Neo4jStore) StoreSchema(ctx context.Context, schema domain.GraphSchema, userID string) (string, error) {
	id := schema.ID
	if id == "" {
		id = uuid.NewString()
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (sc:Schema {user_id: $user_id, name: $name})
ON CREATE SET sc.id = $id, sc.created_at = $now
SET sc.description = $description,
    sc.attributes = $attributes,
    sc.relationships = $relationships,
    sc.is_seed = $is_seed
`, map[string]any{
			"user_id":       userID,
			"name":          schema.Name,
			"id":            id,
			"description":   schema.Description,
			"attributes":    schema.Attributes,
			"relationships": schema.Relationships,
			"is_seed":       schema.IsSeed,
			"now":           nowString(),
		})
		if err != nil {
			return nil, err
		}
		return nil, consume(ctx, res)
	})
	if err != nil {
		return "", wrapNeo4jErr("graph.store_schema", err)
	}
	return id, nil
}

func (s *Neo4jStore) EnsureSeedSchemas(ctx context.Context, schemas []domain.GraphSchema, userID string) error {
	if len(schemas) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(schemas))
	for _, schema := range schemas {
		rows = append(rows, map[string]any{
			"id":            uuid.NewString(),
			"name":          schema.Name,
			"description":   schema.Description,
			"attributes":    schema.Attributes,
			"relationships": schema.Relationships,
		})
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
UNWIND $schemas AS schema
MERGE (sc:Schema {user_id: $user_id, name: schema.name})
ON CREATE SET sc.id = schema.id,
              sc.description = schema.description,
              sc.attributes = schema.attributes,
              sc.relationships = schema.relationships,
              sc.is_seed = true,
              sc.created_at = $now
`, map[string]any{"schemas": rows, "user_id": userID, "now": nowString()})
		if err != nil {
			return nil, err
		}
		return nil, consume(ctx, res)
	})
	if err != nil {
		return wrapNeo4jErr("graph.ensure_seed_schemas", err)
	}
	return nil
}

func schemaFromValues(values []any) domain.GraphSchema {
	schema := domain.GraphSchema{}
	if s, ok := values[0].(string); ok {
		schema.ID = s
	}
	if s, ok := values[1].(string); ok {
		schema.Name = s
	}
	if s, ok := values[2].(string); ok {
		schema.Description = s
	}
	schema.Attributes = stringList(values[3])
	schema.Relationships = stringList(values[4])
	if b, ok := values[5].(bool); ok {
		schema.IsSeed = b
	}
	if s, ok := values[6].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			schema.CreatedAt = t
		}
	}
	return schema
}

func stringList(value any) []string {
	raw, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
