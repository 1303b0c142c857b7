package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/mindgraph-backend/internal/domain"
	"github.com/yungbote/mindgraph-backend/internal/graph"
	"github.com/yungbote/mindgraph-backend/internal/kgerr"
	"github.com/yungbote/mindgraph-backend/internal/platform/logger"
)

// SeedSchemas returns the default schemas installed for every new user.
func SeedSchemas() []domain.GraphSchema {
	return []domain.GraphSchema{
		{
			Name:        "Core Psychology",
			Description: "Concepts describing a person's inner life and everyday world.",
			Attributes: []string{
				"EMOTION", "TRAIT", "VALUE", "GOAL",
				"BELIEF", "PERSON", "PLACE", "ACTIVITY",
			},
			Relationships: []string{
				"FEELS", "VALUES", "PURSUES", "BELIEVES",
				"KNOWS", "ENJOYS", "AVOIDS", "STRUGGLES_WITH",
			},
			IsSeed: true,
		},
	}
}

// SchemaRegistry manages per-user extraction schemas and renders them into
// the deterministic text block the extractor prompts carry.
type SchemaRegistry struct {
	log   *logger.Logger
	store graph.SchemaStore
}

func NewSchemaRegistry(log *logger.Logger, store graph.SchemaStore) (*SchemaRegistry, error) {
	if log == nil {
		return nil, kgerr.Errorf(kgerr.KindInternal, "schema_registry.new", "logger required")
	}
	if store == nil {
		return nil, kgerr.Errorf(kgerr.KindInternal, "schema_registry.new", "schema store required")
	}
	return &SchemaRegistry{
		log:   log.With("service", "SchemaRegistry"),
		store: store,
	}, nil
}

func (r *SchemaRegistry) EnsureSeedSchemas(ctx context.Context, userID string) error {
	if !domain.ValidUserID(userID) {
		return kgerr.Errorf(kgerr.KindInvalidUserID, "schema_registry.ensure_seed", "invalid user id")
	}
	return r.store.EnsureSeedSchemas(ctx, SeedSchemas(), userID)
}

// GetAllSchemas lists the user's schemas, installing the seeds first when
// the user has none yet.
func (r *SchemaRegistry) GetAllSchemas(ctx context.Context, userID string) ([]domain.GraphSchema, error) {
	if !domain.ValidUserID(userID) {
		return nil, kgerr.Errorf(kgerr.KindInvalidUserID, "schema_registry.get_all", "invalid user id")
	}

	schemas, err := r.store.GetAllSchemas(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(schemas) > 0 {
		return schemas, nil
	}

	if err := r.store.EnsureSeedSchemas(ctx, SeedSchemas(), userID); err != nil {
		return nil, err
	}
	return r.store.GetAllSchemas(ctx, userID)
}

func (r *SchemaRegistry) StoreSchema(ctx context.Context, schema domain.GraphSchema, userID string) (string, error) {
	if !domain.ValidUserID(userID) {
		return "", kgerr.Errorf(kgerr.KindInvalidUserID, "schema_registry.store", "invalid user id")
	}
	if strings.TrimSpace(schema.Name) == "" {
		return "", kgerr.Errorf(kgerr.KindInternal, "schema_registry.store", "schema name required")
	}
	return r.store.StoreSchema(ctx, schema, userID)
}

// BuildSchemaContext renders the user's schemas into the prompt block the
// extractor consumes. Rendering is deterministic: schemas sorted by name,
// attributes and relationships in declaration order.
func (r *SchemaRegistry) BuildSchemaContext(ctx context.Context, userID string) (string, error) {
	schemas, err := r.GetAllSchemas(ctx, userID)
	if err != nil {
		return "", err
	}
	return RenderSchemaContext(schemas), nil
}

func RenderSchemaContext(schemas []domain.GraphSchema) string {
	if len(schemas) == 0 {
		return ""
	}

	sorted := make([]domain.GraphSchema, len(schemas))
	copy(sorted, schemas)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	for _, schema := range sorted {
		fmt.Fprintf(&b, "## Schema: %s\n", schema.Name)
		fmt.Fprintf(&b, "Description: %s\n\n", schema.Description)
		b.WriteString("### Attributes\n")
		for _, attr := range schema.Attributes {
			fmt.Fprintf(&b, "- %s\n", attr)
		}
		b.WriteString("\n### Relationships\n")
		for _, rel := range schema.Relationships {
			fmt.Fprintf(&b, "- %s\n", rel)
		}
		b.WriteString("\n---\n")
	}
	return b.String()
}
