package services

import (
	"context"
	"strings"
	"testing"

	"github.com/yungbote/mindgraph-backend/internal/domain"
)

func TestRenderSchemaContextDeterministic(t *testing.T) {
	schemas := []domain.GraphSchema{
		{
			Name:          "Work",
			Description:   "Professional life.",
			Attributes:    []string{"ROLE", "SKILL"},
			Relationships: []string{"WORKS_ON"},
		},
		{
			Name:          "Core Psychology",
			Description:   "Inner life.",
			Attributes:    []string{"EMOTION", "TRAIT"},
			Relationships: []string{"FEELS"},
		},
	}

	got := RenderSchemaContext(schemas)
	want := "## Schema: Core Psychology\n" +
		"Description: Inner life.\n\n" +
		"### Attributes\n- EMOTION\n- TRAIT\n\n" +
		"### Relationships\n- FEELS\n\n---\n" +
		"## Schema: Work\n" +
		"Description: Professional life.\n\n" +
		"### Attributes\n- ROLE\n- SKILL\n\n" +
		"### Relationships\n- WORKS_ON\n\n---\n"
	if got != want {
		t.Fatalf("RenderSchemaContext:\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}

	// Input order must not matter.
	reversed := []domain.GraphSchema{schemas[1], schemas[0]}
	if RenderSchemaContext(reversed) != "## Schema: Core Psychology\n"+
		"Description: Inner life.\n\n"+
		"### Attributes\n- EMOTION\n- TRAIT\n\n"+
		"### Relationships\n- FEELS\n\n---\n"+
		"## Schema: Work\n"+
		"Description: Professional life.\n\n"+
		"### Attributes\n- ROLE\n- SKILL\n\n"+
		"### Relationships\n- WORKS_ON\n\n---\n" {
		t.Fatal("rendering depends on input order")
	}
}

func TestRenderSchemaContextEmpty(t *testing.T) {
	if got := RenderSchemaContext(nil); got != "" {
		t.Fatalf("RenderSchemaContext(nil) = %q, want empty", got)
	}
}

func TestSeedSchemasInstalledOnFirstAccess(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	p.graph.users["alice"] = true

	schemas, err := p.registry.GetAllSchemas(ctx, "alice")
	if err != nil {
		t.Fatalf("GetAllSchemas: %v", err)
	}
	if len(schemas) != 1 || schemas[0].Name != "Core Psychology" {
		t.Fatalf("schemas = %+v, want the seed", schemas)
	}
	if !schemas[0].IsSeed {
		t.Fatal("seed schema not flagged is_seed")
	}
}

func TestSchemaContextGuidesExtraction(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	p.graph.users["alice"] = true

	context1, err := p.registry.BuildSchemaContext(ctx, "alice")
	if err != nil {
		t.Fatalf("BuildSchemaContext: %v", err)
	}
	for _, want := range []string{"EMOTION", "STRUGGLES_WITH", "## Schema: Core Psychology"} {
		if !strings.Contains(context1, want) {
			t.Fatalf("schema context missing %q:\n%s", want, context1)
		}
	}

	if _, err := p.registry.StoreSchema(ctx, domain.GraphSchema{
		Name:          "Fitness",
		Description:   "Training life.",
		Attributes:    []string{"EXERCISE"},
		Relationships: []string{"TRAINS_FOR"},
	}, "alice"); err != nil {
		t.Fatalf("StoreSchema: %v", err)
	}

	context2, err := p.registry.BuildSchemaContext(ctx, "alice")
	if err != nil {
		t.Fatalf("BuildSchemaContext after store: %v", err)
	}
	if !strings.Contains(context2, "TRAINS_FOR") {
		t.Fatalf("stored schema absent from context:\n%s", context2)
	}
}
