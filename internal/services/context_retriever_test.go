package services

import (
	"context"
	"strings"
	"testing"

	"github.com/yungbote/mindgraph-backend/internal/domain"
)

// buildChain stores a -> b -> c -> d with KNOWS edges.
func buildChain(t *testing.T, p *pipeline, userID string) {
	t.Helper()
	ctx := context.Background()
	nodes := []domain.Node{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}}
	if err := p.ops.AddNodes(ctx, nodes, userID); err != nil {
		t.Fatalf("AddNodes: %v", err)
	}
	rels := []domain.Relationship{
		{Source: "a", Target: "b", Relation: "KNOWS"},
		{Source: "b", Target: "c", Relation: "KNOWS"},
		{Source: "c", Target: "d", Relation: "KNOWS"},
	}
	if err := p.ops.AddRelationships(ctx, rels, userID); err != nil {
		t.Fatalf("AddRelationships: %v", err)
	}
}

func TestGraphContextHopBound(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	seedUser(t, p, "alice")
	buildChain(t, p, "alice")

	got, err := p.retriever.GetGraphContext(ctx, []string{"a"}, "alice", 2)
	if err != nil {
		t.Fatalf("GetGraphContext: %v", err)
	}
	// Two hops from a reach b and c; d sits beyond the bound.
	if !strings.Contains(got, "a -[KNOWS]-> b") {
		t.Fatalf("missing 1-hop edge in:\n%s", got)
	}
	if !strings.Contains(got, "b -[KNOWS]-> c") {
		t.Fatalf("missing 2-hop edge in:\n%s", got)
	}

	one, err := p.retriever.GetGraphContext(ctx, []string{"a"}, "alice", 1)
	if err != nil {
		t.Fatalf("GetGraphContext 1 hop: %v", err)
	}
	if strings.Contains(one, "b -[KNOWS]-> c") {
		t.Fatalf("1-hop expansion leaked a 2-hop edge:\n%s", one)
	}
}

func TestGraphContextZeroHopsSeedsOnly(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	seedUser(t, p, "alice")
	buildChain(t, p, "alice")

	got, err := p.retriever.GetGraphContext(ctx, []string{"a"}, "alice", 0)
	if err != nil {
		t.Fatalf("GetGraphContext 0 hops: %v", err)
	}
	if !strings.Contains(got, `Context around "a"`) {
		t.Fatalf("seed section missing:\n%s", got)
	}
	if strings.Contains(got, "-[") {
		t.Fatalf("0-hop expansion produced edges:\n%s", got)
	}
}

func TestGraphContextNegativeHopsUseDefault(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	seedUser(t, p, "alice")
	buildChain(t, p, "alice")

	got, err := p.retriever.GetGraphContext(ctx, []string{"a"}, "alice", -1)
	if err != nil {
		t.Fatalf("GetGraphContext -1 hops: %v", err)
	}
	if !strings.Contains(got, "b -[KNOWS]-> c") {
		t.Fatalf("negative hops should fall back to the default bound:\n%s", got)
	}
}

func TestGraphContextDeterministic(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	seedUser(t, p, "alice")
	buildChain(t, p, "alice")

	first, err := p.retriever.GetGraphContext(ctx, []string{"b", "a"}, "alice", 2)
	if err != nil {
		t.Fatalf("GetGraphContext: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := p.retriever.GetGraphContext(ctx, []string{"a", "b"}, "alice", 2)
		if err != nil {
			t.Fatalf("GetGraphContext run %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("rendering unstable:\n--- first ---\n%s\n--- again ---\n%s", first, again)
		}
	}
}

func TestGraphContextSkipsUnknownSeeds(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	seedUser(t, p, "alice")
	buildChain(t, p, "alice")

	got, err := p.retriever.GetGraphContext(ctx, []string{"nope", "a"}, "alice", 2)
	if err != nil {
		t.Fatalf("GetGraphContext: %v", err)
	}
	if strings.Contains(got, "nope") {
		t.Fatalf("unknown seed leaked into output:\n%s", got)
	}
	if !strings.Contains(got, `Context around "a"`) {
		t.Fatalf("known seed missing:\n%s", got)
	}
}

func TestGraphContextEmptyForNoSeeds(t *testing.T) {
	p := newPipeline(t)
	seedUser(t, p, "alice")

	got, err := p.retriever.GetGraphContext(context.Background(), nil, "alice", 2)
	if err != nil {
		t.Fatalf("GetGraphContext: %v", err)
	}
	if got != "" {
		t.Fatalf("context for no seeds = %q, want empty", got)
	}
}

func TestGetRichContextNamesQuery(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	seedUser(t, p, "alice")
	buildChain(t, p, "alice")

	got, err := p.retriever.GetRichContext(ctx, "a", "alice", 2, 2)
	if err != nil {
		t.Fatalf("GetRichContext: %v", err)
	}
	if !strings.Contains(got, `Knowledge graph context for "a"`) {
		t.Fatalf("header missing:\n%s", got)
	}
}

func TestGetRankedSubgraphs(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	seedUser(t, p, "alice")

	nodes := []domain.Node{{Name: "p"}, {Name: "q"}, {Name: "solo"}}
	if err := p.ops.AddNodes(ctx, nodes, "alice"); err != nil {
		t.Fatalf("AddNodes: %v", err)
	}
	if err := p.ops.AddRelationships(ctx, []domain.Relationship{
		{Source: "p", Target: "q", Relation: "KNOWS"},
	}, "alice"); err != nil {
		t.Fatalf("AddRelationships: %v", err)
	}

	subgraphs, err := p.retriever.GetRankedSubgraphs(ctx, "alice")
	if err != nil {
		t.Fatalf("GetRankedSubgraphs: %v", err)
	}
	if len(subgraphs) != 2 {
		t.Fatalf("subgraphs = %d, want 2", len(subgraphs))
	}
	if subgraphs[0].Size != 2 || subgraphs[1].Size != 1 {
		t.Fatalf("sizes = %d,%d, want 2,1", subgraphs[0].Size, subgraphs[1].Size)
	}

	text := FormatSubgraphsForLLM(subgraphs)
	if !strings.Contains(text, "p -[KNOWS]-> q") {
		t.Fatalf("formatted output missing edge:\n%s", text)
	}
	if !strings.Contains(text, "solo") {
		t.Fatalf("formatted output missing isolated node:\n%s", text)
	}
}
