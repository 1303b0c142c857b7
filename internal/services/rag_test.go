package services

import (
	"context"
	"strings"
	"testing"

	"github.com/yungbote/mindgraph-backend/internal/domain"
	"github.com/yungbote/mindgraph-backend/internal/kgerr"
)

func TestRAGQueryHandsContextToGenerator(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	seedUser(t, p, "alice")
	buildChain(t, p, "alice")

	answer, err := p.rag.Query(ctx, "a", "alice")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if answer != "generated answer" {
		t.Fatalf("answer = %q", answer)
	}
	if p.generator.lastQuery != "a" {
		t.Fatalf("generator saw query %q, want a", p.generator.lastQuery)
	}
	if !strings.Contains(p.generator.lastContext, "-[KNOWS]->") {
		t.Fatalf("generator context missing graph edges:\n%s", p.generator.lastContext)
	}
}

func TestRAGQueryEmptyGraphStillAnswers(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	seedUser(t, p, "alice")

	answer, err := p.rag.Query(ctx, "anything known?", "alice")
	if err != nil {
		t.Fatalf("Query on empty graph: %v", err)
	}
	if answer == "" {
		t.Fatal("empty answer")
	}
	if p.generator.lastContext != "" {
		t.Fatalf("expected empty context, got:\n%s", p.generator.lastContext)
	}
}

func TestRAGQueryVectorOnly(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	seedUser(t, p, "alice")
	if err := p.ops.AddNodes(ctx, []domain.Node{{Name: "swimming"}, {Name: "cooking"}}, "alice"); err != nil {
		t.Fatalf("AddNodes: %v", err)
	}

	names, err := p.rag.QueryVectorOnly(ctx, "swimming", "alice", 1)
	if err != nil {
		t.Fatalf("QueryVectorOnly: %v", err)
	}
	if len(names) != 1 || names[0] != "swimming" {
		t.Fatalf("names = %v, want [swimming]", names)
	}
}

func TestRAGEmptyQueryRejected(t *testing.T) {
	p := newPipeline(t)
	_, err := p.rag.Query(context.Background(), "  ", "alice")
	if !kgerr.IsKind(err, kgerr.KindEmptyContent) {
		t.Fatalf("err = %v, want kind %s", err, kgerr.KindEmptyContent)
	}
}

func TestRAGAskStructured(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	seedUser(t, p, "alice")

	out, err := p.rag.AskStructured(ctx, "who am i", "alice", "profile", map[string]any{"type": "object"})
	if err != nil {
		t.Fatalf("AskStructured: %v", err)
	}
	if out["answer"] != "structured" {
		t.Fatalf("out = %v", out)
	}
}
