package services

import (
	"context"
	"testing"

	"github.com/yungbote/mindgraph-backend/internal/domain"
	"github.com/yungbote/mindgraph-backend/internal/kgerr"
)

func TestCreateUserReportsExisting(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	existed, err := p.users.CreateUser(ctx, "alice")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if existed {
		t.Fatal("first create reported existing")
	}

	existed, err = p.users.CreateUser(ctx, "alice")
	if err != nil {
		t.Fatalf("second CreateUser: %v", err)
	}
	if !existed {
		t.Fatal("second create did not report existing")
	}
}

func TestCreateUserInstallsSeedSchemas(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	if _, err := p.users.CreateUser(ctx, "alice"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	schemas, err := p.graph.GetAllSchemas(ctx, "alice")
	if err != nil {
		t.Fatalf("GetAllSchemas: %v", err)
	}
	if len(schemas) != 1 || schemas[0].Name != "Core Psychology" {
		t.Fatalf("schemas = %+v, want the seed", schemas)
	}
}

func TestCreateUserInvalidID(t *testing.T) {
	p := newPipeline(t)
	_, err := p.users.CreateUser(context.Background(), "not ok")
	if !kgerr.IsKind(err, kgerr.KindInvalidUserID) {
		t.Fatalf("err = %v, want kind %s", err, kgerr.KindInvalidUserID)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	seedUser(t, p, "alice")
	seedUser(t, p, "bob")

	if err := p.ops.AddNodes(ctx, []domain.Node{{Name: "climbing"}, {Name: "calm"}}, "alice"); err != nil {
		t.Fatalf("AddNodes alice: %v", err)
	}
	if err := p.ops.AddNodes(ctx, []domain.Node{{Name: "painting"}}, "bob"); err != nil {
		t.Fatalf("AddNodes bob: %v", err)
	}

	if err := p.users.DeleteUser(ctx, "alice"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	if exists, _ := p.graph.UserExists(ctx, "alice"); exists {
		t.Fatal("user root survived delete")
	}
	if nodes, _ := p.graph.GetAllNodes(ctx, "alice"); len(nodes) != 0 {
		t.Fatalf("alice nodes survived delete: %d", len(nodes))
	}
	if got := p.vectors.count("alice"); got != 0 {
		t.Fatalf("alice vectors survived delete: %d", got)
	}

	// Bob untouched.
	if nodes, _ := p.graph.GetAllNodes(ctx, "bob"); len(nodes) != 1 {
		t.Fatalf("bob nodes = %d, want 1", len(nodes))
	}
	if got := p.vectors.count("bob"); got != 1 {
		t.Fatalf("bob vectors = %d, want 1", got)
	}
}

func TestDeleteUserAbsent(t *testing.T) {
	p := newPipeline(t)
	err := p.users.DeleteUser(context.Background(), "ghost")
	if !kgerr.IsKind(err, kgerr.KindUserAbsent) {
		t.Fatalf("err = %v, want kind %s", err, kgerr.KindUserAbsent)
	}
}
