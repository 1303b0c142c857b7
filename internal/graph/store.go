// Package graph defines the typed node/edge storage contract and its Neo4j
// reference implementation. Every operation is scoped by user_id inside the
// query itself; nothing is post-filtered client-side.
package graph

import (
	"context"

	"github.com/yungbote/mindgraph-backend/internal/domain"
)

type Store interface {
	// Initialize verifies reachability (bounded retry) and installs
	// constraints and indexes. Idempotent.
	Initialize(ctx context.Context) error

	// CreateUser merges the user root; succeeds if the user already exists.
	CreateUser(ctx context.Context, userID string) error
	UserExists(ctx context.Context, userID string) (bool, error)
	// DeleteUser detach-deletes every node carrying the user_id, then the
	// user root, in one write transaction.
	DeleteUser(ctx context.Context, userID string) error

	// CreateNodes merges on (user_id, name). Returns a user_absent error when
	// the user root does not exist.
	CreateNodes(ctx context.Context, nodes []domain.Node, userID string) error
	GetNode(ctx context.Context, name, userID string) (*domain.Node, error)
	GetAllNodes(ctx context.Context, userID string) ([]domain.Node, error)
	CheckNodeExists(ctx context.Context, name, nodeType, userID string) (bool, error)

	// CreateRelationships merges on (user_id, source, target, relation).
	// Edges whose endpoints do not exist are silently skipped.
	CreateRelationships(ctx context.Context, rels []domain.Relationship, userID string) error
	GetNodeRelationships(ctx context.Context, name, userID string) ([]domain.NodeRelationship, error)
	GetAllRelationships(ctx context.Context, userID string) ([]domain.Relationship, error)

	// CreateCommunity writes a community head node and its HAS_SUBHEADER /
	// BELONGS_TO links. Idempotent by head name.
	CreateCommunity(ctx context.Context, headName string, members []string, userID string) error

	// CleanGraph wipes everything. Tests only.
	CleanGraph(ctx context.Context) error
}

// SchemaStore persists per-user GraphSchema definitions.
type SchemaStore interface {
	GetAllSchemas(ctx context.Context, userID string) ([]domain.GraphSchema, error)
	StoreSchema(ctx context.Context, schema domain.GraphSchema, userID string) (string, error)
	// EnsureSeedSchemas installs the given schemas if absent, merged by
	// (user_id, name). Idempotent.
	EnsureSeedSchemas(ctx context.Context, schemas []domain.GraphSchema, userID string) error
}
