// Package domain holds the typed records shared across the knowledge graph
// service: nodes, relationships, schemas and the inputs/outputs of the
// ingestion and retrieval pipelines.
package domain

import "time"

const (
	// DefaultEmbeddingDim is the vector dimension unless overridden at startup.
	DefaultEmbeddingDim = 1536

	MaxNodeNameLen    = 256
	MaxPropertyKeys   = 32
	MaxSimilarityTopK = 200
)

// Node is a concept extracted from text, unique per (user_id, name).
type Node struct {
	Name        string            `json:"name"`
	Type        string            `json:"type,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
	Perspective string            `json:"perspective,omitempty"`
}

// Relationship is a directed labeled edge between two nodes of one user.
// Identity is the (user_id, source, target, relation) 4-tuple.
type Relationship struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
}

// EdgeDirection tags how an edge relates to the node it was fetched for.
type EdgeDirection string

const (
	DirectionOutgoing EdgeDirection = "outgoing"
	DirectionIncoming EdgeDirection = "incoming"
)

// NodeRelationship is an edge as returned by GetNodeRelationships,
// direction-tagged relative to the queried node.
type NodeRelationship struct {
	Source    string        `json:"source"`
	Target    string        `json:"target"`
	Relation  string        `json:"relation"`
	Direction EdgeDirection `json:"direction"`
}

func (r NodeRelationship) AsRelationship() Relationship {
	return Relationship{Source: r.Source, Target: r.Target, Relation: r.Relation}
}

// GraphSchema constrains extraction: allowed node-type labels and relation
// labels, with a free-text description the extractor sees verbatim.
type GraphSchema struct {
	ID            string    `json:"id,omitempty"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Attributes    []string  `json:"attributes"`
	Relationships []string  `json:"relationships"`
	IsSeed        bool      `json:"is_seed"`
	CreatedAt     time.Time `json:"created_at"`
}

// UnstructuredInput is a document or conversation snippet handed to ingestion.
type UnstructuredInput struct {
	Title    string            `json:"title,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// GraphUpdate is the merged output of one extraction run.
type GraphUpdate struct {
	Nodes         []Node         `json:"nodes"`
	Relationships []Relationship `json:"relationships"`
}

type SimilarityHit struct {
	NodeName string  `json:"node_name"`
	Score    float64 `json:"score"`
}

type SimilarityResult struct {
	Query   string          `json:"query"`
	Results []SimilarityHit `json:"results"`
}

// Subgraph is one connected component of a user's graph.
type Subgraph struct {
	ID           int            `json:"id"`
	Nodes        []string       `json:"nodes"`
	Edges        []Relationship `json:"edges"`
	Size         int            `json:"size"`
	CentralNodes []string       `json:"central_nodes"`
}
