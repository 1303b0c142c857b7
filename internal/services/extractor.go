package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/mindgraph-backend/internal/domain"
	"github.com/yungbote/mindgraph-backend/internal/kgerr"
	"github.com/yungbote/mindgraph-backend/internal/platform/logger"
	"github.com/yungbote/mindgraph-backend/internal/platform/openai"
)

// Extractor pulls typed nodes and labeled relationships out of free text,
// constrained by the rendered schema context.
type Extractor interface {
	GetNodes(ctx context.Context, text string, schemaContext string) ([]domain.Node, error)
	GetRelationships(ctx context.Context, nodes []domain.Node, schemaContext string, graphContext string) ([]domain.Relationship, error)
}

type openaiExtractor struct {
	log    *logger.Logger
	client openai.Client
}

func NewExtractor(log *logger.Logger, client openai.Client) (Extractor, error) {
	if log == nil {
		return nil, kgerr.Errorf(kgerr.KindInternal, "extractor.new", "logger required")
	}
	if client == nil {
		return nil, kgerr.Errorf(kgerr.KindInternal, "extractor.new", "openai client required")
	}
	return &openaiExtractor{
		log:    log.With("service", "Extractor"),
		client: client,
	}, nil
}

const nodeExtractionSystem = `You extract psychological concepts about a person from their writing.
Only use node types listed in the schemas provided. Node names are short
noun phrases (1-5 words). The perspective field captures how the person
relates to the concept, in their own framing. Skip anything the schemas
do not cover.`

const relationshipExtractionSystem = `You connect previously extracted concepts with labeled relationships.
Only use relationship labels listed in the schemas provided, and only
connect nodes from the given node list. Source and target must be exact
node names from the list. Do not invent nodes.`

var nodeExtractionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"nodes": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":        map[string]any{"type": "string"},
					"type":        map[string]any{"type": "string"},
					"perspective": map[string]any{"type": "string"},
				},
				"required":             []string{"name", "type", "perspective"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"nodes"},
	"additionalProperties": false,
}

var relationshipExtractionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"relationships": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"source":   map[string]any{"type": "string"},
					"target":   map[string]any{"type": "string"},
					"relation": map[string]any{"type": "string"},
				},
				"required":             []string{"source", "target", "relation"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"relationships"},
	"additionalProperties": false,
}

func (e *openaiExtractor) GetNodes(ctx context.Context, text string, schemaContext string) ([]domain.Node, error) {
	if strings.TrimSpace(schemaContext) == "" {
		return []domain.Node{}, nil
	}
	if strings.TrimSpace(text) == "" {
		return []domain.Node{}, nil
	}

	user := fmt.Sprintf("Schemas:\n%s\n\nText:\n%s", schemaContext, text)

	obj, err := e.client.GenerateJSON(ctx, nodeExtractionSystem, user, "node_extraction", nodeExtractionSchema)
	if err != nil {
		return nil, kgerr.E(kgerr.KindExtractFailed, "extractor.get_nodes", err)
	}

	rawNodes, _ := obj["nodes"].([]any)
	nodes := make([]domain.Node, 0, len(rawNodes))
	for _, raw := range rawNodes {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		node := domain.Node{
			Name:        strings.TrimSpace(stringField(item, "name")),
			Type:        strings.TrimSpace(stringField(item, "type")),
			Perspective: strings.TrimSpace(stringField(item, "perspective")),
		}
		if !domain.ValidNodeName(node.Name) {
			e.log.Warn("dropping extracted node with invalid name", "name", node.Name)
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (e *openaiExtractor) GetRelationships(ctx context.Context, nodes []domain.Node, schemaContext string, graphContext string) ([]domain.Relationship, error) {
	if strings.TrimSpace(schemaContext) == "" || len(nodes) == 0 {
		return []domain.Relationship{}, nil
	}

	var names strings.Builder
	for _, node := range nodes {
		names.WriteString("- ")
		names.WriteString(node.Name)
		if node.Type != "" {
			names.WriteString(" (")
			names.WriteString(node.Type)
			names.WriteString(")")
		}
		names.WriteString("\n")
	}

	user := fmt.Sprintf("Schemas:\n%s\n\nNodes:\n%s", schemaContext, names.String())
	if strings.TrimSpace(graphContext) != "" {
		user += fmt.Sprintf("\nExisting graph context:\n%s", graphContext)
	}

	obj, err := e.client.GenerateJSON(ctx, relationshipExtractionSystem, user, "relationship_extraction", relationshipExtractionSchema)
	if err != nil {
		return nil, kgerr.E(kgerr.KindExtractFailed, "extractor.get_relationships", err)
	}

	rawRels, _ := obj["relationships"].([]any)
	rels := make([]domain.Relationship, 0, len(rawRels))
	for _, raw := range rawRels {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		rel := domain.Relationship{
			Source:   strings.TrimSpace(stringField(item, "source")),
			Target:   strings.TrimSpace(stringField(item, "target")),
			Relation: strings.TrimSpace(strings.ToUpper(stringField(item, "relation"))),
		}
		if rel.Source == "" || rel.Target == "" {
			continue
		}
		if !domain.ValidRelationLabel(rel.Relation) {
			e.log.Warn("dropping extracted relationship with invalid label", "relation", rel.Relation)
			continue
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
