package services

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/mindgraph-backend/internal/domain"
	"github.com/yungbote/mindgraph-backend/internal/graph"
	"github.com/yungbote/mindgraph-backend/internal/kgerr"
	"github.com/yungbote/mindgraph-backend/internal/platform/logger"
	"github.com/yungbote/mindgraph-backend/internal/vector"
)

const embedUpsertParallelism = 8

// GraphOps is the write/read facade over the graph and vector stores. All
// mutation paths run the same merge semantics; embedding upserts are
// best-effort per node so one provider hiccup does not lose a batch.
type GraphOps struct {
	log      *logger.Logger
	graph    graph.Store
	vectors  vector.Store
	embedder Embedder
}

func NewGraphOps(log *logger.Logger, g graph.Store, v vector.Store, e Embedder) (*GraphOps, error) {
	if log == nil {
		return nil, kgerr.Errorf(kgerr.KindInternal, "graph_ops.new", "logger required")
	}
	if g == nil || v == nil || e == nil {
		return nil, kgerr.Errorf(kgerr.KindInternal, "graph_ops.new", "graph store, vector store and embedder required")
	}
	return &GraphOps{
		log:      log.With("service", "GraphOps"),
		graph:    g,
		vectors:  v,
		embedder: e,
	}, nil
}

// AddNodes merges the nodes into the user's graph, then embeds every node
// name in one batch and upserts the vectors concurrently. Individual upsert
// failures are logged and skipped; the node stays queryable by graph walk
// and gets its vector re-added the next time it appears in a batch. A
// dimension mismatch is a configuration error and aborts.
func (o *GraphOps) AddNodes(ctx context.Context, nodes []domain.Node, userID string) error {
	if !domain.ValidUserID(userID) {
		return kgerr.Errorf(kgerr.KindInvalidUserID, "graph_ops.add_nodes", "invalid user id")
	}

	valid := make([]domain.Node, 0, len(nodes))
	for _, node := range nodes {
		if !domain.ValidNodeName(node.Name) {
			o.log.Warn("skipping node with invalid name", "name", node.Name)
			continue
		}
		valid = append(valid, node)
	}
	if len(valid) == 0 {
		return nil
	}

	if err := o.graph.CreateNodes(ctx, valid, userID); err != nil {
		return err
	}

	names := make([]string, len(valid))
	for i, node := range valid {
		names[i] = node.Name
	}
	vecs, err := o.embedder.Embed(ctx, names)
	if err != nil {
		if kgerr.IsKind(err, kgerr.KindDimensionMismatch) {
			return err
		}
		o.log.Error("embedding batch failed; nodes stored without vectors",
			"user_id", userID,
			"count", len(names),
			"error", err.Error(),
		)
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(embedUpsertParallelism)
	failures := make([]error, len(valid))
	for i := range valid {
		group.Go(func() error {
			err := o.vectors.AddEmbedding(groupCtx, valid[i].Name, vecs[i], userID)
			if err != nil && kgerr.IsKind(err, kgerr.KindDimensionMismatch) {
				return err
			}
			failures[i] = err
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	failed := 0
	for i, upsertErr := range failures {
		if upsertErr != nil {
			failed++
			o.log.Warn("embedding upsert failed for node",
				"user_id", userID,
				"node", valid[i].Name,
				"error", upsertErr.Error(),
			)
		}
	}
	if failed > 0 {
		o.log.Warn("embedding upserts incomplete", "user_id", userID, "failed", failed, "total", len(valid))
	}
	return nil
}

// AddRelationships merges edges on the 4-tuple identity. Edges with invalid
// relation labels are dropped with a warning; edges whose endpoints are
// missing are skipped by the store.
func (o *GraphOps) AddRelationships(ctx context.Context, rels []domain.Relationship, userID string) error {
	if !domain.ValidUserID(userID) {
		return kgerr.Errorf(kgerr.KindInvalidUserID, "graph_ops.add_relationships", "invalid user id")
	}

	valid := make([]domain.Relationship, 0, len(rels))
	for _, rel := range rels {
		if !domain.ValidRelationLabel(rel.Relation) {
			o.log.Warn("skipping relationship with invalid label", "relation", rel.Relation)
			continue
		}
		if rel.Source == "" || rel.Target == "" {
			continue
		}
		valid = append(valid, rel)
	}
	if len(valid) == 0 {
		return nil
	}
	return o.graph.CreateRelationships(ctx, valid, userID)
}

// UpdateGraph applies one extraction result: nodes first so the edges find
// their endpoints, then relationships.
func (o *GraphOps) UpdateGraph(ctx context.Context, update domain.GraphUpdate, userID string) error {
	if err := o.AddNodes(ctx, update.Nodes, userID); err != nil {
		return err
	}
	return o.AddRelationships(ctx, update.Relationships, userID)
}

func (o *GraphOps) GetNode(ctx context.Context, name, userID string) (*domain.Node, error) {
	if !domain.ValidUserID(userID) {
		return nil, kgerr.Errorf(kgerr.KindInvalidUserID, "graph_ops.get_node", "invalid user id")
	}
	return o.graph.GetNode(ctx, name, userID)
}

func (o *GraphOps) GetAllNodes(ctx context.Context, userID string) ([]domain.Node, error) {
	if !domain.ValidUserID(userID) {
		return nil, kgerr.Errorf(kgerr.KindInvalidUserID, "graph_ops.get_all_nodes", "invalid user id")
	}
	return o.graph.GetAllNodes(ctx, userID)
}

func (o *GraphOps) GetNodeRelationships(ctx context.Context, name, userID string) ([]domain.NodeRelationship, error) {
	if !domain.ValidUserID(userID) {
		return nil, kgerr.Errorf(kgerr.KindInvalidUserID, "graph_ops.get_node_relationships", "invalid user id")
	}
	return o.graph.GetNodeRelationships(ctx, name, userID)
}

func (o *GraphOps) GetAllRelationships(ctx context.Context, userID string) ([]domain.Relationship, error) {
	if !domain.ValidUserID(userID) {
		return nil, kgerr.Errorf(kgerr.KindInvalidUserID, "graph_ops.get_all_relationships", "invalid user id")
	}
	return o.graph.GetAllRelationships(ctx, userID)
}

func (o *GraphOps) CheckNodeExists(ctx context.Context, name, nodeType, userID string) (bool, error) {
	if !domain.ValidUserID(userID) {
		return false, kgerr.Errorf(kgerr.KindInvalidUserID, "graph_ops.check_node_exists", "invalid user id")
	}
	return o.graph.CheckNodeExists(ctx, name, nodeType, userID)
}

// TextSimilaritySearch embeds the query and searches the user's vectors.
func (o *GraphOps) TextSimilaritySearch(ctx context.Context, query, userID string, k int) (domain.SimilarityResult, error) {
	if !domain.ValidUserID(userID) {
		return domain.SimilarityResult{}, kgerr.Errorf(kgerr.KindInvalidUserID, "graph_ops.text_similarity_search", "invalid user id")
	}

	vecs, err := o.embedder.Embed(ctx, []string{query})
	if err != nil {
		return domain.SimilarityResult{}, err
	}
	return o.PerformSimilaritySearch(ctx, query, vecs[0], userID, k)
}

// PerformSimilaritySearch runs a pre-embedded query vector against the
// user's index. A user with no embedded nodes gets empty results, not an
// error.
func (o *GraphOps) PerformSimilaritySearch(ctx context.Context, query string, vec []float32, userID string, k int) (domain.SimilarityResult, error) {
	hits, err := o.vectors.SearchSimilar(ctx, vec, userID, k)
	if err != nil {
		return domain.SimilarityResult{}, err
	}
	if hits == nil {
		hits = []domain.SimilarityHit{}
	}
	return domain.SimilarityResult{Query: query, Results: hits}, nil
}

// CommunityDetection finds connected components of the user's graph and
// writes a community head per component, linked to its members. The head is
// the highest-degree member, ties broken by name, so repeated runs pick the
// same head and the write stays idempotent.
func (o *GraphOps) CommunityDetection(ctx context.Context, userID string) ([]domain.Subgraph, error) {
	if !domain.ValidUserID(userID) {
		return nil, kgerr.Errorf(kgerr.KindInvalidUserID, "graph_ops.community_detection", "invalid user id")
	}

	nodes, err := o.graph.GetAllNodes(ctx, userID)
	if err != nil {
		return nil, err
	}
	rels, err := o.graph.GetAllRelationships(ctx, userID)
	if err != nil {
		return nil, err
	}

	components := connectedComponents(nodes, rels)
	for i := range components {
		head := components[i].CentralNodes[0]
		members := make([]string, 0, len(components[i].Nodes))
		for _, name := range components[i].Nodes {
			if name != head {
				members = append(members, name)
			}
		}
		if err := o.graph.CreateCommunity(ctx, head, members, userID); err != nil {
			return nil, err
		}
	}
	return components, nil
}

// connectedComponents partitions the node set by undirected reachability.
// Components come back ordered by size descending, ties by smallest member
// name; within a component nodes are sorted by name and edges
// lexicographically.
func connectedComponents(nodes []domain.Node, rels []domain.Relationship) []domain.Subgraph {
	adjacency := make(map[string][]string, len(nodes))
	degree := make(map[string]int, len(nodes))
	for _, node := range nodes {
		if _, ok := adjacency[node.Name]; !ok {
			adjacency[node.Name] = nil
			degree[node.Name] = 0
		}
	}

	edgesByNode := make(map[string][]domain.Relationship)
	for _, rel := range rels {
		if _, ok := adjacency[rel.Source]; !ok {
			continue
		}
		if _, ok := adjacency[rel.Target]; !ok {
			continue
		}
		adjacency[rel.Source] = append(adjacency[rel.Source], rel.Target)
		adjacency[rel.Target] = append(adjacency[rel.Target], rel.Source)
		degree[rel.Source]++
		if rel.Target != rel.Source {
			degree[rel.Target]++
		}
		edgesByNode[rel.Source] = append(edgesByNode[rel.Source], rel)
	}

	names := make([]string, 0, len(adjacency))
	for name := range adjacency {
		names = append(names, name)
	}
	sort.Strings(names)

	visited := make(map[string]bool, len(names))
	var components []domain.Subgraph
	for _, start := range names {
		if visited[start] {
			continue
		}

		var member []string
		queue := []string{start}
		visited[start] = true
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			member = append(member, current)
			neighbors := append([]string(nil), adjacency[current]...)
			sort.Strings(neighbors)
			for _, next := range neighbors {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		sort.Strings(member)

		var edges []domain.Relationship
		for _, name := range member {
			edges = append(edges, edgesByNode[name]...)
		}
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].Source != edges[j].Source {
				return edges[i].Source < edges[j].Source
			}
			if edges[i].Relation != edges[j].Relation {
				return edges[i].Relation < edges[j].Relation
			}
			return edges[i].Target < edges[j].Target
		})

		central := append([]string(nil), member...)
		sort.Slice(central, func(i, j int) bool {
			if degree[central[i]] != degree[central[j]] {
				return degree[central[i]] > degree[central[j]]
			}
			return central[i] < central[j]
		})

		components = append(components, domain.Subgraph{
			Nodes:        member,
			Edges:        edges,
			Size:         len(member),
			CentralNodes: central,
		})
	}

	sort.SliceStable(components, func(i, j int) bool {
		if components[i].Size != components[j].Size {
			return components[i].Size > components[j].Size
		}
		return components[i].Nodes[0] < components[j].Nodes[0]
	})
	for i := range components {
		components[i].ID = i
	}
	return components
}
