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

const (
	// DefaultMaxHops bounds BFS expansion from each seed node.
	DefaultMaxHops = 2

	// maxNodesPerSeed caps a single seed's expansion; overflow is truncated
	// deterministically by (hop, name).
	maxNodesPerSeed = 512
)

// ContextRetriever expands seed nodes into their graph neighborhood and
// renders the result as stable text for LLM prompts.
type ContextRetriever struct {
	log   *logger.Logger
	graph graph.Store
	ops   *GraphOps
}

func NewContextRetriever(log *logger.Logger, g graph.Store, ops *GraphOps) (*ContextRetriever, error) {
	if log == nil {
		return nil, kgerr.Errorf(kgerr.KindInternal, "context_retriever.new", "logger required")
	}
	if g == nil || ops == nil {
		return nil, kgerr.Errorf(kgerr.KindInternal, "context_retriever.new", "graph store and graph ops required")
	}
	return &ContextRetriever{
		log:   log.With("service", "ContextRetriever"),
		graph: g,
		ops:   ops,
	}, nil
}

type expansion struct {
	seed  string
	nodes []string
	edges []domain.Relationship
}

// GetGraphContext BFS-expands each seed up to maxHops and renders one
// section per seed. maxHops of zero returns the seeds with no edges;
// negative means use the default. Seeds missing from the graph are skipped.
// Output is deterministic for a given graph state.
func (r *ContextRetriever) GetGraphContext(ctx context.Context, seeds []string, userID string, maxHops int) (string, error) {
	if !domain.ValidUserID(userID) {
		return "", kgerr.Errorf(kgerr.KindInvalidUserID, "context_retriever.get_graph_context", "invalid user id")
	}
	if maxHops < 0 {
		maxHops = DefaultMaxHops
	}

	unique := make([]string, 0, len(seeds))
	seen := make(map[string]bool, len(seeds))
	for _, seed := range seeds {
		seed = strings.TrimSpace(seed)
		if seed == "" || seen[seed] {
			continue
		}
		seen[seed] = true
		unique = append(unique, seed)
	}
	sort.Strings(unique)

	var expansions []expansion
	for _, seed := range unique {
		node, err := r.graph.GetNode(ctx, seed, userID)
		if err != nil {
			return "", err
		}
		if node == nil {
			r.log.Debug("seed not in graph, skipping", "seed", seed)
			continue
		}
		exp, err := r.expand(ctx, seed, userID, maxHops)
		if err != nil {
			return "", err
		}
		expansions = append(expansions, exp)
	}

	return renderExpansions(expansions), nil
}

// expand runs the bounded BFS for one seed. Edges are collected when either
// endpoint has been discovered; each undirected pair contributes each
// distinct labeled edge once.
func (r *ContextRetriever) expand(ctx context.Context, seed, userID string, maxHops int) (expansion, error) {
	type frontierEntry struct {
		name string
		hop  int
	}

	discovered := map[string]int{seed: 0}
	edgeSeen := make(map[string]bool)
	var edges []domain.Relationship

	frontier := []frontierEntry{{name: seed, hop: 0}}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		if current.hop >= maxHops {
			continue
		}

		rels, err := r.graph.GetNodeRelationships(ctx, current.name, userID)
		if err != nil {
			return expansion{}, err
		}

		next := make([]string, 0, len(rels))
		for _, rel := range rels {
			edge := rel.AsRelationship()
			key := edge.Source + "\x00" + edge.Relation + "\x00" + edge.Target
			if !edgeSeen[key] {
				edgeSeen[key] = true
				edges = append(edges, edge)
			}

			neighbor := edge.Target
			if rel.Direction == domain.DirectionIncoming {
				neighbor = edge.Source
			}
			if _, ok := discovered[neighbor]; !ok {
				discovered[neighbor] = current.hop + 1
				next = append(next, neighbor)
			}
		}

		sort.Strings(next)
		for _, name := range next {
			frontier = append(frontier, frontierEntry{name: name, hop: current.hop + 1})
		}
	}

	nodes := truncateByHop(discovered, maxNodesPerSeed)
	kept := make(map[string]bool, len(nodes))
	for _, name := range nodes {
		kept[name] = true
	}

	filtered := edges[:0]
	for _, edge := range edges {
		if kept[edge.Source] || kept[edge.Target] {
			filtered = append(filtered, edge)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Source != filtered[j].Source {
			return filtered[i].Source < filtered[j].Source
		}
		if filtered[i].Relation != filtered[j].Relation {
			return filtered[i].Relation < filtered[j].Relation
		}
		return filtered[i].Target < filtered[j].Target
	})

	return expansion{seed: seed, nodes: nodes, edges: filtered}, nil
}

// truncateByHop keeps at most limit nodes, preferring lower hop counts and
// breaking ties by name.
func truncateByHop(discovered map[string]int, limit int) []string {
	names := make([]string, 0, len(discovered))
	for name := range discovered {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if discovered[names[i]] != discovered[names[j]] {
			return discovered[names[i]] < discovered[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > limit {
		names = names[:limit]
	}
	sort.Strings(names)
	return names
}

func renderExpansions(expansions []expansion) string {
	if len(expansions) == 0 {
		return ""
	}

	var b strings.Builder
	for i, exp := range expansions {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Context around %q:\n", exp.seed)
		if len(exp.edges) == 0 {
			b.WriteString("(no relationships)\n")
			continue
		}
		for _, edge := range exp.edges {
			fmt.Fprintf(&b, "%s -[%s]-> %s\n", edge.Source, edge.Relation, edge.Target)
		}
	}
	return b.String()
}

// GetRichContext answers "what does the graph know about this query": the
// query is embedded, the top-k similar nodes become seeds, and their
// expansion is rendered under a header naming the query.
func (r *ContextRetriever) GetRichContext(ctx context.Context, query, userID string, topK, maxHops int) (string, error) {
	if !domain.ValidUserID(userID) {
		return "", kgerr.Errorf(kgerr.KindInvalidUserID, "context_retriever.get_rich_context", "invalid user id")
	}
	if topK <= 0 {
		topK = 5
	}

	result, err := r.ops.TextSimilaritySearch(ctx, query, userID, topK)
	if err != nil {
		return "", err
	}
	if len(result.Results) == 0 {
		return "", nil
	}

	seeds := make([]string, 0, len(result.Results))
	for _, hit := range result.Results {
		seeds = append(seeds, hit.NodeName)
	}

	body, err := r.GetGraphContext(ctx, seeds, userID, maxHops)
	if err != nil {
		return "", err
	}
	if body == "" {
		return "", nil
	}
	return fmt.Sprintf("Knowledge graph context for %q:\n\n%s", query, body), nil
}

// GetRankedSubgraphs returns the user's connected components ranked by size
// descending, ties by smallest member name.
func (r *ContextRetriever) GetRankedSubgraphs(ctx context.Context, userID string) ([]domain.Subgraph, error) {
	if !domain.ValidUserID(userID) {
		return nil, kgerr.Errorf(kgerr.KindInvalidUserID, "context_retriever.get_ranked_subgraphs", "invalid user id")
	}

	nodes, err := r.graph.GetAllNodes(ctx, userID)
	if err != nil {
		return nil, err
	}
	rels, err := r.graph.GetAllRelationships(ctx, userID)
	if err != nil {
		return nil, err
	}
	return connectedComponents(nodes, rels), nil
}

// FormatSubgraphsForLLM renders ranked subgraphs in a stable text form.
func FormatSubgraphsForLLM(subgraphs []domain.Subgraph) string {
	if len(subgraphs) == 0 {
		return ""
	}

	var b strings.Builder
	for i, sg := range subgraphs {
		if i > 0 {
			b.WriteString("\n")
		}
		central := ""
		if len(sg.CentralNodes) > 0 {
			central = sg.CentralNodes[0]
		}
		fmt.Fprintf(&b, "Subgraph %d (%d nodes, central: %s):\n", sg.ID+1, sg.Size, central)
		for _, edge := range sg.Edges {
			fmt.Fprintf(&b, "%s -[%s]-> %s\n", edge.Source, edge.Relation, edge.Target)
		}
		if len(sg.Edges) == 0 {
			for _, name := range sg.Nodes {
				fmt.Fprintf(&b, "%s\n", name)
			}
		}
	}
	return b.String()
}
