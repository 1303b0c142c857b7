package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/yungbote/mindgraph-backend/internal/domain"
	"github.com/yungbote/mindgraph-backend/internal/kgerr"
	"github.com/yungbote/mindgraph-backend/internal/platform/logger"
)

func testLogger() *logger.Logger {
	log, err := logger.New("development")
	if err != nil {
		panic(err)
	}
	return log
}

// fakeGraphStore implements graph.Store and graph.SchemaStore in memory with
// the same merge semantics the Neo4j store has.
type fakeGraphStore struct {
	mu          sync.Mutex
	users       map[string]bool
	nodes       map[string]map[string]domain.Node         // user -> name -> node
	rels        map[string]map[string]domain.Relationship // user -> 4-tuple key -> rel
	schemas     map[string][]domain.GraphSchema
	communities map[string]map[string][]string // user -> head -> members
}

func newFakeGraphStore() *fakeGraphStore {
	return &fakeGraphStore{
		users:       map[string]bool{},
		nodes:       map[string]map[string]domain.Node{},
		rels:        map[string]map[string]domain.Relationship{},
		schemas:     map[string][]domain.GraphSchema{},
		communities: map[string]map[string][]string{},
	}
}

func (f *fakeGraphStore) Initialize(ctx context.Context) error { return nil }

func (f *fakeGraphStore) CreateUser(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID] = true
	return nil
}

func (f *fakeGraphStore) UserExists(ctx context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[userID], nil
}

func (f *fakeGraphStore) DeleteUser(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, userID)
	delete(f.nodes, userID)
	delete(f.rels, userID)
	delete(f.schemas, userID)
	delete(f.communities, userID)
	return nil
}

func (f *fakeGraphStore) CreateNodes(ctx context.Context, nodes []domain.Node, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.users[userID] {
		return kgerr.Errorf(kgerr.KindUserAbsent, "fake.create_nodes", "no user")
	}
	if f.nodes[userID] == nil {
		f.nodes[userID] = map[string]domain.Node{}
	}
	for _, node := range nodes {
		existing, ok := f.nodes[userID][node.Name]
		if !ok {
			f.nodes[userID][node.Name] = node
			continue
		}
		if node.Type != "" {
			existing.Type = node.Type
		}
		if node.Perspective != "" {
			existing.Perspective = node.Perspective
		}
		if len(node.Properties) > 0 {
			existing.Properties = node.Properties
		}
		f.nodes[userID][node.Name] = existing
	}
	return nil
}

func (f *fakeGraphStore) GetNode(ctx context.Context, name, userID string) (*domain.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.nodes[userID][name]
	if !ok {
		return nil, nil
	}
	copied := node
	return &copied, nil
}

func (f *fakeGraphStore) GetAllNodes(ctx context.Context, userID string) ([]domain.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Node, 0, len(f.nodes[userID]))
	for _, node := range f.nodes[userID] {
		out = append(out, node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeGraphStore) CheckNodeExists(ctx context.Context, name, nodeType, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.nodes[userID][name]
	if !ok {
		return false, nil
	}
	if nodeType != "" && node.Type != nodeType {
		return false, nil
	}
	return true, nil
}

func relKey(r domain.Relationship) string {
	return r.Source + "\x00" + r.Relation + "\x00" + r.Target
}

func (f *fakeGraphStore) CreateRelationships(ctx context.Context, rels []domain.Relationship, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rels[userID] == nil {
		f.rels[userID] = map[string]domain.Relationship{}
	}
	for _, rel := range rels {
		if _, ok := f.nodes[userID][rel.Source]; !ok {
			continue
		}
		if _, ok := f.nodes[userID][rel.Target]; !ok {
			continue
		}
		f.rels[userID][relKey(rel)] = rel
	}
	return nil
}

func (f *fakeGraphStore) GetNodeRelationships(ctx context.Context, name, userID string) ([]domain.NodeRelationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.NodeRelationship
	for _, rel := range f.rels[userID] {
		if rel.Source == name {
			out = append(out, domain.NodeRelationship{
				Source: rel.Source, Target: rel.Target, Relation: rel.Relation,
				Direction: domain.DirectionOutgoing,
			})
		} else if rel.Target == name {
			out = append(out, domain.NodeRelationship{
				Source: rel.Source, Target: rel.Target, Relation: rel.Relation,
				Direction: domain.DirectionIncoming,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		if out[i].Relation != out[j].Relation {
			return out[i].Relation < out[j].Relation
		}
		return out[i].Target < out[j].Target
	})
	return out, nil
}

func (f *fakeGraphStore) GetAllRelationships(ctx context.Context, userID string) ([]domain.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Relationship, 0, len(f.rels[userID]))
	for _, rel := range f.rels[userID] {
		out = append(out, rel)
	}
	sort.Slice(out, func(i, j int) bool { return relKey(out[i]) < relKey(out[j]) })
	return out, nil
}

func (f *fakeGraphStore) CreateCommunity(ctx context.Context, headName string, members []string, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.communities[userID] == nil {
		f.communities[userID] = map[string][]string{}
	}
	f.communities[userID][headName] = append([]string(nil), members...)
	return nil
}

func (f *fakeGraphStore) CleanGraph(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = map[string]bool{}
	f.nodes = map[string]map[string]domain.Node{}
	f.rels = map[string]map[string]domain.Relationship{}
	f.schemas = map[string][]domain.GraphSchema{}
	f.communities = map[string]map[string][]string{}
	return nil
}

func (f *fakeGraphStore) GetAllSchemas(ctx context.Context, userID string) ([]domain.GraphSchema, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]domain.GraphSchema(nil), f.schemas[userID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeGraphStore) StoreSchema(ctx context.Context, schema domain.GraphSchema, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if schema.ID == "" {
		schema.ID = fmt.Sprintf("schema-%d", len(f.schemas[userID])+1)
	}
	for i, existing := range f.schemas[userID] {
		if existing.Name == schema.Name {
			schema.ID = existing.ID
			f.schemas[userID][i] = schema
			return schema.ID, nil
		}
	}
	f.schemas[userID] = append(f.schemas[userID], schema)
	return schema.ID, nil
}

func (f *fakeGraphStore) EnsureSeedSchemas(ctx context.Context, schemas []domain.GraphSchema, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
outer:
	for _, schema := range schemas {
		for _, existing := range f.schemas[userID] {
			if existing.Name == schema.Name {
				continue outer
			}
		}
		schema.IsSeed = true
		schema.ID = fmt.Sprintf("seed-%s", schema.Name)
		f.schemas[userID] = append(f.schemas[userID], schema)
	}
	return nil
}

// fakeVectorStore keeps vectors in memory and serves cosine kNN.
type fakeVectorStore struct {
	mu      sync.Mutex
	dim     int
	vectors map[string]map[string][]float32 // user -> node -> vec
	failFor map[string]bool                 // node names whose upsert fails
}

func newFakeVectorStore(dim int) *fakeVectorStore {
	return &fakeVectorStore{
		dim:     dim,
		vectors: map[string]map[string][]float32{},
		failFor: map[string]bool{},
	}
}

func (f *fakeVectorStore) Initialize(ctx context.Context) error { return nil }
func (f *fakeVectorStore) Dimension() int                       { return f.dim }

func (f *fakeVectorStore) AddEmbedding(ctx context.Context, nodeName string, vec []float32, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(vec) != f.dim {
		return kgerr.Errorf(kgerr.KindDimensionMismatch, "fake.add_embedding",
			"got %d want %d", len(vec), f.dim)
	}
	if f.failFor[nodeName] {
		return kgerr.Errorf(kgerr.KindInternal, "fake.add_embedding", "injected failure")
	}
	if f.vectors[userID] == nil {
		f.vectors[userID] = map[string][]float32{}
	}
	f.vectors[userID][nodeName] = append([]float32(nil), vec...)
	return nil
}

func (f *fakeVectorStore) SearchSimilar(ctx context.Context, vec []float32, userID string, k int) ([]domain.SimilarityHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if k <= 0 {
		return []domain.SimilarityHit{}, nil
	}
	hits := make([]domain.SimilarityHit, 0, len(f.vectors[userID]))
	for name, stored := range f.vectors[userID] {
		hits = append(hits, domain.SimilarityHit{NodeName: name, Score: cosine(vec, stored)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].NodeName < hits[j].NodeName
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (f *fakeVectorStore) DeleteUserVectors(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vectors, userID)
	return nil
}

func (f *fakeVectorStore) DropIndex(ctx context.Context) error { return nil }

func (f *fakeVectorStore) count(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.vectors[userID])
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// fakeEmbedder maps each text to a deterministic unit vector; identical texts
// land on identical vectors.
type fakeEmbedder struct {
	mu    sync.Mutex
	dim   int
	calls int
	fail  bool
}

func newFakeEmbedder(dim int) *fakeEmbedder { return &fakeEmbedder{dim: dim} }

func (f *fakeEmbedder) Dimension() int { return f.dim }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return nil, kgerr.Errorf(kgerr.KindEmbedFailed, "fake.embed", "injected failure")
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, f.dim)
		var h uint32 = 2166136261
		for _, r := range text {
			h ^= uint32(r)
			h *= 16777619
		}
		for d := 0; d < f.dim; d++ {
			h ^= uint32(d + 1)
			h *= 16777619
			vec[d] = float32(h%1000)/1000 + 0.001
		}
		out[i] = vec
	}
	return out, nil
}

// fakeExtractor replays scripted outputs.
type fakeExtractor struct {
	mu        sync.Mutex
	nodes     []domain.Node
	rels      []domain.Relationship
	nodeCalls int
	relCalls  int
	err       error
}

func (f *fakeExtractor) GetNodes(ctx context.Context, text string, schemaContext string) ([]domain.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodeCalls++
	if f.err != nil {
		return nil, f.err
	}
	if schemaContext == "" {
		return []domain.Node{}, nil
	}
	return append([]domain.Node(nil), f.nodes...), nil
}

func (f *fakeExtractor) GetRelationships(ctx context.Context, nodes []domain.Node, schemaContext string, graphContext string) ([]domain.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relCalls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Relationship(nil), f.rels...), nil
}

// fakeGenerator records the context it was handed.
type fakeGenerator struct {
	mu          sync.Mutex
	lastQuery   string
	lastContext string
	answer      string
}

func (f *fakeGenerator) GenerateText(ctx context.Context, query string, graphContext string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = query
	f.lastContext = graphContext
	if f.answer == "" {
		return "generated answer", nil
	}
	return f.answer, nil
}

func (f *fakeGenerator) GenerateStructured(ctx context.Context, query string, graphContext string, schemaName string, schema map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = query
	f.lastContext = graphContext
	return map[string]any{"answer": "structured"}, nil
}

// pipeline bundles a fully wired service stack over the fakes.
type pipeline struct {
	graph       *fakeGraphStore
	vectors     *fakeVectorStore
	embedder    *fakeEmbedder
	extractor   *fakeExtractor
	generator   *fakeGenerator
	registry    *SchemaRegistry
	ops         *GraphOps
	retriever   *ContextRetriever
	constructor *Constructor
	rag         *RAG
	users       *UserService
}

func newPipeline(t interface{ Fatalf(string, ...any) }) *pipeline {
	log := testLogger()
	g := newFakeGraphStore()
	v := newFakeVectorStore(3)
	e := newFakeEmbedder(3)
	x := &fakeExtractor{}
	gen := &fakeGenerator{}

	registry, err := NewSchemaRegistry(log, g)
	if err != nil {
		t.Fatalf("NewSchemaRegistry: %v", err)
	}
	ops, err := NewGraphOps(log, g, v, e)
	if err != nil {
		t.Fatalf("NewGraphOps: %v", err)
	}
	retriever, err := NewContextRetriever(log, g, ops)
	if err != nil {
		t.Fatalf("NewContextRetriever: %v", err)
	}
	constructor, err := NewConstructor(log, g, registry, x, retriever, ops)
	if err != nil {
		t.Fatalf("NewConstructor: %v", err)
	}
	rag, err := NewRAG(log, retriever, ops, gen)
	if err != nil {
		t.Fatalf("NewRAG: %v", err)
	}
	users, err := NewUserService(log, g, v, registry)
	if err != nil {
		t.Fatalf("NewUserService: %v", err)
	}

	return &pipeline{
		graph:       g,
		vectors:     v,
		embedder:    e,
		extractor:   x,
		generator:   gen,
		registry:    registry,
		ops:         ops,
		retriever:   retriever,
		constructor: constructor,
		rag:         rag,
		users:       users,
	}
}
