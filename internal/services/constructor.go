package services

import (
	"context"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/yungbote/mindgraph-backend/internal/domain"
	"github.com/yungbote/mindgraph-backend/internal/graph"
	"github.com/yungbote/mindgraph-backend/internal/kgerr"
	"github.com/yungbote/mindgraph-backend/internal/platform/envutil"
	"github.com/yungbote/mindgraph-backend/internal/platform/logger"
)

const userLockCacheSize = 10000

// userLock is a one-slot semaphore. Channel-based so acquisition can race a
// timer and the request context.
type userLock struct {
	ch chan struct{}
}

func newUserLock() *userLock {
	l := &userLock{ch: make(chan struct{}, 1)}
	l.ch <- struct{}{}
	return l
}

func (l *userLock) acquire(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-l.ch:
		return nil
	case <-timer.C:
		return kgerr.Errorf(kgerr.KindIngestBusy, "constructor.lock",
			"another ingestion for this user is in progress")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *userLock) release() {
	l.ch <- struct{}{}
}

// Constructor is the ingestion pipeline: preprocess the input, extract nodes
// under the user's schemas, pull graph context around them, extract
// relationships, then merge everything through GraphOps. One ingestion per
// user at a time; concurrent attempts wait up to the lock timeout and then
// fail busy. Failed runs leave whatever they already merged (merge semantics
// make re-ingestion converge; there are no compensating deletes).
type Constructor struct {
	log         *logger.Logger
	graph       graph.Store
	registry    *SchemaRegistry
	extractor   Extractor
	retriever   *ContextRetriever
	ops         *GraphOps
	locks       *lru.Cache[string, *userLock]
	lockTimeout time.Duration
}

func NewConstructor(
	log *logger.Logger,
	g graph.Store,
	registry *SchemaRegistry,
	extractor Extractor,
	retriever *ContextRetriever,
	ops *GraphOps,
) (*Constructor, error) {
	if log == nil {
		return nil, kgerr.Errorf(kgerr.KindInternal, "constructor.new", "logger required")
	}
	if g == nil || registry == nil || extractor == nil || retriever == nil || ops == nil {
		return nil, kgerr.Errorf(kgerr.KindInternal, "constructor.new", "all pipeline collaborators required")
	}

	locks, err := lru.New[string, *userLock](userLockCacheSize)
	if err != nil {
		return nil, kgerr.E(kgerr.KindInternal, "constructor.new", err)
	}

	return &Constructor{
		log:         log.With("service", "Constructor"),
		graph:       g,
		registry:    registry,
		extractor:   extractor,
		retriever:   retriever,
		ops:         ops,
		locks:       locks,
		lockTimeout: envutil.Dur("INGEST_LOCK_TIMEOUT", 60*time.Second),
	}, nil
}

// Preprocess flattens an input into the single text block the extractor
// sees: title, content, then metadata as sorted "k: v" lines.
func Preprocess(input domain.UnstructuredInput) (string, error) {
	var parts []string
	if t := strings.TrimSpace(input.Title); t != "" {
		parts = append(parts, t)
	}
	if c := strings.TrimSpace(input.Content); c != "" {
		parts = append(parts, c)
	}

	keys := make([]string, 0, len(input.Metadata))
	for k := range input.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		line := strings.TrimSpace(k + ": " + input.Metadata[k])
		if line != ":" && line != "" {
			parts = append(parts, k+": "+input.Metadata[k])
		}
	}

	text := strings.TrimSpace(strings.Join(parts, "\n"))
	if text == "" {
		return "", kgerr.Errorf(kgerr.KindEmptyContent, "constructor.preprocess",
			"Content cannot be empty")
	}
	return text, nil
}

// Ingest runs the full pipeline and returns what was merged.
func (c *Constructor) Ingest(ctx context.Context, input domain.UnstructuredInput, userID string) (domain.GraphUpdate, error) {
	if !domain.ValidUserID(userID) {
		return domain.GraphUpdate{}, kgerr.Errorf(kgerr.KindInvalidUserID, "constructor.ingest", "invalid user id")
	}

	text, err := Preprocess(input)
	if err != nil {
		return domain.GraphUpdate{}, err
	}

	exists, err := c.graph.UserExists(ctx, userID)
	if err != nil {
		return domain.GraphUpdate{}, err
	}
	if !exists {
		return domain.GraphUpdate{}, kgerr.Errorf(kgerr.KindUserAbsent, "constructor.ingest", "user does not exist")
	}

	lock := c.lockFor(userID)
	if err := lock.acquire(ctx, c.lockTimeout); err != nil {
		return domain.GraphUpdate{}, err
	}
	defer lock.release()

	started := time.Now()

	schemaContext, err := c.registry.BuildSchemaContext(ctx, userID)
	if err != nil {
		return domain.GraphUpdate{}, err
	}

	nodes, err := c.extractor.GetNodes(ctx, text, schemaContext)
	if err != nil {
		return domain.GraphUpdate{}, err
	}
	if len(nodes) == 0 {
		c.log.Info("ingestion extracted no nodes", "user_id", userID)
		return domain.GraphUpdate{Nodes: []domain.Node{}, Relationships: []domain.Relationship{}}, nil
	}

	seeds := make([]string, 0, len(nodes))
	for _, node := range nodes {
		seeds = append(seeds, node.Name)
	}
	graphContext, err := c.retriever.GetGraphContext(ctx, seeds, userID, DefaultMaxHops)
	if err != nil {
		return domain.GraphUpdate{}, err
	}

	rels, err := c.extractor.GetRelationships(ctx, nodes, schemaContext, graphContext)
	if err != nil {
		return domain.GraphUpdate{}, err
	}
	rels = filterToNodeSet(rels, nodes)

	update := domain.GraphUpdate{Nodes: nodes, Relationships: rels}
	if err := c.ops.UpdateGraph(ctx, update, userID); err != nil {
		return domain.GraphUpdate{}, err
	}

	c.log.Info("ingestion complete",
		"user_id", userID,
		"nodes", len(nodes),
		"relationships", len(rels),
		"took", time.Since(started).String(),
	)
	return update, nil
}

func (c *Constructor) lockFor(userID string) *userLock {
	if lock, ok := c.locks.Get(userID); ok {
		return lock
	}
	lock := newUserLock()
	if existing, ok, _ := c.locks.PeekOrAdd(userID, lock); ok {
		return existing
	}
	return lock
}

// filterToNodeSet drops relationships whose endpoints the extractor did not
// produce in this run. Anchoring edges to the extracted set keeps a
// hallucinated endpoint from creating a dangling edge.
func filterToNodeSet(rels []domain.Relationship, nodes []domain.Node) []domain.Relationship {
	names := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		names[node.Name] = true
	}
	kept := make([]domain.Relationship, 0, len(rels))
	for _, rel := range rels {
		if names[rel.Source] && names[rel.Target] {
			kept = append(kept, rel)
		}
	}
	return kept
}
