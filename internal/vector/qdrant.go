package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/mindgraph-backend/internal/domain"
	"github.com/yungbote/mindgraph-backend/internal/kgerr"
	"github.com/yungbote/mindgraph-backend/internal/platform/logger"
)

const (
	payloadUserIDKey   = "user_id"
	payloadNodeNameKey = "node_name"
	maxErrorBodyBytes  = 1024
)

var pointIDNamespaceUUID = uuid.MustParse("7d3c54a6-9b11-4f2a-8c35-6f0d9a41e7b2")

// NodeChecker reports whether a node exists for (user_id, name). The Qdrant
// store has no view of the graph, so the graph store lends it one.
type NodeChecker func(ctx context.Context, name, userID string) (bool, error)

type QdrantConfig struct {
	URL        string
	Collection string
	Dim        int
}

func QdrantConfigFromEnv(dim int) (QdrantConfig, error) {
	cfg := QdrantConfig{
		URL:        strings.TrimSpace(os.Getenv("QDRANT_URL")),
		Collection: strings.TrimSpace(os.Getenv("QDRANT_COLLECTION")),
		Dim:        dim,
	}
	if cfg.Collection == "" {
		cfg.Collection = "mindgraph"
	}
	if cfg.URL == "" {
		return QdrantConfig{}, fmt.Errorf("QDRANT_URL is required")
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil || strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
		return QdrantConfig{}, fmt.Errorf("invalid QDRANT_URL=%q; expected absolute URL like http://qdrant:6333", cfg.URL)
	}
	if cfg.Dim <= 0 {
		return QdrantConfig{}, fmt.Errorf("positive vector dimension required")
	}
	return cfg, nil
}

// QdrantStore is the alternate Store implementation: one collection, vectors
// payload-tagged by user_id and filtered server-side on every query.
type QdrantStore struct {
	log     *logger.Logger
	cfg     QdrantConfig
	baseURL string
	http    *http.Client
	exists  NodeChecker
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

type qdrantSearchResultItem struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func NewQdrantStore(log *logger.Logger, cfg QdrantConfig, exists NodeChecker) (*QdrantStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.Dim <= 0 {
		return nil, fmt.Errorf("positive vector dimension required")
	}
	return &QdrantStore{
		log:     log.With("service", "QdrantVectorStore"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		exists:  exists,
	}, nil
}

func (s *QdrantStore) Dimension() int { return s.cfg.Dim }

func (s *QdrantStore) Initialize(ctx context.Context) error {
	req := map[string]any{
		"vectors": map[string]any{
			"size":     s.cfg.Dim,
			"distance": "Cosine",
		},
	}
	err := s.doJSON(ctx, http.MethodPut, s.collectionPath(""), req, nil)
	if err != nil && !isAlreadyExists(err) {
		return kgerr.E(kgerr.KindConnectFailed, "vector.initialize", err)
	}

	var result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	if err := s.doJSON(ctx, http.MethodGet, s.collectionPath(""), nil, &result); err != nil {
		return kgerr.E(kgerr.KindConnectFailed, "vector.initialize", err)
	}
	size := result.Config.Params.Vectors.Size
	if size != 0 && size != s.cfg.Dim {
		return kgerr.Errorf(kgerr.KindConflictingSchema, "vector.initialize",
			"collection %q vector size mismatch: expected=%d actual=%d", s.cfg.Collection, s.cfg.Dim, size)
	}

	s.log.Info("Qdrant vector store ready",
		"url", s.baseURL,
		"collection", s.cfg.Collection,
		"dim", s.cfg.Dim,
	)
	return nil
}

func (s *QdrantStore) AddEmbedding(ctx context.Context, nodeName string, vec []float32, userID string) error {
	if len(vec) != s.cfg.Dim {
		return kgerr.Errorf(kgerr.KindDimensionMismatch, "vector.add_embedding",
			"vector for %q has %d dimensions, index has %d", nodeName, len(vec), s.cfg.Dim)
	}
	if s.exists != nil {
		ok, err := s.exists(ctx, nodeName, userID)
		if err != nil {
			return fmt.Errorf("vector.add_embedding: node check: %w", err)
		}
		if !ok {
			return kgerr.Errorf(kgerr.KindNodeAbsent, "vector.add_embedding",
				"no node %q for user", nodeName)
		}
	}

	req := map[string]any{
		"points": []map[string]any{{
			"id":     s.pointID(userID, nodeName),
			"vector": vec,
			"payload": map[string]any{
				payloadUserIDKey:   userID,
				payloadNodeNameKey: nodeName,
			},
		}},
	}
	if err := s.doJSON(ctx, http.MethodPut, s.collectionPath("/points?wait=true"), req, nil); err != nil {
		return fmt.Errorf("vector.add_embedding: %w", err)
	}
	return nil
}

func (s *QdrantStore) SearchSimilar(ctx context.Context, vec []float32, userID string, k int) ([]domain.SimilarityHit, error) {
	k = ClampTopK(k)
	if k == 0 {
		return []domain.SimilarityHit{}, nil
	}
	if len(vec) != s.cfg.Dim {
		return nil, kgerr.Errorf(kgerr.KindDimensionMismatch, "vector.search_similar",
			"query vector has %d dimensions, index has %d", len(vec), s.cfg.Dim)
	}

	req := map[string]any{
		"vector":       vec,
		"limit":        k,
		"with_payload": true,
		"with_vector":  false,
		"filter": map[string]any{
			"must": []any{
				map[string]any{
					"key":   payloadUserIDKey,
					"match": map[string]any{"value": userID},
				},
			},
		},
	}
	var rawResults []qdrantSearchResultItem
	if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/search"), req, &rawResults); err != nil {
		return nil, fmt.Errorf("vector.search_similar: %w", err)
	}

	hits := make([]domain.SimilarityHit, 0, len(rawResults))
	for _, item := range rawResults {
		name, _ := item.Payload[payloadNodeNameKey].(string)
		if strings.TrimSpace(name) == "" {
			continue
		}
		hits = append(hits, domain.SimilarityHit{NodeName: name, Score: item.Score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].NodeName < hits[j].NodeName
		}
		return hits[i].Score > hits[j].Score
	})
	return hits, nil
}

func (s *QdrantStore) DeleteUserVectors(ctx context.Context, userID string) error {
	req := map[string]any{
		"filter": map[string]any{
			"must": []any{
				map[string]any{
					"key":   payloadUserIDKey,
					"match": map[string]any{"value": userID},
				},
			},
		},
	}
	if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/delete?wait=true"), req, nil); err != nil {
		return fmt.Errorf("vector.delete_user_vectors: %w", err)
	}
	return nil
}

func (s *QdrantStore) DropIndex(ctx context.Context) error {
	if err := s.doJSON(ctx, http.MethodDelete, s.collectionPath(""), nil, nil); err != nil {
		return fmt.Errorf("vector.drop_index: %w", err)
	}
	return nil
}

func (s *QdrantStore) pointID(userID, nodeName string) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(userID+"|"+nodeName)).String()
}

func (s *QdrantStore) collectionPath(suffix string) string {
	path := "/collections/" + s.cfg.Collection
	if strings.TrimSpace(suffix) == "" {
		return path
	}
	return path + suffix
}

func (s *QdrantStore) doJSON(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyQdrantCallError(err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if readErr != nil {
		return fmt.Errorf("read response: %w", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw))
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode qdrant envelope: %w", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return errors.New(statusErr)
	}

	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode qdrant result: %w", err)
	}
	return nil
}

func classifyQdrantCallError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return kgerr.E(kgerr.KindTimeout, "vector.qdrant", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return kgerr.E(kgerr.KindTimeout, "vector.qdrant", err)
	}
	return fmt.Errorf("qdrant request failed: %w", err)
}

func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "status=409")
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") || strings.EqualFold(statusString, "acknowledged") || strings.EqualFold(statusString, "completed") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}

	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil {
		if strings.TrimSpace(statusObject.Error) != "" {
			return strings.TrimSpace(statusObject.Error)
		}
	}

	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}
