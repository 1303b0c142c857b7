package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/mindgraph-backend/internal/domain"
	"github.com/yungbote/mindgraph-backend/internal/kgerr"
	"github.com/yungbote/mindgraph-backend/internal/platform/logger"
	"github.com/yungbote/mindgraph-backend/internal/platform/neo4jdb"
)

// Neo4jStore implements Store and SchemaStore over a shared driver.
//
// Layout: concepts are (:Concept {user_id, name, type, properties_json,
// perspective, embedding}), user roots are (:User {user_id}), schemas are
// (:Schema {user_id, id, name, ...}) and community heads are (:Community).
// Relationship labels come from extraction and are validated against an
// identifier whitelist before being interpolated into MERGE patterns.
type Neo4jStore struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewNeo4jStore(client *neo4jdb.Client, log *logger.Logger) (*Neo4jStore, error) {
	if client == nil {
		return nil, fmt.Errorf("neo4j client required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Neo4jStore{
		client: client,
		log:    log.With("service", "Neo4jStore"),
	}, nil
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.client.Database,
	})
}

func (s *Neo4jStore) Initialize(ctx context.Context) error {
	if err := s.client.VerifyConnectivity(ctx); err != nil {
		return err
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	// Best-effort; may fail for restricted users.
	statements := []string{
		`CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.user_id IS UNIQUE`,
		`CREATE CONSTRAINT concept_user_name_unique IF NOT EXISTS FOR (c:Concept) REQUIRE (c.user_id, c.name) IS UNIQUE`,
		`CREATE CONSTRAINT schema_user_name_unique IF NOT EXISTS FOR (sc:Schema) REQUIRE (sc.user_id, sc.name) IS UNIQUE`,
		`CREATE INDEX concept_user_idx IF NOT EXISTS FOR (c:Concept) ON (c.user_id)`,
	}
	for _, stmt := range statements {
		if res, err := session.Run(ctx, stmt, nil); err != nil {
			s.log.Warn("neo4j schema init failed (continuing)", "error", err)
		} else {
			_, _ = res.Consume(ctx)
		}
	}

	s.log.Info("Neo4j graph store ready")
	return nil
}

func (s *Neo4jStore) CreateUser(ctx context.Context, userID string) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (u:User {user_id: $user_id})
ON CREATE SET u.created_at = $now
`, map[string]any{"user_id": userID, "now": nowString()})
		if err != nil {
			return nil, err
		}
		return nil, consume(ctx, res)
	})
	if err != nil {
		return wrapNeo4jErr("graph.create_user", err)
	}
	return nil
}

func (s *Neo4jStore) UserExists(ctx context.Context, userID string) (bool, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	exists, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (u:User {user_id: $user_id})
RETURN count(u) > 0 AS exists
`, map[string]any{"user_id": userID})
		if err != nil {
			return false, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return false, err
		}
		return record.Values[0].(bool), nil
	})
	if err != nil {
		return false, wrapNeo4jErr("graph.user_exists", err)
	}
	return exists.(bool), nil
}

func (s *Neo4jStore) DeleteUser(ctx context.Context, userID string) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	// Two phases in a single write transaction: owned nodes first, then the
	// user root. All-or-abort from the caller's view.
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		phases := []string{
			`MATCH (c:Concept {user_id: $user_id}) DETACH DELETE c`,
			`MATCH (h:Community {user_id: $user_id}) DETACH DELETE h`,
			`MATCH (sc:Schema {user_id: $user_id}) DETACH DELETE sc`,
			`MATCH (u:User {user_id: $user_id}) DETACH DELETE u`,
		}
		for _, phase := range phases {
			res, err := tx.Run(ctx, phase, map[string]any{"user_id": userID})
			if err != nil {
				return nil, err
			}
			if err := consume(ctx, res); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return wrapNeo4jErr("graph.delete_user", err)
	}
	return nil
}

func (s *Neo4jStore) CreateNodes(ctx context.Context, nodes []domain.Node, userID string) error {
	if len(nodes) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		if !domain.ValidNodeName(n.Name) {
			s.log.Warn("skipping node with invalid name", "user_id", userID)
			continue
		}
		rows = append(rows, map[string]any{
			"name":            n.Name,
			"type":            n.Type,
			"properties_json": encodeProperties(n.Properties),
			"perspective":     n.Perspective,
		})
	}
	if len(rows) == 0 {
		return nil
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (u:User {user_id: $user_id})
RETURN count(u) > 0 AS exists
`, map[string]any{"user_id": userID})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		if !record.Values[0].(bool) {
			return nil, kgerr.Errorf(kgerr.KindUserAbsent, "graph.create_nodes", "user %q does not exist", userID)
		}

		res, err = tx.Run(ctx, `
UNWIND $nodes AS n
MERGE (c:Concept {user_id: $user_id, name: n.name})
ON CREATE SET c.created_at = $now
SET c.updated_at = $now,
    c.type = CASE WHEN n.type = '' THEN coalesce(c.type, '') ELSE n.type END,
    c.perspective = CASE WHEN n.perspective = '' THEN coalesce(c.perspective, '') ELSE n.perspective END,
    c.properties_json = CASE WHEN n.properties_json = '' THEN coalesce(c.properties_json, '') ELSE n.properties_json END
`, map[string]any{"nodes": rows, "user_id": userID, "now": nowString()})
		if err != nil {
			return nil, err
		}
		return nil, consume(ctx, res)
	})
	if err != nil {
		return wrapNeo4jErr("graph.create_nodes", err)
	}
	return nil
}

func (s *Neo4jStore) GetNode(ctx context.Context, name, userID string) (*domain.Node, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (c:Concept {user_id: $user_id, name: $name})
RETURN c.name, c.type, c.properties_json, c.perspective
`, map[string]any{"user_id": userID, "name": name})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return (*domain.Node)(nil), nil
		}
		node := nodeFromValues(records[0].Values)
		return &node, nil
	})
	if err != nil {
		return nil, wrapNeo4jErr("graph.get_node", err)
	}
	return out.(*domain.Node), nil
}

func (s *Neo4jStore) GetAllNodes(ctx context.Context, userID string) ([]domain.Node, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (c:Concept {user_id: $user_id})
RETURN c.name, c.type, c.properties_json, c.perspective
ORDER BY c.name
`, map[string]any{"user_id": userID})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		nodes := make([]domain.Node, 0, len(records))
		for _, record := range records {
			nodes = append(nodes, nodeFromValues(record.Values))
		}
		return nodes, nil
	})
	if err != nil {
		return nil, wrapNeo4jErr("graph.get_all_nodes", err)
	}
	return out.([]domain.Node), nil
}

func (s *Neo4jStore) CheckNodeExists(ctx context.Context, name, nodeType, userID string) (bool, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := `
MATCH (c:Concept {user_id: $user_id, name: $name})
RETURN count(c) > 0 AS exists
`
	params := map[string]any{"user_id": userID, "name": name}
	if nodeType != "" {
		query = `
MATCH (c:Concept {user_id: $user_id, name: $name})
WHERE c.type = $type
RETURN count(c) > 0 AS exists
`
		params["type"] = nodeType
	}

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return false, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return false, err
		}
		return record.Values[0].(bool), nil
	})
	if err != nil {
		return false, wrapNeo4jErr("graph.check_node_exists", err)
	}
	return out.(bool), nil
}

func (s *Neo4jStore) CreateRelationships(ctx context.Context, rels []domain.Relationship, userID string) error {
	if len(rels) == 0 {
		return nil
	}

	// Relation labels cannot be parameterized in Cypher, so edges are grouped
	// by validated label and merged one UNWIND batch per label.
	byLabel := make(map[string][]map[string]any)
	for _, r := range rels {
		if !domain.ValidRelationLabel(r.Relation) {
			s.log.Warn("dropping relationship with invalid label", "relation", r.Relation, "user_id", userID)
			continue
		}
		if !domain.ValidNodeName(r.Source) || !domain.ValidNodeName(r.Target) {
			continue
		}
		byLabel[r.Relation] = append(byLabel[r.Relation], map[string]any{
			"source": r.Source,
			"target": r.Target,
		})
	}
	if len(byLabel) == 0 {
		return nil
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for label, rows := range byLabel {
			// MATCH on both endpoints silently skips edges whose endpoints are
			// missing, keeping the graph referentially consistent.
			query := fmt.Sprintf(`
UNWIND $rels AS r
MATCH (a:Concept {user_id: $user_id, name: r.source})
MATCH (b:Concept {user_id: $user_id, name: r.target})
MERGE (a)-[e:%s]->(b)
ON CREATE SET e.created_at = $now
`, label)
			res, err := tx.Run(ctx, query, map[string]any{
				"rels":    rows,
				"user_id": userID,
				"now":     nowString(),
			})
			if err != nil {
				return nil, err
			}
			if err := consume(ctx, res); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return wrapNeo4jErr("graph.create_relationships", err)
	}
	return nil
}

func (s *Neo4jStore) GetNodeRelationships(ctx context.Context, name, userID string) ([]domain.NodeRelationship, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (n:Concept {user_id: $user_id, name: $name})-[r]-(m:Concept)
WHERE m.user_id = $user_id
RETURN startNode(r).name AS source, type(r) AS relation, endNode(r).name AS target
ORDER BY source, relation, target
`, map[string]any{"user_id": userID, "name": name})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		edges := make([]domain.NodeRelationship, 0, len(records))
		for _, record := range records {
			source := record.Values[0].(string)
			relation := record.Values[1].(string)
			target := record.Values[2].(string)
			direction := domain.DirectionOutgoing
			if source != name {
				direction = domain.DirectionIncoming
			}
			edges = append(edges, domain.NodeRelationship{
				Source:    source,
				Target:    target,
				Relation:  relation,
				Direction: direction,
			})
		}
		return edges, nil
	})
	if err != nil {
		return nil, wrapNeo4jErr("graph.get_node_relationships", err)
	}
	return out.([]domain.NodeRelationship), nil
}

func (s *Neo4jStore) GetAllRelationships(ctx context.Context, userID string) ([]domain.Relationship, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (a:Concept {user_id: $user_id})-[r]->(b:Concept)
WHERE b.user_id = $user_id
RETURN a.name AS source, type(r) AS relation, b.name AS target
ORDER BY source, relation, target
`, map[string]any{"user_id": userID})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		rels := make([]domain.Relationship, 0, len(records))
		for _, record := range records {
			rels = append(rels, domain.Relationship{
				Source:   record.Values[0].(string),
				Relation: record.Values[1].(string),
				Target:   record.Values[2].(string),
			})
		}
		return rels, nil
	})
	if err != nil {
		return nil, wrapNeo4jErr("graph.get_all_relationships", err)
	}
	return out.([]domain.Relationship), nil
}

func (s *Neo4jStore) CreateCommunity(ctx context.Context, headName string, members []string, userID string) error {
	if headName == "" || len(members) == 0 {
		return nil
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (h:Community {user_id: $user_id, name: $head})
ON CREATE SET h.created_at = $now
WITH h
UNWIND $members AS member
MATCH (c:Concept {user_id: $user_id, name: member})
MERGE (h)-[:HAS_SUBHEADER]->(c)
MERGE (c)-[:BELONGS_TO]->(h)
`, map[string]any{
			"user_id": userID,
			"head":    headName,
			"members": members,
			"now":     nowString(),
		})
		if err != nil {
			return nil, err
		}
		return nil, consume(ctx, res)
	})
	if err != nil {
		return wrapNeo4jErr("graph.create_community", err)
	}
	return nil
}

func (s *Neo4jStore) CleanGraph(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n) DETACH DELETE n`, nil)
		if err != nil {
			return nil, err
		}
		return nil, consume(ctx, res)
	})
	if err != nil {
		return wrapNeo4jErr("graph.clean_graph", err)
	}
	return nil
}

// ---- helpers ----

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func consume(ctx context.Context, res neo4j.ResultWithContext) error {
	_, err := res.Consume(ctx)
	return err
}

func encodeProperties(props map[string]string) string {
	if len(props) == 0 {
		return ""
	}
	if len(props) > domain.MaxPropertyKeys {
		trimmed := make(map[string]string, domain.MaxPropertyKeys)
		count := 0
		for k, v := range props {
			if count == domain.MaxPropertyKeys {
				break
			}
			trimmed[k] = v
			count++
		}
		props = trimmed
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return ""
	}
	return string(raw)
}

func decodeProperties(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var props map[string]string
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil
	}
	return props
}

func nodeFromValues(values []any) domain.Node {
	node := domain.Node{}
	if s, ok := values[0].(string); ok {
		node.Name = s
	}
	if s, ok := values[1].(string); ok {
		node.Type = s
	}
	if s, ok := values[2].(string); ok {
		node.Properties = decodeProperties(s)
	}
	if s, ok := values[3].(string); ok {
		node.Perspective = s
	}
	return node
}

func wrapNeo4jErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *kgerr.Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return kgerr.E(kgerr.KindTimeout, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
