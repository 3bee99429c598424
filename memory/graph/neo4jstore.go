package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Neo4jStore implements Store over a Neo4j graph database. Memory nodes
// are addressed by a (type, id) pair merged on `{type, id}`; edges carry
// relation, weight, created_at and updated_at properties. Grounded on
// yungbote-neurobridge-backend's neo4jdb.Client driver-init pattern.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// Neo4jConfig configures a Neo4jStore.
type Neo4jConfig struct {
	URI      string
	User     string
	Password string
	Database string
	Timeout  time.Duration
	MaxPool  int
}

// NewNeo4jStore connects to Neo4j and verifies connectivity before
// returning.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig, logger *zap.Logger) (*Neo4jStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxPool := cfg.MaxPool
	if maxPool <= 0 {
		maxPool = 50
	}

	auth := neo4j.BasicAuth(cfg.User, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = maxPool
		c.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("graph: init driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graph: verify connectivity: %w", err)
	}

	return &Neo4jStore{
		driver:   driver,
		database: cfg.Database,
		logger:   logger.With(zap.String("component", "graph_store")),
	}, nil
}

func (s *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

func (s *Neo4jStore) Upsert(ctx context.Context, e Edge, strengthen func(existing float64) float64) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	now := time.Now().UTC().Format(time.RFC3339Nano)
	params := map[string]any{
		"fromType": e.FromType, "fromID": e.FromID.String(),
		"toType": e.ToType, "toID": e.ToID.String(),
		"relation": e.Relation, "now": now,
	}

	// The existing weight must be read before a Hebbian update can be
	// computed, and Cypher can't invoke an arbitrary Go closure inline,
	// so Upsert is a read-then-write: find any existing edge first, then
	// decide in Go whether to create it fresh or strengthen it.
	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (a:Memory {type: $fromType, id: $fromID})-[r:LINK {relation: $relation}]->(b:Memory {type: $toType, id: $toID})
			RETURN r.weight AS weight
		`, params)
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)

		newWeight := clamp01(e.Weight)
		if err == nil {
			existing, _ := record.Get("weight")
			w, _ := existing.(float64)
			if strengthen != nil {
				newWeight = clamp01(strengthen(w))
			} else {
				newWeight = w
			}
			_, err := tx.Run(ctx, `
				MATCH (a:Memory {type: $fromType, id: $fromID})-[r:LINK {relation: $relation}]->(b:Memory {type: $toType, id: $toID})
				SET r.weight = $weight, r.updated_at = $now
			`, mergeParams(params, map[string]any{"weight": newWeight}))
			return nil, err
		}

		_, err = tx.Run(ctx, `
			MERGE (a:Memory {type: $fromType, id: $fromID})
			MERGE (b:Memory {type: $toType, id: $toID})
			CREATE (a)-[r:LINK {relation: $relation, weight: $weight, created_at: $now, updated_at: $now}]->(b)
		`, mergeParams(params, map[string]any{"weight": newWeight}))
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graph: upsert edge: %w", err)
	}
	return nil
}

func mergeParams(base map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func (s *Neo4jStore) BoundedSubgraph(ctx context.Context, anchors []NodeRef, maxEdges int) ([]Edge, error) {
	if len(anchors) == 0 || maxEdges <= 0 {
		return nil, nil
	}

	anchorParams := make([]map[string]any, len(anchors))
	for i, a := range anchors {
		anchorParams[i] = map[string]any{"type": a.Type, "id": a.ID.String()}
	}

	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// Edges touching an anchor from either side: the linker only ever
		// points a new node's edges at older similar ones, so an anchor
		// that happens to be an older memory would otherwise surface as
		// having almost no edges despite being heavily pointed-to.
		res, err := tx.Run(ctx, `
			UNWIND $anchors AS anchor
			MATCH (a:Memory)-[r:LINK]->(b:Memory)
			WHERE (a.type = anchor.type AND a.id = anchor.id)
			   OR (b.type = anchor.type AND b.id = anchor.id)
			RETURN a.type AS fromType, a.id AS fromID, b.type AS toType, b.id AS toID,
			       r.relation AS relation, r.weight AS weight, r.created_at AS createdAt, r.updated_at AS updatedAt
			LIMIT $limit
		`, map[string]any{"anchors": anchorParams, "limit": maxEdges})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("graph: bounded subgraph: %w", err)
	}

	records, _ := result.([]*neo4j.Record)
	return recordsToEdges(records), nil
}

func (s *Neo4jStore) OutEdges(ctx context.Context, from NodeRef, limit int) ([]Edge, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (a:Memory {type: $type, id: $id})-[r:LINK]->(b:Memory)
			RETURN a.type AS fromType, a.id AS fromID, b.type AS toType, b.id AS toID,
			       r.relation AS relation, r.weight AS weight, r.created_at AS createdAt, r.updated_at AS updatedAt
			ORDER BY r.weight DESC
			LIMIT $limit
		`, map[string]any{"type": from.Type, "id": from.ID.String(), "limit": limit})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("graph: out edges: %w", err)
	}

	records, _ := result.([]*neo4j.Record)
	return recordsToEdges(records), nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

func recordsToEdges(records []*neo4j.Record) []Edge {
	edges := make([]Edge, 0, len(records))
	for _, rec := range records {
		fromID, _ := rec.Get("fromID")
		toID, _ := rec.Get("toID")
		fromType, _ := rec.Get("fromType")
		toType, _ := rec.Get("toType")
		relation, _ := rec.Get("relation")
		weight, _ := rec.Get("weight")

		fID, err1 := uuid.Parse(fromID.(string))
		tID, err2 := uuid.Parse(toID.(string))
		if err1 != nil || err2 != nil {
			continue
		}

		w, _ := weight.(float64)
		edges = append(edges, Edge{
			FromType: fromType.(string),
			FromID:   fID,
			ToType:   toType.(string),
			ToID:     tID,
			Relation: relation.(string),
			Weight:   w,
		})
	}
	return edges
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
