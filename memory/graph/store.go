// Package graph persists and traverses MemoryGraphLink, the directed
// associative edges spreading activation walks during retrieval.
package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Edge is a directed associative link between two memory nodes,
// identified by (type, id) pairs so it can point at episodes, facts,
// vectors, or workflow entries interchangeably.
type Edge struct {
	FromType string
	FromID   uuid.UUID
	ToType   string
	ToID     uuid.UUID
	Relation string
	Weight   float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists and traverses the associative memory graph.
type Store interface {
	// Upsert inserts a new edge, or — if (from, to, relation) already
	// exists — strengthens its weight via fn(existingWeight) and clamps
	// the result to [0,1]. fn is not called for a freshly-inserted edge.
	Upsert(ctx context.Context, e Edge, strengthen func(existing float64) float64) error

	// BoundedSubgraph loads up to maxEdges edges touching any of the
	// given anchor nodes, for the spreading-activation phase of
	// retrieval. Never loads the whole graph.
	BoundedSubgraph(ctx context.Context, anchors []NodeRef, maxEdges int) ([]Edge, error)

	// OutEdges returns up to limit outbound edges from a single node.
	// The link builder does not use it; it scores candidates from the
	// relational Store's vectors.
	OutEdges(ctx context.Context, from NodeRef, limit int) ([]Edge, error)

	Close(ctx context.Context) error
}

// NodeRef identifies one endpoint of an edge.
type NodeRef struct {
	Type string
	ID   uuid.UUID
}
