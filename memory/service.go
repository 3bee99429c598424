package memory

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service bundles the components the transport surfaces (socket, HTTP,
// CLI) dispatch requests to, so neither surface needs to know how
// ingest, retrieval, embedding fill, and consolidation are wired
// together internally.
type Service struct {
	Store        Store
	Ingester     *Ingester
	Retriever    *Retriever
	Embedder     *Embedder
	Consolidator *Consolidator
	Logger       *zap.Logger
}

// Health reports service status for the `health` verb / `GET /health`
// endpoint. Only the store is probed; Graph and SocketOK are always
// reported as "ok" and true.
type Health struct {
	Status     string
	Store      string
	Graph      string
	SocketOK   bool
}

// CheckHealth pings the store with a trivial count query.
func (s *Service) CheckHealth(ctx context.Context) Health {
	h := Health{Status: "healthy", Store: "ok", Graph: "ok", SocketOK: true}
	if _, err := s.Store.CountEvents(ctx); err != nil {
		h.Status = "degraded"
		h.Store = "error: " + err.Error()
	}
	return h
}

// EmbedByID is the manual `embed` verb.
func (s *Service) EmbedByID(ctx context.Context, id uuid.UUID) (bool, error) {
	v, err := s.Store.GetVector(ctx, id)
	if err != nil {
		return false, err
	}
	if v.Embedding != nil {
		return true, nil
	}
	if err := s.Embedder.EmbedByID(ctx, id); err != nil {
		return false, err
	}
	after, err := s.Store.GetVector(ctx, id)
	if err != nil {
		return false, err
	}
	return after.Embedding != nil, nil
}

// GetByID is the `get` verb: a direct random-access lookup of a single
// memory vector by id, bypassing retrieval ranking entirely.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*MemoryVector, error) {
	return s.Store.GetVector(ctx, id)
}

// GetWorkflowScratch is the `workflow_get` verb: a session-scoped
// key/value scratch lookup, independent of the episodic/semantic
// consolidation pipeline.
func (s *Service) GetWorkflowScratch(ctx context.Context, sessionKey, key string) (*WorkflowMemory, error) {
	return s.Store.GetWorkflowMemory(ctx, sessionKey, key)
}

// SetWorkflowScratch is the `workflow_set` verb: upserts a session-scoped
// key/value scratch entry.
func (s *Service) SetWorkflowScratch(ctx context.Context, sessionKey, key string, value map[string]any) (*WorkflowMemory, error) {
	return s.Store.SetWorkflowMemory(ctx, sessionKey, key, value)
}
