package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the single source of truth for Session, SessionEvent,
// EpisodicTrace, SemanticFact, MemoryVector and WorkflowMemory. Ingest,
// Retrieval and Consolidation mutate through these operations only; they
// share no in-memory state beyond a connection pool and an embedding
// gateway handle.
type Store interface {
	// TouchSession creates or updates a Session for sessionKey/agentID,
	// bumping MessageCount and LastActiveAt.
	TouchSession(ctx context.Context, sessionKey, agentID, channelTag string) error

	// InsertEventAndVector atomically writes a SessionEvent and its
	// sibling placeholder MemoryVector (embedding NULL). Returns the new
	// vector id.
	InsertEventAndVector(ctx context.Context, event *SessionEvent, vector *MemoryVector) (uuid.UUID, error)

	// GetVector fetches a single MemoryVector by id.
	GetVector(ctx context.Context, id uuid.UUID) (*MemoryVector, error)

	// SetVectorEmbedding fills in a vector's embedding, dimension and
	// model tag. A no-op if the row already has a non-NULL embedding
	// (embed_by_id idempotence).
	SetVectorEmbedding(ctx context.Context, id uuid.UUID, embedding Embedding, model string) (bool, error)

	// SearchableVectors returns candidate vectors for cosine scoring:
	// non-NULL embedding, not pruned.
	SearchableVectors(ctx context.Context, sourceTypes []SourceType, limit int) ([]*MemoryVector, error)

	// GetVectorBySource resolves the MemoryVector row for a given
	// (source_type, source_id) pair, used to turn a graph node reached
	// only through spreading activation back into a scorable candidate.
	GetVectorBySource(ctx context.Context, sourceType SourceType, sourceID uuid.UUID) (*MemoryVector, error)

	// InsertEpisode inserts a new EpisodicTrace.
	InsertEpisode(ctx context.Context, ep *EpisodicTrace) error

	// UnconsolidatedCandidates fetches up to limit EpisodicTraces with
	// ConsolidatedAt == nil and Pruned == false.
	UnconsolidatedCandidates(ctx context.Context, limit int) ([]*EpisodicTrace, error)

	// MarkConsolidated sets ConsolidatedAt = now on the given episode id.
	MarkConsolidated(ctx context.Context, id uuid.UUID) error

	// GetEpisode fetches a single EpisodicTrace by id, for LTP updates.
	GetEpisode(ctx context.Context, id uuid.UUID) (*EpisodicTrace, error)

	// ActiveFactsBySubjectPredicate returns active facts sharing the
	// given (subject, predicate) conflict key.
	ActiveFactsBySubjectPredicate(ctx context.Context, subject, predicate string) ([]*SemanticFact, error)

	// InsertFact inserts a new SemanticFact.
	InsertFact(ctx context.Context, fact *SemanticFact) error

	// UpdateFact persists mutations to an existing SemanticFact (used for
	// refinement, supersession, and flagging).
	UpdateFact(ctx context.Context, fact *SemanticFact) error

	// GetFact fetches a single SemanticFact by id.
	GetFact(ctx context.Context, id uuid.UUID) (*SemanticFact, error)

	// BatchVectors, BatchEpisodes, BatchActiveFacts page through each
	// tier in bounded batches for the decay sweep.
	BatchVectors(ctx context.Context, offset, limit int) ([]*MemoryVector, error)
	BatchEpisodes(ctx context.Context, offset, limit int) ([]*EpisodicTrace, error)
	BatchActiveFacts(ctx context.Context, offset, limit int) ([]*SemanticFact, error)

	// UpdateVector, UpdateEpisode persist decay/LTP mutations.
	UpdateVector(ctx context.Context, v *MemoryVector) error
	UpdateEpisode(ctx context.Context, ep *EpisodicTrace) error

	// RecentEventActivity reports whether any SessionEvent was created
	// within the given window, for the consolidation idle gate.
	RecentEventActivity(ctx context.Context, within time.Duration) (bool, error)

	// CountEvents and CountVectors support the SessionEvent/MemoryVector
	// parity invariant exercised by tests.
	CountEvents(ctx context.Context) (int64, error)
	CountVectors(ctx context.Context) (int64, error)

	// GetWorkflowMemory fetches the scratch value for (sessionKey, key),
	// returning types.ErrNotFound if none has been set.
	GetWorkflowMemory(ctx context.Context, sessionKey, key string) (*WorkflowMemory, error)

	// SetWorkflowMemory upserts the scratch value for (sessionKey, key).
	SetWorkflowMemory(ctx context.Context, sessionKey, key string, value map[string]any) (*WorkflowMemory, error)

	// Close releases underlying resources.
	Close() error
}
