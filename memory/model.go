// Package memory implements Ethos's memory lifecycle engine: ingest,
// embedding fill, cosine + spreading-activation retrieval, consolidation
// of episodes into facts, conflict resolution, and the salience decay
// sweep with long-term potentiation.
package memory

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Role identifies who produced a SessionEvent or EpisodicTrace turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// SourceType identifies what kind of entity a MemoryVector or graph node
// points at.
type SourceType string

const (
	SourceEpisode  SourceType = "episode"
	SourceFact     SourceType = "fact"
	SourceWorkflow SourceType = "workflow"
	SourceQuery    SourceType = "query"
	SourceRaw      SourceType = "raw"
)

// TaskMode selects the embedding sub-space a provider should target.
type TaskMode string

const (
	TaskModeDocument TaskMode = "document"
	TaskModeQuery    TaskMode = "query"
)

// FactKind classifies a SemanticFact by how it was extracted.
type FactKind string

const (
	FactKindFact         FactKind = "fact"
	FactKindDecision     FactKind = "decision"
	FactKindPreference   FactKind = "preference"
	FactKindEntity       FactKind = "entity"
	FactKindRelationship FactKind = "relationship"
)

// LinkRelation tags a MemoryGraphLink edge by how the two nodes relate.
type LinkRelation string

const (
	LinkSimilarity   LinkRelation = "similarity"
	LinkTemporalNext LinkRelation = "temporal_next"
	LinkDerivedFrom  LinkRelation = "derived_from"
	LinkContradicts  LinkRelation = "contradicts"
	LinkSupports     LinkRelation = "supports"
)

// Session is a conversational context. Created on first event, updated on
// every subsequent one, never deleted.
type Session struct {
	ID           uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	SessionKey   string             `gorm:"uniqueIndex;not null" json:"session_key"`
	AgentID      string             `gorm:"index;not null" json:"agent_id"`
	ChannelTag   string             `json:"channel_tag"`
	StartedAt    time.Time          `json:"started_at"`
	LastActiveAt time.Time          `json:"last_active_at"`
	MessageCount int                `json:"message_count"`
	Metadata     datatypes.JSONMap  `json:"metadata,omitempty"`
}

// SessionEvent is the immutable raw write-ahead log of turns.
type SessionEvent struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	SessionKey string           `gorm:"index;not null" json:"session_key"`
	AgentID   string            `gorm:"index;not null" json:"agent_id"`
	Role      Role              `gorm:"not null" json:"role"`
	Content   string            `gorm:"type:text;not null" json:"content"`
	TokenCount *int             `json:"token_count,omitempty"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"index;autoCreateTime:milli" json:"created_at"`
}

// EpisodicTrace is a turn-cluster carrying salience signals, eligible for
// promotion into one or more SemanticFacts during consolidation.
type EpisodicTrace struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SessionKey     string     `gorm:"index;not null" json:"session_key"`
	AgentID        string     `gorm:"index;not null" json:"agent_id"`
	TurnIndex      int        `json:"turn_index"`
	Role           Role       `json:"role"`
	Content        string     `gorm:"type:text;not null" json:"content"`
	Summary        *string    `json:"summary,omitempty"`
	Importance     float64    `json:"importance"`
	EmotionalTone  float64    `json:"emotional_tone"`
	Novelty        float64    `json:"novelty"`
	Topics         datatypes.JSONSlice[string] `json:"topics,omitempty"`
	Entities       datatypes.JSONSlice[string] `json:"entities,omitempty"`
	CreatedAt      time.Time  `gorm:"index;autoCreateTime:milli" json:"created_at"`
	ConsolidatedAt *time.Time `gorm:"index" json:"consolidated_at,omitempty"`
	RetrievalCount int        `json:"retrieval_count"`
	LastRetrievedAt *time.Time `json:"last_retrieved_at,omitempty"`
	Salience       float64    `gorm:"index" json:"salience"`
	Pruned         bool       `gorm:"index" json:"pruned"`
}

// SemanticFact is a durable (subject, predicate, object) triple with
// confidence, possibly superseded by a newer fact.
type SemanticFact struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Kind              FactKind   `gorm:"index;not null" json:"kind"`
	Statement         string     `gorm:"type:text;not null" json:"statement"`
	Subject           string     `gorm:"index:idx_fact_subject_predicate,priority:1" json:"subject"`
	Predicate         string     `gorm:"index:idx_fact_subject_predicate,priority:2" json:"predicate"`
	Object            string     `json:"object"`
	Topics            datatypes.JSONSlice[string] `json:"topics,omitempty"`
	Confidence        float64    `json:"confidence"`
	RetrievalCount    int        `json:"retrieval_count"`
	LastRetrievedAt   *time.Time `json:"last_retrieved_at,omitempty"`
	SupersededBy      *uuid.UUID `gorm:"type:uuid;index" json:"superseded_by,omitempty"`
	FlaggedForReview  bool       `gorm:"index" json:"flagged_for_review"`
	SourceEpisodes    datatypes.JSONSlice[string] `json:"source_episodes,omitempty"`
	SourceAgent       string     `json:"source_agent"`
	CreatedAt         time.Time  `gorm:"autoCreateTime:milli" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime:milli" json:"updated_at"`
	Salience          float64    `gorm:"index" json:"salience"`
	Pruned            bool       `gorm:"index" json:"pruned"`
}

// Active reports whether the fact is returnable by retrieval and eligible
// as a conflict target: not pruned and not superseded.
func (f *SemanticFact) Active() bool {
	return !f.Pruned && f.SupersededBy == nil
}

// MemoryVector is an embedding row. A NULL Embedding is legal and means
// the row is keyword-searchable only, never a cosine-search candidate.
type MemoryVector struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	SourceType    SourceType  `gorm:"index;not null" json:"source_type"`
	SourceID      uuid.UUID   `gorm:"index;not null" json:"source_id"`
	Embedding     *Embedding  `gorm:"type:bytea" json:"embedding,omitempty"`
	Dimension     int         `json:"dimension"`
	Model         string      `json:"model"`
	TaskType      TaskMode    `json:"task_type"`
	AccessCount   int         `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	CreatedAt     time.Time   `gorm:"index;autoCreateTime:milli" json:"created_at"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
	Importance    float64     `gorm:"index" json:"importance"`
	Pruned        bool        `gorm:"index" json:"pruned"`
	ContentSnippet string     `gorm:"type:text" json:"content_snippet"`
}

// MemoryGraphLink is a directed associative edge consumed by the
// spreading-activation phase of retrieval. Persisted in the graph store,
// not the relational Store — see DESIGN.md Open Question 2.
type MemoryGraphLink struct {
	FromType  SourceType   `json:"from_type"`
	FromID    uuid.UUID    `json:"from_id"`
	ToType    SourceType   `json:"to_type"`
	ToID      uuid.UUID    `json:"to_id"`
	Relation  LinkRelation `json:"relation"`
	Weight    float64      `json:"weight"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// WorkflowMemory is a key/value scratch table scoped to a session, carried
// over from the original implementation's model set though absent from
// the distilled six-entity data model (see DESIGN.md Open Question 3).
type WorkflowMemory struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	SessionKey string            `gorm:"index;not null" json:"session_key"`
	Key        string            `gorm:"index;not null" json:"key"`
	Value      datatypes.JSONMap `json:"value"`
	CreatedAt  time.Time         `gorm:"autoCreateTime:milli" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"autoUpdateTime:milli" json:"updated_at"`
}
