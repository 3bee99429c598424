package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Modern-Method/Ethos/types"
)

const defaultVectorImportance = 0.5

// ingestMetrics is the subset of internal/metrics.Collector Ingest
// records to, kept as an interface so this package never imports
// metrics directly.
type ingestMetrics interface {
	RecordIngest(status string, duration time.Duration)
}

// IngestInput is the raw payload handed to Ingest.
type IngestInput struct {
	Content    string
	Source     string // user | assistant | system | tool
	Metadata   map[string]any
	Importance float64 // 0 means "unset"; defaults to defaultVectorImportance
}

// Ingester writes a SessionEvent and its sibling MemoryVector in one
// atomic unit of work, then schedules the two post-commit tasks every
// ingest triggers: asynchronous embedding fill and associative linking.
type Ingester struct {
	store    Store
	embedder *Embedder
	linker   *Linker
	logger   *zap.Logger
	metrics  ingestMetrics
}

// NewIngester wires the ingest pipeline to its store and post-commit
// workers. embedder and linker may run on their own goroutines; Ingest
// only hands off work to them, it never waits for either to finish.
// metrics may be nil.
func NewIngester(store Store, embedder *Embedder, linker *Linker, metrics ingestMetrics, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{store: store, embedder: embedder, linker: linker, metrics: metrics, logger: logger.With(zap.String("component", "ingest"))}
}

func roleFromSource(source string) (Role, error) {
	switch Role(source) {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return Role(source), nil
	default:
		return "", fmt.Errorf("unknown source %q", source)
	}
}

func stringMeta(metadata map[string]any, key, fallback string) string {
	if metadata == nil {
		return fallback
	}
	if v, ok := metadata[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

// Ingest validates, inserts, commits, and then kicks off the
// post-commit embedding and linking tasks without waiting on them.
func (ing *Ingester) Ingest(ctx context.Context, in IngestInput) (uuid.UUID, error) {
	start := time.Now()
	id, err := ing.ingest(ctx, in)
	if ing.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		ing.metrics.RecordIngest(status, time.Since(start))
	}
	return id, err
}

func (ing *Ingester) ingest(ctx context.Context, in IngestInput) (uuid.UUID, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return uuid.Nil, types.NewError(types.ErrBadRequest, "content must not be empty")
	}

	role, err := roleFromSource(in.Source)
	if err != nil {
		return uuid.Nil, types.NewError(types.ErrBadRequest, err.Error()).WithCause(err)
	}

	sessionKey := stringMeta(in.Metadata, "session_id", "default")
	agentID := stringMeta(in.Metadata, "agent_id", "ethos")

	metaJSON := toJSONMap(in.Metadata)

	importance := in.Importance
	if importance <= 0 {
		importance = defaultVectorImportance
	}

	event := &SessionEvent{
		SessionKey: sessionKey,
		AgentID:    agentID,
		Role:       role,
		Content:    content,
		Metadata:   metaJSON,
	}
	vector := &MemoryVector{
		SourceType:     SourceRaw,
		Importance:     importance,
		ContentSnippet: snippet(content),
	}

	if err := ing.store.TouchSession(ctx, sessionKey, agentID, stringMeta(in.Metadata, "channel_tag", "")); err != nil {
		ing.logger.Warn("touch session failed", zap.Error(err))
	}

	vecID, err := ing.store.InsertEventAndVector(ctx, event, vector)
	if err != nil {
		return uuid.Nil, err
	}

	if ing.embedder != nil {
		ing.embedder.EnqueueFill(vecID, content, importance)
	}
	if ing.linker != nil {
		ing.linker.EnqueueLink(SourceRaw, vecID, content)
	}

	return vecID, nil
}

func snippet(content string) string {
	// Must stay >= the CLI wire format's 300-char snippet window
	// (memory/cliformat.go), since ContentSnippet is its only source.
	const maxLen = 300
	r := []rune(content)
	if len(r) <= maxLen {
		return content
	}
	return string(r[:maxLen])
}
