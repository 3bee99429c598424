package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Modern-Method/Ethos/memory/embedding"
	"github.com/Modern-Method/Ethos/memory/graph"
)

const (
	linkerQueueSize       = 1024
	linkerTopK            = 3
	linkerSimilarityFloor = 0.6
	linkerStrengthenDelta = 0.1
)

type linkTask struct {
	sourceType SourceType
	sourceID   uuid.UUID
	content    string
}

// Linker is the associative link builder that runs after every
// successful ingest: it embeds the new content if needed, finds the
// top-3 most cosine-similar existing memories, and inserts or
// Hebbian-strengthens an edge for each match above the similarity
// floor.
type Linker struct {
	store   Store
	graph   graph.Store
	gateway *embedding.Gateway
	logger  *zap.Logger
	queue   chan linkTask
	done    chan struct{}
}

// NewLinker constructs a Linker and starts its worker goroutine.
func NewLinker(store Store, g graph.Store, gateway *embedding.Gateway, logger *zap.Logger) *Linker {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Linker{
		store:   store,
		graph:   g,
		gateway: gateway,
		logger:  logger.With(zap.String("component", "linker")),
		queue:   make(chan linkTask, linkerQueueSize),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

// EnqueueLink schedules a best-effort link pass for newly-ingested
// content. Non-blocking; a full queue drops the task.
func (l *Linker) EnqueueLink(sourceType SourceType, sourceID uuid.UUID, content string) {
	select {
	case l.queue <- linkTask{sourceType: sourceType, sourceID: sourceID, content: content}:
	default:
		l.logger.Warn("linker queue full, dropping link task", zap.String("source_id", sourceID.String()))
	}
}

func (l *Linker) run() {
	for {
		select {
		case task := <-l.queue:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := l.link(ctx, task); err != nil {
				l.logger.Warn("link pass failed", zap.String("source_id", task.sourceID.String()), zap.Error(err))
			}
			cancel()
		case <-l.done:
			return
		}
	}
}

func (l *Linker) link(ctx context.Context, task linkTask) error {
	vec, err := l.gateway.Embed(ctx, task.content, embedding.TaskModeDocument)
	if err != nil {
		return err
	}
	if vec == nil {
		return nil // no embedding available: nothing to compare against yet
	}

	candidates, err := l.store.SearchableVectors(ctx, nil, 500)
	if err != nil {
		return err
	}

	type scored struct {
		v     *MemoryVector
		score float64
	}
	var ranked []scored
	for _, c := range candidates {
		if c.SourceID == task.sourceID || c.Pruned || c.Embedding == nil {
			continue
		}
		ranked = append(ranked, scored{v: c, score: cosineSimilarity(Embedding(vec), *c.Embedding)})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(ranked) > linkerTopK {
		ranked = ranked[:linkerTopK]
	}

	for _, r := range ranked {
		if r.score < linkerSimilarityFloor {
			continue
		}
		edge := graph.Edge{
			FromType: string(task.sourceType),
			FromID:   task.sourceID,
			ToType:   string(r.v.SourceType),
			ToID:     r.v.SourceID,
			Relation: string(LinkSimilarity),
			Weight:   r.score,
		}
		err := l.graph.Upsert(ctx, edge, func(existing float64) float64 {
			return existing + linkerStrengthenDelta
		})
		if err != nil {
			l.logger.Warn("upsert edge failed", zap.Error(err))
		}
	}
	return nil
}

// Stop stops the worker goroutine. Queued link tasks not yet processed
// are dropped.
func (l *Linker) Stop() {
	close(l.done)
}
