package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Modern-Method/Ethos/memory/embedding"
)

const (
	embedderQueueSize = 1000

	// lowImportanceThreshold and sustainedFullDropAfter implement the
	// backpressure policy: an enqueue below the threshold is only
	// dropped once the queue has been continuously full for this long;
	// until then, and for anything at or above the threshold, EnqueueFill
	// blocks instead of dropping.
	lowImportanceThreshold = 0.3
	sustainedFullDropAfter = 5 * time.Minute
	enqueueRetryInterval   = 1 * time.Second
)

// fillTask is one pending embedding fill.
type fillTask struct {
	vectorID uuid.UUID
	content  string
}

// Embedder is the background worker that fills MemoryVector.Embedding
// for rows ingest left NULL. Distinct from embedding.Gateway: the
// gateway is the synchronous "ask the provider for a vector" primitive,
// Embedder is the async fill subsystem layered on top of it (one gateway
// call per queued task; a task whose call fails is logged and dropped),
// plus the manual embed_by_id re-fill entry point.
type Embedder struct {
	store   Store
	gateway *embedding.Gateway
	logger  *zap.Logger
	queue   chan fillTask
	done    chan struct{}

	fullMu    sync.Mutex
	fullSince time.Time
}

// NewEmbedder constructs an Embedder and starts its single worker
// goroutine. Call Stop to shut it down.
func NewEmbedder(store Store, gateway *embedding.Gateway, logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Embedder{
		store:   store,
		gateway: gateway,
		logger:  logger.With(zap.String("component", "embedder")),
		queue:   make(chan fillTask, embedderQueueSize),
		done:    make(chan struct{}),
	}
	go e.run()
	return e
}

// EnqueueFill schedules a fill for the given vector, applying the
// queue's backpressure policy: while the queue has room the send is
// immediate; once full, an enqueue below lowImportanceThreshold is only
// dropped after the queue has stayed continuously full for
// sustainedFullDropAfter, and anything at or above the threshold blocks
// until space frees rather than ever dropping.
func (e *Embedder) EnqueueFill(vectorID uuid.UUID, content string, importance float64) {
	task := fillTask{vectorID: vectorID, content: content}

	select {
	case e.queue <- task:
		e.clearFullSince()
		return
	default:
	}

	for {
		fullFor := e.markFullAndElapsed()
		if importance < lowImportanceThreshold && fullFor >= sustainedFullDropAfter {
			e.logger.Warn("embedder queue full for sustained period, dropping low-importance fill task",
				zap.String("vector_id", vectorID.String()), zap.Float64("importance", importance))
			return
		}

		select {
		case e.queue <- task:
			e.clearFullSince()
			return
		case <-time.After(enqueueRetryInterval):
		}
	}
}

// markFullAndElapsed records the first moment the queue was observed
// full and returns how long it has stayed that way since.
func (e *Embedder) markFullAndElapsed() time.Duration {
	e.fullMu.Lock()
	defer e.fullMu.Unlock()
	if e.fullSince.IsZero() {
		e.fullSince = time.Now()
	}
	return time.Since(e.fullSince)
}

func (e *Embedder) clearFullSince() {
	e.fullMu.Lock()
	e.fullSince = time.Time{}
	e.fullMu.Unlock()
}

// EmbedByID is the manual re-fill entry point. Idempotent: a no-op if
// the row already carries a non-NULL embedding.
func (e *Embedder) EmbedByID(ctx context.Context, id uuid.UUID) error {
	v, err := e.store.GetVector(ctx, id)
	if err != nil {
		return err
	}
	if v.Embedding != nil {
		return nil
	}
	return e.fill(ctx, id, v.ContentSnippet)
}

func (e *Embedder) run() {
	for {
		select {
		case task := <-e.queue:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := e.fill(ctx, task.vectorID, task.content); err != nil {
				e.logger.Warn("embedding fill failed", zap.String("vector_id", task.vectorID.String()), zap.Error(err))
			}
			cancel()
		case <-e.done:
			return
		}
	}
}

func (e *Embedder) fill(ctx context.Context, id uuid.UUID, content string) error {
	vec, err := e.gateway.Embed(ctx, content, embedding.TaskModeDocument)
	if err != nil {
		return err
	}
	if vec == nil {
		return nil // graceful no-embedding: row stays keyword-searchable only
	}
	_, err = e.store.SetVectorEmbedding(ctx, id, Embedding(vec), e.gatewayModelName())
	return err
}

func (e *Embedder) gatewayModelName() string {
	if e.gateway == nil {
		return ""
	}
	return e.gateway.Name()
}

// Stop stops the worker goroutine. Queued tasks not yet processed are
// dropped.
func (e *Embedder) Stop() {
	close(e.done)
}

// QueueLen reports the number of fill tasks currently buffered, for
// the embedder_queue_length gauge.
func (e *Embedder) QueueLen() int {
	return len(e.queue)
}
