package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const ltpMaxConcurrent = 32

// ltpMetrics is the subset of internal/metrics.Collector LTP records
// to, kept as an interface so this package never imports metrics
// directly.
type ltpMetrics interface {
	RecordLTP(sourceType, status string)
}

// LTP applies long-term-potentiation boosts to retrieved memories,
// fire-and-forget: Trigger returns immediately and the actual writes
// happen on a background goroutine bounded to ltpMaxConcurrent
// in-flight updates, per the spec's concurrency model.
type LTP struct {
	store   Store
	sem     *semaphore.Weighted
	logger  *zap.Logger
	metrics ltpMetrics
}

// NewLTP constructs an LTP updater over store. metrics may be nil.
func NewLTP(store Store, metrics ltpMetrics, logger *zap.Logger) *LTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LTP{store: store, sem: semaphore.NewWeighted(ltpMaxConcurrent), logger: logger.With(zap.String("component", "ltp")), metrics: metrics}
}

// Hit identifies one retrieved memory and its kind, so Trigger knows
// which update shape to apply.
type Hit struct {
	SourceType SourceType
	ID         uuid.UUID
}

// Trigger schedules a best-effort LTP update for every hit. It never
// blocks the caller beyond acquiring a semaphore slot, and never
// returns an error: failures are logged at warn level only.
func (l *LTP) Trigger(ctx context.Context, hits []Hit) {
	for _, h := range hits {
		h := h
		if err := l.sem.Acquire(ctx, 1); err != nil {
			l.logger.Warn("ltp semaphore acquire failed", zap.Error(err))
			return
		}
		go func() {
			defer l.sem.Release(1)
			// Detached from the caller's context: LTP must not be
			// cancelled just because the retrieval request that
			// triggered it has already returned a response.
			bg, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			l.apply(bg, h)
		}()
	}
}

func (l *LTP) apply(ctx context.Context, h Hit) {
	switch h.SourceType {
	case SourceEpisode:
		l.applyEpisode(ctx, h.ID)
	case SourceFact:
		l.applyFact(ctx, h.ID)
	default:
		l.applyVector(ctx, h.ID)
	}
}

func (l *LTP) applyEpisode(ctx context.Context, id uuid.UUID) {
	ep, err := l.store.GetEpisode(ctx, id)
	if err != nil || ep == nil {
		if err != nil {
			l.logger.Warn("ltp episode lookup failed", zap.String("id", id.String()), zap.Error(err))
		}
		l.record(string(SourceEpisode), "miss")
		return
	}
	now := time.Now().UTC()
	ep.RetrievalCount++
	ep.LastRetrievedAt = &now
	ep.Salience = boostCapped(ep.Salience, ltpEpisodeSalienceBoost)
	if err := l.store.UpdateEpisode(ctx, ep); err != nil {
		l.logger.Warn("ltp episode update failed", zap.String("id", id.String()), zap.Error(err))
		l.record(string(SourceEpisode), "error")
		return
	}
	l.record(string(SourceEpisode), "ok")
}

func (l *LTP) applyFact(ctx context.Context, id uuid.UUID) {
	fact, err := l.store.GetFact(ctx, id)
	if err != nil || fact == nil {
		if err != nil {
			l.logger.Warn("ltp fact lookup failed", zap.String("id", id.String()), zap.Error(err))
		}
		l.record(string(SourceFact), "miss")
		return
	}
	now := time.Now().UTC()
	fact.RetrievalCount++
	fact.LastRetrievedAt = &now
	fact.Confidence = boostAdd(fact.Confidence, ltpFactConfidenceDelta)
	fact.Salience = boostCapped(fact.Salience, ltpFactSalienceBoost)
	if err := l.store.UpdateFact(ctx, fact); err != nil {
		l.logger.Warn("ltp fact update failed", zap.String("id", id.String()), zap.Error(err))
		l.record(string(SourceFact), "error")
		return
	}
	l.record(string(SourceFact), "ok")
}

func (l *LTP) applyVector(ctx context.Context, id uuid.UUID) {
	v, err := l.store.GetVector(ctx, id)
	if err != nil || v == nil {
		if err != nil {
			l.logger.Warn("ltp vector lookup failed", zap.String("id", id.String()), zap.Error(err))
		}
		l.record(string(SourceRaw), "miss")
		return
	}
	now := time.Now().UTC()
	v.AccessCount++
	v.LastAccessedAt = &now
	v.Importance = boostCapped(v.Importance, ltpVectorImportanceBoost)
	if err := l.store.UpdateVector(ctx, v); err != nil {
		l.logger.Warn("ltp vector update failed", zap.String("id", id.String()), zap.Error(err))
		l.record(string(SourceRaw), "error")
		return
	}
	l.record(string(SourceRaw), "ok")
}

func (l *LTP) record(sourceType, status string) {
	if l.metrics != nil {
		l.metrics.RecordLTP(sourceType, status)
	}
}
