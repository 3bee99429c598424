package memory

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const decayBatchSize = 500

// decayMetrics is the subset of internal/metrics.Collector the decay
// sweep records to, kept as an interface so this package never imports
// the metrics package directly.
type decayMetrics interface {
	RecordDecaySweep(tier string, pruned int)
}

// DecaySweep runs one pass of the salience-decay formula over every
// memory tier, in batches of up to 500 rows, tombstoning anything that
// falls below the prune threshold. Per-batch failures are logged and
// skipped; the next scheduled cycle retries them.
type DecaySweep struct {
	store   Store
	params  SalienceParams
	prune   float64
	logger  *zap.Logger
	metrics decayMetrics
}

// DecaySweepConfig configures a DecaySweep.
type DecaySweepConfig struct {
	Params         SalienceParams
	PruneThreshold float64
	Logger         *zap.Logger
	Metrics        decayMetrics
}

// NewDecaySweep constructs a DecaySweep over store.
func NewDecaySweep(store Store, cfg DecaySweepConfig) *DecaySweep {
	params := cfg.Params
	if params.BaseTau == 0 {
		params = DefaultSalienceParams()
	}
	prune := cfg.PruneThreshold
	if prune <= 0 {
		prune = DefaultPruneThreshold
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecaySweep{store: store, params: params, prune: prune, logger: logger.With(zap.String("component", "decay_sweep")), metrics: cfg.Metrics}
}

// Report summarizes one sweep's outcome.
type Report struct {
	VectorsScanned, VectorsPruned int
	EpisodesScanned, EpisodesPruned int
	FactsScanned, FactsPruned     int
}

// Run processes every tier to exhaustion, batch by batch.
func (d *DecaySweep) Run(ctx context.Context) Report {
	var report Report

	d.sweepVectors(ctx, &report)
	d.sweepEpisodes(ctx, &report)
	d.sweepFacts(ctx, &report)

	d.logger.Info("decay sweep complete",
		zap.Int("vectors_scanned", report.VectorsScanned), zap.Int("vectors_pruned", report.VectorsPruned),
		zap.Int("episodes_scanned", report.EpisodesScanned), zap.Int("episodes_pruned", report.EpisodesPruned),
		zap.Int("facts_scanned", report.FactsScanned), zap.Int("facts_pruned", report.FactsPruned),
	)
	if d.metrics != nil {
		d.metrics.RecordDecaySweep("vectors", report.VectorsPruned)
		d.metrics.RecordDecaySweep("episodes", report.EpisodesPruned)
		d.metrics.RecordDecaySweep("facts", report.FactsPruned)
	}
	return report
}

func (d *DecaySweep) sweepVectors(ctx context.Context, report *Report) {
	now := time.Now().UTC()
	for offset := 0; ; {
		batch, err := d.store.BatchVectors(ctx, offset, decayBatchSize)
		if err != nil {
			d.logger.Warn("batch vectors failed", zap.Error(err))
			return
		}
		if len(batch) == 0 {
			return
		}
		pruned := 0
		for _, v := range batch {
			report.VectorsScanned++
			touch := v.CreatedAt
			if v.LastAccessedAt != nil {
				touch = *v.LastAccessedAt
			}
			newImportance := Decay(DecayInput{
				CurrentScore:   v.Importance,
				DaysSinceTouch: daysSince(touch, now),
				DaysAlive:      daysSince(v.CreatedAt, now),
				RetrievalCount: v.AccessCount,
				EmotionalTone:  0,
			}, d.params)

			v.Importance = newImportance
			expired := v.ExpiresAt != nil && v.ExpiresAt.Before(now)
			if expired || newImportance < d.prune {
				v.Pruned = true
				report.VectorsPruned++
			}
			if err := d.store.UpdateVector(ctx, v); err != nil {
				d.logger.Warn("update vector failed", zap.String("id", v.ID.String()), zap.Error(err))
			} else if v.Pruned {
				pruned++
			}
		}
		if len(batch) < decayBatchSize {
			return
		}
		// Rows pruned in this batch leave the pruned = false set the next
		// page is read from, so the offset only advances past those left.
		offset += len(batch) - pruned
	}
}

func (d *DecaySweep) sweepEpisodes(ctx context.Context, report *Report) {
	now := time.Now().UTC()
	for offset := 0; ; {
		batch, err := d.store.BatchEpisodes(ctx, offset, decayBatchSize)
		if err != nil {
			d.logger.Warn("batch episodes failed", zap.Error(err))
			return
		}
		if len(batch) == 0 {
			return
		}
		pruned := 0
		for _, ep := range batch {
			report.EpisodesScanned++
			touch := ep.CreatedAt
			if ep.LastRetrievedAt != nil {
				touch = *ep.LastRetrievedAt
			}
			newSalience := Decay(DecayInput{
				CurrentScore:   ep.Salience,
				DaysSinceTouch: daysSince(touch, now),
				DaysAlive:      daysSince(ep.CreatedAt, now),
				RetrievalCount: ep.RetrievalCount,
				EmotionalTone:  ep.EmotionalTone,
			}, d.params)

			ep.Salience = newSalience
			if newSalience < d.prune {
				ep.Pruned = true
				report.EpisodesPruned++
			}
			if err := d.store.UpdateEpisode(ctx, ep); err != nil {
				d.logger.Warn("update episode failed", zap.String("id", ep.ID.String()), zap.Error(err))
			} else if ep.Pruned {
				pruned++
			}
		}
		if len(batch) < decayBatchSize {
			return
		}
		offset += len(batch) - pruned
	}
}

func (d *DecaySweep) sweepFacts(ctx context.Context, report *Report) {
	now := time.Now().UTC()
	for offset := 0; ; {
		batch, err := d.store.BatchActiveFacts(ctx, offset, decayBatchSize)
		if err != nil {
			d.logger.Warn("batch facts failed", zap.Error(err))
			return
		}
		if len(batch) == 0 {
			return
		}
		pruned := 0
		for _, f := range batch {
			report.FactsScanned++
			touch := f.CreatedAt
			if f.LastRetrievedAt != nil {
				touch = *f.LastRetrievedAt
			}
			daysAlive := daysSince(f.CreatedAt, now)
			daysSinceTouch := daysSince(touch, now)

			newConfidence := Decay(DecayInput{
				CurrentScore:   f.Confidence,
				DaysSinceTouch: daysSinceTouch,
				DaysAlive:      daysAlive,
				RetrievalCount: f.RetrievalCount,
				EmotionalTone:  0,
			}, d.params)
			newSalience := Decay(DecayInput{
				CurrentScore:   f.Salience,
				DaysSinceTouch: daysSinceTouch,
				DaysAlive:      daysAlive,
				RetrievalCount: f.RetrievalCount,
				EmotionalTone:  0,
			}, d.params)

			f.Confidence = newConfidence
			f.Salience = newSalience
			if newConfidence < d.prune {
				f.Pruned = true
				report.FactsPruned++
			}
			if err := d.store.UpdateFact(ctx, f); err != nil {
				d.logger.Warn("update fact failed", zap.String("id", f.ID.String()), zap.Error(err))
			} else if f.Pruned {
				pruned++
			}
		}
		if len(batch) < decayBatchSize {
			return
		}
		offset += len(batch) - pruned
	}
}

func daysSince(t, now time.Time) float64 {
	return now.Sub(t).Hours() / 24
}
