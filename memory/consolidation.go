package memory

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var consolidationTracer = otel.Tracer("ethos/memory/consolidation")

const consolidationCandidateLimit = 100

// consolidationMetrics is the subset of internal/metrics.Collector the
// consolidation loop records to, kept as an interface so this package
// never imports metrics directly.
type consolidationMetrics interface {
	RecordConsolidationCycle(trigger string, duration time.Duration)
	RecordFactResolution(resolution string)
}

// ConsolidationConfig configures the background consolidation loop.
// Grounded on the teacher's IntelligentDecay ticker-loop shape
// (agent/memory/intelligent_decay.go), generalized to the spec's
// idle-gated, multi-phase cycle.
type ConsolidationConfig struct {
	Interval         time.Duration
	IdleQuietPeriod  time.Duration
	IdleMaxCPUPercent float64
	ConflictParams   ConflictParams
	DecayParams      SalienceParams
	PruneThreshold   float64
}

// CycleReport summarizes one consolidation cycle, idle-skipped or not.
type CycleReport struct {
	Skipped            bool
	EpisodesScanned    int
	EpisodesPromoted   int
	FactsCreated       int
	FactsUpdated       int
	FactsSuperseded    int
	FactsFlagged       int
	Decay              Report
	Duration           time.Duration
}

// Consolidator runs the periodic consolidation loop: idle gate,
// candidate scan, rule-based extraction, conflict resolution, marking
// consolidated, and a trailing decay sweep.
type Consolidator struct {
	store    Store
	resolver *Resolver
	decay    *DecaySweep
	cfg      ConsolidationConfig
	logger   *zap.Logger
	metrics  consolidationMetrics

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewConsolidator wires the consolidation loop to its dependencies.
// metrics may be nil.
func NewConsolidator(store Store, resolver *Resolver, decay *DecaySweep, cfg ConsolidationConfig, metrics consolidationMetrics, logger *zap.Logger) *Consolidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consolidator{
		store:    store,
		resolver: resolver,
		decay:    decay,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger.With(zap.String("component", "consolidation")),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background ticker loop. Missed ticks coalesce:
// time.Ticker never queues more than one pending tick.
func (c *Consolidator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.mu.Unlock()

	go c.loop(ctx)
}

// Stop ends the loop.
func (c *Consolidator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		close(c.stopCh)
		c.running = false
	}
}

func (c *Consolidator) loop(ctx context.Context) {
	interval := c.cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			report := c.RunCycle(ctx, false)
			if report.Skipped {
				c.logger.Info("consolidation cycle skipped: system not idle")
			} else {
				c.logger.Info("consolidation cycle complete",
					zap.Int("episodes_scanned", report.EpisodesScanned),
					zap.Int("episodes_promoted", report.EpisodesPromoted),
					zap.Int("facts_created", report.FactsCreated),
					zap.Duration("duration", report.Duration),
				)
			}
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunCycle runs one consolidation cycle. If force is true, the idle
// gate is bypassed — this is the manual `consolidate` verb's entry
// point.
func (c *Consolidator) RunCycle(ctx context.Context, force bool) CycleReport {
	trigger := "scheduled"
	if force {
		trigger = "manual"
	}
	ctx, span := consolidationTracer.Start(ctx, "memory.RunCycle", trace.WithAttributes(attribute.String("trigger", trigger)))
	defer span.End()

	start := time.Now()

	if !force && !c.isIdle(ctx) {
		return CycleReport{Skipped: true, Duration: time.Since(start)}
	}

	report := CycleReport{}

	candidates, err := c.store.UnconsolidatedCandidates(ctx, consolidationCandidateLimit)
	if err != nil {
		c.logger.Warn("candidate scan failed", zap.Error(err))
		return report
	}

	for _, ep := range candidates {
		report.EpisodesScanned++
		if !CandidateScanPredicate(ep) {
			continue
		}

		extracted, ok := Extract(ep)
		if !ok {
			continue // no rule fired; episode stays unconsolidated
		}

		resolution, err := c.resolver.Resolve(ctx, extracted, ep.ID.String())
		if err != nil {
			c.logger.Warn("conflict resolution failed", zap.String("episode_id", ep.ID.String()), zap.Error(err))
			continue // leave unconsolidated so the next cycle retries it
		}

		report.EpisodesPromoted++
		if c.metrics != nil {
			c.metrics.RecordFactResolution(string(resolution))
		}
		switch resolution {
		case ResolutionInsert:
			report.FactsCreated++
		case ResolutionRefinement:
			report.FactsUpdated++
		case ResolutionSupersession, ResolutionAutoSupersession:
			report.FactsCreated++
			report.FactsSuperseded++
		case ResolutionFlagged:
			report.FactsCreated++
			report.FactsFlagged++
		}

		if err := c.store.MarkConsolidated(ctx, ep.ID); err != nil {
			c.logger.Warn("mark consolidated failed", zap.String("episode_id", ep.ID.String()), zap.Error(err))
		}
	}

	if c.decay != nil {
		report.Decay = c.decay.Run(ctx)
	}

	report.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("episodes_scanned", report.EpisodesScanned),
		attribute.Int("episodes_promoted", report.EpisodesPromoted),
		attribute.Int("facts_created", report.FactsCreated),
	)
	if c.metrics != nil {
		c.metrics.RecordConsolidationCycle(trigger, report.Duration)
	}
	return report
}

func (c *Consolidator) isIdle(ctx context.Context) bool {
	quiet := c.cfg.IdleQuietPeriod
	if quiet <= 0 {
		quiet = 60 * time.Second
	}
	active, err := c.store.RecentEventActivity(ctx, quiet)
	if err != nil {
		c.logger.Warn("recent event activity check failed", zap.Error(err))
		return false
	}
	if active {
		return false
	}

	threshold := c.cfg.IdleMaxCPUPercent
	if threshold <= 0 {
		threshold = 80
	}
	load, ok := cpuLoadPercent()
	if !ok {
		return true // load unavailable: treat as passing
	}
	return load < threshold
}
