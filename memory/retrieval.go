package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Modern-Method/Ethos/memory/embedding"
	"github.com/Modern-Method/Ethos/memory/graph"
	"github.com/Modern-Method/Ethos/types"
)

// RetrievalParams are the tunables of the anchor-search + spreading-
// activation pipeline, threaded through explicitly so the engine
// itself holds no config dependency.
type RetrievalParams struct {
	AnchorTopK          int
	SpreadingIterations int
	SpreadingStrength   float64
	MaxCandidateEdges   int
	CosineWeight        float64
	ActivationWeight    float64
	StructuralWeight    float64
}

// DefaultRetrievalParams mirrors the spec's literal defaults.
func DefaultRetrievalParams() RetrievalParams {
	return RetrievalParams{
		AnchorTopK:          10,
		SpreadingIterations: 3,
		SpreadingStrength:   0.85,
		MaxCandidateEdges:   500,
		CosineWeight:        0.5,
		ActivationWeight:    0.3,
		StructuralWeight:    0.2,
	}
}

// Query is a retrieval request.
type Query struct {
	Text         string
	Limit        int
	UseSpreading bool
	MinScore     *float64
}

// Result is one ranked memory returned by retrieval.
type Result struct {
	ID        uuid.UUID
	Content   string
	Score     float64
	Source    SourceType
	CreatedAt time.Time
	Metadata  map[string]any
}

// Response is the retrieval engine's full reply.
type Response struct {
	Results []Result
	Query   string
	Count   int
	TookMs  int64
}

// retrievalMetrics is the subset of internal/metrics.Collector the
// retrieval engine records to, kept as an interface so this package
// never imports metrics directly.
type retrievalMetrics interface {
	RecordRetrieval(mode, status string, duration time.Duration, resultCount int)
}

// Retriever implements the cosine-anchor-search + spreading-activation
// retrieval pipeline.
type Retriever struct {
	store   Store
	graph   graph.Store
	gateway *embedding.Gateway
	ltp     *LTP
	params  RetrievalParams
	logger  *zap.Logger
	metrics retrievalMetrics
}

// NewRetriever wires the retrieval engine to its dependencies. metrics
// may be nil.
func NewRetriever(store Store, g graph.Store, gateway *embedding.Gateway, ltp *LTP, params RetrievalParams, metrics retrievalMetrics, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{store: store, graph: g, gateway: gateway, ltp: ltp, params: params, metrics: metrics, logger: logger.With(zap.String("component", "retrieval"))}
}

var retrievalTracer = otel.Tracer("ethos/memory/retrieval")

// retrievalDuration is the OTel histogram backing the retrieval
// pipeline's latency signal. Bucket boundaries are tuned to the
// sub-second cosine-search + spreading-activation path, not generic
// HTTP latency.
var retrievalDuration = mustHistogram(
	otel.Meter("ethos/memory/retrieval").Float64Histogram(
		"ethos.memory.retrieval.duration",
		metric.WithDescription("Retrieval pipeline duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5),
	),
)

func mustHistogram(h metric.Float64Histogram, err error) metric.Float64Histogram {
	if err != nil {
		return nil
	}
	return h
}

// Retrieve runs one retrieval request end to end.
func (r *Retriever) Retrieve(ctx context.Context, q Query) (*Response, error) {
	ctx, span := retrievalTracer.Start(ctx, "memory.Retrieve", trace.WithAttributes(
		attribute.Bool("use_spreading", q.UseSpreading),
	))
	defer span.End()

	start := time.Now()
	mode := "cosine"
	if q.UseSpreading {
		mode = "spreading"
	}

	resp, err := r.retrieve(ctx, q, start)
	if err != nil {
		span.RecordError(err)
	} else if resp != nil {
		span.SetAttributes(attribute.Int("result_count", resp.Count))
	}
	status := "ok"
	count := 0
	if err != nil {
		status = "error"
	} else if resp != nil {
		count = resp.Count
	}
	if r.metrics != nil {
		r.metrics.RecordRetrieval(mode, status, time.Since(start), count)
	}
	if retrievalDuration != nil {
		retrievalDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("mode", mode), attribute.String("status", status)))
	}
	return resp, err
}

func (r *Retriever) retrieve(ctx context.Context, q Query, start time.Time) (*Response, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, types.NewError(types.ErrBadRequest, "query must not be empty")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}
	if limit > 20 {
		limit = 20
	}

	queryVec, err := r.gateway.Embed(ctx, text, embedding.TaskModeQuery)
	if err != nil {
		return nil, err
	}
	if queryVec == nil {
		return nil, types.NewError(types.ErrEmbeddingUnavailable, "query embedding unavailable")
	}

	anchors, err := r.cosineAnchors(ctx, Embedding(queryVec))
	if err != nil {
		return nil, err
	}

	if len(anchors) == 0 {
		return &Response{Results: []Result{}, Query: text, Count: 0, TookMs: elapsedMs(start)}, nil
	}

	var ranked []Result
	if !q.UseSpreading {
		ranked = anchorsToResults(anchors)
	} else {
		ranked, err = r.spreadingActivation(ctx, anchors)
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
	})

	if q.MinScore != nil {
		filtered := ranked[:0:0]
		for _, res := range ranked {
			if res.Score >= *q.MinScore {
				filtered = append(filtered, res)
			}
		}
		ranked = filtered
	}

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	if r.ltp != nil {
		hits := make([]Hit, 0, len(ranked))
		for _, res := range ranked {
			hits = append(hits, Hit{SourceType: res.Source, ID: res.ID})
		}
		r.ltp.Trigger(context.Background(), hits)
	}

	return &Response{Results: ranked, Query: text, Count: len(ranked), TookMs: elapsedMs(start)}, nil
}

type anchor struct {
	vector *MemoryVector
	score  float64
}

func (r *Retriever) cosineAnchors(ctx context.Context, queryVec Embedding) ([]anchor, error) {
	candidates, err := r.store.SearchableVectors(ctx, nil, 0)
	if err != nil {
		return nil, err
	}

	topK := r.params.AnchorTopK
	if topK <= 0 {
		topK = 10
	}

	anchors := make([]anchor, 0, len(candidates))
	for _, c := range candidates {
		if c.Embedding == nil || c.Pruned {
			continue
		}
		sim := clamp01(cosineSimilarity(queryVec, *c.Embedding))
		anchors = append(anchors, anchor{vector: c, score: sim})
	}

	sort.Slice(anchors, func(i, j int) bool { return anchors[i].score > anchors[j].score })
	if len(anchors) > topK {
		anchors = anchors[:topK]
	}
	return anchors, nil
}

func anchorsToResults(anchors []anchor) []Result {
	out := make([]Result, 0, len(anchors))
	for _, a := range anchors {
		out = append(out, vectorToResult(a.vector, a.score))
	}
	return out
}

func vectorToResult(v *MemoryVector, score float64) Result {
	return Result{
		ID:        v.SourceID,
		Content:   v.ContentSnippet,
		Score:     score,
		Source:    v.SourceType,
		CreatedAt: v.CreatedAt,
	}
}

// spreadingActivation runs the double-buffered iterative propagation
// over a bounded subgraph touching the anchors, then scores every
// candidate node by the weighted sum of cosine, activation and
// structural signal.
func (r *Retriever) spreadingActivation(ctx context.Context, anchors []anchor) ([]Result, error) {
	nodeRefs := make([]graph.NodeRef, 0, len(anchors))
	byNode := make(map[graph.NodeRef]*anchor, len(anchors))
	for i := range anchors {
		ref := graph.NodeRef{Type: string(anchors[i].vector.SourceType), ID: anchors[i].vector.SourceID}
		nodeRefs = append(nodeRefs, ref)
		byNode[ref] = &anchors[i]
	}

	maxEdges := r.params.MaxCandidateEdges
	if maxEdges <= 0 {
		maxEdges = 500
	}
	edges, err := r.graph.BoundedSubgraph(ctx, nodeRefs, maxEdges)
	if err != nil {
		return nil, err
	}

	activation := make(map[graph.NodeRef]float64)
	cosScore := make(map[graph.NodeRef]float64)
	for _, ref := range nodeRefs {
		activation[ref] = byNode[ref].score
		cosScore[ref] = byNode[ref].score
	}

	outEdges := make(map[graph.NodeRef][]graph.Edge)
	inDegree := make(map[graph.NodeRef]int)
	for _, e := range edges {
		from := graph.NodeRef{Type: e.FromType, ID: e.FromID}
		to := graph.NodeRef{Type: e.ToType, ID: e.ToID}
		outEdges[from] = append(outEdges[from], e)
		inDegree[to]++
	}

	iterations := r.params.SpreadingIterations
	if iterations <= 0 {
		iterations = 3
	}
	strength := r.params.SpreadingStrength

	for i := 0; i < iterations; i++ {
		next := make(map[graph.NodeRef]float64, len(activation))
		for node, val := range activation {
			next[node] = val
		}
		for node, val := range activation {
			if val <= 0 {
				continue
			}
			for _, e := range outEdges[node] {
				to := graph.NodeRef{Type: e.ToType, ID: e.ToID}
				next[to] += val * e.Weight * strength
			}
		}
		activation = next
	}

	maxInDegree := 0
	for _, d := range inDegree {
		if d > maxInDegree {
			maxInDegree = d
		}
	}

	wSim, wAct, wStruct := r.params.CosineWeight, r.params.ActivationWeight, r.params.StructuralWeight

	// Candidate set is every node touched by either an anchor or the
	// bounded subgraph; nodes reached only via the graph need their
	// vector row resolved before they can be scored and returned.
	nodeVectors := make(map[graph.NodeRef]*MemoryVector, len(byNode))
	for ref, a := range byNode {
		nodeVectors[ref] = a.vector
	}
	for _, e := range edges {
		to := graph.NodeRef{Type: e.ToType, ID: e.ToID}
		if _, ok := nodeVectors[to]; ok {
			continue
		}
		v, err := r.store.GetVectorBySource(ctx, SourceType(to.Type), to.ID)
		if err != nil {
			r.logger.Warn("resolve graph node failed", zap.Error(err))
			continue
		}
		nodeVectors[to] = v
	}

	results := make([]Result, 0, len(nodeVectors))
	for ref, v := range nodeVectors {
		if v == nil || v.Pruned {
			continue // unresolved node, or since pruned since the subgraph was loaded
		}
		_, isAnchor := byNode[ref]
		// With strength == 0, propagation never raises a non-anchor's
		// activation above zero, so this also drops every node the
		// spreading pass didn't actually reach: the result set collapses
		// to anchors only, matching the non-spreading path.
		if !isAnchor && activation[ref] <= 0 {
			continue
		}

		final := wSim * cosScore[ref]
		if strength > 0 {
			structural := 0.0
			if maxInDegree > 0 {
				structural = float64(inDegree[ref]) / float64(maxInDegree)
			}
			final += wAct*activation[ref] + wStruct*structural
		}
		results = append(results, vectorToResult(v, clamp01(final)))
	}
	return results, nil
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
