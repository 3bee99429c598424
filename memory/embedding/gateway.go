package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Modern-Method/Ethos/types"
)

// Gateway is the injected embedding capability every component that
// needs to embed text holds a reference to: the embedder worker,
// retrieval's query embedding, and the associative link builder all
// share the same Gateway instance and therefore the same rate limiter,
// so none of them can individually thunder the upstream provider.
type Gateway struct {
	provider Provider
	limiter  *rate.Limiter
	retryer  *backoffRetryer
	strict   bool
	logger   *zap.Logger
}

// GatewayConfig configures a Gateway.
type GatewayConfig struct {
	Provider Provider
	Policy   RetryPolicy
	RateRPS  float64
	RateBurst int
	// Strict, if true, surfaces EmbeddingUnavailable on failure instead
	// of returning a nil vector. Retrieval does not rely on this flag: it
	// turns a nil query vector into EmbeddingUnavailable itself, since
	// queries cannot proceed without one. Ingest-path callers typically
	// wrap provider in a FallbackWrapper instead and run the gateway
	// non-strict.
	Strict bool
	Logger *zap.Logger
}

// NewGateway constructs a Gateway over the given provider.
func NewGateway(cfg GatewayConfig) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rps := cfg.RateRPS
	if rps <= 0 {
		rps = 20
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = int(rps) * 2
	}
	return &Gateway{
		provider: cfg.Provider,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		retryer:  newBackoffRetryer(cfg.Policy, logger),
		strict:   cfg.Strict,
		logger:   logger.With(zap.String("component", "embedding_gateway")),
	}
}

// Dimensions returns the gateway's fixed embedding dimension.
func (g *Gateway) Dimensions() int { return g.provider.Dimensions() }

// Name returns the underlying provider's model tag, stored alongside
// each filled embedding so a later provider switch can be detected.
func (g *Gateway) Name() string { return g.provider.Name() }

// Embed maps text to a vector, respecting the shared token bucket and
// the configured retry policy. On exhausted retries: in strict mode
// returns EmbeddingUnavailable; otherwise returns a nil vector and no
// error, per the graceful-fallback contract.
func (g *Gateway) Embed(ctx context.Context, text string, mode TaskMode) ([]float32, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	vec, err := g.retryer.Do(ctx, func() ([]float32, error) {
		return g.provider.Embed(ctx, text, mode)
	})
	if err != nil {
		g.logger.Warn("embedding failed after retries", zap.Error(err), zap.String("mode", string(mode)))
		if g.strict {
			return nil, types.NewError(types.ErrEmbeddingUnavailable, fmt.Sprintf("embedding unavailable: %v", err)).WithCause(err)
		}
		return nil, nil
	}
	return vec, nil
}
