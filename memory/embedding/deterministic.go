package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// DeterministicProvider is the offline "Local" configuration: a
// dependency-free embedder that hashes content into a fixed-dimension
// unit vector. Grounded on the pack's mock inference engine's
// sha256-based pseudo-embedding generator, with the output scaled to
// unit length; useful as the
// default backend for local development and ingest-path contract tests.
type DeterministicProvider struct {
	dimensions int
}

// NewDeterministicProvider constructs a DeterministicProvider with the
// given fixed output dimension.
func NewDeterministicProvider(dimensions int) *DeterministicProvider {
	return &DeterministicProvider{dimensions: dimensions}
}

func (p *DeterministicProvider) Name() string    { return "deterministic" }
func (p *DeterministicProvider) Dimensions() int { return p.dimensions }

func (p *DeterministicProvider) Embed(ctx context.Context, text string, mode TaskMode) ([]float32, error) {
	h := sha256.Sum256([]byte(string(mode) + "\n" + text))
	vec := make([]float32, p.dimensions)
	var norm float64
	for j := 0; j < p.dimensions; j++ {
		u := binary.LittleEndian.Uint32(h[(j*4)%len(h):])
		vec[j] = float32(u%10_000)/10_000.0 - 0.5
		norm += float64(vec[j]) * float64(vec[j])
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for j := range vec {
			vec[j] *= inv
		}
	}
	return vec, nil
}
