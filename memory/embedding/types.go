// Package embedding provides the embedding gateway: a capability
// interface mapping text to a fixed-dimension unit vector, pluggable
// providers, shared retry/backoff, and a shared rate limiter so the
// embedder worker, retrieval's query embedding, and the link builder
// never thunder a single upstream provider.
package embedding

import "context"

// TaskMode selects which embedding sub-space a provider should target.
type TaskMode string

const (
	TaskModeDocument TaskMode = "document"
	TaskModeQuery    TaskMode = "query"
)

// Provider is the abstract embedding capability every gateway backend
// implements: embed(text, mode) -> vector, with a declared fixed
// dimension. Mixing dimensions across calls to the same provider is a
// caller error; the gateway does not check the length of returned
// vectors.
type Provider interface {
	// Embed returns a unit vector for text in the given task mode, or an
	// error if the provider cannot produce one.
	Embed(ctx context.Context, text string, mode TaskMode) ([]float32, error)

	// Dimensions returns this provider's fixed embedding length.
	Dimensions() int

	// Name identifies the provider for logging and metrics labels.
	Name() string
}
