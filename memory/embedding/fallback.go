package embedding

import "context"

// FallbackWrapper wraps a Provider and converts any error into a nil
// vector with no error, implementing the spec's "Primary-with-graceful-
// fallback" configuration: the caller stores a NULL embedding and the
// memory remains keyword-searchable rather than failing the write.
type FallbackWrapper struct {
	inner Provider
}

// NewFallbackWrapper wraps inner in graceful-fallback semantics.
func NewFallbackWrapper(inner Provider) *FallbackWrapper {
	return &FallbackWrapper{inner: inner}
}

func (f *FallbackWrapper) Name() string    { return f.inner.Name() + "/fallback" }
func (f *FallbackWrapper) Dimensions() int { return f.inner.Dimensions() }

// Embed returns (nil, nil) on inner failure instead of propagating the
// error — callers must distinguish "no embedding" from "failed" by
// checking for a nil vector, not a non-nil error.
func (f *FallbackWrapper) Embed(ctx context.Context, text string, mode TaskMode) ([]float32, error) {
	vec, err := f.inner.Embed(ctx, text, mode)
	if err != nil {
		return nil, nil
	}
	return vec, nil
}
