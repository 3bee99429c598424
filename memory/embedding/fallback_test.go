package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name string
	dims int
	vec  []float32
	err  error
}

func (s *stubProvider) Name() string    { return s.name }
func (s *stubProvider) Dimensions() int { return s.dims }
func (s *stubProvider) Embed(ctx context.Context, text string, mode TaskMode) ([]float32, error) {
	return s.vec, s.err
}

func TestFallbackWrapper_PassesThroughOnSuccess(t *testing.T) {
	t.Parallel()

	inner := &stubProvider{name: "primary", dims: 4, vec: []float32{1, 2, 3, 4}}
	w := NewFallbackWrapper(inner)

	vec, err := w.Embed(context.Background(), "hello", TaskModeDocument)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3, 4}, vec)
}

func TestFallbackWrapper_SwallowsErrorAsNilVector(t *testing.T) {
	t.Parallel()

	inner := &stubProvider{name: "primary", dims: 4, err: errors.New("upstream unavailable")}
	w := NewFallbackWrapper(inner)

	vec, err := w.Embed(context.Background(), "hello", TaskModeDocument)
	require.NoError(t, err)
	require.Nil(t, vec)
}

func TestFallbackWrapper_NameAndDimensionsDelegate(t *testing.T) {
	t.Parallel()

	inner := &stubProvider{name: "primary", dims: 8}
	w := NewFallbackWrapper(inner)

	require.Equal(t, "primary/fallback", w.Name())
	require.Equal(t, 8, w.Dimensions())
}
