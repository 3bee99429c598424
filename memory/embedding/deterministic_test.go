package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeterministicProvider_SameInputSameOutput(t *testing.T) {
	t.Parallel()

	p := NewDeterministicProvider(16)
	a, err := p.Embed(context.Background(), "hello world", TaskModeDocument)
	require.NoError(t, err)
	b, err := p.Embed(context.Background(), "hello world", TaskModeDocument)
	require.NoError(t, err)

	require.Equal(t, a, b)
	require.Len(t, a, 16)
}

func TestDeterministicProvider_DifferentModeDifferentOutput(t *testing.T) {
	t.Parallel()

	p := NewDeterministicProvider(16)
	doc, err := p.Embed(context.Background(), "hello world", TaskModeDocument)
	require.NoError(t, err)
	query, err := p.Embed(context.Background(), "hello world", TaskModeQuery)
	require.NoError(t, err)

	require.NotEqual(t, doc, query)
}

func TestDeterministicProvider_ValuesWithinExpectedRange(t *testing.T) {
	t.Parallel()

	p := NewDeterministicProvider(32)
	vec, err := p.Embed(context.Background(), "bounded range check", TaskModeDocument)
	require.NoError(t, err)

	for _, v := range vec {
		require.GreaterOrEqual(t, v, float32(-0.5))
		require.Less(t, v, float32(0.5))
	}
}

func TestDeterministicProvider_NameAndDimensions(t *testing.T) {
	t.Parallel()

	p := NewDeterministicProvider(8)
	require.Equal(t, "deterministic", p.Name())
	require.Equal(t, 8, p.Dimensions())
}
