package socket

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadFrame_RoundTrip(t *testing.T) {
	t.Parallel()

	in := Map{
		"verb":       "ingest",
		"session_id": int64(42),
		"score":      0.987654321,
		"ok":         true,
		"payload":    []byte{1, 2, 3, 4},
		"tags":       []any{"a", "b", "c"},
		"nested": Map{
			"inner": "value",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, in))

	out, err := ReadFrame(&buf)
	require.NoError(t, err)

	require.Equal(t, in["verb"], out["verb"])
	require.Equal(t, in["session_id"], out["session_id"])
	require.InDelta(t, in["score"].(float64), out["score"].(float64), 1e-12)
	require.Equal(t, in["ok"], out["ok"])
	require.Equal(t, in["payload"], out["payload"])
	require.Equal(t, in["tags"], out["tags"])
	require.Equal(t, in["nested"], out["nested"])
}

func TestWriteReadFrame_EmptyMap(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Map{}))

	out, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestReadFrame_OversizedFrameRejected(t *testing.T) {
	t.Parallel()

	var lenBuf [4]byte
	lenBuf[0], lenBuf[1], lenBuf[2], lenBuf[3] = 0xff, 0xff, 0xff, 0x7f
	r := bytes.NewReader(lenBuf[:])

	_, err := ReadFrame(r)
	require.Error(t, err)
	require.Contains(t, err.Error(), "exceeds limit")
}

func TestReadFrame_TruncatedPayload(t *testing.T) {
	t.Parallel()

	_, err := ReadFrame(strings.NewReader("\x10\x00\x00\x00short"))
	require.Error(t, err)
}

func TestIntIsEncodedAsInt64(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Map{"n": 7}))

	out, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(7), out["n"])
}
