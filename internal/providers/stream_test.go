package providers

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r *FrameReader) []string {
	t.Helper()
	var frames []string
	for {
		f, err := r.Next()
		if err == io.EOF {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, string(f))
	}
}

func TestFrameReader(t *testing.T) {
	t.Run("ndjson", func(t *testing.T) {
		body := io.NopCloser(strings.NewReader("{\"a\":1}\n\n  {\"b\":2}  \n"))
		frames := readAll(t, NewFrameReader(body, FrameNDJSON))
		assert.Equal(t, []string{`{"a":1}`, `{"b":2}`}, frames)
	})

	t.Run("sse with and without space", func(t *testing.T) {
		body := io.NopCloser(strings.NewReader("data: {\"a\":1}\n\ndata:{\"b\":2}\nid: 7\ndata: [DONE]\ndata: {\"c\":3}\n"))
		frames := readAll(t, NewFrameReader(body, FrameSSE))
		assert.Equal(t, []string{`{"a":1}`, `{"b":2}`}, frames)
	})

	t.Run("sse without done marker ends at eof", func(t *testing.T) {
		body := io.NopCloser(strings.NewReader("data: {\"a\":1}\n"))
		frames := readAll(t, NewFrameReader(body, FrameSSE))
		assert.Equal(t, []string{`{"a":1}`}, frames)
	})
}

func TestNormalizeFinishReason(t *testing.T) {
	assert.Equal(t, FinishStop, normalizeFinishReason("stop"))
	assert.Equal(t, FinishStop, normalizeFinishReason("eos"))
	assert.Equal(t, FinishLength, normalizeFinishReason("length"))
	assert.Equal(t, FinishFiltered, normalizeFinishReason("content_filter"))
	assert.Equal(t, "", normalizeFinishReason(""))
}
