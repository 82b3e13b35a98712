package providers

import (
	"bufio"
	"bytes"
	"io"
)

const maxFrameSize = 1 << 20

// FrameFormat selects how a streaming body is split into frames.
type FrameFormat int

const (
	// FrameNDJSON is one JSON object per line (Ollama).
	FrameNDJSON FrameFormat = iota
	// FrameSSE is "data:" prefixed lines terminated by [DONE] (OpenAI, vLLM).
	FrameSSE
)

var (
	ssePrefix   = []byte("data:")
	sseDoneMark = []byte("[DONE]")
)

// FrameReader yields raw frame payloads from a streaming response body.
type FrameReader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	format  FrameFormat
}

// NewFrameReader wraps a streaming body
func NewFrameReader(r io.ReadCloser, format FrameFormat) *FrameReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	return &FrameReader{
		scanner: scanner,
		closer:  r,
		format:  format,
	}
}

// Next returns the next frame payload, or io.EOF at end of stream.
// Blank lines and non-data SSE fields (event:, id:, comments) are not frames.
func (s *FrameReader) Next() ([]byte, error) {
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		if s.format == FrameNDJSON {
			return line, nil
		}

		if !bytes.HasPrefix(line, ssePrefix) {
			continue
		}
		data := bytes.TrimSpace(bytes.TrimPrefix(line, ssePrefix))
		if bytes.Equal(data, sseDoneMark) {
			return nil, io.EOF
		}
		if len(data) == 0 {
			continue
		}
		return data, nil
	}

	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Close closes the underlying body
func (s *FrameReader) Close() error {
	return s.closer.Close()
}
