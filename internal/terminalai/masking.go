package terminalai

import (
	"strings"

	"jaterm_gateway/internal/providers"
	"jaterm_gateway/internal/secrets"
)

const (
	pemBegin = "-----BEGIN"
	pemEnd   = "-----END"
)

// maskedStream forwards streamed text one complete line at a time, masked.
// Mask patterns stay within a line except PEM blocks, which are held until
// their END marker arrives.
type maskedStream struct {
	next    providers.ChunkHandler
	pending strings.Builder
}

func newMaskedStream(next providers.ChunkHandler) *maskedStream {
	return &maskedStream{next: next}
}

func (m *maskedStream) write(chunk string) error {
	m.pending.WriteString(chunk)
	buffered := m.pending.String()

	cut := strings.LastIndexByte(buffered, '\n')
	if cut < 0 {
		return nil
	}
	head := buffered[:cut+1]
	if strings.Count(head, pemBegin) > strings.Count(head, pemEnd) {
		return nil
	}

	m.pending.Reset()
	m.pending.WriteString(buffered[cut+1:])
	return m.next(secrets.Mask(head))
}

// flush emits whatever is left once the stream has ended
func (m *maskedStream) flush() error {
	rest := m.pending.String()
	m.pending.Reset()
	if rest == "" {
		return nil
	}
	return m.next(secrets.Mask(rest))
}
