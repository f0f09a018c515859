package server

import (
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------

// statelessTransport buffers the frames one request produces and renders
// them as a single JSON array reply.
type statelessTransport struct {
	mu     sync.Mutex
	frames []string
	addr   string
}

func newStatelessTransport(addr string) *statelessTransport {
	return &statelessTransport{addr: addr}
}

// -----------------------------------------------------------------------------

func (t *statelessTransport) Send(text string) {
	if text == "h" {
		// heartbeat echo is a bare string on persistent links; quote it
		// so the batched reply stays valid JSON
		text = `"h"`
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames = append(t.frames, text)
}

func (t *statelessTransport) Stateless() bool {
	return true
}

func (t *statelessTransport) RemoteAddress() string {
	return t.addr
}

func (t *statelessTransport) Close() {}

// -----------------------------------------------------------------------------

// Flush renders the buffered frames; each element is already JSON text.
func (t *statelessTransport) Flush() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return "[" + strings.Join(t.frames, ",") + "]"
}
