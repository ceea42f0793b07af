package terminal

import "sync"

// Buffer retains recent output chunks for replay to clients that attach
// after the process has already produced output. It is bounded by chunk
// count and total bytes, evicting oldest first — recent history, not a
// transcript. Snapshot does not consume: every late attacher sees the
// same retained history.
type Buffer struct {
	mu        sync.Mutex
	chunks    []string
	bytes     int
	maxChunks int
	maxBytes  int
}

// NewBuffer creates a buffer capped at maxChunks entries and maxBytes
// total retained bytes. Non-positive caps fall back to defaults.
func NewBuffer(maxChunks, maxBytes int) *Buffer {
	if maxChunks <= 0 {
		maxChunks = 1000
	}
	if maxBytes <= 0 {
		maxBytes = 256 * 1024
	}
	return &Buffer{maxChunks: maxChunks, maxBytes: maxBytes}
}

// Append records one output chunk, evicting oldest chunks while over cap.
func (b *Buffer) Append(chunk string) {
	if chunk == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = append(b.chunks, chunk)
	b.bytes += len(chunk)

	for len(b.chunks) > b.maxChunks || (b.bytes > b.maxBytes && len(b.chunks) > 1) {
		b.bytes -= len(b.chunks[0])
		b.chunks = b.chunks[1:]
	}
}

// Snapshot returns the retained chunks in emission order.
func (b *Buffer) Snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.chunks))
	copy(out, b.chunks)
	return out
}

// Size returns the number of bytes currently retained.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytes
}
