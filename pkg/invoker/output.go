package invoker

import (
	"bytes"
	"sync"
)

// boundedBuffer captures output up to limit bytes. Anything past the limit is
// discarded (the write still succeeds so the pipe keeps draining) and
// onOverflow is called once.
type boundedBuffer struct {
	mu         sync.Mutex
	buf        bytes.Buffer
	limit      int
	overflowed bool
	onOverflow func()
}

func newBoundedBuffer(limit int, onOverflow func()) *boundedBuffer {
	return &boundedBuffer{
		limit:      limit,
		onOverflow: onOverflow,
	}
}

// Write implements io.Writer.
func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.overflowed {
		return len(p), nil
	}

	if room := b.limit - b.buf.Len(); len(p) > room {
		b.buf.Write(p[:room])
		b.overflowed = true
		if b.onOverflow != nil {
			b.onOverflow()
		}
		return len(p), nil
	}

	return b.buf.Write(p)
}

// Bytes returns a copy of the captured output.
func (b *boundedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

// String returns the captured output.
func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Overflowed reports whether output was discarded.
func (b *boundedBuffer) Overflowed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overflowed
}
