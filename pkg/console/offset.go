package console

import (
	"log/slog"
	"sync"
)

// OffsetTracker holds how much of the remote stream has been consumed.
// It is independent of the transcript, which may have dropped data.
type OffsetTracker struct {
	mu     sync.Mutex
	offset uint64
}

// NewOffsetTracker starts at start, e.g. the length already rendered
func NewOffsetTracker(start uint64) *OffsetTracker {
	return &OffsetTracker{offset: start}
}

func (o *OffsetTracker) Offset() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.offset
}

// Advance records a consumed chunk. A host-reported cumulative position
// wins over the chunk size; a report behind the current offset is ignored.
func (o *OffsetTracker) Advance(consumed int, reported *uint64) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case reported == nil:
		o.offset += uint64(consumed)
	case *reported < o.offset:
		slog.Warn("ignoring stream position behind the consumed offset",
			slog.Uint64("offset", o.offset),
			slog.Uint64("reported", *reported),
		)
	default:
		o.offset = *reported
	}
	return o.offset
}

// Rebase moves the offset unconditionally. Only used when the host announces
// that its stream restarted.
func (o *OffsetTracker) Rebase(offset uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	slog.Info("stream offset rebased", slog.Uint64("from", o.offset), slog.Uint64("to", offset))
	o.offset = offset
}
