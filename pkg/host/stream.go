package host

import (
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	// DefaultMaxRetained bounds the bytes a stream keeps in memory
	DefaultMaxRetained = 1 << 20
	// DefaultReadChunk bounds the bytes returned by one read
	DefaultReadChunk = 50000
)

// Slice is the result of Stream.ReadFrom
type Slice struct {
	Data      string
	Offset    uint64 // absolute position right after Data
	Len       uint64 // total bytes ever appended
	Truncated bool   // requested offset was older than the retained window
	Reset     bool   // requested offset was beyond the end of the stream
}

// Stream is an append-only byte stream addressed by absolute offsets.
// Only the most recent maxRetained bytes are kept; offsets of retained
// bytes never change when older bytes are dropped.
type Stream struct {
	mu          sync.RWMutex
	buf         []byte
	base        uint64 // absolute offset of buf[0]
	maxRetained int
	changed     chan struct{}
}

// NewStream creates a stream retaining at most maxRetained bytes
func NewStream(maxRetained int) *Stream {
	if maxRetained <= 0 {
		maxRetained = DefaultMaxRetained
	}
	return &Stream{
		maxRetained: maxRetained,
		changed:     make(chan struct{}),
	}
}

// Append adds text to the end of the stream and wakes waiters.
// Invalid UTF-8 is replaced so every served slice survives JSON encoding.
func (s *Stream) Append(text string) {
	if text == "" {
		return
	}
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}

	s.mu.Lock()
	s.buf = append(s.buf, text...)
	if over := len(s.buf) - s.maxRetained; over > 0 {
		cut := runeStartAtOrAfter(s.buf, over)
		s.buf = append([]byte(nil), s.buf[cut:]...)
		s.base += uint64(cut)
	}
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

// Len returns the total number of bytes ever appended
func (s *Stream) Len() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base + uint64(len(s.buf))
}

// Changed returns a channel that is closed by the next Append
func (s *Stream) Changed() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

// ReadFrom returns at most max bytes starting at the absolute offset.
// A chunk limited by max is cut back to a rune boundary.
func (s *Stream) ReadFrom(offset uint64, max int) Slice {
	if max <= 0 {
		max = DefaultReadChunk
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.base + uint64(len(s.buf))
	out := Slice{Len: total}

	switch {
	case offset > total:
		out.Reset = true
		offset = s.base
	case offset < s.base:
		out.Truncated = true
		offset = s.base
	}

	start := int(offset - s.base)
	end := len(s.buf)
	if end-start > max {
		end = runeStartAtOrBefore(s.buf, start+max)
		if end <= start {
			// a single rune wider than max; serve it whole
			end = runeStartAtOrAfter(s.buf, start+1)
		}
	}

	out.Data = string(s.buf[start:end])
	out.Offset = offset + uint64(end-start)
	return out
}

func runeStartAtOrAfter(b []byte, i int) int {
	for i < len(b) && !utf8.RuneStart(b[i]) {
		i++
	}
	return i
}

func runeStartAtOrBefore(b []byte, i int) int {
	if i >= len(b) {
		return len(b)
	}
	for i > 0 && !utf8.RuneStart(b[i]) {
		i--
	}
	return i
}
