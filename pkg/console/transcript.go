package console

import (
	"sync"
	"unicode/utf8"
)

// DefaultTranscriptCap is the number of bytes a transcript retains
const DefaultTranscriptCap = 50000

// AppendResult describes the effect of one Append
type AppendResult struct {
	Appended       int  // bytes added
	Dropped        int  // bytes removed from the front
	ScrollToBottom bool // the view should follow the new tail
}

// Transcript is the bounded local copy of a target's output. When it grows
// past its cap, the oldest bytes are dropped.
//
// The inspecting flag is set while the operator's pointer is over the view;
// appends then leave the scroll position alone.
type Transcript struct {
	mu         sync.RWMutex
	buf        []byte
	cap        int
	inspecting bool
}

// NewTranscript creates a transcript holding at most limit bytes
func NewTranscript(limit int) *Transcript {
	if limit <= 0 {
		limit = DefaultTranscriptCap
	}
	return &Transcript{cap: limit}
}

// Append adds text at the end and trims the front back under the cap.
// The cut is moved forward to a rune start, so multi-byte text can end up
// a few bytes under the cap.
func (t *Transcript) Append(text string) AppendResult {
	if text == "" {
		return AppendResult{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, text...)
	res := AppendResult{Appended: len(text), ScrollToBottom: !t.inspecting}

	if over := len(t.buf) - t.cap; over > 0 {
		cut := over
		for cut < len(t.buf) && !utf8.RuneStart(t.buf[cut]) {
			cut++
		}
		// copy so the dropped prefix can be collected
		t.buf = append(make([]byte, 0, t.cap), t.buf[cut:]...)
		res.Dropped = cut
	}
	return res
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.buf)
}

func (t *Transcript) Cap() int { return t.cap }

func (t *Transcript) String() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return string(t.buf)
}

// SetInspecting switches between following the tail and inspecting history
func (t *Transcript) SetInspecting(inspecting bool) {
	t.mu.Lock()
	t.inspecting = inspecting
	t.mu.Unlock()
}

func (t *Transcript) Inspecting() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.inspecting
}
