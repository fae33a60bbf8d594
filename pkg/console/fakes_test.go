package console

import (
	"context"
	"sync"
	"sync/atomic"
)

// fakeHost serves a growing stream the way the host's data endpoint does
type fakeHost struct {
	mu       sync.Mutex
	stream   string
	chunk    int
	errs     []error // returned, in order, before serving data
	served   []string
	offsets  []uint64
	gate     chan struct{} // when set, each read waits for a token
	stubborn bool          // keep waiting for the gate after cancellation
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeHost) write(s string) {
	f.mu.Lock()
	f.stream += s
	f.mu.Unlock()
}

func (f *fakeHost) ReadLog(ctx context.Context, s Session, target string, offset uint64) (Chunk, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if f.gate != nil && f.stubborn {
		<-f.gate
	} else if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return Chunk{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, offset)

	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return Chunk{}, err
	}

	total := uint64(len(f.stream))
	if offset > total {
		offset = total
	}
	end := total
	if f.chunk > 0 && end-offset > uint64(f.chunk) {
		end = offset + uint64(f.chunk)
	}
	data := f.stream[offset:end]
	f.served = append(f.served, data)
	return Chunk{Data: data, Offset: &end, More: end < total}, nil
}

func (f *fakeHost) servedData() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.served...)
}

type fakeExecutor struct {
	mu       sync.Mutex
	commands []string
	err      error
	onExec   func(string)
}

func (f *fakeExecutor) Exec(ctx context.Context, s Session, target, command string) error {
	f.mu.Lock()
	f.commands = append(f.commands, command)
	err, hook := f.err, f.onExec
	f.mu.Unlock()
	if err == nil && hook != nil {
		hook(command)
	}
	return err
}

func (f *fakeExecutor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commands)
}

type fakeNavigator struct {
	login   atomic.Int32
	listing atomic.Int32
}

func (n *fakeNavigator) ToLogin()   { n.login.Add(1) }
func (n *fakeNavigator) ToListing() { n.listing.Add(1) }

type recordingListener struct {
	mu      sync.Mutex
	appends []AppendResult
	notices []error
}

func (l *recordingListener) OnAppend(r AppendResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appends = append(l.appends, r)
}

func (l *recordingListener) OnNotice(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notices = append(l.notices, err)
}

func (l *recordingListener) Notify(err error) { l.OnNotice(err) }

func (l *recordingListener) noticeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.notices)
}

func loggedIn() *SessionContext {
	store := &MemoryStore{}
	_ = store.Save(Session{Identity: "admin", Credential: "token"})
	sc, _ := NewSessionContext(store)
	return sc
}
