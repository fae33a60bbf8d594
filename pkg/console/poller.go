package console

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/labring/devbox-console/pkg/errors"
)

const (
	DefaultPollInterval = time.Second
	DefaultKickDelay    = 100 * time.Millisecond
)

// Stream conditions reported to the Listener as notices
var (
	ErrStreamTruncated = stderrors.New("output was discarded by the host before it could be read")
	ErrStreamReset     = stderrors.New("the host restarted the output stream")
)

// Chunk is one read of a target's output
type Chunk struct {
	Data string
	// Offset is the host's cumulative stream position right after Data.
	// Nil when the host does not report one.
	Offset    *uint64
	More      bool // the host holds more data past Offset
	Truncated bool // part of the requested range was already discarded
	Reset     bool // the requested offset was unknown; Data starts over
}

// LogReader reads a target's output from offset
type LogReader interface {
	ReadLog(ctx context.Context, s Session, target string, offset uint64) (Chunk, error)
}

// Listener receives the effects of poll cycles. Calls are made from the
// poller goroutine and must not block.
type Listener interface {
	OnAppend(AppendResult)
	OnNotice(error)
}

// PollerConfig sets the cadence of a Poller
type PollerConfig struct {
	Interval  time.Duration
	KickDelay time.Duration
}

// Poller keeps one target's transcript up to date. One goroutine, the one
// running Run, owns every state change; fetches never overlap.
type Poller struct {
	reader     LogReader
	session    Session
	target     string
	transcript *Transcript
	tracker    *OffsetTracker
	listener   Listener
	interval   time.Duration
	kickDelay  time.Duration

	kick chan struct{}
}

type fetchResult struct {
	chunk Chunk
	err   error
}

// NewPoller creates a poller; nothing happens until Run
func NewPoller(reader LogReader, s Session, target string, transcript *Transcript, tracker *OffsetTracker, listener Listener, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.KickDelay <= 0 {
		cfg.KickDelay = DefaultKickDelay
	}
	return &Poller{
		reader:     reader,
		session:    s,
		target:     target,
		transcript: transcript,
		tracker:    tracker,
		listener:   listener,
		interval:   cfg.Interval,
		kickDelay:  cfg.KickDelay,
		kick:       make(chan struct{}, 1),
	}
}

// Kick requests one extra poll after the kick delay. Kicks that arrive
// before the previous one is handled collapse into it.
func (p *Poller) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run polls immediately and then on every tick until ctx is cancelled or a
// terminal error occurs. It returns that terminal error, or nil when
// cancelled. A fetch still in flight at cancellation is never applied.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var (
		results   = make(chan fetchResult, 1)
		fetching  bool
		pending   bool
		kickTimer *time.Timer
		kickFired <-chan time.Time
	)
	defer func() {
		if kickTimer != nil {
			kickTimer.Stop()
		}
	}()

	start := func() {
		fetching = true
		offset := p.tracker.Offset()
		go func() {
			chunk, err := p.reader.ReadLog(ctx, p.session, p.target, offset)
			results <- fetchResult{chunk: chunk, err: err}
		}()
	}

	start()
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			if fetching {
				slog.Debug("poll skipped, fetch in flight", slog.String("target", p.target))
				continue
			}
			start()

		case <-p.kick:
			if kickTimer == nil {
				kickTimer = time.NewTimer(p.kickDelay)
				kickFired = kickTimer.C
			}

		case <-kickFired:
			kickTimer, kickFired = nil, nil
			if fetching {
				pending = true
				continue
			}
			start()

		case r := <-results:
			fetching = false
			if ctx.Err() != nil {
				return nil
			}
			if err := p.apply(r); err != nil {
				return err
			}
			if pending || (r.err == nil && r.chunk.More) {
				pending = false
				start()
			}
		}
	}
}

// apply folds one fetch result into the transcript and offset. It returns
// only terminal errors.
func (p *Poller) apply(r fetchResult) error {
	if r.err != nil {
		if errors.IsTerminal(r.err) {
			slog.Info("polling stopped", slog.String("target", p.target), slog.String("error", r.err.Error()))
			return r.err
		}
		slog.Warn("poll failed", slog.String("target", p.target), slog.String("error", r.err.Error()))
		p.listener.OnNotice(r.err)
		return nil
	}

	chunk := r.chunk

	// a restarted host may answer with no data yet; the rebase still applies
	// or every later read asks past the end of the new stream
	if chunk.Reset && chunk.Offset != nil {
		res := p.transcript.Append(chunk.Data)
		p.tracker.Rebase(*chunk.Offset)
		if chunk.Data != "" {
			p.listener.OnAppend(res)
		}
		p.listener.OnNotice(ErrStreamReset)
		return nil
	}

	if chunk.Data == "" {
		return nil
	}

	// append first: the offset must never pass data that was not rendered
	res := p.transcript.Append(chunk.Data)
	p.tracker.Advance(len(chunk.Data), chunk.Offset)
	p.listener.OnAppend(res)

	switch {
	case chunk.Reset:
		p.listener.OnNotice(ErrStreamReset)
	case chunk.Truncated:
		p.listener.OnNotice(ErrStreamTruncated)
	}
	return nil
}
