package console

import (
	"context"
	"log/slog"
	"sync"

	"github.com/labring/devbox-console/pkg/errors"
)

// ErrNoTarget is returned by Open when no target was selected
var ErrNoTarget = errors.NewPreconditionError("no target selected")

// Navigator moves the operator between views
type Navigator interface {
	ToLogin()
	ToListing()
}

// Notifier shows a non-blocking notice to the operator
type Notifier interface {
	Notify(err error)
}

// ViewConfig tunes a console view
type ViewConfig struct {
	TranscriptCap int
	Poll          PollerConfig
	// StartOffset resumes a stream whose first bytes were already rendered
	StartOffset uint64
}

// ViewDeps are the collaborators of a console view
type ViewDeps struct {
	Session   *SessionContext
	Reader    LogReader
	Executor  CommandExecutor
	Navigator Navigator
	Notifier  Notifier
	// OnAppend is called after each non-empty append. Optional.
	OnAppend func(AppendResult)
	Config   ViewConfig
}

// View is the console for one target. It owns the transcript, the offset,
// the poller goroutine and the dispatcher; Close tears all of them down.
type View struct {
	target     string
	session    *SessionContext
	navigator  Navigator
	notifier   Notifier
	onAppend   func(AppendResult)
	transcript *Transcript
	tracker    *OffsetTracker
	poller     *Poller
	dispatcher *Dispatcher

	cancel   context.CancelFunc
	done     chan struct{}
	termOnce sync.Once
	mu       sync.Mutex
	err      error
}

// Open starts polling target. An empty target sends the operator back to
// the listing and a missing session to login, both before any request.
func Open(ctx context.Context, target string, deps ViewDeps) (*View, error) {
	if target == "" {
		deps.Navigator.ToListing()
		return nil, ErrNoTarget
	}
	if !deps.Session.IsAuthenticated() {
		if err := deps.Session.Clear(); err != nil {
			slog.Error("failed to clear session", slog.String("error", err.Error()))
		}
		deps.Navigator.ToLogin()
		return nil, errors.NewUnauthenticatedError()
	}

	v := &View{
		target:     target,
		session:    deps.Session,
		navigator:  deps.Navigator,
		notifier:   deps.Notifier,
		onAppend:   deps.OnAppend,
		transcript: NewTranscript(deps.Config.TranscriptCap),
		tracker:    NewOffsetTracker(deps.Config.StartOffset),
		done:       make(chan struct{}),
	}

	// the session is fixed for the lifetime of the view
	s := deps.Session.Session()
	v.poller = NewPoller(deps.Reader, s, target, v.transcript, v.tracker, v, deps.Config.Poll)
	v.dispatcher = NewDispatcher(deps.Executor, s, target, v.poller)

	runCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel

	go func() {
		defer close(v.done)
		if err := v.poller.Run(runCtx); err != nil {
			v.terminate(err)
		}
	}()

	slog.Info("console opened", slog.String("target", target))
	return v, nil
}

func (v *View) Target() string { return v.target }

// Transcript is the rendered output; callers only read it
func (v *View) Transcript() *Transcript { return v.transcript }

// Offset is the consumed stream position
func (v *View) Offset() uint64 { return v.tracker.Offset() }

// SetInspecting is wired to pointer-enter (true) and pointer-leave (false)
func (v *View) SetInspecting(inspecting bool) { v.transcript.SetInspecting(inspecting) }

// Submit sends a command. Terminal failures end the view.
func (v *View) Submit(ctx context.Context, text string) error {
	err := v.dispatcher.Submit(ctx, text)
	if err != nil && errors.IsTerminal(err) {
		v.terminate(err)
	}
	return err
}

// Done is closed when polling has stopped
func (v *View) Done() <-chan struct{} { return v.done }

// Err returns the terminal error that ended the view, if any
func (v *View) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Close stops polling and waits for the poller to exit. Results still in
// flight are discarded.
func (v *View) Close() {
	v.cancel()
	<-v.done
	slog.Info("console closed", slog.String("target", v.target))
}

// terminate navigates away exactly once
func (v *View) terminate(err error) {
	v.termOnce.Do(func() {
		v.mu.Lock()
		v.err = err
		v.mu.Unlock()

		v.cancel()

		switch errors.Classify(err) {
		case errors.KindAuth:
			if clearErr := v.session.Clear(); clearErr != nil {
				slog.Error("failed to clear session", slog.String("error", clearErr.Error()))
			}
			v.navigator.ToLogin()
		case errors.KindNotFound:
			v.navigator.ToListing()
		}
	})
}

// OnAppend implements Listener
func (v *View) OnAppend(res AppendResult) {
	if v.onAppend != nil {
		v.onAppend(res)
	}
}

// OnNotice implements Listener
func (v *View) OnNotice(err error) {
	if v.notifier != nil {
		v.notifier.Notify(err)
	}
}
