package console

import (
	"context"
	"log/slog"

	"github.com/labring/devbox-console/pkg/errors"
)

// ErrEmptyCommand rejects a submission before any network call
var ErrEmptyCommand = errors.NewPreconditionError("command is empty")

// CommandExecutor sends a command line to a target
type CommandExecutor interface {
	Exec(ctx context.Context, s Session, target, command string) error
}

// Kicker requests an out-of-band poll
type Kicker interface {
	Kick()
}

// Dispatcher submits operator commands to one target
type Dispatcher struct {
	exec    CommandExecutor
	session Session
	target  string
	kicker  Kicker
}

func NewDispatcher(exec CommandExecutor, s Session, target string, kicker Kicker) *Dispatcher {
	return &Dispatcher{exec: exec, session: s, target: target, kicker: kicker}
}

// Submit sends text to the target. The caller clears its input only when
// Submit returns nil. On success the poller is kicked so the command's
// output shows up before the next tick.
func (d *Dispatcher) Submit(ctx context.Context, text string) error {
	if text == "" {
		return ErrEmptyCommand
	}

	if err := d.exec.Exec(ctx, d.session, d.target, text); err != nil {
		slog.Warn("command failed", slog.String("target", d.target), slog.String("error", err.Error()))
		return err
	}

	slog.Debug("command sent", slog.String("target", d.target))
	if d.kicker != nil {
		d.kicker.Kick()
	}
	return nil
}
