package host

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/labring/devbox-console/pkg/errors"
)

// Target status values
const (
	StatusStopped = "stopped"
	StatusRunning = "running"
	StatusExited  = "exited"
	StatusFailed  = "failed"
)

// Spec describes a managed target
type Spec struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args,omitempty"`
	Dir     string            `yaml:"dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// Target is a managed child process whose stdout and stderr feed a Stream
// and whose stdin accepts operator commands.
type Target struct {
	spec   Spec
	stream *Stream

	mu      sync.RWMutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	status  string
	startAt time.Time
	done    chan struct{}
}

// NewTarget creates a stopped target
func NewTarget(spec Spec, maxRetained int) *Target {
	return &Target{
		spec:   spec,
		stream: NewStream(maxRetained),
		status: StatusStopped,
	}
}

func (t *Target) Name() string { return t.spec.Name }

func (t *Target) Stream() *Stream { return t.stream }

func (t *Target) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Start launches the process and begins collecting its output
func (t *Target) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status == StatusRunning {
		return errors.NewAPIError(errors.ErrorTypeConflict, "target is already running", 409, t.spec.Name)
	}

	cmd := exec.Command(t.spec.Command, t.spec.Args...)
	if t.spec.Dir != "" {
		cmd.Dir = t.spec.Dir
	}
	if len(t.spec.Env) > 0 {
		cmd.Env = os.Environ()
		for key, value := range t.spec.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
		}
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		t.status = StatusFailed
		t.stream.Append(systemLine("failed to start: %v", err))
		return errors.NewProcessError("failed to start process", err.Error())
	}

	t.cmd = cmd
	t.stdin = stdin
	t.status = StatusRunning
	t.startAt = time.Now()
	t.done = make(chan struct{})

	slog.Info("target started",
		slog.String("target", t.spec.Name),
		slog.String("command", t.spec.Command),
		slog.Int("pid", cmd.Process.Pid),
	)

	go t.run(cmd, stdout, stderr, t.done)
	return nil
}

// run drains both pipes, then reaps the process
func (t *Target) run(cmd *exec.Cmd, stdout, stderr io.Reader, done chan struct{}) {
	defer close(done)

	var wg sync.WaitGroup
	wg.Add(2)
	go t.collect(&wg, stdout)
	go t.collect(&wg, stderr)
	// Wait must not run before the pipes are fully read
	wg.Wait()

	waitErr := cmd.Wait()

	t.mu.Lock()
	if waitErr != nil {
		t.status = StatusFailed
	} else {
		t.status = StatusExited
	}
	t.stdin = nil
	uptime := time.Since(t.startAt).Round(time.Millisecond)
	t.mu.Unlock()

	if waitErr != nil {
		t.stream.Append(systemLine("process failed after %s: %v", uptime, waitErr))
		slog.Warn("target failed",
			slog.String("target", t.spec.Name),
			slog.Duration("uptime", uptime),
			slog.String("error", waitErr.Error()),
		)
	} else {
		t.stream.Append(systemLine("process exited after %s", uptime))
		slog.Info("target exited", slog.String("target", t.spec.Name), slog.Duration("uptime", uptime))
	}
}

func (t *Target) collect(wg *sync.WaitGroup, r io.Reader) {
	defer wg.Done()

	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := br.ReadString('\n')
		t.stream.Append(line)
		if err != nil {
			return
		}
	}
}

// Exec writes one command line to the target's stdin
func (t *Target) Exec(command string) error {
	if command == "" {
		return errors.NewInvalidRequestError("Command is required")
	}

	t.mu.RLock()
	stdin, status := t.stdin, t.status
	t.mu.RUnlock()

	if status != StatusRunning || stdin == nil {
		return errors.NewAPIError(errors.ErrorTypeConflict, "target is not running", 409, t.spec.Name)
	}
	if _, err := io.WriteString(stdin, command+"\n"); err != nil {
		return errors.NewProcessError("failed to send command", err.Error())
	}
	return nil
}

// Stop closes stdin, signals the process and force kills it after timeout
func (t *Target) Stop(timeout time.Duration) {
	t.mu.RLock()
	cmd, stdin, done, status := t.cmd, t.stdin, t.done, t.status
	t.mu.RUnlock()

	if status != StatusRunning || cmd == nil || cmd.Process == nil {
		return
	}

	if stdin != nil {
		stdin.Close()
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-done:
	case <-time.After(timeout):
		_ = cmd.Process.Kill()
		<-done
	}
}

// Wait blocks until the current process has been reaped
func (t *Target) Wait() {
	t.mu.RLock()
	done := t.done
	t.mu.RUnlock()
	if done != nil {
		<-done
	}
}

func systemLine(format string, a ...any) string {
	return fmt.Sprintf("[%s] devbox: %s\n", time.Now().Format("2006-01-02 15:04:05"), fmt.Sprintf(format, a...))
}
