package host

import (
	stderrors "errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/labring/devbox-console/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create a host whose targets are stopped at test end
func createTestHost(t *testing.T, specs ...Spec) *Host {
	h := New(specs, 0)
	t.Cleanup(func() {
		h.Stop(2 * time.Second)
	})
	return h
}

// Helper function to wait until the stream contains want
func waitForOutput(t *testing.T, s *Stream, want string, timeout time.Duration) {
	timeoutChan := time.After(timeout)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		if strings.Contains(s.ReadFrom(0, 0).Data, want) {
			return
		}
		select {
		case <-timeoutChan:
			t.Fatalf("stream did not contain %q within %s, got %q", want, timeout, s.ReadFrom(0, 0).Data)
		case <-ticker.C:
		}
	}
}

func TestHostGet(t *testing.T) {
	h := createTestHost(t, Spec{Name: "b", Command: "cat"}, Spec{Name: "a", Command: "cat"})

	assert.Equal(t, []string{"a", "b"}, h.Names())

	target, err := h.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", target.Name())
	assert.Equal(t, StatusStopped, target.Status())

	_, err = h.Get("missing")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrTargetNotFound))

	_, err = h.Add(Spec{Name: "a", Command: "cat"})
	assert.Error(t, err)
}

func TestTargetExecEchoesThroughStream(t *testing.T) {
	h := createTestHost(t, Spec{Name: "echo", Command: "cat"})
	h.StartAll()
	assert.Equal(t, 1, h.Running())

	target, err := h.Get("echo")
	require.NoError(t, err)
	require.Equal(t, StatusRunning, target.Status())

	require.NoError(t, target.Exec("say hello"))
	waitForOutput(t, target.Stream(), "say hello\n", 2*time.Second)

	assert.Error(t, target.Exec(""), "empty commands are rejected")
}

func TestTargetExitIsRecorded(t *testing.T) {
	h := createTestHost(t, Spec{Name: "once", Command: "sh", Args: []string{"-c", "echo out; echo err 1>&2"}})
	target, err := h.Get("once")
	require.NoError(t, err)
	require.NoError(t, target.Start())

	target.Wait()

	assert.Equal(t, StatusExited, target.Status())
	data := target.Stream().ReadFrom(0, 0).Data
	assert.Contains(t, data, "out\n")
	assert.Contains(t, data, "err\n")
	assert.Contains(t, data, "devbox: process exited")

	err = target.Exec("anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestTargetExitReportsUptime(t *testing.T) {
	h := createTestHost(t, Spec{Name: "nap", Command: "sleep", Args: []string{"0.2"}})
	target, err := h.Get("nap")
	require.NoError(t, err)
	require.NoError(t, target.Start())

	target.Wait()

	data := target.Stream().ReadFrom(0, 0).Data
	m := regexp.MustCompile(`devbox: process exited after (\S+)\n`).FindStringSubmatch(data)
	require.Len(t, m, 2, "got %q", data)
	uptime, err := time.ParseDuration(m[1])
	require.NoError(t, err)
	assert.GreaterOrEqual(t, uptime, 200*time.Millisecond)
	assert.Less(t, uptime, time.Minute)
}

func TestTargetStartFailure(t *testing.T) {
	h := createTestHost(t, Spec{Name: "bad", Command: "/nonexistent/binary"})
	target, err := h.Get("bad")
	require.NoError(t, err)

	assert.Error(t, target.Start())
	assert.Equal(t, StatusFailed, target.Status())
	assert.Contains(t, target.Stream().ReadFrom(0, 0).Data, "failed to start")
}

func TestTargetStop(t *testing.T) {
	h := createTestHost(t, Spec{Name: "sleeper", Command: "sleep", Args: []string{"30"}})
	target, err := h.Get("sleeper")
	require.NoError(t, err)
	require.NoError(t, target.Start())

	start := time.Now()
	target.Stop(2 * time.Second)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.NotEqual(t, StatusRunning, target.Status())
}
