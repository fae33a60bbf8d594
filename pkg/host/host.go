// Package host runs the managed targets and keeps their output streams.
package host

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/labring/devbox-console/pkg/errors"
)

// Host is the registry of managed targets
type Host struct {
	mutex       sync.RWMutex
	targets     map[string]*Target
	maxRetained int
}

// New creates a host with one stopped target per spec
func New(specs []Spec, maxRetained int) *Host {
	h := &Host{
		targets:     make(map[string]*Target, len(specs)),
		maxRetained: maxRetained,
	}
	for _, spec := range specs {
		h.targets[spec.Name] = NewTarget(spec, maxRetained)
	}
	return h
}

// Add registers a target, replacing none
func (h *Host) Add(spec Spec) (*Target, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, exists := h.targets[spec.Name]; exists {
		return nil, errors.NewAPIError(errors.ErrorTypeConflict, "target already exists", 409, spec.Name)
	}
	t := NewTarget(spec, h.maxRetained)
	h.targets[spec.Name] = t
	return t, nil
}

// Get returns the named target or a target-not-found error
func (h *Host) Get(name string) (*Target, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	t, exists := h.targets[name]
	if !exists {
		return nil, errors.NewTargetNotFoundError(name)
	}
	return t, nil
}

// Names returns the target names in sorted order
func (h *Host) Names() []string {
	h.mutex.RLock()
	names := make([]string, 0, len(h.targets))
	for name := range h.targets {
		names = append(names, name)
	}
	h.mutex.RUnlock()

	sort.Strings(names)
	return names
}

// StartAll starts every target. Failures are logged and recorded in the
// target's stream; the remaining targets still start.
func (h *Host) StartAll() {
	for _, name := range h.Names() {
		t, err := h.Get(name)
		if err != nil {
			continue
		}
		if err := t.Start(); err != nil {
			slog.Error("failed to start target", slog.String("target", name), slog.String("error", err.Error()))
		}
	}
}

// Running returns the number of running targets
func (h *Host) Running() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	n := 0
	for _, t := range h.targets {
		if t.Status() == StatusRunning {
			n++
		}
	}
	return n
}

// Stop stops all targets concurrently
func (h *Host) Stop(timeout time.Duration) {
	h.mutex.RLock()
	targets := make([]*Target, 0, len(h.targets))
	for _, t := range h.targets {
		targets = append(targets, t)
	}
	h.mutex.RUnlock()

	var wg sync.WaitGroup
	for _, t := range targets {
		wg.Add(1)
		go func(t *Target) {
			defer wg.Done()
			t.Stop(timeout)
		}(t)
	}
	wg.Wait()
}

// IsRunning reports whether the named target is running
func (h *Host) IsRunning(name string) bool {
	t, err := h.Get(name)
	return err == nil && t.Status() == StatusRunning
}
