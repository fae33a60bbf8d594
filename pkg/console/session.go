// Package console keeps a bounded local transcript of a remote target's
// output in sync with the host's append-only stream, and dispatches operator
// commands to that target.
package console

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/labring/devbox-console/pkg/errors"
	"gopkg.in/yaml.v3"
)

const sessionLockTimeout = 2 * time.Second

// Session is the identity and credential attached to every request
type Session struct {
	Identity   string `yaml:"identity"`
	Credential string `yaml:"credential"`
}

// IsAuthenticated reports whether both halves are present
func (s Session) IsAuthenticated() bool {
	return s.Identity != "" && s.Credential != ""
}

// SessionStore persists one profile's session
type SessionStore interface {
	Load() (Session, error)
	Save(Session) error
	Clear() error
}

// SessionContext is the process-local view of a profile's session
type SessionContext struct {
	mu      sync.RWMutex
	store   SessionStore
	current Session
}

// NewSessionContext loads the stored session, if any
func NewSessionContext(store SessionStore) (*SessionContext, error) {
	s, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &SessionContext{store: store, current: s}, nil
}

func (c *SessionContext) Identity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Identity
}

func (c *SessionContext) Credential() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Credential
}

// Session returns a snapshot of the current session
func (c *SessionContext) Session() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *SessionContext) IsAuthenticated() bool {
	return c.Session().IsAuthenticated()
}

// Establish stores a freshly issued session
func (c *SessionContext) Establish(identity, credential string) error {
	s := Session{Identity: identity, Credential: credential}
	if !s.IsAuthenticated() {
		return errors.NewInvalidRequestError("identity and credential are required")
	}
	if err := c.store.Save(s); err != nil {
		return err
	}
	c.mu.Lock()
	c.current = s
	c.mu.Unlock()
	return nil
}

// Clear forgets the session in memory and in the store
func (c *SessionContext) Clear() error {
	c.mu.Lock()
	c.current = Session{}
	c.mu.Unlock()
	return c.store.Clear()
}

// SessionValidator asks the host whether a session is still live
type SessionValidator interface {
	Valid(ctx context.Context, s Session) (bool, error)
}

// Validate checks the session with the host and clears it when rejected.
// Transport failures are returned as is and leave the session alone.
func (c *SessionContext) Validate(ctx context.Context, v SessionValidator) error {
	s := c.Session()
	if !s.IsAuthenticated() {
		return errors.NewUnauthenticatedError()
	}
	ok, err := v.Valid(ctx, s)
	if err != nil {
		if errors.Classify(err) == errors.KindAuth {
			_ = c.Clear()
		}
		return err
	}
	if !ok {
		_ = c.Clear()
		return errors.NewUnauthenticatedError()
	}
	return nil
}

// MemoryStore keeps the session for the life of the process
type MemoryStore struct {
	mu sync.Mutex
	s  Session
}

func (m *MemoryStore) Load() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s, nil
}

func (m *MemoryStore) Save(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = s
	return nil
}

func (m *MemoryStore) Clear() error {
	return m.Save(Session{})
}

// FileStore keeps one profile's session in a private YAML file. Access is
// serialized across processes with a lock file next to it.
type FileStore struct {
	path string
	lock *flock.Flock
}

// NewFileStore stores the session at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, lock: flock.New(path + ".lock")}
}

// DefaultSessionPath is the session file of profile under the user config dir
func DefaultSessionPath(profile string) (string, error) {
	if profile == "" {
		profile = "default"
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config directory: %w", err)
	}
	return filepath.Join(dir, "devbox-console", "sessions", profile+".yaml"), nil
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) withLock(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), sessionLockTimeout)
	defer cancel()

	locked, err := f.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("locking session file: %w", err)
	}
	if !locked {
		return fmt.Errorf("session file is locked: %s", f.path)
	}
	defer func() { _ = f.lock.Unlock() }()

	return fn()
}

func (f *FileStore) Load() (Session, error) {
	var s Session
	err := f.withLock(func() error {
		data, err := os.ReadFile(f.path)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading session file: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("parsing session file %s: %w", f.path, err)
		}
		return nil
	})
	return s, err
}

func (f *FileStore) Save(s Session) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return f.withLock(func() error {
		tmp := f.path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o600); err != nil {
			return fmt.Errorf("writing session file: %w", err)
		}
		return os.Rename(tmp, f.path)
	})
}

func (f *FileStore) Clear() error {
	return f.withLock(func() error {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing session file: %w", err)
		}
		return nil
	})
}
