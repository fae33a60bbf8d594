package console

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/labring/devbox-console/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticValidator struct {
	valid bool
	err   error
	calls int
}

func (v *staticValidator) Valid(ctx context.Context, s Session) (bool, error) {
	v.calls++
	return v.valid, v.err
}

func TestSessionContextLifecycle(t *testing.T) {
	store := &MemoryStore{}
	sc, err := NewSessionContext(store)
	require.NoError(t, err)
	assert.False(t, sc.IsAuthenticated())

	assert.Error(t, sc.Establish("admin", ""), "both halves are required")
	assert.False(t, sc.IsAuthenticated())

	require.NoError(t, sc.Establish("admin", "token"))
	assert.True(t, sc.IsAuthenticated())
	assert.Equal(t, "admin", sc.Identity())
	assert.Equal(t, "token", sc.Credential())

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, Session{Identity: "admin", Credential: "token"}, stored)

	require.NoError(t, sc.Clear())
	assert.False(t, sc.IsAuthenticated())
	stored, _ = store.Load()
	assert.False(t, stored.IsAuthenticated())
}

func TestSessionContextValidate(t *testing.T) {
	testCases := []struct {
		name      string
		validator *staticValidator
		wantKind  errors.Kind
		wantErr   bool
		kept      bool
	}{
		{"valid session", &staticValidator{valid: true}, 0, false, true},
		{"rejected session is cleared", &staticValidator{valid: false}, errors.KindAuth, true, false},
		{"auth error clears", &staticValidator{err: errors.NewUnauthenticatedError()}, errors.KindAuth, true, false},
		{"transport error keeps session", &staticValidator{err: errors.NewInternalError("down")}, errors.KindTransient, true, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sc := loggedIn()
			err := sc.Validate(context.Background(), tc.validator)
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, tc.wantKind, errors.Classify(err))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.kept, sc.IsAuthenticated())
		})
	}

	t.Run("missing session never calls the host", func(t *testing.T) {
		sc, _ := NewSessionContext(&MemoryStore{})
		v := &staticValidator{valid: true}
		assert.Error(t, sc.Validate(context.Background(), v))
		assert.Equal(t, 0, v.calls)
	})
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles", "work.yaml")
	store := NewFileStore(path)

	s, err := store.Load()
	require.NoError(t, err, "missing file is an empty session")
	assert.False(t, s.IsAuthenticated())

	require.NoError(t, store.Save(Session{Identity: "admin", Credential: "abc"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// a second process opening the same profile sees the session
	other, err := NewSessionContext(NewFileStore(path))
	require.NoError(t, err)
	assert.Equal(t, "admin", other.Identity())

	// other profiles are separate
	sibling, err := NewSessionContext(NewFileStore(filepath.Join(filepath.Dir(path), "home.yaml")))
	require.NoError(t, err)
	assert.False(t, sibling.IsAuthenticated())

	require.NoError(t, other.Clear())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, store.Clear(), "clearing twice is fine")
}

func TestFileStoreRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("identity: [unterminated"), 0o600))

	_, err := NewFileStore(path).Load()
	assert.Error(t, err)
}

func TestDefaultSessionPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	path, err := DefaultSessionPath("")
	require.NoError(t, err)
	assert.Equal(t, "default.yaml", filepath.Base(path))

	path, err = DefaultSessionPath("staging")
	require.NoError(t, err)
	assert.Equal(t, "staging.yaml", filepath.Base(path))
}
