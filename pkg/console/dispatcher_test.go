package console

import (
	"context"
	"testing"

	"github.com/labring/devbox-console/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type countingKicker struct{ kicks int }

func (k *countingKicker) Kick() { k.kicks++ }

func TestDispatcherSubmit(t *testing.T) {
	testCases := []struct {
		name      string
		text      string
		execErr   error
		wantErr   error
		wantCalls int
		wantKicks int
	}{
		{"empty command is rejected locally", "", nil, ErrEmptyCommand, 0, 0},
		{"success kicks the poller", "say hi", nil, nil, 1, 1},
		{"failure leaves the cadence alone", "say hi", errors.NewInternalError("boom"), errors.NewInternalError("boom"), 1, 0},
		{"whitespace is sent as is", " ", nil, nil, 1, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			exec := &fakeExecutor{err: tc.execErr}
			kicker := &countingKicker{}
			d := NewDispatcher(exec, Session{Identity: "admin", Credential: "t"}, "mc", kicker)

			err := d.Submit(context.Background(), tc.text)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.wantCalls, exec.count())
			assert.Equal(t, tc.wantKicks, kicker.kicks)
		})
	}
}

func TestEmptyCommandIsPrecondition(t *testing.T) {
	assert.Equal(t, errors.KindPrecondition, errors.Classify(ErrEmptyCommand))
	assert.False(t, errors.IsTerminal(ErrEmptyCommand))
}
