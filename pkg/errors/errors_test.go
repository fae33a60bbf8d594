package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labring/devbox-console/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAPIError_Error tests the error string formatting
func TestAPIError_Error(t *testing.T) {
	err := NewAPIError(ErrorTypeValidation, "test message", 400)
	assert.Equal(t, "validation_error: test message", err.Error())
}

// TestErrorConstructors tests all error constructor functions in one table-driven test
func TestErrorConstructors(t *testing.T) {
	testCases := []struct {
		name            string
		err             *APIError
		expectedType    ErrorType
		expectedMsg     string
		expectedCode    int
		expectedDetails string
	}{
		{"InternalError", NewInternalError("server error", "disk full"), ErrorTypeInternal, "server error", http.StatusInternalServerError, "disk full"},
		{"InvalidRequestError", NewInvalidRequestError("bad request", "missing name"), ErrorTypeInvalidRequest, "bad request", http.StatusBadRequest, "missing name"},
		{"UnauthenticatedError", NewUnauthenticatedError(), ErrorTypeUnauthenticated, "unauthenticated", http.StatusUnauthorized, ""},
		{"TargetNotFoundError", NewTargetNotFoundError("mc"), ErrorTypeTargetNotFound, "server does not exist", http.StatusNotFound, "mc"},
		{"ProcessError", NewProcessError("stdin closed"), ErrorTypeProcessError, "stdin closed", http.StatusInternalServerError, ""},
		{"PreconditionError", NewPreconditionError("empty command"), ErrorTypePrecondition, "empty command", http.StatusBadRequest, ""},
		{"multiple details uses first", NewAPIError(ErrorTypeConflict, "c", 409, "first", "second"), ErrorTypeConflict, "c", 409, "first"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedType, tc.err.Type, "type should match")
			assert.Equal(t, tc.expectedMsg, tc.err.Message, "message should match")
			assert.Equal(t, tc.expectedCode, tc.err.Code, "status code should match")
			assert.Equal(t, tc.expectedDetails, tc.err.Details, "details should match")
		})
	}
}

func TestIsMatchesByType(t *testing.T) {
	wrapped := fmt.Errorf("read log: %w", NewTargetNotFoundError("mc"))
	assert.True(t, errors.Is(wrapped, ErrTargetNotFound))
	assert.False(t, errors.Is(wrapped, ErrUnauthenticated))
	assert.False(t, errors.Is(errors.New("plain"), ErrTargetNotFound))
}

func TestStatusRoundTrip(t *testing.T) {
	cases := []*APIError{
		NewUnauthenticatedError(),
		NewTargetNotFoundError("mc"),
		NewInvalidRequestError("bad"),
		NewProcessError("dead"),
		NewInternalError("oops"),
	}
	for _, c := range cases {
		t.Run(string(c.Type), func(t *testing.T) {
			back := FromStatus(c.Status(), c.Message)
			require.NotNil(t, back)
			assert.Equal(t, c.Type, back.Type)
			assert.Equal(t, c.Message, back.Message)
		})
	}

	assert.Nil(t, FromStatus(common.StatusSuccess, ""))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     Kind
		terminal bool
	}{
		{"nil", nil, KindTransient, false},
		{"unauthenticated", NewUnauthenticatedError(), KindAuth, true},
		{"wrapped not found", fmt.Errorf("x: %w", NewTargetNotFoundError("a")), KindNotFound, true},
		{"precondition", fmt.Errorf("%w: empty command", ErrPrecondition), KindPrecondition, false},
		{"server error", NewInternalError("boom"), KindTransient, false},
		{"network error", errors.New("connection refused"), KindTransient, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, Classify(tt.err))
			assert.Equal(t, tt.terminal, IsTerminal(tt.err))
		})
	}
}

func TestWriteErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, NewTargetNotFoundError("mc"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response common.Response[struct{}]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, common.StatusNotFound, response.Status)
	assert.Equal(t, "server does not exist", response.Message)
}

func TestAsAPIError(t *testing.T) {
	notFound := NewTargetNotFoundError("mc")
	assert.Same(t, notFound, AsAPIError(fmt.Errorf("wrapped: %w", notFound)))

	internal := AsAPIError(assert.AnError)
	assert.Equal(t, ErrorTypeInternal, internal.Type)
	assert.Equal(t, assert.AnError.Error(), internal.Message)
}
