package common

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		expected string
	}{
		{"success status", StatusSuccess, "success"},
		{"panic status", StatusPanic, "panic"},
		{"validation error", StatusValidationError, "validation_error"},
		{"not found", StatusNotFound, "not_found"},
		{"internal error", StatusInternalError, "internal_error"},
		{"unauthorized", StatusUnauthorized, "unauthorized"},
		{"invalid request", StatusInvalidRequest, "invalid_request"},
		{"conflict", StatusConflict, "conflict"},
		{"operation error", StatusOperationError, "operation_error"},
		{"unknown", Status(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.String())
		})
	}
}

func TestResponseError(t *testing.T) {
	t.Run("error response returns formatted error string", func(t *testing.T) {
		resp := &Response[struct{}]{Status: StatusNotFound, Message: "server does not exist"}
		assert.False(t, resp.IsSuccess())
		assert.Equal(t, "not_found: server does not exist", resp.Error())
	})

	t.Run("success response returns empty error string", func(t *testing.T) {
		resp := &Response[struct{}]{Status: StatusSuccess, Message: "success"}
		assert.True(t, resp.IsSuccess())
		assert.Empty(t, resp.Error())
	})
}

func TestWriteSuccessResponse(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessResponse(w, DataResponse{Data: "hello\n", Offset: 6, Len: 6})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response Response[DataResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, StatusSuccess, response.Status)
	assert.Equal(t, "success", response.Message)
	assert.Equal(t, "hello\n", response.Data.Data)
	assert.Equal(t, uint64(6), response.Data.Offset)
}

func TestWriteErrorResponse(t *testing.T) {
	t.Run("business errors keep HTTP 200", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteErrorResponse(w, StatusUnauthorized, "unauthenticated")

		assert.Equal(t, http.StatusOK, w.Code)
		var response Response[struct{}]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, StatusUnauthorized, response.Status)
		assert.Equal(t, "unauthenticated", response.Message)
	})

	t.Run("panic maps to HTTP 500", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteErrorResponse(w, StatusPanic, "boom: %d", 1)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "boom: 1")
	})

	t.Run("unencodable payload becomes an internal error envelope", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteJSONResponse(w, StatusSuccess, "test", map[string]any{"channel": make(chan int)})

		assert.Equal(t, http.StatusOK, w.Code)
		var response Response[struct{}]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
		assert.Equal(t, StatusInternalError, response.Status)
		assert.Contains(t, response.Message, "json: unsupported type")
	})
}

func TestReadEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessResponse(w, ServersResponse{Servers: []string{"mc", "tf2"}})
	assert.Contains(t, w.Body.String(), `"data":{"servers":["mc","tf2"]}`)

	env, err := ReadEnvelope(w.Body)
	require.NoError(t, err)
	assert.True(t, env.IsSuccess())

	var servers ServersResponse
	require.NoError(t, DecodeData(env, &servers))
	assert.Equal(t, []string{"mc", "tf2"}, servers.Servers)

	t.Run("missing payload leaves out untouched", func(t *testing.T) {
		env, err := ReadEnvelope(strings.NewReader(`{"status":1404,"message":"no such server"}`))
		require.NoError(t, err)
		assert.Equal(t, StatusNotFound, env.Status)

		kept := ServersResponse{Servers: []string{"kept"}}
		require.NoError(t, DecodeData(env, &kept))
		assert.Equal(t, []string{"kept"}, kept.Servers)
	})

	t.Run("not an envelope", func(t *testing.T) {
		_, err := ReadEnvelope(strings.NewReader("<html>bad gateway</html>"))
		assert.Error(t, err)
	})
}

func TestStatusHTTPCode(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusPanic.HTTPCode())
	for _, s := range []Status{StatusSuccess, StatusUnauthorized, StatusNotFound, StatusInternalError} {
		assert.Equal(t, http.StatusOK, s.HTTPCode(), s.String())
	}
}

func TestParseJSONBodyReturn(t *testing.T) {
	t.Run("parse valid JSON body", func(t *testing.T) {
		body, err := json.Marshal(DataRequest{Name: "mc", Offset: 10})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewReader(body))
		w := httptest.NewRecorder()

		var result DataRequest
		require.NoError(t, ParseJSONBodyReturn(w, req, &result))
		assert.Equal(t, "mc", result.Name)
		assert.Equal(t, uint64(10), result.Offset)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"name":"mc","readlen":3}`))
		w := httptest.NewRecorder()

		var result DataRequest
		err := ParseJSONBodyReturn(w, req, &result)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown field")

		var response Response[map[string]any]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, StatusInvalidRequest, response.Status)
		assert.Equal(t, "Invalid JSON body", response.Message)
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(""))
		w := httptest.NewRecorder()

		var result DataRequest
		assert.Error(t, ParseJSONBodyReturn(w, req, &result))
	})
}

func TestSessionFromRequest(t *testing.T) {
	tests := []struct {
		name      string
		headers   map[string]string
		wantUser  string
		wantToken string
	}{
		{"both present", map[string]string{HeaderUser: "admin", HeaderAuthorization: "Bearer abc"}, "admin", "abc"},
		{"wrong scheme", map[string]string{HeaderUser: "admin", HeaderAuthorization: "Basic abc"}, "admin", ""},
		{"bare bearer", map[string]string{HeaderAuthorization: "Bearer "}, "", ""},
		{"none", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			user, token := SessionFromRequest(req)
			assert.Equal(t, tt.wantUser, user)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}
