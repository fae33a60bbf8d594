package user

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labring/devbox-console/pkg/auth"
	"github.com/labring/devbox-console/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestHandler(t *testing.T) (*UserHandler, *auth.Logins) {
	hash, err := auth.HashPassword("secret")
	require.NoError(t, err)
	logins := auth.NewLogins(time.Hour)
	return NewUserHandler(auth.NewUsers(map[string]string{"admin": hash}), logins), logins
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) common.Response[T] {
	var resp common.Response[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestLogin(t *testing.T) {
	handler, logins := createTestHandler(t)

	t.Run("valid credentials", func(t *testing.T) {
		body, _ := json.Marshal(common.LoginRequest{Username: "admin", Password: "secret"})
		w := httptest.NewRecorder()
		handler.Login(w, httptest.NewRequest(http.MethodPost, "/api/v1/user/login", bytes.NewReader(body)))

		resp := decode[common.LoginResponse](t, w)
		require.True(t, resp.IsSuccess(), resp.Message)
		assert.Equal(t, "admin", resp.Data.Username)
		assert.Len(t, resp.Data.Token, 32)
		assert.True(t, logins.Valid("admin", resp.Data.Token))
	})

	testCases := []struct {
		name   string
		body   string
		status common.Status
	}{
		{"wrong password", `{"username":"admin","password":"nope"}`, common.StatusUnauthorized},
		{"unknown user", `{"username":"root","password":"secret"}`, common.StatusUnauthorized},
		{"missing password", `{"username":"admin"}`, common.StatusInvalidRequest},
		{"invalid json", `{`, common.StatusInvalidRequest},
		{"unknown field", `{"username":"admin","password":"secret","remember":true}`, common.StatusInvalidRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.Login(w, httptest.NewRequest(http.MethodPost, "/api/v1/user/login", bytes.NewBufferString(tc.body)))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tc.status, decode[struct{}](t, w).Status)
		})
	}
}

func TestValidAndLogout(t *testing.T) {
	handler, logins := createTestHandler(t)
	token := logins.Add("admin")

	valid := func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/user/valid", nil)
		req.Header.Set(common.HeaderUser, "admin")
		req.Header.Set(common.HeaderAuthorization, common.BearerPrefix+token)
		w := httptest.NewRecorder()
		handler.Valid(w, req)
		resp := decode[common.ValidResponse](t, w)
		require.True(t, resp.IsSuccess())
		return resp.Data.Valid
	}

	assert.True(t, valid())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/logout", nil)
	req.Header.Set(common.HeaderUser, "admin")
	req.Header.Set(common.HeaderAuthorization, common.BearerPrefix+token)
	w := httptest.NewRecorder()
	handler.Logout(w, req)
	logoutResp := decode[struct{}](t, w)
	assert.True(t, logoutResp.IsSuccess())

	assert.False(t, valid())
}
