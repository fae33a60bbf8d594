package user

import (
	"log/slog"
	"net/http"

	"github.com/labring/devbox-console/pkg/common"
	"github.com/labring/devbox-console/pkg/errors"
)

// PasswordVerifier checks operator credentials
type PasswordVerifier interface {
	Verify(user, password string) bool
}

// LoginStore issues, validates and revokes login tokens
type LoginStore interface {
	Add(user string) string
	Valid(user, token string) bool
	Remove(user, token string)
}

// UserHandler handles login and session validation
type UserHandler struct {
	users  PasswordVerifier
	logins LoginStore
}

func NewUserHandler(users PasswordVerifier, logins LoginStore) *UserHandler {
	return &UserHandler{users: users, logins: logins}
}

// Login exchanges a username and password for a login token
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req common.LoginRequest
	if err := common.ParseJSONBodyReturn(w, r, &req); err != nil {
		return
	}
	if req.Username == "" || req.Password == "" {
		errors.WriteErrorResponse(w, errors.NewInvalidRequestError("username and password are required"))
		return
	}

	if !h.users.Verify(req.Username, req.Password) {
		slog.Warn("login failed", slog.String("user", req.Username), slog.String("remote", r.RemoteAddr))
		errors.WriteErrorResponse(w, errors.NewUnauthenticatedError())
		return
	}

	token := h.logins.Add(req.Username)
	slog.Info("login", slog.String("user", req.Username))
	common.WriteSuccessResponse(w, common.LoginResponse{Username: req.Username, Token: token})
}

// Logout revokes the presented token
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, token := common.SessionFromRequest(r)
	h.logins.Remove(user, token)
	common.WriteSuccessResponse(w, struct{}{})
}

// Valid reports whether the presented session is live. It never fails on a
// bad session; the answer is in the payload.
func (h *UserHandler) Valid(w http.ResponseWriter, r *http.Request) {
	user, token := common.SessionFromRequest(r)
	common.WriteSuccessResponse(w, common.ValidResponse{Valid: h.logins.Valid(user, token)})
}
