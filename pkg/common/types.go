// Package common holds the API envelope and the request/response payloads
// shared by the host handlers and the console client.
package common

// LoginRequest is the body of POST /api/v1/user/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued login token
type LoginResponse struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// ValidResponse reports whether the presented session is still valid
type ValidResponse struct {
	Valid bool `json:"valid"`
}

// ServersResponse lists the managed targets
type ServersResponse struct {
	Servers []string `json:"servers"`
}

// DataRequest asks for stream data starting at Offset
type DataRequest struct {
	Name   string `json:"name"`
	Offset uint64 `json:"offset"`
}

// DataResponse is a slice of a target's output stream.
// Offset is the absolute stream position right after Data, Len the total
// number of bytes the target has produced so far.
type DataResponse struct {
	Data      string `json:"data"`
	Offset    uint64 `json:"offset"`
	Len       uint64 `json:"len"`
	Truncated bool   `json:"truncated,omitempty"` // requested range was already discarded
	Reset     bool   `json:"reset,omitempty"`     // requested offset is beyond the stream (host restarted)
}

// ExecRequest is the body of POST /api/v1/servers/exec
type ExecRequest struct {
	Name    string `json:"name"`
	Command string `json:"command"`
}

// StreamFrame is one websocket message of the push stream
type StreamFrame struct {
	Name      string `json:"name"`
	Data      string `json:"data"`
	Offset    uint64 `json:"offset"`
	Len       uint64 `json:"len"`
	Truncated bool   `json:"truncated,omitempty"`
	Reset     bool   `json:"reset,omitempty"`
	Status    Status `json:"status,omitempty"` // set with Error
	Error     string `json:"error,omitempty"`
}
