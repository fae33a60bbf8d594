// Package client talks to a devbox host over its HTTP and websocket API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labring/devbox-console/pkg/common"
	"github.com/labring/devbox-console/pkg/console"
	"github.com/labring/devbox-console/pkg/errors"
)

const DefaultTimeout = 10 * time.Second

// Client implements the console's host contracts over HTTP
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the host at baseURL, e.g. http://localhost:9757
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid host url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid host url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		dialer:     &websocket.Dialer{HandshakeTimeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Login exchanges credentials for a session
func (c *Client) Login(ctx context.Context, username, password string) (console.Session, error) {
	var out common.LoginResponse
	err := c.call(ctx, nil, http.MethodPost, "/api/v1/user/login",
		common.LoginRequest{Username: username, Password: password}, &out)
	if err != nil {
		return console.Session{}, err
	}
	return console.Session{Identity: out.Username, Credential: out.Token}, nil
}

// Logout revokes the session on the host
func (c *Client) Logout(ctx context.Context, s console.Session) error {
	return c.call(ctx, &s, http.MethodPost, "/api/v1/user/logout", nil, nil)
}

// Valid asks whether the session is still live
func (c *Client) Valid(ctx context.Context, s console.Session) (bool, error) {
	var out common.ValidResponse
	if err := c.call(ctx, &s, http.MethodGet, "/api/v1/user/valid", nil, &out); err != nil {
		return false, err
	}
	return out.Valid, nil
}

// ListTargets returns the names of the managed targets
func (c *Client) ListTargets(ctx context.Context, s console.Session) ([]string, error) {
	var out common.ServersResponse
	if err := c.call(ctx, &s, http.MethodGet, "/api/v1/servers", nil, &out); err != nil {
		return nil, err
	}
	return out.Servers, nil
}

// ReadLog implements console.LogReader
func (c *Client) ReadLog(ctx context.Context, s console.Session, target string, offset uint64) (console.Chunk, error) {
	var out common.DataResponse
	err := c.call(ctx, &s, http.MethodPost, "/api/v1/servers/data",
		common.DataRequest{Name: target, Offset: offset}, &out)
	if err != nil {
		return console.Chunk{}, err
	}
	return chunkOf(out.Data, out.Offset, out.Len, out.Truncated, out.Reset), nil
}

// Exec implements console.CommandExecutor
func (c *Client) Exec(ctx context.Context, s console.Session, target, command string) error {
	return c.call(ctx, &s, http.MethodPost, "/api/v1/servers/exec",
		common.ExecRequest{Name: target, Command: command}, nil)
}

func chunkOf(data string, offset, total uint64, truncated, reset bool) console.Chunk {
	return console.Chunk{
		Data:      data,
		Offset:    &offset,
		More:      offset < total,
		Truncated: truncated,
		Reset:     reset,
	}
}

// call performs one request and unwraps the response envelope into out
func (c *Client) call(ctx context.Context, s *console.Session, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.NewInvalidRequestError("failed to encode request", err.Error())
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return errors.NewInternalError("failed to build request", err.Error())
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s != nil {
		setSessionHeaders(req.Header, *s)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewInternalError("host unreachable", err.Error())
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp, out)
}

func setSessionHeaders(h http.Header, s console.Session) {
	h.Set(common.HeaderUser, s.Identity)
	h.Set(common.HeaderAuthorization, common.BearerPrefix+s.Credential)
}

func decodeEnvelope(resp *http.Response, out any) error {
	if resp.StatusCode == http.StatusUnauthorized {
		return errors.NewUnauthenticatedError()
	}

	env, err := common.ReadEnvelope(resp.Body)
	if err != nil {
		return errors.NewInternalError(fmt.Sprintf("unexpected response from host (HTTP %d)", resp.StatusCode), err.Error())
	}
	if !env.IsSuccess() {
		return errors.FromStatus(env.Status, env.Message)
	}
	if err := common.DecodeData(env, out); err != nil {
		return errors.NewInternalError("malformed response data", err.Error())
	}
	return nil
}

// Watch streams target output from offset over the push endpoint, calling
// fn for every frame until ctx is cancelled, fn fails or the host hangs up.
func (c *Client) Watch(ctx context.Context, s console.Session, target string, offset uint64, fn func(console.Chunk) error) error {
	wsURL := *c.baseURL
	if wsURL.Scheme == "https" {
		wsURL.Scheme = "wss"
	} else {
		wsURL.Scheme = "ws"
	}
	wsURL.Path += "/ws"
	q := url.Values{}
	q.Set("name", target)
	q.Set("offset", strconv.FormatUint(offset, 10))
	wsURL.RawQuery = q.Encode()

	header := http.Header{}
	setSessionHeaders(header, s)

	conn, resp, err := c.dialer.DialContext(ctx, wsURL.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if envErr := decodeEnvelope(resp, nil); envErr != nil {
				return envErr
			}
		}
		return errors.NewInternalError("failed to open stream", err.Error())
	}
	defer conn.Close()

	// unblock ReadJSON on cancellation
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var frame common.StreamFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Info("stream closed by host", slog.String("target", target))
				return nil
			}
			return errors.NewInternalError("stream interrupted", err.Error())
		}
		if frame.Error != "" {
			status := frame.Status
			if status == common.StatusSuccess {
				status = common.StatusInternalError
			}
			return errors.FromStatus(status, frame.Error)
		}
		if err := fn(chunkOf(frame.Data, frame.Offset, frame.Len, frame.Truncated, frame.Reset)); err != nil {
			return err
		}
	}
}
