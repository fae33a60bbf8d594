package middleware

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/labring/devbox-console/pkg/common"
	"github.com/labring/devbox-console/pkg/errors"
	"github.com/labring/devbox-console/pkg/logger"
)

// Middleware wraps an http.Handler; chi's Use accepts it directly
type Middleware func(http.Handler) http.Handler

// TraceHeader carries the request trace id in both directions
const TraceHeader = "X-Trace-ID"

// Logger logs one line per request. 5xx answers log at error, 4xx at warn
// and the rest at debug; websocket upgrades log when the stream ends.
func Logger() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			traceID := r.Header.Get(TraceHeader)
			if traceID == "" {
				traceID = uuid.NewString()
			}
			ctx := logger.WithTraceID(r.Context(), traceID)
			r = r.WithContext(ctx)
			w.Header().Set(TraceHeader, traceID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote", r.RemoteAddr),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", rec.written),
			}
			if user := r.Header.Get(common.HeaderUser); user != "" {
				attrs = append(attrs, slog.String("user", user))
			}
			logger.WithContext(ctx).LogAttrs(ctx, levelFor(rec.status), "request", attrs...)
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}

// statusRecorder remembers the status code and body size. It keeps the
// Flusher and Hijacker of the wrapped writer so websocket upgrades work.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("hijacking not supported by %T", rw.ResponseWriter)
	}
	rw.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

// Recovery middleware recovers from panics and returns proper error responses
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.WithContext(r.Context()).Error("panic recovered",
						slog.Any("error", err),
						slog.String("stack", string(debug.Stack())),
					)

					switch e := err.(type) {
					case *errors.APIError:
						errors.WriteErrorResponse(w, e)
					case error:
						common.WriteErrorResponse(w, common.StatusPanic, "%s", e.Error())
					default:
						common.WriteErrorResponse(w, common.StatusPanic, "Unknown error occurred")
					}
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// TokenValidator checks a login token issued to a user
type TokenValidator interface {
	Valid(user, token string) bool
}

// SessionAuth rejects requests whose X-Devbox-User and bearer token do not
// name a live login. Paths in skipPaths pass through unchecked.
func SessionAuth(logins TokenValidator, skipPaths []string) Middleware {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			user, token := common.SessionFromRequest(r)
			if !logins.Valid(user, token) {
				errors.WriteErrorResponse(w, errors.NewUnauthenticatedError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
