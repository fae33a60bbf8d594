package servers

import (
	"log/slog"
	"net/http"

	"github.com/labring/devbox-console/pkg/common"
	"github.com/labring/devbox-console/pkg/errors"
	"github.com/labring/devbox-console/pkg/host"
	"github.com/labring/devbox-console/pkg/logger"
)

// Observer records per-target traffic
type Observer interface {
	ObserveRead(target string, bytes int, truncated, reset bool)
	ObserveExec(target string, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveRead(string, int, bool, bool) {}
func (nopObserver) ObserveExec(string, error)           {}

// ServerHandler serves the target listing, stream reads and command input
type ServerHandler struct {
	host      *host.Host
	readChunk int
	observer  Observer
}

// NewServerHandler creates a handler. A nil observer records nothing.
func NewServerHandler(h *host.Host, readChunk int, observer Observer) *ServerHandler {
	if readChunk <= 0 {
		readChunk = host.DefaultReadChunk
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &ServerHandler{host: h, readChunk: readChunk, observer: observer}
}

// ListServers returns the names of all managed targets
func (h *ServerHandler) ListServers(w http.ResponseWriter, r *http.Request) {
	common.WriteSuccessResponse(w, common.ServersResponse{Servers: h.host.Names()})
}

// ReadData returns the target's output from the requested offset
func (h *ServerHandler) ReadData(w http.ResponseWriter, r *http.Request) {
	var req common.DataRequest
	if err := common.ParseJSONBodyReturn(w, r, &req); err != nil {
		return
	}
	if req.Name == "" {
		errors.WriteErrorResponse(w, errors.NewInvalidRequestError("name is required"))
		return
	}

	target, err := h.host.Get(req.Name)
	if err != nil {
		errors.WriteErrorResponse(w, errors.AsAPIError(err))
		return
	}

	slice := target.Stream().ReadFrom(req.Offset, h.readChunk)
	if slice.Truncated || slice.Reset {
		logger.WithContext(r.Context()).Info("read outside the retained window",
			slog.String("target", req.Name),
			slog.Uint64("requested", req.Offset),
			slog.Uint64("len", slice.Len),
			slog.Bool("truncated", slice.Truncated),
			slog.Bool("reset", slice.Reset),
		)
	}
	h.observer.ObserveRead(req.Name, len(slice.Data), slice.Truncated, slice.Reset)

	common.WriteSuccessResponse(w, common.DataResponse{
		Data:      slice.Data,
		Offset:    slice.Offset,
		Len:       slice.Len,
		Truncated: slice.Truncated,
		Reset:     slice.Reset,
	})
}

// Exec sends one command line to the target's input
func (h *ServerHandler) Exec(w http.ResponseWriter, r *http.Request) {
	var req common.ExecRequest
	if err := common.ParseJSONBodyReturn(w, r, &req); err != nil {
		return
	}
	if req.Name == "" {
		errors.WriteErrorResponse(w, errors.NewInvalidRequestError("name is required"))
		return
	}

	target, err := h.host.Get(req.Name)
	if err != nil {
		errors.WriteErrorResponse(w, errors.AsAPIError(err))
		return
	}

	err = target.Exec(req.Command)
	h.observer.ObserveExec(req.Name, err)
	if err != nil {
		errors.WriteErrorResponse(w, errors.AsAPIError(err))
		return
	}

	logger.WithContext(r.Context()).Info("command sent",
		slog.String("target", req.Name),
		slog.String("user", r.Header.Get(common.HeaderUser)),
	)
	common.WriteSuccessResponse(w, struct{}{})
}
