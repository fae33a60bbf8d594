package common

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Status is the business outcome carried in every envelope. Zero is
// success. Only StatusPanic changes the HTTP status line.
type Status uint16

const (
	StatusSuccess Status = 0
	StatusPanic   Status = 500

	StatusValidationError Status = 1400
	StatusUnauthorized    Status = 1401
	StatusNotFound        Status = 1404
	StatusConflict        Status = 1409
	StatusInvalidRequest  Status = 1422
	StatusInternalError   Status = 1500
	StatusOperationError  Status = 1600
)

var statusNames = map[Status]string{
	StatusSuccess:         "success",
	StatusPanic:           "panic",
	StatusValidationError: "validation_error",
	StatusUnauthorized:    "unauthorized",
	StatusNotFound:        "not_found",
	StatusConflict:        "conflict",
	StatusInvalidRequest:  "invalid_request",
	StatusInternalError:   "internal_error",
	StatusOperationError:  "operation_error",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// HTTPCode is the status line an envelope with s is written with
func (s Status) HTTPCode() int {
	if s == StatusPanic {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

// Response is the envelope every host endpoint answers with. The payload
// is nested under "data".
type Response[T any] struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

func (r *Response[T]) IsSuccess() bool {
	return r.Status == StatusSuccess
}

// Error implements the error interface
func (r *Response[T]) Error() string {
	if r.IsSuccess() {
		return ""
	}
	return fmt.Sprintf("%s: %s", r.Status, r.Message)
}

// Envelope is a response whose payload has not been decoded yet
type Envelope = Response[json.RawMessage]

// ReadEnvelope decodes one envelope from body and leaves its payload raw
func ReadEnvelope(body io.Reader) (*Envelope, error) {
	var env Envelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		return nil, err
	}
	return &env, nil
}

// DecodeData unmarshals the payload of env into out. A nil out or a
// missing payload leaves out untouched.
func DecodeData(env *Envelope, out any) error {
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// WriteJSONResponse writes one envelope. A payload that cannot be encoded
// is replaced by an internal error envelope.
func WriteJSONResponse[T any](w http.ResponseWriter, status Status, message string, data T) {
	body, err := json.Marshal(&Response[T]{Status: status, Message: message, Data: data})
	if err != nil {
		slog.Error("failed to encode response",
			slog.String("status", status.String()),
			slog.String("error", err.Error()),
		)
		WriteJSONResponse(w, StatusInternalError, "failed to encode response: "+err.Error(), struct{}{})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status.HTTPCode())
	_, _ = w.Write(append(body, '\n'))
}

func WriteSuccessResponse[T any](w http.ResponseWriter, data T) {
	WriteJSONResponse(w, StatusSuccess, "success", data)
}

func WriteErrorResponse(w http.ResponseWriter, status Status, format string, a ...any) {
	WriteJSONResponse(w, status, fmt.Sprintf(format, a...), struct{}{})
}
