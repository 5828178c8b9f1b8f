// Package rpcwire defines the JSON-over-HTTP envelope the application under
// test speaks: procedures at /api/rpc/<router>.<procedure>, reads passing
// input as a query parameter, writes passing a JSON body, and a result/error
// envelope on the way back. Server handlers and the harness client both build
// on this package so the wire format exists exactly once.
package rpcwire

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"groundtruth/pkg/platform/httputil"
)

// Prefix is where the RPC surface mounts.
const Prefix = "/api/rpc"

// Error codes, mirrored to HTTP statuses by StatusFor.
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeUnprocessable   = "UNPROCESSABLE_CONTENT"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
	CodeInternal        = "INTERNAL_SERVER_ERROR"
)

// StatusFor maps an error code to its HTTP status. Unknown codes are 500.
func StatusFor(code string) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnprocessable:
		return http.StatusUnprocessableEntity
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Envelope is the top-level response shape. Exactly one of Result and Error
// is set.
type Envelope struct {
	Result *ResultPayload `json:"result,omitempty"`
	Error  *ErrorPayload  `json:"error,omitempty"`
}

type ResultPayload struct {
	Data json.RawMessage `json:"data"`
}

type ErrorPayload struct {
	Message string    `json:"message"`
	Code    string    `json:"code"`
	Data    ErrorData `json:"data"`
}

// ErrorData carries machine-readable context. For database constraint
// failures the server passes the driver's SQLSTATE and identifiers through
// so callers can classify without parsing prose.
type ErrorData struct {
	HTTPStatus int    `json:"httpStatus"`
	Path       string `json:"path,omitempty"`
	SQLState   string `json:"sqlstate,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
}

// Path builds the URL path for a procedure.
func Path(router, procedure string) string {
	return Prefix + "/" + router + "." + procedure
}

// EncodeInput renders v as the ?input= query parameter used by read calls.
func EncodeInput(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode input: %w", err)
	}
	return "input=" + url.QueryEscape(string(raw)), nil
}

// ReadInput decodes a request's procedure input: the ?input= query parameter
// on GET, the JSON body otherwise. An absent input leaves v untouched.
func ReadInput(r *http.Request, v any) error {
	if r.Method == http.MethodGet {
		raw := r.URL.Query().Get("input")
		if raw == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(raw), v); err != nil {
			return fmt.Errorf("decode input parameter: %w", err)
		}
		return nil
	}
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := httputil.DecodeJSON(r, v, 1<<20); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode input body: %w", err)
	}
	return nil
}

// WriteResult wraps data in the result envelope.
func WriteResult(w http.ResponseWriter, status int, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		WriteError(w, CodeInternal, "encode result: "+err.Error())
		return
	}
	httputil.WriteJSON(w, status, Envelope{Result: &ResultPayload{Data: raw}})
}

// WriteError writes an error envelope with the status implied by code.
func WriteError(w http.ResponseWriter, code, message string) {
	WriteErrorData(w, code, message, ErrorData{})
}

// WriteErrorData writes an error envelope with extra machine-readable context.
func WriteErrorData(w http.ResponseWriter, code, message string, data ErrorData) {
	status := StatusFor(code)
	data.HTTPStatus = status
	httputil.WriteJSON(w, status, Envelope{Error: &ErrorPayload{
		Message: message,
		Code:    code,
		Data:    data,
	}})
}

// CallError is the client-side view of an error envelope. Message holds the
// server text verbatim; nothing rewrites it.
type CallError struct {
	Status  int
	Code    string
	Message string
	Data    ErrorData
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// DecodeResult unmarshals a success envelope's data into v. A nil v discards
// the payload.
func DecodeResult(body io.Reader, v any) error {
	var env Envelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.Error != nil {
		return &CallError{
			Status:  env.Error.Data.HTTPStatus,
			Code:    env.Error.Code,
			Message: env.Error.Message,
			Data:    env.Error.Data,
		}
	}
	if env.Result == nil {
		return fmt.Errorf("envelope has neither result nor error")
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result.Data, v); err != nil {
		return fmt.Errorf("decode result data: %w", err)
	}
	return nil
}

// ParseError turns a non-200 response into a CallError, falling back to the
// raw body when it is not an envelope.
func ParseError(resp *http.Response) *CallError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var env Envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil {
		ce := &CallError{
			Status:  resp.StatusCode,
			Code:    env.Error.Code,
			Message: env.Error.Message,
			Data:    env.Error.Data,
		}
		if ce.Data.HTTPStatus == 0 {
			ce.Data.HTTPStatus = resp.StatusCode
		}
		return ce
	}
	return &CallError{
		Status:  resp.StatusCode,
		Code:    CodeInternal,
		Message: string(raw),
	}
}
