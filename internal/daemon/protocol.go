package daemon

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Aman-CERP/wordindex/internal/errors"
	"github.com/Aman-CERP/wordindex/internal/store"
)

// JSON-RPC 2.0 method names.
const (
	MethodPing   = "ping"
	MethodStatus = "status"
	MethodSearch = "search"
	MethodFiles  = "files"
	MethodWords  = "words"
	MethodStats  = "stats"
	MethodAdd    = "add"
	MethodRemove = "remove"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Custom error codes for daemon-specific errors.
const (
	ErrCodeIndexStopped = -32001
	ErrCodeBusy         = -32002
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      string          `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      string          `json:"id"`
}

// Error represents a JSON-RPC 2.0 error. Data carries the wordindex
// error code when there is one.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// NewRequest builds a request, encoding params if non-nil.
func NewRequest(id, method string, params any) (Request, error) {
	req := Request{JSONRPC: "2.0", Method: method, ID: id}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return Request{}, fmt.Errorf("failed to encode params: %w", err)
		}
		req.Params = data
	}
	return req, nil
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return NewErrorResponse(id, ErrCodeInternalError, "failed to encode result")
	}
	return Response{
		JSONRPC: "2.0",
		Result:  data,
		ID:      id,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
}

// errorResponse maps err onto a JSON-RPC error, keeping its wordindex code.
func errorResponse(id string, err error) Response {
	code := ErrCodeInternalError
	message := err.Error()
	var ie *errors.IndexError
	if errors.As(err, &ie) {
		message = ie.Message
		if ie.Cause != nil {
			message += ": " + ie.Cause.Error()
		}
		switch ie.Category {
		case errors.CategoryValidation:
			code = ErrCodeInvalidParams
		case errors.CategoryLifecycle:
			code = ErrCodeIndexStopped
			if ie.Code == errors.ErrCodeNotAdmitted {
				code = ErrCodeBusy
			}
		}
	}
	resp := NewErrorResponse(id, code, message)
	resp.Error.Data = errors.GetCode(err)
	return resp
}

// SearchParams are the parameters for the search method.
type SearchParams struct {
	// Word is the word to look up (required).
	Word string `json:"word"`
}

// Validate checks that required fields are present.
func (p *SearchParams) Validate() error {
	p.Word = strings.TrimSpace(p.Word)
	if p.Word == "" {
		return errors.New(errors.ErrCodeQueryEmpty, "word is required", nil)
	}
	return nil
}

// RootParams are the parameters for the add and remove methods.
type RootParams struct {
	// Path is an absolute directory path (required).
	Path string `json:"path"`
}

// Validate checks that required fields are present.
func (p *RootParams) Validate() error {
	if p.Path == "" {
		return errors.New(errors.ErrCodeInvalidPath, "path is required", nil)
	}
	return nil
}

// SearchResult lists the files containing a word.
type SearchResult struct {
	Word  string            `json:"word"`
	Files []store.FileEntry `json:"files"`
}

// StatusResult contains daemon status information.
type StatusResult struct {
	Running    bool             `json:"running"`
	PID        int              `json:"pid"`
	InstanceID string           `json:"instance_id"`
	Version    string           `json:"version"`
	Uptime     string           `json:"uptime"`
	Idle       bool             `json:"idle"`
	Roots      []string         `json:"roots"`
	Stats      store.Statistics `json:"stats"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
