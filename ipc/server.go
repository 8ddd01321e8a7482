// Package ipc implements the host interface of tplmerge: a JSON-RPC 2.0
// server over stdio that a desktop front end starts as a child process.
//
// Messages are newline-delimited JSON. Requests are handled one at a time in
// arrival order; a long running method such as batch.run sends
// notifications while it works.
//
// # Usage from a host
//
//	{"jsonrpc":"2.0","id":1,"method":"assets.images"}
//	{"jsonrpc":"2.0","id":1,"result":["a.png","card.jpg"]}
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/lvillar/tplmerge"
)

// JSON-RPC error codes. Codes above -32000 are application errors.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
	CodeConfig         = -32001
	CodeBusy           = -32002
	CodeNotFound       = -32003
	CodeUnsupported    = -32004
)

// Handler executes a method. params is the raw "params" member, nil when
// absent.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Server handles JSON-RPC 2.0 messages over a pair of streams.
type Server struct {
	methods map[string]Handler
	input   io.Reader
	output  io.Writer
	logger  *slog.Logger
	mu      sync.Mutex
}

type request struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method"`
	Params  json.RawMessage  `json:"params,omitempty"`
}

type response struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id"`
	Result  any              `json:"result,omitempty"`
	Error   *Error           `json:"error,omitempty"`
}

type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("ipc: %s (%d)", e.Message, e.Code)
}

// InvalidParams returns the error for unusable method parameters.
func InvalidParams(err error) *Error {
	return &Error{Code: CodeInvalidParams, Message: "Invalid params", Data: err.Error()}
}

// NewServer creates a server reading from stdin and writing to stdout.
func NewServer(logger *slog.Logger) *Server {
	return NewServerWithIO(os.Stdin, os.Stdout, logger)
}

// NewServerWithIO creates a server with custom I/O.
func NewServerWithIO(in io.Reader, out io.Writer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		methods: make(map[string]Handler),
		input:   in,
		output:  out,
		logger:  logger,
	}
}

// Handle registers a method.
func (s *Server) Handle(method string, h Handler) {
	s.methods[method] = h
}

// Methods returns the registered method names, sorted.
func (s *Server) Methods() []string {
	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Run processes messages until EOF or until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.input)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			s.sendError(nil, &Error{Code: CodeParseError, Message: "Parse error", Data: err.Error()})
			continue
		}
		s.handleRequest(ctx, req)
	}
	return scanner.Err()
}

func (s *Server) handleRequest(ctx context.Context, req request) {
	var (
		result any
		err    error
	)
	switch req.Method {
	case "ping":
		result = map[string]any{}
	case "rpc.methods":
		result = s.Methods()
	default:
		h, ok := s.methods[req.Method]
		if !ok {
			err = &Error{Code: CodeMethodNotFound, Message: "Method not found", Data: req.Method}
			break
		}
		result, err = h(ctx, req.Params)
	}

	if req.ID == nil {
		// Notifications get no response.
		if err != nil {
			s.logger.Warn("notification failed", "method", req.Method, "error", err)
		}
		return
	}
	if err != nil {
		s.logger.Debug("method failed", "method", req.Method, "error", err)
		s.sendError(req.ID, toError(err))
		return
	}
	if result == nil {
		result = map[string]any{}
	}
	s.send(response{JSONRPC: "2.0", ID: req.ID, Result: result})
}

// toError maps err to a JSON-RPC error object.
func toError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	code := CodeInternal
	switch {
	case errors.Is(err, tplmerge.ErrConfig):
		code = CodeConfig
	case errors.Is(err, tplmerge.ErrBusy):
		code = CodeBusy
	case errors.Is(err, tplmerge.ErrNotFound):
		code = CodeNotFound
	case errors.Is(err, tplmerge.ErrUnsupported), errors.Is(err, tplmerge.ErrEncrypted):
		code = CodeUnsupported
	}
	return &Error{Code: code, Message: err.Error()}
}

// Notify sends a notification to the host.
func (s *Server) Notify(method string, params any) {
	s.write(notification{JSONRPC: "2.0", Method: method, Params: params})
}

func (s *Server) sendError(id *json.RawMessage, e *Error) {
	s.send(response{JSONRPC: "2.0", ID: id, Error: e})
}

func (s *Server) send(resp response) {
	s.write(resp)
}

func (s *Server) write(msg any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("encoding message", "error", err)
		return
	}
	data = append(data, '\n')
	if _, err := s.output.Write(data); err != nil {
		s.logger.Error("writing message", "error", err)
	}
}

// decode unmarshals params into v. Absent params leave v unchanged.
func decode(params json.RawMessage, v any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return InvalidParams(err)
	}
	return nil
}
