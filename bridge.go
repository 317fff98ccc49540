// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package solidrepl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Event tags requests and responses crossing the bridge.
type Event string

const (
	EventProjectCompile Event = "PROJECT_COMPILE"
	EventFileCompile    Event = "FILE_COMPILE"
	EventError          Event = "ERROR"
)

// ErrBridgeClosed is returned when posting to a bridge whose worker stopped.
var ErrBridgeClosed = errors.New("bridge closed")

// Request asks the worker to compile the whole project or a single tab.
type Request struct {
	Event       Event      `json:"event"`
	ID          uint64     `json:"id,omitempty"`
	Tabs        []Tab      `json:"tabs,omitempty"`
	Tab         *Tab       `json:"tab,omitempty"`
	CompileOpts ModeConfig `json:"compileOpts"`
}

// ErrorPayload is the error carried by an ERROR response.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Response answers one Request. Event is the request kind on success and
// EventError on failure; Kind always echoes the request kind.
type Response struct {
	Event   Event
	ID      uint64
	Kind    Event
	Modules *ModuleMap // PROJECT_COMPILE
	Code    string     // FILE_COMPILE
	Error   *ErrorPayload
}

type wireResponse struct {
	Event    Event           `json:"event"`
	ID       uint64          `json:"id,omitempty"`
	Kind     Event           `json:"kind,omitempty"`
	Compiled json.RawMessage `json:"compiled,omitempty"`
	Error    *ErrorPayload   `json:"error,omitempty"`
}

// MarshalJSON encodes the response in the bridge wire format: compiled is an
// object of modules for PROJECT_COMPILE and a string for FILE_COMPILE.
func (r Response) MarshalJSON() ([]byte, error) {
	w := wireResponse{Event: r.Event, ID: r.ID, Kind: r.Kind, Error: r.Error}
	var err error
	switch r.Event {
	case EventProjectCompile:
		modules := r.Modules
		if modules == nil {
			modules = NewModuleMap()
		}
		w.Compiled, err = json.Marshal(modules)
	case EventFileCompile:
		w.Compiled, err = json.Marshal(r.Code)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the bridge wire format.
func (r *Response) UnmarshalJSON(data []byte) error {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Response{Event: w.Event, ID: w.ID, Kind: w.Kind, Error: w.Error}
	if len(w.Compiled) == 0 {
		return nil
	}
	switch w.Event {
	case EventProjectCompile:
		r.Modules = NewModuleMap()
		return json.Unmarshal(w.Compiled, r.Modules)
	case EventFileCompile:
		return json.Unmarshal(w.Compiled, &r.Code)
	}
	return nil
}

// IsError reports whether the response carries an error.
func (r Response) IsError() bool {
	return r.Event == EventError
}

// ErrorMessage returns the message of an ERROR response.
func (r Response) ErrorMessage() string {
	if r.Error == nil {
		if r.IsError() {
			return "unknown error"
		}
		return ""
	}
	return r.Error.Message
}

// errorResponse converts err into an ERROR response for req.
func errorResponse(req Request, err error) Response {
	return Response{
		Event: EventError,
		ID:    req.ID,
		Kind:  req.Event,
		Error: &ErrorPayload{Message: err.Error()},
	}
}

// Handler answers a request. It runs on the bridge worker.
type Handler func(ctx context.Context, req Request) Response

// Dispatch answers req with compiler, matching on the request kind.
func Dispatch(ctx context.Context, compiler *Compiler, req Request) Response {
	switch req.Event {
	case EventProjectCompile:
		modules, err := compiler.CompileProject(ctx, req.Tabs)
		if err != nil {
			return errorResponse(req, err)
		}
		return Response{Event: EventProjectCompile, ID: req.ID, Kind: req.Event, Modules: modules}
	case EventFileCompile:
		if req.Tab == nil {
			return errorResponse(req, errors.New("FILE_COMPILE request without a tab"))
		}
		code, err := compiler.CompileFile(ctx, *req.Tab, req.CompileOpts)
		if err != nil {
			return errorResponse(req, err)
		}
		return Response{Event: EventFileCompile, ID: req.ID, Kind: req.Event, Code: code}
	}
	return errorResponse(req, fmt.Errorf("unknown event %q", req.Event))
}

// CompilerHandler returns a Handler dispatching to compiler.
func CompilerHandler(compiler *Compiler) Handler {
	return func(ctx context.Context, req Request) Response {
		return Dispatch(ctx, compiler, req)
	}
}

// safeHandle runs handler and converts a panic into an ERROR response.
func safeHandle(ctx context.Context, handler Handler, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = errorResponse(req, fmt.Errorf("panic: %v\n%s", r, debug.Stack()))
		}
	}()
	return handler(ctx, req)
}

// Bridge carries requests to a worker goroutine and responses back, each
// direction over an ordered channel. Payloads are values; nothing is shared
// with the worker beyond what a request carries.
type Bridge struct {
	handler   Handler
	logger    *slog.Logger
	requests  chan Request
	responses chan Response
	done      chan struct{}
	stopOnce  sync.Once
}

// NewBridge returns a bridge whose worker answers requests with handler.
// Start the worker with Run.
func NewBridge(handler Handler, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		handler:   handler,
		logger:    logger,
		requests:  make(chan Request, 2),
		responses: make(chan Response, 2),
		done:      make(chan struct{}),
	}
}

// Run is the worker loop. It answers requests one at a time until ctx is
// done, then closes the response channel.
func (b *Bridge) Run(ctx context.Context) error {
	defer close(b.responses)
	defer b.stopOnce.Do(func() { close(b.done) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-b.requests:
			resp := safeHandle(ctx, b.handler, req)
			if resp.IsError() {
				b.logger.Debug("Compile request failed", "event", req.Event, "id", req.ID, "error", resp.ErrorMessage())
			}
			select {
			case b.responses <- resp:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Post hands req to the worker.
func (b *Bridge) Post(ctx context.Context, req Request) error {
	select {
	case <-b.done:
		return ErrBridgeClosed
	default:
	}
	select {
	case b.requests <- req:
		return nil
	case <-b.done:
		return ErrBridgeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Responses returns the channel of worker responses, closed when Run returns.
func (b *Bridge) Responses() <-chan Response {
	return b.responses
}
