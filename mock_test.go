// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package solidrepl

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	jsexecutor "github.com/buke/js-executor"
)

// MockEngineConfig defines the configuration for a mock engine
type MockEngineConfig struct {
	// Error to return from Execute method
	ExecuteError error
	// Whether to return invalid result type
	InvalidResult bool
	// Babel configuration (for solid.babel.transform)
	Babel *MockBabelConfig
	// Sass configuration (for solid.sass.renderSync)
	Sass *MockSassConfig
	// Service-specific responses for different services
	ServiceResponses map[string]interface{}

	mu       sync.Mutex
	requests []*jsexecutor.JsRequest
}

// MockBabelConfig defines transform configuration
type MockBabelConfig struct {
	// Prefix prepended to the source, the source is echoed when empty
	Prefix string
	// Whether to return a result without code
	NoCode bool
}

// MockSassConfig defines Sass compilation configuration
type MockSassConfig struct {
	// Compiled CSS output
	CSS string
	// Whether to return compilation error
	CompileError bool
}

// Requests returns the requests seen by every engine of the config.
func (c *MockEngineConfig) Requests() []*jsexecutor.JsRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*jsexecutor.JsRequest(nil), c.requests...)
}

// MockEngine is a configurable mock engine
type MockEngine struct {
	config *MockEngineConfig
}

func (e *MockEngine) Init(scripts []*jsexecutor.InitScript) error   { return nil }
func (e *MockEngine) Reload(scripts []*jsexecutor.InitScript) error { return nil }
func (e *MockEngine) Close() error                                  { return nil }

func (e *MockEngine) Execute(req *jsexecutor.JsRequest) (*jsexecutor.JsResponse, error) {
	e.config.mu.Lock()
	e.config.requests = append(e.config.requests, req)
	e.config.mu.Unlock()

	if e.config.ExecuteError != nil {
		return nil, e.config.ExecuteError
	}

	if e.config.ServiceResponses != nil {
		if serviceResponse, exists := e.config.ServiceResponses[req.Service]; exists {
			return &jsexecutor.JsResponse{Id: req.Id, Result: serviceResponse}, nil
		}
	}

	if e.config.InvalidResult {
		return &jsexecutor.JsResponse{Id: req.Id, Result: "This is not a map[string]interface{}"}, nil
	}

	switch req.Service {
	case BabelTransformService:
		return e.handleBabelTransform(req)
	case SassRenderService:
		return e.handleSassRenderSync(req)
	}
	return nil, fmt.Errorf("unknown service %q", req.Service)
}

// handleBabelTransform echoes the source, tagged with the file name and target
func (e *MockEngine) handleBabelTransform(req *jsexecutor.JsRequest) (*jsexecutor.JsResponse, error) {
	if len(req.Args) != 3 {
		return nil, fmt.Errorf("expected 3 arguments, got %d", len(req.Args))
	}
	name, _ := req.Args[0].(string)
	source, _ := req.Args[1].(string)
	opts, _ := req.Args[2].(map[string]interface{})

	if e.config.Babel != nil && e.config.Babel.NoCode {
		return &jsexecutor.JsResponse{Id: req.Id, Result: map[string]interface{}{}}, nil
	}
	if strings.Contains(source, "SYNTAX ERROR") {
		return nil, fmt.Errorf("%s: Unexpected token (1:0)", name)
	}

	prefix := fmt.Sprintf("/* %s %v */\n", name, opts["generate"])
	if e.config.Babel != nil && e.config.Babel.Prefix != "" {
		prefix = e.config.Babel.Prefix
	}
	return &jsexecutor.JsResponse{
		Id:     req.Id,
		Result: map[string]interface{}{"code": prefix + source},
	}, nil
}

// handleSassRenderSync handles the Sass compilation service
func (e *MockEngine) handleSassRenderSync(req *jsexecutor.JsRequest) (*jsexecutor.JsResponse, error) {
	if e.config.Sass != nil && e.config.Sass.CompileError {
		return nil, fmt.Errorf("Sass compilation failed: syntax error")
	}

	css := ".mock-sass { color: red; }"
	if e.config.Sass != nil {
		css = e.config.Sass.CSS
	}
	return &jsexecutor.JsResponse{
		Id:     req.Id,
		Result: map[string]interface{}{"css": css, "map": ""},
	}, nil
}

// NewMockEngineFactory creates a factory that returns MockEngine with given config
func NewMockEngineFactory(config *MockEngineConfig) jsexecutor.JsEngineFactory {
	return func() (jsexecutor.JsEngine, error) {
		return &MockEngine{config: config}, nil
	}
}

// createTestExecutor starts an executor over a mock engine configured by config.
func createTestExecutor(t *testing.T, config *MockEngineConfig) *jsexecutor.JsExecutor {
	t.Helper()

	jsExec, err := jsexecutor.NewExecutor(
		jsexecutor.WithJsEngine(NewMockEngineFactory(config)),
	)
	if err != nil {
		t.Fatalf("Failed to create JS executor: %v", err)
	}
	if err := jsExec.Start(); err != nil {
		t.Fatalf("Failed to start JS executor: %v", err)
	}
	t.Cleanup(func() { jsExec.Stop() })
	return jsExec
}
