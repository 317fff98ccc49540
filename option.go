// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package solidrepl

import (
	"log/slog"
	"strings"
	"time"

	jsexecutor "github.com/buke/js-executor"
)

// Defaults used when no option overrides them.
const (
	DefaultCDN           = "https://jspm.dev/"
	DefaultDebounce      = 250 * time.Millisecond
	DefaultDisposeGlobal = "window.dispose"
)

// OnSourceProcessor transforms a tab's source before it is compiled.
// Processors run in registration order; an error aborts the compilation of
// the whole project.
type OnSourceProcessor func(tab Tab, mode ModeConfig) (string, error)

// Options holds the compiler and session configuration.
type Options struct {
	transformer   Transformer            // Source-to-source transformer for code tabs
	jsExecutor    *jsexecutor.JsExecutor // Optional executor for Sass and the JS transformer
	cdn           string                 // Base URL of default import map entries
	debounce      time.Duration          // Quiet window of the compile scheduler
	concurrency   int                    // Files compiled in parallel per project pass
	disposeGlobal string                 // Global slot receiving the root render disposer

	onSourceProcessors []OnSourceProcessor

	logger *slog.Logger
}

// OptionFunc configures Options using the functional options pattern.
type OptionFunc func(*Options)

// newOptions returns options with default values.
func newOptions() *Options {
	return &Options{
		cdn:           DefaultCDN,
		debounce:      DefaultDebounce,
		concurrency:   4,
		disposeGlobal: DefaultDisposeGlobal,
		logger:        slog.Default(),
	}
}

func applyOptions(optsFunc []OptionFunc) *Options {
	opts := newOptions()
	for _, fn := range optsFunc {
		fn(opts)
	}
	if opts.transformer == nil {
		opts.transformer = NewEsbuildTransformer()
	}
	return opts
}

// WithTransformer sets the transformer used for code tabs. Defaults to the
// esbuild transformer.
func WithTransformer(t Transformer) OptionFunc {
	return func(opts *Options) {
		opts.transformer = t
	}
}

// WithJsExecutor sets the JavaScript executor used to compile Sass assets.
// Use NewJsTransformer to also route code tabs through it.
func WithJsExecutor(jsExecutor *jsexecutor.JsExecutor) OptionFunc {
	return func(opts *Options) {
		opts.jsExecutor = jsExecutor
	}
}

// WithCDN sets the base URL of import map entries derived for bare specifiers.
func WithCDN(cdn string) OptionFunc {
	return func(opts *Options) {
		if cdn == "" {
			return
		}
		if !strings.HasSuffix(cdn, "/") {
			cdn += "/"
		}
		opts.cdn = cdn
	}
}

// WithDebounce sets the quiet window between an edit and the compile request.
func WithDebounce(d time.Duration) OptionFunc {
	return func(opts *Options) {
		if d > 0 {
			opts.debounce = d
		}
	}
}

// WithConcurrency bounds how many files of a project compile in parallel.
func WithConcurrency(n int) OptionFunc {
	return func(opts *Options) {
		if n > 0 {
			opts.concurrency = n
		}
	}
}

// WithDisposeGlobal sets the expression that captures the root render
// disposer, "window.dispose" by default.
func WithDisposeGlobal(expr string) OptionFunc {
	return func(opts *Options) {
		if expr != "" {
			opts.disposeGlobal = expr
		}
	}
}

// WithOnSourceProcessor adds an OnSourceProcessor to the processor chain.
func WithOnSourceProcessor(processor OnSourceProcessor) OptionFunc {
	return func(opts *Options) {
		opts.onSourceProcessors = append(opts.onSourceProcessors, processor)
	}
}

// WithLogger sets a custom logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) OptionFunc {
	return func(opts *Options) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

// DefaultURL returns the import map URL derived for a bare specifier.
func (o *Options) DefaultURL(specifier string) string {
	return o.cdn + specifier
}
