// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Package qjscompiler provides QuickJS engines preloaded with a Solid compiler
// bundle for use with a js-executor.
package qjscompiler

import (
	"io/fs"

	jsexecutor "github.com/buke/js-executor"
	quickjsengine "github.com/buke/js-executor/engines/quickjs-go"
)

// NewSolidCompilerFactory creates a JsEngineFactory whose engines evaluate
// script, a compiler bundle registering the solid.babel.transform and
// solid.sass.renderSync services. The bundle reads project files through a
// global compilerFs object backed by fsys; a nil fsys exposes no files.
// Additional QuickJS engine options can be passed via the variadic parameter.
func NewSolidCompilerFactory(script string, fsys fs.FS, options ...quickjsengine.Option) jsexecutor.JsEngineFactory {
	// Inject file system helper functions into the JS context
	options = append(options, fsModule(fsys))
	// Load and evaluate the compiler bundle bytecode
	options = append(options, compilerModule(script))
	return quickjsengine.NewFactory(options...)
}
