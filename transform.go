// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package solidrepl

import (
	"fmt"
	"path"
	"regexp"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Transformer turns framework-flavored source into plain ES module code.
// Implementations must be pure functions of their inputs and safe for
// concurrent use.
type Transformer interface {
	Transform(name, source string, mode ModeConfig) (string, error)
}

// TransformFunc adapts a function to the Transformer interface.
type TransformFunc func(name, source string, mode ModeConfig) (string, error)

// Transform calls f.
func (f TransformFunc) Transform(name, source string, mode ModeConfig) (string, error) {
	return f(name, source, mode)
}

// TransformError reports a tab that could not be compiled.
type TransformError struct {
	File    string
	Message string
}

func (e *TransformError) Error() string {
	if e.File == "" {
		return e.Message
	}
	return e.File + ": " + e.Message
}

// jsxImportSource is the JSX runtime used for the dom and ssr targets.
const jsxImportSource = "solid-js/h"

// EsbuildTransformer compiles TSX/JSX with esbuild's automatic JSX runtime.
type EsbuildTransformer struct {
	// Target is the language level of the generated code. Defaults to ESNext.
	Target api.Target
}

// NewEsbuildTransformer returns the default transformer.
func NewEsbuildTransformer() *EsbuildTransformer {
	return &EsbuildTransformer{Target: api.ESNext}
}

// Transform implements Transformer.
func (t *EsbuildTransformer) Transform(name, source string, mode ModeConfig) (string, error) {
	mode = mode.normalized()
	if err := mode.Validate(); err != nil {
		return "", err
	}

	importSource := jsxImportSource
	if mode.Generate == GenerateUniversal {
		importSource = mode.ModuleName
	}

	platform := api.PlatformBrowser
	if mode.Generate == GenerateSSR {
		platform = api.PlatformNeutral
	}

	result := api.Transform(source, api.TransformOptions{
		Loader:          loaderFor(name),
		Sourcefile:      name,
		Format:          api.FormatESModule,
		Target:          t.Target,
		Platform:        platform,
		JSX:             api.JSXAutomatic,
		JSXImportSource: importSource,
		Define:          modeDefines(mode),
		LogLevel:        api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("%s", formatMessages(result.Errors))
	}
	return string(result.Code), nil
}

// loaderFor picks the esbuild loader from the tab suffix. Everything that is
// neither TypeScript nor JSON is parsed as TSX.
func loaderFor(name string) api.Loader {
	switch path.Ext(name) {
	case ".ts", ".mts":
		return api.LoaderTS
	case ".json":
		return api.LoaderJSON
	default:
		return api.LoaderTSX
	}
}

// modeDefines exposes the compile mode to the program through import.meta.env.
func modeDefines(mode ModeConfig) map[string]string {
	return map[string]string{
		"import.meta.env.SSR":        strconv.FormatBool(mode.Generate == GenerateSSR),
		"import.meta.env.HYDRATABLE": strconv.FormatBool(mode.Hydratable),
		"import.meta.env.DEV":        "true",
		"import.meta.env.PROD":       "false",
		"import.meta.env.MODE":       strconv.Quote("development"),
	}
}

// formatMessages joins esbuild messages as "file:line:col: text".
func formatMessages(msgs []api.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if loc := msg.Location; loc != nil {
			parts = append(parts, fmt.Sprintf("%s:%d:%d: %s", loc.File, loc.Line, loc.Column, msg.Text))
			continue
		}
		parts = append(parts, msg.Text)
	}
	return strings.Join(parts, "\n")
}

// renderCall matches the first root render call that is not a member access.
var renderCall = regexp.MustCompile(`(^|[^\w$.])render\(`)

// captureDispose rewrites the first root render call so its disposer is stored
// on global.
func captureDispose(code, global string) string {
	loc := renderCall.FindStringSubmatchIndex(code)
	if loc == nil {
		return code
	}
	start := loc[3] // end of the leading boundary group
	return code[:start] + global + " = " + code[start:]
}

// transformOne runs t on one tab and applies the dispose rewrite. Failures,
// panics included, come back as *TransformError.
func transformOne(t Transformer, name, source string, mode ModeConfig, disposeGlobal string) (code string, err error) {
	defer func() {
		if r := recover(); r != nil {
			code = ""
			err = &TransformError{File: name, Message: fmt.Sprintf("transformer panic: %v\n%s", r, debug.Stack())}
		}
	}()

	code, err = t.Transform(name, source, mode)
	if err != nil {
		return "", &TransformError{File: name, Message: err.Error()}
	}
	if loaderFor(name) == api.LoaderJSON {
		return code, nil
	}
	return captureDispose(code, disposeGlobal), nil
}
