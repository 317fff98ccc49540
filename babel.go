// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package solidrepl

import (
	"errors"
	"fmt"

	jsexecutor "github.com/buke/js-executor"
	"github.com/rs/xid"
)

// Services expected from the compiler bundle loaded into the JS executor.
const (
	BabelTransformService = "solid.babel.transform"
	SassRenderService     = "solid.sass.renderSync"
)

// JsTransformer runs the framework's own compiler inside a JS executor.
// The bundle must expose BabelTransformService taking
// (filename, source, {generate, hydratable, moduleName}) and returning {code}.
type JsTransformer struct {
	jsExecutor *jsexecutor.JsExecutor
}

// NewJsTransformer returns a transformer backed by jsExecutor.
// Panics if jsExecutor is nil.
func NewJsTransformer(jsExecutor *jsexecutor.JsExecutor) *JsTransformer {
	if jsExecutor == nil {
		panic("jsExecutor is required for the JS transformer")
	}
	return &JsTransformer{jsExecutor: jsExecutor}
}

// Transform implements Transformer.
func (t *JsTransformer) Transform(name, source string, mode ModeConfig) (string, error) {
	mode = mode.normalized()
	if err := mode.Validate(); err != nil {
		return "", err
	}

	compileOpts := map[string]interface{}{
		"generate":   string(mode.Generate),
		"hydratable": mode.Hydratable,
	}
	if mode.ModuleName != "" {
		compileOpts["moduleName"] = mode.ModuleName
	}

	jsResponse, err := t.jsExecutor.Execute(&jsexecutor.JsRequest{
		Id:      xid.New().String(),
		Service: BabelTransformService,
		Args:    []interface{}{toPosixPath(name), source, compileOpts},
	})
	if err != nil {
		return "", fmt.Errorf("babel transform failed: %w", err)
	}

	result, ok := jsResponse.Result.(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid babel transform result: %v", jsResponse.Result)
	}
	code, ok := result["code"].(string)
	if !ok {
		return "", errors.New("babel transform result has no code")
	}
	return code, nil
}

// compileSass compiles Sass to CSS through the JS executor.
func compileSass(name, source string, jsExecutor *jsexecutor.JsExecutor) (string, error) {
	if jsExecutor == nil {
		return "", errors.New("sass assets need a JS executor, set one with WithJsExecutor()")
	}

	jsResponse, err := jsExecutor.Execute(&jsexecutor.JsRequest{
		Id:      xid.New().String(),
		Service: SassRenderService,
		Args: []interface{}{map[string]interface{}{
			"data":      source,
			"indented":  isIndentedSass(name),
			"sourceMap": false,
			"style":     "expanded",
		}},
	})
	if err != nil {
		return "", fmt.Errorf("sass compilation service failed: %w", err)
	}

	result, ok := jsResponse.Result.(map[string]interface{})
	if !ok {
		return "", errors.New("invalid response from sass compilation service")
	}
	css, ok := result["css"].(string)
	if !ok {
		return "", errors.New("failed to extract CSS from compilation result")
	}
	return css, nil
}
