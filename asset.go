// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package solidrepl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"text/template"

	jsexecutor "github.com/buke/js-executor"
	"github.com/cespare/xxhash"
)

// carrierPrefix prefixes the id of generated style elements.
const carrierPrefix = "solid-repl-"

// IsAsset reports whether a tab is a stylesheet rewritten into a module
// instead of being transformed as code.
func IsAsset(name string) bool {
	switch path.Ext(name) {
	case ".css", ".scss", ".sass":
		return true
	}
	return false
}

func isIndentedSass(name string) bool {
	return path.Ext(name) == ".sass"
}

// CarrierID returns the id of the style element that carries the stylesheet
// of the named tab. It only depends on the name.
func CarrierID(name string) string {
	return carrierPrefix + strconv.FormatUint(xxhash.Sum64String(toPosixPath(name)), 16)
}

var styleModule = template.Must(template.New("style").Parse(`(() => {
  let stylesheet = document.getElementById({{ .id }});
  if (!stylesheet) {
    stylesheet = document.createElement('style');
    stylesheet.setAttribute('id', {{ .id }});
    document.head.appendChild(stylesheet);
  }
  stylesheet.textContent = {{ .css }};
})();
`))

// RewriteAsset turns a stylesheet into a self-executing module that installs
// it in the live document, reusing the same carrier element across runs.
func RewriteAsset(name, css string) (string, error) {
	id, err := json.Marshal(CarrierID(name))
	if err != nil {
		return "", err
	}
	content, err := json.Marshal(css)
	if err != nil {
		return "", err
	}

	buf := new(bytes.Buffer)
	if err := styleModule.Execute(buf, map[string]string{
		"id":  string(id),
		"css": string(content),
	}); err != nil {
		return "", fmt.Errorf("failed to execute style module template: %w", err)
	}
	return buf.String(), nil
}

// rewriteAssetTab compiles Sass when needed and rewrites the result.
func rewriteAssetTab(tab Tab, jsExecutor *jsexecutor.JsExecutor) (string, error) {
	css := tab.Source
	if ext := path.Ext(tab.Name); ext == ".scss" || ext == ".sass" {
		compiled, err := compileSass(tab.Name, tab.Source, jsExecutor)
		if err != nil {
			return "", &TransformError{File: tab.Name, Message: err.Error()}
		}
		css = compiled
	}
	code, err := RewriteAsset(tab.Name, css)
	if err != nil {
		return "", &TransformError{File: tab.Name, Message: err.Error()}
	}
	return code, nil
}
