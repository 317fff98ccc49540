// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	solidrepl "github.com/buke/solid-repl-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputWrite(t *testing.T) {
	tabs := []solidrepl.Tab{
		{Name: "main.tsx", Source: `import { render } from "solid-js/web";
import { Counter } from "./counter";
render(() => <Counter />, document.getElementById("app"));`},
		{Name: "counter.tsx", Source: `export const Counter = () => <button>0</button>;`},
		{Name: "index.html", Source: `<!DOCTYPE html><html><head><title>t</title><script data-dev></script></head><body><div id="app"></div></body></html>`},
	}
	compiler := solidrepl.NewCompiler(solidrepl.WithCDN("https://example.com"))
	modules, err := compiler.CompileProject(context.Background(), tabs)
	require.NoError(t, err)
	importMap := solidrepl.Reconcile(solidrepl.NewImportMap(), modules, compiler.DefaultURL)

	dir := t.TempDir()
	stale := filepath.Join(dir, moduleDir, "old.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	out := NewOutput(dir, func() []solidrepl.Tab { return tabs }, []string{"//script[@data-dev]"}, nil)
	require.NoError(t, out.Write(solidrepl.PreviewUpdate{Modules: modules, ImportMap: importMap}))

	main, err := os.ReadFile(filepath.Join(dir, moduleDir, "main.js"))
	require.NoError(t, err)
	assert.Contains(t, string(main), "window.dispose")
	assert.FileExists(t, filepath.Join(dir, moduleDir, "counter.js"))
	assert.NoFileExists(t, stale)

	doc, err := os.ReadFile(filepath.Join(dir, solidrepl.IndexHtmlTabName))
	require.NoError(t, err)
	assert.Contains(t, string(doc), `src="./modules/main.js"`)
	assert.Contains(t, string(doc), `"./modules/counter":"./modules/counter.js"`)
	assert.Contains(t, string(doc), `"solid-js/web":"https://example.com/solid-js/web"`)
	assert.NotContains(t, string(doc), "data-dev")

	mapSource, err := os.ReadFile(filepath.Join(dir, solidrepl.ImportMapTabName))
	require.NoError(t, err)
	assert.Equal(t, importMap.Source(), string(mapSource))
	assert.NotContains(t, string(mapSource), "./modules")
}

func TestOutputWriteWithoutModules(t *testing.T) {
	dir := t.TempDir()
	out := NewOutput(dir, nil, nil, nil)
	require.NoError(t, out.Write(solidrepl.PreviewUpdate{}))

	doc, err := os.ReadFile(filepath.Join(dir, solidrepl.IndexHtmlTabName))
	require.NoError(t, err)
	assert.Contains(t, string(doc), `<div id="app">`)
	assert.Contains(t, string(doc), `src="./modules/main.js"`)
}

func TestEntryExtensionLeavesOtherScripts(t *testing.T) {
	tabs := []solidrepl.Tab{{Name: "index.html", Source: `<html><head><script type="module" src="https://cdn.example.com/x"></script></head><body></body></html>`}}
	doc, err := solidrepl.RenderPreview(solidrepl.PreviewOptions{
		Tabs:       tabs,
		ModuleBase: "./modules",
		Processors: []solidrepl.PreviewProcessor{entryExtension},
	}, solidrepl.NewImportMap())
	require.NoError(t, err)
	assert.Contains(t, string(doc), `src="https://cdn.example.com/x"`)
	assert.Contains(t, string(doc), `src="./modules/main.js"`)
}
