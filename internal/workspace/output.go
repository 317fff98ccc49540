// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	solidrepl "github.com/buke/solid-repl-go"
	"golang.org/x/net/html"
)

// moduleDir is where compiled modules are written, relative to the output
// directory and to the preview document.
const moduleDir = "modules"

// Output writes each successful project compilation to a directory that any
// static file server can host: index.html, import_map.json and one .js file
// per local module.
type Output struct {
	dir             string
	tabs            func() []solidrepl.Tab
	removeTagXPaths []string
	logger          *slog.Logger

	mu sync.Mutex
}

// NewOutput returns an Output writing into dir. tabs supplies the project's
// index.html, if any.
func NewOutput(dir string, tabs func() []solidrepl.Tab, removeTagXPaths []string, logger *slog.Logger) *Output {
	if logger == nil {
		logger = slog.Default()
	}
	return &Output{dir: dir, tabs: tabs, removeTagXPaths: removeTagXPaths, logger: logger}
}

// UpdatePreview implements solidrepl.PreviewConsumer.
func (o *Output) UpdatePreview(update solidrepl.PreviewUpdate) {
	if err := o.Write(update); err != nil {
		o.logger.Error("Failed to write output", "dir", o.dir, "error", err)
		return
	}
	o.logger.Info("Output written", "dir", o.dir, "modules", update.Modules.Len())
}

// ShowError implements solidrepl.ErrorConsumer.
func (o *Output) ShowError(message string) {
	if message == "" {
		o.logger.Info("Compilation recovered")
		return
	}
	o.logger.Error("Compilation failed", "error", message)
}

// Write replaces the content of the output directory with update.
func (o *Output) Write(update solidrepl.PreviewUpdate) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	modules := update.Modules
	if modules == nil {
		modules = solidrepl.NewModuleMap()
	}
	modulesPath := filepath.Join(o.dir, moduleDir)
	if err := os.RemoveAll(modulesPath); err != nil {
		return err
	}

	// Browsers do not add extensions, so local specifiers are mapped onto
	// the written files.
	importMap := update.ImportMap.Clone()
	for _, specifier := range modules.Keys() {
		if !solidrepl.IsLocalSpecifier(specifier) {
			continue
		}
		rel := strings.TrimPrefix(specifier, solidrepl.LocalPrefix)
		target := filepath.Join(modulesPath, filepath.FromSlash(rel)+".js")
		if !strings.HasPrefix(target, modulesPath+string(filepath.Separator)) {
			return fmt.Errorf("module %s escapes the output directory", specifier)
		}
		code, _ := modules.Get(specifier)
		if err := writeFile(target, code); err != nil {
			return err
		}
		url := solidrepl.LocalPrefix + moduleDir + "/" + rel
		importMap.Set(url, url+".js")
	}

	var tabs []solidrepl.Tab
	if o.tabs != nil {
		tabs = o.tabs()
	}
	doc, err := solidrepl.RenderPreview(solidrepl.PreviewOptions{
		Tabs:            tabs,
		ModuleBase:      solidrepl.LocalPrefix + moduleDir,
		RemoveTagXPaths: o.removeTagXPaths,
		Processors:      []solidrepl.PreviewProcessor{entryExtension},
	}, importMap)
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(o.dir, solidrepl.IndexHtmlTabName), string(doc)); err != nil {
		return err
	}
	return writeFile(filepath.Join(o.dir, solidrepl.ImportMapTabName), update.ImportMap.Source())
}

// entryExtension points the entry script at the written .js file; script
// sources are fetched directly and never go through the import map.
func entryExtension(doc *html.Node, _ *solidrepl.ImportMap, opts solidrepl.PreviewOptions) error {
	prefix := strings.TrimSuffix(opts.ModuleBase, "/") + "/"
	for _, script := range htmlquery.Find(doc, "//script[@type='module'][@src]") {
		for i := range script.Attr {
			attr := &script.Attr[i]
			if attr.Key == "src" && strings.HasPrefix(attr.Val, prefix) && !strings.HasSuffix(attr.Val, ".js") {
				attr.Val += ".js"
			}
		}
	}
	return nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
