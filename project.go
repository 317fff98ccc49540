// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package solidrepl

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/buke/solid-repl-go/internal/ordered"
	"golang.org/x/sync/errgroup"
)

// ModuleMap maps module specifiers to compiled module bodies in compilation
// order. Local specifiers carry the "./" prefix; bare imports discovered while
// linking map to their default import map URL.
type ModuleMap struct {
	ordered.Map[string]
}

// NewModuleMap returns an empty module map.
func NewModuleMap() *ModuleMap {
	return &ModuleMap{}
}

// ModuleMapFrom builds a module map from a plain map, ordering keys as given.
func ModuleMapFrom(keys []string, code map[string]string) *ModuleMap {
	m := NewModuleMap()
	for _, k := range keys {
		m.Set(k, code[k])
	}
	return m
}

// Compiler compiles project tabs into browser-loadable ES modules.
// A Compiler holds no per-project state and is safe for concurrent use.
type Compiler struct {
	opts *Options
}

// NewCompiler returns a compiler configured by optsFunc.
func NewCompiler(optsFunc ...OptionFunc) *Compiler {
	return newCompiler(applyOptions(optsFunc))
}

func newCompiler(opts *Options) *Compiler {
	return &Compiler{opts: opts}
}

// DefaultURL returns the import map URL derived for a bare specifier.
func (c *Compiler) DefaultURL(specifier string) string {
	return c.opts.DefaultURL(specifier)
}

// isModuleTab reports whether a tab becomes a module of the project. The
// synthetic import map, tsconfig and documents are inputs of other stages.
func isModuleTab(name string) bool {
	switch name {
	case ImportMapTabName, TsconfigTabName:
		return false
	}
	switch path.Ext(name) {
	case ".html", ".htm", ".md":
		return false
	}
	return true
}

// preprocess runs the source processor chain.
func (c *Compiler) preprocess(tab Tab, mode ModeConfig) (string, error) {
	source := tab.Source
	for _, processor := range c.opts.onSourceProcessors {
		var err error
		source, err = processor(Tab{Name: tab.Name, Source: source}, mode)
		if err != nil {
			return "", &TransformError{File: tab.Name, Message: fmt.Sprintf("source processor failed: %v", err)}
		}
	}
	return source, nil
}

// compileTab turns one tab into module code without linking it.
func (c *Compiler) compileTab(tab Tab, mode ModeConfig) (string, error) {
	source, err := c.preprocess(tab, mode)
	if err != nil {
		return "", err
	}
	tab.Source = source
	if IsAsset(tab.Name) {
		return rewriteAssetTab(tab, c.opts.jsExecutor)
	}
	return transformOne(c.opts.transformer, tab.Name, tab.Source, mode, c.opts.disposeGlobal)
}

type compiledTab struct {
	specifier string
	code      string
	imports   []string
}

// CompileProject compiles every module tab for the live preview with the dom
// target. A failure in any file fails the whole pass; no partial map is
// returned.
func (c *Compiler) CompileProject(ctx context.Context, tabs []Tab) (*ModuleMap, error) {
	start := time.Now()

	modules := make([]Tab, 0, len(tabs))
	for _, tab := range tabs {
		if isModuleTab(tab.Name) {
			modules = append(modules, tab)
		}
	}

	aliases, err := parseTsconfigPathAlias(tabs)
	if err != nil {
		c.opts.logger.Warn("Failed to parse tsconfig path aliases", "error", err)
		aliases = nil
	}
	l := newLinker(aliases, modules)

	results := make([]compiledTab, len(modules))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.concurrency)
	for i, tab := range modules {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			code, err := c.compileTab(tab, ModeDOM)
			if err != nil {
				return err
			}
			var imports []string
			if !IsAsset(tab.Name) {
				code, imports, err = l.link(tab.Name, code)
				if err != nil {
					return err
				}
			}
			results[i] = compiledTab{specifier: ModuleSpecifier(tab.Name), code: code, imports: imports}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.opts.logger.Debug("Project compilation failed", "error", err, "files", len(modules))
		return nil, err
	}

	out := NewModuleMap()
	for _, r := range results {
		out.Set(r.specifier, r.code)
	}
	for _, r := range results {
		for _, imp := range r.imports {
			if !out.Has(imp) {
				out.Set(imp, c.DefaultURL(imp))
			}
		}
	}

	c.opts.logger.Debug("Project compiled", "files", len(modules), "modules", out.Len(), "duration", time.Since(start))
	return out, nil
}

// CompileFile compiles a single tab for inspection with the given mode.
func (c *Compiler) CompileFile(ctx context.Context, tab Tab, mode ModeConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.compileTab(tab, mode)
}
