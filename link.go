// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package solidrepl

import (
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
)

// linker rewrites the import paths of generated modules so the browser's
// native loader can resolve them, and records the bare imports that need
// import map entries.
type linker struct {
	aliases []pathAlias
	locals  map[string]bool // local specifiers of the project's modules
}

func newLinker(aliases []pathAlias, tabs []Tab) *linker {
	locals := make(map[string]bool, len(tabs))
	for _, tab := range tabs {
		locals[ModuleSpecifier(tab.Name)] = true
	}
	return &linker{aliases: aliases, locals: locals}
}

// stripCodeSuffix removes one recognized code suffix from an import path.
func stripCodeSuffix(p string) string {
	for _, suffix := range codeSuffixes {
		if strings.HasSuffix(p, suffix) && len(p) > len(suffix) {
			return strings.TrimSuffix(p, suffix)
		}
	}
	return p
}

func isURLImport(p string) bool {
	return strings.Contains(p, "://") || strings.HasPrefix(p, "data:") || strings.HasPrefix(p, "blob:")
}

// relativeSpecifier expresses the project-relative target as an import path
// relative to the module importer.
func relativeSpecifier(importer, target string) string {
	dir := path.Dir(strings.TrimPrefix(importer, LocalPrefix))
	rel, err := filepath.Rel(filepath.FromSlash(dir), filepath.FromSlash(target))
	if err != nil {
		return LocalPrefix + target
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, "../") {
		rel = LocalPrefix + rel
	}
	return rel
}

// resolve maps one import path found in the module importer.
// It returns the path to emit and whether it is a bare specifier.
func (l *linker) resolve(importer, importPath string) (string, bool) {
	if isURLImport(importPath) {
		return importPath, false
	}
	if target, ok := applyPathAlias(l.aliases, importPath); ok {
		target = stripCodeSuffix(strings.TrimPrefix(target, LocalPrefix))
		if l.locals[LocalPrefix+target] {
			return relativeSpecifier(importer, target), false
		}
	}
	if IsLocalSpecifier(importPath) {
		return stripCodeSuffix(importPath), false
	}
	return importPath, true
}

// link runs esbuild over generated code with every import marked external,
// returning the rewritten module and its sorted bare imports. esbuild resolves
// imports concurrently, so discovery order is not stable.
func (l *linker) link(name, code string) (string, []string, error) {
	importer := ModuleSpecifier(name)

	var mu sync.Mutex
	var bare []string
	seen := make(map[string]bool)

	result := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   code,
			Sourcefile: name,
			Loader:     api.LoaderJS,
		},
		Bundle:   true,
		Write:    false,
		Format:   api.FormatESModule,
		Target:   api.ESNext,
		Platform: api.PlatformBrowser,
		Outdir:   "/solid-repl",
		LogLevel: api.LogLevelSilent,
		Plugins: []api.Plugin{{
			Name: "solid-repl-linker",
			Setup: func(build api.PluginBuild) {
				build.OnResolve(api.OnResolveOptions{Filter: `.*`}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					resolved, isBare := l.resolve(importer, args.Path)
					if isBare {
						mu.Lock()
						if !seen[resolved] {
							seen[resolved] = true
							bare = append(bare, resolved)
						}
						mu.Unlock()
					}
					return api.OnResolveResult{Path: resolved, External: true}, nil
				})
			},
		}},
	})
	if len(result.Errors) > 0 {
		return "", nil, &TransformError{File: name, Message: formatMessages(result.Errors)}
	}
	for _, file := range result.OutputFiles {
		if strings.HasSuffix(file.Path, ".js") {
			sort.Strings(bare)
			return string(file.Contents), bare, nil
		}
	}
	return "", nil, &TransformError{File: name, Message: "linker produced no output"}
}
