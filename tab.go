// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package solidrepl

import (
	"io/fs"
	"path"
	"strings"
	"testing/fstest"
)

// ImportMapTabName is the name of the synthetic tab that carries the import map.
const ImportMapTabName = "import_map.json"

// LocalPrefix marks module specifiers that point at project tabs.
const LocalPrefix = "./"

// codeSuffixes are stripped from tab names when deriving module specifiers.
var codeSuffixes = []string{".tsx", ".jsx", ".ts", ".js"}

// Tab is one named source file of a project.
type Tab struct {
	Name   string `json:"name" yaml:"name"`
	Source string `json:"source" yaml:"source"`
}

// ModuleSpecifier derives the local module specifier for a tab name:
// a leading "./" is dropped, one recognized code suffix is stripped and the
// local prefix is added. "src/App.tsx" becomes "./src/App".
func ModuleSpecifier(name string) string {
	name = toPosixPath(name)
	name = strings.TrimPrefix(name, LocalPrefix)
	for _, suffix := range codeSuffixes {
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}
	return LocalPrefix + name
}

// IsLocalSpecifier reports whether specifier refers to a project module.
func IsLocalSpecifier(specifier string) bool {
	return strings.HasPrefix(specifier, LocalPrefix) || strings.HasPrefix(specifier, "../") || strings.HasPrefix(specifier, "/")
}

// toPosixPath converts Windows-style paths to POSIX-style paths.
func toPosixPath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// FindTab returns the index of the tab called name, or -1.
func FindTab(tabs []Tab, name string) int {
	for i, tab := range tabs {
		if tab.Name == name {
			return i
		}
	}
	return -1
}

// UpsertTab replaces the source of the tab with the same name in place, keeping
// its position, or appends tab when no such tab exists. The input slice is not
// modified.
func UpsertTab(tabs []Tab, tab Tab) []Tab {
	out := make([]Tab, len(tabs), len(tabs)+1)
	copy(out, tabs)
	if idx := FindTab(out, tab.Name); idx >= 0 {
		out[idx].Source = tab.Source
		return out
	}
	return append(out, tab)
}

// UserTabs returns the tabs without the synthetic import map tab.
func UserTabs(tabs []Tab) []Tab {
	out := make([]Tab, 0, len(tabs))
	for _, tab := range tabs {
		if tab.Name != ImportMapTabName {
			out = append(out, tab)
		}
	}
	return out
}

// TabFS exposes tabs as a read-only file system keyed by their cleaned names.
func TabFS(tabs []Tab) fs.FS {
	fsys := make(fstest.MapFS, len(tabs))
	for _, tab := range tabs {
		name := path.Clean(strings.TrimPrefix(toPosixPath(tab.Name), LocalPrefix))
		fsys[name] = &fstest.MapFile{Data: []byte(tab.Source), Mode: 0o644}
	}
	return fsys
}
