// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Package workspace moves playground projects between the file system and
// tabs: loading, watching and writing compiled output.
package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	solidrepl "github.com/buke/solid-repl-go"
	"gopkg.in/yaml.v3"
)

// maxFileSize bounds the size of a file read into a tab.
const maxFileSize = 8 << 20

// ProjectFile is the YAML form of a project.
type ProjectFile struct {
	Tabs []solidrepl.Tab `yaml:"tabs"`
}

// Load reads the project at path: a directory, a .zip archive written by
// the export command or a YAML project file.
func Load(path string) ([]solidrepl.Tab, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return loadZip(path, info.Size())
	case ".yaml", ".yml":
		return loadYAML(path)
	}
	return nil, fmt.Errorf("unsupported project file %s: expected a directory, .zip or .yaml", path)
}

// LoadDir reads every file below dir as a tab named by its slash-separated
// path relative to dir. Hidden entries and node_modules are skipped.
func LoadDir(dir string) ([]solidrepl.Tab, error) {
	var tabs []solidrepl.Tab
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && Ignored(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		name, err := TabName(dir, path)
		if err != nil {
			return err
		}
		source, err := readSource(path)
		if err != nil {
			return err
		}
		tabs = append(tabs, solidrepl.Tab{Name: name, Source: source})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tabs, nil
}

// Ignored reports whether a file or directory name is left out of projects.
func Ignored(name string) bool {
	return strings.HasPrefix(name, ".") || name == "node_modules"
}

// TabName returns the tab name of path inside dir.
func TabName(dir, path string) (string, error) {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return "", err
	}
	if rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return "", fmt.Errorf("%s is outside %s", path, dir)
	}
	return filepath.ToSlash(rel), nil
}

func readSource(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > maxFileSize {
		return "", fmt.Errorf("%s: file too large", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func loadZip(path string, size int64) ([]solidrepl.Tab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tabs, err := solidrepl.ImportZip(f, size)
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", path, err)
	}
	return tabs, nil
}

func loadYAML(path string) ([]solidrepl.Tab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var project ProjectFile
	if err := yaml.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("parse project file %s: %w", path, err)
	}
	for i, tab := range project.Tabs {
		if strings.TrimSpace(tab.Name) == "" {
			return nil, fmt.Errorf("%s: tab %d has no name", path, i)
		}
	}
	return project.Tabs, nil
}
