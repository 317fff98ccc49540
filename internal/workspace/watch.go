// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	solidrepl "github.com/buke/solid-repl-go"
	"github.com/fsnotify/fsnotify"
)

// Editor receives the changes observed in a watched directory.
// *solidrepl.Session implements it.
type Editor interface {
	Tabs() []solidrepl.Tab
	Edit(name, source string)
	RemoveTab(name string) error
}

// Watcher mirrors a project directory into an Editor.
type Watcher struct {
	dir     string
	editor  Editor
	logger  *slog.Logger
	exclude []string
	fsw     *fsnotify.Watcher
}

// NewWatcher watches dir and every directory below it, except the excluded
// paths and ignored names. Call Close when done.
func NewWatcher(dir string, editor Editor, logger *slog.Logger, exclude ...string) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	w := &Watcher{dir: abs, editor: editor, logger: logger}
	for _, path := range exclude {
		if path == "" {
			continue
		}
		p, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		w.exclude = append(w.exclude, p)
	}

	w.fsw, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.addTree(abs); err != nil {
		w.fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run forwards file system events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", "dir", w.dir, "error", err)
		}
	}
}

func (w *Watcher) skipped(path string) bool {
	for _, ex := range w.exclude {
		if path == ex || strings.HasPrefix(path, ex+string(filepath.Separator)) {
			return true
		}
	}
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if Ignored(part) {
			return true
		}
	}
	return false
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.dir && w.skipped(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Name == w.dir || w.skipped(event.Name) {
		return
	}
	name, err := TabName(w.dir, event.Name)
	if err != nil {
		return
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.remove(name)
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("Failed to stat changed file", "file", name, "error", err)
		}
		return
	}
	if info.IsDir() {
		w.addDir(event.Name)
		return
	}
	if !info.Mode().IsRegular() {
		return
	}
	source, err := readSource(event.Name)
	if err != nil {
		w.logger.Warn("Failed to read changed file", "file", name, "error", err)
		return
	}
	w.logger.Debug("File changed", "file", name)
	w.editor.Edit(name, source)
}

// addDir watches a new directory and picks up the files already in it.
func (w *Watcher) addDir(path string) {
	if err := w.addTree(path); err != nil {
		w.logger.Warn("Failed to watch directory", "dir", path, "error", err)
		return
	}
	tabs, err := LoadDir(path)
	if err != nil {
		w.logger.Warn("Failed to read directory", "dir", path, "error", err)
		return
	}
	prefix, err := TabName(w.dir, path)
	if err != nil {
		return
	}
	for _, tab := range tabs {
		w.editor.Edit(prefix+"/"+tab.Name, tab.Source)
	}
}

// remove drops the tab called name, or every tab below it when name was a
// directory.
func (w *Watcher) remove(name string) {
	for _, tab := range w.editor.Tabs() {
		if tab.Name != name && !strings.HasPrefix(tab.Name, name+"/") {
			continue
		}
		if err := w.editor.RemoveTab(tab.Name); err != nil {
			w.logger.Debug("Failed to remove tab", "file", tab.Name, "error", err)
			continue
		}
		w.logger.Debug("File removed", "file", tab.Name)
	}
}
