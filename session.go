// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package solidrepl

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"golang.org/x/sync/errgroup"
)

// EntrySpecifier is the module the live preview starts from.
const EntrySpecifier = "./main"

// PreviewUpdate is delivered to the preview after each successful project
// compilation.
type PreviewUpdate struct {
	Code      string     // code of the entry module
	Modules   *ModuleMap // every compiled module
	ImportMap *ImportMap // reconciled import map
}

// PreviewConsumer receives the output of the project channel. Mounting one
// activates the channel.
type PreviewConsumer interface {
	UpdatePreview(update PreviewUpdate)
}

// InspectionConsumer receives the output of the file channel. Mounting one
// activates the channel.
type InspectionConsumer interface {
	UpdateInspection(tab string, code string)
}

// ErrorConsumer is optionally implemented by consumers that want to be told
// about failed compilations. An empty message clears the error.
type ErrorConsumer interface {
	ShowError(message string)
}

// Session holds the state of one playground project: its tabs, the current
// tab, the inspection mode and the import map. Edits are compiled in the
// background once Run is started.
type Session struct {
	opts      *Options
	compiler  *Compiler
	bridge    *Bridge
	scheduler *Scheduler

	mu        sync.Mutex
	tabs      []Tab
	current   string
	mode      ModeConfig
	importMap *ImportMap
	modules   *ModuleMap
	output    string
	lastErr   string
	inspected string
	preview   PreviewConsumer
	inspector InspectionConsumer
}

// NewSession returns a session over tabs. The import map is read from the
// import map tab when present; a malformed one starts empty.
func NewSession(tabs []Tab, optsFunc ...OptionFunc) *Session {
	opts := applyOptions(optsFunc)
	compiler := newCompiler(opts)

	s := &Session{
		opts:     opts,
		compiler: compiler,
		bridge:   NewBridge(CompilerHandler(compiler), opts.logger),
		tabs:     append([]Tab(nil), tabs...),
		mode:     ModeDOM,
	}
	s.importMap = s.parseImportMapLocked()
	if user := UserTabs(s.tabs); len(user) > 0 {
		s.current = user[0].Name
	}
	s.scheduler = NewScheduler(context.Background(), opts.debounce, s.buildRequest, s.bridge.Post, opts.logger)
	return s
}

func (s *Session) parseImportMapLocked() *ImportMap {
	m, err := ImportMapFromTabs(s.tabs)
	if err != nil {
		s.opts.logger.Debug("Ignoring malformed import map", "file", ImportMapTabName, "error", err)
	}
	return m
}

// Compiler returns the compiler used by the session.
func (s *Session) Compiler() *Compiler {
	return s.compiler
}

// Run compiles edits until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	defer s.scheduler.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.bridge.Run(gctx)
	})
	g.Go(func() error {
		for resp := range s.bridge.Responses() {
			if !s.scheduler.Complete(resp) {
				continue
			}
			s.apply(resp)
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// buildRequest snapshots the state needed by ch.
func (s *Session) buildRequest(ch Channel) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ch {
	case ChannelProject:
		return Request{Tabs: UserTabs(s.tabs)}, true
	case ChannelFile:
		idx := FindTab(s.tabs, s.current)
		if idx < 0 {
			return Request{}, false
		}
		tab := s.tabs[idx]
		s.inspected = tab.Name
		return Request{Tab: &tab, CompileOpts: s.mode}, true
	}
	return Request{}, false
}

// apply folds an accepted response into the session and notifies consumers.
func (s *Session) apply(resp Response) {
	s.mu.Lock()
	preview, inspector := s.preview, s.inspector

	if resp.IsError() {
		s.lastErr = resp.ErrorMessage()
		msg := s.lastErr
		s.mu.Unlock()
		s.opts.logger.Debug("Compilation failed", "kind", resp.Kind, "error", msg)
		notifyError(preview, msg)
		if !sameConsumer(inspector, preview) {
			notifyError(inspector, msg)
		}
		return
	}

	hadErr := s.lastErr != ""
	s.lastErr = ""

	switch resp.Event {
	case EventProjectCompile:
		if resp.Modules == nil {
			resp.Modules = NewModuleMap()
		}
		s.importMap = Reconcile(s.importMap, resp.Modules, s.compiler.DefaultURL)
		s.tabs = UpsertTab(s.tabs, s.importMap.Tab())
		s.modules = resp.Modules
		s.output, _ = resp.Modules.Get(EntrySpecifier)
		update := PreviewUpdate{Code: s.output, Modules: resp.Modules, ImportMap: s.importMap.Clone()}
		s.mu.Unlock()
		if hadErr {
			notifyError(preview, "")
		}
		if preview != nil {
			preview.UpdatePreview(update)
		}
	case EventFileCompile:
		name := s.inspected
		s.mu.Unlock()
		if hadErr {
			notifyError(inspector, "")
		}
		if inspector != nil {
			inspector.UpdateInspection(name, resp.Code)
		}
	default:
		s.mu.Unlock()
	}
}

// sameConsumer reports whether a and b are the same mounted consumer.
// Pointers are compared by address; values that cannot be compared are
// never the same.
func sameConsumer(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if va.Kind() == reflect.Pointer {
		return va.Pointer() == vb.Pointer()
	}
	return va.Comparable() && va.Equal(vb)
}

func notifyError(consumer any, msg string) {
	if c, ok := consumer.(ErrorConsumer); ok {
		c.ShowError(msg)
	}
}

// MountPreview attaches the live preview and activates the project channel.
func (s *Session) MountPreview(c PreviewConsumer) {
	s.mu.Lock()
	s.preview = c
	s.mu.Unlock()
	s.scheduler.Activate(ChannelProject, c != nil)
}

// UnmountPreview detaches the live preview.
func (s *Session) UnmountPreview() {
	s.MountPreview(nil)
}

// MountInspector attaches the output inspector and activates the file channel.
func (s *Session) MountInspector(c InspectionConsumer) {
	s.mu.Lock()
	s.inspector = c
	s.mu.Unlock()
	s.scheduler.Activate(ChannelFile, c != nil)
}

// UnmountInspector detaches the output inspector.
func (s *Session) UnmountInspector() {
	s.MountInspector(nil)
}

// SetTabs replaces every tab.
func (s *Session) SetTabs(tabs []Tab) {
	s.mu.Lock()
	s.tabs = append([]Tab(nil), tabs...)
	s.importMap = s.parseImportMapLocked()
	if FindTab(s.tabs, s.current) < 0 {
		s.current = ""
		if user := UserTabs(s.tabs); len(user) > 0 {
			s.current = user[0].Name
		}
	}
	s.mu.Unlock()
	s.scheduler.TouchAll()
}

// Edit sets the source of the named tab, creating it when missing.
func (s *Session) Edit(name, source string) {
	s.mu.Lock()
	s.tabs = UpsertTab(s.tabs, Tab{Name: name, Source: source})
	if name == ImportMapTabName {
		s.importMap = s.parseImportMapLocked()
	}
	s.mu.Unlock()
	s.scheduler.TouchAll()
}

// AddTab adds an empty tab and makes it current.
func (s *Session) AddTab(name string) error {
	s.mu.Lock()
	if FindTab(s.tabs, name) >= 0 {
		s.mu.Unlock()
		return fmt.Errorf("tab %q already exists", name)
	}
	s.tabs = append(s.tabs, Tab{Name: name})
	s.current = name
	s.mu.Unlock()
	s.scheduler.TouchAll()
	return nil
}

// RenameCurrent renames the current tab.
func (s *Session) RenameCurrent(name string) error {
	s.mu.Lock()
	idx := FindTab(s.tabs, s.current)
	switch {
	case idx < 0:
		s.mu.Unlock()
		return errors.New("no current tab")
	case s.current == ImportMapTabName:
		s.mu.Unlock()
		return fmt.Errorf("%s cannot be renamed", ImportMapTabName)
	case name == s.current:
		s.mu.Unlock()
		return nil
	case FindTab(s.tabs, name) >= 0:
		s.mu.Unlock()
		return fmt.Errorf("tab %q already exists", name)
	}
	tabs := append([]Tab(nil), s.tabs...)
	tabs[idx].Name = name
	s.tabs = tabs
	s.current = name
	s.mu.Unlock()
	s.scheduler.TouchAll()
	return nil
}

// RemoveTab removes the named tab. Removing the current tab selects the
// first remaining one.
func (s *Session) RemoveTab(name string) error {
	s.mu.Lock()
	idx := FindTab(s.tabs, name)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("tab %q not found", name)
	}
	tabs := make([]Tab, 0, len(s.tabs)-1)
	tabs = append(tabs, s.tabs[:idx]...)
	s.tabs = append(tabs, s.tabs[idx+1:]...)
	if name == ImportMapTabName {
		s.importMap = NewImportMap()
	}
	if s.current == name {
		s.current = ""
		if user := UserTabs(s.tabs); len(user) > 0 {
			s.current = user[0].Name
		}
	}
	s.mu.Unlock()
	s.scheduler.TouchAll()
	return nil
}

// SetCurrent selects the tab shown in the inspector.
func (s *Session) SetCurrent(name string) error {
	s.mu.Lock()
	if FindTab(s.tabs, name) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("tab %q not found", name)
	}
	s.current = name
	s.mu.Unlock()
	s.scheduler.Touch(ChannelFile)
	return nil
}

// SetMode changes the inspection mode. Only the file channel depends on it.
func (s *Session) SetMode(mode ModeConfig) error {
	mode = mode.normalized()
	if err := mode.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	s.scheduler.Touch(ChannelFile)
	return nil
}

// Tabs returns a copy of every tab, the import map tab included.
func (s *Session) Tabs() []Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Tab(nil), s.tabs...)
}

// Current returns the name of the current tab.
func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Mode returns the inspection mode.
func (s *Session) Mode() ModeConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// ImportMap returns a copy of the current import map.
func (s *Session) ImportMap() *ImportMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.importMap.Clone()
}

// Modules returns the modules of the last successful project compilation.
func (s *Session) Modules() *ModuleMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modules
}

// Output returns the entry module of the last successful project compilation.
func (s *Session) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output
}

// Error returns the message of the last failed compilation, or "" once a
// later one succeeded.
func (s *Session) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
