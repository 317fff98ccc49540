// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	jsexecutor "github.com/buke/js-executor"
	"github.com/spf13/cobra"

	solidrepl "github.com/buke/solid-repl-go"
	qjscompiler "github.com/buke/solid-repl-go/engines/quickjs-go"
	"github.com/buke/solid-repl-go/internal/appconfig"
	"github.com/buke/solid-repl-go/internal/workspace"
)

// env is what every command starts from.
type env struct {
	cfg    appconfig.Config
	logger *slog.Logger
	tabs   []solidrepl.Tab
	jsExec *jsexecutor.JsExecutor
}

// setup loads the config, installs the logger and reads the project. The
// project flag overrides project.path when set. Call close when done.
func setup(cmd *cobra.Command, cfgPath, project string) (*env, error) {
	cfg, err := appconfig.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if project != "" {
		cfg.Project.Path = project
	}
	logger, err := cfg.Logging.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	tabs, err := workspace.Load(cfg.Project.Path)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	logger.Debug("Project loaded", "path", cfg.Project.Path, "tabs", len(tabs))

	e := &env{cfg: cfg, logger: logger, tabs: tabs}
	if cfg.Compiler.Script != "" {
		e.jsExec, err = newJsExecutor(cfg.Compiler.Script, projectFS(cfg.Project.Path, tabs))
		if err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *env) close() {
	if e.jsExec != nil {
		e.jsExec.Stop()
	}
}

// options returns the compiler options of the loaded config.
func (e *env) options() []solidrepl.OptionFunc {
	opts := e.cfg.Compiler.Options(e.logger)
	if e.jsExec != nil {
		opts = append(opts,
			solidrepl.WithJsExecutor(e.jsExec),
			solidrepl.WithTransformer(solidrepl.NewJsTransformer(e.jsExec)),
		)
	}
	return opts
}

// projectFS is the file system the compiler bundle reads: the directory
// itself, or a snapshot of archived and YAML projects.
func projectFS(path string, tabs []solidrepl.Tab) fs.FS {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return os.DirFS(path)
	}
	return solidrepl.TabFS(tabs)
}

func newJsExecutor(scriptPath string, fsys fs.FS) (*jsexecutor.JsExecutor, error) {
	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("read compiler script: %w", err)
	}
	jsExec, err := jsexecutor.NewExecutor(
		jsexecutor.WithJsEngine(qjscompiler.NewSolidCompilerFactory(string(script), fsys)),
	)
	if err != nil {
		return nil, fmt.Errorf("create JS executor: %w", err)
	}
	if err := jsExec.Start(); err != nil {
		return nil, fmt.Errorf("start JS executor: %w", err)
	}
	return jsExec, nil
}
