// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	solidrepl "github.com/buke/solid-repl-go"
	"github.com/buke/solid-repl-go/internal/server"
	"github.com/buke/solid-repl-go/internal/workspace"
)

func newServeCmd() *cobra.Command {
	var cfgPath, project, addr string
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live preview of a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, cfgPath, project)
			if err != nil {
				return err
			}
			defer e.close()
			if addr != "" {
				e.cfg.HTTP.Addr = addr
			}

			session, err := newSession(e)
			if err != nil {
				return err
			}
			srv := server.New(session, server.Config{
				ModuleBase:      e.cfg.HTTP.ModuleBase,
				LiveReload:      e.cfg.HTTP.LiveReload,
				RemoveTagXPaths: e.cfg.HTTP.RemoveTagXPaths,
			}, e.logger)

			g, ctx := errgroup.WithContext(cmd.Context())
			if watch {
				w, err := newProjectWatcher(e, session)
				if err != nil {
					return err
				}
				defer w.Close()
				g.Go(func() error { return w.Run(ctx) })
			}
			g.Go(func() error { return srv.ListenAndServe(ctx, e.cfg.HTTP.Addr) })
			return g.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&project, "project", "p", "", "project directory, .zip or .yaml (default: project.path)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: http.addr)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "recompile when files of a project directory change")
	return cmd
}

// newSession returns a session over the loaded project in the configured
// inspection mode.
func newSession(e *env) (*solidrepl.Session, error) {
	session := solidrepl.NewSession(e.tabs, e.options()...)
	mode, err := e.cfg.Compiler.CompileMode()
	if err != nil {
		return nil, err
	}
	if err := session.SetMode(mode); err != nil {
		return nil, err
	}
	return session, nil
}

func newProjectWatcher(e *env, session *solidrepl.Session) (*workspace.Watcher, error) {
	info, err := os.Stat(e.cfg.Project.Path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cannot watch %s: not a directory", e.cfg.Project.Path)
	}
	return workspace.NewWatcher(e.cfg.Project.Path, session, e.logger, e.cfg.Project.OutDir)
}
