// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/buke/solid-repl-go/internal/workspace"
)

func newWatchCmd() *cobra.Command {
	var cfgPath, project, outDir string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Recompile a project directory on change and write the preview to disk",
		Long: "Watch a project directory and write index.html, import_map.json and the compiled modules\n" +
			"into the output directory after every successful compilation.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, cfgPath, project)
			if err != nil {
				return err
			}
			defer e.close()
			if outDir != "" {
				e.cfg.Project.OutDir = outDir
			}

			session, err := newSession(e)
			if err != nil {
				return err
			}
			w, err := newProjectWatcher(e, session)
			if err != nil {
				return err
			}
			defer w.Close()

			out := workspace.NewOutput(e.cfg.Project.OutDir, session.Tabs, e.cfg.HTTP.RemoveTagXPaths, e.logger)
			session.MountPreview(out)
			defer session.UnmountPreview()
			e.logger.Info("Watching project", "dir", e.cfg.Project.Path, "out", e.cfg.Project.OutDir)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return session.Run(ctx) })
			g.Go(func() error { return w.Run(ctx) })
			return g.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&project, "project", "p", "", "project directory (default: project.path)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default: project.out_dir)")
	return cmd
}
