// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	solidrepl "github.com/buke/solid-repl-go"
)

func newExportCmd() *cobra.Command {
	var cfgPath, project, output, format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a project as a zip archive or a file tree",
		Long: "Export every tab of a project. The zip format can be loaded again with --project;\n" +
			"the tree format prints the nested JSON snapshot handed to container runtimes.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, cfgPath, project)
			if err != nil {
				return err
			}
			defer e.close()

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return exportTabs(w, e.tabs, format)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&project, "project", "p", "", "project directory, .zip or .yaml (default: project.path)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().StringVar(&format, "format", "zip", "export format: zip or tree")
	return cmd
}

func exportTabs(w io.Writer, tabs []solidrepl.Tab, format string) error {
	switch format {
	case "zip":
		return solidrepl.ExportZip(w, tabs)
	case "tree":
		tree, err := solidrepl.BuildFileTree(tabs)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tree)
	}
	return fmt.Errorf("unsupported export format %q", format)
}
