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

// compileOutput is what compile prints for a whole project.
type compileOutput struct {
	Modules   *solidrepl.ModuleMap `json:"modules"`
	ImportMap *solidrepl.ImportMap `json:"importMap"`
}

func newCompileCmd() *cobra.Command {
	var cfgPath, project, output, file, mode string
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a project once",
		Long: "Compile every module of a project and print the module map with the reconciled import map as JSON.\n" +
			"With --file, print the output of a single tab in the configured or given mode.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, cfgPath, project)
			if err != nil {
				return err
			}
			defer e.close()

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			compiler := solidrepl.NewCompiler(e.options()...)
			if file != "" {
				return compileFile(cmd, compiler, e, w, file, mode)
			}

			modules, err := compiler.CompileProject(cmd.Context(), solidrepl.UserTabs(e.tabs))
			if err != nil {
				return err
			}
			prev, err := solidrepl.ImportMapFromTabs(e.tabs)
			if err != nil {
				e.logger.Warn("Ignoring malformed import map", "file", solidrepl.ImportMapTabName, "error", err)
			}
			importMap := solidrepl.Reconcile(prev, modules, compiler.DefaultURL)

			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(compileOutput{Modules: modules, ImportMap: importMap}); err != nil {
				return err
			}
			local := 0
			for _, specifier := range modules.Keys() {
				if solidrepl.IsLocalSpecifier(specifier) {
					local++
				}
			}
			okLabel.Fprint(cmd.ErrOrStderr(), "compiled ")
			fmt.Fprintf(cmd.ErrOrStderr(), "%d modules, %d import map entries\n", local, importMap.Len())
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&project, "project", "p", "", "project directory, .zip or .yaml (default: project.path)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result to this file instead of stdout")
	cmd.Flags().StringVarP(&file, "file", "f", "", "compile only this tab")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "compile mode for --file: dom, ssr, hydratable or universal (default: compiler.mode)")
	return cmd
}

func compileFile(cmd *cobra.Command, compiler *solidrepl.Compiler, e *env, w io.Writer, name, modeName string) error {
	idx := solidrepl.FindTab(e.tabs, name)
	if idx < 0 {
		return fmt.Errorf("tab %q not found", name)
	}
	compilerCfg := e.cfg.Compiler
	if modeName != "" {
		compilerCfg.Mode = modeName
	}
	mode, err := compilerCfg.CompileMode()
	if err != nil {
		return err
	}
	code, err := compiler.CompileFile(cmd.Context(), e.tabs[idx], mode)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, code)
	return err
}
