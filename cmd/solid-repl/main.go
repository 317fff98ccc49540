// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	solidrepl "github.com/buke/solid-repl-go"
)

func main() {
	os.Exit(submain())
}

func submain() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := loadDotEnv(".env"); err != nil {
		printError(os.Stderr, err)
		return 1
	}

	root := newRootCmd()
	root.SetArgs(os.Args[1:])
	if err := root.ExecuteContext(ctx); err != nil {
		printError(root.ErrOrStderr(), err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var noColor bool
	root := &cobra.Command{
		Use:           "solid-repl",
		Short:         "Compile and preview Solid playground projects",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured output")

	root.AddCommand(newCompileCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newInitCmd())

	return root
}

// loadDotEnv loads path into the environment when it exists. Variables
// already set win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

var (
	errorLabel = color.New(color.FgRed, color.Bold)
	fileLabel  = color.New(color.FgCyan)
	okLabel    = color.New(color.FgGreen, color.Bold)
)

// printError reports err, naming the failing file of a compile error.
func printError(w io.Writer, err error) {
	errorLabel.Fprint(w, "error: ")
	var terr *solidrepl.TransformError
	if errors.As(err, &terr) && terr.File != "" {
		fileLabel.Fprint(w, terr.File)
		fmt.Fprintf(w, ": %s\n", terr.Message)
		return
	}
	fmt.Fprintln(w, err)
}
