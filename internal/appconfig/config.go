// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package appconfig

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	solidrepl "github.com/buke/solid-repl-go"
)

// Config is the top-level configuration of the solid-repl command.
type Config struct {
	ConfigVersion int            `mapstructure:"config_version" yaml:"config_version"`
	Project       ProjectConfig  `mapstructure:"project" yaml:"project"`
	Compiler      CompilerConfig `mapstructure:"compiler" yaml:"compiler"`
	HTTP          HTTPConfig     `mapstructure:"http" yaml:"http"`
	Logging       LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// ProjectConfig locates the project and where derived files are written.
type ProjectConfig struct {
	// Path is a directory, a .zip archive or a YAML list of tabs.
	Path   string `mapstructure:"path" yaml:"path"`
	OutDir string `mapstructure:"out_dir" yaml:"out_dir"`
}

// CompilerConfig maps onto the compiler options.
type CompilerConfig struct {
	CDN           string `mapstructure:"cdn" yaml:"cdn"`
	DebounceMS    int    `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	Concurrency   int    `mapstructure:"concurrency" yaml:"concurrency"`
	Mode          string `mapstructure:"mode" yaml:"mode"`
	ModuleName    string `mapstructure:"module_name" yaml:"module_name"`
	DisposeGlobal string `mapstructure:"dispose_global" yaml:"dispose_global"`
	// Script is a compiler bundle run in QuickJS in place of esbuild, empty
	// to transform with esbuild.
	Script string `mapstructure:"script" yaml:"script"`
}

// HTTPConfig configures the preview server.
type HTTPConfig struct {
	Addr            string   `mapstructure:"addr" yaml:"addr"`
	ModuleBase      string   `mapstructure:"module_base" yaml:"module_base"`
	LiveReload      bool     `mapstructure:"live_reload" yaml:"live_reload"`
	RemoveTagXPaths []string `mapstructure:"remove_tag_xpaths" yaml:"remove_tag_xpaths"`
}

// LoggingConfig selects the log level and handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Project: ProjectConfig{
			Path:   ".",
			OutDir: "dist",
		},
		Compiler: CompilerConfig{
			CDN:           solidrepl.DefaultCDN,
			DebounceMS:    int(solidrepl.DefaultDebounce / time.Millisecond),
			Concurrency:   4,
			Mode:          "dom",
			ModuleName:    solidrepl.DefaultUniversalModule,
			DisposeGlobal: solidrepl.DefaultDisposeGlobal,
		},
		HTTP: HTTPConfig{
			Addr:            "127.0.0.1:5173",
			ModuleBase:      "/modules",
			LiveReload:      true,
			RemoveTagXPaths: []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "solid-repl", "config.yaml"), nil
}

// CompileMode resolves the configured inspection mode.
func (c CompilerConfig) CompileMode() (solidrepl.ModeConfig, error) {
	return solidrepl.ModeByName(c.Mode, c.ModuleName)
}

// Options converts the compiler section into compiler options.
func (c CompilerConfig) Options(logger *slog.Logger) []solidrepl.OptionFunc {
	return []solidrepl.OptionFunc{
		solidrepl.WithCDN(c.CDN),
		solidrepl.WithDebounce(time.Duration(c.DebounceMS) * time.Millisecond),
		solidrepl.WithConcurrency(c.Concurrency),
		solidrepl.WithDisposeGlobal(c.DisposeGlobal),
		solidrepl.WithLogger(logger),
	}
}

// ParseLevel converts a configured level name into a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return 0, fmt.Errorf("invalid logging.level %q", name)
	}
	return level, nil
}

// NewLogger builds the logger described by the logging section.
func (c LoggingConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unsupported logging.format %q", c.Format)
}
