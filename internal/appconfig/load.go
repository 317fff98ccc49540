// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment variables overriding config keys, e.g.
// SOLID_REPL_HTTP_ADDR for http.addr.
const EnvPrefix = "SOLID_REPL"

// Load reads configuration from the provided path. If path is empty, uses
// DefaultConfigPath and a missing file yields the defaults.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("project.path", cfg.Project.Path)
	v.SetDefault("project.out_dir", cfg.Project.OutDir)
	v.SetDefault("compiler.cdn", cfg.Compiler.CDN)
	v.SetDefault("compiler.debounce_ms", cfg.Compiler.DebounceMS)
	v.SetDefault("compiler.concurrency", cfg.Compiler.Concurrency)
	v.SetDefault("compiler.mode", cfg.Compiler.Mode)
	v.SetDefault("compiler.module_name", cfg.Compiler.ModuleName)
	v.SetDefault("compiler.dispose_global", cfg.Compiler.DisposeGlobal)
	v.SetDefault("compiler.script", cfg.Compiler.Script)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.module_base", cfg.HTTP.ModuleBase)
	v.SetDefault("http.live_reload", cfg.HTTP.LiveReload)
	v.SetDefault("http.remove_tag_xpaths", cfg.HTTP.RemoveTagXPaths)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
		if !missing || explicit {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values the command cannot start without.
func Validate(cfg Config) error {
	if _, err := cfg.Compiler.CompileMode(); err != nil {
		return fmt.Errorf("compiler.mode: %w", err)
	}
	if cfg.Compiler.DebounceMS < 0 {
		return fmt.Errorf("compiler.debounce_ms must not be negative")
	}
	if cfg.Compiler.Concurrency < 0 {
		return fmt.Errorf("compiler.concurrency must not be negative")
	}
	base := strings.TrimSpace(cfg.HTTP.ModuleBase)
	if !strings.HasPrefix(base, "/") || strings.ContainsAny(base, "?#{}") {
		return fmt.Errorf("http.module_base must be an absolute path prefix, got %q", cfg.HTTP.ModuleBase)
	}
	if _, err := ParseLevel(cfg.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unsupported logging.format %q", cfg.Logging.Format)
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	cfg.Project.Path = expandEnv(cfg.Project.Path)
	cfg.Project.OutDir = expandEnv(cfg.Project.OutDir)
	cfg.Compiler.Script = expandEnv(cfg.Compiler.Script)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
