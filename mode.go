// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package solidrepl

import (
	"errors"
	"fmt"
)

// Generate selects the render target of the framework compiler.
type Generate string

const (
	GenerateDOM       Generate = "dom"
	GenerateSSR       Generate = "ssr"
	GenerateUniversal Generate = "universal"
)

// DefaultUniversalModule is the module name used by the universal preset.
const DefaultUniversalModule = "solid-universal-module"

// ModeConfig is the compile mode sent with every request.
type ModeConfig struct {
	Generate   Generate `json:"generate" yaml:"generate" mapstructure:"generate"`
	Hydratable bool     `json:"hydratable" yaml:"hydratable" mapstructure:"hydratable"`
	ModuleName string   `json:"moduleName,omitempty" yaml:"module_name,omitempty" mapstructure:"module_name"`
}

var (
	ModeDOM        = ModeConfig{Generate: GenerateDOM}
	ModeSSR        = ModeConfig{Generate: GenerateSSR, Hydratable: true}
	ModeHydratable = ModeConfig{Generate: GenerateDOM, Hydratable: true}
)

// ModeUniversal returns the universal preset rendering through moduleName.
func ModeUniversal(moduleName string) ModeConfig {
	if moduleName == "" {
		moduleName = DefaultUniversalModule
	}
	return ModeConfig{Generate: GenerateUniversal, ModuleName: moduleName}
}

// ModeByName resolves a preset by its name as used in configuration files:
// dom, ssr, hydratable or universal.
func ModeByName(name, moduleName string) (ModeConfig, error) {
	switch name {
	case "", "dom":
		return ModeDOM, nil
	case "ssr":
		return ModeSSR, nil
	case "hydratable":
		return ModeHydratable, nil
	case "universal":
		return ModeUniversal(moduleName), nil
	}
	return ModeConfig{}, fmt.Errorf("unknown compile mode %q", name)
}

// Validate checks the generate target and the moduleName requirement.
func (m ModeConfig) Validate() error {
	switch m.Generate {
	case GenerateDOM, GenerateSSR:
		if m.ModuleName != "" {
			return fmt.Errorf("moduleName is only valid with generate %q", GenerateUniversal)
		}
	case GenerateUniversal:
		if m.ModuleName == "" {
			return errors.New("moduleName is required with generate \"universal\"")
		}
	default:
		return fmt.Errorf("unsupported generate target %q", m.Generate)
	}
	return nil
}

// normalized fills in the dom target for an empty mode.
func (m ModeConfig) normalized() ModeConfig {
	if m.Generate == "" {
		m.Generate = GenerateDOM
	}
	return m
}
