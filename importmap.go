// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package solidrepl

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/buke/solid-repl-go/internal/ordered"
)

// ImportMap maps bare module specifiers to URLs in insertion order.
type ImportMap struct {
	ordered.Map[string]
}

// NewImportMap returns an empty import map.
func NewImportMap() *ImportMap {
	return &ImportMap{}
}

// Clone returns an independent copy of m.
func (m *ImportMap) Clone() *ImportMap {
	if m == nil {
		return NewImportMap()
	}
	return &ImportMap{Map: *m.Map.Clone()}
}

// ParseImportMap decodes the source of the synthetic import map tab. Local
// specifiers and non-string values are dropped. Empty or malformed input is
// reported as an error together with an empty map so callers can carry on.
func ParseImportMap(source string) (*ImportMap, error) {
	m := NewImportMap()
	if strings.TrimSpace(source) == "" {
		return m, nil
	}

	var raw ordered.Map[json.RawMessage]
	if err := json.Unmarshal([]byte(source), &raw); err != nil {
		return NewImportMap(), err
	}
	for _, key := range raw.Keys() {
		if IsLocalSpecifier(key) {
			continue
		}
		value, _ := raw.Get(key)
		var url string
		if err := json.Unmarshal(value, &url); err != nil {
			continue
		}
		m.Set(key, url)
	}
	return m, nil
}

// ImportMapFromTabs reads the import map carried by the project's synthetic
// tab. A missing or malformed tab yields an empty map.
func ImportMapFromTabs(tabs []Tab) (*ImportMap, error) {
	idx := FindTab(tabs, ImportMapTabName)
	if idx < 0 {
		return NewImportMap(), nil
	}
	return ParseImportMap(tabs[idx].Source)
}

// Source serializes the map as 2-space indented JSON in insertion order.
func (m *ImportMap) Source() string {
	if m == nil {
		return "{}"
	}
	raw, err := json.Marshal(&m.Map)
	if err != nil {
		// Only strings are stored, encoding cannot fail.
		panic(err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		panic(err)
	}
	return buf.String()
}

// Tab projects the map onto the synthetic import map tab.
func (m *ImportMap) Tab() Tab {
	return Tab{Name: ImportMapTabName, Source: m.Source()}
}

// MarshalJSON encodes the map as a flat JSON object.
func (m *ImportMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(&m.Map)
}

// UnmarshalJSON decodes a flat JSON object of strings.
func (m *ImportMap) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &m.Map)
}

// Reconcile derives the new import map from the previous one and the modules
// of the latest compilation:
//
//  1. entries whose specifier no longer appears in modules and whose URL is
//     still the default derived one are dropped;
//  2. bare specifiers of modules without an entry get the default URL, in
//     module order.
//
// User-provided URLs are kept even when unused. prev is not modified.
func Reconcile(prev *ImportMap, modules *ModuleMap, defaultURL func(string) string) *ImportMap {
	if modules == nil {
		modules = NewModuleMap()
	}
	next := prev.Clone()
	for _, specifier := range next.Keys() {
		url, _ := next.Get(specifier)
		if !modules.Has(specifier) && url == defaultURL(specifier) {
			next.Delete(specifier)
		}
	}
	for _, specifier := range modules.Keys() {
		if IsLocalSpecifier(specifier) || next.Has(specifier) {
			continue
		}
		next.Set(specifier, defaultURL(specifier))
	}
	// Entries for local modules never survive, whatever their origin.
	for _, specifier := range next.Keys() {
		if IsLocalSpecifier(specifier) {
			next.Delete(specifier)
		}
	}
	return next
}
