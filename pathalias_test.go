// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package solidrepl

import (
	"testing"
)

func tsconfigTabs(source string) []Tab {
	return []Tab{{Name: "main.tsx"}, {Name: TsconfigTabName, Source: source}}
}

// TestParseTsconfigPathAlias tests parsing path aliases from the tsconfig tab.
func TestParseTsconfigPathAlias(t *testing.T) {
	aliases, err := parseTsconfigPathAlias(tsconfigTabs(`{"compilerOptions":{"paths":{"@/*":["./src/*"],"@utils/*":["./src/utils/*"],"@exact":["./lib/exact.ts"]}}}`))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(aliases) != 3 {
		t.Fatalf("Expected 3 aliases, got %d", len(aliases))
	}
	if aliases[0].alias != "@utils/*" {
		t.Errorf("Expected longest alias first, got %q", aliases[0].alias)
	}
}

// TestParseTsconfigPathAliasWithBaseUrl tests that targets are resolved against baseUrl.
func TestParseTsconfigPathAliasWithBaseUrl(t *testing.T) {
	aliases, err := parseTsconfigPathAlias(tsconfigTabs(`{"compilerOptions":{"baseUrl":"./src","paths":{"~/*":["./*"]}}}`))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	target, ok := applyPathAlias(aliases, "~/components/Button")
	if !ok || target != "src/components/Button" {
		t.Errorf("Expected src/components/Button, got %q (matched %v)", target, ok)
	}
}

// TestParseTsconfigPathAliasWithInvalidJSON tests parsing with invalid JSON.
func TestParseTsconfigPathAliasWithInvalidJSON(t *testing.T) {
	if _, err := parseTsconfigPathAlias(tsconfigTabs(`{invalid json}`)); err == nil {
		t.Errorf("Expected error with invalid JSON, got nil")
	}
}

// TestParseTsconfigPathAliasEmpty tests projects without usable aliases.
func TestParseTsconfigPathAliasEmpty(t *testing.T) {
	tests := []struct {
		name string
		tabs []Tab
	}{
		{"no_tsconfig", []Tab{{Name: "main.tsx"}}},
		{"no_compiler_options", tsconfigTabs(`{}`)},
		{"no_paths", tsconfigTabs(`{"compilerOptions":{}}`)},
		{"bad_entries", tsconfigTabs(`{"compilerOptions":{"paths":{"@/*":[],"@a":"x","@b":[1]}}}`)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			aliases, err := parseTsconfigPathAlias(test.tabs)
			if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
			if len(aliases) != 0 {
				t.Errorf("Expected no aliases, got %d", len(aliases))
			}
		})
	}
}

// TestApplyPathAlias tests path alias application with and without wildcards.
func TestApplyPathAlias(t *testing.T) {
	aliases := []pathAlias{
		newPathAlias("@special/*", "very/long/path/to/special/*"),
		newPathAlias("@utils/*", "src/utils/*"),
		newPathAlias("@exact", "src/exact"),
		newPathAlias("@/*", "src/*"),
	}

	tests := []struct {
		input    string
		expected string
		matched  bool
	}{
		{"@/components/Button", "src/components/Button", true},
		{"@utils/helper.ts", "src/utils/helper.ts", true},
		{"@exact", "src/exact", true},
		{"@exact/sub", "@exact/sub", false},
		{"@special/deep/nested/file", "very/long/path/to/special/deep/nested/file", true},
		{"normal/path", "normal/path", false},
		{"@unknown/path", "@unknown/path", false},
	}

	for _, test := range tests {
		result, matched := applyPathAlias(aliases, test.input)
		if result != test.expected || matched != test.matched {
			t.Errorf("applyPathAlias(%q) = %q, %v, expected %q, %v", test.input, result, matched, test.expected, test.matched)
		}
	}
}
