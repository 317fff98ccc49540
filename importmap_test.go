// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package solidrepl

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func defaultURL(specifier string) string {
	return DefaultCDN + specifier
}

func importMapOf(pairs ...string) *ImportMap {
	m := NewImportMap()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i], pairs[i+1])
	}
	return m
}

func moduleMapOf(pairs ...string) *ModuleMap {
	m := NewModuleMap()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i], pairs[i+1])
	}
	return m
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name    string
		prev    *ImportMap
		modules *ModuleMap
		want    []string // alternating key, value
	}{
		{
			name:    "adds_bare_imports_in_module_order",
			prev:    NewImportMap(),
			modules: moduleMapOf("./main", "code", "solid-js/web", defaultURL("solid-js/web"), "solid-js", defaultURL("solid-js")),
			want:    []string{"solid-js/web", defaultURL("solid-js/web"), "solid-js", defaultURL("solid-js")},
		},
		{
			name:    "prunes_unused_default_entries",
			prev:    importMapOf("lodash", defaultURL("lodash"), "solid-js", defaultURL("solid-js")),
			modules: moduleMapOf("./main", "code", "solid-js", defaultURL("solid-js")),
			want:    []string{"solid-js", defaultURL("solid-js")},
		},
		{
			name:    "keeps_unused_user_entries",
			prev:    importMapOf("lodash", "https://cdn.example.com/lodash@4"),
			modules: moduleMapOf("./main", "code"),
			want:    []string{"lodash", "https://cdn.example.com/lodash@4"},
		},
		{
			name:    "keeps_user_url_for_used_import",
			prev:    importMapOf("solid-js", "https://esm.sh/solid-js@1.8"),
			modules: moduleMapOf("solid-js", defaultURL("solid-js")),
			want:    []string{"solid-js", "https://esm.sh/solid-js@1.8"},
		},
		{
			name:    "drops_local_entries",
			prev:    importMapOf("./main", "x", "../up", "y", "/abs", "z"),
			modules: moduleMapOf("./main", "code", "./counter", "code"),
			want:    nil,
		},
		{
			name:    "nil_inputs",
			prev:    nil,
			modules: nil,
			want:    nil,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := Reconcile(test.prev, test.modules, defaultURL)
			if diff := cmp.Diff(importMapOf(test.want...).ToMap(), got.ToMap()); diff != "" {
				t.Errorf("entries mismatch (-want +got):\n%s", diff)
			}
			var wantKeys []string
			for i := 0; i < len(test.want); i += 2 {
				wantKeys = append(wantKeys, test.want[i])
			}
			if diff := cmp.Diff(wantKeys, got.Keys(), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReconcileIdempotent(t *testing.T) {
	prev := importMapOf("lodash", defaultURL("lodash"), "user", "https://u.example/x")
	modules := moduleMapOf("./main", "code", "solid-js", defaultURL("solid-js"), "./dep", "code")

	once := Reconcile(prev, modules, defaultURL)
	twice := Reconcile(once, modules, defaultURL)
	if diff := cmp.Diff(once.Source(), twice.Source()); diff != "" {
		t.Errorf("reconcile is not idempotent (-once +twice):\n%s", diff)
	}
	if prev.Len() != 2 || !prev.Has("lodash") {
		t.Error("Expected the previous map to be left untouched")
	}
	for _, key := range twice.Keys() {
		if IsLocalSpecifier(key) {
			t.Errorf("Unexpected local key %q", key)
		}
	}
}

func TestParseImportMap(t *testing.T) {
	m, err := ParseImportMap(`{"b": "https://b", "./local": "x", "a": "https://a", "n": 1}`)
	if err != nil {
		t.Fatalf("ParseImportMap failed: %v", err)
	}
	if diff := cmp.Diff([]string{"b", "a"}, m.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}

	for _, source := range []string{"", "   "} {
		m, err := ParseImportMap(source)
		if err != nil || m.Len() != 0 {
			t.Errorf("ParseImportMap(%q) = %v, %v, want empty map", source, m.Keys(), err)
		}
	}

	for _, source := range []string{"{", "[]", `"x"`} {
		m, err := ParseImportMap(source)
		if err == nil {
			t.Errorf("ParseImportMap(%q) expected error", source)
		}
		if m == nil || m.Len() != 0 {
			t.Errorf("ParseImportMap(%q) expected empty map", source)
		}
	}
}

func TestImportMapSource(t *testing.T) {
	m := importMapOf("solid-js", "https://jspm.dev/solid-js", "a", "b")
	want := "{\n  \"solid-js\": \"https://jspm.dev/solid-js\",\n  \"a\": \"b\"\n}"
	if got := m.Source(); got != want {
		t.Errorf("Source() = %q, want %q", got, want)
	}
	if got := NewImportMap().Source(); got != "{}" {
		t.Errorf("empty Source() = %q", got)
	}
	var nilMap *ImportMap
	if got := nilMap.Source(); got != "{}" {
		t.Errorf("nil Source() = %q", got)
	}

	back, err := ParseImportMap(m.Source())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(m.Keys(), back.Keys()); diff != "" {
		t.Errorf("round trip mismatch:\n%s", diff)
	}

	tab := m.Tab()
	if tab.Name != ImportMapTabName || tab.Source != want {
		t.Errorf("Unexpected tab %+v", tab)
	}
}

func TestImportMapFromTabs(t *testing.T) {
	m, err := ImportMapFromTabs([]Tab{{Name: "main.tsx"}})
	if err != nil || m.Len() != 0 {
		t.Errorf("Expected empty map without tab, got %v, %v", m.Keys(), err)
	}

	m, err = ImportMapFromTabs([]Tab{{Name: ImportMapTabName, Source: "not json"}})
	if err == nil || m.Len() != 0 {
		t.Errorf("Expected error and empty map for malformed tab, got %v, %v", m.Keys(), err)
	}

	m, err = ImportMapFromTabs([]Tab{{Name: ImportMapTabName, Source: `{"x": "y"}`}})
	if err != nil || !m.Has("x") {
		t.Errorf("Expected x entry, got %v, %v", m.Keys(), err)
	}
}
