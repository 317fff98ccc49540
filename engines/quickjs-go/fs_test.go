// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package qjscompiler

import (
	"testing"
	"testing/fstest"
)

var testFS = fstest.MapFS{
	"main.tsx":        {Data: []byte("import App from './src/App'")},
	"src/App.tsx":     {Data: []byte("export default () => <div />")},
	"styles/base.css": {Data: []byte("body { margin: 0 }")},
}

func TestFsName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"main.tsx", "main.tsx"},
		{"/main.tsx", "main.tsx"},
		{"./src/App.tsx", "src/App.tsx"},
		{"src\\App.tsx", "src/App.tsx"},
		{"/src/../main.tsx", "main.tsx"},
		{"", "."},
		{"/", "."},
	}
	for _, test := range tests {
		if got := fsName(test.in); got != test.want {
			t.Errorf("fsName(%q) = %q, want %q", test.in, got, test.want)
		}
	}
}

// TestFsModule tests the compilerFs object through JavaScript
func TestFsModule(t *testing.T) {
	engine := newTestEngine(t)
	if err := fsModule(testFS)(engine); err != nil {
		t.Fatalf("Failed to load fs module: %v", err)
	}

	tests := []struct {
		name string
		expr string
		want string
	}{
		{"exists", `String(compilerFs.fileExists("/src/App.tsx"))`, "true"},
		{"exists_relative", `String(compilerFs.fileExists("./main.tsx"))`, "true"},
		{"missing", `String(compilerFs.fileExists("/nope.tsx"))`, "false"},
		{"directory", `String(compilerFs.fileExists("/src"))`, "false"},
		{"no_args", `String(compilerFs.fileExists())`, "false"},
		{"read", `compilerFs.readFile("styles/base.css")`, "body { margin: 0 }"},
		{"read_missing", `(() => { try { compilerFs.readFile("/nope"); return "no error"; } catch (e) { return "error"; } })()`, "error"},
		{"realpath", `compilerFs.realpath("./src/../src/App.tsx")`, "/src/App.tsx"},
		{"realpath_root", `compilerFs.realpath("/")`, "/"},
		{"realpath_missing", `(() => { try { compilerFs.realpath("/nope"); return "no error"; } catch (e) { return "error"; } })()`, "error"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := engine.Ctx.Eval(test.expr)
			defer result.Free()
			if result.IsException() {
				t.Fatalf("Unexpected exception: %v", engine.Ctx.Exception())
			}
			if result.String() != test.want {
				t.Errorf("Expected %q, got %q", test.want, result.String())
			}
		})
	}
}

// TestFsModuleWithoutFS tests that a nil file system exposes no files
func TestFsModuleWithoutFS(t *testing.T) {
	engine := newTestEngine(t)
	if err := fsModule(nil)(engine); err != nil {
		t.Fatalf("Failed to load fs module: %v", err)
	}

	result := engine.Ctx.Eval(`String(compilerFs.fileExists("/main.tsx"))`)
	defer result.Free()
	if result.String() != "false" {
		t.Errorf("Expected false, got %s", result.String())
	}
}
