// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package qjscompiler

import (
	"errors"
	"io/fs"
	"path"
	"strings"

	quickjsengine "github.com/buke/js-executor/engines/quickjs-go"
	"github.com/buke/quickjs-go"
)

var errNoPath = errors.New("path argument is required")

// fsName maps a path seen by the bundle ("/src/App.tsx", "./src/App.tsx")
// to an fs.FS name ("src/App.tsx").
func fsName(p string) string {
	name := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	if name == "" {
		return "."
	}
	return name
}

type compilerFs struct {
	fsys fs.FS
}

// fileExists checks if a regular file exists at the given path.
func (c *compilerFs) fileExists(ctx *quickjs.Context, this *quickjs.Value, args []*quickjs.Value) *quickjs.Value {
	if len(args) == 0 || c.fsys == nil {
		return ctx.Bool(false)
	}
	info, err := fs.Stat(c.fsys, fsName(args[0].String()))
	if err != nil || info.IsDir() {
		return ctx.Bool(false)
	}
	return ctx.Bool(true)
}

// readFile reads the content of a file and returns it as a string.
func (c *compilerFs) readFile(ctx *quickjs.Context, this *quickjs.Value, args []*quickjs.Value) *quickjs.Value {
	if len(args) == 0 {
		return ctx.ThrowError(errNoPath)
	}
	if c.fsys == nil {
		return ctx.ThrowError(fs.ErrNotExist)
	}
	data, err := fs.ReadFile(c.fsys, fsName(args[0].String()))
	if err != nil {
		return ctx.ThrowError(err)
	}
	return ctx.String(string(data))
}

// realpath returns the canonical absolute path of an existing file.
func (c *compilerFs) realpath(ctx *quickjs.Context, this *quickjs.Value, args []*quickjs.Value) *quickjs.Value {
	if len(args) == 0 {
		return ctx.ThrowError(errNoPath)
	}
	if c.fsys == nil {
		return ctx.ThrowError(fs.ErrNotExist)
	}
	name := fsName(args[0].String())
	if _, err := fs.Stat(c.fsys, name); err != nil {
		return ctx.ThrowError(err)
	}
	if name == "." {
		return ctx.String("/")
	}
	return ctx.String("/" + name)
}

// fsModule injects a 'compilerFs' object into the JS context with file system helper functions.
// The object provides fileExists, readFile, and realpath methods for use in JS.
func fsModule(fsys fs.FS) quickjsengine.Option {
	c := &compilerFs{fsys: fsys}
	return func(jse *quickjsengine.Engine) error {
		globalsObj := jse.Ctx.Globals()
		compilerFsObj := jse.Ctx.Object()
		compilerFsObj.Set("fileExists", jse.Ctx.Function(c.fileExists))
		compilerFsObj.Set("readFile", jse.Ctx.Function(c.readFile))
		compilerFsObj.Set("realpath", jse.Ctx.Function(c.realpath))
		globalsObj.Set("compilerFs", compilerFsObj)
		return nil
	}
}
