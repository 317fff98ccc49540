// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package qjscompiler

import (
	"errors"
	"sync"

	quickjsengine "github.com/buke/js-executor/engines/quickjs-go"
	quickjs "github.com/buke/quickjs-go"
	"github.com/cespare/xxhash"
)

// compilerFileName names the bundle in QuickJS stack traces.
const compilerFileName = "solid-compiler.js"

var (
	bytecodeMu    sync.Mutex
	bytecodeCache = map[uint64][]byte{}
)

// getCompilerBytecode compiles script and caches its bytecode by content
// hash, so every engine of a process compiles a given bundle once.
func getCompilerBytecode(jse *quickjsengine.Engine, script string) ([]byte, error) {
	key := xxhash.Sum64String(script)

	bytecodeMu.Lock()
	defer bytecodeMu.Unlock()
	if b, ok := bytecodeCache[key]; ok {
		return b, nil
	}
	b, err := jse.Ctx.Compile(script, quickjs.EvalFileName(compilerFileName))
	if err != nil {
		return nil, err
	}
	bytecodeCache[key] = b
	return b, nil
}

// compilerModule loads and evaluates the compiled bundle in the QuickJS context.
func compilerModule(script string) quickjsengine.Option {
	return func(jse *quickjsengine.Engine) error {
		if script == "" {
			return errors.New("compiler script is empty")
		}
		bytecode, err := getCompilerBytecode(jse, script)
		if err != nil {
			return err
		}

		ret := jse.Ctx.EvalBytecode(bytecode)
		defer ret.Free()

		if ret.IsException() {
			return jse.Ctx.Exception()
		}
		return nil
	}
}
