// Copyright 2025 go-exprjit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package jit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-exprjit/toolchain"
)

type fakeCompiler struct {
	dir    string
	prefix string
}

func (f *fakeCompiler) TempDir(pattern string) (string, error) {
	return os.MkdirTemp(f.dir, pattern)
}

func (f *fakeCompiler) Target() toolchain.HostTarget {
	return toolchain.HostTarget{GlobalPrefix: f.prefix}
}

func (f *fakeCompiler) Lower(context.Context, *toolchain.Module, string) error {
	return errors.New("lower not available")
}

func (f *fakeCompiler) LinkShared(context.Context, []string, string) error {
	return errors.New("link not available")
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(&fakeCompiler{dir: t.TempDir(), prefix: "_"})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestCreateUnit(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, "_", e.DataLayout().GlobalPrefix)

	u0, err := e.CreateUnit("0")
	require.NoError(t, err)
	u1, err := e.CreateUnit("1")
	require.NoError(t, err)
	assert.NotEqual(t, u0.ID, u1.ID)
	assert.DirExists(t, filepath.Join(e.Dir(), u0.ID.String()))

	_, err = e.CreateUnit("0")
	assert.ErrorIs(t, err, ErrDuplicateUnit)
	assert.ErrorIs(t, err, ErrCreateUnit)

	_, err = e.CreateUnit("")
	assert.ErrorIs(t, err, ErrCreateUnit)

	got, ok := e.Unit("1")
	require.True(t, ok)
	assert.Same(t, u1, got)
}

func TestAddIRModule(t *testing.T) {
	e := newTestEngine(t)
	other := newTestEngine(t)
	u, err := e.CreateUnit("0")
	require.NoError(t, err)
	foreign, err := other.CreateUnit("0")
	require.NoError(t, err)

	m := &toolchain.Module{Name: "plane0.cpp"}
	require.NoError(t, e.AddIRModule(u, m))
	assert.Equal(t, []*toolchain.Module{m}, u.Modules())

	assert.ErrorIs(t, e.AddIRModule(u, nil), ErrAddModule)
	assert.ErrorIs(t, e.AddIRModule(foreign, m), ErrAddModule)
}

func TestLookupErrors(t *testing.T) {
	e := newTestEngine(t)
	u, err := e.CreateUnit("empty")
	require.NoError(t, err)

	_, err = e.LookupLinkerMangled(context.Background(), u, "_ZN7exprjit3runElPPv")
	assert.ErrorIs(t, err, ErrSymbolNotFound)

	v, err := e.CreateUnit("broken")
	require.NoError(t, err)
	require.NoError(t, e.AddIRModule(v, &toolchain.Module{Name: "plane1.cpp"}))
	_, err = e.LookupLinkerMangled(context.Background(), v, "x")
	require.Error(t, err)

	// A failed materialization is sticky and closes the unit to new modules.
	_, err2 := e.LookupLinkerMangled(context.Background(), v, "x")
	assert.Equal(t, err, err2)
	assert.ErrorIs(t, e.AddIRModule(v, &toolchain.Module{Name: "again.cpp"}), ErrAddModule)
}

type mapGenerator map[string]bool

func (g mapGenerator) Resolve(names []string) ([]string, error) {
	var missing []string
	for _, n := range names {
		if !g[n] {
			missing = append(missing, n)
		}
	}
	return missing, nil
}

func TestResolveGenerators(t *testing.T) {
	e := newTestEngine(t)
	u, err := e.CreateUnit("0")
	require.NoError(t, err)

	assert.NoError(t, u.resolve(nil))

	u.AddGenerator(mapGenerator{"a": true})
	u.AddGenerator(mapGenerator{"b": true})
	assert.NoError(t, u.resolve([]string{"a", "b"}))

	err = u.resolve([]string{"a", "c", "d"})
	assert.ErrorIs(t, err, ErrUnresolvedSymbols)
	assert.ErrorContains(t, err, "c, d")
}

func TestEngineClose(t *testing.T) {
	e, err := NewEngine(&fakeCompiler{dir: t.TempDir()})
	require.NoError(t, err)
	u, err := e.CreateUnit("0")
	require.NoError(t, err)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.NoDirExists(t, e.Dir())

	_, err = e.CreateUnit("1")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = e.LookupLinkerMangled(context.Background(), u, "x")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDumpObjects(t *testing.T) {
	dir := t.TempDir()
	transform := DumpObjects(dir, "clip")
	u := &Unit{Name: "0"}
	m := &toolchain.Module{Name: "plane0.cpp"}

	for range 3 {
		out, err := transform(u, m, []byte("object"))
		require.NoError(t, err)
		assert.Equal(t, []byte("object"), out)
	}
	for _, name := range []string{"clip.o", "clip.1.o", "clip.2.o"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	// Unwritable destinations are logged, not returned.
	bad := DumpObjects(filepath.Join(dir, "missing", "dir"), "clip")
	out, err := bad(u, m, []byte("object"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("object"), out)
}

func TestUndefinedSymbolsFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-an-object.o")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))
	_, err := undefinedSymbols(path)
	assert.ErrorIs(t, err, ErrObjectFormat)

	exe, err := os.Executable()
	require.NoError(t, err)
	if runtime.GOOS == "linux" || runtime.GOOS == "darwin" {
		_, err = undefinedSymbols(exe)
		assert.NoError(t, err)
	}
}

func TestRuntimeLibraryPaths(t *testing.T) {
	assert.Contains(t, runtimeLibraryPaths("linux"), "libstdc++.so.6")
	assert.Contains(t, runtimeLibraryPaths("darwin"), "/usr/lib/libc++.1.dylib")
	assert.Empty(t, runtimeLibraryPaths("plan9"))
}

func requireLoader(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("no dynamic loader on " + runtime.GOOS)
	}
}

func TestProcessSymbols(t *testing.T) {
	requireLoader(t)
	prefix := toolchain.GlobalPrefix(runtime.GOOS)
	g, err := ProcessSymbols(prefix)
	require.NoError(t, err)

	missing, err := g.Resolve([]string{prefix + "malloc", prefix + "exprjit_no_such_symbol"})
	require.NoError(t, err)
	assert.Equal(t, []string{prefix + "exprjit_no_such_symbol"}, missing)
}

// compileModule emits an IR module for src with the process toolchain.
func compileModule(t *testing.T, src string) (*toolchain.Toolchain, *toolchain.Module) {
	t.Helper()
	requireLoader(t)
	tc, err := toolchain.Init(toolchain.Config{})
	if err != nil {
		t.Skipf("clang unavailable: %v", err)
	}
	o, err := tc.NewOverlay()
	require.NoError(t, err)
	t.Cleanup(func() { o.Close() })
	require.NoError(t, o.AddFile("unit.cpp", src))

	ctx := context.Background()
	inv, err := tc.BuildInvocation(ctx, o, "unit.cpp", toolchain.DefaultFlags())
	require.NoError(t, err)
	emit := toolchain.NewEmitIR(inv)
	require.NoError(t, tc.Execute(ctx, inv, emit))
	return tc, emit.Module
}

func newUnit(t *testing.T, e *Engine, name string) *Unit {
	t.Helper()
	u, err := e.CreateUnit(name)
	require.NoError(t, err)
	prefix := e.DataLayout().GlobalPrefix
	ps, err := ProcessSymbols(prefix)
	require.NoError(t, err)
	u.AddGenerator(ps)
	rl, err := RuntimeLibraries(prefix)
	require.NoError(t, err)
	u.AddGenerator(rl)
	return u
}

func TestLookupIntegration(t *testing.T) {
	tc, m := compileModule(t, `
#include <cmath>
extern "C" double root(double x) { return std::sqrt(x) + std::cbrt(x); }
namespace exprjit { void run(long, void**) {} }
`)
	e, err := NewEngine(tc)
	require.NoError(t, err)
	defer e.Close()

	dumpDir := t.TempDir()
	e.SetObjectTransform(DumpObjects(dumpDir, "root"))

	u := newUnit(t, e, "0")
	require.NoError(t, e.AddIRModule(u, m))

	prefix := e.DataLayout().GlobalPrefix
	sym, err := e.LookupLinkerMangled(context.Background(), u, prefix+"root")
	require.NoError(t, err)
	assert.NotZero(t, sym.Address)
	assert.FileExists(t, filepath.Join(dumpDir, "root.o"))

	_, err = e.LookupLinkerMangled(context.Background(), u, prefix+"_ZN7exprjit3runElPPv")
	require.NoError(t, err)
	_, err = e.LookupLinkerMangled(context.Background(), u, prefix+"missing")
	assert.ErrorIs(t, err, ErrSymbolNotFound)

	assert.ErrorIs(t, e.AddIRModule(u, m), ErrAddModule)
}

func TestUnitsAreIsolated(t *testing.T) {
	tc, m := compileModule(t, `extern "C" int plane() { return 7; }`)
	e, err := NewEngine(tc)
	require.NoError(t, err)
	defer e.Close()

	prefix := e.DataLayout().GlobalPrefix
	var addrs []uintptr
	for _, name := range []string{"0", "1"} {
		u := newUnit(t, e, name)
		require.NoError(t, e.AddIRModule(u, m))
		sym, err := e.LookupLinkerMangled(context.Background(), u, prefix+"plane")
		require.NoError(t, err)
		addrs = append(addrs, sym.Address)
	}
	assert.NotEqual(t, addrs[0], addrs[1])
}

func TestUnresolvedIntegration(t *testing.T) {
	tc, m := compileModule(t, `
extern "C" int exprjit_not_defined_anywhere(int);
extern "C" int call(int x) { return exprjit_not_defined_anywhere(x); }
`)
	e, err := NewEngine(tc)
	require.NoError(t, err)
	defer e.Close()

	u := newUnit(t, e, "0")
	require.NoError(t, e.AddIRModule(u, m))
	_, err = e.LookupLinkerMangled(context.Background(), u, e.DataLayout().GlobalPrefix+"call")
	assert.ErrorIs(t, err, ErrUnresolvedSymbols)
}
