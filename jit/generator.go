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
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/ajroetker/go-exprjit/internal/logging"
)

// Generator provides definitions for symbols a unit references but does
// not define.
type Generator interface {
	// Resolve returns the subset of names it cannot provide.
	Resolve(names []string) (missing []string, err error)
}

// processSymbols resolves names against everything already loaded into
// the process's global scope.
type processSymbols struct {
	prefix string
}

// ProcessSymbols returns a generator that resolves symbols from the
// current process. Names carry the global prefix, which is removed before
// lookup.
func ProcessSymbols(prefix string) (Generator, error) {
	if _, err := dlsymDefault("malloc"); err != nil {
		return nil, fmt.Errorf("%w: process symbols: %v", ErrCreateGenerator, err)
	}
	return &processSymbols{prefix: prefix}, nil
}

func (g *processSymbols) Resolve(names []string) ([]string, error) {
	var missing []string
	for _, name := range names {
		if addr, err := dlsymDefault(strings.TrimPrefix(name, g.prefix)); err != nil || addr == 0 {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// runtimeLibraries loads the C and C++ runtime libraries into the global
// scope the first time a unit needs a symbol the process does not have.
type runtimeLibraries struct {
	prefix string
	paths  []string

	once    sync.Once
	handles []uintptr
	err     error
}

// RuntimeLibraries returns a generator backed by the platform's math, C++
// standard and compiler support libraries.
func RuntimeLibraries(prefix string) (Generator, error) {
	paths := runtimeLibraryPaths(runtime.GOOS)
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no runtime libraries on %s", ErrCreateGenerator, runtime.GOOS)
	}
	return &runtimeLibraries{prefix: prefix, paths: paths}, nil
}

func runtimeLibraryPaths(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"/usr/lib/libc++.1.dylib", "/usr/lib/libc++abi.dylib", "/usr/lib/libSystem.B.dylib"}
	case "linux":
		return []string{"libm.so.6", "libstdc++.so.6", "libgcc_s.so.1"}
	}
	return nil
}

func (g *runtimeLibraries) load() {
	for _, p := range g.paths {
		h, err := dlopen(p, true)
		if err != nil {
			logging.Logger().Debug("jit: runtime library unavailable", "lib", p, "err", err)
			continue
		}
		g.handles = append(g.handles, h)
	}
	if len(g.handles) == 0 {
		g.err = fmt.Errorf("%w: none of %s could be loaded", ErrCreateGenerator, strings.Join(g.paths, ", "))
	}
}

func (g *runtimeLibraries) Resolve(names []string) ([]string, error) {
	g.once.Do(g.load)
	if g.err != nil {
		return names, g.err
	}
	var missing []string
	for _, name := range names {
		if !g.defines(strings.TrimPrefix(name, g.prefix)) {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

func (g *runtimeLibraries) defines(name string) bool {
	for _, h := range g.handles {
		if addr, err := dlsym(h, name); err == nil && addr != 0 {
			return true
		}
	}
	return false
}
