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
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ajroetker/go-exprjit/internal/logging"
	"github.com/ajroetker/go-exprjit/toolchain"
)

// Unit is an independently linked and loaded group of modules.
type Unit struct {
	// Name is unique within the engine.
	Name string

	// ID tags the unit's on-disk artifacts.
	ID uuid.UUID

	engine *Engine
	dir    string

	mu         sync.Mutex
	modules    []*toolchain.Module
	generators []Generator
	handle     uintptr
	loaded     bool
	err        error
}

// CreateUnit creates an empty unit. Names must be unique per engine.
func (e *Engine) CreateUnit(name string) (*Unit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrCreateUnit)
	}
	if _, ok := e.units[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateUnit, name)
	}

	id := uuid.New()
	dir := filepath.Join(e.dir, id.String())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateUnit, err)
	}
	u := &Unit{Name: name, ID: id, engine: e, dir: dir}
	e.units[name] = u
	e.order = append(e.order, u)
	return u, nil
}

// Unit returns the unit with the given name.
func (e *Engine) Unit(name string) (*Unit, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	u, ok := e.units[name]
	return u, ok
}

// AddGenerator appends a definition generator. Generators are consulted
// in order for every external reference of the unit.
func (u *Unit) AddGenerator(g Generator) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.generators = append(u.generators, g)
}

// Modules returns the modules added to the unit.
func (u *Unit) Modules() []*toolchain.Module {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]*toolchain.Module(nil), u.modules...)
}

func (u *Unit) addModule(m *toolchain.Module) error {
	if m == nil {
		return fmt.Errorf("%w: nil module", ErrAddModule)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.loaded || u.err != nil {
		return fmt.Errorf("%w: unit %s is already materialized", ErrAddModule, u.Name)
	}
	u.modules = append(u.modules, m)
	return nil
}

func (u *Unit) lookup(ctx context.Context, name string) (Symbol, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.loaded && u.err == nil {
		u.err = u.materialize(ctx)
		u.loaded = u.err == nil
	}
	if u.err != nil {
		return Symbol{}, u.err
	}

	addr, err := dlsym(u.handle, strings.TrimPrefix(name, u.engine.layout.GlobalPrefix))
	if err != nil || addr == 0 {
		return Symbol{}, fmt.Errorf("%w: %s in unit %s", ErrSymbolNotFound, name, u.Name)
	}
	return Symbol{Name: name, Address: addr}, nil
}

// materialize lowers, checks, links and loads the unit. It runs with u.mu
// held.
func (u *Unit) materialize(ctx context.Context) error {
	if len(u.modules) == 0 {
		return fmt.Errorf("%w: unit %s has no modules", ErrSymbolNotFound, u.Name)
	}
	cc := u.engine.cc
	transform := u.engine.objectTransform()

	var objs []string
	for i, m := range u.modules {
		obj := filepath.Join(u.dir, fmt.Sprintf("%s-%d.o", u.Name, i))
		if err := cc.Lower(ctx, m, obj); err != nil {
			return fmt.Errorf("lower module %s: %w", m.Name, err)
		}
		if transform != nil {
			if err := applyTransform(transform, u, m, obj); err != nil {
				return err
			}
		}
		objs = append(objs, obj)
	}

	var undefined []string
	for _, obj := range objs {
		syms, err := undefinedSymbols(obj)
		if err != nil {
			return err
		}
		undefined = append(undefined, syms...)
	}
	if err := u.resolve(lo.Uniq(undefined)); err != nil {
		return err
	}

	lib := filepath.Join(u.dir, fmt.Sprintf("lib%s-%s%s", u.Name, u.ID, sharedLibExt()))
	if err := cc.LinkShared(ctx, objs, lib); err != nil {
		return err
	}
	h, err := dlopen(lib, false)
	if err != nil {
		return fmt.Errorf("load unit %s: %w", u.Name, err)
	}
	u.handle = h

	if fi, err := os.Stat(lib); err == nil {
		logging.Logger().Debug("jit: unit loaded",
			"unit", u.Name, "id", u.ID, "size", units.HumanSize(float64(fi.Size())))
	}
	return nil
}

func applyTransform(t ObjectTransform, u *Unit, m *toolchain.Module, path string) error {
	obj, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read object: %w", err)
	}
	out, err := t(u, m, obj)
	if err != nil {
		return fmt.Errorf("transform object of %s: %w", m.Name, err)
	}
	if bytes.Equal(out, obj) {
		return nil
	}
	return os.WriteFile(path, out, 0o644)
}

// resolve runs every generator over the unit's external references.
func (u *Unit) resolve(names []string) error {
	missing := names
	for _, g := range u.generators {
		if len(missing) == 0 {
			break
		}
		var err error
		missing, err = g.Resolve(missing)
		if err != nil {
			return fmt.Errorf("unit %s: %w", u.Name, err)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w in unit %s: %s", ErrUnresolvedSymbols, u.Name, strings.Join(missing, ", "))
	}
	return nil
}

func (u *Unit) unload() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.loaded {
		return nil
	}
	u.loaded = false
	u.err = ErrClosed
	if err := dlclose(u.handle); err != nil {
		return fmt.Errorf("unload unit %s: %w", u.Name, err)
	}
	return nil
}

func sharedLibExt() string {
	if runtime.GOOS == "darwin" {
		return ".dylib"
	}
	return ".so"
}
