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

// Package jit links compiled IR modules into isolated, independently
// loaded units and resolves symbols inside them.
//
// An Engine is created once per filter instance. Every output plane gets
// its own Unit, so identically named entry functions of different planes
// never collide. Units are materialized on the first lookup: their modules
// are lowered to object files, every external reference is checked against
// the unit's definition generators, and the result is linked into a shared
// object and loaded with local symbol scope.
package jit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ajroetker/go-exprjit/internal/logging"
	"github.com/ajroetker/go-exprjit/toolchain"
)

var (
	// ErrCreateUnit is returned when a unit cannot be created.
	ErrCreateUnit = errors.New("failed to create unit")

	// ErrDuplicateUnit is returned by CreateUnit for a name already in use.
	ErrDuplicateUnit = fmt.Errorf("%w: duplicate name", ErrCreateUnit)

	// ErrCreateGenerator is returned when a definition generator cannot be
	// created.
	ErrCreateGenerator = errors.New("failed to create definition generator")

	// ErrAddModule is returned when a module cannot be added to a unit.
	ErrAddModule = errors.New("failed to add IR module")

	// ErrSymbolNotFound is returned when a looked up symbol is not defined
	// by the unit.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrUnresolvedSymbols is returned when a unit references symbols no
	// generator can provide.
	ErrUnresolvedSymbols = errors.New("unresolved symbols")

	// ErrClosed is returned after the engine has been closed.
	ErrClosed = errors.New("jit engine closed")
)

// Compiler is the part of the toolchain the engine needs.
// *toolchain.Toolchain implements it.
type Compiler interface {
	TempDir(pattern string) (string, error)
	Target() toolchain.HostTarget
	Lower(ctx context.Context, m *toolchain.Module, out string) error
	LinkShared(ctx context.Context, objs []string, out string) error
}

// DataLayout describes symbol conventions of the target.
type DataLayout struct {
	// GlobalPrefix is prepended to every C-level symbol by the platform
	// linker.
	GlobalPrefix string
}

// ObjectTransform is applied to every object file after lowering and
// before linking. It returns the object to use.
type ObjectTransform func(u *Unit, m *toolchain.Module, obj []byte) ([]byte, error)

// Symbol is a resolved definition.
type Symbol struct {
	Name    string
	Address uintptr
}

// Engine owns the units of one filter instance.
type Engine struct {
	cc     Compiler
	dir    string
	layout DataLayout

	mu        sync.Mutex
	units     map[string]*Unit
	order     []*Unit
	transform ObjectTransform
	closed    bool
}

// NewEngine creates an engine with its own artifact directory.
func NewEngine(cc Compiler) (*Engine, error) {
	dir, err := cc.TempDir("jit-*")
	if err != nil {
		return nil, fmt.Errorf("create jit engine: %w", err)
	}
	return &Engine{
		cc:     cc,
		dir:    dir,
		layout: DataLayout{GlobalPrefix: cc.Target().GlobalPrefix},
		units:  make(map[string]*Unit),
	}, nil
}

// DataLayout returns the target's symbol conventions.
func (e *Engine) DataLayout() DataLayout { return e.layout }

// Dir returns the engine's artifact directory.
func (e *Engine) Dir() string { return e.dir }

// SetObjectTransform installs t for every unit materialized afterwards.
func (e *Engine) SetObjectTransform(t ObjectTransform) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transform = t
}

func (e *Engine) objectTransform() ObjectTransform {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transform
}

// AddIRModule adds a module to a unit that has not been materialized.
func (e *Engine) AddIRModule(u *Unit, m *toolchain.Module) error {
	if u.engine != e {
		return fmt.Errorf("%w: unit %s belongs to another engine", ErrAddModule, u.Name)
	}
	return u.addModule(m)
}

// LookupLinkerMangled resolves a linker-level symbol name, global prefix
// included, in unit u. The first lookup materializes the unit.
func (e *Engine) LookupLinkerMangled(ctx context.Context, u *Unit, name string) (Symbol, error) {
	if u.engine != e {
		return Symbol{}, fmt.Errorf("%w: unit %s belongs to another engine", ErrSymbolNotFound, u.Name)
	}
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return Symbol{}, ErrClosed
	}
	return u.lookup(ctx, name)
}

// Close unloads every unit and removes the engine's artifacts. Native
// functions obtained from the engine must not be called afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	for _, u := range e.order {
		if err := u.unload(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := os.RemoveAll(e.dir); err != nil {
		errs = append(errs, err)
	}
	logging.Logger().Debug("jit: engine closed", "units", len(e.order), "dir", e.dir)
	return errors.Join(errs...)
}
