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

package symbols

import (
	"context"
	"fmt"
	"io"

	"github.com/ajroetker/go-exprjit/internal/logging"
	"github.com/ajroetker/go-exprjit/synth"
	"github.com/ajroetker/go-exprjit/toolchain"
)

// Executor runs front-end actions. *toolchain.Toolchain implements it.
type Executor interface {
	Execute(ctx context.Context, inv *toolchain.Invocation, action toolchain.FrontendAction) error
}

// FindUserFunction returns the qualified name of the first function
// declared in the main file of inv. Declarations from headers and
// compiler builtins are skipped.
func FindUserFunction(ctx context.Context, x Executor, inv *toolchain.Invocation) (string, error) {
	var name string
	c := ConsumerFunc(func(d Decl) bool {
		fd, ok := d.(*FunctionDecl)
		if !ok || fd.Implicit || !fd.InMainFile {
			return true
		}
		name = fd.QualifiedName
		return false
	})
	if err := x.Execute(ctx, inv, astDump("", c)); err != nil {
		return "", fmt.Errorf("find user function: %w", err)
	}
	if name == "" {
		return "", ErrNoUserFunction
	}
	logging.Logger().Debug("symbols: user function", "name", name, "file", inv.MainFile)
	return name, nil
}

// SelectFunction checks that the main file of inv declares a top-level
// function with the given qualified name.
func SelectFunction(ctx context.Context, x Executor, inv *toolchain.Invocation, name string) error {
	found := false
	c := ConsumerFunc(func(d Decl) bool {
		switch d := d.(type) {
		case *FunctionDecl:
			found = !d.Implicit && d.QualifiedName == name
		case *NamespaceDecl:
			found = containsFunction(d, name)
		}
		return !found
	})
	if err := x.Execute(ctx, inv, astDump("", c)); err != nil {
		return fmt.Errorf("select function %s: %w", name, err)
	}
	if !found {
		return fmt.Errorf("%w: function %s", ErrSymbolNotFound, name)
	}
	return nil
}

func containsFunction(ns *NamespaceDecl, name string) bool {
	for _, d := range ns.Decls {
		switch d := d.(type) {
		case *FunctionDecl:
			if d.QualifiedName == name {
				return true
			}
		case *NamespaceDecl:
			if containsFunction(d, name) {
				return true
			}
		}
	}
	return false
}

// FindEntrySymbol returns the linker-mangled name of the generated entry
// function, synth.EntryNamespace::synth.EntryName.
func FindEntrySymbol(ctx context.Context, x Executor, inv *toolchain.Invocation) (string, error) {
	var mangled string
	c := ConsumerFunc(func(d Decl) bool {
		ns, ok := d.(*NamespaceDecl)
		if !ok || ns.QualifiedName != synth.EntryNamespace {
			return true
		}
		if fd, ok := ns.Function(synth.EntryName); ok {
			mangled = fd.MangledName
		}
		return mangled == ""
	})
	if err := x.Execute(ctx, inv, astDump(synth.EntryNamespace, c)); err != nil {
		return "", fmt.Errorf("find entry symbol: %w", err)
	}
	if mangled == "" {
		return "", fmt.Errorf("%w: %s::%s", ErrSymbolNotFound, synth.EntryNamespace, synth.EntryName)
	}
	logging.Logger().Debug("symbols: entry symbol", "mangled", mangled)
	return mangled, nil
}

func astDump(filter string, c Consumer) *toolchain.ASTDump {
	decode := Decode
	if filter != "" {
		decode = DecodeFiltered
	}
	return &toolchain.ASTDump{
		Filter: filter,
		Consumer: func(r io.Reader) error {
			return decode(r, c)
		},
	}
}
