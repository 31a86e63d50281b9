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

// Package symbols extracts the names the JIT pipeline needs from the
// compiler's JSON AST dump.
//
// Two names are looked up. The first pass runs on the user's snippet alone
// and finds the user function: the first function declared in the main
// file. The second pass runs on the generated program, filtered to the
// entry namespace, and finds the linker-mangled name of the entry function.
//
// Declarations are delivered one top-level declaration at a time to a
// Consumer, which can stop the traversal early. Stopping also terminates
// the compiler process producing the dump.
package symbols

import "errors"

// ErrSymbolNotFound is returned when a requested function is not declared.
var ErrSymbolNotFound = errors.New("symbol not found")

// ErrNoUserFunction is returned when the snippet declares no function.
var ErrNoUserFunction = errors.New("no user function found")

// Decl is a declaration of interest: *FunctionDecl or *NamespaceDecl.
// Every other kind of declaration is skipped by the decoder.
type Decl interface {
	DeclName() string
	decl()
}

// FunctionDecl is a function declaration or definition.
type FunctionDecl struct {
	Name          string
	QualifiedName string

	// MangledName is the linker-level name, including the target's
	// global prefix.
	MangledName string

	// Implicit is set for declarations the compiler created itself, such
	// as builtins.
	Implicit bool

	// InMainFile is set when the declaration is spelled in the main file
	// rather than an included header.
	InMainFile bool
}

// NamespaceDecl is one namespace block. A namespace reopened several times
// yields one NamespaceDecl per block.
type NamespaceDecl struct {
	Name          string
	QualifiedName string
	Decls         []Decl
}

func (d *FunctionDecl) DeclName() string  { return d.Name }
func (d *NamespaceDecl) DeclName() string { return d.Name }

func (*FunctionDecl) decl()  {}
func (*NamespaceDecl) decl() {}

// Consumer receives top-level declarations in source order.
type Consumer interface {
	// HandleTopLevelDecl returns false to stop the traversal.
	HandleTopLevelDecl(d Decl) bool
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(d Decl) bool

func (f ConsumerFunc) HandleTopLevelDecl(d Decl) bool { return f(d) }

func qualify(parent, name string) string {
	if name == "" {
		name = "(anonymous namespace)"
	}
	if parent == "" {
		return name
	}
	return parent + "::" + name
}

// Function returns the function named name declared directly in ns.
func (ns *NamespaceDecl) Function(name string) (*FunctionDecl, bool) {
	for _, d := range ns.Decls {
		if fd, ok := d.(*FunctionDecl); ok && fd.Name == name {
			return fd, true
		}
	}
	return nil, false
}
