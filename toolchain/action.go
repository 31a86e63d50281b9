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

package toolchain

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrStop is returned by an action's Consume to end the compiler run
// early. Execute treats it as success.
var ErrStop = errors.New("stop compiler output")

// ErrEmitModule is returned when IR emission produced no module.
var ErrEmitModule = errors.New("failed to emit IR module")

// FrontendAction is one task a compiler instance performs on an
// Invocation's main file.
type FrontendAction interface {
	// Name identifies the action in logs and errors.
	Name() string

	// Args returns the action flags. Outputs go below outDir.
	Args(outDir string) []string

	// Consume reads the compiler's standard output.
	Consume(r io.Reader) error
}

// SyntaxOnly parses and type-checks the main file.
type SyntaxOnly struct{}

func (SyntaxOnly) Name() string { return "syntax-only" }

func (SyntaxOnly) Args(string) []string { return []string{"-fsyntax-only"} }

func (SyntaxOnly) Consume(r io.Reader) error {
	_, err := io.Copy(io.Discard, r)
	return err
}

// ASTDump streams the JSON AST of the main file to a consumer. A non-empty
// Filter limits the dump to declarations whose qualified name contains it.
type ASTDump struct {
	Filter   string
	Consumer func(r io.Reader) error
}

func (a *ASTDump) Name() string {
	if a.Filter != "" {
		return "ast-dump(" + a.Filter + ")"
	}
	return "ast-dump"
}

func (a *ASTDump) Args(string) []string {
	args := []string{"-ast-dump=json"}
	if a.Filter != "" {
		args = append(args, "-ast-dump-filter", a.Filter)
	}
	return args
}

func (a *ASTDump) Consume(r io.Reader) error {
	if a.Consumer == nil {
		_, err := io.Copy(io.Discard, r)
		return err
	}
	return a.Consumer(r)
}

// finisher is implemented by actions that collect compiler outputs after
// the process exits.
type finisher interface {
	finish() error
}

// Module is an LLVM IR module produced by EmitIR.
type Module struct {
	// Name is the module identifier, the main file's base name.
	Name string

	// Path of the bitcode file.
	Path string

	// Invocation the module was compiled with.
	Invocation *Invocation
}

// EmitIR compiles the main file to LLVM bitcode. After a successful
// Execute, Module holds the result.
type EmitIR struct {
	Module *Module

	inv  *Invocation
	path string
}

// NewEmitIR returns an IR emission action for inv.
func NewEmitIR(inv *Invocation) *EmitIR {
	return &EmitIR{inv: inv}
}

func (e *EmitIR) Name() string { return "emit-llvm" }

func (e *EmitIR) Args(outDir string) []string {
	base := strings.TrimSuffix(filepath.Base(e.inv.MainFile), filepath.Ext(e.inv.MainFile))
	e.path = filepath.Join(outDir, base+".bc")
	return []string{"-emit-llvm-bc", "-o", e.path}
}

func (e *EmitIR) Consume(r io.Reader) error {
	_, err := io.Copy(io.Discard, r)
	return err
}

// finish runs once the compiler has exited successfully.
func (e *EmitIR) finish() error {
	fi, err := os.Stat(e.path)
	if err != nil || fi.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmitModule, e.path)
	}
	e.Module = &Module{
		Name:       filepath.Base(e.inv.MainFile),
		Path:       e.path,
		Invocation: e.inv,
	}
	return nil
}

// Bitcode reads the module's bitcode.
func (m *Module) Bitcode() ([]byte, error) {
	b, err := os.ReadFile(m.Path)
	if err != nil {
		return nil, fmt.Errorf("read module %s: %w", m.Name, err)
	}
	if !bytes.HasPrefix(b, []byte("BC\xc0\xde")) && !bytes.HasPrefix(b, []byte{0xde, 0xc0, 0x17, 0x0b}) {
		return nil, fmt.Errorf("%w: %s is not LLVM bitcode", ErrEmitModule, m.Path)
	}
	return b, nil
}
