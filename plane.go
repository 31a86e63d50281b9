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

package exprjit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ajroetker/go-exprjit/format"
	"github.com/ajroetker/go-exprjit/internal/logging"
	"github.com/ajroetker/go-exprjit/invoke"
	"github.com/ajroetker/go-exprjit/jit"
	"github.com/ajroetker/go-exprjit/symbols"
	"github.com/ajroetker/go-exprjit/synth"
	"github.com/ajroetker/go-exprjit/toolchain"
)

const (
	userFile = "expr.cpp"
	fullFile = "expr_full.cpp"
)

// compiler runs the per-plane pipeline of one filter instance.
type compiler struct {
	tc       *toolchain.Toolchain
	engine   *jit.Engine
	flags    []string
	dump     DumpConfig
	fileMode bool
}

// compile turns the user code in b into a callable plane. In file mode
// funcName selects the user function; otherwise it is discovered.
func (c *compiler) compile(ctx context.Context, b *synth.Builder, funcName string, index int) (*plane, error) {
	start := time.Now()
	o, err := c.tc.NewOverlay()
	if err != nil {
		return nil, err
	}
	defer o.Close()

	src, err := c.synthesize(ctx, o, b, funcName)
	if err != nil {
		return nil, err
	}
	funcName = b.UserFuncName
	if c.dump.Source {
		c.dump.write(funcName, ".cpp", []byte(src))
	}

	if err := o.AddFile(fullFile, src); err != nil {
		return nil, err
	}
	inv, err := c.tc.BuildInvocation(ctx, o, fullFile, c.flags)
	if err != nil {
		return nil, err
	}
	entry, err := symbols.FindEntrySymbol(ctx, c.tc, inv)
	if err != nil {
		return nil, symbolError(err)
	}
	emit := toolchain.NewEmitIR(inv)
	if err := c.tc.Execute(ctx, inv, emit); err != nil {
		return nil, err
	}
	if c.dump.Intermediate {
		if bc, err := emit.Module.Bitcode(); err != nil {
			logging.Logger().Warn("exprjit: dump failed", "module", emit.Module.Name, "err", err)
		} else {
			c.dump.write(funcName, ".bc", bc)
		}
	}

	sym, unit, err := c.link(ctx, emit.Module, entry, funcName, index)
	if err != nil {
		return nil, err
	}
	fn, err := invoke.New(sym.Address)
	if err != nil {
		return nil, err
	}
	logging.Logger().Info("exprjit: compiled plane",
		"plane", index, "function", funcName, "unit", unit.ID, "elapsed", time.Since(start))
	return &plane{unit: unit, fn: fn}, nil
}

// synthesize finds the user function of b and returns the full program.
func (c *compiler) synthesize(ctx context.Context, o *toolchain.Overlay, b *synth.Builder, funcName string) (string, error) {
	if err := o.AddFile(userFile, b.UserCode()); err != nil {
		return "", err
	}
	inv, err := c.tc.BuildInvocation(ctx, o, userFile, c.flags)
	if err != nil {
		return "", err
	}
	if c.fileMode {
		err = symbols.SelectFunction(ctx, c.tc, inv, funcName)
	} else {
		funcName, err = symbols.FindUserFunction(ctx, c.tc, inv)
	}
	if err != nil {
		return "", symbolError(err)
	}
	b.UserFuncName = funcName
	return b.FullSource()
}

// GenerateSource returns the program that would be compiled for a plane
// with the given user code. The toolchain is run to find the user
// function, but nothing is linked.
func GenerateSource(ctx context.Context, tc *toolchain.Toolchain, dst format.Format, srcs []format.Format, code string, flags []string) (string, error) {
	b := synth.NewBuilder(dst, srcs)
	b.SetUserCode(code)
	o, err := tc.NewOverlay()
	if err != nil {
		return "", fmt.Errorf("exprjit: %w", err)
	}
	defer o.Close()

	c := &compiler{tc: tc, flags: toolchain.ResolveFlags(flags)}
	src, err := c.synthesize(ctx, o, b, "")
	if err != nil {
		return "", fmt.Errorf("exprjit: %w", err)
	}
	return src, nil
}

// link loads the module into a fresh unit named after the plane and
// resolves the entry function.
func (c *compiler) link(ctx context.Context, m *toolchain.Module, entry, funcName string, index int) (jit.Symbol, *jit.Unit, error) {
	unit, err := c.engine.CreateUnit(strconv.Itoa(index))
	if err != nil {
		return jit.Symbol{}, nil, err
	}
	prefix := c.engine.DataLayout().GlobalPrefix
	ps, err := jit.ProcessSymbols(prefix)
	if err != nil {
		return jit.Symbol{}, nil, err
	}
	unit.AddGenerator(ps)
	rl, err := jit.RuntimeLibraries(prefix)
	if err != nil {
		return jit.Symbol{}, nil, err
	}
	unit.AddGenerator(rl)

	if c.dump.Binary {
		c.engine.SetObjectTransform(jit.DumpObjects(c.dump.Path, funcName))
		defer c.engine.SetObjectTransform(nil)
	}
	if err := c.engine.AddIRModule(unit, m); err != nil {
		return jit.Symbol{}, nil, err
	}
	sym, err := c.engine.LookupLinkerMangled(ctx, unit, entry)
	if err != nil {
		return jit.Symbol{}, nil, symbolError(err)
	}
	return sym, unit, nil
}

// symbolError makes lookup failures of every stage match ErrSymbolNotFound.
func symbolError(err error) error {
	if errors.Is(err, symbols.ErrSymbolNotFound) || errors.Is(err, jit.ErrSymbolNotFound) {
		return fmt.Errorf("%w: %w", ErrSymbolNotFound, err)
	}
	return err
}
