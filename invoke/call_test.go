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

//go:build darwin || linux

package invoke_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-exprjit/invoke"
	"github.com/ajroetker/go-exprjit/jit"
	"github.com/ajroetker/go-exprjit/toolchain"
)

const addSource = `
#include <cstdint>
extern "C" void add(long n, void** p) {
    auto* dst = static_cast<uint8_t*>(p[0]);
    auto* a = static_cast<const uint8_t*>(p[1]);
    auto* b = static_cast<const uint8_t*>(p[2]);
    for (long i = 0; i < n; ++i) dst[i] = a[i] + b[i];
}
`

func TestNewNilAddress(t *testing.T) {
	_, err := invoke.New(0)
	assert.ErrorIs(t, err, invoke.ErrNilAddress)
}

func compileAdd(t *testing.T) *invoke.Func {
	t.Helper()
	tc, err := toolchain.Init(toolchain.Config{})
	if err != nil {
		t.Skipf("clang unavailable: %v", err)
	}
	ctx := context.Background()

	o, err := tc.NewOverlay()
	require.NoError(t, err)
	t.Cleanup(func() { o.Close() })
	require.NoError(t, o.AddFile("add.cpp", addSource))
	inv, err := tc.BuildInvocation(ctx, o, "add.cpp", toolchain.DefaultFlags())
	require.NoError(t, err)
	emit := toolchain.NewEmitIR(inv)
	require.NoError(t, tc.Execute(ctx, inv, emit))

	e, err := jit.NewEngine(tc)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	u, err := e.CreateUnit("0")
	require.NoError(t, err)
	g, err := jit.ProcessSymbols(e.DataLayout().GlobalPrefix)
	require.NoError(t, err)
	u.AddGenerator(g)
	require.NoError(t, e.AddIRModule(u, emit.Module))
	sym, err := e.LookupLinkerMangled(ctx, u, e.DataLayout().GlobalPrefix+"add")
	require.NoError(t, err)

	fn, err := invoke.New(sym.Address)
	require.NoError(t, err)
	assert.Equal(t, sym.Address, fn.Addr())
	return fn
}

func TestCall(t *testing.T) {
	fn := compileAdd(t)

	a := []byte{1, 2, 3, 250}
	b := []byte{10, 20, 30, 10}
	dst := make([]byte, 4)
	require.NoError(t, fn.Call(len(dst), dst, a, b))
	assert.Equal(t, []byte{11, 22, 33, 4}, dst)

	assert.ErrorIs(t, fn.Call(4, nil, a, b), invoke.ErrBuffer)

	// Zero samples is a no-op, even over empty planes.
	require.NoError(t, fn.Call(0, []byte{}, []byte{}, nil))
}

func TestCallConcurrent(t *testing.T) {
	fn := compileAdd(t)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a := make([]byte, 1<<12)
			b := make([]byte, 1<<12)
			for j := range a {
				a[j] = byte(i)
				b[j] = byte(j)
			}
			dst := make([]byte, len(a))
			assert.NoError(t, fn.Call(len(dst), dst, a, b))
			for j := range dst {
				if dst[j] != byte(i)+byte(j) {
					t.Errorf("worker %d: dst[%d] = %d", i, j, dst[j])
					return
				}
			}
		}()
	}
	wg.Wait()
}
