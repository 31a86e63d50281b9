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

package invoke

import (
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
)

// New binds the entry function at addr.
func New(addr uintptr) (*Func, error) {
	if addr == 0 {
		return nil, ErrNilAddress
	}
	f := &Func{addr: addr}
	purego.RegisterFunc(&f.fn, addr)
	return f, nil
}

// Call runs the function over pixelCount elements. dst and every source
// stay pinned until the native call returns.
func (f *Func) Call(pixelCount int, dst []byte, srcs ...[]byte) error {
	if err := checkBuffers(pixelCount, dst, srcs); err != nil {
		return err
	}
	if pixelCount == 0 {
		return nil
	}

	var pinner runtime.Pinner
	defer pinner.Unpin()

	ptrs := make([]uintptr, 1+len(srcs))
	pinner.Pin(&dst[0])
	ptrs[0] = uintptr(unsafe.Pointer(&dst[0]))
	for i, s := range srcs {
		pinner.Pin(&s[0])
		ptrs[i+1] = uintptr(unsafe.Pointer(&s[0]))
	}
	pinner.Pin(&ptrs[0])

	f.fn(int64(pixelCount), unsafe.Pointer(&ptrs[0]))
	runtime.KeepAlive(dst)
	runtime.KeepAlive(srcs)
	return nil
}
