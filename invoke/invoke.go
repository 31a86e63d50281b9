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

// Package invoke calls JIT-compiled entry functions on Go-owned buffers.
//
// Every entry function has the C signature
//
//	void run(long pixel_count, void** data_ptrs);
//
// where data_ptrs[0] is the destination plane and data_ptrs[1:] are the
// source planes.
package invoke

import (
	"errors"
	"fmt"
	"unsafe"
)

var (
	// ErrNilAddress is returned by New for a zero function address.
	ErrNilAddress = errors.New("invoke: nil function address")

	// ErrBuffer is returned by Call for unusable buffers.
	ErrBuffer = errors.New("invoke: invalid buffer")
)

// Func is a native entry function. It holds no state and may be called
// from several goroutines at once.
type Func struct {
	addr uintptr
	fn   func(pixelCount int64, ptrs unsafe.Pointer)
}

// Addr returns the native address.
func (f *Func) Addr() uintptr { return f.addr }

func checkBuffers(pixelCount int, dst []byte, srcs [][]byte) error {
	if pixelCount < 0 {
		return fmt.Errorf("%w: negative pixel count %d", ErrBuffer, pixelCount)
	}
	if pixelCount == 0 {
		return nil
	}
	if len(dst) == 0 {
		return fmt.Errorf("%w: empty destination", ErrBuffer)
	}
	for i, s := range srcs {
		if len(s) == 0 {
			return fmt.Errorf("%w: empty source %d", ErrBuffer, i)
		}
	}
	return nil
}
