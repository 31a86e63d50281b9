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

//go:build !darwin && !linux

package invoke

import (
	"errors"
	"runtime"
)

// ErrUnsupported is returned on platforms without native call support.
var ErrUnsupported = errors.New("invoke: unsupported platform " + runtime.GOOS)

// New reports ErrUnsupported.
func New(uintptr) (*Func, error) {
	return nil, ErrUnsupported
}

// Call reports ErrUnsupported.
func (f *Func) Call(pixelCount int, dst []byte, srcs ...[]byte) error {
	return ErrUnsupported
}
