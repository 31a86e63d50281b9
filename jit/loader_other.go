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

package jit

import (
	"errors"
	"runtime"
)

// ErrUnsupported is returned on platforms without a dynamic loader
// binding.
var ErrUnsupported = errors.New("jit: unsupported platform " + runtime.GOOS)

func dlopen(string, bool) (uintptr, error) { return 0, ErrUnsupported }

func dlsym(uintptr, string) (uintptr, error) { return 0, ErrUnsupported }

func dlsymDefault(string) (uintptr, error) { return 0, ErrUnsupported }

func dlclose(uintptr) error { return ErrUnsupported }
