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
	"slices"

	"github.com/samber/lo"
)

// DefaultFlags returns the code generation flags used when the user gives
// none: highest optimization, C++17, and tuning for the build machine.
func DefaultFlags() []string {
	return lo.Compact([]string{"-O3", "-std=c++17", nativeArchFlag})
}

// ResolveFlags returns user when it is non-nil and DefaultFlags otherwise.
// User flags replace the defaults; they are never merged.
func ResolveFlags(user []string) []string {
	if user != nil {
		return slices.Clone(user)
	}
	return DefaultFlags()
}
