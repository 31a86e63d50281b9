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
	"context"
	"errors"
	"fmt"
)

// ErrNoObjects is returned by LinkShared without input objects.
var ErrNoObjects = errors.New("no objects to link")

// Lower compiles a module's bitcode to a position-independent object file
// at out, using the driver flags the module was built with.
func (tc *Toolchain) Lower(ctx context.Context, m *Module, out string) error {
	args := []string{"-c", "-fPIC", "-Wno-unused-command-line-argument"}
	if m.Invocation != nil {
		args = append(args, m.Invocation.Flags...)
	}
	args = append(args, "-x", "ir", m.Path, "-o", out)
	if _, err := tc.run(ctx, "lower "+m.Name, args...); err != nil {
		return err
	}
	return nil
}

// LinkShared links objects into a shared library at out. Default
// libraries are not linked; their symbols are resolved at load time from
// the libraries already present in the process.
func (tc *Toolchain) LinkShared(ctx context.Context, objs []string, out string) error {
	if len(objs) == 0 {
		return ErrNoObjects
	}
	args := append(sharedLinkFlags(tc.target.GOOS), "-o", out)
	args = append(args, objs...)
	if _, err := tc.run(ctx, "link", args...); err != nil {
		return fmt.Errorf("link %s: %w", out, err)
	}
	return nil
}
