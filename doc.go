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

// Package exprjit is a per-pixel expression filter whose expression is a
// C++ function compiled to native code at runtime.
//
// For every output plane the user supplies a snippet such as
//
//	int f(int x, int y) { return x + y; }
//
// The snippet is wrapped in a generated loop that converts between the
// sample types of the source and destination formats, clamping integer
// results to the destination range when needed. The program is compiled
// with clang, linked into an isolated per-plane unit and called directly
// on frame memory.
//
// Basic usage:
//
//	f, err := exprjit.New(ctx, exprjit.Params{
//		Clips: []host.Clip{a, b},
//		Code:  []string{"int f(int x, int y) { return x + y; }"},
//	})
//	if err != nil {
//		return err
//	}
//	defer f.Close()
//	err = host.Render(ctx, f, host.AllFrames(f.Info()), 0, sink)
//
// A code entry that is the empty string passes the first clip's plane
// through unchanged. Planes without a code entry reuse the compiled
// function of the previous plane.
//
// toolchain.Init may be called first to choose the compiler; otherwise New
// initializes the toolchain with its defaults. toolchain.Shutdown releases
// process-wide compiler state after the last filter is closed.
package exprjit
