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

// Package toolchain drives the clang C++ toolchain programmatically.
//
// The driver is used exactly once per compilation unit, in "-###" mode, to
// derive the single "-cc1" job it would run. That job's arguments become a
// structured Invocation, and every front-end action (syntax check, AST
// dump, IR emission) then runs against a fresh compiler instance built from
// it. Lowering IR to native code and linking shared objects are exposed
// for the JIT loader.
//
// Toolchain state is process scoped: call Init once before creating any
// filter and Shutdown after the last filter has been closed. Compiler
// executions are serialized; the toolchain is not re-entrant.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"github.com/dc0d/onexit"
	"golang.org/x/mod/semver"

	"github.com/ajroetker/go-exprjit/internal/logging"
)

// MinVersion is the oldest clang whose JSON AST dump carries mangled names.
const MinVersion = "v11.0.0"

// EnvCompiler names the environment variable overriding the compiler path.
const EnvCompiler = "EXPRJIT_CLANG"

var (
	// ErrNotFound is returned by Init when no usable compiler exists.
	ErrNotFound = errors.New("clang++ not found")

	// ErrVersion is returned by Init for compilers older than MinVersion.
	ErrVersion = errors.New("unsupported clang version")

	// ErrShutdown is returned after Shutdown has been called.
	ErrShutdown = errors.New("toolchain shut down")
)

// Config selects the compiler used by the process.
type Config struct {
	// Path of the clang++ executable. Defaults to $EXPRJIT_CLANG, then
	// clang++ on PATH.
	Path string

	// ScratchDir is the parent of the process scratch directory.
	// Defaults to os.TempDir().
	ScratchDir string
}

// Toolchain is the process-wide handle on the compiler.
type Toolchain struct {
	path    string
	version string
	target  HostTarget
	scratch string

	mu     sync.Mutex
	closed bool
}

var process struct {
	once sync.Once
	tc   *Toolchain
	err  error
}

// Init locates and probes the compiler. Only the first call does any work;
// later calls return the same Toolchain (or error) regardless of cfg.
func Init(cfg Config) (*Toolchain, error) {
	process.once.Do(func() {
		process.tc, process.err = newToolchain(cfg)
		if process.err == nil {
			onexit.Register(Shutdown)
		}
	})
	return process.tc, process.err
}

// Shutdown releases process-scoped toolchain state. Every filter must be
// closed first. It is safe to call more than once.
func Shutdown() {
	tc := process.tc
	if tc == nil {
		return
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.closed {
		return
	}
	tc.closed = true
	if err := os.RemoveAll(tc.scratch); err != nil {
		logging.Logger().Warn("toolchain: remove scratch directory", "dir", tc.scratch, "err", err)
	}
}

func newToolchain(cfg Config) (*Toolchain, error) {
	path := cfg.Path
	if path == "" {
		path = os.Getenv(EnvCompiler)
	}
	if path == "" {
		path = "clang++"
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	out, err := exec.Command(resolved, "--version").Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s --version: %v", ErrNotFound, resolved, err)
	}
	version, err := parseVersion(string(out))
	if err != nil {
		return nil, err
	}
	if semver.Compare(version, MinVersion) < 0 {
		return nil, fmt.Errorf("%w: %s is older than %s", ErrVersion, version, MinVersion)
	}

	out, err = exec.Command(resolved, "-dumpmachine").Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s -dumpmachine: %v", ErrNotFound, resolved, err)
	}
	triple := strings.TrimSpace(string(out))

	scratch, err := os.MkdirTemp(cfg.ScratchDir, "exprjit-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}

	tc := &Toolchain{
		path:    resolved,
		version: version,
		target:  newHostTarget(triple),
		scratch: scratch,
	}
	logging.Logger().Info("toolchain: initialized",
		"clang", resolved, "version", version, "triple", triple)
	return tc, nil
}

var versionRE = regexp.MustCompile(`clang version (\d+)\.(\d+)\.(\d+)`)

// parseVersion extracts the semantic version from `clang --version`.
func parseVersion(out string) (string, error) {
	m := versionRE.FindStringSubmatch(out)
	if m == nil {
		first, _, _ := strings.Cut(out, "\n")
		return "", fmt.Errorf("%w: cannot parse %q", ErrVersion, first)
	}
	v := "v" + m[1] + "." + m[2] + "." + m[3]
	if !semver.IsValid(v) {
		return "", fmt.Errorf("%w: %s", ErrVersion, v)
	}
	return v, nil
}

// Path returns the compiler executable.
func (tc *Toolchain) Path() string { return tc.path }

// Version returns the compiler version, e.g. "v17.0.6".
func (tc *Toolchain) Version() string { return tc.version }

// Target describes the host the toolchain generates code for.
func (tc *Toolchain) Target() HostTarget { return tc.target }

// TempDir creates a new directory inside the process scratch directory.
func (tc *Toolchain) TempDir(pattern string) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.closed {
		return "", ErrShutdown
	}
	return os.MkdirTemp(tc.scratch, pattern)
}

// run executes the compiler with args and returns its stderr. A non-zero
// exit is reported as a *CompileError.
func (tc *Toolchain) run(ctx context.Context, action string, args ...string) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.closed {
		return "", ErrShutdown
	}

	cmd := exec.CommandContext(ctx, tc.path, args...)
	cmd.Env = compilerEnv()
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	logging.Logger().Debug("toolchain: run", "action", action, "args", args)
	if err := cmd.Run(); err != nil {
		return stderr.String(), newCompileError(action, stderr.String(), err)
	}
	return stderr.String(), nil
}

// compilerEnv pins the message locale so diagnostics stay parseable.
func compilerEnv() []string {
	return append(os.Environ(), "LC_ALL=C")
}
