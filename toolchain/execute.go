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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"

	"github.com/ajroetker/go-exprjit/internal/logging"
)

// Execute runs action on a fresh compiler instance created from inv.
// Outputs are written to the directory holding the main file.
//
// Compiler failures are returned as a *CompileError and take precedence
// over errors from the action's consumer. A consumer returning ErrStop
// ends the run early without error.
func (tc *Toolchain) Execute(ctx context.Context, inv *Invocation, action FrontendAction) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.closed {
		return ErrShutdown
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	args := inv.commandLine(action.Args(filepath.Dir(inv.MainFile)))
	cmd := exec.CommandContext(ctx, inv.Tool, args...)
	cmd.Env = compilerEnv()
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%s: %w", action.Name(), err)
	}

	logging.Logger().Debug("toolchain: execute", "action", action.Name(), "file", inv.MainFile)
	if err := cmd.Start(); err != nil {
		return newCompileError(action.Name(), "", err)
	}

	consumeErr := action.Consume(stdout)
	stopped := errors.Is(consumeErr, ErrStop)
	if stopped {
		cancel()
	}
	// Drain whatever the consumer left so the compiler can exit.
	_, _ = io.Copy(io.Discard, stdout)

	waitErr := cmd.Wait()
	switch {
	case stopped:
		return nil
	case waitErr != nil:
		return newCompileError(action.Name(), stderr.String(), waitErr)
	case consumeErr != nil:
		return fmt.Errorf("%s: %w", action.Name(), consumeErr)
	}
	if f, ok := action.(finisher); ok {
		return f.finish()
	}
	return nil
}
