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
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clangOutput = `/tmp/vfs-1/plane0.cpp:3:12: error: use of undeclared identifier 'y'
    3 | int f(int x) { return y; }
      |                       ^
/tmp/vfs-1/plane0.cpp:1:1: warning: unused variable 'z' [-Wunused-variable]
/tmp/vfs-1/plane0.cpp:1:1: note: declared here
clang++: error: linker command failed with exit code 1 (use -v to see invocation)
1 error generated.
`

func TestParseDiagnostics(t *testing.T) {
	diags := ParseDiagnostics(clangOutput)
	require.Len(t, diags, 4)

	assert.Equal(t, Diagnostic{
		File:     "/tmp/vfs-1/plane0.cpp",
		Line:     3,
		Column:   12,
		Severity: SeverityError,
		Message:  "use of undeclared identifier 'y'",
	}, diags[0])
	assert.Equal(t, SeverityWarning, diags[1].Severity)
	assert.Equal(t, SeverityNote, diags[2].Severity)
	assert.Equal(t, Diagnostic{
		Severity: SeverityError,
		Message:  "linker command failed with exit code 1 (use -v to see invocation)",
	}, diags[3])
}

func TestCompileError(t *testing.T) {
	exitErr := &exec.ExitError{}
	ce := newCompileError("emit-llvm", clangOutput, exitErr)

	assert.True(t, errors.Is(ce, ErrCompilation))
	var target *exec.ExitError
	assert.True(t, errors.As(ce, &target))
	assert.Contains(t, ce.Error(), "use of undeclared identifier 'y'")
	assert.Contains(t, ce.Error(), "and 1 more errors")

	var asCE *CompileError
	wrapped := errors.Join(errors.New("plane 0"), ce)
	require.True(t, errors.As(wrapped, &asCE))
	assert.Len(t, asCE.Diagnostics, 4)
}

func TestCompileErrorWithoutDiagnostics(t *testing.T) {
	ce := newCompileError("driver", "", errors.New("exit status 1"))
	assert.Equal(t, "driver: exit status 1", ce.Error())
	assert.ErrorIs(t, ce, ErrCompilation)
}
