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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const driverOutput = `clang version 17.0.6
Target: x86_64-pc-linux-gnu
Thread model: posix
InstalledDir: /usr/bin
 (in-process)
 "/usr/lib/llvm-17/bin/clang" "-cc1" "-triple" "x86_64-pc-linux-gnu" "-fsyntax-only" "-disable-free" "-main-file-name" "plane0.cpp" "-mrelocation-model" "pic" "-pic-level" "2" "-target-cpu" "znver3" "-target-feature" "+avx2" "-target-feature" "+fma" "-O3" "-std=c++17" "-D" "NAME=\"a b\"" "-fcolor-diagnostics" "-x" "c++" "/tmp/vfs-1/plane0.cpp"
`

func TestParseJobs(t *testing.T) {
	jobs, err := parseJobs(driverOutput)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "/usr/lib/llvm-17/bin/clang", jobs[0][0])
	assert.Equal(t, "-cc1", jobs[0][1])
	assert.Contains(t, jobs[0], `NAME="a b"`)
	assert.Equal(t, "/tmp/vfs-1/plane0.cpp", jobs[0][len(jobs[0])-1])
}

func TestParseJobsMultiple(t *testing.T) {
	out := driverOutput + ` "/usr/bin/ld" "-o" "a.out" "/tmp/plane0.o"` + "\n"
	jobs, err := parseJobs(out)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestSplitQuoted(t *testing.T) {
	tests := []struct {
		line    string
		want    []string
		wantErr bool
	}{
		{`"a" "b c"`, []string{"a", "b c"}, false},
		{`"x\"y" "p\\q" "\$HOME"`, []string{`x"y`, `p\q`, "$HOME"}, false},
		{`"" "z"`, []string{"", "z"}, false},
		{`"open`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := splitQuoted(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("splitQuoted mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewInvocation(t *testing.T) {
	jobs, err := parseJobs(driverOutput)
	require.NoError(t, err)

	inv, err := newInvocation(jobs[0], "/tmp/vfs-1/plane0.cpp")
	require.NoError(t, err)

	assert.Equal(t, "/usr/lib/llvm-17/bin/clang", inv.Tool)
	assert.Equal(t, "/tmp/vfs-1/plane0.cpp", inv.MainFile)
	assert.Equal(t, "x86_64-pc-linux-gnu", inv.Triple)
	assert.Equal(t, "znver3", inv.TargetCPU)
	assert.Equal(t, []string{"+avx2", "+fma"}, inv.TargetFeatures)
	assert.Equal(t, "-O3", inv.OptLevel)
	assert.Equal(t, "c++17", inv.LangStd)
	assert.NotContains(t, inv.Args, "-fsyntax-only")
	assert.NotContains(t, inv.Args, "/tmp/vfs-1/plane0.cpp")
	assert.NotContains(t, inv.Args, "-cc1")

	cmd := inv.commandLine([]string{"-emit-llvm-bc", "-o", "/tmp/vfs-1/plane0.bc"})
	assert.Equal(t, "-cc1", cmd[0])
	assert.Equal(t, "/tmp/vfs-1/plane0.cpp", cmd[len(cmd)-1])
	assert.Equal(t, "-emit-llvm-bc", cmd[len(cmd)-4])
}

func TestNewInvocationRejects(t *testing.T) {
	tests := []struct {
		name string
		job  []string
	}{
		{"linker", []string{"/usr/bin/ld", "-o", "a.out"}},
		{"not cc1", []string{"/usr/bin/clang", "-cc1as", "in.s"}},
		{"short", []string{"/usr/bin/clang"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newInvocation(tt.job, "in.cpp")
			assert.ErrorIs(t, err, ErrJobList)
		})
	}

	_, err := newInvocation([]string{"clang", "-cc1", "-triple", "x", "other.cpp"}, "in.cpp")
	assert.ErrorIs(t, err, ErrInvocation)

	_, err = newInvocation([]string{"clang", "-cc1", "in.cpp"}, "in.cpp")
	assert.ErrorIs(t, err, ErrInvocation)
}
