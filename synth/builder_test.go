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

package synth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-exprjit/format"
)

func TestElemType(t *testing.T) {
	tests := []struct {
		name    string
		format  format.Format
		want    string
		wantErr bool
	}{
		{"8 bit", format.Gray8, "uint8_t", false},
		{"10 bit in 16", format.YUV420P10, "uint16_t", false},
		{"16 bit", format.Gray16, "uint16_t", false},
		{"32 bit", format.Gray32, "uint32_t", false},
		{"single", format.GrayS, "float", false},
		{"double", format.GrayD, "double", false},
		{"half", format.GrayH, "", true},
		{"extended", format.Format{SampleType: format.Float, BitsPerSample: 80, BytesPerSample: 10, NumPlanes: 1}, "", true},
		{"24 bit", format.Format{SampleType: format.Integer, BitsPerSample: 24, BytesPerSample: 3, NumPlanes: 1}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ElemType(tt.format)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedSampleType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFullSourceRequiresUserFunction(t *testing.T) {
	b := NewBuilder(format.Gray8, []format.Format{format.Gray8})
	b.SetUserCode("int f(int x) { return x; }")
	_, err := b.FullSource()
	assert.ErrorIs(t, err, ErrNoUserFunction)
}

func TestFullSourceTwoInputs(t *testing.T) {
	b := NewBuilder(format.Gray8, []format.Format{format.Gray8, format.Gray16})
	b.SetUserCode("int f(int x, int y) { return x + y; }")
	b.UserFuncName = "f"

	got, err := b.FullSource()
	require.NoError(t, err)

	wantHead := "#include <algorithm>\n" +
		"#include <cstdint>\n" +
		"#include <limits>\n" +
		"#include <type_traits>\n" +
		"#include <utility>\n" +
		"\n" +
		"#include <cstdint>\n\n" +
		"int f(int x, int y) { return x + y; }"
	require.True(t, strings.HasPrefix(got, wantHead), "unexpected head:\n%s", got)

	wantEntry := `
namespace exprjit {
void run(long pixel_count, void** data_ptrs)
{
    auto* const __restrict dst{static_cast<uint8_t* const>(data_ptrs[0])};
    auto* const __restrict src0{static_cast<const uint8_t* const>(data_ptrs[1])};
    auto* const __restrict src1{static_cast<const uint16_t* const>(data_ptrs[2])};
    exprjit::run_loop(pixel_count, {0, 255}, dst, src0, src1);
}
} // namespace exprjit

`
	gotEntry := got[strings.LastIndex(got, "\nnamespace exprjit {\nvoid run"):]
	if diff := cmp.Diff(wantEntry, gotEntry); diff != "" {
		t.Errorf("entry function mismatch (-want +got):\n%s", diff)
	}

	assert.NotContains(t, got, userFuncPlaceholder)
	assert.Contains(t, got, "using User_t = decltype(f(srcs[0]...));")
	assert.Contains(t, got, "std::clamp<User_t>(f(srcs[i]...),")
}

func TestFullSourceFloatDestination(t *testing.T) {
	b := NewBuilder(format.GrayS, []format.Format{format.Gray8})
	b.SetUserCode("double g(int x) { return x * -0.5; }")
	b.UserFuncName = "g"

	got, err := b.FullSource()
	require.NoError(t, err)
	assert.Contains(t, got, "static_cast<float* const>(data_ptrs[0])")
	assert.Contains(t, got, "exprjit::run_loop(pixel_count, {0, 0}, dst, src0);")
}

func TestFullSourceQualifiedName(t *testing.T) {
	b := NewBuilder(format.Gray16, []format.Format{format.Gray16})
	b.SetUserCode("namespace user { int h(int x) { return x; } }")
	b.UserFuncName = "user::h"

	got, err := b.FullSource()
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(got, "user::h(srcs["))
	assert.Contains(t, got, "decltype(user::h(srcs[0]...))")
	assert.Contains(t, got, "std::clamp<User_t>(user::h(srcs[i]...),")
	assert.Contains(t, got, "dst[i] = user::h(srcs[i]...);")
	assert.Contains(t, got, "{0, 65535}")
}

func TestFullSourceUnsupportedDestination(t *testing.T) {
	b := NewBuilder(format.GrayH, []format.Format{format.GrayH})
	b.SetUserCode("float f(float x) { return x; }")
	b.UserFuncName = "f"
	_, err := b.FullSource()
	assert.ErrorIs(t, err, ErrUnsupportedSampleType)
}

func TestIncludesAreUnique(t *testing.T) {
	b := NewBuilder(format.Gray8, []format.Format{format.Gray8})
	b.SetUserCode("int f(int x) { return x; }")
	b.UserFuncName = "f"

	_, err := b.FullSource()
	require.NoError(t, err)
	// A second serialization must not duplicate anything.
	got, err := b.FullSource()
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(got, "#include <algorithm>"))
	assert.Equal(t, []string{"algorithm", "cstdint", "limits", "type_traits", "utility"}, b.Includes())
}

func TestCloneIsIndependent(t *testing.T) {
	common := NewBuilder(format.Gray8, []format.Format{format.Gray8})
	a := common.Clone()
	a.SetUserCode("int a(int x) { return x; }")
	a.UserFuncName = "a"
	_, err := a.FullSource()
	require.NoError(t, err)

	b := common.Clone()
	assert.Empty(t, b.UserFuncName)
	assert.Empty(t, b.UserCode())
	assert.Empty(t, b.Includes())
}

func TestLoadUserCode(t *testing.T) {
	dir := t.TempDir()

	utf8Path := filepath.Join(dir, "bom8.cpp")
	require.NoError(t, os.WriteFile(utf8Path, append([]byte{0xEF, 0xBB, 0xBF}, "int f(int x) { return x; }"...), 0o644))

	// "int g;" in UTF-16LE with a byte order mark.
	utf16 := []byte{0xFF, 0xFE}
	for _, r := range "int g;" {
		utf16 = append(utf16, byte(r), 0)
	}
	utf16Path := filepath.Join(dir, "bom16.cpp")
	require.NoError(t, os.WriteFile(utf16Path, utf16, 0o644))

	b := NewBuilder(format.Gray8, []format.Format{format.Gray8})
	require.NoError(t, b.LoadUserCode(utf8Path))
	assert.Equal(t, BuiltinIncludes+"int f(int x) { return x; }", b.UserCode())

	require.NoError(t, b.LoadUserCode(utf16Path))
	assert.Equal(t, BuiltinIncludes+"int g;", b.UserCode())

	assert.Error(t, b.LoadUserCode(filepath.Join(dir, "missing.cpp")))
}
