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

// Package synth builds the C++ compilation unit that wraps a user snippet.
//
// The emitted unit has four parts, in order:
//
//	<#include lines>
//	<baseline include + user code>
//	<generic element loop, namespace exprjit>
//	<fixed-signature entry function exprjit::run>
//
// The include lines are only known once the loop and entry generators have
// run, so they are serialized last even though they are emitted first.
//
// The entry function is the one contract shared with the JIT loader and the
// invoker:
//
//	void exprjit::run(long pixel_count, void** data_ptrs);
//
// data_ptrs[0] is the destination plane, data_ptrs[1:] the source planes in
// clip order.
package synth

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ajroetker/go-exprjit/format"
)

const (
	// EntryNamespace wraps the generated loop and entry function.
	EntryNamespace = "exprjit"

	// EntryName is the unqualified name of the generated entry function.
	EntryName = "run"

	// BuiltinIncludes prefixes every user snippet.
	BuiltinIncludes = "#include <cstdint>\n\n"

	userFuncPlaceholder = "USER_FUNC_NAME"
)

var (
	// ErrUnsupportedSampleType is returned for formats that have no native
	// element type, such as half precision floats.
	ErrUnsupportedSampleType = errors.New("unsupported sample type")

	// ErrNoUserFunction is returned when the generators run before the user
	// function name is known.
	ErrNoUserFunction = errors.New("user function name not set")
)

// Builder accumulates the pieces of one compilation unit. Create one common
// builder per filter instance and Clone it for every plane.
type Builder struct {
	Dst  format.Format
	Srcs []format.Format

	// UserFuncName is the qualified name of the user function. It is empty
	// until the first symbol pass has run.
	UserFuncName string

	includes map[string]struct{}
	userCode string
}

// NewBuilder returns a builder for a destination format and the ordered
// source formats.
func NewBuilder(dst format.Format, srcs []format.Format) *Builder {
	return &Builder{
		Dst:      dst,
		Srcs:     slices.Clone(srcs),
		includes: make(map[string]struct{}),
	}
}

// Clone returns an independent copy of b.
func (b *Builder) Clone() *Builder {
	return &Builder{
		Dst:          b.Dst,
		Srcs:         slices.Clone(b.Srcs),
		UserFuncName: b.UserFuncName,
		includes:     maps.Clone(b.includes),
		userCode:     b.userCode,
	}
}

// SetUserCode stores code prefixed with BuiltinIncludes.
func (b *Builder) SetUserCode(code string) {
	b.userCode = BuiltinIncludes + code
}

// LoadUserCode reads the user code from a file. A UTF-8 byte order mark
// is stripped and UTF-16 files carrying a byte order mark are transcoded.
func (b *Builder) LoadUserCode(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read user code: %w", err)
	}
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
	if err != nil {
		return fmt.Errorf("decode user code %s: %w", path, err)
	}
	b.SetUserCode(string(decoded))
	return nil
}

// UserCode returns the user code as it is handed to the compiler, including
// the baseline include.
func (b *Builder) UserCode() string {
	return b.userCode
}

// Includes returns the headers required so far, sorted.
func (b *Builder) Includes() []string {
	names := lo.Keys(b.includes)
	slices.Sort(names)
	return names
}

// FullSource generates the loop and entry functions and returns the
// complete program text.
func (b *Builder) FullSource() (string, error) {
	loop, err := b.loopFunc()
	if err != nil {
		return "", err
	}
	entry, err := b.entryFunc()
	if err != nil {
		return "", err
	}
	// The include list is complete only after both generators ran.
	return b.includeLines() + b.userCode + loop + entry, nil
}

func (b *Builder) include(names ...string) {
	for _, n := range names {
		b.includes[n] = struct{}{}
	}
}

func (b *Builder) includeLines() string {
	var sb strings.Builder
	for _, name := range b.Includes() {
		fmt.Fprintf(&sb, "#include <%s>\n", name)
	}
	sb.WriteString("\n")
	return sb.String()
}

const loopTemplate = `

namespace exprjit {
template<typename Dst_ptr, typename... Src_ptrs,
         typename Dst_t = std::remove_pointer_t<Dst_ptr>>
void run_loop(long pixel_count, std::pair<Dst_t, Dst_t> value_range,
              Dst_ptr dst, Src_ptrs... srcs)
{
    using User_t = decltype(USER_FUNC_NAME(srcs[0]...));

    for (long i{0}; i < pixel_count; ++i) {
        if constexpr (!std::is_same_v<Dst_t, User_t>
                      && std::is_integral_v<Dst_t>
                      && std::is_integral_v<User_t>
                      && std::numeric_limits<Dst_t>::max()
                         < std::numeric_limits<User_t>::max()) {
            dst[i] = std::clamp<User_t>(USER_FUNC_NAME(srcs[i]...),
                                        value_range.first, value_range.second);
        } else {
            dst[i] = USER_FUNC_NAME(srcs[i]...);
        }
    }
}
} // namespace exprjit

`

// loopFunc emits run_loop, which calls the user function once per element.
// Clamping happens only for integral destinations narrower than an
// integral user result.
func (b *Builder) loopFunc() (string, error) {
	if b.UserFuncName == "" {
		return "", ErrNoUserFunction
	}
	b.include("algorithm", "limits", "type_traits", "utility")
	return strings.ReplaceAll(loopTemplate, userFuncPlaceholder, b.UserFuncName), nil
}

type bufferDecl struct {
	name string
	typ  string
}

// entryFunc emits exprjit::run, which unpacks the untyped buffer pointers
// and calls run_loop.
func (b *Builder) entryFunc() (string, error) {
	b.include("cstdint")

	dstType, err := ElemType(b.Dst)
	if err != nil {
		return "", fmt.Errorf("destination: %w", err)
	}
	bufs := []bufferDecl{{"dst", dstType + "* const"}}
	for i, src := range b.Srcs {
		srcType, err := ElemType(src)
		if err != nil {
			return "", fmt.Errorf("source %d: %w", i, err)
		}
		bufs = append(bufs, bufferDecl{"src" + strconv.Itoa(i), "const " + srcType + "* const"})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\nnamespace %s {\n", EntryNamespace)
	fmt.Fprintf(&sb, "void %s(long pixel_count, void** data_ptrs)\n{\n", EntryName)
	for i, buf := range bufs {
		fmt.Fprintf(&sb, "    auto* const __restrict %s{static_cast<%s>(data_ptrs[%d])};\n", buf.name, buf.typ, i)
	}
	names := lo.Map(bufs, func(buf bufferDecl, _ int) string { return buf.name })
	fmt.Fprintf(&sb, "    %s::run_loop(pixel_count, {0, %d}, %s);\n", EntryNamespace, b.Dst.MaxValue(), strings.Join(names, ", "))
	sb.WriteString("}\n")
	fmt.Fprintf(&sb, "} // namespace %s\n\n", EntryNamespace)
	return sb.String(), nil
}

// ElemType maps a format to the C++ element type of its planes.
func ElemType(f format.Format) (string, error) {
	switch f.SampleType {
	case format.Integer:
		switch f.BytesPerSample {
		case 1, 2, 4:
			return "uint" + strconv.Itoa(f.BytesPerSample*8) + "_t", nil
		}
	case format.Float:
		switch f.BytesPerSample {
		case 2:
			return "", fmt.Errorf("%w: FP16 is not supported yet", ErrUnsupportedSampleType)
		case 4:
			return "float", nil
		case 8:
			return "double", nil
		}
	}
	return "", fmt.Errorf("%w: %s with %d bytes per sample", ErrUnsupportedSampleType, f.SampleType, f.BytesPerSample)
}
