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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"text/tabwriter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-exprjit/format"
	"github.com/ajroetker/go-exprjit/toolchain"
)

func TestSampleValues(t *testing.T) {
	var v sampleValues
	require.NoError(t, v.Set("200, 100,1.5"))
	assert.Equal(t, sampleValues{200, 100, 1.5}, v)
	assert.Equal(t, "200,100,1.5", v.String())
	assert.Equal(t, "samples", v.Type())

	assert.Error(t, v.Set("x"))
	assert.Error(t, v.Set(" , "))
	assert.Equal(t, sampleValues{200, 100, 1.5}, v)
}

func TestSampleEncoding(t *testing.T) {
	tests := []struct {
		format format.Format
		in     float64
		want   string
	}{
		{format.Gray8, 200, "200"},
		{format.Gray8, 300, "255"},
		{format.Gray8, -4, "0"},
		{format.Gray16, 40000, "40000"},
		{format.YUV420P10, 2000, "1023"},
		{format.Gray32, 70000, "70000"},
		{format.GrayS, -1.25, "-1.25"},
		{format.GrayD, 0.1, "0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.format.Name, func(t *testing.T) {
			b := make([]byte, tt.format.BytesPerSample)
			putSample(tt.format, b, tt.in)
			assert.Equal(t, tt.want, sample(tt.format, b))
		})
	}
}

func TestReplClip(t *testing.T) {
	for _, f := range []format.Format{format.Gray8, format.YUV420P8, format.YUV420P16, format.YUV444PS} {
		t.Run(f.Name, func(t *testing.T) {
			c, err := replClip(f, 9)
			require.NoError(t, err)
			fr, err := c.GetFrame(context.Background(), 0)
			require.NoError(t, err)
			defer fr.Release()
			for p := range fr.NumPlanes() {
				require.NotEmpty(t, fr.Plane(p), "plane %d", p)
				assert.Equal(t, "9", sample(f, fr.Plane(p)))
			}
		})
	}
}

func TestPutSampleShortBuffer(t *testing.T) {
	assert.NotPanics(t, func() {
		putSample(format.Gray8, nil, 1)
		putSample(format.Gray16, []byte{0}, 1)
		fillSamples(format.Gray16, []byte{}, 1)
	})
}

func TestPrintFormats(t *testing.T) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	printFormats(w)
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, len(format.Presets())+1)
	assert.Contains(t, buf.String(), "Integer")
	assert.Contains(t, lines[1], "Gray8")
}

func TestSourceFormats(t *testing.T) {
	o := &sourceOptions{format: "yuv420p8", inputs: 2}
	src, dst, err := o.formats()
	require.NoError(t, err)
	assert.Equal(t, format.YUV420P8, src)
	assert.Equal(t, src, dst)

	o.outFormat = "YUV420P16"
	_, dst, err = o.formats()
	require.NoError(t, err)
	assert.Equal(t, format.YUV420P16, dst)

	o.inputs = 0
	_, _, err = o.formats()
	assert.Error(t, err)
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"run", "source", "target", "repl"})

	root.SetArgs([]string{"target", "--formats"})
	var out bytes.Buffer
	root.SetOut(&out)
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "YUV444PS")
}

func TestRunCommand(t *testing.T) {
	if _, err := toolchain.Init(toolchain.Config{}); err != nil {
		t.Skipf("clang unavailable: %v", err)
	}
	dir := t.TempDir()
	a := filepath.Join(dir, "a.raw")
	b := filepath.Join(dir, "b.raw")
	out := filepath.Join(dir, "out.raw")
	require.NoError(t, os.WriteFile(a, bytes.Repeat([]byte{200}, 4*4*3), 0o644))
	require.NoError(t, os.WriteFile(b, bytes.Repeat([]byte{100}, 4*4*3), 0o644))

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"run",
		"--clip", a, "--clip", b, "--width", "4", "--height", "4",
		"--code", "int f(int x, int y) { return x + y; }",
		"--frames", "2", "-o", out,
	})
	require.NoError(t, root.Execute())

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{255}, 4*4*2), got)
}
