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
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/ajroetker/go-exprjit/format"
)

// sampleValues is a comma separated list of input samples.
type sampleValues []float64

var _ pflag.Value = (*sampleValues)(nil)

func (v *sampleValues) String() string {
	parts := make([]string, len(*v))
	for i, x := range *v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func (v *sampleValues) Set(s string) error {
	var out sampleValues
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		x, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return fmt.Errorf("invalid sample %q", part)
		}
		out = append(out, x)
	}
	if len(out) == 0 {
		return fmt.Errorf("no samples in %q", s)
	}
	*v = out
	return nil
}

func (v *sampleValues) Type() string { return "samples" }

// fillSamples stores x in every whole sample of b.
func fillSamples(f format.Format, b []byte, x float64) {
	for off := 0; off+f.BytesPerSample <= len(b); off += f.BytesPerSample {
		putSample(f, b[off:], x)
	}
}

// putSample stores x at the start of b in the sample encoding of f.
// Integer samples are saturated to the format's range. A b shorter than
// one sample is left untouched.
func putSample(f format.Format, b []byte, x float64) {
	if len(b) < f.BytesPerSample {
		return
	}
	u := uint64(math.Max(0, math.Min(math.Round(x), float64(f.MaxValue()))))
	switch {
	case f.SampleType == format.Float && f.BytesPerSample == 4:
		binary.NativeEndian.PutUint32(b, math.Float32bits(float32(x)))
	case f.SampleType == format.Float && f.BytesPerSample == 8:
		binary.NativeEndian.PutUint64(b, math.Float64bits(x))
	case f.BytesPerSample == 1:
		b[0] = byte(u)
	case f.BytesPerSample == 2:
		binary.NativeEndian.PutUint16(b, uint16(u))
	case f.BytesPerSample == 4:
		binary.NativeEndian.PutUint32(b, uint32(u))
	}
}

// sample decodes the first sample of b.
func sample(f format.Format, b []byte) string {
	switch {
	case f.SampleType == format.Float && f.BytesPerSample == 4:
		return strconv.FormatFloat(float64(math.Float32frombits(binary.NativeEndian.Uint32(b))), 'g', -1, 32)
	case f.SampleType == format.Float && f.BytesPerSample == 8:
		return strconv.FormatFloat(math.Float64frombits(binary.NativeEndian.Uint64(b)), 'g', -1, 64)
	case f.BytesPerSample == 1:
		return strconv.FormatUint(uint64(b[0]), 10)
	case f.BytesPerSample == 2:
		return strconv.FormatUint(uint64(binary.NativeEndian.Uint16(b)), 10)
	case f.BytesPerSample == 4:
		return strconv.FormatUint(uint64(binary.NativeEndian.Uint32(b)), 10)
	}
	return "?"
}
