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

package format

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Presets mirroring the common constant formats of frame-graph hosts.
var (
	Gray8  = Format{Name: "Gray8", ColorFamily: Gray, SampleType: Integer, BitsPerSample: 8, BytesPerSample: 1, NumPlanes: 1}
	Gray16 = Format{Name: "Gray16", ColorFamily: Gray, SampleType: Integer, BitsPerSample: 16, BytesPerSample: 2, NumPlanes: 1}
	Gray32 = Format{Name: "Gray32", ColorFamily: Gray, SampleType: Integer, BitsPerSample: 32, BytesPerSample: 4, NumPlanes: 1}
	GrayH  = Format{Name: "GrayH", ColorFamily: Gray, SampleType: Float, BitsPerSample: 16, BytesPerSample: 2, NumPlanes: 1}
	GrayS  = Format{Name: "GrayS", ColorFamily: Gray, SampleType: Float, BitsPerSample: 32, BytesPerSample: 4, NumPlanes: 1}
	GrayD  = Format{Name: "GrayD", ColorFamily: Gray, SampleType: Float, BitsPerSample: 64, BytesPerSample: 8, NumPlanes: 1}

	YUV420P8  = Format{Name: "YUV420P8", ColorFamily: YUV, SampleType: Integer, BitsPerSample: 8, BytesPerSample: 1, NumPlanes: 3, SubSamplingW: 1, SubSamplingH: 1}
	YUV422P8  = Format{Name: "YUV422P8", ColorFamily: YUV, SampleType: Integer, BitsPerSample: 8, BytesPerSample: 1, NumPlanes: 3, SubSamplingW: 1}
	YUV444P8  = Format{Name: "YUV444P8", ColorFamily: YUV, SampleType: Integer, BitsPerSample: 8, BytesPerSample: 1, NumPlanes: 3}
	YUV420P10 = Format{Name: "YUV420P10", ColorFamily: YUV, SampleType: Integer, BitsPerSample: 10, BytesPerSample: 2, NumPlanes: 3, SubSamplingW: 1, SubSamplingH: 1}
	YUV420P16 = Format{Name: "YUV420P16", ColorFamily: YUV, SampleType: Integer, BitsPerSample: 16, BytesPerSample: 2, NumPlanes: 3, SubSamplingW: 1, SubSamplingH: 1}
	YUV444P16 = Format{Name: "YUV444P16", ColorFamily: YUV, SampleType: Integer, BitsPerSample: 16, BytesPerSample: 2, NumPlanes: 3}
	YUV444PS  = Format{Name: "YUV444PS", ColorFamily: YUV, SampleType: Float, BitsPerSample: 32, BytesPerSample: 4, NumPlanes: 3}

	RGB24 = Format{Name: "RGB24", ColorFamily: RGB, SampleType: Integer, BitsPerSample: 8, BytesPerSample: 1, NumPlanes: 3}
	RGB48 = Format{Name: "RGB48", ColorFamily: RGB, SampleType: Integer, BitsPerSample: 16, BytesPerSample: 2, NumPlanes: 3}
	RGBS  = Format{Name: "RGBS", ColorFamily: RGB, SampleType: Float, BitsPerSample: 32, BytesPerSample: 4, NumPlanes: 3}
	RGBD  = Format{Name: "RGBD", ColorFamily: RGB, SampleType: Float, BitsPerSample: 64, BytesPerSample: 8, NumPlanes: 3}
)

var presets = []Format{
	Gray8, Gray16, Gray32, GrayH, GrayS, GrayD,
	YUV420P8, YUV422P8, YUV444P8, YUV420P10, YUV420P16, YUV444P16, YUV444PS,
	RGB24, RGB48, RGBS, RGBD,
}

// Presets returns every named preset, in declaration order.
func Presets() []Format {
	return slices.Clone(presets)
}

// Lookup returns the preset with the given name, ignoring case.
func Lookup(name string) (Format, error) {
	f, ok := lo.Find(presets, func(f Format) bool { return strings.EqualFold(f.Name, name) })
	if !ok {
		return Format{}, fmt.Errorf("unknown format %q", name)
	}
	return f, nil
}
