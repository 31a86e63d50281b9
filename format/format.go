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

// Package format describes the sample layout of a clip's planes.
//
// A Format is an immutable value supplied by the host once per clip. The
// compiler pipeline only ever reads it: the destination format selects the
// element type and clamp range of the generated loop, and source formats
// select the element types of the read-only buffers.
package format

import (
	"errors"
	"fmt"
)

// SampleType is the numeric kind of a sample.
type SampleType int

const (
	Integer SampleType = iota
	Float
)

func (s SampleType) String() string {
	switch s {
	case Integer:
		return "integer"
	case Float:
		return "float"
	}
	return fmt.Sprintf("SampleType(%d)", int(s))
}

// ColorFamily groups formats by their plane interpretation. It carries no
// semantics for the compiler; presets use it for naming only.
type ColorFamily int

const (
	Gray ColorFamily = iota
	YUV
	RGB
)

func (c ColorFamily) String() string {
	switch c {
	case Gray:
		return "Gray"
	case YUV:
		return "YUV"
	case RGB:
		return "RGB"
	}
	return fmt.Sprintf("ColorFamily(%d)", int(c))
}

var (
	// ErrInvalid is returned by Validate for internally inconsistent formats.
	ErrInvalid = errors.New("invalid format")

	// ErrPlaneCount reports inputs whose plane count differs from the destination.
	ErrPlaneCount = errors.New("all inputs must have the same number of planes")

	// ErrSubsampling reports inputs whose subsampling differs from the destination.
	ErrSubsampling = errors.New("all inputs must have the same subsampling")
)

// Format describes the layout of every plane of a frame.
type Format struct {
	Name           string
	ColorFamily    ColorFamily
	SampleType     SampleType
	BitsPerSample  int
	BytesPerSample int
	NumPlanes      int

	// SubSamplingW and SubSamplingH are log2 chroma subsampling factors.
	// They apply to planes 1 and 2 of YUV formats only.
	SubSamplingW int
	SubSamplingH int
}

// Validate checks the descriptor for internal consistency.
func (f Format) Validate() error {
	switch {
	case f.NumPlanes < 1 || f.NumPlanes > 3:
		return fmt.Errorf("%w: %d planes", ErrInvalid, f.NumPlanes)
	case f.BytesPerSample < 1:
		return fmt.Errorf("%w: %d bytes per sample", ErrInvalid, f.BytesPerSample)
	case f.BitsPerSample < 1 || f.BitsPerSample > f.BytesPerSample*8:
		return fmt.Errorf("%w: %d bits in %d bytes", ErrInvalid, f.BitsPerSample, f.BytesPerSample)
	case f.SampleType == Float && f.BitsPerSample != f.BytesPerSample*8:
		return fmt.Errorf("%w: float samples must fill their storage", ErrInvalid)
	case f.SubSamplingW < 0 || f.SubSamplingW > 4 || f.SubSamplingH < 0 || f.SubSamplingH > 4:
		return fmt.Errorf("%w: subsampling %dx%d", ErrInvalid, f.SubSamplingW, f.SubSamplingH)
	case f.ColorFamily != YUV && (f.SubSamplingW != 0 || f.SubSamplingH != 0):
		return fmt.Errorf("%w: only YUV formats may be subsampled", ErrInvalid)
	}
	return nil
}

// CompatibleWith reports whether an input of format f can feed a
// destination of format dst: plane counts and subsampling must match.
// Sample types and depths are free to differ.
func (f Format) CompatibleWith(dst Format) error {
	if f.NumPlanes != dst.NumPlanes {
		return fmt.Errorf("%w: %s has %d, %s has %d", ErrPlaneCount, f, f.NumPlanes, dst, dst.NumPlanes)
	}
	if f.SubSamplingW != dst.SubSamplingW || f.SubSamplingH != dst.SubSamplingH {
		return fmt.Errorf("%w: %s is %dx%d, %s is %dx%d", ErrSubsampling,
			f, f.SubSamplingW, f.SubSamplingH, dst, dst.SubSamplingW, dst.SubSamplingH)
	}
	return nil
}

// PlaneWidth returns the width in samples of the given plane of a frame
// whose luma width is width.
func (f Format) PlaneWidth(plane, width int) int {
	if plane == 0 {
		return width
	}
	return width >> f.SubSamplingW
}

// PlaneHeight is the vertical counterpart of PlaneWidth.
func (f Format) PlaneHeight(plane, height int) int {
	if plane == 0 {
		return height
	}
	return height >> f.SubSamplingH
}

// PlaneSize returns the number of bytes of a tightly packed plane.
func (f Format) PlaneSize(plane, width, height int) int {
	return f.PlaneWidth(plane, width) * f.PlaneHeight(plane, height) * f.BytesPerSample
}

// MaxValue returns the largest representable integer sample, 2^bits - 1.
// It is zero for float formats, which are never clamped.
func (f Format) MaxValue() uint64 {
	if f.SampleType != Integer {
		return 0
	}
	return 1<<uint(f.BitsPerSample) - 1
}

func (f Format) String() string {
	if f.Name != "" {
		return f.Name
	}
	kind := "P"
	if f.SampleType == Float {
		kind = "PF"
	}
	return fmt.Sprintf("%s%s%d(%dx%d)", f.ColorFamily, kind, f.BitsPerSample, f.SubSamplingW, f.SubSamplingH)
}
