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

// Package host is a minimal in-process frame graph: constant-format clips
// of reference-counted frames, the two-phase request/fetch protocol nodes
// use to obtain their inputs, and a parallel renderer.
package host

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ajroetker/go-exprjit/format"
	"github.com/ajroetker/go-exprjit/internal/logging"
)

var (
	// ErrFrameRange is returned for frame numbers outside a clip.
	ErrFrameRange = errors.New("frame number out of range")

	// ErrReleased is returned when a released frame is used.
	ErrReleased = errors.New("frame already released")
)

// VideoInfo describes a constant-format clip.
type VideoInfo struct {
	Format    format.Format
	Width     int
	Height    int
	NumFrames int
}

// FrameSize returns the number of bytes of one frame.
func (vi VideoInfo) FrameSize() int {
	size := 0
	for p := range vi.Format.NumPlanes {
		size += vi.Format.PlaneSize(p, vi.Width, vi.Height)
	}
	return size
}

// Frame holds the planes of one picture. Samples are tightly packed: a
// plane has exactly PixelCount(i) samples and no row padding.
type Frame struct {
	format format.Format
	width  int
	height int
	planes [][]byte
	refs   atomic.Int32
}

// NewFrame allocates a zeroed frame with one reference.
func NewFrame(f format.Format, width, height int) *Frame {
	fr := &Frame{format: f, width: width, height: height}
	fr.planes = make([][]byte, f.NumPlanes)
	for p := range fr.planes {
		fr.planes[p] = make([]byte, f.PlaneSize(p, width, height))
	}
	fr.refs.Store(1)
	return fr
}

func (f *Frame) Format() format.Format { return f.format }
func (f *Frame) Width() int            { return f.width }
func (f *Frame) Height() int           { return f.height }
func (f *Frame) NumPlanes() int        { return len(f.planes) }

// Plane returns the bytes of plane i.
func (f *Frame) Plane(i int) []byte {
	return f.planes[i]
}

// PixelCount returns the number of samples in plane i.
func (f *Frame) PixelCount(i int) int {
	return f.format.PlaneWidth(i, f.width) * f.format.PlaneHeight(i, f.height)
}

// Ref adds a reference and returns f.
func (f *Frame) Ref() *Frame {
	f.refs.Add(1)
	return f
}

// Release drops a reference. The last release frees the planes.
func (f *Frame) Release() {
	switch n := f.refs.Add(-1); {
	case n == 0:
		f.planes = nil
	case n < 0:
		logging.Logger().Error("host: frame released too often", "refs", n)
	}
}

// CopyPlane copies plane i of src into plane i of f.
func (f *Frame) CopyPlane(i int, src *Frame) error {
	if f.planes == nil || src.planes == nil {
		return ErrReleased
	}
	if len(src.planes[i]) != len(f.planes[i]) {
		return fmt.Errorf("copy plane %d: size %d, want %d", i, len(src.planes[i]), len(f.planes[i]))
	}
	copy(f.planes[i], src.planes[i])
	return nil
}
