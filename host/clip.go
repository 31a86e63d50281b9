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

package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ajroetker/go-exprjit/format"
)

// Clip is a source of frames with a constant format.
type Clip interface {
	Info() VideoInfo

	// GetFrame returns frame n with one reference owned by the caller.
	GetFrame(ctx context.Context, n int) (*Frame, error)
}

func checkRange(vi VideoInfo, n int) error {
	if n < 0 || n >= vi.NumFrames {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrFrameRange, n, vi.NumFrames)
	}
	return nil
}

// MemoryClip generates frames with a fill function.
type MemoryClip struct {
	info VideoInfo
	fill func(n int, f *Frame) error
}

// NewMemoryClip returns a clip whose frames are produced by fill. A nil
// fill yields zeroed frames.
func NewMemoryClip(info VideoInfo, fill func(n int, f *Frame) error) (*MemoryClip, error) {
	if err := info.Format.Validate(); err != nil {
		return nil, err
	}
	if info.Width <= 0 || info.Height <= 0 || info.NumFrames <= 0 {
		return nil, fmt.Errorf("memory clip: invalid dimensions %dx%d, %d frames", info.Width, info.Height, info.NumFrames)
	}
	return &MemoryClip{info: info, fill: fill}, nil
}

// ConstantClip returns a clip whose planes are filled with one byte value.
func ConstantClip(f format.Format, width, height, frames int, value byte) (*MemoryClip, error) {
	return NewMemoryClip(VideoInfo{Format: f, Width: width, Height: height, NumFrames: frames},
		func(_ int, fr *Frame) error {
			for p := range fr.NumPlanes() {
				plane := fr.Plane(p)
				for i := range plane {
					plane[i] = value
				}
			}
			return nil
		})
}

func (c *MemoryClip) Info() VideoInfo { return c.info }

func (c *MemoryClip) GetFrame(ctx context.Context, n int) (*Frame, error) {
	if err := checkRange(c.info, n); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f := NewFrame(c.info.Format, c.info.Width, c.info.Height)
	if c.fill != nil {
		if err := c.fill(n, f); err != nil {
			f.Release()
			return nil, fmt.Errorf("fill frame %d: %w", n, err)
		}
	}
	return f, nil
}

// RawClip reads frames from a file of concatenated planar frames.
type RawClip struct {
	info VideoInfo
	f    *os.File
}

// OpenRawClip opens a raw planar file. The frame count is derived from the
// file size; a trailing partial frame is ignored.
func OpenRawClip(path string, f format.Format, width, height int) (*RawClip, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	info := VideoInfo{Format: f, Width: width, Height: height}
	frameSize := info.FrameSize()
	if frameSize <= 0 {
		return nil, fmt.Errorf("raw clip: invalid dimensions %dx%d", width, height)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	info.NumFrames = int(fi.Size() / int64(frameSize))
	if info.NumFrames == 0 {
		file.Close()
		return nil, fmt.Errorf("raw clip %s: smaller than one %d byte frame", path, frameSize)
	}
	return &RawClip{info: info, f: file}, nil
}

func (c *RawClip) Info() VideoInfo { return c.info }

func (c *RawClip) GetFrame(ctx context.Context, n int) (*Frame, error) {
	if err := checkRange(c.info, n); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f := NewFrame(c.info.Format, c.info.Width, c.info.Height)
	off := int64(n) * int64(c.info.FrameSize())
	for p := range f.NumPlanes() {
		plane := f.Plane(p)
		if _, err := c.f.ReadAt(plane, off); err != nil && !errors.Is(err, io.EOF) {
			f.Release()
			return nil, fmt.Errorf("read frame %d plane %d: %w", n, p, err)
		}
		off += int64(len(plane))
	}
	return f, nil
}

// Close closes the underlying file.
func (c *RawClip) Close() error {
	return c.f.Close()
}
