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

package exprjit

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/ajroetker/go-exprjit/format"
	"github.com/ajroetker/go-exprjit/host"
	"github.com/ajroetker/go-exprjit/internal/logging"
	"github.com/ajroetker/go-exprjit/invoke"
	"github.com/ajroetker/go-exprjit/jit"
	"github.com/ajroetker/go-exprjit/synth"
	"github.com/ajroetker/go-exprjit/toolchain"
)

// Params configures a filter instance.
type Params struct {
	// Clips are the sources, in the order their samples are passed to the
	// user function. There must be at least one.
	Clips []host.Clip

	// Code holds one entry per output plane. An empty entry passes plane i
	// of the first clip through. Planes past the end of Code reuse the
	// previous plane's function (or pass-through). With CodeFile set, the
	// entries name functions in that file instead of being snippets.
	Code []string

	// Format overrides the destination format, which defaults to the
	// first clip's.
	Format *format.Format

	// CodeFile is a C++ file providing the functions named by Code.
	CodeFile string

	// Flags replace the default compiler flags when non-nil.
	Flags []string

	Dump DumpConfig

	// Toolchain defaults to toolchain.Init with a zero Config.
	Toolchain *toolchain.Toolchain
}

// plane is the compiled state of one output plane. A nil fn means the
// plane is copied from the first clip.
type plane struct {
	unit *jit.Unit
	fn   *invoke.Func
}

// Filter is a compiled filter instance. It is safe for concurrent frame
// requests; nothing is mutated after New returns.
type Filter struct {
	clips  []host.Clip
	info   host.VideoInfo
	engine *jit.Engine
	planes []*plane

	// running is held shared by every GetFrame and exclusively by Close,
	// so compiled code is never unloaded under a native call.
	running sync.RWMutex
	closed  atomic.Bool
}

// New validates p and compiles the code of every plane. On failure every
// partially built resource is released and a single error is returned.
func New(ctx context.Context, p Params) (*Filter, error) {
	f, err := newFilter(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("exprjit: %w", err)
	}
	return f, nil
}

func newFilter(ctx context.Context, p Params) (*Filter, error) {
	info, srcFormats, err := validate(p)
	if err != nil {
		return nil, err
	}

	common := synth.NewBuilder(info.Format, srcFormats)
	if p.CodeFile != "" {
		if err := common.LoadUserCode(p.CodeFile); err != nil {
			return nil, err
		}
	}

	tc := p.Toolchain
	if tc == nil {
		if tc, err = toolchain.Init(toolchain.Config{}); err != nil {
			return nil, err
		}
	}
	engine, err := jit.NewEngine(tc)
	if err != nil {
		return nil, err
	}

	f := &Filter{
		clips:  append([]host.Clip(nil), p.Clips...),
		info:   info,
		engine: engine,
	}
	c := &compiler{
		tc:       tc,
		engine:   engine,
		flags:    toolchain.ResolveFlags(p.Flags),
		dump:     p.Dump.resolve(),
		fileMode: p.CodeFile != "",
	}
	for i := range info.Format.NumPlanes {
		pl, err := f.planeFor(ctx, c, common, p.Code, i)
		if err != nil {
			if cerr := engine.Close(); cerr != nil {
				logging.Logger().Warn("exprjit: close engine", "err", cerr)
			}
			return nil, fmt.Errorf("plane %d: %w", i, err)
		}
		f.planes = append(f.planes, pl)
	}
	return f, nil
}

func (f *Filter) planeFor(ctx context.Context, c *compiler, common *synth.Builder, code []string, i int) (*plane, error) {
	if i >= len(code) {
		return f.planes[i-1], nil
	}
	if code[i] == "" {
		return &plane{}, nil
	}
	b := common.Clone()
	if !c.fileMode {
		b.SetUserCode(code[i])
	}
	return c.compile(ctx, b, code[i], i)
}

// validate checks p without touching the toolchain and returns the
// destination clip info and the source formats.
func validate(p Params) (host.VideoInfo, []format.Format, error) {
	if len(p.Clips) == 0 {
		return host.VideoInfo{}, nil, ErrNoClips
	}
	srcFormats := make([]format.Format, len(p.Clips))
	for i, c := range p.Clips {
		fmtI := c.Info().Format
		if err := fmtI.Validate(); err != nil {
			return host.VideoInfo{}, nil, fmt.Errorf("clip %d: %w: %w", i, ErrVariableFormat, err)
		}
		srcFormats[i] = fmtI
	}

	info := p.Clips[0].Info()
	if p.Format != nil {
		if err := p.Format.Validate(); err != nil {
			return host.VideoInfo{}, nil, fmt.Errorf("destination format: %w", err)
		}
		info.Format = *p.Format
	}
	for i, sf := range srcFormats {
		if err := sf.CompatibleWith(info.Format); err != nil {
			return host.VideoInfo{}, nil, fmt.Errorf("clip %d: %w", i, err)
		}
	}

	planes := info.Format.NumPlanes
	if len(p.Code) == 0 || len(p.Code) > planes {
		return host.VideoInfo{}, nil, fmt.Errorf("%w: got %d, want 1 to %d", ErrCodeCount, len(p.Code), planes)
	}
	if slices.Contains(p.Code, "") && info.Format.BytesPerSample != srcFormats[0].BytesPerSample {
		return host.VideoInfo{}, nil, fmt.Errorf("%w: pass-through planes copy %d-byte samples into %d-byte samples",
			ErrPlaneSize, srcFormats[0].BytesPerSample, info.Format.BytesPerSample)
	}
	if lo.SomeBy(p.Code, func(s string) bool { return s != "" }) {
		for _, ff := range append([]format.Format{info.Format}, srcFormats...) {
			if _, err := synth.ElemType(ff); err != nil {
				return host.VideoInfo{}, nil, err
			}
		}
	}
	return info, srcFormats, nil
}

// Info describes the output clip.
func (f *Filter) Info() host.VideoInfo { return f.info }

func (f *Filter) sourceFrame(clip host.Clip, n int) int {
	return min(n, clip.Info().NumFrames-1)
}

// RequestFrames is the initial phase: it requests frame n of every
// source clip, or its last frame for shorter clips.
func (f *Filter) RequestFrames(n int, fc *host.FrameContext) {
	for _, c := range f.clips {
		fc.Request(c, f.sourceFrame(c, n))
	}
}

// GetFrame is the completion phase: it computes output frame n from the
// source frames fetched into fc.
func (f *Filter) GetFrame(_ context.Context, n int, fc *host.FrameContext) (*host.Frame, error) {
	f.running.RLock()
	defer f.running.RUnlock()
	if f.closed.Load() {
		return nil, ErrClosed
	}

	srcs := make([]*host.Frame, 0, len(f.clips))
	defer func() {
		for _, s := range srcs {
			s.Release()
		}
	}()
	for _, c := range f.clips {
		s, err := fc.Frame(c, f.sourceFrame(c, n))
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, s)
	}

	dst := host.NewFrame(f.info.Format, f.info.Width, f.info.Height)
	if err := f.render(dst, srcs); err != nil {
		dst.Release()
		return nil, fmt.Errorf("exprjit: frame %d: %w", n, err)
	}
	return dst, nil
}

func (f *Filter) render(dst *host.Frame, srcs []*host.Frame) error {
	bufs := make([][]byte, len(srcs))
	for i, pl := range f.planes {
		if pl.fn == nil {
			if err := dst.CopyPlane(i, srcs[0]); err != nil {
				return fmt.Errorf("plane %d: %w", i, err)
			}
			continue
		}
		count := dst.PixelCount(i)
		for j, s := range srcs {
			if s.PixelCount(i) != count {
				return fmt.Errorf("%w: plane %d of clip %d has %d samples, want %d",
					ErrPlaneSize, i, j, s.PixelCount(i), count)
			}
			bufs[j] = s.Plane(i)
		}
		if err := pl.fn.Call(count, dst.Plane(i), bufs...); err != nil {
			return fmt.Errorf("plane %d: %w", i, err)
		}
	}
	return nil
}

// Close waits for frames being computed, then unloads the compiled code.
// Later frame requests fail with ErrClosed.
func (f *Filter) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	f.running.Lock()
	defer f.running.Unlock()
	if err := f.engine.Close(); err != nil {
		return fmt.Errorf("exprjit: %w", err)
	}
	return nil
}
