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
	"fmt"
	"os"
	"time"

	"github.com/docker/go-units"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/ajroetker/go-exprjit"
	"github.com/ajroetker/go-exprjit/format"
	"github.com/ajroetker/go-exprjit/host"
)

type runOptions struct {
	clips     []string
	width     int
	height    int
	format    string
	outFormat string
	code      []string
	codeFile  string
	flags     []string
	dump      exprjit.DumpConfig
	frames    int
	workers   int
	output    string
}

func newRunCmd(g *globalOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Filter raw planar clips and write the result",
		Long: `Filter raw planar clips and write the result.

Every --code value applies to one output plane, in order. An empty value
copies the plane of the first clip; planes past the last --code value reuse
the previous plane's code. With --code-file the values name functions in
that file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("flag") {
				o.flags = nil
			}
			return o.run(cmd, g)
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&o.clips, "clip", nil, "raw planar input `file` (repeatable, in argument order)")
	f.IntVar(&o.width, "width", 0, "frame width")
	f.IntVar(&o.height, "height", 0, "frame height")
	f.StringVar(&o.format, "format", "Gray8", "input format preset")
	f.StringVar(&o.outFormat, "out-format", "", "output format preset (default: input format)")
	f.StringArrayVar(&o.code, "code", nil, "per-plane C++ code, or function name with --code-file (repeatable)")
	f.StringVar(&o.codeFile, "code-file", "", "C++ file providing the functions named by --code")
	f.StringArrayVar(&o.flags, "flag", []string{}, "compiler flag replacing the defaults (repeatable)")
	f.BoolVar(&o.dump.Source, "dump-source", false, "write the generated C++ program")
	f.BoolVar(&o.dump.Intermediate, "dump-ir", false, "write the LLVM bitcode module")
	f.BoolVar(&o.dump.Binary, "dump-binary", false, "write the native object file")
	f.StringVar(&o.dump.Path, "dump-path", "", "directory for dumped files (default: current directory)")
	f.IntVar(&o.frames, "frames", 0, "number of frames to process (0: all)")
	f.IntVar(&o.workers, "workers", 0, "frames processed in parallel (0: GOMAXPROCS)")
	f.StringVarP(&o.output, "output", "o", "", "output `file`")
	lo.ForEach([]string{"clip", "width", "height", "code", "output"}, func(name string, _ int) {
		_ = cmd.MarkFlagRequired(name)
	})
	return cmd
}

func (o *runOptions) run(cmd *cobra.Command, g *globalOptions) error {
	tc, err := g.initToolchain()
	if err != nil {
		return err
	}
	in, err := format.Lookup(o.format)
	if err != nil {
		return err
	}

	var clips []host.Clip
	for _, path := range o.clips {
		c, err := host.OpenRawClip(path, in, o.width, o.height)
		if err != nil {
			return err
		}
		defer c.Close()
		clips = append(clips, c)
	}

	params := exprjit.Params{
		Clips:     clips,
		Code:      o.code,
		CodeFile:  o.codeFile,
		Flags:     o.flags,
		Dump:      o.dump,
		Toolchain: tc,
	}
	if o.outFormat != "" {
		out, err := format.Lookup(o.outFormat)
		if err != nil {
			return err
		}
		params.Format = &out
	}

	ctx := cmd.Context()
	start := time.Now()
	filter, err := exprjit.New(ctx, params)
	if err != nil {
		return err
	}
	defer filter.Close()
	compiled := time.Since(start)

	info := filter.Info()
	frames := host.AllFrames(info)
	if o.frames > 0 && o.frames < len(frames) {
		frames = frames[:o.frames]
	}

	out, err := os.Create(o.output)
	if err != nil {
		return err
	}
	frameSize := int64(info.FrameSize())
	start = time.Now()
	err = host.Render(ctx, filter, frames, o.workers, func(n int, fr *host.Frame) error {
		off := int64(n) * frameSize
		for p := range fr.NumPlanes() {
			if _, err := out.WriteAt(fr.Plane(p), off); err != nil {
				return err
			}
			off += int64(len(fr.Plane(p)))
		}
		return nil
	})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", o.output, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d frames (%s) of %s %dx%d written to %s in %s, compiled in %s\n",
		len(frames), units.HumanSize(float64(frameSize*int64(len(frames)))),
		info.Format, info.Width, info.Height, o.output,
		time.Since(start).Round(time.Millisecond), compiled.Round(time.Millisecond))
	return nil
}
