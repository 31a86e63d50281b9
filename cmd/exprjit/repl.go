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
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/ajroetker/go-exprjit"
	"github.com/ajroetker/go-exprjit/format"
	"github.com/ajroetker/go-exprjit/host"
	"github.com/ajroetker/go-exprjit/toolchain"
)

const (
	replPrompt   = "\033[32mexprjit>\033[0m "
	replContinue = "\033[32m       .\033[0m "
	replResult   = "\033[31m=\033[0m "
)

type replOptions struct {
	format    string
	outFormat string
	values    sampleValues
	history   string
}

func newReplCmd(g *globalOptions) *cobra.Command {
	o := &replOptions{values: sampleValues{0}}
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Evaluate snippets interactively on single samples",
		Long: `Evaluate snippets interactively on single samples.

Enter a C++ function; input continues while braces are open. The function
is compiled and applied to one sample per input, set with --values or the
:values command. Other commands: :source prints the last generated
program, :quit exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tc, err := g.initToolchain()
			if err != nil {
				return err
			}
			return o.loop(cmd, tc)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.format, "format", "Gray8", "input format preset")
	f.StringVar(&o.outFormat, "out-format", "", "output format preset (default: input format)")
	f.Var(&o.values, "values", "comma separated input samples, one per input")
	f.StringVar(&o.history, "history", "", "history file")
	return cmd
}

func (o *replOptions) loop(cmd *cobra.Command, tc *toolchain.Toolchain) error {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            replPrompt,
		HistoryFile:       o.history,
		InterruptPrompt:   "^C",
		EOFPrompt:         ":quit",
		HistorySearchFold: true,
		Stdout:            cmd.OutOrStdout(),
		Stderr:            cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer l.Close()
	l.CaptureExitSignal()

	out := cmd.OutOrStdout()
	var pending, lastSource string
	for {
		line, err := l.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if pending == "" && line == "" {
				return nil
			}
			pending = ""
			l.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if pending == "" {
			switch fields := strings.Fields(line); {
			case len(fields) == 0:
				continue
			case fields[0] == ":quit":
				return nil
			case fields[0] == ":source":
				fmt.Fprint(out, lastSource)
				continue
			case fields[0] == ":values":
				if err := o.values.Set(strings.Join(fields[1:], ",")); err != nil {
					fmt.Fprintln(out, "error:", err)
				}
				continue
			}
		}

		pending += line + "\n"
		if strings.Count(pending, "{") > strings.Count(pending, "}") {
			l.SetPrompt(replContinue)
			continue
		}
		code := pending
		pending = ""
		l.SetPrompt(replPrompt)

		result, src, err := o.eval(cmd.Context(), tc, code)
		if src != "" {
			lastSource = src
		}
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			continue
		}
		fmt.Fprintln(out, replResult+result)
	}
}

// eval compiles code and applies it to one sample per input value.
func (o *replOptions) eval(ctx context.Context, tc *toolchain.Toolchain, code string) (result, src string, err error) {
	in, err := format.Lookup(o.format)
	if err != nil {
		return "", "", err
	}
	params := exprjit.Params{Code: []string{code}, Toolchain: tc}
	if o.outFormat != "" {
		out, err := format.Lookup(o.outFormat)
		if err != nil {
			return "", "", err
		}
		params.Format = &out
	}
	srcFormats := make([]format.Format, len(o.values))
	for i, v := range o.values {
		c, err := replClip(in, v)
		if err != nil {
			return "", "", err
		}
		params.Clips = append(params.Clips, c)
		srcFormats[i] = in
	}

	dst := in
	if params.Format != nil {
		dst = *params.Format
	}
	src, err = exprjit.GenerateSource(ctx, tc, dst, srcFormats, code, nil)
	if err != nil {
		return "", "", err
	}

	f, err := exprjit.New(ctx, params)
	if err != nil {
		return "", src, err
	}
	defer f.Close()
	fr, err := host.Produce(ctx, f, 0)
	if err != nil {
		return "", src, err
	}
	defer fr.Release()
	return sample(dst, fr.Plane(0)), src, nil
}

// replClip returns a one frame clip holding v in every sample. It is the
// smallest frame whose subsampled planes still have a sample.
func replClip(f format.Format, v float64) (*host.MemoryClip, error) {
	info := host.VideoInfo{Format: f, Width: 1 << f.SubSamplingW, Height: 1 << f.SubSamplingH, NumFrames: 1}
	return host.NewMemoryClip(info, func(_ int, fr *host.Frame) error {
		for p := range fr.NumPlanes() {
			fillSamples(f, fr.Plane(p), v)
		}
		return nil
	})
}
