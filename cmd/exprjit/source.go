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
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ajroetker/go-exprjit"
	"github.com/ajroetker/go-exprjit/format"
)

type sourceOptions struct {
	format    string
	outFormat string
	inputs    int
	flags     []string
}

func newSourceCmd(g *globalOptions) *cobra.Command {
	o := &sourceOptions{}
	cmd := &cobra.Command{
		Use:   "source CODE | -",
		Short: "Print the program generated around a snippet",
		Long: `Print the complete C++ program generated around a snippet.

The snippet is parsed to find its function, but nothing is compiled to
native code. Pass "-" to read the snippet from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("flag") {
				o.flags = nil
			}
			code := args[0]
			if code == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				code = string(b)
			}
			src, dst, err := o.formats()
			if err != nil {
				return err
			}
			tc, err := g.initToolchain()
			if err != nil {
				return err
			}
			text, err := exprjit.GenerateSource(cmd.Context(), tc, dst, slices.Repeat([]format.Format{src}, o.inputs), code, o.flags)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.format, "format", "Gray8", "input format preset")
	f.StringVar(&o.outFormat, "out-format", "", "output format preset (default: input format)")
	f.IntVar(&o.inputs, "inputs", 1, "number of input clips")
	f.StringArrayVar(&o.flags, "flag", []string{}, "compiler flag replacing the defaults (repeatable)")
	return cmd
}

func (o *sourceOptions) formats() (src, dst format.Format, err error) {
	if o.inputs < 1 {
		return src, dst, errors.New("--inputs must be at least 1")
	}
	if src, err = format.Lookup(o.format); err != nil {
		return src, dst, err
	}
	dst = src
	if o.outFormat != "" {
		dst, err = format.Lookup(o.outFormat)
	}
	return src, dst, err
}
