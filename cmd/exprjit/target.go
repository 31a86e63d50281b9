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
	"runtime"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ajroetker/go-exprjit/format"
	"github.com/ajroetker/go-exprjit/toolchain"
)

func newTargetCmd(g *globalOptions) *cobra.Command {
	var formats bool
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Print the compiler, host target and supported formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()
			if formats {
				printFormats(w)
				return nil
			}
			tc, err := g.initToolchain()
			if err != nil {
				return err
			}
			printTarget(w, tc)
			return nil
		},
	}
	cmd.Flags().BoolVar(&formats, "formats", false, "list the format presets instead")
	return cmd
}

func printTarget(w *tabwriter.Writer, tc *toolchain.Toolchain) {
	t := tc.Target()
	fmt.Fprintf(w, "GOOS:\t%s\n", runtime.GOOS)
	fmt.Fprintf(w, "GOARCH:\t%s\n", runtime.GOARCH)
	fmt.Fprintf(w, "NumCPU:\t%d\n", runtime.NumCPU())
	fmt.Fprintf(w, "clang:\t%s\n", tc.Path())
	fmt.Fprintf(w, "version:\t%s\n", tc.Version())
	fmt.Fprintf(w, "triple:\t%s\n", t.Triple)
	fmt.Fprintf(w, "global prefix:\t%q\n", t.GlobalPrefix)
	fmt.Fprintf(w, "native flag:\t%s\n", orNone(t.NativeFlag))
	fmt.Fprintf(w, "default flags:\t%s\n", strings.Join(toolchain.DefaultFlags(), " "))
	fmt.Fprintf(w, "cpu features:\t%s\n", orNone(strings.Join(t.Features, " ")))
}

func printFormats(w *tabwriter.Writer) {
	title := cases.Title(language.English)
	fmt.Fprintln(w, "NAME\tFAMILY\tSAMPLES\tBITS\tPLANES\tSUBSAMPLING")
	for _, f := range format.Presets() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%dx%d\n",
			f.Name, f.ColorFamily, title.String(f.SampleType.String()),
			f.BitsPerSample, f.NumPlanes, f.SubSamplingW, f.SubSamplingH)
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
