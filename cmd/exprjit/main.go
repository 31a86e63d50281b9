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

// Command exprjit compiles per-pixel C++ expressions at runtime and runs
// them over raw planar video.
//
// Usage:
//
//	exprjit run --clip a.yuv --clip b.yuv --width 1920 --height 1080 \
//		--format YUV420P8 --code 'int f(int x, int y) { return (x + y) / 2; }' -o out.yuv
//	exprjit source --format Gray8 --inputs 2 'int f(int x, int y) { return x + y; }'
//	exprjit target
//	exprjit repl --format Gray8 --values 200,100
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajroetker/go-exprjit"
	"github.com/ajroetker/go-exprjit/toolchain"
)

type globalOptions struct {
	clang   string
	verbose int
}

func main() {
	defer toolchain.Shutdown()
	if err := newRootCmd().Execute(); err != nil {
		toolchain.Shutdown()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:          "exprjit",
		Short:        "Run JIT-compiled C++ pixel expressions over planar video",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			switch {
			case opts.verbose >= 2:
				level = slog.LevelDebug
			case opts.verbose == 1:
				level = slog.LevelInfo
			}
			exprjit.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().StringVar(&opts.clang, "clang", "", "clang++ executable (default $"+toolchain.EnvCompiler+" or clang++ on PATH)")
	root.PersistentFlags().CountVarP(&opts.verbose, "verbose", "v", "log more (repeat for debug output)")

	root.AddCommand(
		newRunCmd(opts),
		newSourceCmd(opts),
		newTargetCmd(opts),
		newReplCmd(opts),
	)
	return root
}

// initToolchain initializes the process toolchain from the global flags.
func (o *globalOptions) initToolchain() (*toolchain.Toolchain, error) {
	tc, err := toolchain.Init(toolchain.Config{Path: o.clang})
	if err != nil {
		return nil, fmt.Errorf("initialize toolchain: %w", err)
	}
	return tc, nil
}
