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

package toolchain

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

var (
	// ErrJobList is returned when the driver does not lower a compilation
	// to exactly one compiler job.
	ErrJobList = errors.New("failed to create job list")

	// ErrInvocation is returned when a job cannot be turned into an
	// Invocation.
	ErrInvocation = errors.New("failed to create compiler invocation")
)

// Invocation is the structured form of one "-cc1" job.
type Invocation struct {
	// Tool is the compiler executable that runs the job.
	Tool string

	// MainFile is the input file.
	MainFile string

	Triple         string
	TargetCPU      string
	TargetFeatures []string
	OptLevel       string
	LangStd        string

	// Flags are the driver flags the invocation was derived from.
	Flags []string

	// Args holds the remaining job arguments without "-cc1", the action,
	// the output and the input.
	Args []string
}

// BuildInvocation derives the compiler invocation for a one-file,
// syntax-only compile of an overlay file.
func (tc *Toolchain) BuildInvocation(ctx context.Context, o *Overlay, name string, flags []string) (*Invocation, error) {
	if _, ok := o.ReadFile(name); !ok {
		return nil, fmt.Errorf("%w: %s is not in the overlay", ErrInvocation, name)
	}
	input := o.Path(name)
	args := append([]string{"-###", input, "-fsyntax-only", "-fPIC"}, flags...)

	// The driver prints its jobs to stderr.
	out, err := tc.run(ctx, "driver", args...)
	if err != nil {
		return nil, err
	}
	jobs, err := parseJobs(out)
	if err != nil {
		return nil, err
	}
	if len(jobs) != 1 {
		return nil, fmt.Errorf("%w: driver produced %d jobs", ErrJobList, len(jobs))
	}
	inv, err := newInvocation(jobs[0], input)
	if err != nil {
		return nil, err
	}
	inv.Flags = slices.Clone(flags)
	return inv, nil
}

// parseJobs returns the commands listed by "clang -###". Every job line is
// a space-prefixed, fully quoted argument vector; the version banner and
// the "(in-process)" marker are ignored.
func parseJobs(out string) ([][]string, error) {
	var jobs [][]string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, `"`) {
			continue
		}
		argv, err := splitQuoted(line)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrJobList, err)
		}
		jobs = append(jobs, argv)
	}
	return jobs, nil
}

// splitQuoted splits a job line. Inside quotes the driver escapes '"',
// '\\' and '$' with a backslash.
func splitQuoted(line string) ([]string, error) {
	var (
		args []string
		cur  strings.Builder
	)
	for i := 0; i < len(line); {
		switch c := line[i]; {
		case c == ' ' || c == '\t':
			i++
		case c == '"':
			cur.Reset()
			i++
			closed := false
			for i < len(line) {
				c := line[i]
				if c == '\\' && i+1 < len(line) {
					cur.WriteByte(line[i+1])
					i += 2
					continue
				}
				i++
				if c == '"' {
					closed = true
					break
				}
				cur.WriteByte(c)
			}
			if !closed {
				return nil, fmt.Errorf("unterminated quote in %q", line)
			}
			args = append(args, cur.String())
		default:
			j := i
			for j < len(line) && line[j] != ' ' && line[j] != '\t' {
				j++
			}
			args = append(args, line[i:j])
			i = j
		}
	}
	return args, nil
}

// actionFlags select what a compiler instance does. They are stripped from
// derived jobs and supplied by the FrontendAction instead.
var actionFlags = map[string]bool{
	"-fsyntax-only":   true,
	"-emit-obj":       true,
	"-emit-llvm":      true,
	"-emit-llvm-bc":   true,
	"-emit-llvm-only": true,
	"-S":              true,
	"-E":              true,
}

// newInvocation converts a job argument vector into an Invocation.
func newInvocation(job []string, input string) (*Invocation, error) {
	if len(job) < 2 {
		return nil, fmt.Errorf("%w: job %q is too short", ErrJobList, job)
	}
	if !strings.HasPrefix(filepath.Base(job[0]), "clang") || job[1] != "-cc1" {
		return nil, fmt.Errorf("%w: unexpected tool %q %q", ErrJobList, job[0], job[1])
	}

	inv := &Invocation{Tool: job[0]}
	args := job[2:]
	inputIdx := slices.Index(args, input)
	if inputIdx < 0 {
		return nil, fmt.Errorf("%w: input %s missing from job", ErrInvocation, input)
	}
	inv.MainFile = input

	for i := 0; i < len(args); i++ {
		a := args[i]
		if i == inputIdx {
			continue
		}
		next := func() (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("%w: %s without value", ErrInvocation, a)
			}
			i++
			return args[i], nil
		}
		switch {
		case actionFlags[a] || strings.HasPrefix(a, "-ast-dump"):
			continue
		case a == "-o":
			if _, err := next(); err != nil {
				return nil, err
			}
			continue
		case a == "-triple":
			v, err := next()
			if err != nil {
				return nil, err
			}
			inv.Triple = v
			inv.Args = append(inv.Args, a, v)
			continue
		case a == "-target-cpu":
			v, err := next()
			if err != nil {
				return nil, err
			}
			inv.TargetCPU = v
			inv.Args = append(inv.Args, a, v)
			continue
		case a == "-target-feature":
			v, err := next()
			if err != nil {
				return nil, err
			}
			inv.TargetFeatures = append(inv.TargetFeatures, v)
			inv.Args = append(inv.Args, a, v)
			continue
		case strings.HasPrefix(a, "-O"):
			inv.OptLevel = a
		case strings.HasPrefix(a, "-std="):
			inv.LangStd = strings.TrimPrefix(a, "-std=")
		}
		inv.Args = append(inv.Args, a)
	}
	if inv.Triple == "" {
		return nil, fmt.Errorf("%w: job has no target triple", ErrInvocation)
	}
	return inv, nil
}

// commandLine renders the "-cc1" command for an action.
func (inv *Invocation) commandLine(action []string) []string {
	args := make([]string, 0, len(inv.Args)+len(action)+2)
	args = append(args, "-cc1")
	args = append(args, inv.Args...)
	args = append(args, action...)
	return append(args, inv.MainFile)
}
