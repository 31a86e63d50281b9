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
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ajroetker/go-exprjit/internal/logging"
)

// ErrCompilation matches every *CompileError.
var ErrCompilation = errors.New("compilation failed")

// Severity of a compiler diagnostic.
type Severity string

const (
	SeverityNote    Severity = "note"
	SeverityRemark  Severity = "remark"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityFatal   Severity = "fatal error"
)

// Diagnostic is one message printed by the compiler.
type Diagnostic struct {
	File     string
	Line     int
	Column   int
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	if d.File == "" {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line, d.Column, d.Severity, d.Message)
}

var diagRE = regexp.MustCompile(`^(.*?):(\d+):(\d+): (fatal error|error|warning|note|remark): (.*)$`)
var bareDiagRE = regexp.MustCompile(`^(?:clang(?:\+\+)?|error)(?:-\d+)?: (fatal error|error|warning|note|remark): (.*)$`)

// ParseDiagnostics extracts the diagnostics from compiler output. Source
// excerpts and caret lines are skipped.
func ParseDiagnostics(output string) []Diagnostic {
	var diags []Diagnostic
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := diagRE.FindStringSubmatch(line); m != nil {
			ln, _ := strconv.Atoi(m[2])
			col, _ := strconv.Atoi(m[3])
			diags = append(diags, Diagnostic{
				File:     m[1],
				Line:     ln,
				Column:   col,
				Severity: Severity(m[4]),
				Message:  m[5],
			})
		} else if m := bareDiagRE.FindStringSubmatch(line); m != nil {
			diags = append(diags, Diagnostic{Severity: Severity(m[1]), Message: m[2]})
		}
	}
	return diags
}

// CompileError reports a failed compiler run.
type CompileError struct {
	Action      string
	Diagnostics []Diagnostic
	Output      string
	Err         error
}

func newCompileError(action, output string, err error) *CompileError {
	ce := &CompileError{
		Action:      action,
		Diagnostics: ParseDiagnostics(output),
		Output:      output,
		Err:         err,
	}
	for _, d := range ce.Diagnostics {
		logging.Logger().Warn("toolchain: diagnostic", "action", action, "diag", d.String())
	}
	return ce
}

func (e *CompileError) Error() string {
	var errs []string
	for _, d := range e.Diagnostics {
		if d.Severity == SeverityError || d.Severity == SeverityFatal {
			errs = append(errs, d.String())
		}
	}
	switch len(errs) {
	case 0:
		if out := strings.TrimSpace(e.Output); out != "" {
			return fmt.Sprintf("%s: %v: %s", e.Action, e.Err, out)
		}
		return fmt.Sprintf("%s: %v", e.Action, e.Err)
	case 1:
		return fmt.Sprintf("%s: %s", e.Action, errs[0])
	}
	return fmt.Sprintf("%s: %s (and %d more errors)", e.Action, errs[0], len(errs)-1)
}

func (e *CompileError) Unwrap() []error {
	return []error{ErrCompilation, e.Err}
}
