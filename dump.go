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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/docker/go-units"

	"github.com/ajroetker/go-exprjit/internal/logging"
)

// DumpConfig selects compilation artifacts to export for inspection.
// Files are named after the user function: <name>.cpp for the generated
// program, <name>.bc for the IR module and <name>.o for the object code.
// Existing files are kept; a taken name gets a numeric suffix.
type DumpConfig struct {
	Source       bool
	Intermediate bool
	Binary       bool

	// Path is the export directory. When empty and any switch is on, the
	// current working directory is used.
	Path string
}

// Enabled reports whether any artifact is exported.
func (d DumpConfig) Enabled() bool {
	return d.Source || d.Intermediate || d.Binary
}

func (d DumpConfig) resolve() DumpConfig {
	if !d.Enabled() || d.Path != "" {
		return d
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	logging.Logger().Warn("exprjit: using CWD for dumping", "path", cwd)
	d.Path = cwd
	return d
}

// write exports one artifact as <stem><ext>, or <stem>.<n><ext> when that
// name is taken. Failures are logged and never returned.
func (d DumpConfig) write(stem, ext string, data []byte) {
	path, err := createUnique(d.Path, stem, ext, data)
	if err != nil {
		logging.Logger().Warn("exprjit: dump failed", "path", path, "err", err)
		return
	}
	logging.Logger().Debug("exprjit: dumped", "path", path, "size", units.HumanSize(float64(len(data))))
}

func createUnique(dir, stem, ext string, data []byte) (string, error) {
	path := filepath.Join(dir, stem+ext)
	for n := 1; ; n++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			path = filepath.Join(dir, fmt.Sprintf("%s.%d%s", stem, n, ext))
			continue
		}
		if err != nil {
			return path, err
		}
		_, err = f.Write(data)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		return path, err
	}
}
