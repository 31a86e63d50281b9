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

package jit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ajroetker/go-exprjit/internal/logging"
	"github.com/ajroetker/go-exprjit/toolchain"
)

// DumpObjects returns a transform that writes every object file to dir as
// "<stem>.o", choosing "<stem>.<n>.o" when the name is taken. The object
// is passed through unchanged; write failures are logged.
func DumpObjects(dir, stem string) ObjectTransform {
	return func(u *Unit, m *toolchain.Module, obj []byte) ([]byte, error) {
		path := uniquePath(dir, stem, ".o")
		if err := os.WriteFile(path, obj, 0o644); err != nil {
			logging.Logger().Warn("jit: dump object", "unit", u.Name, "module", m.Name, "path", path, "err", err)
			return obj, nil
		}
		logging.Logger().Debug("jit: dumped object", "unit", u.Name, "path", path)
		return obj, nil
	}
}

func uniquePath(dir, stem, ext string) string {
	path := filepath.Join(dir, stem+ext)
	for n := 1; ; n++ {
		if _, err := os.Stat(path); err != nil {
			return path
		}
		path = filepath.Join(dir, fmt.Sprintf("%s.%d%s", stem, n, ext))
	}
}
