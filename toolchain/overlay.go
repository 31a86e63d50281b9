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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Overlay holds in-memory source files layered over the real filesystem.
// Files are written through to a private directory, so the compiler sees
// them next to the real system headers it still resolves normally.
type Overlay struct {
	dir string

	mu    sync.Mutex
	files map[string]string
}

// NewOverlay creates an overlay backed by a fresh scratch directory.
func (tc *Toolchain) NewOverlay() (*Overlay, error) {
	dir, err := tc.TempDir("vfs-*")
	if err != nil {
		return nil, fmt.Errorf("create overlay: %w", err)
	}
	return &Overlay{dir: dir, files: make(map[string]string)}, nil
}

// AddFile adds or replaces a file. Names are relative and may not escape
// the overlay.
func (o *Overlay) AddFile(name, content string) error {
	if !filepath.IsLocal(name) || strings.ContainsRune(name, filepath.Separator) {
		return fmt.Errorf("overlay: invalid file name %q", name)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := os.WriteFile(filepath.Join(o.dir, name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("overlay: %w", err)
	}
	o.files[name] = content
	return nil
}

// ReadFile returns the content of an overlay file.
func (o *Overlay) ReadFile(name string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	content, ok := o.files[name]
	return content, ok
}

// Path returns the path the compiler uses for name.
func (o *Overlay) Path(name string) string {
	return filepath.Join(o.dir, name)
}

// Dir returns the backing directory. Outputs of actions are placed here.
func (o *Overlay) Dir() string {
	return o.dir
}

// Close removes every file of the overlay.
func (o *Overlay) Close() error {
	return os.RemoveAll(o.dir)
}
