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
	"log/slog"

	"github.com/ajroetker/go-exprjit/internal/logging"
)

// SetLogger installs the logger used by every package of the module.
// Passing nil disables logging, which is the default.
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the active logger.
func Logger() *slog.Logger {
	return logging.Logger()
}
