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

import "errors"

var (
	// ErrNoClips is returned when no source clip is given.
	ErrNoClips = errors.New("no input clips")

	// ErrVariableFormat is returned for a source clip without a constant
	// format.
	ErrVariableFormat = errors.New("input clips with non-constant format aren't allowed")

	// ErrCodeCount is returned when there is no code entry, or more code
	// entries than destination planes.
	ErrCodeCount = errors.New("invalid number of code entries")

	// ErrSymbolNotFound matches every failed symbol lookup, whether the
	// function is missing from a code file or from a linked unit.
	ErrSymbolNotFound = errors.New("failed to find user function symbol")

	// ErrPlaneSize is returned at frame time when a source plane does not
	// have the destination plane's number of samples, and by New when a
	// pass-through plane would change the sample size.
	ErrPlaneSize = errors.New("plane size mismatch")

	// ErrClosed is returned for frames requested after Close.
	ErrClosed = errors.New("filter closed")
)
