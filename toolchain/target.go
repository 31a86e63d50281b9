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
	"runtime"
	"strings"
)

// HostTarget describes the machine generated code runs on.
type HostTarget struct {
	GOOS   string
	GOARCH string

	// Triple is the compiler's default target triple.
	Triple string

	// GlobalPrefix is prepended by the platform linker to every C-level
	// symbol name: "_" on Mach-O targets, empty for ELF.
	GlobalPrefix string

	// NativeFlag tunes code generation for the build machine's CPU, or is
	// empty when the architecture has no such flag.
	NativeFlag string

	// Features lists the CPU features detected at startup.
	Features []string
}

func newHostTarget(triple string) HostTarget {
	return HostTarget{
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		Triple:       triple,
		GlobalPrefix: GlobalPrefix(triple),
		NativeFlag:   nativeArchFlag,
		Features:     cpuFeatures(),
	}
}

// GlobalPrefix returns the symbol prefix convention of a target triple.
func GlobalPrefix(triple string) string {
	switch {
	case strings.Contains(triple, "apple"), strings.Contains(triple, "darwin"):
		return "_"
	case strings.HasPrefix(triple, "i686-") && strings.Contains(triple, "windows"):
		return "_"
	}
	return ""
}

// sharedLinkFlags are passed when linking a unit's shared object. External
// references stay undefined and bind when the object is loaded.
func sharedLinkFlags(goos string) []string {
	flags := []string{"-shared", "-nodefaultlibs"}
	if goos == "darwin" {
		flags = append(flags, "-Wl,-undefined,dynamic_lookup")
	}
	return flags
}
