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

//go:build arm64

package toolchain

import "golang.org/x/sys/cpu"

// Older clang releases reject -march=native on arm64.
const nativeArchFlag = "-mcpu=native"

func cpuFeatures() []string {
	var features []string
	for _, f := range []struct {
		name string
		has  bool
	}{
		{"fp", cpu.ARM64.HasFP},
		{"asimd", cpu.ARM64.HasASIMD},
		{"fphp", cpu.ARM64.HasFPHP},
		{"asimdhp", cpu.ARM64.HasASIMDHP},
		{"asimdfhm", cpu.ARM64.HasASIMDFHM},
		{"sve", cpu.ARM64.HasSVE},
		{"sve2", cpu.ARM64.HasSVE2},
		{"crc32", cpu.ARM64.HasCRC32},
		{"atomics", cpu.ARM64.HasATOMICS},
	} {
		if f.has {
			features = append(features, f.name)
		}
	}
	return features
}
