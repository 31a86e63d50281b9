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
	"bytes"
	"debug/elf"
	"debug/macho"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
)

// ErrObjectFormat is returned for object files that are neither ELF nor
// Mach-O.
var ErrObjectFormat = errors.New("unsupported object file format")

// linkerProvided are references the static linker satisfies itself.
var linkerProvided = map[string]bool{
	"_GLOBAL_OFFSET_TABLE_": true,
	"__dso_handle":          true,
	"_DYNAMIC":              true,
}

// undefinedSymbols lists the strong external references of an object
// file, sorted and without duplicates.
func undefinedSymbols(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrObjectFormat, path, err)
	}

	var names []string
	switch {
	case bytes.Equal(magic, []byte(elf.ELFMAG)):
		names, err = elfUndefined(f)
	case isMachO(magic):
		names, err = machoUndefined(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrObjectFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read symbols of %s: %w", path, err)
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

func elfUndefined(r io.ReaderAt) ([]string, error) {
	ef, err := elf.NewFile(r)
	if err != nil {
		return nil, err
	}
	syms, err := ef.Symbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, s := range syms {
		if s.Section != elf.SHN_UNDEF || s.Name == "" || linkerProvided[s.Name] {
			continue
		}
		if elf.ST_BIND(s.Info) == elf.STB_WEAK {
			continue
		}
		names = append(names, s.Name)
	}
	return names, nil
}

const (
	machoTypeMask = 0x0e // N_TYPE
	machoExternal = 0x01 // N_EXT
	machoUndef    = 0x00 // N_UNDF
	machoWeakRef  = 0x40 // N_WEAK_REF
)

func isMachO(magic []byte) bool {
	switch m := uint32(magic[0]) | uint32(magic[1])<<8 | uint32(magic[2])<<16 | uint32(magic[3])<<24; m {
	case macho.Magic32, macho.Magic64:
		return true
	}
	return false
}

func machoUndefined(r io.ReaderAt) ([]string, error) {
	mf, err := macho.NewFile(r)
	if err != nil {
		return nil, err
	}
	if mf.Symtab == nil {
		return nil, nil
	}
	var names []string
	for _, s := range mf.Symtab.Syms {
		if s.Type&machoTypeMask != machoUndef || s.Type&machoExternal == 0 || s.Value != 0 {
			continue
		}
		if s.Desc&machoWeakRef != 0 || linkerProvided[s.Name] {
			continue
		}
		names = append(names, s.Name)
	}
	return names, nil
}
