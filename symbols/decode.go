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

package symbols

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ajroetker/go-exprjit/toolchain"
)

// ErrMalformed is returned for dumps that are not a clang JSON AST.
var ErrMalformed = errors.New("malformed AST dump")

// node is the subset of a JSON AST node the resolver reads.
type node struct {
	Kind        string          `json:"kind"`
	Name        string          `json:"name"`
	MangledName string          `json:"mangledName"`
	IsImplicit  bool            `json:"isImplicit"`
	Loc         *location       `json:"loc"`
	Inner       json.RawMessage `json:"inner"`
}

// location is a source location. The dump omits every field for invalid
// locations, carries includedFrom for locations inside included files and
// splits macro locations into spelling and expansion parts.
type location struct {
	Offset       *int64    `json:"offset"`
	IncludedFrom *struct{} `json:"includedFrom"`
	SpellingLoc  *location `json:"spellingLoc"`
	ExpansionLoc *location `json:"expansionLoc"`
}

func (l *location) inMainFile() bool {
	switch {
	case l == nil:
		return false
	case l.ExpansionLoc != nil:
		return l.ExpansionLoc.inMainFile()
	}
	return l.Offset != nil && l.IncludedFrom == nil
}

// decl converts n to a Decl, or returns nil for kinds the resolver does
// not model.
func (n *node) decl(parent string) (Decl, error) {
	switch n.Kind {
	case "FunctionDecl":
		return &FunctionDecl{
			Name:          n.Name,
			QualifiedName: qualify(parent, n.Name),
			MangledName:   n.MangledName,
			Implicit:      n.IsImplicit,
			InMainFile:    n.Loc.inMainFile(),
		}, nil
	case "NamespaceDecl":
		ns := &NamespaceDecl{Name: n.Name, QualifiedName: qualify(parent, n.Name)}
		if len(n.Inner) == 0 {
			return ns, nil
		}
		var inner []node
		if err := json.Unmarshal(n.Inner, &inner); err != nil {
			return nil, fmt.Errorf("%w: namespace %s: %v", ErrMalformed, ns.QualifiedName, err)
		}
		for i := range inner {
			d, err := inner[i].decl(ns.QualifiedName)
			if err != nil {
				return nil, err
			}
			if d != nil {
				ns.Decls = append(ns.Decls, d)
			}
		}
		return ns, nil
	}
	return nil, nil
}

// Decode streams a full translation unit dump, handing every top-level
// declaration to c. Decoding stops with toolchain.ErrStop when c asks to
// stop.
func Decode(r io.Reader, c Consumer) error {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if key, _ := tok.(string); key != "inner" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			continue
		}

		if err := expectDelim(dec, '['); err != nil {
			return err
		}
		for dec.More() {
			var n node
			if err := dec.Decode(&n); err != nil {
				return fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			if err := deliver(&n, "", c); err != nil {
				return err
			}
		}
		if err := expectDelim(dec, ']'); err != nil {
			return err
		}
	}
	return expectDelim(dec, '}')
}

// DecodeFiltered streams a dump produced with a declaration filter: a
// sequence of "Dumping <qualified name>:" headers, each followed by the
// JSON of one matching declaration.
func DecodeFiltered(r io.Reader, c Consumer) error {
	hr := &headerReader{r: bufio.NewReader(r)}
	dec := json.NewDecoder(hr)
	for i := 0; ; i++ {
		var n node
		err := dec.Decode(&n)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		var parent string
		if i < len(hr.names) {
			parent = strings.TrimSuffix(hr.names[i], n.Name)
			parent = strings.TrimSuffix(parent, "::")
		}
		if err := deliver(&n, parent, c); err != nil {
			return err
		}
	}
}

func deliver(n *node, parent string, c Consumer) error {
	d, err := n.decl(parent)
	if err != nil {
		return err
	}
	if d != nil && !c.HandleTopLevelDecl(d) {
		return toolchain.ErrStop
	}
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: got %v, want %v", ErrMalformed, tok, want)
	}
	return nil
}

// headerReader removes the "Dumping <name>:" lines from a filtered dump
// and records the names in order.
type headerReader struct {
	r     *bufio.Reader
	names []string
	buf   []byte
}

func (h *headerReader) Read(p []byte) (int, error) {
	for len(h.buf) == 0 {
		line, err := h.r.ReadBytes('\n')
		if name, ok := dumpHeader(line); ok {
			h.names = append(h.names, name)
			line = nil
		}
		h.buf = line
		if err != nil {
			if len(h.buf) == 0 {
				return 0, err
			}
			break
		}
	}
	n := copy(p, h.buf)
	h.buf = h.buf[n:]
	return n, nil
}

func dumpHeader(line []byte) (string, bool) {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, []byte("Dumping ")) || !bytes.HasSuffix(line, []byte(":")) {
		return "", false
	}
	return string(line[len("Dumping ") : len(line)-1]), true
}
