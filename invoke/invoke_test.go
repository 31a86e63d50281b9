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

package invoke

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckBuffers(t *testing.T) {
	buf := make([]byte, 4)
	tests := []struct {
		name       string
		pixelCount int
		dst        []byte
		srcs       [][]byte
		wantErr    bool
	}{
		{"ok", 4, buf, [][]byte{buf, buf}, false},
		{"no sources", 4, buf, nil, false},
		{"zero pixels", 0, buf, nil, false},
		{"zero pixels with empty planes", 0, []byte{}, [][]byte{{}, nil}, false},
		{"negative", -1, buf, nil, true},
		{"empty destination", 4, nil, nil, true},
		{"empty source", 4, buf, [][]byte{buf, {}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkBuffers(tt.pixelCount, tt.dst, tt.srcs)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBuffer)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
