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

package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotRequested is returned when a node takes a frame it did not
// request in the initial phase.
var ErrNotRequested = errors.New("frame was not requested")

// Node is a filter driven by the two-phase frame protocol. RequestFrames
// declares the input frames needed for output frame n; GetFrame then
// produces frame n from the inputs fetched into fc.
type Node interface {
	Info() VideoInfo
	RequestFrames(n int, fc *FrameContext)
	GetFrame(ctx context.Context, n int, fc *FrameContext) (*Frame, error)
}

type frameRequest struct {
	clip  Clip
	n     int
	frame *Frame
	taken bool
}

// FrameContext carries the input frames of one output frame between the
// two phases.
type FrameContext struct {
	mu       sync.Mutex
	requests []*frameRequest
}

// NewFrameContext returns an empty context.
func NewFrameContext() *FrameContext {
	return &FrameContext{}
}

// Request asks for frame n of clip. Duplicate requests are merged.
func (fc *FrameContext) Request(clip Clip, n int) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.find(clip, n) != nil {
		return
	}
	fc.requests = append(fc.requests, &frameRequest{clip: clip, n: n})
}

func (fc *FrameContext) find(clip Clip, n int) *frameRequest {
	for _, r := range fc.requests {
		if r.clip == clip && r.n == n {
			return r
		}
	}
	return nil
}

// Fetch obtains every requested frame.
func (fc *FrameContext) Fetch(ctx context.Context) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	for _, r := range fc.requests {
		if r.frame != nil {
			continue
		}
		f, err := r.clip.GetFrame(ctx, r.n)
		if err != nil {
			return fmt.Errorf("fetch frame %d: %w", r.n, err)
		}
		r.frame = f
	}
	return nil
}

// Frame hands the fetched frame n of clip to the caller, who must
// release it.
func (fc *FrameContext) Frame(clip Clip, n int) (*Frame, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	r := fc.find(clip, n)
	if r == nil || r.frame == nil || r.taken {
		return nil, fmt.Errorf("%w: frame %d", ErrNotRequested, n)
	}
	r.taken = true
	return r.frame, nil
}

// Release drops every fetched frame that was not taken.
func (fc *FrameContext) Release() {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	for _, r := range fc.requests {
		if r.frame != nil && !r.taken {
			r.frame.Release()
		}
		r.frame = nil
	}
	fc.requests = nil
}

// nodeClip exposes a Node as a Clip.
type nodeClip struct {
	node Node
}

// AsClip adapts a node so it can feed another node.
func AsClip(node Node) Clip {
	return nodeClip{node: node}
}

func (c nodeClip) Info() VideoInfo { return c.node.Info() }

func (c nodeClip) GetFrame(ctx context.Context, n int) (*Frame, error) {
	return Produce(ctx, c.node, n)
}

// Produce runs both phases of node for frame n. The completion phase is
// not interrupted by cancellation of ctx once it has started.
func Produce(ctx context.Context, node Node, n int) (*Frame, error) {
	if err := checkRange(node.Info(), n); err != nil {
		return nil, err
	}
	fc := NewFrameContext()
	defer fc.Release()

	node.RequestFrames(n, fc)
	if err := fc.Fetch(ctx); err != nil {
		return nil, err
	}
	return node.GetFrame(context.WithoutCancel(ctx), n, fc)
}
