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
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ajroetker/go-exprjit/internal/logging"
)

// Render produces the given frames of node with at most workers frames in
// flight (GOMAXPROCS when workers <= 0). Frames complete out of order;
// sink is called concurrently and must not retain the frame, which is
// released when sink returns. The first error stops scheduling new frames.
func Render(ctx context.Context, node Node, frames []int, workers int, sink func(n int, f *Frame) error) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, n := range frames {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			f, err := Produce(ctx, node, n)
			if err != nil {
				return err
			}
			defer f.Release()
			return sink(n, f)
		})
	}
	err := g.Wait()
	logging.Logger().Debug("host: render finished", "frames", len(frames), "workers", workers, "err", err)
	return err
}

// AllFrames returns 0..info.NumFrames-1.
func AllFrames(info VideoInfo) []int {
	frames := make([]int, info.NumFrames)
	for i := range frames {
		frames[i] = i
	}
	return frames
}
