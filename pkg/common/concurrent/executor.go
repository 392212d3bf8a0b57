// Copyright 2022 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package concurrent

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
)

// ThreadPoolExecutor splits a range of items into contiguous chunks,
// one goroutine per chunk.
type ThreadPoolExecutor struct {
	nthreads int
}

func NewThreadPoolExecutor(nthreads int) ThreadPoolExecutor {
	if nthreads <= 0 {
		nthreads = runtime.NumCPU()
	}
	return ThreadPoolExecutor{nthreads: nthreads}
}

func (e ThreadPoolExecutor) Threads() int {
	return e.nthreads
}

// Execute calls fn on [start, end) chunks covering [0, nitems). The first
// error cancels ctx for the other chunks and is returned. A panic in fn is
// returned as an internal error.
func (e ThreadPoolExecutor) Execute(
	ctx context.Context,
	nitems int,
	fn func(ctx context.Context, threadID int, start, end int) error) error {

	if e.nthreads == 1 || nitems <= 1 {
		return guarded(ctx, fn, 0, 0, nitems)
	}
	g, ctx := errgroup.WithContext(ctx)

	q := nitems / e.nthreads
	r := nitems % e.nthreads

	start := 0
	for i := 0; i < e.nthreads; i++ {
		size := q
		if i < r {
			size++
		}
		if size == 0 {
			break
		}

		end := start + size
		threadID, curStart, curEnd := i, start, end
		g.Go(func() error {
			return guarded(ctx, fn, threadID, curStart, curEnd)
		})
		start = end
	}

	return g.Wait()
}

func guarded(
	ctx context.Context,
	fn func(ctx context.Context, threadID int, start, end int) error,
	threadID, start, end int) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = moerr.ConvertPanicError(ctx, e)
		}
	}()
	return fn(ctx, threadID, start, end)
}
