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

package block

import (
	"context"

	"github.com/matrixorigin/blockmatrix/pkg/common/concurrent"
	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/vectorize/sum"
)

// Multiply returns the dense product a %*% b. Rows of a are split over
// threads when threads > 1.
func Multiply(ctx context.Context, a, b *Block, threads int) (*Block, error) {
	if a.cols != b.rows {
		return nil, moerr.NewSizeNotMatch(ctx, "multiply %dx%d by %dx%d", a.rows, a.cols, b.rows, b.cols)
	}
	ret := NewDense(a.rows, b.cols, nil)
	bv := b.Values()
	n := b.cols
	rowProduct := func(i int) {
		out := ret.data[i*n : (i+1)*n]
		for p, x := range a.data[i*a.cols : (i+1)*a.cols] {
			if x != 0 {
				sum.Float64Axpy(x, bv[p*n:(p+1)*n], out)
			}
		}
	}
	if a.sparse {
		a.ForEachNonZero(func(i, p int, x float64) {
			sum.Float64Axpy(x, bv[p*n:(p+1)*n], ret.data[i*n:(i+1)*n])
		})
		return ret, nil
	}
	if threads <= 1 || a.rows < 2 {
		for i := 0; i < a.rows; i++ {
			rowProduct(i)
		}
		return ret, nil
	}
	err := concurrent.NewThreadPoolExecutor(threads).Execute(ctx, a.rows,
		func(ctx context.Context, _ int, start, end int) error {
			for i := start; i < end; i++ {
				rowProduct(i)
			}
			return ctx.Err()
		})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// TransposeMultiply returns the dense product t(a) %*% b.
func TransposeMultiply(ctx context.Context, a, b *Block) (*Block, error) {
	if a.rows != b.rows {
		return nil, moerr.NewSizeNotMatch(ctx, "t(%dx%d) multiply by %dx%d", a.rows, a.cols, b.rows, b.cols)
	}
	ret := NewDense(a.cols, b.cols, nil)
	bv := b.Values()
	n := b.cols
	a.ForEachNonZero(func(r, c int, x float64) {
		sum.Float64Axpy(x, bv[r*n:(r+1)*n], ret.data[c*n:(c+1)*n])
	})
	return ret, nil
}

// MatVec returns a %*% v for a column vector v held in a dense slice.
func MatVec(ctx context.Context, a *Block, v []float64) ([]float64, error) {
	if a.cols != len(v) {
		return nil, moerr.NewSizeNotMatch(ctx, "multiply %dx%d by vector of %d", a.rows, a.cols, len(v))
	}
	ret := make([]float64, a.rows)
	if a.sparse {
		a.ForEachNonZero(func(r, c int, x float64) {
			ret[r] += x * v[c]
		})
		return ret, nil
	}
	for r := 0; r < a.rows; r++ {
		ret[r] = sum.Float64Dot(a.data[r*a.cols:(r+1)*a.cols], v)
	}
	return ret, nil
}
