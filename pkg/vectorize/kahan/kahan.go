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

package kahan

import (
	"context"
	"math"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/container/block"
)

// Object is a compensated running sum.
type Object struct {
	Sum        float64
	Correction float64
}

// Add folds v into the sum. Once the sum or the increment is NaN or
// infinite, plain IEEE addition takes over and the correction is dropped.
func (k *Object) Add(v float64) {
	if isSpecial(k.Sum) || isSpecial(v) {
		k.Sum += v
		k.Correction = 0
		return
	}
	corr := v + k.Correction
	sum := k.Sum + corr
	k.Correction = corr - (sum - k.Sum)
	k.Sum = sum
}

func (k *Object) Merge(other Object) {
	k.Add(other.Sum)
	k.Add(other.Correction)
}

// Float64Sum returns the compensated sum of xs.
func Float64Sum(xs []float64) float64 {
	var k Object
	for _, x := range xs {
		k.Add(x)
	}
	return k.Sum
}

func isSpecial(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// BlockAccumulator sums blocks of one extent cell by cell.
type BlockAccumulator struct {
	rows int
	cols int
	sum  []float64
	corr []float64
}

func NewBlockAccumulator(rows, cols int) *BlockAccumulator {
	return &BlockAccumulator{
		rows: rows,
		cols: cols,
		sum:  make([]float64, rows*cols),
		corr: make([]float64, rows*cols),
	}
}

// NewBlockAccumulatorFrom starts the accumulation with a copy of b.
func NewBlockAccumulatorFrom(b *block.Block) *BlockAccumulator {
	acc := NewBlockAccumulator(b.Rows(), b.Cols())
	b.ForEachNonZero(func(r, c int, v float64) {
		acc.sum[r*acc.cols+c] = v
	})
	return acc
}

func (acc *BlockAccumulator) Add(ctx context.Context, b *block.Block) error {
	if b.Rows() != acc.rows || b.Cols() != acc.cols {
		return moerr.NewSizeNotMatch(ctx, "accumulate %dx%d into %dx%d", b.Rows(), b.Cols(), acc.rows, acc.cols)
	}
	b.ForEachNonZero(func(r, c int, v float64) {
		acc.add(r*acc.cols+c, v)
	})
	return nil
}

// Merge folds the partial sums and corrections of other into acc.
func (acc *BlockAccumulator) Merge(ctx context.Context, other *BlockAccumulator) error {
	if other.rows != acc.rows || other.cols != acc.cols {
		return moerr.NewSizeNotMatch(ctx, "merge %dx%d into %dx%d", other.rows, other.cols, acc.rows, acc.cols)
	}
	for i := range other.sum {
		acc.add(i, other.sum[i])
		acc.add(i, other.corr[i])
	}
	return nil
}

// Result returns the sums as a block in the representation its sparsity asks for.
func (acc *BlockAccumulator) Result() *block.Block {
	data := make([]float64, len(acc.sum))
	copy(data, acc.sum)
	return block.NewDense(acc.rows, acc.cols, data).Examine()
}

func (acc *BlockAccumulator) add(i int, v float64) {
	k := Object{Sum: acc.sum[i], Correction: acc.corr[i]}
	k.Add(v)
	acc.sum[i], acc.corr[i] = k.Sum, k.Correction
}
