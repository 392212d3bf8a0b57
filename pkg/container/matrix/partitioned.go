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

package matrix

import (
	"context"

	"github.com/google/btree"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/container/block"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
)

func NewPartitioned(mc types.MatrixCharacteristics) *Partitioned {
	return &Partitioned{mc: mc, tree: btree.New(treeDegree)}
}

// FromPairs builds a matrix from pairs in any order; later duplicates win.
func FromPairs(mc types.MatrixCharacteristics, pairs []Pair) *Partitioned {
	pm := NewPartitioned(mc)
	for _, p := range pairs {
		pm.Put(p.Index, p.Block)
	}
	return pm
}

// FromDense cuts a row-major rows x cols array into blocks.
func FromDense(rows, cols int, data []float64, rowsPerBlock, colsPerBlock int) *Partitioned {
	mc := types.NewCharacteristics(int64(rows), int64(cols), rowsPerBlock, colsPerBlock)
	pm := NewPartitioned(mc)
	var nnz int64
	for bi := int64(1); bi <= mc.NumRowBlocks(); bi++ {
		for bj := int64(1); bj <= mc.NumColBlocks(); bj++ {
			idx := types.BlockIndex{Row: bi, Col: bj}
			br, bc := mc.BlockExtent(idx)
			blk := block.NewDense(br, bc, nil)
			r0, c0 := int(bi-1)*rowsPerBlock, int(bj-1)*colsPerBlock
			for r := 0; r < br; r++ {
				copy(blk.Values()[r*bc:(r+1)*bc], data[(r0+r)*cols+c0:(r0+r)*cols+c0+bc])
			}
			blk = blk.Examine()
			nnz += blk.NonZeros()
			pm.Put(idx, blk)
		}
	}
	pm.mc.NonZeros = nnz
	return pm
}

func (pm *Partitioned) Characteristics() types.MatrixCharacteristics {
	return pm.mc
}

func (pm *Partitioned) SetCharacteristics(mc types.MatrixCharacteristics) {
	pm.mc = mc
}

func (pm *Partitioned) Put(idx types.BlockIndex, blk *block.Block) {
	pm.tree.ReplaceOrInsert(Pair{Index: idx, Block: blk})
}

func (pm *Partitioned) Get(idx types.BlockIndex) (*block.Block, bool) {
	item := pm.tree.Get(Pair{Index: idx})
	if item == nil {
		return nil, false
	}
	return item.(Pair).Block, true
}

// Ascend visits blocks in row-major block order until fn returns false.
func (pm *Partitioned) Ascend(fn func(p Pair) bool) {
	pm.tree.Ascend(func(item btree.Item) bool {
		return fn(item.(Pair))
	})
}

func (pm *Partitioned) Len() int {
	return pm.tree.Len()
}

func (pm *Partitioned) Pairs() []Pair {
	pairs := make([]Pair, 0, pm.Len())
	pm.Ascend(func(p Pair) bool {
		pairs = append(pairs, p)
		return true
	})
	return pairs
}

func (pm *Partitioned) NonZeros() int64 {
	var nnz int64
	pm.Ascend(func(p Pair) bool {
		nnz += p.Block.NonZeros()
		return true
	})
	return nnz
}

// Validate checks that block sizes are positive and every block extent
// agrees with its index and the global dimensions.
func (pm *Partitioned) Validate(ctx context.Context) error {
	mc := pm.mc
	if mc.RowsPerBlock <= 0 || mc.ColsPerBlock <= 0 {
		return moerr.NewInvalidInput(ctx, "block size %dx%d", mc.RowsPerBlock, mc.ColsPerBlock)
	}
	var err error
	pm.Ascend(func(p Pair) bool {
		err = checkBlock(ctx, mc, p)
		return err == nil
	})
	return err
}

func checkBlock(ctx context.Context, mc types.MatrixCharacteristics, p Pair) error {
	idx := p.Index
	if idx.Row < 1 || idx.Col < 1 {
		return moerr.NewInvalidInput(ctx, "block index %s", idx)
	}
	rows, cols := p.Block.Rows(), p.Block.Cols()
	if mc.Rows >= 0 && mc.Cols >= 0 {
		if idx.Row > mc.NumRowBlocks() || idx.Col > mc.NumColBlocks() {
			return moerr.NewInvalidInput(ctx, "block index %s outside %s", idx, mc)
		}
		wantRows, wantCols := mc.BlockExtent(idx)
		if rows != wantRows || cols != wantCols {
			return moerr.NewSizeNotMatch(ctx, "block %s is %dx%d, want %dx%d", idx, rows, cols, wantRows, wantCols)
		}
		return nil
	}
	if rows > mc.RowsPerBlock || cols > mc.ColsPerBlock {
		return moerr.NewSizeNotMatch(ctx, "block %s is %dx%d, block size %dx%d",
			idx, rows, cols, mc.RowsPerBlock, mc.ColsPerBlock)
	}
	return nil
}

// ToDense assembles a row-major array; the dimensions must be known.
func (pm *Partitioned) ToDense(ctx context.Context) ([]float64, error) {
	mc := pm.mc
	if mc.Rows < 0 || mc.Cols < 0 {
		return nil, moerr.NewInvalidState(ctx, "dense copy of a matrix with unknown dimensions")
	}
	data := make([]float64, mc.Rows*mc.Cols)
	pm.Ascend(func(p Pair) bool {
		r0 := (p.Index.Row - 1) * int64(mc.RowsPerBlock)
		c0 := (p.Index.Col - 1) * int64(mc.ColsPerBlock)
		p.Block.ForEachNonZero(func(r, c int, v float64) {
			data[(r0+int64(r))*mc.Cols+c0+int64(c)] = v
		})
		return true
	})
	return data, nil
}

// Split deals the blocks round robin into n partitions in index order.
func (pm *Partitioned) Split(n int) [][]Pair {
	if n < 1 {
		n = 1
	}
	parts := make([][]Pair, n)
	i := 0
	pm.Ascend(func(p Pair) bool {
		parts[i%n] = append(parts[i%n], p)
		i++
		return true
	})
	return parts
}
