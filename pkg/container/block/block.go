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
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring"

	"github.com/matrixorigin/blockmatrix/pkg/vectorize/sum"
)

// New returns an all-zero block.
func New(rows, cols int, sparse bool) *Block {
	if sparse && int64(rows)*int64(cols) < maxSparseCells {
		return NewSparse(rows, cols)
	}
	return NewDense(rows, cols, nil)
}

// NewDense takes ownership of data, which must hold rows*cols cells or be nil.
func NewDense(rows, cols int, data []float64) *Block {
	if data == nil {
		data = make([]float64, rows*cols)
	}
	if len(data) != rows*cols {
		panic(fmt.Sprintf("dense block %dx%d with %d cells", rows, cols, len(data)))
	}
	return &Block{rows: rows, cols: cols, data: data}
}

func NewSparse(rows, cols int) *Block {
	return &Block{rows: rows, cols: cols, sparse: true, positions: roaring.New()}
}

// Scalar returns a 1x1 block.
func Scalar(v float64) *Block {
	return NewDense(1, 1, []float64{v})
}

func (b *Block) Rows() int {
	return b.rows
}

func (b *Block) Cols() int {
	return b.cols
}

func (b *Block) IsSparse() bool {
	return b.sparse
}

func (b *Block) Get(r, c int) float64 {
	if !b.sparse {
		return b.data[r*b.cols+c]
	}
	pos := b.offset(r, c)
	if !b.positions.Contains(pos) {
		return 0
	}
	return b.values[b.positions.Rank(pos)-1]
}

func (b *Block) Set(r, c int, v float64) {
	if !b.sparse {
		b.data[r*b.cols+c] = v
		return
	}
	pos := b.offset(r, c)
	if b.positions.Contains(pos) {
		i := int(b.positions.Rank(pos)) - 1
		if v != 0 {
			b.values[i] = v
			return
		}
		b.values = append(b.values[:i], b.values[i+1:]...)
		b.positions.Remove(pos)
		return
	}
	if v == 0 {
		return
	}
	i := int(b.positions.Rank(pos))
	b.values = append(b.values, 0)
	copy(b.values[i+1:], b.values[i:])
	b.values[i] = v
	b.positions.Add(pos)
}

// NonZeros counts the non-zero cells.
func (b *Block) NonZeros() int64 {
	if b.sparse {
		var n int64
		for _, v := range b.values {
			if v != 0 {
				n++
			}
		}
		return n
	}
	var n int64
	for _, v := range b.data {
		if v != 0 {
			n++
		}
	}
	return n
}

// ForEachNonZero visits the non-zero cells in row-major order.
func (b *Block) ForEachNonZero(fn func(r, c int, v float64)) {
	if b.sparse {
		it := b.positions.Iterator()
		for i := 0; it.HasNext(); i++ {
			pos := int(it.Next())
			if v := b.values[i]; v != 0 {
				fn(pos/b.cols, pos%b.cols, v)
			}
		}
		return
	}
	for i, v := range b.data {
		if v != 0 {
			fn(i/b.cols, i%b.cols, v)
		}
	}
}

// Values returns the row-major cells; dense blocks return their backing slice.
func (b *Block) Values() []float64 {
	if !b.sparse {
		return b.data
	}
	data := make([]float64, b.rows*b.cols)
	b.ForEachNonZero(func(r, c int, v float64) {
		data[r*b.cols+c] = v
	})
	return data
}

// Examine returns a block whose representation matches its sparsity.
func (b *Block) Examine() *Block {
	cells := int64(b.rows) * int64(b.cols)
	if cells == 0 {
		return b
	}
	nnz := b.NonZeros()
	wantSparse := float64(nnz)/float64(cells) < SparsityTurnPoint && cells < maxSparseCells
	switch {
	case wantSparse && !b.sparse:
		ret := NewSparse(b.rows, b.cols)
		ret.values = make([]float64, 0, nnz)
		for i, v := range b.data {
			if v != 0 {
				ret.positions.Add(uint32(i))
				ret.values = append(ret.values, v)
			}
		}
		return ret
	case !wantSparse && b.sparse:
		return NewDense(b.rows, b.cols, b.Values())
	}
	return b
}

func (b *Block) Copy() *Block {
	if b.sparse {
		return &Block{
			rows:      b.rows,
			cols:      b.cols,
			sparse:    true,
			positions: b.positions.Clone(),
			values:    append([]float64(nil), b.values...),
		}
	}
	return NewDense(b.rows, b.cols, append([]float64(nil), b.data...))
}

// Equal compares cell values with an absolute tolerance, whatever the representation.
func (b *Block) Equal(other *Block, eps float64) bool {
	if other == nil || b.rows != other.rows || b.cols != other.cols {
		return false
	}
	for r := 0; r < b.rows; r++ {
		for c := 0; c < b.cols; c++ {
			x, y := b.Get(r, c), other.Get(r, c)
			if math.IsNaN(x) && math.IsNaN(y) {
				continue
			}
			if math.Abs(x-y) > eps {
				return false
			}
		}
	}
	return true
}

func (b *Block) Sum() float64 {
	if b.sparse {
		return sum.Float64Sum(b.values)
	}
	return sum.Float64Sum(b.data)
}

// RowSums returns a rows x 1 block.
func (b *Block) RowSums() *Block {
	ret := NewDense(b.rows, 1, nil)
	if b.sparse {
		b.ForEachNonZero(func(r, _ int, v float64) {
			ret.data[r] += v
		})
		return ret
	}
	for r := 0; r < b.rows; r++ {
		ret.data[r] = sum.Float64Sum(b.data[r*b.cols : (r+1)*b.cols])
	}
	return ret
}

func (b *Block) String() string {
	kind := "dense"
	if b.sparse {
		kind = "sparse"
	}
	return fmt.Sprintf("%s block %dx%d nnz=%d", kind, b.rows, b.cols, b.NonZeros())
}

func (b *Block) offset(r, c int) uint32 {
	return uint32(r*b.cols + c)
}
