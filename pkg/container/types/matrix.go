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

package types

import (
	"fmt"
)

// Unknown marks a dimension or a non-zero count that is not known before execution.
const Unknown int64 = -1

// BlockIndex is the 1-based position of a block in a blocked matrix.
type BlockIndex struct {
	Row int64
	Col int64
}

func (idx BlockIndex) Less(other BlockIndex) bool {
	if idx.Row != other.Row {
		return idx.Row < other.Row
	}
	return idx.Col < other.Col
}

func (idx BlockIndex) String() string {
	return fmt.Sprintf("(%d,%d)", idx.Row, idx.Col)
}

// MatrixCharacteristics describes the global shape of a blocked matrix.
type MatrixCharacteristics struct {
	Rows         int64
	Cols         int64
	RowsPerBlock int
	ColsPerBlock int
	NonZeros     int64
}

// NewCharacteristics returns characteristics with an unknown non-zero count.
func NewCharacteristics(rows, cols int64, rowsPerBlock, colsPerBlock int) MatrixCharacteristics {
	return MatrixCharacteristics{
		Rows:         rows,
		Cols:         cols,
		RowsPerBlock: rowsPerBlock,
		ColsPerBlock: colsPerBlock,
		NonZeros:     Unknown,
	}
}

// UnknownCharacteristics only carries the block sizes.
func UnknownCharacteristics(rowsPerBlock, colsPerBlock int) MatrixCharacteristics {
	return NewCharacteristics(Unknown, Unknown, rowsPerBlock, colsPerBlock)
}

func (mc *MatrixCharacteristics) Set(rows, cols int64, rowsPerBlock, colsPerBlock int) {
	mc.Rows = rows
	mc.Cols = cols
	mc.RowsPerBlock = rowsPerBlock
	mc.ColsPerBlock = colsPerBlock
}

func (mc *MatrixCharacteristics) SetFrom(other MatrixCharacteristics) {
	*mc = other
}

func (mc MatrixCharacteristics) DimsKnown() bool {
	return mc.Rows > 0 && mc.Cols > 0
}

func (mc MatrixCharacteristics) NonZerosKnown() bool {
	return mc.NonZeros >= 0
}

func (mc MatrixCharacteristics) NumRowBlocks() int64 {
	if mc.Rows < 0 || mc.RowsPerBlock <= 0 {
		return Unknown
	}
	return ceilDiv(mc.Rows, int64(mc.RowsPerBlock))
}

func (mc MatrixCharacteristics) NumColBlocks() int64 {
	if mc.Cols < 0 || mc.ColsPerBlock <= 0 {
		return Unknown
	}
	return ceilDiv(mc.Cols, int64(mc.ColsPerBlock))
}

// Clamped returns a copy whose block sizes do not exceed the matrix extent.
func (mc MatrixCharacteristics) Clamped() MatrixCharacteristics {
	ret := mc
	if mc.Rows > 0 && int64(mc.RowsPerBlock) > mc.Rows {
		ret.RowsPerBlock = int(mc.Rows)
	}
	if mc.Cols > 0 && int64(mc.ColsPerBlock) > mc.Cols {
		ret.ColsPerBlock = int(mc.Cols)
	}
	return ret
}

// BlockExtent returns the number of rows and cols of the block at idx,
// edge blocks being clipped to the matrix extent.
func (mc MatrixCharacteristics) BlockExtent(idx BlockIndex) (int, int) {
	rows := blockExtent(mc.Rows, mc.RowsPerBlock, idx.Row)
	cols := blockExtent(mc.Cols, mc.ColsPerBlock, idx.Col)
	return rows, cols
}

// Sparsity is nnz / (rows * cols), or 1 when either is unknown.
func (mc MatrixCharacteristics) Sparsity() float64 {
	if !mc.DimsKnown() || !mc.NonZerosKnown() {
		return 1.0
	}
	return float64(mc.NonZeros) / float64(mc.Rows) / float64(mc.Cols)
}

func (mc MatrixCharacteristics) String() string {
	return fmt.Sprintf("[%d x %d, nnz=%d, blocks (%d x %d)]",
		mc.Rows, mc.Cols, mc.NonZeros, mc.RowsPerBlock, mc.ColsPerBlock)
}

func blockExtent(length int64, blockLen int, index int64) int {
	if length < 0 {
		return blockLen
	}
	rest := length - (index-1)*int64(blockLen)
	if rest < int64(blockLen) {
		return int(rest)
	}
	return blockLen
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
