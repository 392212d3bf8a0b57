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

package mmcj

import (
	"math"

	"github.com/axiomhq/hyperloglog"
	"github.com/fagongzi/util/format"

	"github.com/matrixorigin/blockmatrix/pkg/container/types"
	"github.com/matrixorigin/blockmatrix/pkg/vm/cluster"
)

const (
	mb = 1024 * 1024

	// serialized block header and per cell size of a dense block
	blockOverhead = 77
	cellSize      = 8
	// per entry cost of the reducer cache and its fixed cost
	cacheEntryOverhead = 20
	cacheOverhead      = 32

	// below this density a block is stored sparse
	sparsityTurnPoint = 0.4
)

// estimateSizeOnDisk is the serialized size in bytes of a rows x cols
// matrix with nnz non-zeros. Unknown dimensions count as empty, sizes
// beyond int64 saturate.
func estimateSizeOnDisk(rows, cols, nnz int64) int64 {
	if rows <= 0 || cols <= 0 {
		return 0
	}
	cells := float64(rows) * float64(cols)
	cnt := float64(nnz)
	if nnz < 0 {
		cnt = cells
	}
	var size float64
	if cnt/cells < sparsityTurnPoint {
		size = 9 + 4*float64(rows) + 12*cnt
	} else {
		size = 9 + cellSize*cells
	}
	if size >= float64(math.MaxInt64) {
		return math.MaxInt64
	}
	return int64(size)
}

// determineNumReducers starts from the configured default and grows it with
// the input size measured in file system blocks, up to the usable reduce
// parallelism. It never exceeds the number of result groups and is at
// least one.
func determineNumReducers(rlens, clens, nnzs []int64, defaultNumRed int, numRedGroups int64, a cluster.Analyzer) int {
	ret := int64(defaultNumRed)
	maxNumRed := int64(a.ReduceSlots())
	blockSize := a.FSBlockSize() / mb
	if blockSize < 1 {
		blockSize = 1
	}
	maxSize := int64(-1)
	for i := range rlens {
		nnz := int64(types.Unknown)
		if i < len(nnzs) {
			nnz = nnzs[i]
		}
		maxSize = max64(maxSize, estimateSizeOnDisk(rlens[i], clens[i], nnz)/mb)
	}
	if a.IsElastic() {
		maxNumRed = max64(maxNumRed, int64(a.Cores()/2))
	}
	ret = max64(ret, min64(maxSize/blockSize, maxNumRed))
	ret = min64(ret, numRedGroups)
	return int(max64(ret, 1))
}

// cacheFirst reports whether the reducers cache the left input.
func cacheFirst(dim1, dim2 types.MatrixCharacteristics) bool {
	return dim1.Rows < dim2.Cols
}

// estimateCacheSize is the reducer memory in bytes a job needs: the cached
// side of one join key, the key value pair being processed, one result
// block and the misc memory of the runtime.
func estimateCacheSize(dim1, dim2 types.MatrixCharacteristics, miscMem int64) int64 {
	dim1, dim2 = dim1.Clamped(), dim2.Clamped()
	blockSize1 := blockOverhead + cellSize*int64(dim1.RowsPerBlock)*int64(dim1.ColsPerBlock)
	blockSize2 := blockOverhead + cellSize*int64(dim2.RowsPerBlock)*int64(dim2.ColsPerBlock)
	blockSizeResult := blockOverhead + cellSize*int64(dim1.RowsPerBlock)*int64(dim2.ColsPerBlock)

	var cacheSize int64
	if cacheFirst(dim1, dim2) {
		cacheSize = atLeastOne(dim1.NumRowBlocks())*(cacheEntryOverhead+blockSize1) + cacheOverhead
	} else {
		cacheSize = atLeastOne(dim2.NumColBlocks())*(cacheEntryOverhead+blockSize2) + cacheOverhead
	}
	return cacheSize + 2*max64(blockSize1, blockSize2) + blockSizeResult + miscMem
}

// reducerGroups is the number of distinct result blocks. Without known
// dimensions it is estimated from the distinct row block indexes of the
// left input and col block indexes of the right one.
func reducerGroups(left, right *cluster.Dataset, dim1, dim2 types.MatrixCharacteristics) int64 {
	if dim1.DimsKnown() && dim2.DimsKnown() {
		return dim1.NumRowBlocks() * dim2.NumColBlocks()
	}
	rows, cols := hyperloglog.New(), hyperloglog.New()
	for _, part := range left.Partitions {
		for _, p := range part {
			rows.Insert(format.Uint64ToBytes(uint64(p.Index.Row)))
		}
	}
	for _, part := range right.Partitions {
		for _, p := range part {
			cols.Insert(format.Uint64ToBytes(uint64(p.Index.Col)))
		}
	}
	return int64(rows.Estimate()) * int64(cols.Estimate())
}

func atLeastOne(n int64) int64 {
	if n < 1 {
		return 1
	}
	return n
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
