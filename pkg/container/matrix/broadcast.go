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
	"github.com/matrixorigin/blockmatrix/pkg/container/block"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
)

func NewBroadcast(mc types.MatrixCharacteristics, pairs []Pair) *Broadcast {
	blocks := make(map[types.BlockIndex]*block.Block, len(pairs))
	for _, p := range pairs {
		blocks[p.Index] = p.Block
	}
	return &Broadcast{mc: mc, blocks: blocks}
}

func (b *Broadcast) Characteristics() types.MatrixCharacteristics {
	return b.mc
}

func (b *Broadcast) NumRowBlocks() int64 {
	return b.mc.NumRowBlocks()
}

func (b *Broadcast) NumColBlocks() int64 {
	return b.mc.NumColBlocks()
}

// GetBlock returns the block at (r, c). Absent blocks are all zero.
func (b *Broadcast) GetBlock(r, c int64) *block.Block {
	idx := types.BlockIndex{Row: r, Col: c}
	if blk, ok := b.blocks[idx]; ok {
		return blk
	}
	rows, cols := b.mc.BlockExtent(idx)
	return block.New(rows, cols, true)
}

// GetClamped maps an index past the block grid back to the first block row
// or column, so row and column vectors line up with every primary block.
func (b *Broadcast) GetClamped(r, c int64) *block.Block {
	if b.NumRowBlocks() < r {
		r = 1
	}
	if b.NumColBlocks() < c {
		c = 1
	}
	return b.GetBlock(r, c)
}

// Len is the number of materialised blocks.
func (b *Broadcast) Len() int {
	return len(b.blocks)
}
