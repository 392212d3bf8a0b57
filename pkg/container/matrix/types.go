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
	"github.com/google/btree"

	"github.com/matrixorigin/blockmatrix/pkg/container/block"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
)

const treeDegree = 32

// Pair is one keyed block of a blocked matrix.
type Pair struct {
	Index types.BlockIndex
	Block *block.Block
}

func (p Pair) Less(than btree.Item) bool {
	return p.Index.Less(than.(Pair).Index)
}

// Partitioned is a blocked matrix held in index order.
type Partitioned struct {
	mc   types.MatrixCharacteristics
	tree *btree.BTree
}

// Broadcast is a read-only replica of a blocked matrix with random access
// by block index. Absent blocks read as all-zero blocks.
type Broadcast struct {
	mc     types.MatrixCharacteristics
	blocks map[types.BlockIndex]*block.Block
}
