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
	"github.com/RoaringBitmap/roaring"
)

const (
	// SparsityTurnPoint is the fraction of non-zeros below which a block is kept sparse.
	SparsityTurnPoint = 0.4

	// maxSparseCells bounds the linearised cell offsets a roaring bitmap can hold.
	maxSparseCells = 1 << 32
)

// Block is one rectangular tile of a blocked matrix. Dense blocks keep their
// cells row-major in data. Sparse blocks keep the linearised offsets of their
// non-zero cells in positions, with values aligned to the bitmap rank.
//
// A block is mutable until it is handed to a runtime; from then on it is
// shared read-only.
type Block struct {
	rows int
	cols int

	sparse    bool
	data      []float64
	positions *roaring.Bitmap
	values    []float64
}
