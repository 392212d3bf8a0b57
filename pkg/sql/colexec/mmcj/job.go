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
	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/container/block"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
	"github.com/matrixorigin/blockmatrix/pkg/vm/cluster"
	"github.com/matrixorigin/blockmatrix/pkg/vm/engine"
)

// worker holds what the tasks of one multiply job share.
type worker struct {
	output       string
	cacheLeft    bool
	threads      int
	rowsPerBlock int
	colsPerBlock int
	writer       engine.DeferredWriter
}

// mapper keys a left block (i,k) and a right block (k,j) by the join
// index k, so both meet in one reducer.
func (w *worker) mapper(tc *cluster.TaskContext, input int, p cluster.Pair, emit cluster.Emit) error {
	switch input {
	case 0:
		return emit(cluster.TaggedIndex{First: p.Index.Col, Tag: w.tag(true), Second: p.Index.Row}, p.Block)
	case 1:
		return emit(cluster.TaggedIndex{First: p.Index.Row, Tag: w.tag(false), Second: p.Index.Col}, p.Block)
	}
	return moerr.NewInvalidInput(tc.Context(), "multiply job has no input %d", input)
}

func (w *worker) tag(left bool) uint8 {
	if left == w.cacheLeft {
		return cachedTag
	}
	return streamedTag
}

// reducer sees the records of every join key it owns, cached side first.
// It keeps the cached blocks of one key and multiplies every streamed
// block with them.
func (w *worker) reducer(tc *cluster.TaskContext, records []cluster.Record, collect cluster.Collect) error {
	ctx := tc.Context()
	rowName, colName := rowDimCounter(w.output, tc.TaskID), colDimCounter(w.output, tc.TaskID)
	for start := 0; start < len(records); {
		k := records[start].Key.First
		end := start
		for end < len(records) && records[end].Key.First == k {
			end++
		}
		group := records[start:end]
		split := 0
		for split < len(group) && group[split].Key.Tag == cachedTag {
			split++
		}
		cached := group[:split]
		for _, s := range group[split:] {
			for _, c := range cached {
				var (
					a, b *block.Block
					idx  types.BlockIndex
				)
				if w.cacheLeft {
					a, b = c.Block, s.Block
					idx = types.BlockIndex{Row: c.Key.Second, Col: s.Key.Second}
				} else {
					a, b = s.Block, c.Block
					idx = types.BlockIndex{Row: s.Key.Second, Col: c.Key.Second}
				}
				prod, err := block.Multiply(ctx, a, b, w.threads)
				if err != nil {
					return err
				}
				tc.Max(rowName, (idx.Row-1)*int64(w.rowsPerBlock)+int64(prod.Rows()))
				tc.Max(colName, (idx.Col-1)*int64(w.colsPerBlock)+int64(prod.Cols()))
				if err := collect(cluster.Pair{Index: idx, Block: prod.Examine()}); err != nil {
					return err
				}
			}
		}
		start = end
	}
	return nil
}

// finalize sees every summed result block once.
func (w *worker) finalize(tc *cluster.TaskContext, p cluster.Pair) error {
	tc.Incr(nnzCounter(w.output), p.Block.NonZeros())
	if w.writer != nil {
		return w.writer.Put(p.Index, p.Block)
	}
	return nil
}
