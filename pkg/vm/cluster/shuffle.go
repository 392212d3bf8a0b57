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

package cluster

import (
	"context"
	"runtime"
	"sync/atomic"

	queue "github.com/yireyun/go-queue"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/container/block"
)

type item struct {
	key  TaggedIndex
	blk  *block.Block
	data []byte
}

// shuffle moves items from producer tasks to one bucket per consumer.
// Buckets are bounded lock-free queues drained while the producers run.
type shuffle struct {
	buckets   []*queue.EsQueue
	serialize bool
	done      int32
}

func newShuffle(n int, capacity uint32, serialize bool) *shuffle {
	s := &shuffle{
		buckets:   make([]*queue.EsQueue, n),
		serialize: serialize,
	}
	for i := range s.buckets {
		s.buckets[i] = queue.NewQueue(capacity)
	}
	return s
}

func (s *shuffle) put(ctx context.Context, bucket int, key TaggedIndex, blk *block.Block) error {
	it := &item{key: key, blk: blk}
	if s.serialize {
		data, err := blk.MarshalBinary()
		if err != nil {
			return err
		}
		it.blk, it.data = nil, data
	}
	q := s.buckets[bucket]
	for {
		if ok, _ := q.Put(it); ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return moerr.ConvertGoError(ctx, err)
		}
		runtime.Gosched()
	}
}

// close tells the consumers no producer is left.
func (s *shuffle) close() {
	atomic.StoreInt32(&s.done, 1)
}

// drain collects every item of a bucket until the producers are done.
func (s *shuffle) drain(ctx context.Context, bucket int) ([]Record, error) {
	var records []Record
	q := s.buckets[bucket]
	for {
		v, ok, _ := q.Get()
		if !ok {
			if atomic.LoadInt32(&s.done) == 1 {
				if q.Quantity() == 0 {
					return records, nil
				}
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, moerr.ConvertGoError(ctx, err)
			}
			runtime.Gosched()
			continue
		}
		it := v.(*item)
		blk := it.blk
		if blk == nil {
			blk = new(block.Block)
			if err := blk.UnmarshalBinary(it.data); err != nil {
				return nil, err
			}
		}
		records = append(records, Record{Key: it.key, Block: blk})
	}
}
