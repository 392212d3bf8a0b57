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
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/matrixorigin/blockmatrix/pkg/container/types"
)

// FirstIndexPartitioner sends every record with the same first index to
// the same reducer.
type FirstIndexPartitioner struct{}

func (FirstIndexPartitioner) Partition(key TaggedIndex, numReducers int) int {
	return int(uint64(key.First) % uint64(numReducers))
}

// HashPartitioner spreads records by the hash of the whole key.
type HashPartitioner struct{}

func (HashPartitioner) Partition(key TaggedIndex, numReducers int) int {
	var buf [17]byte
	binary.BigEndian.PutUint64(buf[:], uint64(key.First))
	buf[8] = key.Tag
	binary.BigEndian.PutUint64(buf[9:], uint64(key.Second))
	return int(xxhash.Sum64(buf[:]) % uint64(numReducers))
}

func indexBucket(idx types.BlockIndex, n int) int {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:], uint64(idx.Row))
	binary.BigEndian.PutUint64(buf[8:], uint64(idx.Col))
	return int(xxhash.Sum64(buf[:]) % uint64(n))
}
