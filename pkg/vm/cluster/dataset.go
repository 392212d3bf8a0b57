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
	"golang.org/x/exp/slices"

	"github.com/matrixorigin/blockmatrix/pkg/container/matrix"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
)

func NewDataset(parts ...Partition) *Dataset {
	return &Dataset{Partitions: parts}
}

// FromPartitioned spreads a blocked matrix over n partitions.
func FromPartitioned(pm *matrix.Partitioned, n int) *Dataset {
	split := pm.Split(n)
	ds := &Dataset{Partitions: make([]Partition, len(split))}
	for i, part := range split {
		ds.Partitions[i] = part
	}
	return ds
}

func (ds *Dataset) NumPartitions() int {
	return len(ds.Partitions)
}

// Len is the number of pairs in all partitions.
func (ds *Dataset) Len() int {
	n := 0
	for _, part := range ds.Partitions {
		n += len(part)
	}
	return n
}

// Pairs collects every pair in block index order.
func (ds *Dataset) Pairs() []Pair {
	pairs := make([]Pair, 0, ds.Len())
	for _, part := range ds.Partitions {
		pairs = append(pairs, part...)
	}
	slices.SortFunc(pairs, func(a, b Pair) bool {
		return a.Index.Less(b.Index)
	})
	return pairs
}

// ToPartitioned collects ds into a blocked matrix. A later pair replaces
// an earlier one with the same index.
func (ds *Dataset) ToPartitioned(mc types.MatrixCharacteristics) *matrix.Partitioned {
	return matrix.FromPairs(mc, ds.Pairs())
}
