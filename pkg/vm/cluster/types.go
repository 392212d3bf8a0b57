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

	"github.com/matrixorigin/blockmatrix/pkg/container/block"
	"github.com/matrixorigin/blockmatrix/pkg/container/matrix"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
)

// Pair is the unit every stage of the runtime moves around.
type Pair = matrix.Pair

// Partition is the slice of a dataset one task works on.
type Partition []Pair

// Dataset is a distributed collection of keyed blocks.
type Dataset struct {
	Partitions []Partition
}

// MapFunc transforms one partition. It must not modify the input blocks.
type MapFunc func(ctx context.Context, task int, part Partition) (Partition, error)

// CombineFunc merges every block that shares a key into one block.
type CombineFunc func(ctx context.Context, key types.BlockIndex, blocks []*block.Block) (*block.Block, error)

// TaggedIndex is the shuffle key of a two input job. Records sort by
// First, then Tag, then Second.
type TaggedIndex struct {
	First  int64
	Tag    uint8
	Second int64
}

func (k TaggedIndex) Less(other TaggedIndex) bool {
	if k.First != other.First {
		return k.First < other.First
	}
	if k.Tag != other.Tag {
		return k.Tag < other.Tag
	}
	return k.Second < other.Second
}

// Record is one shuffled value of a job.
type Record struct {
	Key   TaggedIndex
	Block *block.Block
}

// Partitioner picks the reducer of a job key.
type Partitioner interface {
	Partition(key TaggedIndex, numReducers int) int
}

// Emit hands a record to the shuffle.
type Emit func(key TaggedIndex, blk *block.Block) error

// Collect hands a result pair to the output stage.
type Collect func(p Pair) error

// JobMapper is called once per input pair. input is the position of the
// dataset in JobSpec.Inputs.
type JobMapper func(tc *TaskContext, input int, p Pair, emit Emit) error

// JobReducer is called once per reducer with all of its records sorted by key.
type JobReducer func(tc *TaskContext, records []Record, collect Collect) error

// JobFinalizer sees every output pair once after aggregation.
type JobFinalizer func(tc *TaskContext, p Pair) error

// JobSpec describes a map, shuffle, reduce and aggregate job.
type JobSpec struct {
	ID          string
	Name        string
	Inputs      []*Dataset
	NumReducers int
	// MemoryHint is the memory in bytes a reducer is expected to need.
	MemoryHint  int64
	Partitioner Partitioner
	Replication int
	// BlockSizes are the rows and cols per block of every input.
	BlockSizes [][2]int
	Mapper     JobMapper
	Reducer    JobReducer
	// Combine merges reducer outputs sharing a block index. When nil every
	// output index must be produced exactly once.
	Combine  CombineFunc
	Finalize JobFinalizer
}

// JobResult is what a successful job leaves behind.
type JobResult struct {
	Output   *Dataset
	Counters Counters
}

// Runtime runs the distributed stages of a program. Every method blocks
// until all tasks it started are done, and fails as a whole when any of
// them fails.
type Runtime interface {
	MapPartitions(ctx context.Context, ds *Dataset, fn MapFunc) (*Dataset, error)
	// ReduceByKey groups pairs by block index into numPartitions partitions.
	// numPartitions <= 0 keeps the partition count of ds.
	ReduceByKey(ctx context.Context, ds *Dataset, numPartitions int, fn CombineFunc) (*Dataset, error)
	// SumByKeyStable is ReduceByKey with compensated summation.
	SumByKeyStable(ctx context.Context, ds *Dataset, numPartitions int) (*Dataset, error)
	// SumStable adds up every block of ds with compensated summation. It
	// returns nil for a dataset without blocks.
	SumStable(ctx context.Context, ds *Dataset) (*block.Block, error)
	// Sum adds up every block of ds with plain summation.
	Sum(ctx context.Context, ds *Dataset) (*block.Block, error)
	Broadcast(ctx context.Context, pm *matrix.Partitioned) (*matrix.Broadcast, error)
	RunJob(ctx context.Context, spec *JobSpec) (*JobResult, error)
	// Parallelism is the default partition count.
	Parallelism() int
	Close() error
}
