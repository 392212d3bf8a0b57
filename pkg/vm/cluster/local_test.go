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
	"errors"
	"fmt"
	"testing"

	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/config"
	"github.com/matrixorigin/blockmatrix/pkg/container/block"
	"github.com/matrixorigin/blockmatrix/pkg/container/matrix"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
)

func newTestLocal(t *testing.T, slots int, serialize bool, capacity uint32) *Local {
	l, err := NewLocal(context.Background(), config.ClusterConfig{
		Slots:            slots,
		SerializeShuffle: serialize,
		QueueCapacity:    capacity,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func constDataset(parts, perPart int, v float64) *Dataset {
	ds := &Dataset{}
	for i := 0; i < parts; i++ {
		var part Partition
		for j := 0; j < perPart; j++ {
			idx := types.BlockIndex{Row: int64(j%3 + 1), Col: 1}
			part = append(part, Pair{Index: idx, Block: block.NewDense(2, 2, []float64{v, v, v, v})})
		}
		ds.Partitions = append(ds.Partitions, part)
	}
	return ds
}

func TestNewLocalRejectsBadSlots(t *testing.T) {
	_, err := NewLocal(context.Background(), config.ClusterConfig{})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))
}

func TestMapPartitions(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t, 4, false, 0)
	ds := constDataset(8, 5, 1)
	out, err := l.MapPartitions(ctx, ds, func(ctx context.Context, task int, part Partition) (Partition, error) {
		res := make(Partition, len(part))
		for i, p := range part {
			res[i] = Pair{Index: p.Index, Block: block.Scalar(float64(task))}
		}
		return res, nil
	})
	require.NoError(t, err)
	require.Equal(t, 8, out.NumPartitions())
	for task, part := range out.Partitions {
		require.Len(t, part, 5)
		require.Equal(t, float64(task), part[0].Block.Get(0, 0))
	}
	// inputs are left alone
	require.Equal(t, 1.0, ds.Partitions[0][0].Block.Get(0, 0))
}

func TestFirstFailureAbortsEverything(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t, 2, false, 0)
	boom := moerr.NewRuntimeKernel(ctx, "k", "boom")
	out, err := l.MapPartitions(ctx, constDataset(16, 1, 1), func(ctx context.Context, task int, part Partition) (Partition, error) {
		if task == 3 {
			return nil, boom
		}
		return part, nil
	})
	require.Nil(t, out)
	require.Equal(t, boom, err)

	_, err = l.MapPartitions(ctx, constDataset(2, 1, 1), func(ctx context.Context, task int, part Partition) (Partition, error) {
		panic("bad kernel")
	})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = l.MapPartitions(cctx, constDataset(2, 1, 1), func(ctx context.Context, task int, part Partition) (Partition, error) {
		return part, nil
	})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInterrupted))
}

func TestReduceByKeyGroupsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	for _, serialize := range []bool{false, true} {
		t.Run(fmt.Sprintf("serialize=%v", serialize), func(t *testing.T) {
			// a tiny queue forces producers to wait for the consumers
			l := newTestLocal(t, 4, serialize, 2)
			ds := constDataset(7, 30, 0.5)
			out, err := l.SumByKeyStable(ctx, ds, 2)
			require.NoError(t, err)
			require.Equal(t, 2, out.NumPartitions())
			pairs := out.Pairs()
			require.Len(t, pairs, 3)
			for _, p := range pairs {
				require.Equal(t, 7*10*0.5, p.Block.Get(1, 1), p.Index.String())
			}
		})
	}
}

func TestReduceByKeyKeepsPartitionCount(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t, 4, false, 0)
	calls := 0
	out, err := l.ReduceByKey(ctx, constDataset(3, 1, 1), 0, func(ctx context.Context, key types.BlockIndex, blocks []*block.Block) (*block.Block, error) {
		calls++
		return blocks[0], nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, out.NumPartitions())
	require.Equal(t, 1, calls)
	require.Equal(t, 1, out.Len())
}

func TestSums(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t, 4, false, 0)
	ds := constDataset(5, 4, 0.1)

	blk, err := l.SumStable(ctx, ds)
	require.NoError(t, err)
	require.InDelta(t, 2.0, blk.Get(0, 1), 1e-12)

	blk, err = l.Sum(ctx, ds)
	require.NoError(t, err)
	require.InDelta(t, 2.0, blk.Get(1, 0), 1e-9)

	blk, err = l.SumStable(ctx, NewDataset(nil, nil))
	require.NoError(t, err)
	require.Nil(t, blk)

	bad := NewDataset(Partition{
		{Index: types.BlockIndex{Row: 1, Col: 1}, Block: block.Scalar(1)},
		{Index: types.BlockIndex{Row: 1, Col: 2}, Block: block.NewDense(1, 2, []float64{1, 2})},
	})
	_, err = l.SumStable(ctx, bad)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrSizeNotMatch))
	_, err = l.Sum(ctx, bad)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrSizeNotMatch))
}

func TestBroadcast(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t, 2, true, 0)
	pm := matrix.FromDense(3, 1, []float64{1, 2, 3}, 2, 1)
	bc, err := l.Broadcast(ctx, pm)
	require.NoError(t, err)
	require.Equal(t, int64(2), bc.NumRowBlocks())
	require.Equal(t, 3.0, bc.GetBlock(2, 1).Get(0, 0))
	require.Equal(t, 1.0, bc.GetClamped(5, 1).Get(0, 0))
}

func TestClosedRuntime(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t, 2, false, 0)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	_, err := l.MapPartitions(ctx, constDataset(1, 1, 1), func(ctx context.Context, task int, part Partition) (Partition, error) {
		return part, nil
	})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrRuntimeClose))
}

// countJob counts blocks per row index: the reducer of row r emits one
// 1x1 block per record it saw, which the aggregation adds up.
func countJob(id string, inputs ...*Dataset) *JobSpec {
	return &JobSpec{
		ID:          id,
		Name:        "count",
		Inputs:      inputs,
		NumReducers: 3,
		Partitioner: FirstIndexPartitioner{},
		Mapper: func(tc *TaskContext, input int, p Pair, emit Emit) error {
			tc.Incr("mapped", 1)
			return emit(TaggedIndex{First: p.Index.Row, Tag: uint8(input), Second: p.Index.Col}, p.Block)
		},
		Reducer: func(tc *TaskContext, records []Record, collect Collect) error {
			for i, r := range records {
				if i > 0 && r.Key.Less(records[i-1].Key) {
					return errors.New("records out of order")
				}
				if err := collect(Pair{Index: types.BlockIndex{Row: r.Key.First, Col: 1}, Block: block.Scalar(1)}); err != nil {
					return err
				}
			}
			tc.Max(fmt.Sprintf("max_records/%d", tc.TaskID), int64(len(records)))
			return nil
		},
		Combine: StableCombine,
		Finalize: func(tc *TaskContext, p Pair) error {
			tc.Incr("total", int64(p.Block.Get(0, 0)))
			tc.Max("max_row", p.Index.Row)
			return nil
		},
	}
}

func TestRunJob(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t, 4, false, 4)
	res, err := l.RunJob(ctx, countJob("j1", constDataset(4, 6, 1), constDataset(2, 3, 1)))
	require.NoError(t, err)

	mapped, ok := res.Counters.Get("mapped")
	require.True(t, ok)
	require.Equal(t, int64(30), mapped)
	total, _ := res.Counters.Get("total")
	require.Equal(t, int64(30), total)
	maxRow, _ := res.Counters.Get("max_row")
	require.Equal(t, int64(3), maxRow)

	pairs := res.Output.Pairs()
	require.Len(t, pairs, 3)
	for _, p := range pairs {
		require.Equal(t, 10.0, p.Block.Get(0, 0))
	}
	require.Contains(t, res.Counters.Names(), "max_records/1")
}

func TestRunJobFailures(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t, 4, false, 0)

	spec := countJob("j2", constDataset(2, 2, 1))
	spec.NumReducers = 0
	_, err := l.RunJob(ctx, spec)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))

	spec = countJob("j3", constDataset(2, 2, 1))
	spec.Combine = nil
	_, err = l.RunJob(ctx, spec)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrJobFailed))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))

	spec = countJob("j4", constDataset(2, 2, 1))
	spec.Reducer = func(tc *TaskContext, records []Record, collect Collect) error {
		return moerr.NewRuntimeKernel(tc.Context(), "mm", "fault")
	}
	res, err := l.RunJob(ctx, spec)
	require.Nil(t, res)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrRuntimeKernel))

	spec = countJob("j5", constDataset(2, 2, 1))
	spec.BlockSizes = [][2]int{{0, 2}}
	_, err = l.RunJob(ctx, spec)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))
}

func TestCounters(t *testing.T) {
	a, b := NewCounters(), NewCounters()
	a.Add("nnz/C", 3)
	a.Max("max_rowdim_C/0", 10)
	b.Add("nnz/C", 4)
	b.Max("max_rowdim_C/0", 7)
	b.Max("max_rowdim_C/1", 12)
	a.Merge(b)
	v, _ := a.Get("nnz/C")
	require.Equal(t, int64(7), v)
	v, _ = a.Get("max_rowdim_C/0")
	require.Equal(t, int64(10), v)
	require.Equal(t, []string{"max_rowdim_C/0", "max_rowdim_C/1", "nnz/C"}, a.Names())
	_, ok := a.Get("missing")
	require.False(t, ok)
}

func TestAnalyzer(t *testing.T) {
	cfg := config.Default()
	cfg.Cluster.Cores = 0
	stubs := gostub.Stub(&numCPU, func() int { return 96 })
	defer stubs.Reset()

	a := NewAnalyzer(cfg)
	require.Equal(t, 96, a.Cores())
	require.Equal(t, int64(config.DefaultFSBlockSize), a.FSBlockSize())
	require.Equal(t, cfg.Cluster.ReduceSlots, a.ReduceSlots())
	require.False(t, a.IsElastic())
	require.Equal(t, 1, a.Replication())

	cfg.Cluster.Cores = 8
	require.Equal(t, 8, a.Cores())
}

func TestPartitioners(t *testing.T) {
	k := TaggedIndex{First: 7, Tag: 1, Second: 3}
	require.Equal(t, 7%4, FirstIndexPartitioner{}.Partition(k, 4))
	h := HashPartitioner{}.Partition(k, 5)
	require.Equal(t, h, HashPartitioner{}.Partition(k, 5))
	require.True(t, h >= 0 && h < 5)
}
