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
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/config"
	"github.com/matrixorigin/blockmatrix/pkg/container/block"
	"github.com/matrixorigin/blockmatrix/pkg/container/matrix"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
	"github.com/matrixorigin/blockmatrix/pkg/logutil"
	"github.com/matrixorigin/blockmatrix/pkg/vectorize/kahan"
	"github.com/matrixorigin/blockmatrix/pkg/vectorize/sum"
)

// Local runs every task of a job inside this process on a bounded pool.
type Local struct {
	pool       *ants.Pool
	partitions int
	capacity   uint32
	serialize  bool
	closed     int32
}

var _ Runtime = new(Local)

func NewLocal(ctx context.Context, cfg config.ClusterConfig) (*Local, error) {
	if cfg.Slots <= 0 {
		return nil, moerr.NewBadConfig(ctx, "cluster.slots must be positive, got %d", cfg.Slots)
	}
	pool, err := ants.NewPool(cfg.Slots, ants.WithNonblocking(false))
	if err != nil {
		return nil, moerr.ConvertGoError(ctx, err)
	}
	partitions := cfg.DefaultPartitions
	if partitions <= 0 {
		partitions = cfg.Slots
	}
	capacity := cfg.QueueCapacity
	if capacity == 0 {
		capacity = config.DefaultQueueCapacity
	}
	return &Local{
		pool:       pool,
		partitions: partitions,
		capacity:   capacity,
		serialize:  cfg.SerializeShuffle,
	}, nil
}

func (l *Local) Parallelism() int {
	return l.partitions
}

func (l *Local) Close() error {
	if atomic.CompareAndSwapInt32(&l.closed, 0, 1) {
		l.pool.Release()
	}
	return nil
}

func (l *Local) check(ctx context.Context) error {
	if atomic.LoadInt32(&l.closed) == 1 {
		return moerr.NewRuntimeClosed(ctx)
	}
	return nil
}

func (l *Local) MapPartitions(ctx context.Context, ds *Dataset, fn MapFunc) (*Dataset, error) {
	out := make([]Partition, ds.NumPartitions())
	err := l.runTasks(ctx, len(out), func(ctx context.Context, task int) error {
		part, err := fn(ctx, task, ds.Partitions[task])
		out[task] = part
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Dataset{Partitions: out}, nil
}

func (l *Local) ReduceByKey(ctx context.Context, ds *Dataset, numPartitions int, fn CombineFunc) (*Dataset, error) {
	if numPartitions <= 0 {
		numPartitions = ds.NumPartitions()
	}
	if numPartitions <= 0 {
		numPartitions = l.partitions
	}
	buckets, err := l.exchange(ctx, ds.NumPartitions(), numPartitions,
		func(ctx context.Context, task int, s *shuffle) error {
			for _, p := range ds.Partitions[task] {
				if err := s.put(ctx, indexBucket(p.Index, numPartitions), indexKey(p.Index), p.Block); err != nil {
					return err
				}
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	out := make([]Partition, numPartitions)
	err = l.runTasks(ctx, numPartitions, func(ctx context.Context, task int) error {
		part, err := combineGroups(ctx, buckets[task], fn)
		out[task] = part
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Dataset{Partitions: out}, nil
}

func (l *Local) SumByKeyStable(ctx context.Context, ds *Dataset, numPartitions int) (*Dataset, error) {
	return l.ReduceByKey(ctx, ds, numPartitions, StableCombine)
}

func (l *Local) SumStable(ctx context.Context, ds *Dataset) (*block.Block, error) {
	accs := make([]*kahan.BlockAccumulator, ds.NumPartitions())
	err := l.runTasks(ctx, len(accs), func(ctx context.Context, task int) error {
		var acc *kahan.BlockAccumulator
		for _, p := range ds.Partitions[task] {
			if acc == nil {
				acc = kahan.NewBlockAccumulatorFrom(p.Block)
				continue
			}
			if err := acc.Add(ctx, p.Block); err != nil {
				return err
			}
		}
		accs[task] = acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	var total *kahan.BlockAccumulator
	for _, acc := range accs {
		if acc == nil {
			continue
		}
		if total == nil {
			total = acc
			continue
		}
		if err := total.Merge(ctx, acc); err != nil {
			return nil, err
		}
	}
	if total == nil {
		return nil, nil
	}
	return total.Result(), nil
}

type plainSum struct {
	rows, cols int
	cells      []float64
}

func (s *plainSum) add(ctx context.Context, rows, cols int, values []float64) error {
	if s.cells == nil {
		s.rows, s.cols = rows, cols
		s.cells = make([]float64, rows*cols)
	}
	if rows != s.rows || cols != s.cols {
		return moerr.NewSizeNotMatch(ctx, "sum %dx%d into %dx%d", rows, cols, s.rows, s.cols)
	}
	sum.Float64Axpy(1, values, s.cells)
	return nil
}

func (l *Local) Sum(ctx context.Context, ds *Dataset) (*block.Block, error) {
	sums := make([]plainSum, ds.NumPartitions())
	err := l.runTasks(ctx, len(sums), func(ctx context.Context, task int) error {
		for _, p := range ds.Partitions[task] {
			if err := sums[task].add(ctx, p.Block.Rows(), p.Block.Cols(), p.Block.Values()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	var total plainSum
	for _, s := range sums {
		if s.cells == nil {
			continue
		}
		if err := total.add(ctx, s.rows, s.cols, s.cells); err != nil {
			return nil, err
		}
	}
	if total.cells == nil {
		return nil, nil
	}
	return block.NewDense(total.rows, total.cols, total.cells).Examine(), nil
}

// Broadcast replicates pm. With shuffle serialization on, every block goes
// through the block codec the way it would travel to a remote worker.
func (l *Local) Broadcast(ctx context.Context, pm *matrix.Partitioned) (*matrix.Broadcast, error) {
	if err := l.check(ctx); err != nil {
		return nil, err
	}
	pairs := pm.Pairs()
	if l.serialize {
		for i, p := range pairs {
			data, err := p.Block.MarshalBinary()
			if err != nil {
				return nil, err
			}
			blk := new(block.Block)
			if err := blk.UnmarshalBinary(data); err != nil {
				return nil, err
			}
			pairs[i].Block = blk
		}
	}
	return matrix.NewBroadcast(pm.Characteristics(), pairs), nil
}

type mapTask struct {
	input int
	part  Partition
}

func (l *Local) RunJob(ctx context.Context, spec *JobSpec) (*JobResult, error) {
	if err := l.check(ctx); err != nil {
		return nil, err
	}
	if err := validateJob(ctx, spec); err != nil {
		return nil, err
	}
	partitioner := spec.Partitioner
	if partitioner == nil {
		partitioner = HashPartitioner{}
	}
	numReducers := spec.NumReducers
	var tasks []mapTask
	for i, ds := range spec.Inputs {
		for _, part := range ds.Partitions {
			tasks = append(tasks, mapTask{input: i, part: part})
		}
	}
	logutil.Info("submit job",
		zap.String("job", spec.ID),
		zap.String("name", spec.Name),
		zap.Int("map-tasks", len(tasks)),
		zap.Int("reducers", numReducers),
		zap.Int("replication", spec.Replication),
		zap.String("memory-hint", humanize.IBytes(uint64(spec.MemoryHint))))

	mapCounters := make([]Counters, len(tasks))
	shuffled, err := l.exchange(ctx, len(tasks), numReducers,
		func(ctx context.Context, task int, s *shuffle) error {
			tc := NewTaskContext(ctx, spec.ID, task)
			emit := func(key TaggedIndex, blk *block.Block) error {
				return s.put(ctx, partitioner.Partition(key, numReducers), key, blk)
			}
			for _, p := range tasks[task].part {
				if err := spec.Mapper(tc, tasks[task].input, p, emit); err != nil {
					return err
				}
			}
			mapCounters[task] = tc.counters
			return nil
		})
	if err != nil {
		return nil, l.jobFailed(ctx, spec, err)
	}

	reduceCounters := make([]Counters, numReducers)
	outputs, err := l.exchange(ctx, numReducers, numReducers,
		func(ctx context.Context, task int, s *shuffle) error {
			records := shuffled[task]
			slices.SortStableFunc(records, func(a, b Record) bool {
				return a.Key.Less(b.Key)
			})
			tc := NewTaskContext(ctx, spec.ID, task)
			collect := func(p Pair) error {
				return s.put(ctx, indexBucket(p.Index, numReducers), indexKey(p.Index), p.Block)
			}
			if err := spec.Reducer(tc, records, collect); err != nil {
				return err
			}
			reduceCounters[task] = tc.counters
			return nil
		})
	if err != nil {
		return nil, l.jobFailed(ctx, spec, err)
	}

	aggCounters := make([]Counters, numReducers)
	out := make([]Partition, numReducers)
	err = l.runTasks(ctx, numReducers, func(ctx context.Context, task int) error {
		tc := NewTaskContext(ctx, spec.ID, task)
		combine := spec.Combine
		if combine == nil {
			combine = func(ctx context.Context, key types.BlockIndex, blocks []*block.Block) (*block.Block, error) {
				return nil, moerr.NewInvalidState(ctx, "job %s produced block %s %d times", spec.ID, key, len(blocks))
			}
		}
		part, err := combineGroups(ctx, outputs[task], combine)
		if err != nil {
			return err
		}
		if spec.Finalize != nil {
			for _, p := range part {
				if err := spec.Finalize(tc, p); err != nil {
					return err
				}
			}
		}
		out[task] = part
		aggCounters[task] = tc.counters
		return nil
	})
	if err != nil {
		return nil, l.jobFailed(ctx, spec, err)
	}

	counters := NewCounters()
	for _, stage := range [][]Counters{mapCounters, reduceCounters, aggCounters} {
		for _, c := range stage {
			counters.Merge(c)
		}
	}
	logutil.Info("job finished",
		zap.String("job", spec.ID),
		zap.Int("counters", counters.Len()))
	return &JobResult{Output: &Dataset{Partitions: out}, Counters: counters}, nil
}

func (l *Local) jobFailed(ctx context.Context, spec *JobSpec, err error) error {
	logutil.Error("job failed",
		zap.String("job", spec.ID),
		zap.String("name", spec.Name),
		zap.Error(err))
	return moerr.NewJobFailed(ctx, spec.ID, err)
}

func validateJob(ctx context.Context, spec *JobSpec) error {
	switch {
	case spec.NumReducers <= 0:
		return moerr.NewBadConfig(ctx, "job %s: number of reducers must be positive, got %d", spec.ID, spec.NumReducers)
	case spec.Mapper == nil || spec.Reducer == nil:
		return moerr.NewInvalidInput(ctx, "job %s without mapper or reducer", spec.ID)
	case len(spec.Inputs) == 0:
		return moerr.NewInvalidInput(ctx, "job %s without inputs", spec.ID)
	}
	for i, bs := range spec.BlockSizes {
		if bs[0] <= 0 || bs[1] <= 0 {
			return moerr.NewBadConfig(ctx, "job %s: input %d has block size %dx%d", spec.ID, i, bs[0], bs[1])
		}
	}
	return nil
}

// runTasks runs n tasks on the pool and waits for all of them. The first
// failure cancels the tasks that have not started yet.
func (l *Local) runTasks(ctx context.Context, n int, fn func(ctx context.Context, task int) error) error {
	if err := l.check(ctx); err != nil {
		return err
	}
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg    sync.WaitGroup
		once  sync.Once
		first error
	)
	fail := func(err error) {
		once.Do(func() {
			first = err
			cancel()
		})
	}
	for i := 0; i < n; i++ {
		task := i
		wg.Add(1)
		err := l.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if err := guarded(ctx, task, fn); err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			fail(moerr.ConvertGoError(ctx, err))
			break
		}
	}
	wg.Wait()
	if first != nil {
		return first
	}
	// tasks skipped after a cancel report nothing themselves
	if parent.Err() != nil {
		return moerr.NewInterrupted(parent)
	}
	return nil
}

// exchange runs producers on the pool while one goroutine per bucket
// drains the shuffle, and returns what every bucket received.
func (l *Local) exchange(ctx context.Context, producers, buckets int,
	produce func(ctx context.Context, task int, s *shuffle) error) ([][]Record, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := newShuffle(buckets, l.capacity, l.serialize)
	out := make([][]Record, buckets)
	g, gctx := errgroup.WithContext(ctx)
	for b := 0; b < buckets; b++ {
		bucket := b
		g.Go(func() error {
			records, err := s.drain(gctx, bucket)
			out[bucket] = records
			return err
		})
	}
	perr := l.runTasks(gctx, producers, func(ctx context.Context, task int) error {
		return produce(ctx, task, s)
	})
	s.close()
	if perr != nil {
		cancel()
	}
	gerr := g.Wait()
	if gerr != nil && (perr == nil || moerr.IsMoErrCode(perr, moerr.ErrInterrupted)) {
		return nil, gerr
	}
	if perr != nil {
		return nil, perr
	}
	return out, nil
}

func guarded(ctx context.Context, task int, fn func(ctx context.Context, task int) error) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = moerr.ConvertPanicError(ctx, e)
		}
	}()
	return fn(ctx, task)
}

func indexKey(idx types.BlockIndex) TaggedIndex {
	return TaggedIndex{First: idx.Row, Second: idx.Col}
}

// combineGroups groups records by block index and combines every group of
// more than one block. The result is in index order.
func combineGroups(ctx context.Context, records []Record, fn CombineFunc) (Partition, error) {
	groups := make(map[types.BlockIndex][]*block.Block)
	keys := make([]types.BlockIndex, 0)
	for _, r := range records {
		idx := types.BlockIndex{Row: r.Key.First, Col: r.Key.Second}
		if _, ok := groups[idx]; !ok {
			keys = append(keys, idx)
		}
		groups[idx] = append(groups[idx], r.Block)
	}
	slices.SortFunc(keys, func(a, b types.BlockIndex) bool {
		return a.Less(b)
	})
	part := make(Partition, 0, len(keys))
	for _, key := range keys {
		blocks := groups[key]
		blk := blocks[0]
		if len(blocks) > 1 {
			var err error
			if blk, err = fn(ctx, key, blocks); err != nil {
				return nil, err
			}
		}
		part = append(part, Pair{Index: key, Block: blk})
	}
	return part, nil
}

// StableCombine adds blocks with compensated summation.
func StableCombine(ctx context.Context, _ types.BlockIndex, blocks []*block.Block) (*block.Block, error) {
	acc := kahan.NewBlockAccumulatorFrom(blocks[0])
	for _, b := range blocks[1:] {
		if err := acc.Add(ctx, b); err != nil {
			return nil, err
		}
	}
	return acc.Result(), nil
}
