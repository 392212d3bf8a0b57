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
	"bytes"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
	"github.com/matrixorigin/blockmatrix/pkg/vm/cluster"
	"github.com/matrixorigin/blockmatrix/pkg/vm/engine"
	"github.com/matrixorigin/blockmatrix/pkg/vm/process"
)

func String(arg any, buf *bytes.Buffer) {
	ap := arg.(*Argument)
	buf.WriteString(fmt.Sprintf("mmcj(%s %%*%% %s -> %s)", ap.Left, ap.Right, ap.Output))
}

// Prepare checks that the inputs can be multiplied and sizes the job.
func Prepare(proc *process.Process, arg any) error {
	ap := arg.(*Argument)
	ctx := proc.Ctx
	if ap.Analyzer == nil {
		return moerr.NewBadConfig(ctx, "multiply job for %s without cluster analyzer", ap.Output)
	}
	ctr := new(container)
	var err error
	if ctr.left, err = proc.Vars.GetMatrix(ctx, ap.Left); err != nil {
		return err
	}
	if ctr.right, err = proc.Vars.GetMatrix(ctx, ap.Right); err != nil {
		return err
	}
	dim1, dim2 := ctr.left.MC, ctr.right.MC
	if dim1.RowsPerBlock <= 0 || dim1.ColsPerBlock <= 0 || dim2.RowsPerBlock <= 0 || dim2.ColsPerBlock <= 0 {
		return moerr.NewBadConfig(ctx, "block sizes %dx%d and %dx%d must be positive",
			dim1.RowsPerBlock, dim1.ColsPerBlock, dim2.RowsPerBlock, dim2.ColsPerBlock)
	}
	if dim1.ColsPerBlock != dim2.RowsPerBlock {
		return moerr.NewSizeNotMatch(ctx, "block size %dx%d cannot multiply %dx%d",
			dim1.RowsPerBlock, dim1.ColsPerBlock, dim2.RowsPerBlock, dim2.ColsPerBlock)
	}
	if dim1.Cols >= 0 && dim2.Rows >= 0 && dim1.Cols != dim2.Rows {
		return moerr.NewSizeNotMatch(ctx, "%s is %dx%d, %s is %dx%d",
			ap.Left, dim1.Rows, dim1.Cols, ap.Right, dim2.Rows, dim2.Cols)
	}

	ctr.stats = types.NewCharacteristics(dim1.Rows, dim2.Cols, dim1.RowsPerBlock, dim2.ColsPerBlock)
	if !dim1.DimsKnown() || !dim2.DimsKnown() {
		ctr.stats.Rows, ctr.stats.Cols = types.Unknown, types.Unknown
	}
	groups := reducerGroups(ctr.left.Data, ctr.right.Data, dim1, dim2)
	ctr.numReducers = determineNumReducers(
		[]int64{dim1.Rows, dim2.Rows}, []int64{dim1.Cols, dim2.Cols}, []int64{dim1.NonZeros, dim2.NonZeros},
		proc.Lim.DefaultReducers, groups, ap.Analyzer)
	ctr.cacheLeft = cacheFirst(dim1.Clamped(), dim2.Clamped())
	ctr.cacheSize = estimateCacheSize(dim1, dim2, ap.Analyzer.MiscMemory())
	ap.ctr = ctr
	return nil
}

// Call runs the job and binds its output. The output is published only
// when the whole job succeeded.
func Call(_ int, proc *process.Process, arg any) (bool, error) {
	ap := arg.(*Argument)
	if ap.ctr == nil {
		return false, moerr.NewInvalidState(proc.Ctx, "multiply job for %s is not prepared", ap.Output)
	}
	ret, err := ap.run(proc)
	ap.Result = ret
	if err != nil {
		return false, err
	}
	return true, nil
}

func (ap *Argument) run(proc *process.Process) (*JobReturn, error) {
	ctx := proc.Ctx
	ctr := ap.ctr
	ret := &JobReturn{Stats: ctr.stats, JobID: uuid.NewString()}
	dimsUnknown := !ctr.stats.DimsKnown()

	var dw engine.DeferredWriter
	if dimsUnknown && ap.Engine != nil {
		var err error
		if dw, err = ap.Engine.NewDeferredWriter(ctx, ap.Output); err != nil {
			return ret, err
		}
	}
	proc.Info("run multiply job",
		zap.String("job", ret.JobID),
		zap.String("output", ap.Output),
		zap.Int("reducers", ctr.numReducers),
		zap.Bool("cache-left", ctr.cacheLeft),
		zap.String("cache-size", humanize.IBytes(uint64(ctr.cacheSize))),
		zap.Bool("dims-unknown", dimsUnknown))

	w := &worker{
		output:       ap.Output,
		cacheLeft:    ctr.cacheLeft,
		threads:      proc.Lim.MultiplyThreads,
		rowsPerBlock: ctr.left.MC.RowsPerBlock,
		colsPerBlock: ctr.right.MC.ColsPerBlock,
		writer:       dw,
	}
	spec := &cluster.JobSpec{
		ID:          ret.JobID,
		Name:        jobName,
		Inputs:      []*cluster.Dataset{ctr.left.Data, ctr.right.Data},
		NumReducers: ctr.numReducers,
		MemoryHint:  ctr.cacheSize,
		Partitioner: cluster.FirstIndexPartitioner{},
		Replication: ap.Analyzer.Replication(),
		BlockSizes: [][2]int{
			{ctr.left.MC.RowsPerBlock, ctr.left.MC.ColsPerBlock},
			{ctr.right.MC.RowsPerBlock, ctr.right.MC.ColsPerBlock},
		},
		Mapper:   w.mapper,
		Reducer:  w.reducer,
		Combine:  cluster.StableCombine,
		Finalize: w.finalize,
	}
	res, err := proc.Rt.RunJob(ctx, spec)
	if err != nil {
		abort(proc, dw)
		return ret, err
	}

	stats := ctr.stats
	stats.NonZeros, _ = res.Counters.Get(nnzCounter(ap.Output))
	if dimsUnknown {
		stats.Rows, stats.Cols = reconcileDims(res.Counters, ap.Output, ctr.numReducers)
		// no reducer saw a block, so take the extents the inputs know
		if stats.Rows == 0 && ctr.left.MC.Rows > 0 {
			stats.Rows = ctr.left.MC.Rows
		}
		if stats.Cols == 0 && ctr.right.MC.Cols > 0 {
			stats.Cols = ctr.right.MC.Cols
		}
	}
	storage := ""
	if dw != nil {
		if err := dw.Commit(ctx, stats); err != nil {
			abort(proc, dw)
			return ret, err
		}
		storage = ap.Output
	}
	proc.Vars.SetMatrix(&process.MatrixObject{
		Name:    ap.Output,
		Storage: storage,
		MC:      stats,
		Data:    res.Output,
	})
	ret.Stats = stats
	ret.Successful = true
	proc.Info("multiply job done",
		zap.String("job", ret.JobID),
		zap.Stringer("stats", stats))
	return ret, nil
}

// reconcileDims takes the largest row and col extent any reducer saw.
func reconcileDims(counters cluster.Counters, output string, numReducers int) (int64, int64) {
	var maxRow, maxCol int64
	for rid := 0; rid < numReducers; rid++ {
		if v, ok := counters.Get(rowDimCounter(output, rid)); ok && v > maxRow {
			maxRow = v
		}
		if v, ok := counters.Get(colDimCounter(output, rid)); ok && v > maxCol {
			maxCol = v
		}
	}
	return maxRow, maxCol
}

func abort(proc *process.Process, dw engine.DeferredWriter) {
	if dw == nil {
		return
	}
	if err := dw.Abort(); err != nil {
		proc.Warn("abort deferred output", zap.Error(err))
	}
}

func nnzCounter(output string) string {
	return "nnz/" + output
}

func rowDimCounter(output string, reducer int) string {
	return fmt.Sprintf("max_rowdim_%s/%d", output, reducer)
}

func colDimCounter(output string, reducer int) string {
	return fmt.Sprintf("max_coldim_%s/%d", output, reducer)
}
