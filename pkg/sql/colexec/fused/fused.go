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

package fused

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/matrixorigin/blockmatrix/pkg/codegen"
	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/container/block"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
	"github.com/matrixorigin/blockmatrix/pkg/sql/instruction"
	"github.com/matrixorigin/blockmatrix/pkg/vm/cluster"
	"github.com/matrixorigin/blockmatrix/pkg/vm/process"
)

var firstIndex = types.BlockIndex{Row: 1, Col: 1}

func String(arg any, buf *bytes.Buffer) {
	ap := arg.(*Argument)
	buf.WriteString(fmt.Sprintf("spoof(%s: %s", ap.Desc.Name, ap.Input))
	for _, name := range ap.SideInputs {
		buf.WriteString(", ")
		buf.WriteString(name)
	}
	buf.WriteString(fmt.Sprintf(" -> %s)", ap.Output.Name))
}

// Prepare instantiates the kernel once on the driver to learn its family,
// broadcasts the side inputs and resolves the scalar operands.
func Prepare(proc *process.Process, arg any) error {
	ap := arg.(*Argument)
	ctx := proc.Ctx
	ctr := new(container)

	k, err := proc.Kernels.Get(ctx, ap.Desc)
	if err != nil {
		return err
	}
	ctr.kernel = k
	if ctr.input, err = proc.Vars.GetMatrix(ctx, ap.Input); err != nil {
		return err
	}
	sideMCs := make([]types.MatrixCharacteristics, 0, len(ap.SideInputs))
	for _, name := range ap.SideInputs {
		bc, err := proc.Vars.Broadcast(ctx, proc.Rt, name)
		if err != nil {
			return err
		}
		ctr.sides = append(ctr.sides, bc)
		sideMCs = append(sideMCs, bc.Characteristics())
	}
	for _, op := range ap.Scalars {
		v, err := resolveScalar(ctx, proc, op)
		if err != nil {
			return err
		}
		ctr.scalars = append(ctr.scalars, v)
	}
	if k.Family() == codegen.OuterProduct && len(ctr.sides) < 2 {
		return moerr.NewInvalidInput(ctx, "outer product kernel %s needs two factor inputs, got %d",
			ap.Desc.Name, len(ctr.sides))
	}

	mc, scalar := OutputCharacteristics(k, ctr.input.MC, sideMCs)
	if scalar != ap.Output.IsScalar() {
		return moerr.NewInvalidInput(ctx, "kernel %s cannot produce %s output '%s'",
			ap.Desc.Name, ap.Output.DataType, ap.Output.Name)
	}
	ctr.mc = mc
	ap.ctr = ctr
	return nil
}

// OutputCharacteristics derives the output shape of kernel k before it runs.
// The second result reports a scalar output. Row aggregates report unknown
// dimensions; their shape is only known from the summed block.
func OutputCharacteristics(k codegen.Kernel, in types.MatrixCharacteristics,
	sides []types.MatrixCharacteristics) (types.MatrixCharacteristics, bool) {
	switch k := k.(type) {
	case codegen.CellwiseKernel:
		switch k.CellType() {
		case codegen.RowAgg:
			return types.NewCharacteristics(in.Rows, 1, in.RowsPerBlock, in.ColsPerBlock), false
		case codegen.FullAgg:
			return types.MatrixCharacteristics{}, true
		}
		return types.NewCharacteristics(in.Rows, in.Cols, in.RowsPerBlock, in.ColsPerBlock), false
	case codegen.OuterProductKernel:
		switch k.OuterType() {
		case codegen.LeftOuter:
			v := sides[1]
			return types.NewCharacteristics(v.Rows, v.Cols, v.RowsPerBlock, v.ColsPerBlock), false
		case codegen.RightOuter:
			u := sides[0]
			return types.NewCharacteristics(u.Rows, u.Cols, u.RowsPerBlock, u.ColsPerBlock), false
		case codegen.AggOuter:
			return types.MatrixCharacteristics{}, true
		}
		return types.NewCharacteristics(in.Rows, in.Cols, in.RowsPerBlock, in.ColsPerBlock), false
	}
	return types.UnknownCharacteristics(in.RowsPerBlock, in.ColsPerBlock), false
}

// Call runs the kernel over every block of the primary input and applies
// the reduction its family needs. The output is bound into the symbol table.
func Call(_ int, proc *process.Process, arg any) (bool, error) {
	ap := arg.(*Argument)
	if ap.ctr == nil {
		return false, moerr.NewInvalidState(proc.Ctx, "fused operator %s is not prepared", ap.Desc.Name)
	}
	var err error
	switch ap.ctr.kernel.Family() {
	case codegen.Cellwise:
		err = ap.callCellwise(proc)
	case codegen.OuterProduct:
		err = ap.callOuterProduct(proc)
	case codegen.RowAggregate:
		err = ap.callRowAggregate(proc)
	default:
		err = moerr.NewUnsupportedKernel(proc.Ctx, ap.Desc.Name, ap.ctr.kernel.Family().String())
	}
	if err != nil {
		return false, err
	}
	proc.Debug("fused operator done",
		zap.String("kernel", ap.Desc.Name),
		zap.String("family", ap.ctr.kernel.Family().String()),
		zap.String("output", ap.Output.Name))
	return true, nil
}

func (ap *Argument) callCellwise(proc *process.Process) error {
	ctr := ap.ctr
	in := ctr.input
	cellType := ctr.kernel.(codegen.CellwiseKernel).CellType()
	out, err := proc.Rt.MapPartitions(proc.Ctx, in.Data,
		func(ctx context.Context, _ int, part cluster.Partition) (cluster.Partition, error) {
			k, err := kernelFor[codegen.CellwiseKernel](ctx, proc, ap.Desc)
			if err != nil {
				return nil, err
			}
			sides := make([]*block.Block, len(ctr.sides))
			res := make(cluster.Partition, 0, len(part))
			for _, p := range part {
				for i, bc := range ctr.sides {
					sides[i] = bc.GetClamped(p.Index.Row, p.Index.Col)
				}
				idx := p.Index
				var blk *block.Block
				switch cellType {
				case codegen.FullAgg:
					v, err := k.Aggregate(ctx, p.Block, sides, ctr.scalars)
					if err != nil {
						return nil, err
					}
					idx, blk = firstIndex, block.Scalar(v)
				default:
					if blk, err = k.Execute(ctx, p.Block, sides, ctr.scalars); err != nil {
						return nil, err
					}
					if cellType == codegen.RowAgg {
						idx.Col = 1
					}
				}
				res = append(res, cluster.Pair{Index: idx, Block: blk})
			}
			return res, nil
		})
	if err != nil {
		return err
	}

	switch cellType {
	case codegen.FullAgg:
		return ap.bindScalar(proc, out)
	case codegen.RowAgg:
		// partial row sums exist only with more than one column block
		if !in.MC.DimsKnown() || in.MC.Cols > int64(in.MC.ColsPerBlock) {
			n := 0
			if rb := int(in.MC.NumRowBlocks()); in.MC.DimsKnown() && out.NumPartitions() > rb {
				n = rb
			}
			if out, err = proc.Rt.SumByKeyStable(proc.Ctx, out, n); err != nil {
				return err
			}
		}
	}
	ap.bindMatrix(proc, out)
	return nil
}

func (ap *Argument) callOuterProduct(proc *process.Process) error {
	ctr := ap.ctr
	outerType := ctr.kernel.(codegen.OuterProductKernel).OuterType()
	u, v := ctr.sides[0], ctr.sides[1]
	out, err := proc.Rt.MapPartitions(proc.Ctx, ctr.input.Data,
		func(ctx context.Context, _ int, part cluster.Partition) (cluster.Partition, error) {
			k, err := kernelFor[codegen.OuterProductKernel](ctx, proc, ap.Desc)
			if err != nil {
				return nil, err
			}
			res := make(cluster.Partition, 0, len(part))
			for _, p := range part {
				ub := u.GetBlock(p.Index.Row, 1)
				vb := v.GetBlock(p.Index.Col, 1)
				var (
					idx types.BlockIndex
					blk *block.Block
				)
				switch outerType {
				case codegen.AggOuter:
					s, err := k.Aggregate(ctx, p.Block, ub, vb, ctr.scalars)
					if err != nil {
						return nil, err
					}
					idx, blk = firstIndex, block.Scalar(s)
				default:
					if blk, err = k.Execute(ctx, p.Block, ub, vb, ctr.scalars); err != nil {
						return nil, err
					}
					switch outerType {
					case codegen.LeftOuter:
						idx = types.BlockIndex{Row: p.Index.Col, Col: 1}
					case codegen.RightOuter:
						idx = types.BlockIndex{Row: p.Index.Row, Col: 1}
					default:
						idx = p.Index
					}
				}
				res = append(res, cluster.Pair{Index: idx, Block: blk})
			}
			return res, nil
		})
	if err != nil {
		return err
	}

	switch outerType {
	case codegen.AggOuter:
		return ap.bindScalar(proc, out)
	case codegen.LeftOuter, codegen.RightOuter:
		n := 0
		if blocks := int(ctr.mc.NumRowBlocks() * ctr.mc.NumColBlocks()); ctr.mc.DimsKnown() && out.NumPartitions() > blocks {
			n = blocks
		}
		if out, err = proc.Rt.SumByKeyStable(proc.Ctx, out, n); err != nil {
			return err
		}
	}
	ap.bindMatrix(proc, out)
	return nil
}

func (ap *Argument) callRowAggregate(proc *process.Process) error {
	ctr := ap.ctr
	in := ctr.input
	out, err := proc.Rt.MapPartitions(proc.Ctx, in.Data,
		func(ctx context.Context, _ int, part cluster.Partition) (cluster.Partition, error) {
			k, err := kernelFor[codegen.RowAggregateKernel](ctx, proc, ap.Desc)
			if err != nil {
				return nil, err
			}
			sides := make([]*block.Block, len(ctr.sides))
			res := make(cluster.Partition, 0, len(part))
			for _, p := range part {
				for i, bc := range ctr.sides {
					sides[i] = bc.GetClamped(p.Index.Row, 1)
				}
				blk, err := k.Execute(ctx, p.Block, sides, ctr.scalars)
				if err != nil {
					return nil, err
				}
				res = append(res, cluster.Pair{Index: firstIndex, Block: blk})
			}
			return res, nil
		})
	if err != nil {
		return err
	}
	// row aggregates are summed without compensation
	total, err := proc.Rt.Sum(proc.Ctx, out)
	if err != nil {
		return err
	}
	mo := &process.MatrixObject{Name: ap.Output.Name, MC: ctr.mc, Data: cluster.NewDataset()}
	if total != nil {
		mc := types.NewCharacteristics(int64(total.Rows()), int64(total.Cols()),
			maxInt(in.MC.RowsPerBlock, total.Rows()), maxInt(in.MC.ColsPerBlock, total.Cols()))
		mc.NonZeros = total.NonZeros()
		mo.MC = mc
		mo.Data = cluster.NewDataset(cluster.Partition{{Index: firstIndex, Block: total}})
	}
	proc.Vars.SetMatrix(mo)
	return nil
}

func (ap *Argument) bindMatrix(proc *process.Process, out *cluster.Dataset) {
	proc.Vars.SetMatrix(&process.MatrixObject{Name: ap.Output.Name, MC: ap.ctr.mc, Data: out})
	proc.Vars.AddLineage(ap.Output.Name, append([]string{ap.Input}, ap.SideInputs...)...)
}

func (ap *Argument) bindScalar(proc *process.Process, out *cluster.Dataset) error {
	total, err := proc.Rt.SumStable(proc.Ctx, out)
	if err != nil {
		return err
	}
	v := 0.0
	if total != nil {
		v = total.Get(0, 0)
	}
	proc.Vars.SetScalar(ap.Output.Name, v)
	return nil
}

// kernelFor fetches the kernel of desc on a worker. The cache builds it on
// first use.
func kernelFor[T codegen.Kernel](ctx context.Context, proc *process.Process, desc codegen.Descriptor) (T, error) {
	var zero T
	k, err := proc.Kernels.Get(ctx, desc)
	if err != nil {
		return zero, err
	}
	tk, ok := k.(T)
	if !ok {
		return zero, moerr.NewUnsupportedKernel(ctx, desc.Name, k.Family().String())
	}
	return tk, nil
}

func resolveScalar(ctx context.Context, proc *process.Process, op instruction.Operand) (float64, error) {
	if !op.Literal {
		return proc.Vars.GetScalar(ctx, op.Name)
	}
	return op.LiteralValue(ctx)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
