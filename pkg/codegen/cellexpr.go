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

package codegen

import (
	"context"
	"fmt"
	"strings"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/container/block"
	"github.com/matrixorigin/blockmatrix/pkg/vectorize/kahan"
)

// CellExprName evaluates a postfix expression per cell. The payload is
// "<CELL_TYPE>;<expression>" where the expression reads a (primary cell),
// b0..bN (side input cells) and s0..sN (scalars).
const CellExprName = "cellexpr"

type cellExpr struct {
	cellType CellType
	prog     *program
}

func newCellExpr(payload []byte) (Kernel, error) {
	head, body, ok := strings.Cut(string(payload), ";")
	if !ok {
		return nil, fmt.Errorf("payload %q has no cell type", payload)
	}
	ct, ok := parseCellType(strings.TrimSpace(head))
	if !ok {
		return nil, fmt.Errorf("unknown cell type %q", head)
	}
	prog, err := compileProgram(body, cellVars)
	if err != nil {
		return nil, err
	}
	return &cellExpr{cellType: ct, prog: prog}, nil
}

func cellVars(tok string) (varKind, int, bool) {
	if tok == "a" {
		return varCell, 0, true
	}
	if i, ok := indexedVar(tok, "b"); ok {
		return varSide, i, true
	}
	if i, ok := indexedVar(tok, "s"); ok {
		return varScalar, i, true
	}
	return 0, 0, false
}

func (k *cellExpr) Family() Family {
	return Cellwise
}

func (k *cellExpr) CellType() CellType {
	return k.cellType
}

func (k *cellExpr) String() string {
	return fmt.Sprintf("%s(%s)", k.cellType, k.prog.src)
}

func (k *cellExpr) Execute(ctx context.Context, in *block.Block, sides []*block.Block, scalars []float64) (*block.Block, error) {
	switch k.cellType {
	case NoAgg:
		out := block.NewDense(in.Rows(), in.Cols(), nil)
		err := k.forEachCell(ctx, in, sides, scalars, func(r, c int, v float64) {
			out.Set(r, c, v)
		})
		if err != nil {
			return nil, err
		}
		return out.Examine(), nil
	case RowAgg:
		rows := make([]kahan.Object, in.Rows())
		err := k.forEachCell(ctx, in, sides, scalars, func(r, _ int, v float64) {
			rows[r].Add(v)
		})
		if err != nil {
			return nil, err
		}
		out := block.NewDense(in.Rows(), 1, nil)
		for r := range rows {
			out.Set(r, 0, rows[r].Sum)
		}
		return out.Examine(), nil
	default:
		v, err := k.Aggregate(ctx, in, sides, scalars)
		if err != nil {
			return nil, err
		}
		return block.Scalar(v), nil
	}
}

func (k *cellExpr) Aggregate(ctx context.Context, in *block.Block, sides []*block.Block, scalars []float64) (float64, error) {
	var acc kahan.Object
	err := k.forEachCell(ctx, in, sides, scalars, func(_, _ int, v float64) {
		acc.Add(v)
	})
	return acc.Sum, err
}

func (k *cellExpr) forEachCell(ctx context.Context, in *block.Block, sides []*block.Block, scalars []float64,
	fn func(r, c int, v float64)) error {
	if err := k.check(ctx, in, sides, scalars); err != nil {
		return err
	}
	rows, cols := in.Rows(), in.Cols()
	cells := in.Values()
	sideCells := make([][]float64, k.prog.sides)
	for i := range sideCells {
		sideCells[i] = sides[i].Values()
	}
	e := &env{sides: make([]float64, k.prog.sides), scalars: scalars}
	stack := k.prog.newStack()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			e.cell = cells[r*cols+c]
			for i, s := range sideCells {
				e.sides[i] = s[sideOffset(sides[i], r, c)]
			}
			fn(r, c, k.prog.eval(e, stack))
		}
	}
	return nil
}

func (k *cellExpr) check(ctx context.Context, in *block.Block, sides []*block.Block, scalars []float64) error {
	if len(sides) < k.prog.sides {
		return moerr.NewRuntimeKernel(ctx, CellExprName, "needs %d side inputs, got %d", k.prog.sides, len(sides))
	}
	if len(scalars) < k.prog.scalars {
		return moerr.NewRuntimeKernel(ctx, CellExprName, "needs %d scalars, got %d", k.prog.scalars, len(scalars))
	}
	for i, s := range sides[:k.prog.sides] {
		if (s.Rows() != 1 && s.Rows() != in.Rows()) || (s.Cols() != 1 && s.Cols() != in.Cols()) {
			return moerr.NewRuntimeKernel(ctx, CellExprName, "side input %d is %dx%d, primary block is %dx%d",
				i, s.Rows(), s.Cols(), in.Rows(), in.Cols())
		}
	}
	return nil
}

// sideOffset maps a primary cell onto a side block that is either of the
// same extent, a row vector, a column vector or a single cell.
func sideOffset(s *block.Block, r, c int) int {
	if s.Rows() == 1 {
		r = 0
	}
	if s.Cols() == 1 {
		c = 0
	}
	return r*s.Cols() + c
}
