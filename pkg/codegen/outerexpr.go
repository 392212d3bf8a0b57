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
	"github.com/matrixorigin/blockmatrix/pkg/vectorize/sum"
)

// OuterExprName evaluates w = f(x, uv) per cell of X, where uv is the dot
// product of the matching rows of U and V. The payload is
// "<OUTER_TYPE>[,SPARSE_SAFE];<expression>" over x, uv and s0..sN.
// SPARSE_SAFE skips cells where x is zero.
const OuterExprName = "outerexpr"

const sparseSafeFlag = "SPARSE_SAFE"

type outerExpr struct {
	outerType  OuterType
	sparseSafe bool
	prog       *program
}

func newOuterExpr(payload []byte) (Kernel, error) {
	head, body, ok := strings.Cut(string(payload), ";")
	if !ok {
		return nil, fmt.Errorf("payload %q has no outer type", payload)
	}
	flags := strings.Split(strings.TrimSpace(head), ",")
	ot, ok := parseOuterType(flags[0])
	if !ok {
		return nil, fmt.Errorf("unknown outer type %q", flags[0])
	}
	k := &outerExpr{outerType: ot}
	for _, flag := range flags[1:] {
		if flag != sparseSafeFlag {
			return nil, fmt.Errorf("unknown flag %q", flag)
		}
		k.sparseSafe = true
	}
	prog, err := compileProgram(body, outerVars)
	if err != nil {
		return nil, err
	}
	k.prog = prog
	return k, nil
}

func outerVars(tok string) (varKind, int, bool) {
	switch tok {
	case "x":
		return varCell, 0, true
	case "uv":
		return varUV, 0, true
	}
	if i, ok := indexedVar(tok, "s"); ok {
		return varScalar, i, true
	}
	return 0, 0, false
}

func (k *outerExpr) Family() Family {
	return OuterProduct
}

func (k *outerExpr) OuterType() OuterType {
	return k.outerType
}

func (k *outerExpr) String() string {
	return fmt.Sprintf("%s(%s)", k.outerType, k.prog.src)
}

func (k *outerExpr) Execute(ctx context.Context, x, u, v *block.Block, scalars []float64) (*block.Block, error) {
	switch k.outerType {
	case CellwiseOuter:
		out := block.NewDense(x.Rows(), x.Cols(), nil)
		err := k.forEachCell(ctx, x, u, v, scalars, func(r, c int, w float64) {
			out.Set(r, c, w)
		})
		if err != nil {
			return nil, err
		}
		return out.Examine(), nil
	case LeftOuter:
		// t(W) %*% U, one row per column of X
		uvals, rank := u.Values(), u.Cols()
		out := block.NewDense(x.Cols(), rank, nil)
		ovals := out.Values()
		err := k.forEachCell(ctx, x, u, v, scalars, func(r, c int, w float64) {
			sum.Float64Axpy(w, uvals[r*rank:(r+1)*rank], ovals[c*rank:(c+1)*rank])
		})
		if err != nil {
			return nil, err
		}
		return out.Examine(), nil
	case RightOuter:
		// W %*% V, one row per row of X
		vvals, rank := v.Values(), v.Cols()
		out := block.NewDense(x.Rows(), rank, nil)
		ovals := out.Values()
		err := k.forEachCell(ctx, x, u, v, scalars, func(r, c int, w float64) {
			sum.Float64Axpy(w, vvals[c*rank:(c+1)*rank], ovals[r*rank:(r+1)*rank])
		})
		if err != nil {
			return nil, err
		}
		return out.Examine(), nil
	default:
		s, err := k.Aggregate(ctx, x, u, v, scalars)
		if err != nil {
			return nil, err
		}
		return block.Scalar(s), nil
	}
}

func (k *outerExpr) Aggregate(ctx context.Context, x, u, v *block.Block, scalars []float64) (float64, error) {
	var acc kahan.Object
	err := k.forEachCell(ctx, x, u, v, scalars, func(_, _ int, w float64) {
		acc.Add(w)
	})
	return acc.Sum, err
}

func (k *outerExpr) forEachCell(ctx context.Context, x, u, v *block.Block, scalars []float64,
	fn func(r, c int, w float64)) error {
	if u.Rows() != x.Rows() || v.Rows() != x.Cols() || u.Cols() != v.Cols() {
		return moerr.NewRuntimeKernel(ctx, OuterExprName, "factors %dx%d and %dx%d do not match block %dx%d",
			u.Rows(), u.Cols(), v.Rows(), v.Cols(), x.Rows(), x.Cols())
	}
	if len(scalars) < k.prog.scalars {
		return moerr.NewRuntimeKernel(ctx, OuterExprName, "needs %d scalars, got %d", k.prog.scalars, len(scalars))
	}
	uvals, vvals, rank := u.Values(), v.Values(), u.Cols()
	e := &env{scalars: scalars}
	stack := k.prog.newStack()
	visit := func(r, c int, cell float64) {
		e.cell = cell
		e.uv = sum.Float64Dot(uvals[r*rank:(r+1)*rank], vvals[c*rank:(c+1)*rank])
		fn(r, c, k.prog.eval(e, stack))
	}
	if k.sparseSafe {
		x.ForEachNonZero(visit)
		return nil
	}
	cells, cols := x.Values(), x.Cols()
	for r := 0; r < x.Rows(); r++ {
		for c := 0; c < cols; c++ {
			visit(r, c, cells[r*cols+c])
		}
	}
	return nil
}
