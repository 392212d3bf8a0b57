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

package instruction

import (
	"context"
	"fmt"
	"testing"

	"github.com/matrixorigin/blockmatrix/pkg/codegen"
	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
	"github.com/stretchr/testify/require"
)

// minimal builds the smallest well formed instruction for an opcode.
func minimal(opcode string, e entry) string {
	et := CP
	if !e.shape.execs.has(CP) {
		et = Spark
	}
	var fields []string
	if e.kind == SpoofFused {
		desc := codegen.Descriptor{Name: codegen.CellExprName, Payload: []byte("NO_AGG;a")}
		fields = append(fields, desc.Name, desc.EncodedPayload())
	}
	for i := 0; i < e.shape.minIn; i++ {
		fields = append(fields, MatrixOperand(fmt.Sprintf("in%d", i)).String())
	}
	for i := 0; i < e.shape.minOut; i++ {
		fields = append(fields, MatrixOperand(fmt.Sprintf("out%d", i)).String())
	}
	return Encode(et, opcode, fields...)
}

func TestEveryOpcodeRecoversItsKind(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher()
	kinds := d.Kinds()
	require.Len(t, kinds, len(d.Opcodes()))
	for opcode, kind := range kinds {
		text := minimal(opcode, d.table[opcode])
		ins, err := d.Parse(ctx, text)
		require.NoError(t, err, text)
		require.Equal(t, kind, ins.Kind, opcode)
		require.Equal(t, opcode, ins.Opcode)
		require.Equal(t, text, ins.String())
	}
	require.Equal(t, SpoofFused, kinds["spoof"])
	require.Equal(t, MMCJ, kinds["mmcj"])
	require.Equal(t, Variable, kinds["castdts"])
	require.Equal(t, MatrixIndexing, kinds["rangeReIndex"])
}

func TestKindsIsACopy(t *testing.T) {
	d := NewDispatcher()
	kinds := d.Kinds()
	kinds["+"] = File
	delete(kinds, "spoof")
	k, ok := d.Lookup("+")
	require.True(t, ok)
	require.Equal(t, ArithmeticBinary, k)
	_, ok = d.Lookup("spoof")
	require.True(t, ok)
}

func TestLogArity(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher()
	x, b, out := MatrixOperand("X").String(), ScalarLiteral("2").String(), MatrixOperand("Y").String()

	ins, err := d.Parse(ctx, Encode(CP, "log", x, out))
	require.NoError(t, err)
	require.Equal(t, Builtin, ins.Kind)
	require.Equal(t, UnaryVariant, ins.Variant)

	ins, err = d.Parse(ctx, Encode(CP, "log", x, b, out))
	require.NoError(t, err)
	require.Equal(t, BinaryVariant, ins.Variant)
	require.True(t, ins.Inputs[1].Literal)
	require.Equal(t, "Y", ins.Output().Name)

	for _, text := range []string{
		Encode(CP, "log", out),
		Encode(CP, "log", x, b, b, out),
	} {
		_, err = d.Parse(ctx, text)
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrParseError), text)
	}
}

func TestExecLocation(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher()
	x, out := MatrixOperand("X").String(), MatrixOperand("Y").String()
	rl := ScalarLiteral("1").String()

	ins, err := d.Parse(ctx, Encode(CPFile, "rmempty", x, "margin=rows", out))
	require.NoError(t, err)
	require.True(t, ins.FileBacked)
	require.Equal(t, ParameterizedBuiltin, ins.Kind)
	require.Equal(t, []string{"margin=rows"}, ins.Params)

	ins, err = d.Parse(ctx, Encode(CP, "rmempty", x, "margin=rows", out))
	require.NoError(t, err)
	require.False(t, ins.FileBacked)

	ins, err = d.Parse(ctx, Encode(CPFile, "rangeReIndex", x, rl, rl, rl, rl, out))
	require.NoError(t, err)
	require.True(t, ins.FileBacked)
	require.Len(t, ins.Inputs, 5)

	bad := []string{
		Encode(CPFile, "cdf", x, out),
		Encode(CPFile, "leftIndex", x, x, rl, rl, rl, rl, out),
		Encode(Spark, "rmempty", x, out),
		Encode(MR, "rangeReIndex", x, rl, rl, rl, rl, out),
		Encode(CPFile, "+", x, x, out),
		Encode(CP, "spoof", "cellexpr", "Tk9fQUdHO2E=", x, out, "4"),
		Encode(CP, "mmcj", x, x, out),
		"GPU°+°" + x + "°" + x + "°" + out,
		"cp°+°" + x + "°" + x + "°" + out,
	}
	for _, text := range bad {
		_, err := d.Parse(ctx, text)
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrParseError), text)
	}

	for _, et := range []ExecType{CP, Spark, MR} {
		ins, err := d.Parse(ctx, Encode(et, "ba+*", x, x, out, "4"))
		require.NoError(t, err)
		require.Equal(t, AggregateBinary, ins.Kind)
		require.Equal(t, et, ins.ExecType)
	}
}

func TestParseFused(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher()
	desc := codegen.Descriptor{Name: codegen.OuterExprName, Payload: []byte("LEFT_OUTER;x uv *")}
	text := Encode(Spark, "spoof", desc.Name, desc.EncodedPayload(),
		MatrixOperand("X").String(), MatrixOperand("U").String(), MatrixOperand("V").String(),
		MatrixOperand("R").String(), "16")
	ins, err := d.Parse(ctx, text)
	require.NoError(t, err)
	require.Equal(t, SpoofFused, ins.Kind)
	require.Equal(t, desc, *ins.Fused)
	require.Len(t, ins.Inputs, 3)
	require.Equal(t, "R", ins.Output().Name)
	require.Equal(t, []string{"16"}, ins.Params)

	bad := []string{
		Encode(Spark, "spoof", desc.Name),
		Encode(Spark, "spoof", desc.Name, "%%%", MatrixOperand("X").String(), MatrixOperand("R").String(), "1"),
		Encode(Spark, "spoof", desc.Name, desc.EncodedPayload(), MatrixOperand("R").String(), "1"),
		Encode(Spark, "spoof", desc.Name, desc.EncodedPayload(), ScalarLiteral("1").String(), MatrixOperand("R").String(), "1"),
		Encode(Spark, "spoof", desc.Name, desc.EncodedPayload(), MatrixOperand("X").String(), MatrixOperand("R").String(), "1", "2"),
	}
	for _, text := range bad {
		_, err := d.Parse(ctx, text)
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrParseError), text)
	}
}

func TestParseOperand(t *testing.T) {
	ctx := context.Background()
	op, err := ParseOperand(ctx, "1.5·SCALAR·DOUBLE·true")
	require.NoError(t, err)
	require.Equal(t, Operand{Name: "1.5", DataType: types.Scalar, ValueType: types.Double, Literal: true}, op)

	op, err = ParseOperand(ctx, "X·matrix·double·false")
	require.NoError(t, err)
	require.True(t, op.IsMatrix())
	require.False(t, op.Literal)

	for _, f := range []string{"X·MATRIX", "·MATRIX·DOUBLE", "X·TENSOR·DOUBLE", "X·MATRIX·COMPLEX", "X·MATRIX·DOUBLE·maybe", "a·b·c·d·e"} {
		_, err := ParseOperand(ctx, f)
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrParseError), f)
	}
}

func TestShapes(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher()
	x, out := MatrixOperand("X").String(), MatrixOperand("Y").String()

	ins, err := d.Parse(ctx, Encode(CP, "qr", x, MatrixOperand("Q").String(), MatrixOperand("R").String()))
	require.NoError(t, err)
	require.Len(t, ins.Inputs, 1)
	require.Len(t, ins.Outputs, 2)

	ins, err = d.Parse(ctx, Encode(CP, "rmvar", "A", "B"))
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, ins.Params)
	require.Empty(t, ins.Outputs)

	ins, err = d.Parse(ctx, Encode(CP, "createvar", out, "matrices/Y"))
	require.NoError(t, err)
	require.Equal(t, "Y", ins.Output().Name)
	require.Empty(t, ins.Inputs)

	bad := []string{
		Encode(CP, "+", x, out),
		Encode(CP, "+", x, x, x, out),
		Encode(CP, "+", x, x, out, "8"),
		Encode(CP, "qr", x),
		Encode(CP, "qr", x, out, out, out, out),
		Encode(CP, "tsmm", ScalarLiteral("1").String(), out),
		Encode(CP, "+", x, "", out),
		Encode(CP, "frobnicate", x, out),
		"+",
		"",
	}
	for _, text := range bad {
		_, err := d.Parse(ctx, text)
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrParseError), text)
	}
}

func TestParseListIsAtomic(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher()
	x, y, z := MatrixOperand("X").String(), MatrixOperand("Y").String(), MatrixOperand("Z").String()

	good := EncodeList(
		Encode(CP, "createvar", x, "X"),
		Encode(CP, "+", x, x, y),
		Encode(MR, "mmcj", x, y, z),
		Encode(CP, "rmvar", "X", "Y"),
	)
	list, err := d.ParseList(ctx, good)
	require.NoError(t, err)
	require.Len(t, list, 4)
	require.Equal(t, MMCJ, list[2].Kind)

	list, err = d.ParseList(ctx, EncodeList(good, Encode(CP, "nope", x, y)))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrParseError))
	require.Nil(t, list)

	list, err = d.ParseList(ctx, "  ")
	require.NoError(t, err)
	require.Empty(t, list)
}
