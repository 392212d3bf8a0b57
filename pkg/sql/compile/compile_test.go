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

package compile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/blockmatrix/pkg/codegen"
	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/config"
	"github.com/matrixorigin/blockmatrix/pkg/container/matrix"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
	"github.com/matrixorigin/blockmatrix/pkg/sql/instruction"
	"github.com/matrixorigin/blockmatrix/pkg/vm/cluster"
	"github.com/matrixorigin/blockmatrix/pkg/vm/engine"
	"github.com/matrixorigin/blockmatrix/pkg/vm/engine/memengine"
	"github.com/matrixorigin/blockmatrix/pkg/vm/process"
)

func newTestCompile(t *testing.T) (*Compile, engine.Engine) {
	cfg := config.Default()
	cfg.Cluster.Slots = 2
	rt, err := cluster.NewLocal(context.Background(), cfg.Cluster)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	proc := process.New(context.Background(), rt, process.LimitationFromConfig(cfg), nil)
	t.Cleanup(proc.Cancel)
	e := memengine.New()
	t.Cleanup(func() { _ = e.Close() })
	return New(e, cluster.NewAnalyzer(cfg), nil, proc), e
}

func mat(name string) string {
	return instruction.MatrixOperand(name).String()
}

func scalar(name string) string {
	return instruction.Operand{Name: name, DataType: types.Scalar, ValueType: types.Double}.String()
}

func literal(v string) string {
	return instruction.ScalarLiteral(v).String()
}

func runProgram(c *Compile, list ...string) error {
	if err := c.Compile(instruction.EncodeList(list...)); err != nil {
		return err
	}
	return c.Run()
}

func TestMultiplyProgram(t *testing.T) {
	c, e := newTestCompile(t)
	ctx := context.Background()
	require.NoError(t, e.Write(ctx, "A", matrix.FromDense(4, 3, []float64{
		1, 2, 0,
		0, 0, 0,
		3, 0, 1,
		0, 1, 0,
	}, 2, 2)))
	require.NoError(t, e.Write(ctx, "B", matrix.FromDense(3, 2, []float64{
		1, 0,
		0, 1,
		2, 0,
	}, 2, 2)))
	sumSq := codegen.Descriptor{Name: codegen.CellExprName, Payload: []byte("FULL_AGG;a a *")}

	err := runProgram(c,
		instruction.Encode(instruction.CP, "createvar", mat("A"), "A"),
		instruction.Encode(instruction.CP, "createvar", mat("B"), "B"),
		instruction.Encode(instruction.CP, "createvar", mat("C"), "C"),
		instruction.Encode(instruction.Spark, "mmcj", mat("A"), mat("B"), mat("C"), "RIGHT"),
		instruction.Encode(instruction.Spark, "spoof", sumSq.Name, sumSq.EncodedPayload(), mat("C"), scalar("s"), "4"),
		instruction.Encode(instruction.CP, "write", mat("C"), "C"),
		instruction.Encode(instruction.CP, "rmvar", mat("A"), mat("B")),
	)
	require.NoError(t, err)
	require.Len(t, c.Scopes(), 7)
	require.Equal(t, Normal, c.Scopes()[3].Magic)
	require.Equal(t, "mmcj(A %*% B -> C)", c.Scopes()[3].String())

	pm, err := e.Read(ctx, "C")
	require.NoError(t, err)
	data, err := pm.ToDense(ctx)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 0, 0, 5, 0, 0, 1}, data)
	require.Equal(t, int64(4), pm.Characteristics().NonZeros)

	s, err := c.proc.Vars.GetScalar(ctx, "s")
	require.NoError(t, err)
	require.Equal(t, 31.0, s)

	mo, err := c.proc.Vars.GetMatrix(ctx, "C")
	require.NoError(t, err)
	require.Equal(t, "C", mo.Storage)
	_, err = c.proc.Vars.GetMatrix(ctx, "A")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNoSuchMatrix))
}

func TestScalarVariables(t *testing.T) {
	c, _ := newTestCompile(t)
	ctx := context.Background()
	err := runProgram(c,
		instruction.Encode(instruction.CP, "assignvar", literal("1.5"), scalar("x")),
		instruction.Encode(instruction.CP, "cpvar", scalar("x"), scalar("y")),
		instruction.Encode(instruction.CP, "mvvar", scalar("y"), scalar("z")),
	)
	require.NoError(t, err)

	for _, name := range []string{"x", "z"} {
		v, err := c.proc.Vars.GetScalar(ctx, name)
		require.NoError(t, err)
		require.Equal(t, 1.5, v)
	}
	_, err = c.proc.Vars.GetScalar(ctx, "y")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	err = runProgram(c, instruction.Encode(instruction.CP, "assignvar", mat("A"), scalar("w")))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
	err = runProgram(c, instruction.Encode(instruction.CP, "assignvar", literal("abc"), scalar("w")))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))
}

func TestCopyMatrixKeepsLineage(t *testing.T) {
	c, e := newTestCompile(t)
	ctx := context.Background()
	require.NoError(t, e.Write(ctx, "X", matrix.FromDense(2, 2, []float64{1, 2, 3, 4}, 2, 2)))
	err := runProgram(c,
		instruction.Encode(instruction.CP, "read", mat("X"), "X"),
		instruction.Encode(instruction.CP, "cpvar", mat("X"), mat("Y")),
		instruction.Encode(instruction.CP, "mvvar", mat("Y"), mat("Z")),
	)
	require.NoError(t, err)
	require.Equal(t, []string{"X"}, c.proc.Vars.Lineage("Z"))
	mo, err := c.proc.Vars.GetMatrix(ctx, "Z")
	require.NoError(t, err)
	require.Equal(t, "X", mo.Storage)
	_, err = c.proc.Vars.GetMatrix(ctx, "Y")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNoSuchMatrix))
}

func TestWriteUnknownDims(t *testing.T) {
	c, e := newTestCompile(t)
	ctx := context.Background()
	pm := matrix.FromDense(3, 3, []float64{1, 0, 0, 0, 2, 0, 0, 0, 3}, 2, 2)
	c.proc.Vars.SetMatrix(&process.MatrixObject{
		Name: "D",
		MC:   types.UnknownCharacteristics(2, 2),
		Data: cluster.FromPartitioned(pm, 2),
	})
	require.NoError(t, runProgram(c, instruction.Encode(instruction.CP, "write", mat("D"), "out")))

	mc, err := e.Characteristics(ctx, "out")
	require.NoError(t, err)
	require.Equal(t, types.MatrixCharacteristics{Rows: 3, Cols: 3, RowsPerBlock: 2, ColsPerBlock: 2, NonZeros: 3}, mc)
}

func TestVariableErrors(t *testing.T) {
	c, _ := newTestCompile(t)

	err := runProgram(c, instruction.Encode(instruction.CP, "read", mat("X"), "missing"))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNoSuchMatrix))

	// a createvar of a matrix not stored yet binds nothing
	require.NoError(t, runProgram(c, instruction.Encode(instruction.CP, "createvar", mat("X"), "missing")))
	_, err = c.proc.Vars.GetMatrix(c.proc.Ctx, "X")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNoSuchMatrix))

	err = runProgram(c, instruction.Encode(instruction.CP, "createvar", mat("X")))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	err = runProgram(c, instruction.Encode(instruction.CP, "write", mat("X"), "X"))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNoSuchMatrix))
}

func TestUnsupportedInstructions(t *testing.T) {
	c, _ := newTestCompile(t)
	for _, ins := range []string{
		instruction.Encode(instruction.CP, "+", scalar("a"), scalar("b"), scalar("c")),
		instruction.Encode(instruction.CP, "ba+*", mat("A"), mat("B"), mat("C"), "1"),
		instruction.Encode(instruction.CP, "log", scalar("a"), scalar("b")),
	} {
		require.NoError(t, c.Compile(ins))
		require.Equal(t, Unsupported, c.Scopes()[0].Magic)
		require.True(t, moerr.IsMoErrCode(c.Run(), moerr.ErrNYI), ins)
	}
}

func TestCompileIsAtomic(t *testing.T) {
	c, _ := newTestCompile(t)
	err := c.Compile(instruction.EncodeList(
		instruction.Encode(instruction.CP, "assignvar", literal("1"), scalar("x")),
		instruction.Encode(instruction.CP, "nosuchop", scalar("x")),
	))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrParseError))
	require.Empty(t, c.Scopes())
	require.NoError(t, c.Run())
}

func TestMultiplyRouting(t *testing.T) {
	c, _ := newTestCompile(t)
	for _, et := range []instruction.ExecType{instruction.Spark, instruction.MR} {
		require.NoError(t, c.Compile(instruction.Encode(et, "ba+*", mat("A"), mat("B"), mat("C"), "RIGHT")))
		s := c.Scopes()[0]
		require.Equal(t, Normal, s.Magic)
		require.Len(t, s.Instructions, 1)
	}
}
