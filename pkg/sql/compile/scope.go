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
	"go.uber.org/zap"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
	"github.com/matrixorigin/blockmatrix/pkg/sql/instruction"
	"github.com/matrixorigin/blockmatrix/pkg/vm"
	"github.com/matrixorigin/blockmatrix/pkg/vm/cluster"
	"github.com/matrixorigin/blockmatrix/pkg/vm/process"
)

// Run executes the scope against the process of c.
func (s *Scope) Run(c *Compile) (err error) {
	switch s.Magic {
	case Normal:
		_, err = vm.Run(s.Instructions, c.proc)
	case CreateVar:
		err = s.createVar(c, false)
	case Read:
		err = s.createVar(c, true)
	case Write:
		err = s.write(c)
	case RemoveVar:
		for _, op := range s.Ins.Inputs {
			c.proc.Vars.Remove(op.Name)
		}
	case CopyVar:
		err = s.copyVar(c)
	case MoveVar:
		err = s.moveVar(c)
	case AssignVar:
		err = s.assignVar(c)
	default:
		err = moerr.NewNYI(c.proc.Ctx, "%s instruction %s", s.Ins.Kind, s.Ins.Opcode)
	}
	return err
}

// storageName is the single plain field of a variable instruction.
func (s *Scope) storageName(c *Compile) (string, error) {
	if len(s.Ins.Params) != 1 {
		return "", moerr.NewInvalidInput(c.proc.Ctx, "%s needs one storage name, got %d fields",
			s.Ins.Opcode, len(s.Ins.Params))
	}
	return s.Ins.Params[0], nil
}

// createVar binds a matrix variable to a stored matrix. A createvar of a
// name not stored yet binds nothing, the variable is expected to be
// computed and written later; read requires the matrix to exist.
func (s *Scope) createVar(c *Compile, mustExist bool) error {
	ctx := c.proc.Ctx
	out := s.Ins.Output()
	if !out.IsMatrix() {
		return moerr.NewInvalidInput(ctx, "%s of non matrix variable '%s'", s.Ins.Opcode, out.Name)
	}
	name, err := s.storageName(c)
	if err != nil {
		return err
	}
	if c.e == nil {
		return moerr.NewBadConfig(ctx, "%s %s without storage engine", s.Ins.Opcode, name)
	}
	pm, err := c.e.Read(ctx, name)
	if err != nil {
		if !mustExist && moerr.IsMoErrCode(err, moerr.ErrNoSuchMatrix) {
			return nil
		}
		return err
	}
	c.proc.Vars.SetMatrix(&process.MatrixObject{
		Name:    out.Name,
		Storage: name,
		MC:      pm.Characteristics(),
		Data:    cluster.FromPartitioned(pm, c.proc.Rt.Parallelism()),
	})
	c.proc.Debug("matrix bound",
		zap.String("variable", out.Name),
		zap.String("storage", name),
		zap.Stringer("characteristics", pm.Characteristics()))
	return nil
}

// write persists a matrix variable. A variable already committed under the
// same name by the job that computed it is not written twice.
func (s *Scope) write(c *Compile) error {
	ctx := c.proc.Ctx
	in := s.Ins.Inputs[0]
	name, err := s.storageName(c)
	if err != nil {
		return err
	}
	if c.e == nil {
		return moerr.NewBadConfig(ctx, "write %s without storage engine", name)
	}
	mo, err := c.proc.Vars.GetMatrix(ctx, in.Name)
	if err != nil {
		return err
	}
	if mo.Storage == name {
		return nil
	}
	mc := mo.MC
	if !mc.DimsKnown() {
		mc.Rows, mc.Cols = observedDims(mo.Data, mc)
	}
	pm := mo.Data.ToPartitioned(mc)
	if !mc.NonZerosKnown() {
		mc.NonZeros = pm.NonZeros()
		pm.SetCharacteristics(mc)
	}
	if err := c.e.Write(ctx, name, pm); err != nil {
		return err
	}
	if err := c.proc.Vars.UpdateMatrix(ctx, &process.MatrixObject{
		Name:    mo.Name,
		Storage: name,
		MC:      mc,
		Data:    mo.Data,
	}); err != nil {
		return err
	}
	c.proc.Info("matrix written",
		zap.String("variable", in.Name),
		zap.String("storage", name),
		zap.Stringer("characteristics", mc))
	return nil
}

// observedDims is the extent the blocks of ds cover.
func observedDims(ds *cluster.Dataset, mc types.MatrixCharacteristics) (int64, int64) {
	var rows, cols int64
	for _, p := range ds.Pairs() {
		if r := (p.Index.Row-1)*int64(mc.RowsPerBlock) + int64(p.Block.Rows()); r > rows {
			rows = r
		}
		if c := (p.Index.Col-1)*int64(mc.ColsPerBlock) + int64(p.Block.Cols()); c > cols {
			cols = c
		}
	}
	return rows, cols
}

func (s *Scope) copyVar(c *Compile) error {
	ctx := c.proc.Ctx
	in, out := s.Ins.Inputs[0], s.Ins.Output()
	if in.IsMatrix() {
		mo, err := c.proc.Vars.GetMatrix(ctx, in.Name)
		if err != nil {
			return err
		}
		c.proc.Vars.SetMatrix(&process.MatrixObject{
			Name:    out.Name,
			Storage: mo.Storage,
			MC:      mo.MC,
			Data:    mo.Data,
		})
		c.proc.Vars.AddLineage(out.Name, in.Name)
		return nil
	}
	v, err := scalarValue(c, in)
	if err != nil {
		return err
	}
	c.proc.Vars.SetScalar(out.Name, v)
	return nil
}

func (s *Scope) moveVar(c *Compile) error {
	in, out := s.Ins.Inputs[0], s.Ins.Output()
	if in.IsMatrix() {
		return c.proc.Vars.Move(c.proc.Ctx, in.Name, out.Name)
	}
	if err := s.copyVar(c); err != nil {
		return err
	}
	if in.Name != out.Name {
		c.proc.Vars.Remove(in.Name)
	}
	return nil
}

func (s *Scope) assignVar(c *Compile) error {
	in, out := s.Ins.Inputs[0], s.Ins.Output()
	if !in.IsScalar() {
		return moerr.NewInvalidInput(c.proc.Ctx, "assignvar of non scalar '%s'", in.Name)
	}
	v, err := scalarValue(c, in)
	if err != nil {
		return err
	}
	c.proc.Vars.SetScalar(out.Name, v)
	return nil
}

func scalarValue(c *Compile, op instruction.Operand) (float64, error) {
	if op.Literal {
		return op.LiteralValue(c.proc.Ctx)
	}
	return c.proc.Vars.GetScalar(c.proc.Ctx, op.Name)
}
