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
	"bytes"

	"go.uber.org/zap"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/sql/colexec/fused"
	"github.com/matrixorigin/blockmatrix/pkg/sql/colexec/mmcj"
	"github.com/matrixorigin/blockmatrix/pkg/sql/instruction"
	"github.com/matrixorigin/blockmatrix/pkg/vm"
	"github.com/matrixorigin/blockmatrix/pkg/vm/cluster"
	"github.com/matrixorigin/blockmatrix/pkg/vm/engine"
	"github.com/matrixorigin/blockmatrix/pkg/vm/process"
)

// New is used to new an object of compile
func New(e engine.Engine, a cluster.Analyzer, d *instruction.Dispatcher, proc *process.Process) *Compile {
	if d == nil {
		d = instruction.NewDispatcher()
	}
	return &Compile{
		e:    e,
		a:    a,
		d:    d,
		proc: proc,
	}
}

// Compile parses a program and builds one scope per instruction. Nothing
// runs before the whole program compiled.
func (c *Compile) Compile(prog string) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = moerr.ConvertPanicError(c.proc.Ctx, e)
		}
	}()
	list, err := c.d.ParseList(c.proc.Ctx, prog)
	if err != nil {
		return err
	}
	ss := make([]*Scope, 0, len(list))
	for i, ins := range list {
		ss = append(ss, c.compileScope(i, ins))
	}
	c.scopes = ss
	return nil
}

// Scopes returns the compiled scopes in program order.
func (c *Compile) Scopes() []*Scope {
	return c.scopes
}

// Run executes the scopes in program order and stops at the first failure.
func (c *Compile) Run() error {
	for i, s := range c.scopes {
		if err := s.Run(c); err != nil {
			c.proc.Error("instruction failed",
				zap.Int("idx", i),
				zap.String("instruction", s.String()),
				zap.Error(err))
			return err
		}
	}
	return nil
}

func (c *Compile) compileScope(idx int, ins *instruction.Instruction) *Scope {
	s := &Scope{Magic: Unsupported, Ins: ins}
	switch ins.Kind {
	case instruction.Variable:
		switch ins.Opcode {
		case "createvar":
			s.Magic = CreateVar
		case "read":
			s.Magic = Read
		case "write":
			s.Magic = Write
		case "rmvar":
			s.Magic = RemoveVar
		case "cpvar":
			s.Magic = CopyVar
		case "mvvar":
			s.Magic = MoveVar
		case "assignvar":
			s.Magic = AssignVar
		}
	case instruction.SpoofFused:
		s.Magic = Normal
		s.Instructions = vm.Instructions{{
			Op:  vm.Fused,
			Idx: idx,
			Arg: fused.NewArgument(*ins.Fused, ins.Inputs, ins.Output()),
		}}
	case instruction.MMCJ, instruction.AggregateBinary:
		// the in-process ba+* is not a multiply job
		if ins.ExecType != instruction.Spark && ins.ExecType != instruction.MR {
			break
		}
		s.Magic = Normal
		s.Instructions = vm.Instructions{{
			Op:  vm.MMCJ,
			Idx: idx,
			Arg: &mmcj.Argument{
				Left:     ins.Inputs[0].Name,
				Right:    ins.Inputs[1].Name,
				Output:   ins.Output().Name,
				Analyzer: c.a,
				Engine:   c.e,
			},
		}}
	}
	return s
}

// String renders the scope for logs.
func (s *Scope) String() string {
	if s.Magic != Normal {
		return s.Ins.String()
	}
	buf := new(bytes.Buffer)
	vm.String(s.Instructions, buf)
	return buf.String()
}
