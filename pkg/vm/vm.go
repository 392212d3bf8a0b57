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

package vm

import (
	"bytes"

	"go.uber.org/zap"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/vm/process"
)

// String range instructions and call each operator's string function to show a program
func String(ins Instructions, buf *bytes.Buffer) {
	for i, in := range ins {
		if i > 0 {
			buf.WriteString(" -> ")
		}
		stringFunc[in.Op](in.Arg, buf)
	}
}

// Prepare range instructions and do init work for each operator's argument by calling its prepare function
func Prepare(ins Instructions, proc *process.Process) error {
	for _, in := range ins {
		if err := prepareFunc[in.Op](proc, in.Arg); err != nil {
			return err
		}
	}
	return nil
}

// Run prepares and calls the instructions in order. An instruction is
// prepared only after the one before it has bound its output.
func Run(ins Instructions, proc *process.Process) (end bool, err error) {
	defer func() {
		if e := recover(); e != nil {
			err = moerr.ConvertPanicError(proc.Ctx, e)
			end = false
		}
	}()

	for _, in := range ins {
		if err = proc.Ctx.Err(); err != nil {
			return false, moerr.ConvertGoError(proc.Ctx, err)
		}
		if err = prepareFunc[in.Op](proc, in.Arg); err != nil {
			return false, err
		}
		if end, err = execFunc[in.Op](in.Idx, proc, in.Arg); err != nil {
			return false, err
		}
		if !end {
			return false, moerr.NewInvalidState(proc.Ctx, "instruction %d did not finish", in.Idx)
		}
		proc.Debug("instruction done", zap.Int("idx", in.Idx))
	}
	return true, nil
}
