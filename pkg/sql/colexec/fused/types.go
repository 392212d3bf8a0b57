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
	"github.com/matrixorigin/blockmatrix/pkg/codegen"
	"github.com/matrixorigin/blockmatrix/pkg/container/matrix"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
	"github.com/matrixorigin/blockmatrix/pkg/sql/instruction"
	"github.com/matrixorigin/blockmatrix/pkg/vm/process"
)

type container struct {
	kernel  codegen.Kernel
	input   *process.MatrixObject
	sides   []*matrix.Broadcast
	scalars []float64
	// mc is the derived output shape, meaningless for scalar outputs
	mc types.MatrixCharacteristics
}

// Argument of a fused operator. Input is the primary matrix that is
// processed block by block; every other matrix operand is broadcast.
type Argument struct {
	ctr *container

	Desc       codegen.Descriptor
	Input      string
	SideInputs []string
	Scalars    []instruction.Operand
	Output     instruction.Operand
}

// NewArgument splits the operands of a fused instruction. The first
// operand is the primary input; the remaining ones are side inputs and
// scalars in the order they appear.
func NewArgument(desc codegen.Descriptor, inputs []instruction.Operand, output instruction.Operand) *Argument {
	arg := &Argument{Desc: desc, Output: output}
	for i, op := range inputs {
		switch {
		case i == 0:
			arg.Input = op.Name
		case op.IsMatrix():
			arg.SideInputs = append(arg.SideInputs, op.Name)
		default:
			arg.Scalars = append(arg.Scalars, op)
		}
	}
	return arg
}
