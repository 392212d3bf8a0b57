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

type OpType int

const (
	Fused OpType = iota
	MMCJ
)

// Instruction contains one distributed operator of a program
type Instruction struct {
	// Op specified the operator code of an instruction.
	Op OpType
	// Idx specified the position of the instruction in its program.
	Idx int
	// Arg contains the operand of this instruction.
	Arg any
}

type Instructions []Instruction
