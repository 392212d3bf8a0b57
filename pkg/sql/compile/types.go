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
	"github.com/matrixorigin/blockmatrix/pkg/sql/instruction"
	"github.com/matrixorigin/blockmatrix/pkg/vm"
	"github.com/matrixorigin/blockmatrix/pkg/vm/cluster"
	"github.com/matrixorigin/blockmatrix/pkg/vm/engine"
	"github.com/matrixorigin/blockmatrix/pkg/vm/process"
)

const (
	Normal = iota // distributed operators run through the vm
	CreateVar
	Read
	Write
	RemoveVar
	CopyVar
	MoveVar
	AssignVar
	Unsupported
)

// Scope is the execution unit of one program instruction.
type Scope struct {
	// Magic specifies how the scope runs
	Magic int

	// Ins is the parsed instruction the scope was compiled from.
	Ins *instruction.Instruction

	// Instructions holds the operators of a Normal scope.
	Instructions vm.Instructions
}

// Compile holds the scopes of one program and what they run against.
type Compile struct {
	e      engine.Engine
	a      cluster.Analyzer
	d      *instruction.Dispatcher
	proc   *process.Process
	scopes []*Scope
}
