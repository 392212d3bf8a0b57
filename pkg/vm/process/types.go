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

package process

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/matrixorigin/blockmatrix/pkg/codegen"
	"github.com/matrixorigin/blockmatrix/pkg/container/matrix"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
	"github.com/matrixorigin/blockmatrix/pkg/vm/cluster"
)

// Limitation holds the block and memory parameters of a program run.
type Limitation struct {
	RowsPerBlock    int
	ColsPerBlock    int
	MiscMemory      int64 // bytes reserved for job bookkeeping
	MultiplyThreads int   // threads of one block multiply
	DefaultReducers int
}

// MatrixObject is a matrix variable bound in the symbol table.
type MatrixObject struct {
	Name string
	// Storage is the name the matrix is persisted under, empty for
	// intermediates.
	Storage string
	MC      types.MatrixCharacteristics
	Data    *cluster.Dataset

	broadcast *matrix.Broadcast
}

// SymbolTable binds the variables of a program run. Output variables keep
// a lineage edge to the inputs they were computed from so a broadcast lives
// as long as any variable depending on it.
type SymbolTable struct {
	sync.Mutex
	matrices map[string]*MatrixObject
	scalars  map[string]float64
	// lineage maps a variable to the variables it was computed from
	lineage map[string][]string
	// refs counts the live dependents of a variable
	refs map[string]int
	// pending holds removed variables that still have dependents
	pending map[string]*MatrixObject
}

// Process contains the state of one program run on the driver.
type Process struct {
	Id      string
	Ctx     context.Context
	Cancel  context.CancelFunc
	Lim     Limitation
	Rt      cluster.Runtime
	Vars    *SymbolTable
	Kernels *codegen.Cache

	logger *zap.Logger
}
