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

package mmcj

import (
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
	"github.com/matrixorigin/blockmatrix/pkg/vm/cluster"
	"github.com/matrixorigin/blockmatrix/pkg/vm/engine"
	"github.com/matrixorigin/blockmatrix/pkg/vm/process"
)

const jobName = "MMCJ"

const (
	// the cached side sorts first within a join key
	cachedTag   uint8 = 0
	streamedTag uint8 = 1
)

// JobReturn reports the outcome of one multiply job.
type JobReturn struct {
	Stats      types.MatrixCharacteristics
	Successful bool
	JobID      string
}

type container struct {
	left, right *process.MatrixObject
	// cacheLeft is true when the blocks of the left input are cached by
	// the reducers and the right ones streamed.
	cacheLeft   bool
	numReducers int
	cacheSize   int64
	stats       types.MatrixCharacteristics
}

// Argument of a multiply job computing Output = Left %*% Right.
type Argument struct {
	ctr *container

	Left   string
	Right  string
	Output string
	// Analyzer sizes the job; required.
	Analyzer cluster.Analyzer
	// Engine, when set, receives outputs whose dimensions are only known
	// after the job ran.
	Engine engine.Engine

	// Result is set by Call, also on failure.
	Result *JobReturn
}
