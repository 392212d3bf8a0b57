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

	"github.com/matrixorigin/blockmatrix/pkg/sql/colexec/fused"
	"github.com/matrixorigin/blockmatrix/pkg/sql/colexec/mmcj"
	"github.com/matrixorigin/blockmatrix/pkg/vm/process"
)

var stringFunc = [...]func(any, *bytes.Buffer){
	Fused: fused.String,
	MMCJ:  mmcj.String,
}

var prepareFunc = [...]func(*process.Process, any) error{
	Fused: fused.Prepare,
	MMCJ:  mmcj.Prepare,
}

var execFunc = [...]func(int, *process.Process, any) (bool, error){
	Fused: fused.Call,
	MMCJ:  mmcj.Call,
}
