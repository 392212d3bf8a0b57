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

package codegen

import (
	"context"
	"fmt"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/container/block"
)

// MMChainName computes t(X) %*% (X %*% v) per row block of X, or
// t(X) %*% (w * (X %*% v)) when the payload is "XtwXv". Side input 0 is v,
// side input 1 is w.
const MMChainName = "mmchain"

const (
	chainXtXv  = "XtXv"
	chainXtwXv = "XtwXv"
)

type mmChain struct {
	weighted bool
}

func newMMChain(payload []byte) (Kernel, error) {
	switch string(payload) {
	case chainXtXv:
		return &mmChain{}, nil
	case chainXtwXv:
		return &mmChain{weighted: true}, nil
	}
	return nil, fmt.Errorf("unknown chain type %q", payload)
}

func (k *mmChain) Family() Family {
	return RowAggregate
}

func (k *mmChain) String() string {
	if k.weighted {
		return chainXtwXv
	}
	return chainXtXv
}

func (k *mmChain) Execute(ctx context.Context, in *block.Block, sides []*block.Block, _ []float64) (*block.Block, error) {
	need := 1
	if k.weighted {
		need = 2
	}
	if len(sides) < need {
		return nil, moerr.NewRuntimeKernel(ctx, MMChainName, "needs %d side inputs, got %d", need, len(sides))
	}
	v := sides[0]
	if v.Rows() != in.Cols() || v.Cols() != 1 {
		return nil, moerr.NewRuntimeKernel(ctx, MMChainName, "vector %dx%d does not match block %dx%d",
			v.Rows(), v.Cols(), in.Rows(), in.Cols())
	}
	q, err := block.MatVec(ctx, in, v.Values())
	if err != nil {
		return nil, err
	}
	if k.weighted {
		w := sides[1]
		if w.Rows() != in.Rows() || w.Cols() != 1 {
			return nil, moerr.NewRuntimeKernel(ctx, MMChainName, "weights %dx%d do not match block %dx%d",
				w.Rows(), w.Cols(), in.Rows(), in.Cols())
		}
		for i, wi := range w.Values() {
			q[i] *= wi
		}
	}
	return block.TransposeMultiply(ctx, in, block.NewDense(in.Rows(), 1, q))
}
