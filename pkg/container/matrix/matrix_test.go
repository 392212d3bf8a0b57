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

package matrix

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/container/block"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
)

func seq(n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i + 1)
	}
	return xs
}

func TestFromDenseRoundTrip(t *testing.T) {
	ctx := context.TODO()
	data := seq(12)
	pm := FromDense(4, 3, data, 2, 2)
	require.Equal(t, 4, pm.Len())
	require.Equal(t, int64(12), pm.Characteristics().NonZeros)
	require.NoError(t, pm.Validate(ctx))

	blk, ok := pm.Get(types.BlockIndex{Row: 2, Col: 2})
	require.True(t, ok)
	require.Equal(t, 2, blk.Rows())
	require.Equal(t, 1, blk.Cols())
	require.Equal(t, []float64{9, 12}, blk.Values())

	got, err := pm.ToDense(ctx)
	require.NoError(t, err)
	require.Equal(t, data, got)

	var order []types.BlockIndex
	for _, p := range pm.Pairs() {
		order = append(order, p.Index)
	}
	require.Equal(t, []types.BlockIndex{{Row: 1, Col: 1}, {Row: 1, Col: 2}, {Row: 2, Col: 1}, {Row: 2, Col: 2}}, order)
}

func TestValidate(t *testing.T) {
	ctx := context.TODO()
	pm := NewPartitioned(types.NewCharacteristics(4, 3, 2, 2))
	pm.Put(types.BlockIndex{Row: 2, Col: 2}, block.NewDense(2, 2, nil))
	require.True(t, moerr.IsMoErrCode(pm.Validate(ctx), moerr.ErrSizeNotMatch))

	pm = NewPartitioned(types.NewCharacteristics(4, 3, 2, 2))
	pm.Put(types.BlockIndex{Row: 3, Col: 1}, block.NewDense(2, 2, nil))
	require.True(t, moerr.IsMoErrCode(pm.Validate(ctx), moerr.ErrInvalidInput))

	pm = NewPartitioned(types.NewCharacteristics(4, 3, 0, 2))
	require.Error(t, pm.Validate(ctx))

	pm = NewPartitioned(types.UnknownCharacteristics(2, 2))
	pm.Put(types.BlockIndex{Row: 7, Col: 1}, block.NewDense(2, 1, nil))
	require.NoError(t, pm.Validate(ctx))
	_, err := pm.ToDense(ctx)
	require.Error(t, err)
}

func TestSplit(t *testing.T) {
	pm := FromDense(4, 4, seq(16), 1, 1)
	for _, n := range []int{1, 4, 16, 32} {
		parts := pm.Split(n)
		require.Equal(t, n, len(parts))
		total := 0
		for _, part := range parts {
			total += len(part)
		}
		require.Equal(t, 16, total)
	}
	require.Equal(t, 1, len(pm.Split(0)))
}

func TestBroadcastClamp(t *testing.T) {
	// a column vector with two row blocks and one column block
	vec := FromDense(4, 1, seq(4), 2, 2)
	b := NewBroadcast(vec.Characteristics(), vec.Pairs())
	require.Equal(t, int64(2), b.NumRowBlocks())
	require.Equal(t, int64(1), b.NumColBlocks())

	first := b.GetBlock(1, 1)
	require.Equal(t, first, b.GetClamped(5, 1))
	require.Equal(t, first, b.GetClamped(1, 3))
	require.Equal(t, b.GetBlock(2, 1), b.GetClamped(2, 7))

	empty := NewBroadcast(types.NewCharacteristics(3, 3, 2, 2), nil)
	zero := empty.GetBlock(2, 2)
	require.Equal(t, 1, zero.Rows())
	require.Equal(t, int64(0), zero.NonZeros())
	require.Equal(t, 0, empty.Len())
}
