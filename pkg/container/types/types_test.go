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

package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCharacteristicsBlocks(t *testing.T) {
	mc := NewCharacteristics(4, 3, 2, 2)
	require.True(t, mc.DimsKnown())
	require.False(t, mc.NonZerosKnown())
	require.Equal(t, int64(2), mc.NumRowBlocks())
	require.Equal(t, int64(2), mc.NumColBlocks())

	r, c := mc.BlockExtent(BlockIndex{Row: 2, Col: 2})
	require.Equal(t, 2, r)
	require.Equal(t, 1, c)

	unknown := UnknownCharacteristics(1000, 1000)
	require.False(t, unknown.DimsKnown())
	require.Equal(t, Unknown, unknown.NumRowBlocks())
	require.Equal(t, 1.0, unknown.Sparsity())
}

func TestCharacteristicsClamped(t *testing.T) {
	mc := NewCharacteristics(10, 2000, 1000, 1000).Clamped()
	require.Equal(t, 10, mc.RowsPerBlock)
	require.Equal(t, 1000, mc.ColsPerBlock)

	unknown := UnknownCharacteristics(1000, 1000).Clamped()
	require.Equal(t, 1000, unknown.RowsPerBlock)
}

func TestBlockIndexLess(t *testing.T) {
	require.True(t, BlockIndex{1, 5}.Less(BlockIndex{2, 1}))
	require.True(t, BlockIndex{2, 1}.Less(BlockIndex{2, 2}))
	require.False(t, BlockIndex{2, 2}.Less(BlockIndex{2, 2}))
}

func TestParseTypes(t *testing.T) {
	dt, ok := ParseDataType("matrix")
	require.True(t, ok)
	require.Equal(t, Matrix, dt)
	_, ok = ParseDataType("TENSOR")
	require.False(t, ok)

	vt, ok := ParseValueType("DOUBLE")
	require.True(t, ok)
	require.Equal(t, "DOUBLE", vt.String())
}

func TestCharacteristicsEncoding(t *testing.T) {
	mc := NewCharacteristics(1000, 20, 100, 20)
	mc.NonZeros = 321
	got, err := DecodeCharacteristics(EncodeCharacteristics(mc))
	require.NoError(t, err)
	require.Equal(t, mc, got)

	_, err = DecodeCharacteristics([]byte{1, 2})
	require.Error(t, err)

	xs := []float64{1.5, -2, 0}
	require.Equal(t, xs, DecodeSlice[float64](EncodeSlice(xs)))
}
