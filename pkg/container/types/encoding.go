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
	"unsafe"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
)

const (
	CharacteristicsSize int = 8 + 8 + 8 + 8 + 8
	BlockIndexSize      int = 16
)

// FixedSizeT are the numeric types stored in place.
type FixedSizeT interface {
	~int32 | ~int64 | ~uint32 | ~uint64 | ~float64
}

func EncodeSlice[T any](v []T) []byte {
	var t T
	sz := int(unsafe.Sizeof(t))
	if len(v) > 0 {
		return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*sz)[:len(v)*sz]
	}
	return nil
}

func DecodeSlice[T any](v []byte) []T {
	var t T
	sz := int(unsafe.Sizeof(t))

	if len(v)%sz != 0 {
		panic(moerr.NewInternalError(moerr.Context(), "decode slice that is not a multiple of element size"))
	}

	if len(v) > 0 {
		return unsafe.Slice((*T)(unsafe.Pointer(&v[0])), len(v)/sz)[:len(v)/sz]
	}
	return nil
}

func EncodeFixed[T FixedSizeT](v T) []byte {
	sz := unsafe.Sizeof(v)
	return unsafe.Slice((*byte)(unsafe.Pointer(&v)), sz)
}

func DecodeFixed[T FixedSizeT](v []byte) T {
	return *(*T)(unsafe.Pointer(&v[0]))
}

// EncodeCharacteristics returns a self-owned fixed size record.
func EncodeCharacteristics(mc MatrixCharacteristics) []byte {
	buf := make([]byte, 0, CharacteristicsSize)
	buf = append(buf, EncodeFixed(mc.Rows)...)
	buf = append(buf, EncodeFixed(mc.Cols)...)
	buf = append(buf, EncodeFixed(int64(mc.RowsPerBlock))...)
	buf = append(buf, EncodeFixed(int64(mc.ColsPerBlock))...)
	buf = append(buf, EncodeFixed(mc.NonZeros)...)
	return buf
}

func DecodeCharacteristics(v []byte) (MatrixCharacteristics, error) {
	if len(v) != CharacteristicsSize {
		return MatrixCharacteristics{}, moerr.NewInvalidInput(moerr.Context(),
			"characteristics record of %d bytes", len(v))
	}
	return MatrixCharacteristics{
		Rows:         DecodeFixed[int64](v[0:]),
		Cols:         DecodeFixed[int64](v[8:]),
		RowsPerBlock: int(DecodeFixed[int64](v[16:])),
		ColsPerBlock: int(DecodeFixed[int64](v[24:])),
		NonZeros:     DecodeFixed[int64](v[32:]),
	}, nil
}
