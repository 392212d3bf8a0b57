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

package block

import (
	"bytes"
	"io"

	"github.com/RoaringBitmap/roaring"
	"github.com/pierrec/lz4"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
)

const (
	codecMagic  byte = 'B'
	denseCodec  byte = 0
	sparseCodec byte = 1
	headerSize       = 2 + 8 + 8
)

// MarshalBinary encodes the block as a fixed header followed by an LZ4
// frame. Dense payloads are the raw cells, sparse payloads a length
// prefixed roaring bitmap followed by the aligned values.
func (b *Block) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(codecMagic)
	if b.sparse {
		buf.WriteByte(sparseCodec)
	} else {
		buf.WriteByte(denseCodec)
	}
	buf.Write(types.EncodeFixed(int64(b.rows)))
	buf.Write(types.EncodeFixed(int64(b.cols)))

	w := lz4.NewWriter(&buf)
	if b.sparse {
		pos, err := b.positions.ToBytes()
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(types.EncodeFixed(int64(len(pos)))); err != nil {
			return nil, err
		}
		if _, err := w.Write(pos); err != nil {
			return nil, err
		}
		if _, err := w.Write(types.EncodeSlice(b.values)); err != nil {
			return nil, err
		}
	} else if _, err := w.Write(types.EncodeSlice(b.data)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *Block) UnmarshalBinary(data []byte) error {
	ctx := moerr.Context()
	if len(data) < headerSize || data[0] != codecMagic {
		return moerr.NewInvalidInput(ctx, "not a block payload")
	}
	format := data[1]
	rows := int(types.DecodeFixed[int64](data[2:]))
	cols := int(types.DecodeFixed[int64](data[10:]))
	payload, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data[headerSize:])))
	if err != nil {
		return moerr.ConvertGoError(ctx, err)
	}

	switch format {
	case denseCodec:
		values := decodeValues(payload)
		if len(values) != rows*cols {
			return moerr.NewSizeNotMatch(ctx, "dense block %dx%d with %d cells", rows, cols, len(values))
		}
		*b = Block{rows: rows, cols: cols, data: values}
	case sparseCodec:
		if len(payload) < 8 {
			return moerr.NewUnexpectedEOF(ctx, "sparse block header")
		}
		n := int(types.DecodeFixed[int64](payload))
		if len(payload) < 8+n {
			return moerr.NewUnexpectedEOF(ctx, "sparse block positions")
		}
		positions := roaring.New()
		if err := positions.UnmarshalBinary(payload[8 : 8+n]); err != nil {
			return moerr.ConvertGoError(ctx, err)
		}
		values := decodeValues(payload[8+n:])
		if uint64(len(values)) != positions.GetCardinality() {
			return moerr.NewSizeNotMatch(ctx, "%d positions with %d values", positions.GetCardinality(), len(values))
		}
		*b = Block{rows: rows, cols: cols, sparse: true, positions: positions, values: values}
	default:
		return moerr.NewInvalidInput(ctx, "unknown block format %d", format)
	}
	return nil
}

// decodeValues copies so the block does not alias the payload buffer.
func decodeValues(payload []byte) []float64 {
	values := make([]float64, len(payload)/8)
	copy(types.EncodeSlice(values), payload)
	return values
}
