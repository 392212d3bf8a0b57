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

package engine

import (
	"context"

	"github.com/matrixorigin/blockmatrix/pkg/container/block"
	"github.com/matrixorigin/blockmatrix/pkg/container/matrix"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
)

// DB is the ordered key value store matrices are persisted in.
type DB interface {
	Close() error
	NewBatch() (Batch, error)
	// NewIterator iterates every key starting with prefix.
	NewIterator(prefix []byte) (Iterator, error)
	Del([]byte) error
	Set([]byte, []byte) error
	// Get returns nil for a missing key.
	Get([]byte) ([]byte, error)
}

// Batch applies its writes atomically on Commit.
type Batch interface {
	Cancel() error
	Commit() error
	Del([]byte) error
	// DelRange deletes every key in [start, end).
	DelRange(start, end []byte) error
	Set([]byte, []byte) error
}

type Iterator interface {
	Close() error
	Next() error
	Valid() bool
	Seek([]byte) error
	Key() []byte
	Value() ([]byte, error)
}

// Engine stores blocked matrices by name. A matrix is visible once its
// characteristics are committed.
type Engine interface {
	Characteristics(ctx context.Context, name string) (types.MatrixCharacteristics, error)
	Read(ctx context.Context, name string) (*matrix.Partitioned, error)
	Write(ctx context.Context, name string, pm *matrix.Partitioned) error
	// NewDeferredWriter starts an output whose dimensions are settled
	// only when it is committed.
	NewDeferredWriter(ctx context.Context, name string) (DeferredWriter, error)
	Delete(ctx context.Context, name string) error
	Close() error
}

// DeferredWriter collects the blocks of one output. Put may be called
// concurrently. Nothing is visible before Commit, and Abort drops it all.
type DeferredWriter interface {
	Put(idx types.BlockIndex, blk *block.Block) error
	Commit(ctx context.Context, mc types.MatrixCharacteristics) error
	Abort() error
}

// UpperBound is the smallest key greater than every key with prefix k.
func UpperBound(k []byte) []byte {
	u := make([]byte, len(k))
	copy(u, k)
	for i := len(u) - 1; i >= 0; i-- {
		u[i] = u[i] + 1
		if u[i] != 0 {
			return u[:i+1]
		}
	}
	return nil
}
