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
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/fagongzi/util/format"
	"go.uber.org/zap"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/container/block"
	"github.com/matrixorigin/blockmatrix/pkg/container/matrix"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
	"github.com/matrixorigin/blockmatrix/pkg/logutil"
)

const (
	metaPrefix  = "c/"
	blockPrefix = "m/"
	nameEnd     = 0
)

type store struct {
	db DB
}

// New keeps matrices in db: one characteristics record per matrix under
// c/<name>, and one record per block under m/<name>\x00<row><col> with big
// endian block indexes so a prefix scan returns blocks in index order.
func New(db DB) Engine {
	return &store{db: db}
}

func metaKey(name string) []byte {
	return []byte(metaPrefix + name)
}

func blocksKey(name string) []byte {
	k := make([]byte, 0, len(blockPrefix)+len(name)+1)
	k = append(k, blockPrefix...)
	k = append(k, name...)
	return append(k, nameEnd)
}

func blockKey(name string, idx types.BlockIndex) []byte {
	k := blocksKey(name)
	k = append(k, format.Uint64ToBytes(uint64(idx.Row))...)
	return append(k, format.Uint64ToBytes(uint64(idx.Col))...)
}

func decodeBlockKey(prefix, k []byte) types.BlockIndex {
	k = k[len(prefix):]
	return types.BlockIndex{
		Row: int64(format.MustBytesToUint64(k[:8])),
		Col: int64(format.MustBytesToUint64(k[8:16])),
	}
}

func checkName(ctx context.Context, name string) error {
	if name == "" || strings.IndexByte(name, nameEnd) >= 0 {
		return moerr.NewInvalidInput(ctx, "bad matrix name %q", name)
	}
	return nil
}

func (s *store) Close() error {
	return s.db.Close()
}

func (s *store) Characteristics(ctx context.Context, name string) (types.MatrixCharacteristics, error) {
	if err := checkName(ctx, name); err != nil {
		return types.MatrixCharacteristics{}, err
	}
	v, err := s.db.Get(metaKey(name))
	if err != nil {
		return types.MatrixCharacteristics{}, moerr.ConvertGoError(ctx, err)
	}
	if v == nil {
		return types.MatrixCharacteristics{}, moerr.NewNoSuchMatrix(ctx, name)
	}
	return types.DecodeCharacteristics(v)
}

func (s *store) Read(ctx context.Context, name string) (*matrix.Partitioned, error) {
	mc, err := s.Characteristics(ctx, name)
	if err != nil {
		return nil, err
	}
	pm := matrix.NewPartitioned(mc)
	prefix := blocksKey(name)
	itr, err := s.db.NewIterator(prefix)
	if err != nil {
		return nil, moerr.ConvertGoError(ctx, err)
	}
	defer itr.Close()
	for ; itr.Valid(); _ = itr.Next() {
		k := itr.Key()
		if !bytes.HasPrefix(k, prefix) {
			break
		}
		v, err := itr.Value()
		if err != nil {
			return nil, moerr.ConvertGoError(ctx, err)
		}
		blk := new(block.Block)
		if err := blk.UnmarshalBinary(v); err != nil {
			return nil, err
		}
		pm.Put(decodeBlockKey(prefix, k), blk)
	}
	if err := pm.Validate(ctx); err != nil {
		return nil, err
	}
	return pm, nil
}

func (s *store) Write(ctx context.Context, name string, pm *matrix.Partitioned) error {
	w, err := s.NewDeferredWriter(ctx, name)
	if err != nil {
		return err
	}
	var perr error
	pm.Ascend(func(p matrix.Pair) bool {
		perr = w.Put(p.Index, p.Block)
		return perr == nil
	})
	if perr != nil {
		_ = w.Abort()
		return perr
	}
	return w.Commit(ctx, pm.Characteristics())
}

func (s *store) Delete(ctx context.Context, name string) error {
	if err := checkName(ctx, name); err != nil {
		return err
	}
	bat, err := s.db.NewBatch()
	if err != nil {
		return moerr.ConvertGoError(ctx, err)
	}
	if err := s.deleteAll(bat, name); err != nil {
		_ = bat.Cancel()
		return moerr.ConvertGoError(ctx, err)
	}
	return moerr.ConvertGoError(ctx, bat.Commit())
}

func (s *store) deleteAll(bat Batch, name string) error {
	prefix := blocksKey(name)
	if err := bat.DelRange(prefix, UpperBound(prefix)); err != nil {
		return err
	}
	return bat.Del(metaKey(name))
}

func (s *store) NewDeferredWriter(ctx context.Context, name string) (DeferredWriter, error) {
	if err := checkName(ctx, name); err != nil {
		return nil, err
	}
	return &deferredWriter{
		s:      s,
		name:   name,
		blocks: make(map[types.BlockIndex][]byte),
	}, nil
}

type deferredWriter struct {
	sync.Mutex
	s      *store
	name   string
	blocks map[types.BlockIndex][]byte
	done   bool
}

func (w *deferredWriter) Put(idx types.BlockIndex, blk *block.Block) error {
	data, err := blk.MarshalBinary()
	if err != nil {
		return err
	}
	w.Lock()
	defer w.Unlock()
	if w.done {
		return moerr.NewInvalidState(moerr.Context(), "writer of %s is closed", w.name)
	}
	w.blocks[idx] = data
	return nil
}

// Commit replaces whatever was stored under the name with the collected
// blocks and mc, in one batch.
func (w *deferredWriter) Commit(ctx context.Context, mc types.MatrixCharacteristics) error {
	w.Lock()
	defer w.Unlock()
	if w.done {
		return moerr.NewInvalidState(ctx, "writer of %s is closed", w.name)
	}
	// an empty matrix commits with zero rows or cols
	if mc.Rows < 0 || mc.Cols < 0 {
		return moerr.NewInvalidState(ctx, "commit %s with unknown dimensions %s", w.name, mc)
	}
	for idx := range w.blocks {
		if idx.Row < 1 || idx.Col < 1 || idx.Row > mc.NumRowBlocks() || idx.Col > mc.NumColBlocks() {
			return moerr.NewInvalidState(ctx, "block %s outside of %s %s", idx, w.name, mc)
		}
	}
	bat, err := w.s.db.NewBatch()
	if err != nil {
		return moerr.ConvertGoError(ctx, err)
	}
	if err := w.commit(bat, mc); err != nil {
		_ = bat.Cancel()
		return moerr.ConvertGoError(ctx, err)
	}
	w.done = true
	w.blocks = nil
	logutil.Debug("matrix committed",
		zap.String("name", w.name),
		zap.String("characteristics", mc.String()))
	return nil
}

func (w *deferredWriter) commit(bat Batch, mc types.MatrixCharacteristics) error {
	if err := w.s.deleteAll(bat, w.name); err != nil {
		return err
	}
	for idx, data := range w.blocks {
		if err := bat.Set(blockKey(w.name, idx), data); err != nil {
			return err
		}
	}
	if err := bat.Set(metaKey(w.name), types.EncodeCharacteristics(mc)); err != nil {
		return err
	}
	return bat.Commit()
}

func (w *deferredWriter) Abort() error {
	w.Lock()
	defer w.Unlock()
	w.done = true
	w.blocks = nil
	return nil
}
