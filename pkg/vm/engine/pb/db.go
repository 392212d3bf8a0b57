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

package pb

import (
	"errors"

	"github.com/cockroachdb/pebble"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/config"
	"github.com/matrixorigin/blockmatrix/pkg/logutil"
	"github.com/matrixorigin/blockmatrix/pkg/vm/engine"
)

// pebbleDB keeps matrices on disk. Every write goes out with the write
// options picked from the storage config.
type pebbleDB struct {
	dir string
	db  *pebble.DB
	wo  *pebble.WriteOptions
}

type pebbleBatch struct {
	bat *pebble.Batch
	wo  *pebble.WriteOptions
}

type pebbleIterator struct {
	itr *pebble.Iterator
}

// NewDB opens the pebble store under cfg.Dir, creating it if needed.
func NewDB(cfg config.StorageConfig) (engine.DB, error) {
	ctx := moerr.Context()
	if cfg.Dir == "" {
		return nil, moerr.NewBadConfig(ctx, "pebble store without storage.dir")
	}
	cache := pebble.NewCache(cfg.CacheSize)
	defer cache.Unref()
	db, err := pebble.Open(cfg.Dir, &pebble.Options{
		Cache:  cache,
		Logger: logutil.Named("pebble").Sugar(),
	})
	if err != nil {
		return nil, moerr.ConvertGoError(ctx, err)
	}
	wo := pebble.Sync
	if cfg.NoSync {
		wo = pebble.NoSync
	}
	logutil.Info("pebble store opened",
		zap.String("dir", cfg.Dir),
		zap.String("cache", humanize.IBytes(uint64(cfg.CacheSize))),
		zap.Bool("sync", !cfg.NoSync))
	return &pebbleDB{dir: cfg.Dir, db: db, wo: wo}, nil
}

// Open returns a matrix engine over the pebble store under cfg.Dir.
func Open(cfg config.StorageConfig) (engine.Engine, error) {
	db, err := NewDB(cfg)
	if err != nil {
		return nil, err
	}
	return engine.New(db), nil
}

func (p *pebbleDB) Close() error {
	if err := p.db.Flush(); err != nil {
		_ = p.db.Close()
		return err
	}
	logutil.Debug("pebble store closed", zap.String("dir", p.dir))
	return p.db.Close()
}

func (p *pebbleDB) NewBatch() (engine.Batch, error) {
	return &pebbleBatch{bat: p.db.NewBatch(), wo: p.wo}, nil
}

func (p *pebbleDB) NewIterator(prefix []byte) (engine.Iterator, error) {
	itr := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: engine.UpperBound(prefix),
	})
	itr.First()
	return &pebbleIterator{itr: itr}, nil
}

func (p *pebbleDB) Del(k []byte) error {
	return p.db.Delete(k, p.wo)
}

func (p *pebbleDB) Set(k, v []byte) error {
	return p.db.Set(k, v, p.wo)
}

func (p *pebbleDB) Get(k []byte) ([]byte, error) {
	v, closer, err := p.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

func (b *pebbleBatch) Cancel() error {
	return b.bat.Close()
}

// Commit applies the batch and releases it.
func (b *pebbleBatch) Commit() error {
	if err := b.bat.Commit(b.wo); err != nil {
		_ = b.bat.Close()
		return err
	}
	return b.bat.Close()
}

func (b *pebbleBatch) Del(k []byte) error {
	return b.bat.Delete(k, nil)
}

// DelRange drops the blocks of a matrix with one range tombstone.
func (b *pebbleBatch) DelRange(start, end []byte) error {
	return b.bat.DeleteRange(start, end, nil)
}

func (b *pebbleBatch) Set(k, v []byte) error {
	return b.bat.Set(k, v, nil)
}

func (i *pebbleIterator) Close() error {
	return i.itr.Close()
}

func (i *pebbleIterator) Next() error {
	i.itr.Next()
	return i.itr.Error()
}

func (i *pebbleIterator) Valid() bool {
	return i.itr.Valid()
}

func (i *pebbleIterator) Seek(k []byte) error {
	i.itr.SeekGE(k)
	return i.itr.Error()
}

func (i *pebbleIterator) Key() []byte {
	return append([]byte(nil), i.itr.Key()...)
}

func (i *pebbleIterator) Value() ([]byte, error) {
	return append([]byte(nil), i.itr.Value()...), i.itr.Error()
}
