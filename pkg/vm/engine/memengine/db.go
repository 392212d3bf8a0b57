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

package memengine

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"github.com/matrixorigin/blockmatrix/pkg/vm/engine"
)

type kv struct {
	k []byte
	v []byte
}

func (a kv) Less(than btree.Item) bool {
	return bytes.Compare(a.k, than.(kv).k) < 0
}

// memDB is an ordered in-memory key value store.
type memDB struct {
	sync.RWMutex
	tree *btree.BTree
}

type memBatch struct {
	db  *memDB
	ops []batchOp
}

// batchOp sets k to v, a nil v deletes k. A ranged op deletes [k, end),
// or every key from k on when end is nil.
type batchOp struct {
	kv
	ranged bool
	end    []byte
}

// memIterator walks a snapshot of the keys taken when it was created.
type memIterator struct {
	items []kv
	pos   int
}

func NewDB() engine.DB {
	return &memDB{tree: btree.New(16)}
}

// New returns a matrix engine that keeps everything in memory.
func New() engine.Engine {
	return engine.New(NewDB())
}

func clone(b []byte) []byte {
	r := make([]byte, len(b))
	copy(r, b)
	return r
}

func (db *memDB) Close() error {
	return nil
}

func (db *memDB) NewBatch() (engine.Batch, error) {
	return &memBatch{db: db}, nil
}

func (db *memDB) NewIterator(prefix []byte) (engine.Iterator, error) {
	db.RLock()
	defer db.RUnlock()
	itr := &memIterator{}
	visit := func(i btree.Item) bool {
		itr.items = append(itr.items, i.(kv))
		return true
	}
	if upper := engine.UpperBound(prefix); upper != nil {
		db.tree.AscendRange(kv{k: prefix}, kv{k: upper}, visit)
	} else {
		db.tree.AscendGreaterOrEqual(kv{k: prefix}, visit)
	}
	return itr, nil
}

func (db *memDB) Del(k []byte) error {
	db.Lock()
	defer db.Unlock()
	db.tree.Delete(kv{k: k})
	return nil
}

func (db *memDB) Set(k, v []byte) error {
	db.Lock()
	defer db.Unlock()
	db.tree.ReplaceOrInsert(kv{k: clone(k), v: clone(v)})
	return nil
}

func (db *memDB) Get(k []byte) ([]byte, error) {
	db.RLock()
	defer db.RUnlock()
	i := db.tree.Get(kv{k: k})
	if i == nil {
		return nil, nil
	}
	return clone(i.(kv).v), nil
}

func (b *memBatch) Cancel() error {
	b.ops = nil
	return nil
}

func (b *memBatch) Commit() error {
	b.db.Lock()
	defer b.db.Unlock()
	for _, op := range b.ops {
		switch {
		case op.ranged:
			var dead []btree.Item
			collect := func(i btree.Item) bool {
				dead = append(dead, i)
				return true
			}
			if op.end != nil {
				b.db.tree.AscendRange(kv{k: op.k}, kv{k: op.end}, collect)
			} else {
				b.db.tree.AscendGreaterOrEqual(kv{k: op.k}, collect)
			}
			for _, i := range dead {
				b.db.tree.Delete(i)
			}
		case op.v == nil:
			b.db.tree.Delete(op.kv)
		default:
			b.db.tree.ReplaceOrInsert(op.kv)
		}
	}
	b.ops = nil
	return nil
}

func (b *memBatch) Del(k []byte) error {
	b.ops = append(b.ops, batchOp{kv: kv{k: clone(k)}})
	return nil
}

func (b *memBatch) DelRange(start, end []byte) error {
	op := batchOp{kv: kv{k: clone(start)}, ranged: true}
	if end != nil {
		op.end = clone(end)
	}
	b.ops = append(b.ops, op)
	return nil
}

func (b *memBatch) Set(k, v []byte) error {
	if v == nil {
		v = []byte{}
	}
	b.ops = append(b.ops, batchOp{kv: kv{k: clone(k), v: clone(v)}})
	return nil
}

func (itr *memIterator) Close() error {
	itr.items = nil
	return nil
}

func (itr *memIterator) Next() error {
	itr.pos++
	return nil
}

func (itr *memIterator) Valid() bool {
	return itr.pos < len(itr.items)
}

func (itr *memIterator) Seek(k []byte) error {
	for itr.pos = 0; itr.pos < len(itr.items); itr.pos++ {
		if bytes.Compare(itr.items[itr.pos].k, k) >= 0 {
			break
		}
	}
	return nil
}

func (itr *memIterator) Key() []byte {
	return clone(itr.items[itr.pos].k)
}

func (itr *memIterator) Value() ([]byte, error) {
	return clone(itr.items[itr.pos].v), nil
}
