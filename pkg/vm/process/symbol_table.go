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

package process

import (
	"context"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/container/matrix"
	"github.com/matrixorigin/blockmatrix/pkg/vm/cluster"
)

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		matrices: make(map[string]*MatrixObject),
		scalars:  make(map[string]float64),
		lineage:  make(map[string][]string),
		refs:     make(map[string]int),
		pending:  make(map[string]*MatrixObject),
	}
}

// SetMatrix binds mo under its name. The previous binding of the name
// gives up its broadcast and its own lineage. Dependents of the name now
// count on mo.
func (st *SymbolTable) SetMatrix(mo *MatrixObject) {
	st.Lock()
	defer st.Unlock()
	delete(st.scalars, mo.Name)
	st.unbind(mo.Name)
	st.matrices[mo.Name] = mo
}

// UpdateMatrix replaces the binding of mo.Name by mo, which holds the same
// data. Lineage and broadcast carry over.
func (st *SymbolTable) UpdateMatrix(ctx context.Context, mo *MatrixObject) error {
	st.Lock()
	defer st.Unlock()
	old, ok := st.matrices[mo.Name]
	if !ok {
		return moerr.NewNoSuchMatrix(ctx, mo.Name)
	}
	if old.Data != mo.Data {
		return moerr.NewInvalidState(ctx, "update of '%s' with other data", mo.Name)
	}
	mo.broadcast = old.broadcast
	st.matrices[mo.Name] = mo
	return nil
}

// Move renames a matrix variable. The new name takes over its lineage,
// its broadcast and its dependents.
func (st *SymbolTable) Move(ctx context.Context, from, to string) error {
	st.Lock()
	defer st.Unlock()
	mo, ok := st.matrices[from]
	if !ok {
		return moerr.NewNoSuchMatrix(ctx, from)
	}
	if from == to {
		return nil
	}
	delete(st.scalars, to)
	st.unbind(to)
	delete(st.matrices, from)
	st.matrices[to] = &MatrixObject{
		Name:      to,
		Storage:   mo.Storage,
		MC:        mo.MC,
		Data:      mo.Data,
		broadcast: mo.broadcast,
	}
	if parents, ok := st.lineage[from]; ok {
		st.lineage[to] = parents
		delete(st.lineage, from)
	}
	if n := st.refs[from]; n > 0 {
		for _, inputs := range st.lineage {
			for i := range inputs {
				if inputs[i] == from {
					inputs[i] = to
				}
			}
		}
		st.refs[to] += n
		delete(st.refs, from)
	}
	return nil
}

func (st *SymbolTable) GetMatrix(ctx context.Context, name string) (*MatrixObject, error) {
	st.Lock()
	defer st.Unlock()
	mo, ok := st.matrices[name]
	if !ok {
		return nil, moerr.NewNoSuchMatrix(ctx, name)
	}
	return mo, nil
}

func (st *SymbolTable) SetScalar(name string, v float64) {
	st.Lock()
	defer st.Unlock()
	st.unbind(name)
	delete(st.matrices, name)
	st.scalars[name] = v
}

func (st *SymbolTable) GetScalar(ctx context.Context, name string) (float64, error) {
	st.Lock()
	defer st.Unlock()
	v, ok := st.scalars[name]
	if !ok {
		return 0, moerr.NewInvalidInput(ctx, "no such scalar '%s'", name)
	}
	return v, nil
}

// Names lists the bound variables in order.
func (st *SymbolTable) Names() []string {
	st.Lock()
	defer st.Unlock()
	names := append(maps.Keys(st.matrices), maps.Keys(st.scalars)...)
	slices.Sort(names)
	return names
}

// Broadcast returns the broadcast of a matrix variable, creating it on
// first use.
func (st *SymbolTable) Broadcast(ctx context.Context, rt cluster.Runtime, name string) (*matrix.Broadcast, error) {
	mo, err := st.GetMatrix(ctx, name)
	if err != nil {
		return nil, err
	}
	st.Lock()
	bc := mo.broadcast
	st.Unlock()
	if bc != nil {
		return bc, nil
	}
	bc, err = rt.Broadcast(ctx, mo.Data.ToPartitioned(mo.MC))
	if err != nil {
		return nil, err
	}
	st.Lock()
	defer st.Unlock()
	if mo.broadcast == nil {
		mo.broadcast = bc
	}
	return mo.broadcast, nil
}

// LiveBroadcasts counts the broadcasts not released yet.
func (st *SymbolTable) LiveBroadcasts() int {
	st.Lock()
	defer st.Unlock()
	n := 0
	for _, mo := range st.matrices {
		if mo.broadcast != nil {
			n++
		}
	}
	for _, mo := range st.pending {
		if mo.broadcast != nil {
			n++
		}
	}
	return n
}

// AddLineage records that output was computed from inputs.
func (st *SymbolTable) AddLineage(output string, inputs ...string) {
	st.Lock()
	defer st.Unlock()
	for _, in := range inputs {
		if in == output {
			continue
		}
		st.lineage[output] = append(st.lineage[output], in)
		st.refs[in]++
	}
}

// Lineage returns the variables output was computed from.
func (st *SymbolTable) Lineage(output string) []string {
	st.Lock()
	defer st.Unlock()
	return slices.Clone(st.lineage[output])
}

// Remove unbinds a variable. Its broadcast is released once no live
// variable depends on it.
func (st *SymbolTable) Remove(name string) {
	st.Lock()
	defer st.Unlock()
	delete(st.scalars, name)
	mo, ok := st.matrices[name]
	if !ok {
		return
	}
	delete(st.matrices, name)
	st.release(name, mo)
}

func (st *SymbolTable) release(name string, mo *MatrixObject) {
	if st.refs[name] > 0 {
		st.pending[name] = mo
		return
	}
	delete(st.refs, name)
	delete(st.pending, name)
	mo.broadcast = nil
	st.detach(name)
}

// unbind drops what the current or pending binding of name holds, before
// the name is bound again.
func (st *SymbolTable) unbind(name string) {
	if mo, ok := st.matrices[name]; ok {
		mo.broadcast = nil
	}
	if mo, ok := st.pending[name]; ok {
		mo.broadcast = nil
		delete(st.pending, name)
	}
	st.detach(name)
}

// detach removes the lineage edges of name and releases the removed
// parents nothing depends on anymore.
func (st *SymbolTable) detach(name string) {
	parents := st.lineage[name]
	delete(st.lineage, name)
	for _, parent := range parents {
		st.refs[parent]--
		if st.refs[parent] > 0 {
			continue
		}
		if p, ok := st.pending[parent]; ok {
			st.release(parent, p)
		} else {
			delete(st.refs, parent)
		}
	}
}
