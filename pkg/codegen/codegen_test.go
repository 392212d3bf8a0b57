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
	"sync"
	"testing"

	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/container/block"
)

func instantiate(t *testing.T, name, payload string) Kernel {
	k, err := DefaultRegistry().Instantiate(context.TODO(), Descriptor{Name: name, Payload: []byte(payload)})
	require.NoError(t, err)
	return k
}

func TestCompileProgram(t *testing.T) {
	p, err := compileProgram("a b0 * s1 + exp", cellVars)
	require.NoError(t, err)
	require.Equal(t, 1, p.sides)
	require.Equal(t, 2, p.scalars)
	require.Equal(t, 2, p.depth)

	for _, src := range []string{"", "a +", "a b0", "a foo *", "neg", "a b *"} {
		_, err := compileProgram(src, cellVars)
		require.Error(t, err, src)
	}

	p, err = compileProgram("2 3 ^ 1 max neg abs", cellVars)
	require.NoError(t, err)
	require.Equal(t, 8.0, p.eval(&env{}, p.newStack()))
}

func TestCellExpr(t *testing.T) {
	ctx := context.TODO()
	in := block.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	row := block.NewDense(1, 3, []float64{10, 20, 30})
	col := block.NewDense(2, 1, []float64{100, 200})

	k := instantiate(t, CellExprName, "NO_AGG;a b0 + b1 + s0 *").(CellwiseKernel)
	require.Equal(t, Cellwise, k.Family())
	require.Equal(t, NoAgg, k.CellType())
	out, err := k.Execute(ctx, in, []*block.Block{row, col}, []float64{2})
	require.NoError(t, err)
	require.Equal(t, []float64{222, 244, 266, 428, 450, 472}, out.Values())

	k = instantiate(t, CellExprName, "ROW_AGG;a a *").(CellwiseKernel)
	out, err = k.Execute(ctx, in, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 2, out.Rows())
	require.Equal(t, 1, out.Cols())
	require.Equal(t, []float64{14, 77}, out.Values())

	k = instantiate(t, CellExprName, "FULL_AGG;a").(CellwiseKernel)
	s, err := k.Aggregate(ctx, in, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 21.0, s)
	out, err = k.Execute(ctx, in, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 21.0, out.Get(0, 0))

	// zero cells are evaluated too
	k = instantiate(t, CellExprName, "NO_AGG;a 1 +").(CellwiseKernel)
	out, err = k.Execute(ctx, block.NewSparse(2, 2), nil, nil)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 1, 1, 1}, out.Values())
}

func TestCellExprRuntimeErrors(t *testing.T) {
	ctx := context.TODO()
	in := block.NewDense(2, 2, []float64{1, 2, 3, 4})
	k := instantiate(t, CellExprName, "NO_AGG;a b0 + s0 +").(CellwiseKernel)

	_, err := k.Execute(ctx, in, nil, []float64{1})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrRuntimeKernel))
	_, err = k.Execute(ctx, in, []*block.Block{in}, nil)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrRuntimeKernel))
	_, err = k.Execute(ctx, in, []*block.Block{block.NewDense(3, 2, nil)}, []float64{1})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrRuntimeKernel))
}

func TestOuterExpr(t *testing.T) {
	ctx := context.TODO()
	// X is 2x3, U is 2x1, V is 3x1
	x := block.NewDense(2, 3, []float64{1, 0, 2, 0, 3, 0})
	u := block.NewDense(2, 1, []float64{1, 2})
	v := block.NewDense(3, 1, []float64{1, 1, 2})

	k := instantiate(t, OuterExprName, "CELLWISE_OUTER;x uv *").(OuterProductKernel)
	require.Equal(t, OuterProduct, k.Family())
	out, err := k.Execute(ctx, x, u, v, nil)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 0, 4, 0, 6, 0}, out.Values())

	// t(W) %*% U with W = X * UV'
	k = instantiate(t, OuterExprName, "LEFT_OUTER,SPARSE_SAFE;x uv *").(OuterProductKernel)
	out, err = k.Execute(ctx, x, u, v, nil)
	require.NoError(t, err)
	require.Equal(t, 3, out.Rows())
	require.Equal(t, []float64{1, 12, 4}, out.Values())

	// W %*% V
	k = instantiate(t, OuterExprName, "RIGHT_OUTER;x uv *").(OuterProductKernel)
	out, err = k.Execute(ctx, x, u, v, nil)
	require.NoError(t, err)
	require.Equal(t, 2, out.Rows())
	require.Equal(t, []float64{9, 6}, out.Values())

	k = instantiate(t, OuterExprName, "AGG_OUTER;x uv - s0 ^").(OuterProductKernel)
	s, err := k.Aggregate(ctx, x, u, v, []float64{2})
	require.NoError(t, err)
	// (1-1)^2 + (0-1)^2 + (2-2)^2 + (0-2)^2 + (3-2)^2 + (0-4)^2
	require.Equal(t, 22.0, s)

	_, err = k.Execute(ctx, x, v, u, []float64{2})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrRuntimeKernel))
}

func TestMMChain(t *testing.T) {
	ctx := context.TODO()
	x := block.NewDense(2, 2, []float64{1, 2, 3, 4})
	v := block.NewDense(2, 1, []float64{1, 1})
	w := block.NewDense(2, 1, []float64{1, 0})

	k := instantiate(t, MMChainName, "XtXv").(RowAggregateKernel)
	require.Equal(t, RowAggregate, k.Family())
	out, err := k.Execute(ctx, x, []*block.Block{v}, nil)
	require.NoError(t, err)
	// X v = [3, 7]; t(X) [3, 7] = [24, 34]
	require.Equal(t, []float64{24, 34}, out.Values())

	k = instantiate(t, MMChainName, "XtwXv").(RowAggregateKernel)
	out, err = k.Execute(ctx, x, []*block.Block{v, w}, nil)
	require.NoError(t, err)
	require.Equal(t, []float64{3, 6}, out.Values())

	_, err = k.Execute(ctx, x, []*block.Block{v}, nil)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrRuntimeKernel))
}

type oddKernel struct{}

func (oddKernel) Family() Family { return Family(42) }

type lyingKernel struct{}

func (lyingKernel) Family() Family { return OuterProduct }

func TestRegistryInstantiate(t *testing.T) {
	ctx := context.TODO()
	reg := NewRegistry(map[string]Factory{
		"odd":   func([]byte) (Kernel, error) { return oddKernel{}, nil },
		"lying": func([]byte) (Kernel, error) { return lyingKernel{}, nil },
		"panic": func([]byte) (Kernel, error) { panic("bad class bytes") },
	})
	require.Equal(t, []string{"lying", "odd", "panic"}, reg.Names())

	_, err := reg.Instantiate(ctx, Descriptor{Name: "odd"})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrUnsupportedKernel))
	_, err = reg.Instantiate(ctx, Descriptor{Name: "lying"})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrUnsupportedKernel))
	_, err = reg.Instantiate(ctx, Descriptor{Name: "panic"})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrKernelInstantiation))
	_, err = reg.Instantiate(ctx, Descriptor{Name: "missing"})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrKernelInstantiation))

	for _, payload := range []string{"NO_AGG", "SOME_AGG;a", "ROW_AGG;a +"} {
		_, err = DefaultRegistry().Instantiate(ctx, Descriptor{Name: CellExprName, Payload: []byte(payload)})
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrKernelInstantiation), payload)
	}
	_, err = DefaultRegistry().Instantiate(ctx, Descriptor{Name: OuterExprName, Payload: []byte("LEFT_OUTER,FAST;x")})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrKernelInstantiation))
	_, err = DefaultRegistry().Instantiate(ctx, Descriptor{Name: MMChainName, Payload: []byte("XtXw")})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrKernelInstantiation))
}

func TestCache(t *testing.T) {
	ctx := context.TODO()
	c := NewCache(nil)
	desc := Descriptor{Name: CellExprName, Payload: []byte("NO_AGG;a 2 *")}

	var wg sync.WaitGroup
	kernels := make([]Kernel, 8)
	for i := range kernels {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k, err := c.Get(ctx, desc)
			require.NoError(t, err)
			kernels[i] = k
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, c.Instantiations())
	for _, k := range kernels {
		require.Same(t, kernels[0], k)
	}

	_, err := c.Get(ctx, Descriptor{Name: CellExprName, Payload: []byte("NO_AGG;a 3 *")})
	require.NoError(t, err)
	require.Equal(t, 2, c.Instantiations())

	c.Reset()
	_, err = c.Get(ctx, desc)
	require.NoError(t, err)
	require.Equal(t, 3, c.Instantiations())
}

func TestCacheKeyCollision(t *testing.T) {
	stubs := gostub.Stub(&descriptorKey, func(Descriptor) uint64 { return 7 })
	defer stubs.Reset()

	ctx := context.TODO()
	c := NewCache(nil)
	double, err := c.Get(ctx, Descriptor{Name: CellExprName, Payload: []byte("NO_AGG;a 2 *")})
	require.NoError(t, err)
	triple, err := c.Get(ctx, Descriptor{Name: CellExprName, Payload: []byte("NO_AGG;a 3 *")})
	require.NoError(t, err)
	require.NotSame(t, double, triple)
	require.Equal(t, 2, c.Instantiations())

	blk := block.NewDense(1, 1, []float64{5})
	out, err := triple.(CellwiseKernel).Execute(ctx, blk, nil, nil)
	require.NoError(t, err)
	require.Equal(t, []float64{15}, out.Values())

	again, err := c.Get(ctx, Descriptor{Name: CellExprName, Payload: []byte("NO_AGG;a 2 *")})
	require.NoError(t, err)
	require.Same(t, double, again)
	require.Equal(t, 2, c.Instantiations())
}

func TestDescriptor(t *testing.T) {
	desc := Descriptor{Name: CellExprName, Payload: []byte("FULL_AGG;a")}
	got, err := ParseDescriptor(context.TODO(), desc.Name, desc.EncodedPayload())
	require.NoError(t, err)
	require.Equal(t, desc, got)
	require.Equal(t, desc.Key(), got.Key())
	require.NotEqual(t, desc.Key(), Descriptor{Name: CellExprName, Payload: []byte("NO_AGG;a")}.Key())

	_, err = ParseDescriptor(context.TODO(), desc.Name, "%%%")
	require.Error(t, err)
	_, err = ParseDescriptor(context.TODO(), "", "")
	require.Error(t, err)
}
