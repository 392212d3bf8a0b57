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

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
)

// Registry maps kernel names to factories. It is filled on construction
// and read-only afterwards.
type Registry struct {
	factories map[string]Factory
}

var defaultRegistry *Registry

func init() {
	defaultRegistry = NewRegistry(map[string]Factory{
		CellExprName:  newCellExpr,
		OuterExprName: newOuterExpr,
		MMChainName:   newMMChain,
	})
}

// DefaultRegistry holds the built-in kernels.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

func NewRegistry(factories map[string]Factory) *Registry {
	return &Registry{factories: maps.Clone(factories)}
}

// Names returns the registered kernel names in order.
func (r *Registry) Names() []string {
	names := maps.Keys(r.factories)
	slices.Sort(names)
	return names
}

// Instantiate builds the kernel desc names. A missing factory, a factory
// error or a factory panic is a KernelInstantiation error; a kernel of a
// family no executor runs is an UnsupportedKernel error.
func (r *Registry) Instantiate(ctx context.Context, desc Descriptor) (k Kernel, err error) {
	factory, ok := r.factories[desc.Name]
	if !ok {
		return nil, moerr.NewKernelInstantiation(ctx, desc.Name, "no such kernel")
	}
	defer func() {
		if e := recover(); e != nil {
			k, err = nil, moerr.NewKernelInstantiation(ctx, desc.Name, "panic %v", e)
		}
	}()
	if k, err = factory(desc.Payload); err != nil {
		return nil, moerr.NewKernelInstantiation(ctx, desc.Name, "%v", err)
	}
	if err = checkFamily(ctx, desc.Name, k); err != nil {
		return nil, err
	}
	return k, nil
}

func checkFamily(ctx context.Context, name string, k Kernel) error {
	switch k.Family() {
	case Cellwise:
		if _, ok := k.(CellwiseKernel); ok {
			return nil
		}
	case OuterProduct:
		if _, ok := k.(OuterProductKernel); ok {
			return nil
		}
	case RowAggregate:
		if _, ok := k.(RowAggregateKernel); ok {
			return nil
		}
	}
	return moerr.NewUnsupportedKernel(ctx, name, k.Family().String())
}
