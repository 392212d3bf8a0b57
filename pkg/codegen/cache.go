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
)

// descriptorKey hashes a descriptor into its cache bucket.
var descriptorKey = Descriptor.Key

type cachedKernel struct {
	desc   Descriptor
	kernel Kernel
}

// Cache memoizes kernels per worker. Kernels are stateless once built, so
// one instance serves every task of the worker. A bucket holds every
// descriptor whose key collides.
type Cache struct {
	reg *Registry

	mu             sync.Mutex
	kernels        map[uint64][]cachedKernel
	instantiations int
}

func NewCache(reg *Registry) *Cache {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Cache{reg: reg, kernels: make(map[uint64][]cachedKernel)}
}

func (c *Cache) Registry() *Registry {
	return c.reg
}

// Get returns the kernel for desc, building it on first use.
func (c *Cache) Get(ctx context.Context, desc Descriptor) (Kernel, error) {
	key := descriptorKey(desc)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ck := range c.kernels[key] {
		if ck.desc.Equal(desc) {
			return ck.kernel, nil
		}
	}
	k, err := c.reg.Instantiate(ctx, desc)
	if err != nil {
		return nil, err
	}
	// the payload may alias instruction memory
	desc.Payload = append([]byte(nil), desc.Payload...)
	c.kernels[key] = append(c.kernels[key], cachedKernel{desc: desc, kernel: k})
	c.instantiations++
	return k, nil
}

// Instantiations counts the kernels built so far.
func (c *Cache) Instantiations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.instantiations
}

// Reset drops every cached kernel.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kernels = make(map[uint64][]cachedKernel)
}
