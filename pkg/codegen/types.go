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
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/container/block"
)

// Family is the execution shape of a fused kernel.
type Family uint8

const (
	UnknownFamily Family = iota
	Cellwise
	OuterProduct
	RowAggregate
)

func (f Family) String() string {
	switch f {
	case Cellwise:
		return "Cellwise"
	case OuterProduct:
		return "OuterProduct"
	case RowAggregate:
		return "RowAggregate"
	}
	return fmt.Sprintf("Family(%d)", uint8(f))
}

// CellType is the aggregation of a cellwise kernel.
type CellType uint8

const (
	NoAgg CellType = iota
	RowAgg
	FullAgg
)

var cellTypeNames = [...]string{
	NoAgg:   "NO_AGG",
	RowAgg:  "ROW_AGG",
	FullAgg: "FULL_AGG",
}

func (t CellType) String() string {
	return cellTypeNames[t]
}

func parseCellType(s string) (CellType, bool) {
	for i, name := range cellTypeNames {
		if name == s {
			return CellType(i), true
		}
	}
	return NoAgg, false
}

// OuterType is the output form of an outer product kernel.
type OuterType uint8

const (
	CellwiseOuter OuterType = iota
	LeftOuter
	RightOuter
	AggOuter
)

var outerTypeNames = [...]string{
	CellwiseOuter: "CELLWISE_OUTER",
	LeftOuter:     "LEFT_OUTER",
	RightOuter:    "RIGHT_OUTER",
	AggOuter:      "AGG_OUTER",
}

func (t OuterType) String() string {
	return outerTypeNames[t]
}

func parseOuterType(s string) (OuterType, bool) {
	for i, name := range outerTypeNames {
		if name == s {
			return OuterType(i), true
		}
	}
	return CellwiseOuter, false
}

// Descriptor identifies a kernel well enough for any worker to rebuild it.
type Descriptor struct {
	Name    string
	Payload []byte
}

// ParseDescriptor decodes the base64 payload carried by an instruction.
func ParseDescriptor(ctx context.Context, name, payload string) (Descriptor, error) {
	if name == "" {
		return Descriptor{}, moerr.NewInvalidInput(ctx, "kernel descriptor without name")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Descriptor{}, moerr.NewInvalidInput(ctx, "kernel %s payload: %v", name, err)
	}
	return Descriptor{Name: name, Payload: data}, nil
}

// EncodedPayload is the instruction form of the payload.
func (d Descriptor) EncodedPayload() string {
	return base64.StdEncoding.EncodeToString(d.Payload)
}

// Key identifies the descriptor in a kernel cache.
func (d Descriptor) Key() uint64 {
	h := xxhash.New()
	_, _ = h.Write([]byte(d.Name))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(d.Payload)
	return h.Sum64()
}

func (d Descriptor) Equal(other Descriptor) bool {
	return d.Name == other.Name && bytes.Equal(d.Payload, other.Payload)
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s[%s]", d.Name, d.Payload)
}

// Kernel is implemented by every fused kernel. The concrete family
// interfaces below are the only ones an executor runs.
type Kernel interface {
	Family() Family
}

type CellwiseKernel interface {
	Kernel
	CellType() CellType
	// Execute returns the output block of in: same shape for NO_AGG, one
	// column of row sums for ROW_AGG, a 1x1 block for FULL_AGG.
	Execute(ctx context.Context, in *block.Block, sides []*block.Block, scalars []float64) (*block.Block, error)
	// Aggregate returns the stable sum over all cells of in.
	Aggregate(ctx context.Context, in *block.Block, sides []*block.Block, scalars []float64) (float64, error)
}

type OuterProductKernel interface {
	Kernel
	OuterType() OuterType
	// Execute combines x with the factor blocks u (rows of x) and v (cols of x).
	Execute(ctx context.Context, x, u, v *block.Block, scalars []float64) (*block.Block, error)
	Aggregate(ctx context.Context, x, u, v *block.Block, scalars []float64) (float64, error)
}

type RowAggregateKernel interface {
	Kernel
	// Execute returns the aggregated output of one primary block; outputs
	// of all blocks are summed by the caller.
	Execute(ctx context.Context, in *block.Block, sides []*block.Block, scalars []float64) (*block.Block, error)
}

// Factory builds a kernel from its payload.
type Factory func(payload []byte) (Kernel, error)
