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

package kahan

import (
	"context"
	"math"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/matrixorigin/blockmatrix/pkg/container/block"
)

func TestObject(t *testing.T) {
	convey.Convey("compensated sum keeps small increments", t, func() {
		xs := []float64{1e16}
		for i := 0; i < 1000; i++ {
			xs = append(xs, 1)
		}
		var plain float64
		for _, x := range xs {
			plain += x
		}
		convey.So(plain, convey.ShouldEqual, 1e16)
		convey.So(Float64Sum(xs), convey.ShouldEqual, 1e16+1000)
	})

	convey.Convey("special values pass through", t, func() {
		var k Object
		k.Add(1)
		k.Add(math.Inf(1))
		convey.So(math.IsInf(k.Sum, 1), convey.ShouldBeTrue)
		k.Add(math.Inf(-1))
		convey.So(math.IsNaN(k.Sum), convey.ShouldBeTrue)

		var n Object
		n.Add(math.NaN())
		n.Add(3)
		convey.So(math.IsNaN(n.Sum), convey.ShouldBeTrue)
	})

	convey.Convey("merge", t, func() {
		var a, b Object
		a.Add(1.5)
		b.Add(2.5)
		a.Merge(b)
		convey.So(a.Sum, convey.ShouldEqual, 4.0)
	})
}

func TestBlockAccumulator(t *testing.T) {
	ctx := context.TODO()
	convey.Convey("accumulate blocks", t, func() {
		acc := NewBlockAccumulator(2, 2)
		convey.So(acc.Add(ctx, block.NewDense(2, 2, []float64{1, 2, 3, 4})), convey.ShouldBeNil)
		sp := block.NewSparse(2, 2)
		sp.Set(1, 1, 10)
		convey.So(acc.Add(ctx, sp), convey.ShouldBeNil)

		other := NewBlockAccumulatorFrom(block.NewDense(2, 2, []float64{1, 1, 1, 1}))
		convey.So(acc.Merge(ctx, other), convey.ShouldBeNil)
		convey.So(acc.Result().Values(), convey.ShouldResemble, []float64{2, 3, 4, 15})

		convey.So(acc.Add(ctx, block.NewDense(1, 2, nil)), convey.ShouldNotBeNil)
		convey.So(acc.Merge(ctx, NewBlockAccumulator(3, 3)), convey.ShouldNotBeNil)
	})

	convey.Convey("sparse result", t, func() {
		acc := NewBlockAccumulator(10, 10)
		sp := block.NewSparse(10, 10)
		sp.Set(0, 0, 1)
		convey.So(acc.Add(ctx, sp), convey.ShouldBeNil)
		convey.So(acc.Result().IsSparse(), convey.ShouldBeTrue)
	})
}
