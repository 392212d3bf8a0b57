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

package sum

import (
	"math"

	"golang.org/x/sys/cpu"
)

var (
	float64Sum     func([]float64) float64
	float64SumSels func([]float64, []int64) float64
	float64Dot     func([]float64, []float64) float64
	float64Axpy    func(float64, []float64, []float64)
)

func init() {
	if cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD {
		float64Sum = float64SumUnrolled
		float64Axpy = float64AxpyUnrolled
	} else {
		float64Sum = float64SumPure
		float64Axpy = float64AxpyPure
	}
	if cpu.X86.HasFMA || cpu.ARM64.HasASIMD {
		float64Dot = float64DotFma
	} else {
		float64Dot = float64DotPure
	}
	float64SumSels = float64SumSelsPure
}

func Float64Sum(xs []float64) float64 {
	return float64Sum(xs)
}

func float64SumPure(xs []float64) float64 {
	var res float64

	for _, x := range xs {
		res += x
	}
	return res
}

func float64SumUnrolled(xs []float64) float64 {
	const lanes int = 4
	var rs [lanes]float64
	n := len(xs) / lanes * lanes
	for i := 0; i < n; i += lanes {
		rs[0] += xs[i]
		rs[1] += xs[i+1]
		rs[2] += xs[i+2]
		rs[3] += xs[i+3]
	}
	res := (rs[0] + rs[1]) + (rs[2] + rs[3])
	for i := n; i < len(xs); i++ {
		res += xs[i]
	}
	return res
}

func Float64SumSels(xs []float64, sels []int64) float64 {
	return float64SumSels(xs, sels)
}

func float64SumSelsPure(xs []float64, sels []int64) float64 {
	var res float64

	for _, sel := range sels {
		res += xs[sel]
	}
	return res
}

// Float64Dot returns the inner product of xs and ys, which must have equal length.
func Float64Dot(xs, ys []float64) float64 {
	return float64Dot(xs, ys)
}

func float64DotPure(xs, ys []float64) float64 {
	var res float64

	for i, x := range xs {
		res += x * ys[i]
	}
	return res
}

func float64DotFma(xs, ys []float64) float64 {
	var res float64

	ys = ys[:len(xs)]
	for i, x := range xs {
		res = math.FMA(x, ys[i], res)
	}
	return res
}

// Float64Axpy computes ys += a * xs.
func Float64Axpy(a float64, xs, ys []float64) {
	float64Axpy(a, xs, ys)
}

func float64AxpyPure(a float64, xs, ys []float64) {
	for i, x := range xs {
		ys[i] += a * x
	}
}

func float64AxpyUnrolled(a float64, xs, ys []float64) {
	const lanes int = 4
	ys = ys[:len(xs)]
	n := len(xs) / lanes * lanes
	for i := 0; i < n; i += lanes {
		ys[i] += a * xs[i]
		ys[i+1] += a * xs[i+1]
		ys[i+2] += a * xs[i+2]
		ys[i+3] += a * xs[i+3]
	}
	for i := n; i < len(xs); i++ {
		ys[i] += a * xs[i]
	}
}
