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

package assertx

import "math"

// defaultEpsilon is the absolute tolerance used by the InEpsilon helpers.
const defaultEpsilon = 1e-6

// InEpsilonF64 reports whether got is within defaultEpsilon of want.
func InEpsilonF64(want, got float64) bool {
	if math.IsNaN(want) || math.IsNaN(got) {
		return math.IsNaN(want) && math.IsNaN(got)
	}
	if want == got {
		return true
	}
	return math.Abs(want-got) < defaultEpsilon
}

// InRelEpsilonF64 compares with a tolerance relative to the magnitude of want.
// Large aggregates need it, since their absolute rounding error grows with the value.
func InRelEpsilonF64(want, got, eps float64) bool {
	if want == got {
		return true
	}
	scale := math.Max(math.Abs(want), 1)
	return math.Abs(want-got) <= eps*scale
}

func InEpsilonF64Slice(want, got []float64) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if !InEpsilonF64(want[i], got[i]) {
			return false
		}
	}
	return true
}

func InEpsilonF64Slices(want, got [][]float64) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if !InEpsilonF64Slice(want[i], got[i]) {
			return false
		}
	}
	return true
}
