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

package cluster

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Counters are named job statistics. Sum counters add up across tasks,
// max counters keep the largest value any task reported.
type Counters struct {
	sums   map[string]int64
	maxima map[string]int64
}

func NewCounters() Counters {
	return Counters{
		sums:   make(map[string]int64),
		maxima: make(map[string]int64),
	}
}

func (c Counters) Add(name string, delta int64) {
	c.sums[name] += delta
}

func (c Counters) Max(name string, v int64) {
	if old, ok := c.maxima[name]; !ok || v > old {
		c.maxima[name] = v
	}
}

func (c Counters) Get(name string) (int64, bool) {
	if v, ok := c.sums[name]; ok {
		return v, true
	}
	v, ok := c.maxima[name]
	return v, ok
}

// Names returns every counter name in order.
func (c Counters) Names() []string {
	names := append(maps.Keys(c.sums), maps.Keys(c.maxima)...)
	slices.Sort(names)
	return names
}

func (c Counters) Len() int {
	return len(c.sums) + len(c.maxima)
}

// Merge folds other into c.
func (c Counters) Merge(other Counters) {
	for name, v := range other.sums {
		c.Add(name, v)
	}
	for name, v := range other.maxima {
		c.Max(name, v)
	}
}
