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
	"runtime"

	"github.com/matrixorigin/blockmatrix/pkg/config"
)

// Analyzer reports the cluster properties job sizing depends on.
type Analyzer interface {
	ReduceSlots() int
	IsElastic() bool
	Cores() int
	// FSBlockSize is in bytes.
	FSBlockSize() int64
	MiscMemory() int64
	Replication() int
}

//go:generate mockgen -source=analyzer.go -destination=mock_cluster/analyzer_mock.go

// numCPU is a variable so tests can pretend to run on other machines.
var numCPU = runtime.NumCPU

type configAnalyzer struct {
	cfg *config.Config
}

// NewAnalyzer reports the cluster as configured. Cores not set in the
// configuration are detected.
func NewAnalyzer(cfg *config.Config) Analyzer {
	return &configAnalyzer{cfg: cfg}
}

func (a *configAnalyzer) ReduceSlots() int {
	return a.cfg.Cluster.ReduceSlots
}

func (a *configAnalyzer) IsElastic() bool {
	return a.cfg.Cluster.Elastic
}

func (a *configAnalyzer) Cores() int {
	if a.cfg.Cluster.Cores > 0 {
		return a.cfg.Cluster.Cores
	}
	return numCPU()
}

func (a *configAnalyzer) FSBlockSize() int64 {
	return a.cfg.Storage.FSBlockSize
}

func (a *configAnalyzer) MiscMemory() int64 {
	return a.cfg.Engine.MiscMemory
}

func (a *configAnalyzer) Replication() int {
	return a.cfg.Storage.Replication
}
