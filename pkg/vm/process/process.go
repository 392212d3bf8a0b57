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
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matrixorigin/blockmatrix/pkg/codegen"
	"github.com/matrixorigin/blockmatrix/pkg/config"
	"github.com/matrixorigin/blockmatrix/pkg/logutil"
	"github.com/matrixorigin/blockmatrix/pkg/vm/cluster"
)

// New creates a process for one program run. A nil cache gets a fresh one
// over the default kernel registry.
func New(ctx context.Context, rt cluster.Runtime, lim Limitation, kernels *codegen.Cache) *Process {
	if kernels == nil {
		kernels = codegen.NewCache(nil)
	}
	proc := &Process{
		Id:      uuid.NewString(),
		Lim:     lim,
		Rt:      rt,
		Vars:    NewSymbolTable(),
		Kernels: kernels,
	}
	proc.Ctx, proc.Cancel = context.WithCancel(ctx)
	proc.logger = logutil.Named("process").With(zap.String("process", proc.Id))
	return proc
}

// LimitationFromConfig picks the per run parameters out of a configuration.
func LimitationFromConfig(cfg *config.Config) Limitation {
	return Limitation{
		RowsPerBlock:    cfg.Engine.RowsPerBlock,
		ColsPerBlock:    cfg.Engine.ColsPerBlock,
		MiscMemory:      cfg.Engine.MiscMemory,
		MultiplyThreads: cfg.Engine.MultiplyThreads,
		DefaultReducers: cfg.Cluster.DefaultReducers,
	}
}

func (proc *Process) Info(msg string, fields ...zap.Field) {
	proc.logger.WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

func (proc *Process) Debug(msg string, fields ...zap.Field) {
	proc.logger.WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}

func (proc *Process) Warn(msg string, fields ...zap.Field) {
	proc.logger.WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
}

func (proc *Process) Error(msg string, fields ...zap.Field) {
	proc.logger.WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

func (proc *Process) Debugf(msg string, args ...any) {
	proc.logger.WithOptions(zap.AddCallerSkip(1)).Debug(fmt.Sprintf(msg, args...))
}
