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
	"context"
)

// TaskContext is handed to the user functions of a job task. Its counters
// are merged into the job only when the task succeeds.
type TaskContext struct {
	ctx      context.Context
	JobID    string
	TaskID   int
	counters Counters
}

// NewTaskContext returns the context of task taskID of job jobID.
func NewTaskContext(ctx context.Context, jobID string, taskID int) *TaskContext {
	return &TaskContext{
		ctx:      ctx,
		JobID:    jobID,
		TaskID:   taskID,
		counters: NewCounters(),
	}
}

func (tc *TaskContext) Context() context.Context {
	return tc.ctx
}

func (tc *TaskContext) Incr(name string, delta int64) {
	tc.counters.Add(name, delta)
}

func (tc *TaskContext) Max(name string, v int64) {
	tc.counters.Max(name, v)
}

// Counter reads a counter this task has recorded.
func (tc *TaskContext) Counter(name string) (int64, bool) {
	return tc.counters.Get(name)
}
