// Copyright 2025 The LAMA Jockey Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package localize

import "fmt"

// TaskState is the lifecycle state of a jockey's task executor.
type TaskState string

const (
	TaskStateIdle         TaskState = "IDLE"
	TaskStateRunning      TaskState = "RUNNING"
	TaskStateInterrupting TaskState = "INTERRUPTING"
	TaskStateSucceeded    TaskState = "SUCCEEDED"
	TaskStateFailed       TaskState = "FAILED"
	TaskStatePreempted    TaskState = "PREEMPTED"
)

// Terminal returns true for the states which end a goal instance.
func (s TaskState) Terminal() bool {
	return s == TaskStateSucceeded || s == TaskStateFailed || s == TaskStatePreempted
}

// Active returns true if a domain callback may be executing in this state.
func (s TaskState) Active() bool {
	return s == TaskStateRunning || s == TaskStateInterrupting
}

// ParseTaskState returns the TaskState with the provided wire name.
func ParseTaskState(s string) (TaskState, error) {
	switch state := TaskState(s); state {
	case TaskStateIdle, TaskStateRunning, TaskStateInterrupting,
		TaskStateSucceeded, TaskStateFailed, TaskStatePreempted:
		return state, nil
	}
	return "", fmt.Errorf("unknown task state %q", s)
}
