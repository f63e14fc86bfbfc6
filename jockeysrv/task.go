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

package jockeysrv

import (
	"context"
	"sync"

	"github.com/lama-robotics/jockey/localize"
)

type completionStatus int

const (
	statusPending completionStatus = iota
	statusSucceeded
	statusFailed
	statusPreempted
)

// activeTask is the state of the accepted goal which survives an interrupt and continue cycle.
type activeTask struct {
	goal localize.Goal

	// guarded by taskExecutor.mu
	status  completionStatus
	resumes int

	checkpointMu sync.Mutex
	checkpoint   any
}

type feedbackFn func(context.Context, *localize.Feedback) error

// Task is the view of the active goal a Jockey callback receives. A new Task is created
// for every dispatch, the goal and the checkpoint are carried over on CONTINUE.
type Task struct {
	goal    localize.Goal
	state   *activeTask
	resumed bool

	interruptOnce sync.Once
	interrupt     chan struct{}

	feedback feedbackFn
}

func newTask(state *activeTask, feedback feedbackFn) *Task {
	return &Task{
		goal:      state.goal,
		state:     state,
		resumed:   state.resumes > 0,
		interrupt: make(chan struct{}),
		feedback:  feedback,
	}
}

// Goal returns the goal which started the task. On CONTINUE it is the originally
// submitted goal, not the control goal.
func (t *Task) Goal() localize.Goal {
	return t.goal
}

// Descriptor returns the descriptor payload of the goal. It must not be modified.
func (t *Task) Descriptor() []byte {
	return t.goal.Descriptor
}

// Resumed returns true if the task is dispatched after an interrupt.
func (t *Task) Resumed() bool {
	return t.resumed
}

// InterruptRequested returns true once the task was asked to interrupt or was preempted.
func (t *Task) InterruptRequested() bool {
	select {
	case <-t.interrupt:
		return true
	default:
		return false
	}
}

// Interrupted returns a channel which gets closed when the task is asked to interrupt or is preempted.
func (t *Task) Interrupted() <-chan struct{} {
	return t.interrupt
}

// Feedback delivers a progress record to the owner of the goal. It blocks while the owner has
// an undelivered record. Returns [localize.ErrGoalNotActive] if the goal was already completed
// or preempted.
func (t *Task) Feedback(ctx context.Context, progress localize.Payload) error {
	return t.feedback(ctx, &localize.Feedback{GoalID: t.goal.ID, Action: t.goal.Action, Progress: progress})
}

// Checkpoint returns the value stored with SetCheckpoint during this or an interrupted dispatch of the goal.
func (t *Task) Checkpoint() any {
	t.state.checkpointMu.Lock()
	defer t.state.checkpointMu.Unlock()
	return t.state.checkpoint
}

// SetCheckpoint stores a value which is available to the dispatch resumed after an interrupt.
func (t *Task) SetCheckpoint(v any) {
	t.state.checkpointMu.Lock()
	defer t.state.checkpointMu.Unlock()
	t.state.checkpoint = v
}

func (t *Task) requestInterrupt() {
	t.interruptOnce.Do(func() { close(t.interrupt) })
}
