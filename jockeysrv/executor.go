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
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/lama-robotics/jockey/internal/taskexec"
	"github.com/lama-robotics/jockey/localize"
	"github.com/lama-robotics/jockey/log"
)

var (
	errExecutorBusy      = errors.New("a task callback is still executing")
	errInvalidTransition = errors.New("invalid task state transition")
)

var transitions = map[localize.TaskState][]localize.TaskState{
	localize.TaskStateIdle: {
		localize.TaskStateRunning,
		// a suspended task is preempted or fails to continue
		localize.TaskStatePreempted,
		localize.TaskStateFailed,
	},
	localize.TaskStateRunning: {
		localize.TaskStateInterrupting,
		localize.TaskStateSucceeded,
		localize.TaskStateFailed,
		localize.TaskStatePreempted,
	},
	localize.TaskStateInterrupting: {
		localize.TaskStateIdle,
		localize.TaskStateSucceeded,
		localize.TaskStateFailed,
		localize.TaskStatePreempted,
	},
	localize.TaskStateSucceeded: {localize.TaskStateIdle},
	localize.TaskStateFailed:    {localize.TaskStateIdle},
	localize.TaskStatePreempted: {localize.TaskStateIdle},
}

type eventPublisher interface {
	publishFeedback(ctx context.Context, feedback *localize.Feedback) error
	// publishResult is called with taskExecutor.mu held and must not block.
	publishResult(ctx context.Context, result *localize.Result)
}

// execution is a single dispatch of a Jockey callback.
type execution struct {
	task   *Task
	cancel context.CancelFunc
	// done channel gets closed after the callback returned and its completion was handled
	done chan struct{}
}

// taskExecutor owns the state of the current goal and provides the primitive transitions of
// its lifecycle. It relies on the caller to serialize start, continue_ and preempt calls.
type taskExecutor struct {
	jockey    Jockey
	publisher eventPublisher
	metrics   *Metrics

	mu     sync.Mutex
	state  localize.TaskState
	active *activeTask
	// current is the execution of the active task, nil when the task is suspended or there's none.
	current *execution
	// draining is a preempted execution whose callback has not returned yet.
	draining *execution
}

func newTaskExecutor(jockey Jockey, publisher eventPublisher, metrics *Metrics) *taskExecutor {
	return &taskExecutor{
		jockey:    jockey,
		publisher: publisher,
		metrics:   metrics,
		state:     localize.TaskStateIdle,
	}
}

func (e *taskExecutor) snapshot() (localize.TaskState, *localize.Goal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return e.state, nil
	}
	goal := e.active.goal
	return e.state, &goal
}

// start replaces the active task state with the provided goal and dispatches its callback.
// The executor must not be running or draining a callback.
func (e *taskExecutor) start(ctx context.Context, goal localize.Goal) error {
	if !goal.Action.Valid() || goal.Action.IsControl() {
		return fmt.Errorf("%w: %v can't start a task", localize.ErrInvalidGoalKind, goal.Action)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil || e.draining != nil {
		return errExecutorBusy
	}

	e.active = &activeTask{goal: goal, status: statusPending}
	e.launchLocked(ctx, e.newTask(e.active))
	return nil
}

// interrupt raises the interrupt flag of the running task. The callback is expected to observe it
// and return ErrInterrupted. Returns false if no task is running.
func (e *taskExecutor) interrupt(ctx context.Context) bool {
	e.mu.Lock()
	if e.state != localize.TaskStateRunning {
		e.mu.Unlock()
		return false
	}
	task := e.current.task
	task.requestInterrupt()
	e.transitionLocked(ctx, localize.TaskStateInterrupting)
	e.mu.Unlock()

	if hook, ok := e.jockey.(InterruptHook); ok {
		_, err := taskexec.Invoke(ctx, func(ctx context.Context) (struct{}, error) {
			hook.OnInterrupt(ctx, task)
			return struct{}{}, nil
		})
		if err != nil {
			log.Error(ctx, "interrupt hook failed", err)
		}
	}
	return true
}

// continue_ dispatches the saved goal of a suspended task again. If the interrupted callback
// has not returned yet, waits for it before deciding whether there's anything to continue.
func (e *taskExecutor) continue_(ctx context.Context) error {
	e.mu.Lock()
	for e.state == localize.TaskStateInterrupting {
		exec := e.current
		e.mu.Unlock()
		select {
		case <-exec.done:
		case <-ctx.Done():
			return fmt.Errorf("interrupted callback did not return: %w", ctx.Err())
		}
		e.mu.Lock()
	}

	active := e.active
	if active == nil || e.state != localize.TaskStateIdle || e.current != nil {
		state := e.state
		e.mu.Unlock()
		return fmt.Errorf("%w: task is %s", localize.ErrNoSavedState, state)
	}
	active.resumes++
	task := e.newTask(active)
	e.mu.Unlock()

	var hookErr error
	if hook, ok := e.jockey.(ContinueHook); ok {
		_, hookErr = taskexec.Invoke(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, hook.OnContinue(ctx, task)
		})
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active != active || e.state != localize.TaskStateIdle || e.current != nil {
		return fmt.Errorf("%w: task was replaced", localize.ErrNoSavedState)
	}
	if hookErr != nil {
		log.Error(ctx, "continue hook failed", hookErr)
		e.finishLocked(ctx, nil, fmt.Errorf("continue hook: %w", hookErr))
		return nil
	}
	e.launchLocked(ctx, task)
	return nil
}

// preempt forces the active task into the PREEMPTED state, reports the result to its owner and
// waits for its callback to return. Returns true if there was an active task.
func (e *taskExecutor) preempt(ctx context.Context) (bool, error) {
	e.mu.Lock()
	active, exec := e.active, e.current
	if active != nil {
		active.status = statusPreempted
		e.active = nil
		e.transitionLocked(ctx, localize.TaskStatePreempted)
		// the owner is released before the callback is signaled so that it can't publish anything else
		e.publisher.publishResult(ctx, localize.NewPreemptedResult(active.goal))
		if exec != nil {
			e.current, e.draining = nil, exec
			exec.task.requestInterrupt()
			exec.cancel()
		} else {
			e.transitionLocked(ctx, localize.TaskStateIdle)
		}
	}
	draining := e.draining
	e.mu.Unlock()

	if draining != nil {
		log.Verbose(ctx, "waiting for the preempted callback to return")
		select {
		case <-draining.done:
		case <-ctx.Done():
			return active != nil, fmt.Errorf("preempted callback did not return: %w", ctx.Err())
		}
	}
	return active != nil, nil
}

func (e *taskExecutor) newTask(active *activeTask) *Task {
	return newTask(active, e.publisher.publishFeedback)
}

func (e *taskExecutor) launchLocked(ctx context.Context, task *Task) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	exec := &execution{task: task, cancel: cancel, done: make(chan struct{})}
	e.current = exec
	e.transitionLocked(ctx, localize.TaskStateRunning)

	go e.run(runCtx, exec)
}

func (e *taskExecutor) run(ctx context.Context, exec *execution) {
	defer close(exec.done)
	defer exec.cancel()

	action, start := exec.task.goal.Action, time.Now()
	payload, err := taskexec.Invoke(ctx, func(ctx context.Context) (localize.Payload, error) {
		return dispatch(ctx, e.jockey, exec.task)
	})
	e.metrics.observeCallback(action, err, time.Since(start))

	e.complete(ctx, exec, payload, err)
}

// complete handles the return of a callback.
func (e *taskExecutor) complete(ctx context.Context, exec *execution, payload localize.Payload, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.draining == exec {
		e.draining = nil
		e.transitionLocked(ctx, localize.TaskStateIdle)
		log.Verbose(ctx, "preempted callback returned", "callback_error", err)
		return
	}

	if e.current != exec {
		log.Warn(ctx, "ignoring completion of an unknown execution")
		return
	}
	e.current = nil

	if e.state == localize.TaskStateInterrupting && errors.Is(err, ErrInterrupted) {
		e.transitionLocked(ctx, localize.TaskStateIdle)
		log.Info(ctx, "task suspended")
		return
	}

	e.finishLocked(ctx, payload, err)
}

func (e *taskExecutor) finishLocked(ctx context.Context, payload localize.Payload, err error) {
	active := e.active
	result := &localize.Result{GoalID: active.goal.ID, Action: active.goal.Action}
	if err != nil {
		active.status = statusFailed
		result.Status = localize.ResultStatusFailed
		result.Error = fmt.Errorf("%w: %w", localize.ErrCallbackFailure, err).Error()
		e.transitionLocked(ctx, localize.TaskStateFailed)
	} else {
		active.status = statusSucceeded
		result.Status = localize.ResultStatusSucceeded
		result.Payload = payload
		e.transitionLocked(ctx, localize.TaskStateSucceeded)
	}
	e.active = nil
	e.transitionLocked(ctx, localize.TaskStateIdle)
	e.publisher.publishResult(ctx, result)
}

func (e *taskExecutor) transitionLocked(ctx context.Context, to localize.TaskState) {
	from := e.state
	if !slices.Contains(transitions[from], to) {
		log.Error(ctx, "bug: unexpected transition", errInvalidTransition, "from", from, "to", to)
	}
	e.state = to
	e.metrics.observeTransition(from, to)
	log.Verbose(ctx, "task state changed", "from", from, "to", to)
}
