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

// Package jockeysrv implements the goal lifecycle of a localizing jockey: a single-slot server
// which accepts goals, preempts the active one, forwards interrupt and continue signals
// and reports feedback and a terminal result to the owner of the active goal.
package jockeysrv

import (
	"context"
	"errors"
	"fmt"

	"github.com/lama-robotics/jockey/localize"
)

// ErrInterrupted is returned by a Jockey callback which observed an interrupt request
// and exited without completing. The task can then be resumed with a CONTINUE goal.
var ErrInterrupted = errors.New("task interrupted")

// Jockey is implemented by a concrete localizing jockey. Each callback runs in its own goroutine,
// one at a time. A callback reports progress with [Task.Feedback] and completes by returning:
// a nil error completes the goal with the returned payload, [ErrInterrupted] suspends it and
// any other error fails it.
//
// Callbacks are cooperative. They are expected to watch [Task.Interrupted] and ctx.Done() and to
// return promptly. A callback which ignores both blocks every later goal submission.
type Jockey interface {
	OnGetVertexDescriptor(ctx context.Context, task *Task) (localize.Payload, error)
	OnGetEdgesDescriptors(ctx context.Context, task *Task) (localize.Payload, error)
	OnLocalizeInVertex(ctx context.Context, task *Task) (localize.Payload, error)
	OnLocalizeEdge(ctx context.Context, task *Task) (localize.Payload, error)
	OnGetDissimilarity(ctx context.Context, task *Task) (localize.Payload, error)
}

// InterruptHook can be implemented by a Jockey to persist additional state when the
// running task is asked to interrupt. Called on the requesting goroutine after the interrupt
// flag is raised, so it may run concurrently with the interrupted callback.
type InterruptHook interface {
	OnInterrupt(ctx context.Context, task *Task)
}

// ContinueHook can be implemented by a Jockey to restore additional state before an
// interrupted task is dispatched again. An error fails the goal.
type ContinueHook interface {
	OnContinue(ctx context.Context, task *Task) error
}

func dispatch(ctx context.Context, jockey Jockey, task *Task) (localize.Payload, error) {
	switch action := task.goal.Action; action {
	case localize.ActionGetVertexDescriptor:
		return jockey.OnGetVertexDescriptor(ctx, task)
	case localize.ActionGetEdgesDescriptors:
		return jockey.OnGetEdgesDescriptors(ctx, task)
	case localize.ActionLocalizeInVertex:
		return jockey.OnLocalizeInVertex(ctx, task)
	case localize.ActionLocalizeEdge:
		return jockey.OnLocalizeEdge(ctx, task)
	case localize.ActionGetDissimilarity:
		return jockey.OnGetDissimilarity(ctx, task)
	default:
		return nil, fmt.Errorf("%w: no callback for %v", localize.ErrInvalidGoalKind, action)
	}
}
