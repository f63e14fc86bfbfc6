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
	"sync/atomic"
	"testing"
	"time"

	"github.com/lama-robotics/jockey/localize"
)

type callbackFn func(ctx context.Context, task *Task) (localize.Payload, error)

type dispatchRecord struct {
	action     localize.ActionKind
	descriptor string
	resumed    bool
}

type testJockey struct {
	fn callbackFn

	running    atomic.Int32
	maxRunning atomic.Int32

	interrupts  atomic.Int32
	continues   atomic.Int32
	continueErr error

	mu         sync.Mutex
	dispatched []dispatchRecord
	log        []string
}

func newTestJockey(fn callbackFn) *testJockey {
	return &testJockey{fn: fn}
}

func (j *testJockey) handle(ctx context.Context, task *Task) (localize.Payload, error) {
	running := j.running.Add(1)
	for {
		peak := j.maxRunning.Load()
		if running <= peak || j.maxRunning.CompareAndSwap(peak, running) {
			break
		}
	}
	j.record("start " + task.Goal().Action.String())
	j.mu.Lock()
	j.dispatched = append(j.dispatched, dispatchRecord{
		action:     task.Goal().Action,
		descriptor: string(task.Descriptor()),
		resumed:    task.Resumed(),
	})
	j.mu.Unlock()

	defer func() {
		j.record("exit " + task.Goal().Action.String())
		j.running.Add(-1)
	}()
	return j.fn(ctx, task)
}

func (j *testJockey) record(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.log = append(j.log, entry)
}

func (j *testJockey) records() []dispatchRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]dispatchRecord(nil), j.dispatched...)
}

func (j *testJockey) entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.log...)
}

func (j *testJockey) OnGetVertexDescriptor(ctx context.Context, task *Task) (localize.Payload, error) {
	return j.handle(ctx, task)
}

func (j *testJockey) OnGetEdgesDescriptors(ctx context.Context, task *Task) (localize.Payload, error) {
	return j.handle(ctx, task)
}

func (j *testJockey) OnLocalizeInVertex(ctx context.Context, task *Task) (localize.Payload, error) {
	return j.handle(ctx, task)
}

func (j *testJockey) OnLocalizeEdge(ctx context.Context, task *Task) (localize.Payload, error) {
	return j.handle(ctx, task)
}

func (j *testJockey) OnGetDissimilarity(ctx context.Context, task *Task) (localize.Payload, error) {
	return j.handle(ctx, task)
}

func (j *testJockey) OnInterrupt(ctx context.Context, task *Task) {
	j.interrupts.Add(1)
}

func (j *testJockey) OnContinue(ctx context.Context, task *Task) error {
	j.continues.Add(1)
	return j.continueErr
}

var _ InterruptHook = (*testJockey)(nil)
var _ ContinueHook = (*testJockey)(nil)

// untilInterrupted blocks until the task is interrupted or preempted.
func untilInterrupted(ctx context.Context, task *Task) (localize.Payload, error) {
	select {
	case <-task.Interrupted():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrInterrupted
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func waitForState(t *testing.T, s *Server, want localize.TaskState) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		state, _ := s.State()
		if state == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("State() = %s, want %s", state, want)
		}
		time.Sleep(time.Millisecond)
	}
}

func mustSubmit(t *testing.T, s *Server, goal localize.Goal) *Session {
	t.Helper()
	session, err := s.SubmitGoal(t.Context(), goal)
	if err != nil {
		t.Fatalf("SubmitGoal(%v) error = %v", goal.Action, err)
	}
	return session
}

func mustResult(t *testing.T, session *Session) *localize.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	result, err := session.Result(ctx)
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	return result
}
