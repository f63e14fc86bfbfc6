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
	"iter"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/lama-robotics/jockey/localize"
)

func TestServer_SubmitGoalSucceeds(t *testing.T) {
	t.Parallel()
	jockey := newTestJockey(func(ctx context.Context, task *Task) (localize.Payload, error) {
		return localize.Payload{"descriptor": string(task.Descriptor())}, nil
	})
	server := NewServer(jockey)

	session := mustSubmit(t, server, localize.Goal{Action: localize.ActionGetEdgesDescriptors, Descriptor: []byte("v1")})

	want := &localize.Result{
		GoalID:  session.Goal().ID,
		Action:  localize.ActionGetEdgesDescriptors,
		Status:  localize.ResultStatusSucceeded,
		Payload: localize.Payload{"descriptor": "v1"},
	}
	if diff := cmp.Diff(want, mustResult(t, session)); diff != "" {
		t.Fatalf("Result() wrong result (-want +got):\n%s", diff)
	}
	if session.Goal().ID == "" {
		t.Fatalf("expected server to assign a goal ID")
	}
	waitForState(t, server, localize.TaskStateIdle)
	if _, goal := server.State(); goal != nil {
		t.Fatalf("State() goal = %v, want nil after completion", goal)
	}
}

func TestServer_DispatchesByActionKind(t *testing.T) {
	t.Parallel()
	jockey := newTestJockey(func(ctx context.Context, task *Task) (localize.Payload, error) {
		return nil, nil
	})
	server := NewServer(jockey)

	actions := []localize.ActionKind{
		localize.ActionGetVertexDescriptor,
		localize.ActionGetEdgesDescriptors,
		localize.ActionLocalizeInVertex,
		localize.ActionLocalizeEdge,
		localize.ActionGetDissimilarity,
	}
	for _, action := range actions {
		session := mustSubmit(t, server, localize.Goal{Action: action, Descriptor: []byte(action.String())})
		if got := mustResult(t, session); got.Status != localize.ResultStatusSucceeded || got.Action != action {
			t.Fatalf("Result() = %+v, want SUCCEEDED %v", got, action)
		}
	}

	var got []localize.ActionKind
	for _, r := range jockey.records() {
		got = append(got, r.action)
		if r.descriptor != r.action.String() {
			t.Fatalf("callback for %v observed descriptor %q", r.action, r.descriptor)
		}
	}
	if diff := cmp.Diff(actions, got); diff != "" {
		t.Fatalf("wrong dispatch order (-want +got):\n%s", diff)
	}
}

func TestServer_RejectsMalformedGoals(t *testing.T) {
	t.Parallel()
	server := NewServer(newTestJockey(untilInterrupted))

	testCases := []struct {
		name string
		goal localize.Goal
		want error
	}{
		{name: "unspecified kind", goal: localize.Goal{Descriptor: []byte("d")}, want: localize.ErrInvalidGoalKind},
		{name: "unknown kind", goal: localize.Goal{Action: localize.ActionKind(42), Descriptor: []byte("d")}, want: localize.ErrInvalidGoalKind},
		{name: "missing descriptor", goal: localize.Goal{Action: localize.ActionLocalizeEdge}, want: localize.ErrInvalidGoal},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := server.SubmitGoal(t.Context(), tc.goal); !errors.Is(err, tc.want) {
				t.Fatalf("SubmitGoal() error = %v, want %v", err, tc.want)
			}
		})
	}

	if state, goal := server.State(); state != localize.TaskStateIdle || goal != nil {
		t.Fatalf("State() = (%s, %v), want idle server after rejected goals", state, goal)
	}
}

// submit GET_VERTEX_DESCRIPTOR(D1) → feedback F1 → INTERRUPT → callback exits → CONTINUE →
// callback resumes with D1 and completes with R1.
func TestServer_InterruptThenContinue(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	jockey := newTestJockey(func(ctx context.Context, task *Task) (localize.Payload, error) {
		if !task.Resumed() {
			if err := task.Feedback(ctx, localize.Payload{"progress": "F1"}); err != nil {
				return nil, err
			}
			return untilInterrupted(ctx, task)
		}
		return localize.Payload{"result": "R1"}, nil
	})
	server := NewServer(jockey)

	session := mustSubmit(t, server, localize.Goal{Action: localize.ActionGetVertexDescriptor, Descriptor: []byte("D1")})
	next, stop := iter.Pull2(session.Events(ctx))
	defer stop()

	event, err, _ := next()
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	wantFeedback := &localize.Feedback{GoalID: session.Goal().ID, Action: localize.ActionGetVertexDescriptor, Progress: localize.Payload{"progress": "F1"}}
	if diff := cmp.Diff(wantFeedback, event); diff != "" {
		t.Fatalf("Events() wrong first event (-want +got):\n%s", diff)
	}

	interruptSession := mustSubmit(t, server, localize.Goal{Action: localize.ActionInterrupt})
	if interruptSession != session {
		t.Fatalf("SubmitGoal(INTERRUPT) returned %v, want the active goal session", interruptSession)
	}
	waitForState(t, server, localize.TaskStateIdle)
	if _, goal := server.State(); goal == nil || string(goal.Descriptor) != "D1" {
		t.Fatalf("State() goal = %v, want saved goal with descriptor D1", goal)
	}
	select {
	case <-session.Done():
		t.Fatalf("expected interrupted goal to have no result")
	default:
	}

	if continueSession := mustSubmit(t, server, localize.Goal{Action: localize.ActionContinue}); continueSession != session {
		t.Fatalf("SubmitGoal(CONTINUE) returned %v, want the active goal session", continueSession)
	}

	event, err, _ = next()
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	wantResult := &localize.Result{
		GoalID:  session.Goal().ID,
		Action:  localize.ActionGetVertexDescriptor,
		Status:  localize.ResultStatusSucceeded,
		Payload: localize.Payload{"result": "R1"},
	}
	if diff := cmp.Diff(wantResult, event); diff != "" {
		t.Fatalf("Events() wrong result (-want +got):\n%s", diff)
	}
	if _, _, ok := next(); ok {
		t.Fatalf("expected Events() to end after the result")
	}

	wantDispatched := []dispatchRecord{
		{action: localize.ActionGetVertexDescriptor, descriptor: "D1"},
		{action: localize.ActionGetVertexDescriptor, descriptor: "D1", resumed: true},
	}
	if diff := cmp.Diff(wantDispatched, jockey.records(), cmp.AllowUnexported(dispatchRecord{})); diff != "" {
		t.Fatalf("wrong dispatches (-want +got):\n%s", diff)
	}
	if jockey.interrupts.Load() != 1 || jockey.continues.Load() != 1 {
		t.Fatalf("hooks called (interrupt=%d, continue=%d), want once each", jockey.interrupts.Load(), jockey.continues.Load())
	}
}

func TestServer_ContinueWaitsForInterruptedCallback(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	jockey := newTestJockey(func(ctx context.Context, task *Task) (localize.Payload, error) {
		if task.Resumed() {
			return localize.Payload{"resumed": true}, nil
		}
		<-task.Interrupted()
		<-release
		return nil, ErrInterrupted
	})
	server := NewServer(jockey)

	session := mustSubmit(t, server, localize.Goal{Action: localize.ActionLocalizeInVertex, Descriptor: []byte("v")})
	mustSubmit(t, server, localize.Goal{Action: localize.ActionInterrupt})
	if state, _ := server.State(); state != localize.TaskStateInterrupting {
		t.Fatalf("State() = %s, want %s", state, localize.TaskStateInterrupting)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()
	mustSubmit(t, server, localize.Goal{Action: localize.ActionContinue})

	if got := mustResult(t, session); got.Status != localize.ResultStatusSucceeded {
		t.Fatalf("Result() status = %s, want %s", got.Status, localize.ResultStatusSucceeded)
	}
}

func TestServer_ContinueWithoutSavedState(t *testing.T) {
	t.Parallel()
	server := NewServer(newTestJockey(untilInterrupted))

	if _, err := server.SubmitGoal(t.Context(), localize.Goal{Action: localize.ActionContinue}); !errors.Is(err, localize.ErrNoSavedState) {
		t.Fatalf("SubmitGoal(CONTINUE) error = %v, want %v", err, localize.ErrNoSavedState)
	}
	if state, goal := server.State(); state != localize.TaskStateIdle || goal != nil {
		t.Fatalf("State() = (%s, %v), want unchanged idle state", state, goal)
	}
}

func TestServer_ContinueWhileRunningRejected(t *testing.T) {
	t.Parallel()
	jockey := newTestJockey(untilInterrupted)
	server := NewServer(jockey)

	session := mustSubmit(t, server, localize.Goal{Action: localize.ActionLocalizeEdge, Descriptor: []byte("e")})
	if _, err := server.SubmitGoal(t.Context(), localize.Goal{Action: localize.ActionContinue}); !errors.Is(err, localize.ErrNoSavedState) {
		t.Fatalf("SubmitGoal(CONTINUE) error = %v, want %v", err, localize.ErrNoSavedState)
	}
	if state, goal := server.State(); state != localize.TaskStateRunning || goal.ID != session.Goal().ID {
		t.Fatalf("State() = (%s, %v), want the goal to keep running", state, goal)
	}
	if n := len(jockey.records()); n != 1 {
		t.Fatalf("callback dispatched %d times, want 1", n)
	}
	if err := server.Cancel(t.Context()); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
}

func TestServer_InterruptWithoutActiveTask(t *testing.T) {
	t.Parallel()
	server := NewServer(newTestJockey(untilInterrupted))

	session, err := server.SubmitGoal(t.Context(), localize.Goal{Action: localize.ActionInterrupt})
	if err != nil || session != nil {
		t.Fatalf("SubmitGoal(INTERRUPT) = (%v, %v), want no-op", session, err)
	}
}

// LOCALIZE_EDGE(E1) is preempted by GET_DISSIMILARITY(D2).
func TestServer_NewGoalPreemptsActive(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	var sessionA atomic.Pointer[Session]
	var lateFeedbackErr error
	var resultBeforeStart atomic.Bool
	jockey := newTestJockey(func(ctx context.Context, task *Task) (localize.Payload, error) {
		switch task.Goal().Action {
		case localize.ActionLocalizeEdge:
			if err := task.Feedback(ctx, localize.Payload{"step": 1}); err != nil {
				return nil, err
			}
			<-ctx.Done()
			lateFeedbackErr = task.Feedback(context.Background(), localize.Payload{"step": 2})
			return nil, ctx.Err()
		default:
			select {
			case <-sessionA.Load().Done():
				resultBeforeStart.Store(true)
			default:
			}
			return localize.Payload{"dissimilarity": 0.25}, nil
		}
	})
	server := NewServer(jockey)

	a := mustSubmit(t, server, localize.Goal{Action: localize.ActionLocalizeEdge, Descriptor: []byte("E1")})
	sessionA.Store(a)
	nextA, stopA := iter.Pull2(a.Events(ctx))
	defer stopA()
	if event, err, _ := nextA(); err != nil || event.(*localize.Feedback).Progress["step"] != 1 {
		t.Fatalf("Events() = (%v, %v), want first feedback", event, err)
	}

	b := mustSubmit(t, server, localize.Goal{Action: localize.ActionGetDissimilarity, Descriptor: []byte("D2")})

	// the displaced callback has returned by the time SubmitGoal returns
	if !errors.Is(lateFeedbackErr, localize.ErrGoalNotActive) {
		t.Fatalf("late Feedback() error = %v, want %v", lateFeedbackErr, localize.ErrGoalNotActive)
	}

	event, err, _ := nextA()
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if diff := cmp.Diff(localize.NewPreemptedResult(a.Goal()), event); diff != "" {
		t.Fatalf("Events() wrong result for the displaced goal (-want +got):\n%s", diff)
	}
	if _, _, ok := nextA(); ok {
		t.Fatalf("expected no events after the result")
	}

	if got := mustResult(t, b); got.Status != localize.ResultStatusSucceeded || got.Payload["dissimilarity"] != 0.25 {
		t.Fatalf("Result() = %+v, want SUCCEEDED with dissimilarity", got)
	}
	if !resultBeforeStart.Load() {
		t.Fatalf("expected PREEMPTED result to be delivered before the new callback started")
	}

	wantLog := []string{"start LOCALIZE_EDGE", "exit LOCALIZE_EDGE", "start GET_DISSIMILARITY", "exit GET_DISSIMILARITY"}
	if diff := cmp.Diff(wantLog, jockey.entries()); diff != "" {
		t.Fatalf("callbacks overlapped (-want +got):\n%s", diff)
	}
}

func TestServer_PreemptSuspendedTask(t *testing.T) {
	t.Parallel()
	jockey := newTestJockey(func(ctx context.Context, task *Task) (localize.Payload, error) {
		if task.Goal().Action == localize.ActionLocalizeEdge {
			return untilInterrupted(ctx, task)
		}
		return nil, nil
	})
	server := NewServer(jockey)

	a := mustSubmit(t, server, localize.Goal{Action: localize.ActionLocalizeEdge, Descriptor: []byte("E1")})
	mustSubmit(t, server, localize.Goal{Action: localize.ActionInterrupt})
	waitForState(t, server, localize.TaskStateIdle)

	b := mustSubmit(t, server, localize.Goal{Action: localize.ActionGetVertexDescriptor, Descriptor: []byte("V")})

	if got := mustResult(t, a); got.Status != localize.ResultStatusPreempted {
		t.Fatalf("Result() status = %s, want %s", got.Status, localize.ResultStatusPreempted)
	}
	if got := mustResult(t, b); got.Status != localize.ResultStatusSucceeded {
		t.Fatalf("Result() status = %s, want %s", got.Status, localize.ResultStatusSucceeded)
	}
	if _, err := server.SubmitGoal(t.Context(), localize.Goal{Action: localize.ActionContinue}); !errors.Is(err, localize.ErrNoSavedState) {
		t.Fatalf("SubmitGoal(CONTINUE) error = %v, want %v", err, localize.ErrNoSavedState)
	}
}

func TestServer_CallbackFailure(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name      string
		fn        callbackFn
		wantError string
	}{
		{
			name: "error",
			fn: func(ctx context.Context, task *Task) (localize.Payload, error) {
				return nil, errors.New("no edges visible")
			},
			wantError: "no edges visible",
		},
		{
			name: "panic",
			fn: func(ctx context.Context, task *Task) (localize.Payload, error) {
				panic("laser disconnected")
			},
			wantError: "laser disconnected",
		},
		{
			name: "interrupted without request",
			fn: func(ctx context.Context, task *Task) (localize.Payload, error) {
				return nil, ErrInterrupted
			},
			wantError: ErrInterrupted.Error(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			server := NewServer(newTestJockey(tc.fn))

			session := mustSubmit(t, server, localize.Goal{Action: localize.ActionLocalizeEdge, Descriptor: []byte("e")})

			got := mustResult(t, session)
			if got.Status != localize.ResultStatusFailed {
				t.Fatalf("Result() status = %s, want %s", got.Status, localize.ResultStatusFailed)
			}
			if !strings.Contains(got.Error, tc.wantError) || !strings.Contains(got.Error, localize.ErrCallbackFailure.Error()) {
				t.Fatalf("Result() error = %q, want containing %q", got.Error, tc.wantError)
			}

			// the server stays available
			next := mustSubmit(t, server, localize.Goal{Action: localize.ActionGetDissimilarity, Descriptor: []byte("d")})
			if got := mustResult(t, next); got.Status != localize.ResultStatusFailed {
				t.Fatalf("Result() status = %s for the next goal, want it to reach the callback", got.Status)
			}
		})
	}
}

func TestServer_ContinueHookFailureFailsGoal(t *testing.T) {
	t.Parallel()
	jockey := newTestJockey(untilInterrupted)
	jockey.continueErr = errors.New("map changed")
	server := NewServer(jockey)

	session := mustSubmit(t, server, localize.Goal{Action: localize.ActionLocalizeInVertex, Descriptor: []byte("v")})
	mustSubmit(t, server, localize.Goal{Action: localize.ActionInterrupt})
	mustSubmit(t, server, localize.Goal{Action: localize.ActionContinue})

	got := mustResult(t, session)
	if got.Status != localize.ResultStatusFailed || !strings.Contains(got.Error, "map changed") {
		t.Fatalf("Result() = %+v, want FAILED by the continue hook", got)
	}
	if n := len(jockey.records()); n != 1 {
		t.Fatalf("callback dispatched %d times, want 1", n)
	}
	waitForState(t, server, localize.TaskStateIdle)
}

func TestServer_CheckpointSurvivesInterrupt(t *testing.T) {
	t.Parallel()
	jockey := newTestJockey(func(ctx context.Context, task *Task) (localize.Payload, error) {
		if task.Resumed() {
			return localize.Payload{"resumed_from": task.Checkpoint()}, nil
		}
		task.SetCheckpoint(3)
		return untilInterrupted(ctx, task)
	})
	server := NewServer(jockey)

	session := mustSubmit(t, server, localize.Goal{Action: localize.ActionGetEdgesDescriptors, Descriptor: []byte("v")})
	mustSubmit(t, server, localize.Goal{Action: localize.ActionInterrupt})
	mustSubmit(t, server, localize.Goal{Action: localize.ActionContinue})

	if got := mustResult(t, session); got.Payload["resumed_from"] != 3 {
		t.Fatalf("Result() payload = %v, want checkpoint 3", got.Payload)
	}
}

func TestServer_CancelIsIdempotent(t *testing.T) {
	t.Parallel()
	server := NewServer(newTestJockey(untilInterrupted))

	session := mustSubmit(t, server, localize.Goal{Action: localize.ActionLocalizeEdge, Descriptor: []byte("e")})
	for range 2 {
		if err := server.Cancel(t.Context()); err != nil {
			t.Fatalf("Cancel() error = %v", err)
		}
	}

	if got := mustResult(t, session); got.Status != localize.ResultStatusPreempted {
		t.Fatalf("Result() status = %s, want %s", got.Status, localize.ResultStatusPreempted)
	}
	if state, goal := server.State(); state != localize.TaskStateIdle || goal != nil {
		t.Fatalf("State() = (%s, %v), want released slot", state, goal)
	}
}

func TestServer_CancelGoal(t *testing.T) {
	t.Parallel()
	server := NewServer(newTestJockey(untilInterrupted))

	first := mustSubmit(t, server, localize.Goal{Action: localize.ActionLocalizeEdge, Descriptor: []byte("a")})
	second := mustSubmit(t, server, localize.Goal{Action: localize.ActionLocalizeEdge, Descriptor: []byte("b")})

	if err := server.CancelGoal(t.Context(), first.Goal().ID); !errors.Is(err, localize.ErrGoalNotActive) {
		t.Fatalf("CancelGoal() error = %v, want %v", err, localize.ErrGoalNotActive)
	}
	if state, goal := server.State(); state != localize.TaskStateRunning || goal == nil || goal.ID != second.Goal().ID {
		t.Fatalf("State() = (%s, %v), want the second goal running", state, goal)
	}

	if err := server.CancelGoal(t.Context(), second.Goal().ID); err != nil {
		t.Fatalf("CancelGoal() error = %v", err)
	}
	if got := mustResult(t, second); got.Status != localize.ResultStatusPreempted {
		t.Fatalf("Result() status = %s, want %s", got.Status, localize.ResultStatusPreempted)
	}
}

func TestServer_CancelWaitsForStalledCallback(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	server := NewServer(newTestJockey(func(ctx context.Context, task *Task) (localize.Payload, error) {
		<-release
		return nil, nil
	}))

	session := mustSubmit(t, server, localize.Goal{Action: localize.ActionLocalizeEdge, Descriptor: []byte("e")})

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	if err := server.Cancel(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Cancel() error = %v, want %v for a callback ignoring the interrupt", err, context.DeadlineExceeded)
	}
	// the goal is terminal even though its callback did not return
	if got := mustResult(t, session); got.Status != localize.ResultStatusPreempted {
		t.Fatalf("Result() status = %s, want %s", got.Status, localize.ResultStatusPreempted)
	}

	close(release)
	next := mustSubmit(t, server, localize.Goal{Action: localize.ActionLocalizeEdge, Descriptor: []byte("e")})
	if got := mustResult(t, next); got.Status != localize.ResultStatusSucceeded {
		t.Fatalf("Result() status = %s, want %s", got.Status, localize.ResultStatusSucceeded)
	}
}

func TestServer_FeedbackOrderAndNoFeedbackAfterResult(t *testing.T) {
	t.Parallel()
	const steps = 10
	jockey := newTestJockey(func(ctx context.Context, task *Task) (localize.Payload, error) {
		for i := range steps {
			if err := task.Feedback(ctx, localize.Payload{"step": i}); err != nil {
				return nil, err
			}
		}
		return localize.Payload{"steps": steps}, nil
	})
	server := NewServer(jockey)

	session := mustSubmit(t, server, localize.Goal{Action: localize.ActionGetVertexDescriptor, Descriptor: []byte("v")})

	var gotSteps []any
	var result *localize.Result
	for event, err := range session.Events(t.Context()) {
		if err != nil {
			t.Fatalf("Events() error = %v", err)
		}
		if result != nil {
			t.Fatalf("Events() yielded %v after the result", event)
		}
		switch v := event.(type) {
		case *localize.Feedback:
			gotSteps = append(gotSteps, v.Progress["step"])
		case *localize.Result:
			result = v
		}
	}

	var wantSteps []any
	for i := range steps {
		wantSteps = append(wantSteps, i)
	}
	if diff := cmp.Diff(wantSteps, gotSteps); diff != "" {
		t.Fatalf("wrong feedback order (-want +got):\n%s", diff)
	}
	if result == nil || result.Status != localize.ResultStatusSucceeded {
		t.Fatalf("Events() result = %v, want SUCCEEDED", result)
	}

	err := server.publishFeedback(t.Context(), &localize.Feedback{GoalID: session.Goal().ID})
	if !errors.Is(err, localize.ErrGoalNotActive) {
		t.Fatalf("publishFeedback() error = %v, want %v after the result", err, localize.ErrGoalNotActive)
	}
	if err := session.pushFeedback(t.Context(), &localize.Feedback{GoalID: session.Goal().ID}); !errors.Is(err, localize.ErrGoalNotActive) {
		t.Fatalf("pushFeedback() error = %v, want %v for a resolved session", err, localize.ErrGoalNotActive)
	}
}

func TestServer_AtMostOneActiveCallback(t *testing.T) {
	t.Parallel()
	rnd := rand.New(rand.NewPCG(1, 2))
	jockey := newTestJockey(func(ctx context.Context, task *Task) (localize.Payload, error) {
		select {
		case <-task.Interrupted():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrInterrupted
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Millisecond):
			return localize.Payload{}, nil
		}
	})
	server := NewServer(jockey)

	actions := []localize.ActionKind{
		localize.ActionGetVertexDescriptor,
		localize.ActionLocalizeEdge,
		localize.ActionGetDissimilarity,
		localize.ActionInterrupt,
		localize.ActionContinue,
	}
	var sessions []*Session
	for range 50 {
		action := actions[rnd.IntN(len(actions))]
		session, err := server.SubmitGoal(t.Context(), localize.Goal{Action: action, Descriptor: []byte("d")})
		if err != nil && !errors.Is(err, localize.ErrNoSavedState) {
			t.Fatalf("SubmitGoal(%v) error = %v", action, err)
		}
		if !action.IsControl() {
			sessions = append(sessions, session)
		}
		if state, _ := server.State(); !state.Active() && state != localize.TaskStateIdle {
			t.Fatalf("State() = %s observed between submissions, want IDLE, RUNNING or INTERRUPTING", state)
		}
		time.Sleep(time.Duration(rnd.IntN(3)) * time.Millisecond)
	}
	if err := server.Cancel(t.Context()); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	if got := jockey.maxRunning.Load(); got > 1 {
		t.Fatalf("observed %d concurrent callbacks, want at most 1", got)
	}
	for i, session := range sessions {
		if _, err := session.Result(t.Context()); err != nil {
			t.Fatalf("session %d Result() error = %v, want exactly one terminal result per goal", i, err)
		}
	}
}
