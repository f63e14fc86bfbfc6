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
	"fmt"
	"log/slog"
	"sync"

	"github.com/lama-robotics/jockey/localize"
	"github.com/lama-robotics/jockey/log"
)

// Server is a single-slot goal endpoint. At most one goal is active at a time: submitting a
// non-control goal preempts the active one, INTERRUPT and CONTINUE are applied to it.
type Server struct {
	executor *taskExecutor
	logger   *slog.Logger
	metrics  *Metrics

	// submitMu serializes goal routing so that preempt-then-start is never interleaved.
	submitMu sync.Mutex

	mu    sync.Mutex
	owner *Session
}

type ServerOption func(*Server)

// WithLogger sets a custom [slog.Logger]. Goal scoped attributes are attached to this logger
// and the result is available to Jockey callbacks through the github.com/lama-robotics/jockey/log
// package-level functions. If not provided, defaults to slog.Default().
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics makes the server report goal lifecycle to the provided collectors.
func WithMetrics(metrics *Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// NewServer creates a Server dispatching goals to the provided Jockey.
func NewServer(jockey Jockey, opts ...ServerOption) *Server {
	s := &Server{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.executor = newTaskExecutor(jockey, s, s.metrics)
	return s
}

// SubmitGoal routes a goal. INTERRUPT and CONTINUE are applied to the active task and the session
// of the active goal is returned, or nil if there's none. Any other goal preempts the active one,
// which reaches a terminal state and has its callback returned before the new goal is started,
// and a new Session owning the goal is returned.
func (s *Server) SubmitGoal(ctx context.Context, goal localize.Goal) (*Session, error) {
	ctx = log.WithLogger(ctx, s.logger.With("action", goal.Action.String()))

	if err := goal.Validate(); err != nil {
		log.Info(ctx, "goal rejected", "error", err)
		return nil, err
	}
	s.metrics.observeSubmit(goal.Action)

	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	switch goal.Action {
	case localize.ActionInterrupt:
		if !s.executor.interrupt(ctx) {
			log.Info(ctx, "no running task to interrupt")
		}
		return s.currentOwner(), nil

	case localize.ActionContinue:
		if err := s.executor.continue_(ctx); err != nil {
			log.Info(ctx, "continue rejected", "error", err)
			return nil, err
		}
		return s.currentOwner(), nil
	}

	if goal.ID == "" {
		goal.ID = localize.NewGoalID()
	}
	ctx = log.AttachAttrs(ctx, "goal_id", goal.ID)

	if _, err := s.executor.preempt(ctx); err != nil {
		return nil, fmt.Errorf("failed to preempt the active goal: %w", err)
	}

	session := newSession(goal)
	s.mu.Lock()
	s.owner = session
	s.mu.Unlock()
	s.metrics.setActive(true)

	if err := s.executor.start(ctx, goal); err != nil {
		s.release(session, err)
		return nil, fmt.Errorf("failed to start the goal: %w", err)
	}

	log.Info(ctx, "goal accepted")
	return session, nil
}

// Cancel preempts the active goal and releases the slot. Does nothing if there's no active goal.
func (s *Server) Cancel(ctx context.Context) error {
	ctx = log.WithLogger(ctx, s.logger)

	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	canceled, err := s.executor.preempt(ctx)
	if err != nil {
		return fmt.Errorf("failed to cancel the active goal: %w", err)
	}
	if canceled {
		log.Info(ctx, "goal canceled")
	}
	return nil
}

// CancelGoal preempts the goal with the provided ID if it's still active and returns
// localize.ErrGoalNotActive otherwise.
func (s *Server) CancelGoal(ctx context.Context, id localize.GoalID) error {
	ctx = log.WithLogger(ctx, s.logger.With("goal_id", id))

	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	if _, goal := s.executor.snapshot(); goal == nil || goal.ID != id {
		return fmt.Errorf("%w: %s", localize.ErrGoalNotActive, id)
	}
	canceled, err := s.executor.preempt(ctx)
	if err != nil {
		return fmt.Errorf("failed to cancel the goal: %w", err)
	}
	if !canceled {
		return fmt.Errorf("%w: %s finished", localize.ErrGoalNotActive, id)
	}
	log.Info(ctx, "goal canceled")
	return nil
}

// State returns the executor state and the active goal, if any.
// A goal is active while it runs and while it's suspended by an interrupt.
func (s *Server) State() (localize.TaskState, *localize.Goal) {
	return s.executor.snapshot()
}

func (s *Server) currentOwner() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

func (s *Server) release(session *Session, err error) {
	s.mu.Lock()
	if s.owner == session {
		s.owner = nil
	}
	s.mu.Unlock()
	session.discard(err)
	s.metrics.setActive(false)
}

func (s *Server) publishFeedback(ctx context.Context, feedback *localize.Feedback) error {
	s.mu.Lock()
	owner := s.owner
	s.mu.Unlock()

	if owner == nil || owner.goal.ID != feedback.GoalID {
		log.Verbose(ctx, "dropping feedback of an inactive goal", "feedback_goal_id", feedback.GoalID)
		return fmt.Errorf("%w: %s", localize.ErrGoalNotActive, feedback.GoalID)
	}
	return owner.pushFeedback(ctx, feedback)
}

func (s *Server) publishResult(ctx context.Context, result *localize.Result) {
	s.mu.Lock()
	owner := s.owner
	if owner == nil || owner.goal.ID != result.GoalID {
		s.mu.Unlock()
		log.Warn(ctx, "dropping result of an inactive goal", "result_goal_id", result.GoalID, "status", result.Status)
		return
	}
	s.owner = nil
	s.mu.Unlock()

	owner.resolve(result)
	s.metrics.observeResult(result)
	s.metrics.setActive(false)
	log.Info(ctx, "goal finished", "result_goal_id", result.GoalID, "status", result.Status)
}
