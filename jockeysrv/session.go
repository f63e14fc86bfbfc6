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
	"iter"

	"github.com/lama-robotics/jockey/internal/eventpipe"
	"github.com/lama-robotics/jockey/internal/taskexec"
	"github.com/lama-robotics/jockey/localize"
)

// Session is the client-side handle of an accepted goal. It receives the goal's feedback
// and exactly one terminal result.
type Session struct {
	goal   localize.Goal
	pipe   *eventpipe.Local
	result *taskexec.Promise[*localize.Result]
}

func newSession(goal localize.Goal) *Session {
	return &Session{
		goal:   goal,
		pipe:   eventpipe.NewLocal(),
		result: taskexec.NewPromise[*localize.Result](),
	}
}

// Goal returns the accepted goal with its assigned ID.
func (s *Session) Goal() localize.Goal {
	return s.goal
}

// Done returns a channel which gets closed when the goal reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.result.Done()
}

// Result blocks until the goal reaches a terminal state.
func (s *Session) Result(ctx context.Context) (*localize.Result, error) {
	return s.result.Wait(ctx)
}

// Events yields feedback records in the order they were produced followed by the result.
// The sequence is meant to be consumed by a single reader: feedback is not replayed.
func (s *Session) Events(ctx context.Context) iter.Seq2[localize.Event, error] {
	return func(yield func(localize.Event, error) bool) {
		for {
			event, err := s.pipe.Read(ctx)
			if errors.Is(err, eventpipe.ErrPipeClosed) {
				result, err := s.result.Wait(ctx)
				if err != nil {
					yield(nil, err)
					return
				}
				yield(result, nil)
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(event, nil) {
				return
			}
		}
	}
}

func (s *Session) pushFeedback(ctx context.Context, feedback *localize.Feedback) error {
	if err := s.pipe.Write(ctx, feedback); err != nil {
		if errors.Is(err, eventpipe.ErrPipeClosed) {
			return fmt.Errorf("%w: %s", localize.ErrGoalNotActive, s.goal.ID)
		}
		return err
	}
	return nil
}

// resolve must happen before the pipe is closed so that a drained reader always finds the result.
func (s *Session) resolve(result *localize.Result) {
	s.result.Resolve(result)
	s.pipe.Close()
}

func (s *Session) discard(err error) {
	s.result.Reject(err)
	s.pipe.Close()
}
