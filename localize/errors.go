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

import "errors"

var (
	// ErrInvalidGoalKind indicates that a goal kind is unknown or that a control goal was passed
	// where a task-starting goal was expected.
	ErrInvalidGoalKind = errors.New("invalid goal kind")
	// ErrInvalidGoal indicates a malformed goal, for example a localization goal without a descriptor.
	ErrInvalidGoal = errors.New("invalid goal")
	// ErrNoSavedState indicates that CONTINUE was received while there was no interrupted task to resume.
	ErrNoSavedState = errors.New("no saved state to continue")
	// ErrCallbackFailure indicates that a jockey callback reported a failure.
	ErrCallbackFailure = errors.New("callback failure")
	// ErrGoalNotActive indicates that a notification was produced for a goal which was already
	// completed or preempted.
	ErrGoalNotActive = errors.New("goal is not active")
)
