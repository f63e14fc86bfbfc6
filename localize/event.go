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

// Event is a notification a jockey server delivers to the owner of a goal:
// either a *Feedback or a terminal *Result.
type Event interface {
	isEvent()
	// Goal returns the identifier of the goal the event belongs to.
	Goal() GoalID
}

// Feedback is an incremental, non-terminal progress record of an active goal.
type Feedback struct {
	GoalID   GoalID     `json:"goalId"`
	Action   ActionKind `json:"action"`
	Progress Payload    `json:"progress,omitempty"`
}

func (*Feedback) isEvent() {}

func (f *Feedback) Goal() GoalID { return f.GoalID }

// ResultStatus is the terminal status of a goal.
type ResultStatus string

const (
	ResultStatusSucceeded ResultStatus = "SUCCEEDED"
	ResultStatusFailed    ResultStatus = "FAILED"
	// ResultStatusPreempted means the goal was displaced by another goal or canceled.
	// It is not a failure: the work was discarded.
	ResultStatusPreempted ResultStatus = "PREEMPTED"
)

// ParseResultStatus returns the ResultStatus with the provided wire name.
func ParseResultStatus(s string) (ResultStatus, error) {
	switch status := ResultStatus(s); status {
	case ResultStatusSucceeded, ResultStatusFailed, ResultStatusPreempted:
		return status, nil
	}
	return "", fmt.Errorf("unknown result status %q", s)
}

// Result is the terminal outcome of a goal. Exactly one is produced for every accepted
// non-control goal.
type Result struct {
	GoalID  GoalID       `json:"goalId"`
	Action  ActionKind   `json:"action"`
	Status  ResultStatus `json:"status"`
	Payload Payload      `json:"payload,omitempty"`
	// Error describes the failure reported by the jockey. Set only for FAILED results.
	Error string `json:"error,omitempty"`
}

func (*Result) isEvent() {}

func (r *Result) Goal() GoalID { return r.GoalID }

// NewPreemptedResult creates a PREEMPTED result for the provided goal.
func NewPreemptedResult(goal Goal) *Result {
	return &Result{GoalID: goal.ID, Action: goal.Action, Status: ResultStatusPreempted}
}
