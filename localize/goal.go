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

// Package localize defines the protocol types exchanged between clients and a localizing jockey:
// goals, feedback and results, together with the errors a jockey server reports.
package localize

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ActionKind is the kind of work a Goal asks a localizing jockey to do.
type ActionKind int

const (
	ActionUnspecified ActionKind = iota
	// ActionGetVertexDescriptor asks for the descriptors of the current vertex.
	ActionGetVertexDescriptor
	// ActionGetEdgesDescriptors asks for the descriptors of the edges leaving the current vertex.
	ActionGetEdgesDescriptors
	// ActionLocalizeInVertex asks for the pose of the agent inside the described vertex.
	ActionLocalizeInVertex
	// ActionLocalizeEdge asks which of the described edges the agent is on.
	ActionLocalizeEdge
	// ActionGetDissimilarity asks for the dissimilarity between the described places.
	ActionGetDissimilarity
	// ActionInterrupt suspends the active task.
	ActionInterrupt
	// ActionContinue resumes a previously interrupted task.
	ActionContinue
)

var actionNames = map[ActionKind]string{
	ActionGetVertexDescriptor: "GET_VERTEX_DESCRIPTOR",
	ActionGetEdgesDescriptors: "GET_EDGES_DESCRIPTORS",
	ActionLocalizeInVertex:    "LOCALIZE_IN_VERTEX",
	ActionLocalizeEdge:        "LOCALIZE_EDGE",
	ActionGetDissimilarity:    "GET_DISSIMILARITY",
	ActionInterrupt:           "INTERRUPT",
	ActionContinue:            "CONTINUE",
}

// ParseActionKind returns the ActionKind with the provided wire name.
func ParseActionKind(name string) (ActionKind, error) {
	for kind, kindName := range actionNames {
		if kindName == name {
			return kind, nil
		}
	}
	return ActionUnspecified, fmt.Errorf("%w: unknown action %q", ErrInvalidGoalKind, name)
}

func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// Valid returns true for every kind a client is allowed to submit.
func (k ActionKind) Valid() bool {
	_, ok := actionNames[k]
	return ok
}

// IsControl returns true for the kinds which modify the lifecycle of the active task
// instead of starting new work.
func (k ActionKind) IsControl() bool {
	return k == ActionInterrupt || k == ActionContinue
}

func (k ActionKind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGoalKind, int(k))
	}
	return json.Marshal(k.String())
}

func (k *ActionKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	kind, err := ParseActionKind(name)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// GoalID is a unique identifier of an accepted Goal.
type GoalID string

// NewGoalID generates a new random GoalID.
func NewGoalID() GoalID {
	return GoalID(uuid.NewString())
}

// Payload is a domain-defined document attached to feedback and results.
type Payload map[string]any

// Goal is the unit of work a client submits to a jockey server.
type Goal struct {
	// ID is assigned by the server if empty.
	ID GoalID `json:"goalId,omitempty"`

	Action ActionKind `json:"action"`

	// Descriptor is opaque data identifying a vertex, an edge or a dissimilarity query.
	// Ignored for INTERRUPT and CONTINUE.
	Descriptor []byte `json:"descriptor,omitempty"`
}

// Validate checks the shape of a Goal before it is routed.
func (g Goal) Validate() error {
	if !g.Action.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidGoalKind, g.Action)
	}
	if !g.Action.IsControl() && len(g.Descriptor) == 0 {
		return fmt.Errorf("%w: %v goal requires a descriptor", ErrInvalidGoal, g.Action)
	}
	return nil
}
