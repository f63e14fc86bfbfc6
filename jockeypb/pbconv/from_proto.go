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

package pbconv

import (
	"encoding/base64"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lama-robotics/jockey/localize"
)

// FromProtoGoal parses a goal document. Errors wrap localize.ErrInvalidGoalKind or
// localize.ErrInvalidGoal so that they can be reported as invalid arguments.
func FromProtoGoal(s *structpb.Struct) (localize.Goal, error) {
	if s == nil {
		return localize.Goal{}, fmt.Errorf("%w: goal is missing", localize.ErrInvalidGoal)
	}
	action, err := localize.ParseActionKind(stringField(s, fieldAction))
	if err != nil {
		return localize.Goal{}, err
	}
	goal := localize.Goal{
		ID:     localize.GoalID(stringField(s, fieldGoalID)),
		Action: action,
	}
	if encoded := stringField(s, fieldDescriptor); encoded != "" {
		descriptor, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return localize.Goal{}, fmt.Errorf("%w: malformed descriptor: %w", localize.ErrInvalidGoal, err)
		}
		goal.Descriptor = descriptor
	}
	return goal, nil
}

// RecordTypeOf returns the type of a Submit record.
func RecordTypeOf(s *structpb.Struct) RecordType {
	return RecordType(stringField(s, fieldType))
}

// FromProtoEvent parses a feedback or a result record.
func FromProtoEvent(s *structpb.Struct) (localize.Event, error) {
	action, err := localize.ParseActionKind(stringField(s, fieldAction))
	if err != nil {
		return nil, fmt.Errorf("malformed record: %w", err)
	}
	goalID := localize.GoalID(stringField(s, fieldGoalID))

	switch recordType := RecordTypeOf(s); recordType {
	case RecordTypeFeedback:
		return &localize.Feedback{
			GoalID:   goalID,
			Action:   action,
			Progress: fromProtoPayload(s, fieldProgress),
		}, nil

	case RecordTypeResult:
		status, err := localize.ParseResultStatus(stringField(s, fieldStatus))
		if err != nil {
			return nil, fmt.Errorf("malformed result: %w", err)
		}
		return &localize.Result{
			GoalID:  goalID,
			Action:  action,
			Status:  status,
			Payload: fromProtoPayload(s, fieldPayload),
			Error:   stringField(s, fieldError),
		}, nil

	default:
		return nil, fmt.Errorf("unexpected record type %q", recordType)
	}
}

// FromProtoAck returns the id of the goal which was active when a control goal was applied.
func FromProtoAck(s *structpb.Struct) (localize.GoalID, error) {
	if recordType := RecordTypeOf(s); recordType != RecordTypeAck {
		return "", fmt.Errorf("unexpected record type %q", recordType)
	}
	return localize.GoalID(stringField(s, fieldGoalID)), nil
}

// FromProtoState parses a GetState response. The returned goal has no descriptor.
func FromProtoState(s *structpb.Struct) (localize.TaskState, *localize.Goal, error) {
	state, err := localize.ParseTaskState(stringField(s, fieldState))
	if err != nil {
		return "", nil, err
	}
	id := stringField(s, fieldGoalID)
	if id == "" {
		return state, nil, nil
	}
	action, err := localize.ParseActionKind(stringField(s, fieldAction))
	if err != nil {
		return "", nil, err
	}
	return state, &localize.Goal{ID: localize.GoalID(id), Action: action}, nil
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func fromProtoPayload(s *structpb.Struct, name string) localize.Payload {
	v := s.GetFields()[name].GetStructValue()
	if v == nil {
		return nil
	}
	return v.AsMap()
}
