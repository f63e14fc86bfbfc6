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
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lama-robotics/jockey/localize"
)

// ToProtoGoal converts a goal to its wire document. The descriptor is base64-encoded.
func ToProtoGoal(goal localize.Goal) *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldAction: structpb.NewStringValue(goal.Action.String()),
	}
	if goal.ID != "" {
		fields[fieldGoalID] = structpb.NewStringValue(string(goal.ID))
	}
	if len(goal.Descriptor) > 0 {
		fields[fieldDescriptor] = structpb.NewStringValue(base64.StdEncoding.EncodeToString(goal.Descriptor))
	}
	return &structpb.Struct{Fields: fields}
}

// ToProtoEvent converts a feedback or a result to a Submit record.
func ToProtoEvent(event localize.Event) (*structpb.Struct, error) {
	switch ev := event.(type) {
	case *localize.Feedback:
		fields := map[string]*structpb.Value{
			fieldType:   structpb.NewStringValue(string(RecordTypeFeedback)),
			fieldGoalID: structpb.NewStringValue(string(ev.GoalID)),
			fieldAction: structpb.NewStringValue(ev.Action.String()),
		}
		if err := setPayload(fields, fieldProgress, ev.Progress); err != nil {
			return nil, fmt.Errorf("failed to convert feedback progress: %w", err)
		}
		return &structpb.Struct{Fields: fields}, nil

	case *localize.Result:
		fields := map[string]*structpb.Value{
			fieldType:   structpb.NewStringValue(string(RecordTypeResult)),
			fieldGoalID: structpb.NewStringValue(string(ev.GoalID)),
			fieldAction: structpb.NewStringValue(ev.Action.String()),
			fieldStatus: structpb.NewStringValue(string(ev.Status)),
		}
		if ev.Error != "" {
			fields[fieldError] = structpb.NewStringValue(ev.Error)
		}
		if err := setPayload(fields, fieldPayload, ev.Payload); err != nil {
			return nil, fmt.Errorf("failed to convert result payload: %w", err)
		}
		return &structpb.Struct{Fields: fields}, nil

	default:
		return nil, fmt.Errorf("unsupported event type %T", event)
	}
}

// ToProtoAck creates the record a control goal is answered with. The active goal id is
// omitted if there's no active goal.
func ToProtoAck(active localize.GoalID) *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldType: structpb.NewStringValue(string(RecordTypeAck)),
	}
	if active != "" {
		fields[fieldGoalID] = structpb.NewStringValue(string(active))
	}
	return &structpb.Struct{Fields: fields}
}

// ToProtoState converts the executor state and its active goal to a GetState response.
func ToProtoState(state localize.TaskState, goal *localize.Goal) *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldState: structpb.NewStringValue(string(state)),
	}
	if goal != nil {
		fields[fieldGoalID] = structpb.NewStringValue(string(goal.ID))
		fields[fieldAction] = structpb.NewStringValue(goal.Action.String())
	}
	return &structpb.Struct{Fields: fields}
}

func setPayload(fields map[string]*structpb.Value, name string, payload localize.Payload) error {
	if payload == nil {
		return nil
	}
	s, err := toProtoPayload(payload)
	if err != nil {
		return err
	}
	fields[name] = structpb.NewStructValue(s)
	return nil
}

// toProtoPayload falls back to a JSON round trip for values structpb can't convert directly,
// like typed slices and structs.
func toProtoPayload(payload localize.Payload) (*structpb.Struct, error) {
	if s, err := structpb.NewStruct(payload); err == nil {
		return s, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}
