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

// Package pbconv converts between localize types and the google.protobuf.Struct documents
// exchanged by the LocalizingJockey service.
package pbconv

// Field names of goal, record and state documents.
const (
	fieldType       = "type"
	fieldGoalID     = "goal_id"
	fieldAction     = "action"
	fieldDescriptor = "descriptor"
	fieldProgress   = "progress"
	fieldStatus     = "status"
	fieldPayload    = "payload"
	fieldError      = "error"
	fieldState      = "state"
)

// RecordType is the kind of a record streamed by Submit.
type RecordType string

const (
	RecordTypeFeedback RecordType = "feedback"
	RecordTypeResult   RecordType = "result"
	RecordTypeAck      RecordType = "ack"
)
