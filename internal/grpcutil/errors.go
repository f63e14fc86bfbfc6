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

// Package grpcutil translates between localize errors and gRPC status errors.
package grpcutil

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lama-robotics/jockey/localize"
)

// ErrorDomain is the domain of the errdetails.ErrorInfo attached to translated errors.
const ErrorDomain = "jockeys.lama"

var errorReasons = []struct {
	err    error
	reason string
	code   codes.Code
}{
	{err: localize.ErrInvalidGoalKind, reason: "INVALID_GOAL_KIND", code: codes.InvalidArgument},
	{err: localize.ErrInvalidGoal, reason: "INVALID_GOAL", code: codes.InvalidArgument},
	{err: localize.ErrNoSavedState, reason: "NO_SAVED_STATE", code: codes.FailedPrecondition},
	{err: localize.ErrGoalNotActive, reason: "GOAL_NOT_ACTIVE", code: codes.FailedPrecondition},
	{err: localize.ErrCallbackFailure, reason: "CALLBACK_FAILURE", code: codes.Internal},
}

// ToGRPCError translates localize errors into gRPC status errors carrying an
// errdetails.ErrorInfo which identifies the original error.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}

	// If it's already a gRPC status error, return it.
	if _, ok := status.FromError(err); ok {
		return err
	}

	code, reason := codes.Internal, ""
	for _, r := range errorReasons {
		if errors.Is(err, r.err) {
			code, reason = r.code, r.reason
			break
		}
	}
	if reason == "" {
		switch {
		case errors.Is(err, context.Canceled):
			code = codes.Canceled
		case errors.Is(err, context.DeadlineExceeded):
			code = codes.DeadlineExceeded
		}
	}

	st := status.New(code, err.Error())
	if reason == "" {
		return st.Err()
	}
	withDetails, detailsErr := st.WithDetails(&errdetails.ErrorInfo{Domain: ErrorDomain, Reason: reason})
	if detailsErr != nil {
		return st.Err()
	}
	return withDetails.Err()
}

// FromGRPCError restores the localize error a status was created from. Statuses without
// a known reason are translated to context errors where possible and returned as is otherwise.
func FromGRPCError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != ErrorDomain {
			continue
		}
		for _, r := range errorReasons {
			if r.reason == info.GetReason() {
				return fmt.Errorf("%w: %s", r.err, st.Message())
			}
		}
	}

	switch st.Code() {
	case codes.Canceled:
		return fmt.Errorf("%w: %s", context.Canceled, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
	}
	return err
}
