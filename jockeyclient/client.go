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

// Package jockeyclient provides a client of the LocalizingJockey gRPC service.
package jockeyclient

import (
	"context"
	"fmt"
	"io"
	"iter"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lama-robotics/jockey/internal/grpcutil"
	"github.com/lama-robotics/jockey/jockeypb"
	"github.com/lama-robotics/jockey/jockeypb/pbconv"
	"github.com/lama-robotics/jockey/localize"
)

// Client submits goals to a remote localizing jockey. Errors reported by the server are
// translated back to localize errors and can be checked with errors.Is.
type Client struct {
	client      jockeypb.JockeyClient
	closeConnFn func() error
}

// New creates a gRPC connection to the target and a Client using it. The connection is
// closed by Client.Close.
func New(target string, opts ...grpc.DialOption) (*Client, error) {
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{
		client:      jockeypb.NewJockeyClient(conn),
		closeConnFn: conn.Close,
	}, nil
}

// NewFromConn creates a Client over a connection managed externally. Close is a no-op.
func NewFromConn(conn grpc.ClientConnInterface) *Client {
	return &Client{
		client:      jockeypb.NewJockeyClient(conn),
		closeConnFn: func() error { return nil },
	}
}

// Submit sends a task-starting goal and yields its feedback followed by the terminal result.
// The goal is preempted by the server if the sequence is abandoned before the result.
func (c *Client) Submit(ctx context.Context, goal localize.Goal) iter.Seq2[localize.Event, error] {
	return func(yield func(localize.Event, error) bool) {
		if goal.Action.IsControl() {
			yield(nil, fmt.Errorf("%w: use Interrupt or Continue to submit %v", localize.ErrInvalidGoalKind, goal.Action))
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stream, err := c.client.Submit(ctx, pbconv.ToProtoGoal(goal))
		if err != nil {
			yield(nil, grpcutil.FromGRPCError(err))
			return
		}
		drainEventStream(stream, yield)
	}
}

func drainEventStream(stream grpc.ServerStreamingClient[structpb.Struct], yield func(localize.Event, error) bool) {
	for {
		pResp, err := stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			yield(nil, grpcutil.FromGRPCError(err))
			return
		}

		event, err := pbconv.FromProtoEvent(pResp)
		if err != nil {
			yield(nil, err)
			return
		}
		if !yield(event, nil) {
			return
		}
	}
}

// Interrupt suspends the active task. Returns the ID of the active goal, or an empty ID
// if there was none.
func (c *Client) Interrupt(ctx context.Context) (localize.GoalID, error) {
	return c.control(ctx, localize.ActionInterrupt)
}

// Continue resumes the interrupted task. Returns the ID of the resumed goal. Fails with
// localize.ErrNoSavedState if there's nothing to continue.
func (c *Client) Continue(ctx context.Context) (localize.GoalID, error) {
	return c.control(ctx, localize.ActionContinue)
}

func (c *Client) control(ctx context.Context, action localize.ActionKind) (localize.GoalID, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.client.Submit(ctx, pbconv.ToProtoGoal(localize.Goal{Action: action}))
	if err != nil {
		return "", grpcutil.FromGRPCError(err)
	}
	pResp, err := stream.Recv()
	if err == io.EOF {
		return "", fmt.Errorf("%v stream ended without an acknowledgement", action)
	}
	if err != nil {
		return "", grpcutil.FromGRPCError(err)
	}
	return pbconv.FromProtoAck(pResp)
}

// Cancel preempts the active goal, whoever submitted it.
func (c *Client) Cancel(ctx context.Context) error {
	if _, err := c.client.Cancel(ctx, &emptypb.Empty{}); err != nil {
		return grpcutil.FromGRPCError(err)
	}
	return nil
}

// State returns the executor state and the active goal, if any.
func (c *Client) State(ctx context.Context) (localize.TaskState, *localize.Goal, error) {
	pResp, err := c.client.GetState(ctx, &emptypb.Empty{})
	if err != nil {
		return "", nil, grpcutil.FromGRPCError(err)
	}
	return pbconv.FromProtoState(pResp)
}

// Close releases the connection if it's owned by the client.
func (c *Client) Close() error {
	return c.closeConnFn()
}
