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

// Package jockeygrpc exposes a jockeysrv.Server as the lama.jockeys.v1.LocalizingJockey
// gRPC service.
package jockeygrpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lama-robotics/jockey/internal/grpcutil"
	"github.com/lama-robotics/jockey/jockeypb"
	"github.com/lama-robotics/jockey/jockeypb/pbconv"
	"github.com/lama-robotics/jockey/jockeysrv"
	"github.com/lama-robotics/jockey/localize"
	"github.com/lama-robotics/jockey/log"
)

// GoalRouter is the subset of *jockeysrv.Server the handler depends on.
type GoalRouter interface {
	SubmitGoal(ctx context.Context, goal localize.Goal) (*jockeysrv.Session, error)
	Cancel(ctx context.Context) error
	CancelGoal(ctx context.Context, id localize.GoalID) error
	State() (localize.TaskState, *localize.Goal)
}

var _ GoalRouter = (*jockeysrv.Server)(nil)

// abandonTimeout bounds the wait for the callback of a goal whose stream ended early.
const abandonTimeout = 10 * time.Second

type grpcHandler struct {
	router GoalRouter
}

var _ jockeypb.JockeyServer = (*grpcHandler)(nil)

// NewHandler creates a gRPC handler routing goals to the provided server.
func NewHandler(router GoalRouter) *grpcHandler {
	return &grpcHandler{router: router}
}

// RegisterWith registers the LocalizingJockey service with a gRPC server.
func (h *grpcHandler) RegisterWith(s *grpc.Server) {
	jockeypb.RegisterJockeyServer(s, h)
}

func (h *grpcHandler) Submit(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()

	goal, err := pbconv.FromProtoGoal(req)
	if err != nil {
		return grpcutil.ToGRPCError(err)
	}

	session, err := h.router.SubmitGoal(ctx, goal)
	if err != nil {
		return grpcutil.ToGRPCError(err)
	}

	if goal.Action.IsControl() {
		var active localize.GoalID
		if session != nil {
			active = session.Goal().ID
		}
		return stream.Send(pbconv.ToProtoAck(active))
	}

	for event, err := range session.Events(ctx) {
		if err != nil {
			h.abandon(ctx, session)
			return grpcutil.ToGRPCError(err)
		}
		resp, err := pbconv.ToProtoEvent(event)
		if err != nil {
			h.abandon(ctx, session)
			return status.Errorf(codes.Internal, "failed to convert event: %v", err)
		}
		if err := stream.Send(resp); err != nil {
			h.abandon(ctx, session)
			return err
		}
	}
	return nil
}

// abandon cancels a goal whose owner is gone so that its callback is not left blocked on feedback
// nobody reads.
func (h *grpcHandler) abandon(ctx context.Context, session *jockeysrv.Session) {
	select {
	case <-session.Done():
		return
	default:
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abandonTimeout)
	defer cancel()
	if err := h.router.CancelGoal(ctx, session.Goal().ID); err != nil && !errors.Is(err, localize.ErrGoalNotActive) {
		log.Warn(ctx, "failed to cancel an abandoned goal", "goal_id", session.Goal().ID, "error", err)
	}
}

func (h *grpcHandler) Cancel(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := h.router.Cancel(ctx); err != nil {
		return nil, grpcutil.ToGRPCError(err)
	}
	return &emptypb.Empty{}, nil
}

func (h *grpcHandler) GetState(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return pbconv.ToProtoState(h.router.State()), nil
}
