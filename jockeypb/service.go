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

// Package jockeypb declares the lama.jockeys.v1.LocalizingJockey gRPC service. Messages are
// well-known protobuf types: goals and event records are google.protobuf.Struct documents
// built by the pbconv package.
package jockeypb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "lama.jockeys.v1.LocalizingJockey"

	SubmitFullMethodName   = "/" + ServiceName + "/Submit"
	CancelFullMethodName   = "/" + ServiceName + "/Cancel"
	GetStateFullMethodName = "/" + ServiceName + "/GetState"
)

// JockeyServer is the server API of the LocalizingJockey service.
type JockeyServer interface {
	// Submit routes a goal. Task-starting goals stream their feedback followed by the result,
	// control goals are answered with a single acknowledgement.
	Submit(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
	// Cancel preempts the active goal.
	Cancel(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	// GetState reports the executor state and the active goal.
	GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterJockeyServer registers the service implementation with a gRPC server.
func RegisterJockeyServer(s grpc.ServiceRegistrar, srv JockeyServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func submitHandler(srv any, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(JockeyServer).Submit(m, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

func cancelHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JockeyServer).Cancel(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CancelFullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(JockeyServer).Cancel(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getStateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JockeyServer).GetState(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetStateFullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(JockeyServer).GetState(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the grpc.ServiceDesc of the LocalizingJockey service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*JockeyServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Cancel", Handler: cancelHandler},
		{MethodName: "GetState", Handler: getStateHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Submit", Handler: submitHandler, ServerStreams: true},
	},
	Metadata: "lama/jockeys/v1/jockey.proto",
}

// JockeyClient is the client API of the LocalizingJockey service.
type JockeyClient interface {
	Submit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
	Cancel(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
	GetState(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type jockeyClient struct {
	cc grpc.ClientConnInterface
}

// NewJockeyClient creates a LocalizingJockey client over the provided connection.
func NewJockeyClient(cc grpc.ClientConnInterface) JockeyClient {
	return &jockeyClient{cc: cc}
}

func (c *jockeyClient) Submit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], SubmitFullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *jockeyClient) Cancel(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, CancelFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *jockeyClient) GetState(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetStateFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
