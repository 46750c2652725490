package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceDesc describes workclip.v1.PlayerControl for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PlayerControlServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Play", newString, PlayerControlServer.Play),
		unary("Pause", newString, PlayerControlServer.Pause),
		unary("Resume", newString, PlayerControlServer.Resume),
		unary("Stop", newString, PlayerControlServer.Stop),
		unary("Replay", newString, PlayerControlServer.Replay),
		unary("Seek", newStruct, PlayerControlServer.Seek),
		unary("Status", newString, PlayerControlServer.Status),
		unary("List", newEmpty, PlayerControlServer.List),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "workclip/v1/player_control.proto",
}

func newString() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }
func newStruct() *structpb.Struct        { return new(structpb.Struct) }
func newEmpty() *emptypb.Empty           { return new(emptypb.Empty) }

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

// unary builds the method handler the protoc plugin would generate.
func unary[Req, Resp proto.Message](name string, newReq func() Req, call func(PlayerControlServer, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PlayerControlServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(PlayerControlServer), ctx, req.(Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
