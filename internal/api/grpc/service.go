package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "captions.v1.CaptionService"

// Metadata keys identifying the caller's session.
const (
	MetadataSessionID = "x-session-id"
	MetadataUserID    = "x-user-id"
)

// Full method names.
const (
	MethodStreamTranscripts = "/" + ServiceName + "/StreamTranscripts"
	MethodStreamAudio       = "/" + ServiceName + "/StreamAudio"
	MethodApplySettings     = "/" + ServiceName + "/ApplySettings"
	MethodStopSession       = "/" + ServiceName + "/StopSession"
)

// CaptionServiceServer is the server API. Messages are protobuf well-known
// types: transcript events and acks are structpb.Struct, audio frames are
// wrapperspb.BytesValue.
type CaptionServiceServer interface {
	StreamTranscripts(stream grpc.ServerStream) error
	StreamAudio(stream grpc.ServerStream) error
	ApplySettings(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	StopSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes CaptionService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CaptionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ApplySettings", Handler: applySettingsHandler},
		{MethodName: "StopSession", Handler: stopSessionHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamTranscripts", Handler: streamTranscriptsHandler, ClientStreams: true},
		{StreamName: "StreamAudio", Handler: streamAudioHandler, ClientStreams: true},
	},
	Metadata: "captions/v1/captions.proto",
}

func streamTranscriptsHandler(srv any, stream grpc.ServerStream) error {
	return srv.(CaptionServiceServer).StreamTranscripts(stream)
}

func streamAudioHandler(srv any, stream grpc.ServerStream) error {
	return srv.(CaptionServiceServer).StreamAudio(stream)
}

func applySettingsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CaptionServiceServer).ApplySettings(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodApplySettings}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CaptionServiceServer).ApplySettings(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func stopSessionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CaptionServiceServer).StopSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodStopSession}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CaptionServiceServer).StopSession(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
