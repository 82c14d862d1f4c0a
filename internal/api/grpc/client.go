package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls CaptionService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client using cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// WithSession attaches the session and user ids to outgoing calls.
func WithSession(ctx context.Context, sessionID, userID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, MetadataSessionID, sessionID, MetadataUserID, userID)
}

// TranscriptStream sends transcript events.
type TranscriptStream struct {
	grpc.ClientStream
}

// Send sends one transcript event.
func (s *TranscriptStream) Send(text string, isFinal bool, languageTag string) error {
	msg, err := structpb.NewStruct(map[string]any{
		"text":        text,
		"isFinal":     isFinal,
		"languageTag": languageTag,
	})
	if err != nil {
		return err
	}
	return s.SendMsg(msg)
}

// CloseAndRecv half-closes the stream and waits for the ack.
func (s *TranscriptStream) CloseAndRecv() (*structpb.Struct, error) {
	if err := s.CloseSend(); err != nil {
		return nil, err
	}
	ack := new(structpb.Struct)
	if err := s.RecvMsg(ack); err != nil {
		return nil, err
	}
	return ack, nil
}

// AudioStream sends raw audio frames.
type AudioStream struct {
	grpc.ClientStream
}

// Send sends one audio frame.
func (s *AudioStream) Send(audio []byte) error {
	return s.SendMsg(wrapperspb.Bytes(audio))
}

// CloseAndRecv half-closes the stream and waits for the ack.
func (s *AudioStream) CloseAndRecv() (*structpb.Struct, error) {
	if err := s.CloseSend(); err != nil {
		return nil, err
	}
	ack := new(structpb.Struct)
	if err := s.RecvMsg(ack); err != nil {
		return nil, err
	}
	return ack, nil
}

// StreamTranscripts opens a transcript stream.
func (c *Client) StreamTranscripts(ctx context.Context, opts ...grpc.CallOption) (*TranscriptStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], MethodStreamTranscripts, opts...)
	if err != nil {
		return nil, err
	}
	return &TranscriptStream{stream}, nil
}

// StreamAudio opens an audio stream.
func (c *Client) StreamAudio(ctx context.Context, opts ...grpc.CallOption) (*AudioStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[1], MethodStreamAudio, opts...)
	if err != nil {
		return nil, err
	}
	return &AudioStream{stream}, nil
}

// ApplySettings applies settings to a session, starting it if needed.
func (c *Client) ApplySettings(ctx context.Context, in map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodApplySettings, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// StopSession stops a session.
func (c *Client) StopSession(ctx context.Context, sessionID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]any{"sessionId": sessionID})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodStopSession, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
