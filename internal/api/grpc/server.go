// Package grpcapi exposes caption sessions over gRPC. Transcript events
// and audio frames stream in; caption frames leave through the display
// sinks.
package grpcapi

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"live-captions-service/internal/models"
	"live-captions-service/internal/observability/errtrack"
	"live-captions-service/internal/schema"
	"live-captions-service/internal/service/audio"
	"live-captions-service/internal/service/stt"
	"live-captions-service/internal/session"
)

// Deps are the collaborators the server needs.
type Deps struct {
	Registry    *session.Registry
	Validator   *schema.Validator
	STT         stt.Factory
	Provider    string
	AudioLimits audio.Limits
}

// Server implements CaptionServiceServer.
type Server struct {
	registry  *session.Registry
	validator *schema.Validator
	stt       stt.Factory
	provider  string
	limits    audio.Limits
}

var _ CaptionServiceServer = (*Server)(nil)

// NewServer returns a Server backed by deps.
func NewServer(deps Deps) *Server {
	if deps.Validator == nil {
		deps.Validator = schema.New()
	}
	return &Server{
		registry:  deps.Registry,
		validator: deps.Validator,
		stt:       deps.STT,
		provider:  deps.Provider,
		limits:    deps.AudioLimits,
	}
}

// Register creates a Server and registers it on g.
func Register(g *grpc.Server, deps Deps) *Server {
	s := NewServer(deps)
	g.RegisterService(&ServiceDesc, s)
	return s
}

// StreamTranscripts feeds externally recognised transcripts to a session.
// Each message is a Struct with text, isFinal and languageTag fields.
func (s *Server) StreamTranscripts(stream grpc.ServerStream) error {
	sess, err := s.resolve(stream.Context())
	if err != nil {
		return err
	}

	events := 0
	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		fields := msg.GetFields()
		ev := models.TranscriptEvent{
			SessionID:   sess.ID(),
			UserID:      sess.UserID(),
			Text:        fields["text"].GetStringValue(),
			IsFinal:     fields["isFinal"].GetBoolValue(),
			LanguageTag: fields["languageTag"].GetStringValue(),
			Timestamp:   time.Now().UnixMilli(),
		}
		if err := s.validator.Validate(ev); err != nil {
			return status.Error(codes.InvalidArgument, err.Error())
		}
		if err := sess.HandleEvent(ev); err != nil {
			return sessionError(err)
		}
		events++
	}

	ack, err := structpb.NewStruct(map[string]any{
		"sessionId": sess.ID(),
		"events":    events,
	})
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return stream.SendMsg(ack)
}

// StreamAudio runs speech recognition over raw audio frames and feeds the
// results to a session.
func (s *Server) StreamAudio(stream grpc.ServerStream) error {
	ctx := stream.Context()
	sess, err := s.resolve(ctx)
	if err != nil {
		return err
	}
	if s.stt == nil {
		return status.Error(codes.Unimplemented, "speech recognition is not configured")
	}

	adapter, err := s.stt(ctx, sess.Locale())
	if err != nil {
		errtrack.Capture(err, map[string]string{"component": "stt", "provider": s.provider})
		return status.Errorf(codes.Unavailable, "stt: %v", err)
	}
	h := audio.NewHandler(adapter, sess, audio.Config{
		SessionID:   sess.ID(),
		UserID:      sess.UserID(),
		LanguageTag: sess.Locale(),
		Provider:    s.provider,
		Limits:      s.limits,
	})
	if err := h.Start(ctx); err != nil {
		_ = adapter.Close()
		return status.Errorf(codes.Unavailable, "stt start: %v", err)
	}

	frames := 0
	for {
		frame := new(wrapperspb.BytesValue)
		if err := stream.RecvMsg(frame); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			_ = h.Close()
			return err
		}
		frames++
		if err := h.SendAudio(ctx, frame.GetValue()); err != nil {
			_ = h.Close()
			// The recognizer gets no more audio for this utterance, so it
			// can never end it; the client has to reconnect.
			if errors.Is(err, audio.ErrLimitExceeded) {
				return status.Error(codes.ResourceExhausted, err.Error())
			}
			return status.Errorf(codes.Internal, "stt: %v", err)
		}
	}

	if err := h.Close(); err != nil {
		log.Warn().Err(err).Str("sessionId", sess.ID()).Msg("Failed to close STT stream")
	}

	ack, err := structpb.NewStruct(map[string]any{
		"sessionId":  sess.ID(),
		"frames":     frames,
		"utterances": h.Utterance().Seq() - 1, // completed
	})
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return stream.SendMsg(ack)
}

// ApplySettings replaces the display settings of the caller's session.
func (s *Server) ApplySettings(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.ApplySettings(session.SettingsFromMap(in.AsMap())); err != nil {
		return nil, sessionError(err)
	}

	r := sess.Resolved()
	return structpb.NewStruct(map[string]any{
		"sessionId":     sess.ID(),
		"locale":        sess.Locale(),
		"lineWidth":     r.Geometry.LineWidth,
		"numberOfLines": r.Geometry.NumberOfLines,
		"viewMode":      sess.ViewMode().String(),
	})
}

// StopSession closes the session named by the request's sessionId field,
// or by the call metadata.
func (s *Server) StopSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id := in.GetFields()["sessionId"].GetStringValue()
	if id == "" {
		id = metadataValue(ctx, MetadataSessionID)
	}
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "sessionId is required")
	}
	return structpb.NewStruct(map[string]any{
		"sessionId": id,
		"stopped":   s.registry.Stop(id),
	})
}

// resolve finds the caller's session, starting one when needed. A known
// session id wins; otherwise the user's active session is reused.
func (s *Server) resolve(ctx context.Context) (*session.Session, error) {
	sessionID := metadataValue(ctx, MetadataSessionID)
	userID := metadataValue(ctx, MetadataUserID)
	if sessionID == "" && userID == "" {
		return nil, status.Errorf(codes.InvalidArgument, "%s or %s metadata is required", MetadataSessionID, MetadataUserID)
	}

	if sessionID != "" {
		if userID == "" {
			userID = sessionID
		}
		sess, _ := s.registry.GetOrStart(userID, sessionID, session.Settings{})
		return sess, nil
	}
	if sess, err := s.registry.ForUser(userID); err == nil {
		return sess, nil
	}
	return s.registry.Start(userID, "", session.Settings{}), nil
}

func metadataValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(key); len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrSessionClosed):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, session.ErrSessionNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
