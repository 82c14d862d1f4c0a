// Package observability provides gRPC interceptors for metrics and logging.
package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"live-captions-service/internal/observability/errtrack"
	"live-captions-service/internal/observability/metrics"
)

// Metadata keys copied into call logs.
var loggedMetadata = map[string]string{
	"x-session-id": "sessionId",
	"x-user-id":    "userId",
}

// UnaryServerInterceptor returns a gRPC unary interceptor for logging and
// panic recovery.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		start := time.Now()
		defer recoverCall(info.FullMethod, &err)

		resp, err = handler(ctx, req)

		st, _ := status.FromError(err)
		callEvent(ctx, st.Code()).
			Str("method", info.FullMethod).
			Str("code", st.Code().String()).
			Dur("duration", time.Since(start)).
			Msg("gRPC unary call")

		return resp, err
	}
}

// StreamServerInterceptor returns a gRPC stream interceptor for metrics,
// logging and panic recovery.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		start := time.Now()
		m.RecordStreamStart(info.FullMethod)
		defer func() {
			duration := time.Since(start)
			m.RecordStreamEnd(duration.Seconds())

			st, _ := status.FromError(err)
			callEvent(ss.Context(), st.Code()).
				Str("method", info.FullMethod).
				Str("code", st.Code().String()).
				Dur("duration", duration).
				Bool("success", err == nil).
				Msg("gRPC stream completed")
		}()
		defer recoverCall(info.FullMethod, &err)

		return handler(srv, ss)
	}
}

// callEvent starts a log event at a level matching code, tagged with the
// caller's session metadata.
func callEvent(ctx context.Context, code codes.Code) *zerolog.Event {
	var ev *zerolog.Event
	switch code {
	case codes.OK, codes.Canceled:
		ev = log.Info()
	case codes.Internal, codes.Unknown, codes.DataLoss:
		ev = log.Error()
	default:
		ev = log.Warn()
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		for key, field := range loggedMetadata {
			if v := md.Get(key); len(v) > 0 {
				ev = ev.Str(field, v[0])
			}
		}
	}
	return ev
}

// recoverCall turns a handler panic into an Internal status and reports it.
func recoverCall(method string, err *error) {
	rec := recover()
	if rec == nil {
		return
	}
	panicErr := fmt.Errorf("panic in %s: %v", method, rec)
	log.Error().Interface("panic", rec).Str("method", method).Msg("gRPC handler panic")
	errtrack.Capture(panicErr, map[string]string{"component": "grpc", "method": method})
	*err = status.Error(codes.Internal, "internal error")
}
