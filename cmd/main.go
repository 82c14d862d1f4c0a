package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcapi "live-captions-service/internal/api/grpc"
	"live-captions-service/internal/app"
	"live-captions-service/internal/config"
	httpapi "live-captions-service/internal/http"
	"live-captions-service/internal/observability"
	"live-captions-service/internal/observability/metrics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	application := app.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.Service.GRPCPort).Msg("Failed to listen")
	}

	server := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor()),
		grpc.StreamInterceptor(observability.StreamServerInterceptor(metrics.DefaultMetrics)),
	)

	// Register gRPC health check service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcapi.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	// Register application services
	grpcapi.Register(server, grpcapi.Deps{
		Registry:    application.Registry,
		Validator:   application.Validator,
		STT:         application.STT,
		Provider:    cfg.STT.Provider,
		AudioLimits: application.AudioLimits,
	})

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(server)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           httpapi.NewRouter(application),
		ReadHeaderTimeout: 5 * time.Second,
	}
	obsServer := observability.NewServer(":"+cfg.Observability.MetricsPort, application.Ready)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		application.Hub.Run(hubCtx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("port", cfg.Service.GRPCPort).Msg("Live captions gRPC server started")
		return server.Serve(lis)
	})
	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("Live captions HTTP server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(obsServer.ListenAndServe)

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down servers")
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		server.GracefulStop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP server shutdown")
		}
		application.Shutdown()
		stopHub()
		return obsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Live captions service stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Live captions service stopped")
}
