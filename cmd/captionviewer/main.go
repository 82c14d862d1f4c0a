// Caption Viewer relays caption frames published to Kafka to displays
// connected over WebSocket, so glasses can follow a session served by any
// replica.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"live-captions-service/internal/display"
	"live-captions-service/internal/models"
	"live-captions-service/internal/observability/logging"
)

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func consumeKafka(ctx context.Context, hub *display.Hub, brokers, topic string) {
	// Use partition reader without consumer group (works better through port-forward)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   strings.Split(brokers, ","),
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-time.Minute)); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Failed to seek, reading from the start")
	}

	log.Info().Str("topic", topic).Msg("Consuming caption frames")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("topic", topic).Msg("Kafka read error")
			time.Sleep(time.Second)
			continue
		}

		var frame models.CaptionFrame
		if err := json.Unmarshal(msg.Value, &frame); err != nil {
			log.Warn().Err(err).Msg("JSON unmarshal error")
			continue
		}

		log.Debug().
			Str("sessionId", frame.SessionID).
			Bool("final", frame.Final).
			Str("text", truncate(frame.Text, 40)).
			Msg("Received caption")
		if err := hub.Show(ctx, frame); err != nil {
			log.Warn().Err(err).Str("sessionId", frame.SessionID).Msg("Caption dropped")
		}
	}
}

func main() {
	port := flag.String("port", "8081", "HTTP server port")
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "captions.frames", "Caption frame topic")
	level := flag.String("log-level", "info", "Log level")
	flag.Parse()

	logging.Init(logging.Config{Level: *level, Format: "console", TimeFormat: time.Kitchen})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := display.NewHub()
	go hub.Run(ctx)
	go consumeKafka(ctx, hub, *brokers, *topic)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			http.Error(w, "session query parameter is required", http.StatusBadRequest)
			return
		}
		hub.ServeWS(w, r, sessionID)
	})

	srv := &http.Server{Addr: ":" + *port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("port", *port).Str("brokers", *brokers).Str("topic", *topic).Msg("Caption viewer starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server error")
	}
}
