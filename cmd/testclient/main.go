package main

import (
	"context"
	"flag"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcapi "live-captions-service/internal/api/grpc"
)

// script is a short lecture with a voice command and a saying.
var script = []struct {
	text  string
	final bool
}{
	{"Good", false},
	{"Good morning", false},
	{"Good morning everyone.", true},
	{"We have twenty three", false},
	{"We have twenty three slides today.", true},
	{"Switch mode.", true},
	{"Don't worry, it's a piece of cake.", true},
	{"Switch mode.", true},
}

func main() {
	serverAddr := flag.String("server", "localhost:50051", "gRPC server address")
	sessionID := flag.String("session", "test-"+time.Now().Format("150405"), "Session ID")
	userID := flag.String("user", "user-demo", "User ID")
	language := flag.String("language", "English", "Transcription language")
	translateTo := flag.String("translate", "", "Translation target language")
	flag.Parse()

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer conn.Close()

	log.Info().Str("server", *serverAddr).Msg("Connected to server")

	client := grpcapi.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctx = grpcapi.WithSession(ctx, *sessionID, *userID)

	settings, err := client.ApplySettings(ctx, map[string]any{
		"transcribe_language": *language,
		"translate_to":        *translateTo,
		"line_width":          "Narrow",
		"number_of_lines":     3,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to apply settings")
	}
	log.Info().Interface("settings", settings.AsMap()).Msg("Settings applied")

	stream, err := client.StreamTranscripts(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create stream")
	}

	for _, line := range script {
		log.Info().Str("text", line.text).Bool("final", line.final).Msg("Sending transcript")
		if err := stream.Send(line.text, line.final, ""); err != nil {
			log.Fatal().Err(err).Msg("Failed to send transcript")
		}
		time.Sleep(500 * time.Millisecond)
	}

	ack, err := stream.CloseAndRecv()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to receive ack")
	}
	log.Info().Interface("ack", ack.AsMap()).Msg("Received ack")

	if _, err := client.StopSession(ctx, *sessionID); err != nil {
		log.Warn().Err(err).Msg("Failed to stop session")
	}
}
