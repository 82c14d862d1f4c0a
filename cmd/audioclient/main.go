package main

import (
	"context"
	"encoding/binary"
	"flag"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcapi "live-captions-service/internal/api/grpc"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// Stream audio in chunks to simulate real-time streaming
// At 8kHz 16-bit mono = 16000 bytes/second
// 100ms chunks = 1600 bytes
const chunkSize = 1600
const chunkIntervalMs = 100

func main() {
	audioFile := flag.String("audio", "../../testdata/sample-8khz.wav", "Path to WAV file (8kHz 16-bit mono)")
	serverAddr := flag.String("server", "localhost:50051", "gRPC server address")
	sessionID := flag.String("session", "test-audio-"+time.Now().Format("150405"), "Session ID")
	userID := flag.String("user", "user-demo", "User ID")
	language := flag.String("language", "English", "Transcription language")
	flag.Parse()

	// Open audio file
	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", *audioFile).Msg("Failed to open audio file")
	}
	defer f.Close()

	// Read and validate WAV header
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		log.Fatal().Err(err).Msg("Failed to read WAV header")
	}

	// Validate it's a WAV file
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		log.Fatal().Msg("Not a valid WAV file")
	}

	// Extract audio format info
	audioFormat := binary.LittleEndian.Uint16(header[20:22])
	numChannels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])

	log.Info().
		Uint16("format", audioFormat).
		Uint16("channels", numChannels).
		Uint32("sampleRate", sampleRate).
		Uint16("bitsPerSample", bitsPerSample).
		Msg("WAV file")

	if audioFormat != 1 { // PCM
		log.Fatal().Msg("Only PCM format supported")
	}
	if sampleRate != 8000 {
		log.Warn().Uint32("sampleRate", sampleRate).Msg("Sample rate differs from the expected 8000 Hz")
	}

	// Connect to gRPC server
	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer conn.Close()

	log.Info().Str("server", *serverAddr).Msg("Connected to server")

	client := grpcapi.NewClient(conn)

	// Create stream with longer timeout for real audio
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	ctx = grpcapi.WithSession(ctx, *sessionID, *userID)

	if _, err := client.ApplySettings(ctx, map[string]any{"transcribe_language": *language}); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply settings")
	}

	stream, err := client.StreamAudio(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create stream")
	}

	log.Info().Str("sessionId", *sessionID).Str("userId", *userID).Msg("Streaming audio")

	// Stream audio in chunks
	audioChunk := make([]byte, chunkSize)
	var totalBytes int64
	var chunkNum int
	startTime := time.Now()

	for {
		n, err := f.Read(audioChunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read audio")
		}

		chunkNum++
		totalBytes += int64(n)
		offsetMs := int64(chunkNum * chunkIntervalMs)

		if err := stream.Send(audioChunk[:n]); err != nil {
			log.Fatal().Err(err).Msg("Failed to send frame")
		}

		if chunkNum%10 == 0 {
			log.Debug().Int("chunk", chunkNum).Int64("bytes", totalBytes).Int64("offsetMs", offsetMs).Msg("Sent chunk")
		}

		// Simulate real-time streaming
		time.Sleep(chunkIntervalMs * time.Millisecond)
	}

	elapsed := time.Since(startTime)
	log.Info().Int("chunks", chunkNum).Int64("bytes", totalBytes).Dur("elapsed", elapsed).Msg("Finished streaming")

	// Close stream and wait for response
	log.Info().Msg("Closing stream, waiting for final transcripts")

	ack, err := stream.CloseAndRecv()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to receive ack")
	}

	log.Info().Interface("ack", ack.AsMap()).Msg("Stream completed")
}
