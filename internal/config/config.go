// Package config loads service configuration from environment variables.
// Invalid values fall back to defaults.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration is the complete service configuration.
type Configuration struct {
	Service       ServiceConfig
	Captions      CaptionsConfig
	Kafka         KafkaConfig
	Postgres      PostgresConfig
	Dictionary    DictionaryConfig
	Translation   TranslationConfig
	STT           STTConfig
	AudioLimits   AudioLimitsConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds listener and identity settings.
type ServiceConfig struct {
	Principal   string
	GRPCPort    string
	HTTPPort    string
	Environment string
}

// CaptionsConfig tunes caption sessions.
type CaptionsConfig struct {
	InactivityTimeout   time.Duration
	ClearDuration       time.Duration
	SayingDuration      time.Duration
	FinalDuration       time.Duration
	DebounceInterval    time.Duration
	SideCallTimeout     time.Duration
	MaxFinalTranscripts int
	Location            string
	FuzzyThreshold      float64
	SayingsOnlyMatching bool
}

// KafkaConfig holds Kafka publisher settings.
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TopicCaptions   string
	TopicEncounters string
	Principal       string
	QueueSize       int
}

// PostgresConfig holds the database connection. An empty DSN disables the
// term dictionary and encounter store.
type PostgresConfig struct {
	DSN            string
	MigrateOnStart bool
}

// DictionaryConfig selects a YAML saying dictionary. When Path is set it
// takes precedence over Postgres.
type DictionaryConfig struct {
	Path string
}

// TranslationConfig selects the translation provider: "none", "libre" or
// "openai".
type TranslationConfig struct {
	Provider string
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// STTConfig holds speech-to-text settings.
type STTConfig struct {
	Provider       string
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string
}

// AudioLimitsConfig bounds one recognized utterance.
type AudioLimitsConfig struct {
	MaxAudioBytes int64
	MaxDuration   time.Duration
	MaxPartials   int
}

// ObservabilityConfig holds logging, metrics and error tracking settings.
type ObservabilityConfig struct {
	LogLevel         string
	LogFormat        string
	MetricsPort      string
	SentryDSN        string
	SentrySampleRate float64
	Release          string
}

// Load reads the configuration from the environment.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-live-captions")

	return &Configuration{
		Service: ServiceConfig{
			Principal:   principal,
			GRPCPort:    envOrDefault("GRPC_PORT", "50051"),
			HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
			Environment: envOrDefault("ENV", "production"),
		},
		Captions: CaptionsConfig{
			InactivityTimeout:   envOrDefaultDuration("CAPTIONS_INACTIVITY_TIMEOUT", 40*time.Second),
			ClearDuration:       envOrDefaultDuration("CAPTIONS_CLEAR_DURATION", time.Second),
			SayingDuration:      envOrDefaultDuration("CAPTIONS_SAYING_DURATION", 5*time.Second),
			FinalDuration:       envOrDefaultDuration("CAPTIONS_FINAL_DURATION", 20*time.Second),
			DebounceInterval:    envOrDefaultDuration("CAPTIONS_DEBOUNCE_INTERVAL", 400*time.Millisecond),
			SideCallTimeout:     envOrDefaultDuration("CAPTIONS_SIDE_CALL_TIMEOUT", 5*time.Second),
			MaxFinalTranscripts: envOrDefaultInt("CAPTIONS_MAX_FINAL_TRANSCRIPTS", 30),
			Location:            envOrDefault("CAPTIONS_LOCATION", "Rice University"),
			FuzzyThreshold:      envOrDefaultFloat("CAPTIONS_FUZZY_THRESHOLD", 0),
			SayingsOnlyMatching: envOrDefaultBool("CAPTIONS_SAYINGS_ONLY_MATCHING", false),
		},
		Kafka: KafkaConfig{
			Enabled:         envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:         envList("KAFKA_BROKERS"),
			TopicCaptions:   envOrDefault("KAFKA_TOPIC_CAPTIONS", "captions.frames"),
			TopicEncounters: envOrDefault("KAFKA_TOPIC_ENCOUNTERS", "sayings.encounters"),
			Principal:       envOrDefault("KAFKA_PRINCIPAL", principal),
			QueueSize:       envOrDefaultInt("KAFKA_CAPTION_QUEUE_SIZE", 1024),
		},
		Postgres: PostgresConfig{
			DSN:            envOrDefault("DATABASE_URL", ""),
			MigrateOnStart: envOrDefaultBool("DATABASE_MIGRATE", false),
		},
		Dictionary: DictionaryConfig{
			Path: envOrDefault("DICTIONARY_PATH", ""),
		},
		Translation: TranslationConfig{
			Provider: strings.ToLower(envOrDefault("TRANSLATION_PROVIDER", "none")),
			Endpoint: envOrDefault("TRANSLATION_ENDPOINT", ""),
			APIKey:   envOrDefault("TRANSLATION_API_KEY", ""),
			Model:    envOrDefault("TRANSLATION_MODEL", "gpt-4o-mini"),
			Timeout:  envOrDefaultDuration("TRANSLATION_TIMEOUT", 5*time.Second),
		},
		STT: STTConfig{
			Provider:       envOrDefault("STT_PROVIDER", "mock"),
			LanguageCode:   envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:   envOrDefaultInt("STT_SAMPLE_RATE_HZ", 8000),
			InterimResults: envOrDefaultBool("STT_INTERIM_RESULTS", true),
			AudioEncoding:  envOrDefault("STT_AUDIO_ENCODING", "LINEAR16"),
		},
		AudioLimits: AudioLimitsConfig{
			MaxAudioBytes: int64(envOrDefaultInt("UTTERANCE_MAX_AUDIO_BYTES", 5*1024*1024)),
			MaxDuration:   envOrDefaultDuration("UTTERANCE_MAX_DURATION", 5*time.Minute),
			MaxPartials:   envOrDefaultInt("UTTERANCE_MAX_PARTIALS", 500),
		},
		Observability: ObservabilityConfig{
			LogLevel:         envOrDefault("LOG_LEVEL", "info"),
			LogFormat:        envOrDefault("LOG_FORMAT", "json"),
			MetricsPort:      envOrDefault("METRICS_PORT", "9090"),
			SentryDSN:        envOrDefault("SENTRY_DSN", ""),
			SentrySampleRate: envOrDefaultFloat("SENTRY_SAMPLE_RATE", 1.0),
			Release:          envOrDefault("RELEASE", ""),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
