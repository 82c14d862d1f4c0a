package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"live-captions-service/internal/config"
	"live-captions-service/internal/display"
	"live-captions-service/internal/encounter"
	encounterpg "live-captions-service/internal/encounter/postgres"
	"live-captions-service/internal/events"
	"live-captions-service/internal/idiom"
	idiompg "live-captions-service/internal/idiom/postgres"
	"live-captions-service/internal/observability/errtrack"
	"live-captions-service/internal/observability/logging"
	"live-captions-service/internal/observability/metrics"
	"live-captions-service/internal/schema"
	"live-captions-service/internal/service/audio"
	"live-captions-service/internal/service/stt"
	"live-captions-service/internal/service/stt/google"
	"live-captions-service/internal/service/stt/mock"
	"live-captions-service/internal/session"
	"live-captions-service/internal/translate"
	"live-captions-service/internal/translate/openai"
)

const serviceName = "live-captions-service"

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	Registry    *session.Registry
	Hub         *display.Hub
	Publisher   *events.Publisher
	Validator   *schema.Validator
	Matcher     *idiom.Matcher
	STT         stt.Factory
	AudioLimits audio.Limits

	pool       *pgxpool.Pool
	kafkaQueue *display.Queue
	stopQueue  context.CancelFunc
	ready      atomic.Bool
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Configuration) *Application {
	a := &Application{
		Cfg: cfg,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	appLogger.Info().Msg("Live captions application created")
	return a
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	level := a.Cfg.Observability.LogLevel
	if envLevel := os.Getenv("ZEROLOG_LOG_LEVEL"); envLevel != "" {
		level = envLevel
	}
	format := a.Cfg.Observability.LogFormat
	if a.Cfg.Service.Environment == "dev" {
		format = "console"
	}

	logging.Init(logging.Config{
		Level:      strings.ToLower(level),
		Format:     format,
		TimeFormat: time.RFC3339,
	})

	a.Logger = logging.Logger().With().
		Str("service", serviceName).
		Str("component", "application").
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("environment", a.Cfg.Service.Environment).
		Msg("Logger setup completed")
}

// Start connects backing services and builds the caption pipeline. Optional
// dependencies (Postgres, Kafka, translation) degrade to no-ops when they
// are not configured.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Live captions service starting")

	cfg := a.Cfg
	if err := errtrack.Init(errtrack.Config{
		DSN:         cfg.Observability.SentryDSN,
		Environment: cfg.Service.Environment,
		Release:     cfg.Observability.Release,
		SampleRate:  cfg.Observability.SentrySampleRate,
	}); err != nil {
		startLogger.Warn().Err(err).Msg("Error tracking unavailable")
	}

	if cfg.Postgres.DSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("postgres ping: %w", err)
		}
		a.pool = pool
		startLogger.Info().Msg("Connected to Postgres")
	}

	var recorders encounter.Multi
	if a.pool != nil {
		store := encounterpg.NewStore(a.pool)
		if cfg.Postgres.MigrateOnStart {
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("postgres migrate: %w", err)
			}
		}
		recorders = append(recorders, store)
	}

	dict := a.loadDictionary(ctx)
	metrics.DefaultMetrics.SetDictionarySize(dict.Len())
	a.Matcher = idiom.NewMatcher(dict, idiom.WithFuzzyThreshold(cfg.Captions.FuzzyThreshold))

	a.Publisher = events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicCaptions:   cfg.Kafka.TopicCaptions,
		TopicEncounters: cfg.Kafka.TopicEncounters,
		Principal:       cfg.Kafka.Principal,
	})

	a.Hub = display.NewHub()
	sinks := display.Multi{a.Hub, display.NewLogSink(logging.WithComponent("captions"))}
	if a.Publisher.Enabled() {
		// Kafka writes can stall for the writer timeout, so they run off the
		// session path.
		a.kafkaQueue = display.NewQueue("kafka", display.NewKafkaSink(a.Publisher), cfg.Kafka.QueueSize)
		queueCtx, stop := context.WithCancel(context.Background())
		a.stopQueue = stop
		go a.kafkaQueue.Run(queueCtx)
		sinks = append(sinks, a.kafkaQueue)
		recorders = append(recorders, encounter.NewKafka(a.Publisher))
	}

	translator, err := a.newTranslator()
	if err != nil {
		return err
	}

	a.Registry = session.NewRegistry(
		session.Deps{
			Sink:       sinks,
			Matcher:    a.Matcher,
			Recorder:   recorders,
			Translator: translator,
		},
		session.Options{
			InactivityTimeout:   cfg.Captions.InactivityTimeout,
			ClearDuration:       cfg.Captions.ClearDuration,
			SayingDuration:      cfg.Captions.SayingDuration,
			FinalDuration:       cfg.Captions.FinalDuration,
			DebounceInterval:    cfg.Captions.DebounceInterval,
			SideCallTimeout:     cfg.Captions.SideCallTimeout,
			MaxFinalTranscripts: cfg.Captions.MaxFinalTranscripts,
			Location:            cfg.Captions.Location,
			SayingsOnlyMatching: cfg.Captions.SayingsOnlyMatching,
			OnClose:             a.Hub.Forget,
		},
	)
	a.Validator = schema.New()
	a.STT = a.newSTTFactory()
	a.AudioLimits = audio.Limits{
		MaxAudioBytes: cfg.AudioLimits.MaxAudioBytes,
		MaxDuration:   cfg.AudioLimits.MaxDuration,
		MaxPartials:   cfg.AudioLimits.MaxPartials,
	}

	a.ready.Store(true)
	startLogger.Info().
		Int("sayings", dict.Len()).
		Bool("kafka", a.Publisher.Enabled()).
		Bool("postgres", a.pool != nil).
		Str("translation", cfg.Translation.Provider).
		Str("sttProvider", cfg.STT.Provider).
		Msg("Live captions service ready")
	return nil
}

// Ready reports whether Start completed and Shutdown has not begun.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().Msg("Live captions service shutting down")
	a.ready.Store(false)

	if a.Registry != nil {
		a.Registry.CloseAll()
	}
	if a.kafkaQueue != nil {
		a.stopQueue()
		<-a.kafkaQueue.Done()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Failed to close Kafka publisher")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	errtrack.Flush(2 * time.Second)
}

// loadDictionary reads the saying dictionary from the YAML file when one is
// configured, else from Postgres. Failures leave matching disabled.
func (a *Application) loadDictionary(ctx context.Context) *idiom.Dictionary {
	var (
		dict   *idiom.Dictionary
		err    error
		source string
	)
	switch {
	case a.Cfg.Dictionary.Path != "":
		source = a.Cfg.Dictionary.Path
		dict, err = idiom.LoadYAMLFile(source)
	case a.pool != nil:
		source = "postgres"
		dict, err = idiompg.LoadDictionary(ctx, a.pool)
	default:
		a.Logger.Warn().Msg("No saying dictionary configured")
		return idiom.NewDictionary()
	}
	if err != nil {
		a.Logger.Error().Err(err).Str("source", source).Msg("Failed to load saying dictionary")
		errtrack.Capture(err, map[string]string{"component": "dictionary"})
		return idiom.NewDictionary()
	}
	a.Logger.Info().Str("source", source).Int("entries", dict.Len()).Msg("Saying dictionary loaded")
	return dict
}

func (a *Application) newTranslator() (translate.Translator, error) {
	tc := a.Cfg.Translation
	switch tc.Provider {
	case "", "none":
		return translate.Passthrough{}, nil
	case "libre":
		endpoint := tc.Endpoint
		if endpoint == "" {
			endpoint = "http://localhost:5000/translate"
		}
		return translate.NewHTTPClient(endpoint, tc.APIKey, tc.Timeout), nil
	case "openai":
		opts := []openai.Option{openai.WithTimeout(tc.Timeout)}
		if tc.Endpoint != "" {
			opts = append(opts, openai.WithBaseURL(tc.Endpoint))
		}
		t, err := openai.New(tc.APIKey, tc.Model, opts...)
		if err != nil {
			return nil, fmt.Errorf("translation: %w", err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("translation: unknown provider %q", tc.Provider)
	}
}

func (a *Application) newSTTFactory() stt.Factory {
	sc := a.Cfg.STT
	if sc.Provider == stt.ProviderGoogle {
		return google.NewFactory(google.Config{
			LanguageCode:   sc.LanguageCode,
			SampleRateHz:   int32(sc.SampleRateHz),
			InterimResults: sc.InterimResults,
			AudioEncoding:  sc.AudioEncoding,
		})
	}
	return mock.NewFactory()
}
