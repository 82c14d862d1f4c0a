// Package errtrack reports swallowed failures to Sentry. Every function is a
// no-op until Init succeeds, so callers never need to check configuration.
package errtrack

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

var enabled atomic.Bool

// Config holds error tracking configuration.
type Config struct {
	DSN         string
	Environment string
	Release     string
	SampleRate  float64
}

// Init configures the Sentry client. An empty DSN leaves tracking disabled.
func Init(cfg Config) error {
	if cfg.DSN == "" {
		log.Info().Msg("Error tracking disabled (no DSN)")
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		SampleRate:  cfg.SampleRate,
	})
	if err != nil {
		return err
	}
	enabled.Store(true)
	log.Info().Str("environment", cfg.Environment).Msg("Error tracking initialized")
	return nil
}

// Enabled reports whether errors are being sent.
func Enabled() bool {
	return enabled.Load()
}

// Capture sends err with the given tags.
func Capture(err error, tags map[string]string) {
	if err == nil || !enabled.Load() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

// CaptureRequest sends err with the HTTP request attached.
func CaptureRequest(req *http.Request, err error, msg string) {
	if err == nil || !enabled.Load() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}

// Recoverer reports panics from next and answers 500.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", req.URL.Path).Msg("HTTP handler panic")
				if enabled.Load() {
					hub := sentry.CurrentHub().Clone()
					hub.Scope().SetRequest(req)
					hub.RecoverWithContext(req.Context(), rec)
					hub.Flush(2 * time.Second)
				}
				http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

// Flush waits up to timeout for queued events to be sent.
func Flush(timeout time.Duration) {
	if enabled.Load() {
		sentry.Flush(timeout)
	}
}
