package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"live-captions-service/internal/app"
	"live-captions-service/internal/models"
	"live-captions-service/internal/observability/errtrack"
	"live-captions-service/internal/session"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

type startRequest struct {
	SessionID string         `json:"sessionId"`
	UserID    string         `json:"userId"`
	Settings  map[string]any `json:"settings"`
}

type eventRequest struct {
	Text        string `json:"text"`
	IsFinal     bool   `json:"isFinal"`
	LanguageTag string `json:"languageTag"`
}

type sessionResponse struct {
	SessionID     string `json:"sessionId"`
	UserID        string `json:"userId"`
	Locale        string `json:"locale"`
	ViewMode      string `json:"viewMode"`
	LineWidth     int    `json:"lineWidth"`
	NumberOfLines int    `json:"numberOfLines"`
}

type windowResponse struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
	State     string `json:"state"`
	ViewMode  string `json:"viewMode"`
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(errtrack.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if !application.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	h := &handlers{app: application}

	// API routes
	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", h.startSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Delete("/", h.stopSession)
			r.Post("/events", h.postEvent)
			r.Put("/settings", h.putSettings)
			r.Post("/view-mode", h.toggleViewMode)
			r.Get("/window", h.getWindow)
			r.Get("/ws", h.watch)
		})
	})

	return r
}

type handlers struct {
	app *app.Application
}

func (h *handlers) startSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	s := h.app.Registry.Start(req.UserID, req.SessionID, session.SettingsFromMap(req.Settings))
	writeJSON(w, http.StatusCreated, describe(s))
}

func (h *handlers) stopSession(w http.ResponseWriter, r *http.Request) {
	if !h.app.Registry.Stop(chi.URLParam(r, "sessionID")) {
		writeError(w, http.StatusNotFound, session.ErrSessionNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) postEvent(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req eventRequest
	if !decode(w, r, &req) {
		return
	}
	ev := models.TranscriptEvent{
		SessionID:   s.ID(),
		UserID:      s.UserID(),
		Text:        req.Text,
		IsFinal:     req.IsFinal,
		LanguageTag: req.LanguageTag,
		Timestamp:   time.Now().UnixMilli(),
	}
	if err := h.app.Validator.Validate(ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.HandleEvent(ev); err != nil {
		h.sessionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) putSettings(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req map[string]any
	if !decode(w, r, &req) {
		return
	}
	if err := s.ApplySettings(session.SettingsFromMap(req)); err != nil {
		h.sessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(s))
}

func (h *handlers) toggleViewMode(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if _, err := s.ToggleViewMode(); err != nil {
		h.sessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(s))
}

func (h *handlers) getWindow(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, windowResponse{
		SessionID: s.ID(),
		Text:      s.Window(),
		State:     s.State().String(),
		ViewMode:  s.ViewMode().String(),
	})
}

// watch attaches a display to a session's caption frames. The session does
// not need to exist yet.
func (h *handlers) watch(w http.ResponseWriter, r *http.Request) {
	h.app.Hub.ServeWS(w, r, chi.URLParam(r, "sessionID"))
}

func (h *handlers) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.app.Registry.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return s, true
}

func (h *handlers) sessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrSessionClosed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		errtrack.CaptureRequest(r, err, "session request failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func describe(s *session.Session) sessionResponse {
	g := s.Resolved().Geometry
	return sessionResponse{
		SessionID:     s.ID(),
		UserID:        s.UserID(),
		Locale:        s.Locale(),
		ViewMode:      s.ViewMode().String(),
		LineWidth:     g.LineWidth,
		NumberOfLines: g.NumberOfLines,
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
