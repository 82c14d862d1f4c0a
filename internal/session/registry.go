package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"live-captions-service/internal/models"
)

// Registry tracks the live sessions of the process. A user has at most one
// session; starting another closes the previous one.
type Registry struct {
	deps Deps
	opts Options

	mu     sync.RWMutex
	byID   map[string]*Session
	byUser map[string]string
}

// NewRegistry creates an empty Registry whose sessions share deps and opts.
func NewRegistry(deps Deps, opts Options) *Registry {
	return &Registry{
		deps:   deps.withDefaults(),
		opts:   opts,
		byID:   make(map[string]*Session),
		byUser: make(map[string]string),
	}
}

// Start opens a session for userID. An empty sessionID is replaced by a
// random one. Any session already registered under the same id or user is
// closed first.
func (r *Registry) Start(userID, sessionID string, settings Settings) *Session {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	// Building a session shows its first frame, so it happens outside r.mu.
	s := New(sessionID, userID, settings, r.deps, r.opts)

	r.mu.Lock()
	replaced := r.registerLocked(s)
	r.mu.Unlock()

	r.started(s, replaced)
	return s
}

// GetOrStart returns the session registered under sessionID, or starts one
// for userID when there is none. The boolean reports whether a session was
// started. Concurrent callers with the same id share one session.
func (r *Registry) GetOrStart(userID, sessionID string, settings Settings) (*Session, bool) {
	if s, err := r.Get(sessionID); err == nil {
		return s, false
	}
	s := New(sessionID, userID, settings, r.deps, r.opts)

	r.mu.Lock()
	if existing, ok := r.byID[sessionID]; ok {
		r.mu.Unlock()
		// Lost the race; the winner's frames stay on the display.
		s.Close()
		return existing, false
	}
	replaced := r.registerLocked(s)
	r.mu.Unlock()

	r.started(s, replaced)
	return s, true
}

// Get returns the session with the given id.
func (r *Registry) Get(sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// ForUser returns the active session of userID.
func (r *Registry) ForUser(userID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUser[userID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return r.byID[id], nil
}

// Dispatch routes a transcript event to its session.
func (r *Registry) Dispatch(ev models.TranscriptEvent) error {
	s, err := r.Get(ev.SessionID)
	if err != nil {
		return err
	}
	return s.HandleEvent(ev)
}

// Stop closes and forgets a session. It reports whether the session existed.
func (r *Registry) Stop(sessionID string) bool {
	r.mu.Lock()
	s, ok := r.byID[sessionID]
	if ok {
		r.removeLocked(s)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.closeSession(s, "stopped")
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// CloseAll closes every session and waits for their side calls to finish.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		sessions = append(sessions, s)
	}
	r.byID = make(map[string]*Session)
	r.byUser = make(map[string]string)
	r.mu.Unlock()

	for _, s := range sessions {
		r.closeSession(s, "shutdown")
	}
	for _, s := range sessions {
		s.Wait()
	}
}

// registerLocked installs s and returns the sessions it displaced.
func (r *Registry) registerLocked(s *Session) []*Session {
	var replaced []*Session
	if old, ok := r.byID[s.ID()]; ok {
		replaced = append(replaced, old)
		r.removeLocked(old)
	}
	if oldID, ok := r.byUser[s.UserID()]; ok {
		if old, ok := r.byID[oldID]; ok {
			replaced = append(replaced, old)
			r.removeLocked(old)
		}
	}
	r.byID[s.ID()] = s
	r.byUser[s.UserID()] = s.ID()
	return replaced
}

func (r *Registry) started(s *Session, replaced []*Session) {
	for _, old := range replaced {
		r.closeSession(old, "replaced")
	}
	r.deps.Metrics.RecordSessionStarted()
	log.Info().
		Str("sessionId", s.ID()).
		Str("userId", s.UserID()).
		Int("replaced", len(replaced)).
		Msg("Session started")
}

func (r *Registry) removeLocked(s *Session) {
	delete(r.byID, s.ID())
	if r.byUser[s.UserID()] == s.ID() {
		delete(r.byUser, s.UserID())
	}
}

func (r *Registry) closeSession(s *Session, reason string) {
	s.Close()
	r.deps.Metrics.RecordSessionStopped(reason)
	if r.opts.OnClose != nil {
		r.opts.OnClose(s.ID())
	}
}
