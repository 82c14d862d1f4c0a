package display

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"live-captions-service/internal/models"
)

// ErrHubBusy is returned by Show when the broadcast queue is full.
var ErrHubBusy = errors.New("display: hub broadcast queue full")

const (
	broadcastQueue      = 256
	defaultWriteTimeout = 5 * time.Second
	// Cached frames of sessions nobody watches expire after lastFrameTTL.
	lastFrameTTL  = 10 * time.Minute
	sweepInterval = time.Minute
)

// hubMessage is either a frame to fan out or a request to drop a session's
// cached frame. Both travel on one queue so a Forget is ordered after the
// frames shown before it.
type hubMessage struct {
	frame  models.CaptionFrame
	forget string
}

type cachedFrame struct {
	frame models.CaptionFrame
	at    time.Time
}

type client struct {
	sessionID string
	conn      *websocket.Conn
}

// Hub fans caption frames out to the websocket connections watching each
// session. One goroutine (Run) owns the connections and performs every
// write. A new connection first receives the session's latest frame.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan hubMessage
	done       chan struct{}

	mu       sync.RWMutex
	sessions map[string]map[*client]struct{}
	last     map[string]cachedFrame
	lastTTL  time.Duration

	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	log          zerolog.Logger
}

// NewHub creates a Hub. Call Run to start delivering frames.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan hubMessage, broadcastQueue),
		done:       make(chan struct{}),
		sessions:   make(map[string]map[*client]struct{}),
		last:       make(map[string]cachedFrame),
		lastTTL:    lastFrameTTL,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		writeTimeout: defaultWriteTimeout,
		log:          log.With().Str("component", "display-hub").Logger(),
	}
}

// Run delivers frames until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case now := <-sweep.C:
			h.expire(now)

		case c := <-h.register:
			h.mu.Lock()
			set, ok := h.sessions[c.sessionID]
			if !ok {
				set = make(map[*client]struct{})
				h.sessions[c.sessionID] = set
			}
			set[c] = struct{}{}
			cached, hasLast := h.last[c.sessionID]
			h.mu.Unlock()
			h.log.Debug().Str("sessionId", c.sessionID).Int("clients", len(set)).Msg("Display connected")
			if hasLast {
				h.write(c, cached.frame)
			}

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			if msg.forget != "" {
				h.mu.Lock()
				delete(h.last, msg.forget)
				h.mu.Unlock()
				continue
			}
			frame := msg.frame
			h.mu.Lock()
			h.last[frame.SessionID] = cachedFrame{frame: frame, at: time.Now()}
			targets := make([]*client, 0, len(h.sessions[frame.SessionID]))
			for c := range h.sessions[frame.SessionID] {
				targets = append(targets, c)
			}
			h.mu.Unlock()
			for _, c := range targets {
				h.write(c, frame)
			}
		}
	}
}

// Show implements Sink. It queues the frame and never blocks on a slow
// connection.
func (h *Hub) Show(ctx context.Context, frame models.CaptionFrame) error {
	select {
	case h.broadcast <- hubMessage{frame: frame}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrHubBusy
	}
}

// Forget drops the cached frame of a finished session, including any frame
// of that session still waiting in the queue.
func (h *Hub) Forget(sessionID string) {
	h.mu.Lock()
	delete(h.last, sessionID)
	h.mu.Unlock()
	select {
	case h.broadcast <- hubMessage{forget: sessionID}:
	default:
		// Queue full; the sweep expires whatever the queue refills.
	}
}

// Clients returns the number of connections watching sessionID.
func (h *Hub) Clients(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// ServeWS upgrades the request and attaches the connection to sessionID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("sessionId", sessionID).Msg("WebSocket upgrade failed")
		return
	}
	c := &client{sessionID: sessionID, conn: conn}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	// Reads only detect disconnects; the glasses never send anything.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()
}

// expire drops cached frames that are older than lastTTL and have no
// connection watching them.
func (h *Hub) expire(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, cached := range h.last {
		if len(h.sessions[id]) == 0 && now.Sub(cached.at) > h.lastTTL {
			delete(h.last, id)
		}
	}
}

func (h *Hub) write(c *client, frame models.CaptionFrame) {
	c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	if err := c.conn.WriteJSON(frame); err != nil {
		h.log.Debug().Err(err).Str("sessionId", c.sessionID).Msg("Display write failed, dropping connection")
		h.remove(c)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.sessions[c.sessionID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.sessions, c.sessionID)
	}
	c.conn.Close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.sessions {
		for c := range set {
			c.conn.Close()
		}
		delete(h.sessions, id)
	}
}
