// internal/api/handler/api/events.go
package api

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/newthinker/papertrader/internal/api/response"
	"github.com/newthinker/papertrader/internal/app"
	"github.com/newthinker/papertrader/internal/metrics"
	"github.com/newthinker/papertrader/internal/simulation"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxClientFrame = 512
)

// SessionGetter looks a session up before a stream is opened.
type SessionGetter interface {
	GetSession(ctx context.Context, id string) (*simulation.Session, error)
}

// EventSubscriber registers for one session's events.
type EventSubscriber interface {
	Subscribe(sessionID string) (<-chan app.Event, func())
}

// EventsHandler streams session events over a websocket.
type EventsHandler struct {
	sessions SessionGetter
	events   EventSubscriber
	metrics  *metrics.Registry
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewEventsHandler creates a new events handler. Metrics may be nil.
// Browsers may connect from the page's own origin or from one of
// allowedOrigins; "*" admits any origin.
func NewEventsHandler(sessions SessionGetter, events EventSubscriber, reg *metrics.Registry, logger *zap.Logger, allowedOrigins []string) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &EventsHandler{
		sessions: sessions,
		events:   events,
		metrics:  reg,
		logger:   logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins, logger),
	}
	return h
}

// originChecker admits requests without an Origin header (non-browser
// clients), same-origin pages and the listed origins.
func originChecker(allowed []string, logger *zap.Logger) func(r *http.Request) bool {
	anyOrigin := slices.Contains(allowed, "*")
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || anyOrigin {
			return true
		}
		u, err := url.Parse(origin)
		if err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		for _, a := range allowed {
			if strings.EqualFold(strings.TrimSuffix(a, "/"), origin) {
				return true
			}
		}
		logger.Warn("event stream origin rejected", zap.String("origin", origin))
		return false
	}
}

// Stream sends a snapshot of the session followed by every event published
// for it. The connection is closed once the session is finished.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Subscribed before the snapshot is read, so a change saved in between
	// arrives as an event instead of being lost.
	events, cancel := h.events.Subscribe(id)
	defer cancel()

	s, err := h.sessions.GetSession(r.Context(), id)
	if err != nil {
		response.Fail(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.String("session_id", id), zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.StreamClientInc()
		defer h.metrics.StreamClientDec()
	}
	h.logger.Debug("stream opened", zap.String("session_id", id))

	done := make(chan struct{})
	go h.readLoop(conn, done)

	snapshot := app.Event{Type: app.EventSnapshot, SessionID: id, Session: s, Time: time.Now()}
	if err := h.write(conn, snapshot); err != nil {
		return
	}
	if s.Status.IsTerminal() {
		h.close(conn)
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				h.close(conn)
				return
			}
			if err := h.write(conn, ev); err != nil {
				h.logger.Debug("stream write failed", zap.String("session_id", id), zap.Error(err))
				return
			}
			if ev.Type.Terminal() {
				h.close(conn)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// readLoop discards client frames and keeps the read deadline alive on
// pongs. done is closed once the peer goes away.
func (h *EventsHandler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxClientFrame)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EventsHandler) write(conn *websocket.Conn, ev app.Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}

func (h *EventsHandler) close(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
