package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"stealthcompany.com/patientpanel/internal/metrics"
	"stealthcompany.com/patientpanel/internal/presenter"
	"stealthcompany.com/patientpanel/internal/recordstore"
	"stealthcompany.com/patientpanel/internal/toast"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
)

// Stream message types
const (
	MessageSnapshot = "snapshot"
	MessageToast    = "toast"
)

// StreamMessage is one frame pushed to stream clients
type StreamMessage struct {
	Type  string              `json:"type"`
	View  *presenter.View     `json:"view,omitempty"`
	Toast *toast.Notification `json:"toast,omitempty"`
}

// StreamHandler handles GET /patients/stream. Each client gets the rendered
// view for its query on connect and after every store change, plus every
// toast. Snapshots coalesce: a slow client only sees the latest one.
func (s *Server) StreamHandler(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	metrics.StreamClients.Inc()
	defer metrics.StreamClients.Dec()

	dirty := make(chan struct{}, 1)
	toasts := make(chan toast.Notification, 16)
	done := make(chan struct{})

	stopState := s.panel.Store().OnChange(func(recordstore.State) {
		select {
		case dirty <- struct{}{}:
		default:
		}
	})
	defer stopState()

	stopToasts := s.panel.Board().OnNotify(func(n toast.Notification) {
		select {
		case toasts <- n:
		default:
			log.Warn().Str("toast_id", n.ID).Msg("Stream client is lagging, dropping toast")
		}
	})
	defer stopToasts()

	// Reader: handles pongs and notices the client going away
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log.Info().Str("remote_addr", r.RemoteAddr).Msg("Stream client connected")
	defer log.Info().Str("remote_addr", r.RemoteAddr).Msg("Stream client disconnected")

	send := func(msg StreamMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.Debug().Err(err).Msg("Stream write failed")
			return false
		}
		return true
	}

	sendView := func() bool {
		view := s.panel.View(q)
		return send(StreamMessage{Type: MessageSnapshot, View: &view})
	}

	if !sendView() {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-dirty:
			if !sendView() {
				return
			}
		case n := <-toasts:
			if !send(StreamMessage{Type: MessageToast, Toast: &n}) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
