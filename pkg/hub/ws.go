package hub

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	gorilla "github.com/gorilla/websocket"

	"github.com/SheaGuev/collabsync/pkg/logger"
	"github.com/SheaGuev/collabsync/pkg/transport"
)

const (
	writeTimeout = 10 * time.Second

	// pongTimeout must exceed pingInterval so a healthy connection never
	// misses its read deadline.
	pingInterval = 25 * time.Second
	pongTimeout  = 60 * time.Second
)

// Server exposes the hub over a gorilla/websocket endpoint.
type Server struct {
	hub      *Hub
	logger   logger.Logger
	upgrader gorilla.Upgrader
}

func NewServer(h *Hub, log logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	return &Server{
		hub:    h,
		logger: log,
		upgrader: gorilla.Upgrader{
			EnableCompression: true,
			Subprotocols:      []string{"cbor"},
		},
	}
}

// Router mounts the realtime endpoint on a fresh gorilla/mux router.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/realtime", s.handleRealtime).Methods(http.MethodGet)
	return r
}

// handleRealtime upgrades the connection and runs the session: a write pump
// goroutine drains the session's send queue while this goroutine reads
// inbound messages and feeds them to the hub in arrival order.
func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	sess := s.hub.Register(r.URL.Query().Get("clientId"))
	defer func() {
		s.hub.Unregister(r.Context(), sess)
		_ = conn.Close()
	}()

	go s.writePump(conn, sess)

	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if gorilla.IsUnexpectedCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
				s.logger.Warn("session read failed", "session_id", sess.ID, "error", err)
			}
			return
		}

		var msg transport.Message
		if err := s.hub.codec.Unmarshal(data, &msg); err != nil {
			s.logger.Error("failed to decode inbound message", "session_id", sess.ID, "error", err)
			continue
		}

		// Sessions that never announced a client id adopt the first one
		// they send, so echo suppression works without a handshake step.
		if sess.ClientID == "" && msg.ClientID != "" {
			sess.ClientID = msg.ClientID
		}

		s.hub.Handle(r.Context(), sess, &msg)
	}
}

// writePump serializes all writes to the socket: queued hub messages and
// keepalive pings. It exits when the session closes or a write fails.
func (s *Server) writePump(conn *gorilla.Conn, sess *Session) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.Closed():
			_ = conn.WriteControl(gorilla.CloseMessage,
				gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
			return
		case msg := <-sess.Receive():
			data, err := s.hub.codec.Marshal(msg)
			if err != nil {
				s.logger.Error("BUG: failed to encode outbound message", "session_id", sess.ID, "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(gorilla.BinaryMessage, data); err != nil {
				s.logger.Warn("session write failed", "session_id", sess.ID, "error", err)
				s.hub.Unregister(context.Background(), sess)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(gorilla.PingMessage, nil); err != nil {
				s.hub.Unregister(context.Background(), sess)
				return
			}
		}
	}
}
