package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/coder/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// viewChangedMessage is pushed whenever the table's working set, sort,
// filters or selection change; clients re-fetch /api/view on receipt.
func viewChangedMessage() []byte {
	msg, _ := json.Marshal(map[string]interface{}{
		"type":      "view_changed",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	return msg
}

func (s *GridServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin already validated above
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientSendBuffer)}

	s.clientsMu.Lock()
	s.clients[conn] = c
	count := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Debug(r.Context(), "client connected", "clients", count)

	go s.writePump(c)
	go s.readPump(c)
}

// checkOrigin accepts only the server's own host, loopback variants, and
// any explicitly configured origins.
func (s *GridServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}

	port := strconv.Itoa(s.config.Port)
	allowed := append([]string{
		s.config.Addr(),
		"localhost:" + port,
		"127.0.0.1:" + port,
	}, s.config.AllowedOrigins...)

	for _, host := range allowed {
		if originURL.Host == host {
			return true
		}
	}

	return false
}

// runHub fans broadcast messages out to every client's send buffer.
// Clients whose buffer is full are dropped rather than blocking the hub.
func (s *GridServer) runHub(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case message := <-s.broadcast:
			var stalled []*websocket.Conn

			s.clientsMu.RLock()
			for conn, c := range s.clients {
				select {
				case c.send <- message:
				default:
					stalled = append(stalled, conn)
				}
			}
			s.clientsMu.RUnlock()

			for _, conn := range stalled {
				s.dropClient(conn, websocket.StatusPolicyViolation, "send buffer overflow")
			}

		case <-ticker.C:
			s.clientsMu.RLock()
			conns := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				conns = append(conns, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range conns {
				pingCtx, cancel := context.WithTimeout(ctx, writeWait)
				if err := conn.Ping(pingCtx); err != nil {
					s.dropClient(conn, websocket.StatusGoingAway, "ping failed")
				}
				cancel()
			}
		}
	}
}

func (s *GridServer) dropClient(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	s.clientsMu.Lock()
	c, ok := s.clients[conn]
	if ok {
		delete(s.clients, conn)
		close(c.send)
	}
	s.clientsMu.Unlock()

	if ok {
		conn.Close(code, reason)
	}
}

// writePump drains the client's send buffer onto the wire.
func (s *GridServer) writePump(c *client) {
	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			s.dropClient(c.conn, websocket.StatusAbnormalClosure, "write failed")
			return
		}
	}
}

// readPump consumes inbound frames. Clients only send control traffic;
// reading keeps ping/pong handling alive and detects disconnects.
func (s *GridServer) readPump(c *client) {
	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			s.dropClient(c.conn, websocket.StatusNormalClosure, "")
			return
		}
	}
}
