// Package server exposes the grid engine over HTTP: a JSON view API, an
// edit endpoint, CSV export, and a WebSocket feed that pushes view-changed
// notifications to connected clients.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/tablekit/tablekit/internal/adapter"
	"github.com/tablekit/tablekit/internal/edit"
	"github.com/tablekit/tablekit/internal/grid"
	"github.com/tablekit/tablekit/internal/logging"
)

const (
	// Outbound client buffer; slow consumers past this are dropped.
	clientSendBuffer = 64

	shutdownTimeout = 5 * time.Second
)

// Config holds the server's listen address and origin policy.
type Config struct {
	Host string
	Port int
	// AllowedOrigins lists origin hosts accepted for WebSocket upgrades,
	// in addition to the server's own host.
	AllowedOrigins []string
}

// Addr formats the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GridServer serves one entity's grid: table state, inline editing,
// export, and live updates.
type GridServer struct {
	config  Config
	table   *grid.Manager
	columns *grid.ColumnManager
	adapter *adapter.Adapter
	editor  *edit.Controller
	logger  logging.Logger

	httpServer *http.Server
	serverMu   sync.Mutex

	clients   map[*websocket.Conn]*client
	clientsMu sync.RWMutex
	broadcast chan []byte

	unsubscribe func()
	shutdownOne sync.Once
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a grid server. The adapter may be nil for a purely local
// grid; the edit endpoint then persists through a no-op.
func New(cfg Config, table *grid.Manager, columns *grid.ColumnManager, ad *adapter.Adapter, logger logging.Logger) *GridServer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	s := &GridServer{
		config:    cfg,
		table:     table,
		columns:   columns,
		adapter:   ad,
		logger:    logger.WithComponent("server"),
		clients:   make(map[*websocket.Conn]*client),
		broadcast: make(chan []byte, 16),
	}

	s.editor = edit.NewController(table, s.persistEdit, logger)

	return s
}

// Start runs the HTTP server until ctx is canceled.
func (s *GridServer) Start(ctx context.Context) error {
	// Push a view-changed event to every client whenever the table
	// mutates.
	s.unsubscribe = s.table.Subscribe(func() {
		s.Broadcast(viewChangedMessage())
	})

	go s.runHub(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/view", s.handleView)
	mux.HandleFunc("/api/columns", s.handleColumns)
	mux.HandleFunc("/api/records/", s.handleRecord)
	mux.HandleFunc("/api/edit", s.handleEdit)
	mux.HandleFunc("/api/export.csv", s.handleExport)
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.serverMu.Lock()
	s.httpServer = &http.Server{
		Addr:         s.config.Addr(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	server := s.httpServer
	s.serverMu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "listening", "addr", s.config.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops the server, closing client connections gracefully.
func (s *GridServer) Shutdown() error {
	var err error

	s.shutdownOne.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}

		s.clientsMu.Lock()
		for conn, c := range s.clients {
			close(c.send)
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			delete(s.clients, conn)
		}
		s.clientsMu.Unlock()

		s.serverMu.Lock()
		server := s.httpServer
		s.serverMu.Unlock()

		if server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			err = server.Shutdown(ctx)
		}
	})

	return err
}

// Broadcast queues a message for every connected client.
func (s *GridServer) Broadcast(message []byte) {
	select {
	case s.broadcast <- message:
	default:
		// Hub backlog full; the next table mutation will catch clients up.
	}
}

// ClientCount reports connected WebSocket clients.
func (s *GridServer) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
