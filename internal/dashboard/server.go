// Package dashboard provides a real-time WebSocket monitor for the
// synchronization pipeline.
//
// The server broadcasts ingestion reports, worksheet sync results, and
// drift findings to connected WebSocket clients. It is a read-only
// monitor: clients observe runs, they cannot edit anything.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/utlib/eacli/internal/store"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeIngestReport indicates one export snapshot was ingested
	MessageTypeIngestReport MessageType = "ingest_report"

	// MessageTypeSheetSynced indicates one worksheet finished its sync run
	MessageTypeSheetSynced MessageType = "sheet_synced"

	// MessageTypeDriftFound indicates field drift between a worksheet and the store
	MessageTypeDriftFound MessageType = "drift_found"

	// MessageTypeRunComplete indicates a full pipeline run completed
	MessageTypeRunComplete MessageType = "run_complete"

	// MessageTypeStats indicates updated store statistics
	MessageTypeStats MessageType = "stats"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// IngestReportData contains one export's ingestion outcome
type IngestReportData struct {
	Source    string `json:"source"`
	New       int    `json:"new"`
	Changed   int    `json:"changed"`
	Unchanged int    `json:"unchanged"`
}

// SheetSyncedData contains one worksheet's sync outcome
type SheetSyncedData struct {
	Sheet    string `json:"sheet"`
	Category string `json:"category,omitempty"`
	State    string `json:"state"`
	NewItems int    `json:"new_items"`
	Backup   string `json:"backup,omitempty"`
	Error    string `json:"error,omitempty"`
}

// DriftFoundData contains field drift for one worksheet
type DriftFoundData struct {
	Sheet  string      `json:"sheet"`
	Fields []DriftItem `json:"fields"`
}

// DriftItem is one diverged cell
type DriftItem struct {
	MaterialID string `json:"material_id"`
	Column     string `json:"column"`
	SheetValue string `json:"sheet_value"`
	StoreValue string `json:"store_value"`
}

// RunCompleteData contains pipeline run totals
type RunCompleteData struct {
	ExportsIngested int           `json:"exports_ingested"`
	ExportsFailed   int           `json:"exports_failed"`
	New             int           `json:"new"`
	Changed         int           `json:"changed"`
	Unchanged       int           `json:"unchanged"`
	Sheets          int           `json:"sheets"`
	Duration        time.Duration `json:"duration"`
}

// StatsData contains store-level statistics
type StatsData struct {
	Archive    int       `json:"archive"`
	History    int       `json:"history"`
	Current    int       `json:"current"`
	LastIngest time.Time `json:"last_ingest,omitempty"`
}

// Server manages WebSocket connections and broadcasts pipeline messages
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server
	store    *store.Store

	// WebSocket client management
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	// Message broadcasting
	broadcast chan Message

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Logging
	logger *log.Logger
}

// Config holds server configuration
type Config struct {
	// Port to listen on (default: 8080)
	Port int

	// Store backs the /api/stats endpoint; nil disables it
	Store *store.Store

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Port:   8080,
		Logger: log.Default(),
	}
}

// NewServer creates a new dashboard WebSocket server
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		store:     config.Store,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// Start begins the HTTP server and WebSocket handler
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard server listening on %s", s.addr)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.logger.Println("Stopping dashboard server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()

	s.logger.Println("Dashboard server stopped")
	return nil
}

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// broadcastLoop handles message broadcasting to all clients
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Send outside the read lock to avoid blocking broadcasts
			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	// Initial stats snapshot so a fresh client has something to render
	welcome := Message{
		Type:      MessageTypeStats,
		Timestamp: time.Now(),
		Data:      s.statsJSON(r.Context()),
	}
	welcomeData, _ := json.Marshal(welcome)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = conn.Write(ctx, websocket.MessageText, welcomeData)
	cancel()

	go s.readLoop(conn)
}

// readLoop keeps the WebSocket connection alive and handles client disconnects
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		_, _, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
		// Clients are observers; their messages are ignored
	}
}

// removeClient safely removes a client connection
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

// statsJSON reads the store tier counts; nil store or a read failure
// yields an empty payload.
func (s *Server) statsJSON(ctx context.Context) json.RawMessage {
	if s.store == nil {
		return nil
	}
	counts, err := s.store.Counts(ctx)
	if err != nil {
		s.logger.Printf("Failed to read store counts: %v", err)
		return nil
	}
	stats := StatsData{
		Archive: counts[store.TierArchive],
		History: counts[store.TierHistory],
		Current: counts[store.TierCurrent],
	}
	if last, err := s.store.LastIngest(ctx); err == nil {
		stats.LastIngest = last
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return nil
	}
	return data
}

// handleStats returns current store statistics
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "stats unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	data := s.statsJSON(r.Context())
	if data == nil {
		http.Error(w, "stats unavailable", http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write(data)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	clientCount := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": clientCount,
	})
}

// handleRoot returns basic server information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Easy Access Monitor</title>
</head>
<body>
    <h1>Easy Access Pipeline Monitor</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Store statistics: <a href="/api/stats">/api/stats</a></p>
    <p>Health check: <a href="/health">/health</a></p>
    <p>Connect a WebSocket client to receive live ingestion and sync events.</p>
</body>
</html>`, r.Host)
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
