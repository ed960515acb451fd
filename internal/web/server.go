package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/guidoenr/ampsim/internal/controls"
)

//go:embed static
var staticFiles embed.FS

const statusInterval = 500 * time.Millisecond

// Server is a local remote for the control panel. It mirrors the spectrum
// and panel state to websocket clients and accepts control input over HTTP.
type Server struct {
	mu        sync.RWMutex
	panel     *controls.Panel
	log       *log.Logger
	clients   map[*websocketClient]bool
	broadcast chan []byte
	upgrader  websocket.Upgrader
	notice    string
	closed    bool
	mux       *http.ServeMux
}

type websocketClient struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// StatusResponse is the panel state as served by /api/status and pushed as
// "status" messages.
type StatusResponse struct {
	Type     string                  `json:"type"`
	State    string                  `json:"state"`
	Controls []controls.ControlState `json:"controls"`
	Notice   string                  `json:"notice,omitempty"`
}

type SpectrumMessage struct {
	Type string `json:"type"`
	Bins []int  `json:"bins"`
}

type NoticeMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type InputRequest struct {
	Name  string      `json:"name"`
	Value json.Number `json:"value"`
}

type ResetRequest struct {
	Name string `json:"name"`
}

func NewServer(panel *controls.Panel, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[web] ", 0)
	}
	s := &Server{
		panel:     panel,
		log:       logger,
		clients:   make(map[*websocketClient]bool),
		broadcast: make(chan []byte, 256),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("web: static files: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /", http.FileServer(http.FS(static)))
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/input", s.handleInput)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux = mux
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.mux }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Printf("server starting on http://%s", ln.Addr())

	go s.Pump(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Pump fans queued messages out to clients and pushes periodic status
// until ctx is cancelled.
func (s *Server) Pump(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	defer s.dropClients()

	for {
		select {
		case <-ctx.Done():
			return
		case message := <-s.broadcast:
			s.fanOut(message)
		case <-ticker.C:
			s.publish(s.status())
		}
	}
}

// Notify implements the app notifier: the message is kept for /api/status
// and pushed to connected clients.
func (s *Server) Notify(message string) {
	s.mu.Lock()
	s.notice = message
	s.mu.Unlock()
	s.publish(NoticeMessage{Type: "notice", Message: message})
}

// PublishSpectrum queues a spectrum frame. Frames are dropped while the
// queue is full.
func (s *Server) PublishSpectrum(bins []uint8) {
	s.mu.RLock()
	listeners := len(s.clients)
	s.mu.RUnlock()
	if listeners == 0 {
		return
	}
	msg := SpectrumMessage{Type: "spectrum", Bins: make([]int, len(bins))}
	for i, v := range bins {
		msg.Bins[i] = int(v)
	}
	s.publish(msg)
}

func (s *Server) publish(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("encode: %v", err)
		return
	}
	select {
	case s.broadcast <- data:
	default:
		// drop if channel full (non-blocking)
	}
}

func (s *Server) fanOut(message []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(s.clients, client)
		}
	}
}

// dropClients disconnects every client and refuses later upgrades.
func (s *Server) dropClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for client := range s.clients {
		close(client.send)
		delete(s.clients, client)
	}
}

func (s *Server) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Server) status() StatusResponse {
	s.mu.RLock()
	notice := s.notice
	s.mu.RUnlock()
	return StatusResponse{
		Type:     "status",
		State:    s.panel.State().String(),
		Controls: s.panel.Snapshot(),
		Notice:   notice,
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	var req InputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.panel.Input(req.Name, req.Value.String()); err != nil {
		s.writeControlError(w, err)
		return
	}
	s.respondStatus(w)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var err error
	if req.Name == "" {
		err = s.panel.ResetAll()
	} else {
		err = s.panel.Reset(req.Name)
	}
	if err != nil {
		s.writeControlError(w, err)
		return
	}
	s.respondStatus(w)
}

func (s *Server) respondStatus(w http.ResponseWriter) {
	status := s.status()
	s.publish(status)
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) writeControlError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, controls.ErrNotReady):
		code = http.StatusConflict
	case errors.Is(err, controls.ErrUnknownControl), errors.Is(err, controls.ErrInvalidValue):
		code = http.StatusBadRequest
	default:
		s.log.Printf("control: %v", err)
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.isClosed() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("websocket upgrade error: %v", err)
		return
	}

	client := &websocketClient{
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[client] = true
	s.mu.Unlock()

	go client.writePump()
	go client.readPump()

	// new clients get the current state without waiting for the next tick
	s.publish(s.status())
}

func (c *websocketClient) readPump() {
	defer func() {
		c.server.mu.Lock()
		if c.server.clients[c] {
			delete(c.server.clients, c)
			close(c.send)
		}
		c.server.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1 << 10)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *websocketClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
