package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hectorgimenez/rebuff/internal/bot"
	"github.com/hectorgimenez/rebuff/internal/config"
	"github.com/hectorgimenez/rebuff/internal/remote/history"
	"golang.ngrok.com/ngrok"
	ngrokcfg "golang.ngrok.com/ngrok/config"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
	broadcastInterval   = time.Second
)

type StatusProvider interface {
	Status() bot.Status
}

type HistoryReader interface {
	Recent(ctx context.Context, n int) ([]history.Entry, error)
}

type overlayLink interface {
	Connected() bool
}

type HttpServer struct {
	logger    *slog.Logger
	cfg       config.ServerCfg
	status    StatusProvider
	history   HistoryReader
	bridge    http.Handler
	templates *template.Template
	wsServer  *WebSocketServer

	mu        sync.Mutex
	server    *http.Server
	tunnel    net.Listener
	publicURL string
}

var (
	//go:embed all:templates
	templatesFS embed.FS

	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
)

type Client struct {
	conn *websocket.Conn
	send chan []byte
}

type WebSocketServer struct {
	logger     *slog.Logger
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewWebSocketServer(logger *slog.Logger) *WebSocketServer {
	return &WebSocketServer{
		logger:     logger,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (s *WebSocketServer) Run(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			for client := range s.clients {
				close(client.send)
				delete(s.clients, client)
			}
			return
		case client := <-s.register:
			s.clients[client] = true
		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
		case message := <-s.broadcast:
			for client := range s.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(s.clients, client)
				}
			}
		}
	}
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", slog.Any("error", err))
		return
	}

	client := &Client{conn: conn, send: make(chan []byte, 16)}
	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go s.writePump(client)
	go s.readPump(client)
}

func (s *WebSocketServer) writePump(client *Client) {
	defer client.conn.Close()

	for message := range client.send {
		if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}

	client.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (s *WebSocketServer) readPump(client *Client) {
	defer func() {
		select {
		case s.unregister <- client:
		case <-s.done:
		}
		client.conn.Close()
	}()

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error("WebSocket read error", slog.Any("error", err))
			}
			return
		}
	}
}

// New builds the local server. bridge may be nil when no overlay is used and
// hist may be nil when history is disabled.
func New(logger *slog.Logger, cfg config.ServerCfg, status StatusProvider, hist HistoryReader, bridge http.Handler) (*HttpServer, error) {
	templates, err := template.New("").ParseFS(templatesFS, "templates/*.gohtml")
	if err != nil {
		return nil, err
	}

	return &HttpServer{
		logger:    logger,
		cfg:       cfg,
		status:    status,
		history:   hist,
		bridge:    bridge,
		templates: templates,
		wsServer:  NewWebSocketServer(logger),
	}, nil
}

// Handler serves the overlay bridge and, when enabled, the status pages.
func (s *HttpServer) Handler() http.Handler {
	mux := s.statusRoutes()
	if s.bridge != nil {
		mux.Handle("/bridge", s.bridge)
	}

	return mux
}

func (s *HttpServer) statusRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	if !s.cfg.Enabled {
		return mux
	}

	mux.HandleFunc("/", s.getRoot)
	mux.HandleFunc("/api/status", s.getStatus)
	mux.HandleFunc("/api/history", s.getHistory)
	mux.HandleFunc("/ws", s.wsServer.HandleWebSocket)

	return mux
}

// BroadcastStatus pushes the controller status to every websocket client until ctx is done.
func (s *HttpServer) BroadcastStatus(ctx context.Context) {
	ticker := time.NewTicker(broadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.broadcastOnce(ctx)
		}
	}
}

func (s *HttpServer) broadcastOnce(ctx context.Context) {
	jsonData, err := json.Marshal(s.status.Status())
	if err != nil {
		s.logger.Error("Failed to marshal status data", slog.Any("error", err))
		return
	}

	select {
	case s.wsServer.broadcast <- jsonData:
	case <-s.wsServer.done:
	case <-ctx.Done():
	}
}

func (s *HttpServer) Listen(ctx context.Context, port int) error {
	if s.cfg.Enabled {
		go s.wsServer.Run(ctx)
		go s.BroadcastStatus(ctx)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: s.Handler(),
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	// Stop may have run before the server was stored.
	if ctx.Err() != nil {
		return nil
	}

	if s.cfg.Enabled && s.cfg.NgrokTunnel {
		if err := s.startTunnel(ctx); err != nil {
			s.logger.Error("Could not open ngrok tunnel, status page stays local", slog.Any("error", err))
		}
	}

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// startTunnel exposes the status pages, never the overlay bridge, on a public ngrok endpoint.
func (s *HttpServer) startTunnel(ctx context.Context) error {
	if s.cfg.NgrokToken == "" {
		return errors.New("ngrok_token is empty")
	}

	tun, err := ngrok.Listen(ctx, ngrokcfg.HTTPEndpoint(), ngrok.WithAuthtoken(s.cfg.NgrokToken))
	if err != nil {
		return fmt.Errorf("ngrok listen: %w", err)
	}

	s.mu.Lock()
	s.tunnel = tun
	s.publicURL = tun.URL()
	s.mu.Unlock()

	s.logger.Info("Status page available", slog.String("url", tun.URL()))
	go func() {
		if err := http.Serve(tun, s.statusRoutes()); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("ngrok tunnel closed", slog.Any("error", err))
		}
	}()

	return nil
}

func (s *HttpServer) Stop() error {
	s.mu.Lock()
	srv := s.server
	if s.tunnel != nil {
		s.tunnel.Close()
		s.tunnel = nil
	}
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return srv.Shutdown(ctx)
}

func (s *HttpServer) getRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := IndexData{Status: s.status.Status()}

	s.mu.Lock()
	data.PublicURL = s.publicURL
	s.mu.Unlock()

	if link, ok := s.bridge.(overlayLink); ok {
		data.ShowOverlay = true
		data.OverlayConnected = link.Connected()
	}

	entries, err := s.recent(r.Context(), defaultHistoryLimit)
	if err != nil {
		data.ErrorMessage = err.Error()
	}
	data.History = entries

	if err := s.templates.ExecuteTemplate(w, "index.gohtml", data); err != nil {
		s.logger.Error("Failed to render index", slog.Any("error", err))
	}
}

func (s *HttpServer) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.status.Status())
}

func (s *HttpServer) getHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.recent(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	writeJSON(w, entries)
}

func (s *HttpServer) recent(ctx context.Context, n int) ([]history.Entry, error) {
	if s.history == nil {
		return nil, nil
	}

	return s.history.Recent(ctx, n)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
