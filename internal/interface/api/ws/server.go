// Package ws serves the local web chat gateway and a small read-only HTTP API.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"macroBot/internal/domain"
)

const (
	DefaultChannel  = "lobby"
	defaultUsername = "web-user"
	defaultUserID   = "web"

	writeTimeout = 5 * time.Second
)

var ErrEmptyText = errors.New("ws: empty incoming text")

type MessageHandler func(ctx context.Context, msg domain.Message) error

// Server upgrades /ws/chat connections, turns every text frame into a
// domain.Message on the web platform and broadcasts replies back as JSON.
type Server struct {
	addr         string
	trustClients bool
	upgrader     websocket.Upgrader
	api          *apiHandlers
	now          func() time.Time

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	handler MessageHandler
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// Envelope is every frame the server writes.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ReplyDTO is a bot reply for the web platform.
type ReplyDTO struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

func NewServer(cfg Config) *Server {
	return &Server{
		addr:         cfg.addr(),
		trustClients: cfg.TrustClients,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		api:     newAPIHandlers(cfg),
		now:     time.Now,
		clients: make(map[*wsClient]struct{}),
	}
}

// Handler builds the HTTP routes. Connections opened through it live until
// ctx ends or the peer closes.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/chat", func(w http.ResponseWriter, r *http.Request) {
		s.handleWS(ctx, w, r)
	})
	s.api.register(mux)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			setCORSHeaders(w)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		mux.ServeHTTP(w, r)
	})
}

// Start listens on the configured address and blocks until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ws: shutdown")
		}
		s.closeClients()
	}()

	log.Info().Str("addr", s.addr).Msg("ws: listening")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws: upgrade")
		return
	}

	client := &wsClient{conn: conn}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	clientCount := len(s.clients)
	s.mu.Unlock()

	log.Debug().Str("remote", r.RemoteAddr).Int("clients", clientCount).Msg("ws: client connected")

	go s.handleClient(ctx, client)
}

func (s *Server) handleClient(ctx context.Context, client *wsClient) {
	stop := context.AfterFunc(ctx, func() {
		_ = client.conn.Close()
	})
	defer func() {
		stop()
		s.removeClient(client)
	}()

	for {
		msgType, data, err := client.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("ws: read")
			}
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}

		if err := s.dispatchIncoming(ctx, data); err != nil && !errors.Is(err, ErrEmptyText) {
			log.Error().Err(err).Msg("ws: dispatch")
		}
	}
}

type incomingPayload struct {
	Text      string `json:"text"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	IsPrivate bool   `json:"is_private"`
	// Role is only honored when the server trusts its clients.
	Role string `json:"role"`
}

func (s *Server) dispatchIncoming(ctx context.Context, data []byte) error {
	handler := s.getHandler()
	if handler == nil {
		return nil
	}

	msg, err := s.decodeMessage(data)
	if err != nil {
		return err
	}
	return handler(ctx, msg)
}

// decodeMessage accepts a JSON payload or plain text.
func (s *Server) decodeMessage(data []byte) (domain.Message, error) {
	payload := incomingPayload{}
	if err := json.Unmarshal(data, &payload); err != nil {
		payload = incomingPayload{Text: string(data)}
	}

	text := strings.TrimSpace(payload.Text)
	if text == "" {
		return domain.Message{}, ErrEmptyText
	}

	msg := domain.Message{
		Platform:   domain.PlatformWeb,
		ChannelID:  orDefault(payload.ChannelID, DefaultChannel),
		UserID:     orDefault(payload.UserID, defaultUserID),
		Username:   orDefault(payload.Username, defaultUsername),
		Text:       text,
		IsPrivate:  payload.IsPrivate,
		ReceivedAt: s.now(),
	}

	if s.trustClients && strings.TrimSpace(payload.Role) != "" {
		tier, err := domain.ParseTier(payload.Role)
		if err != nil {
			return domain.Message{}, fmt.Errorf("ws: %w", err)
		}
		msg.IsPlatformOwner = tier == domain.TierOwner
		msg.IsPlatformAdmin = tier == domain.TierCommandAdmin
		msg.IsPlatformMod = tier == domain.TierModerator
	}

	return msg, nil
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}

func (s *Server) getHandler() MessageHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler
}

func (s *Server) SetHandler(h MessageHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Clients returns the number of open connections.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// SendMessage delivers a bot reply to every web client.
func (s *Server) SendMessage(ctx context.Context, platform domain.Platform, channelID, text string) error {
	if platform != domain.PlatformWeb {
		return fmt.Errorf("ws: unsupported platform %s", platform)
	}
	return s.Broadcast(ctx, "reply", ReplyDTO{ChannelID: channelID, Text: text})
}

// Broadcast writes one envelope to every client. Clients that fail the write
// are dropped.
func (s *Server) Broadcast(ctx context.Context, kind string, data any) error {
	payload, err := json.Marshal(Envelope{Type: kind, Data: data})
	if err != nil {
		return err
	}

	s.mu.RLock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.writeJSON(json.RawMessage(payload)); err != nil {
			log.Debug().Err(err).Msg("ws: dropping client after write error")
			s.removeClient(c)
		}
	}

	return nil
}

func (s *Server) removeClient(c *wsClient) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if ok {
		_ = c.conn.Close()
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[*wsClient]struct{})
	s.mu.Unlock()
	for c := range clients {
		_ = c.conn.Close()
	}
}

var _ domain.OutgoingMessagePort = (*Server)(nil)
