package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gridsiege.dev/internal/game"
	"gridsiege.dev/internal/protocol"
)

type Options struct {
	// ClientQueue is the per-client outbound buffer. A client that
	// falls this far behind is dropped.
	ClientQueue   int
	WriteDeadline time.Duration

	// VerifyToken, when set, validates the optional ?token= query
	// parameter. An empty token is always allowed: spectators do not
	// need an account.
	VerifyToken func(token string) bool
}

type Server struct {
	game *game.Game
	log  *log.Logger
	opts Options

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	out  chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.out) })
}

func NewServer(g *game.Game, logger *log.Logger, opts Options) *Server {
	if opts.ClientQueue <= 0 {
		opts.ClientQueue = 16
	}
	if opts.WriteDeadline <= 0 {
		opts.WriteDeadline = 5 * time.Second
	}
	return &Server{
		game: g,
		log:  logger,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		clients: map[*client]struct{}{},
	}
}

// Broadcast marshals v once and queues it on every connected client.
// Clients whose queue is full are dropped rather than stalling the
// game loop.
func (s *Server) Broadcast(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("broadcast marshal: %v", err)
		return
	}

	s.mu.Lock()
	var dead []*client
	for c := range s.clients {
		select {
		case c.out <- b:
		default:
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		delete(s.clients, c)
	}
	s.mu.Unlock()

	for _, c := range dead {
		c.close()
	}
}

// ClientCount reports currently connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if s.opts.VerifyToken != nil {
			token := strings.TrimSpace(r.URL.Query().Get("token"))
			if token != "" && !s.opts.VerifyToken(token) {
				http.Error(rw, "invalid token", http.StatusUnauthorized)
				return
			}
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := &client{out: make(chan []byte, s.opts.ClientQueue)}
		s.mu.Lock()
		s.clients[c] = struct{}{}
		s.mu.Unlock()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for b := range c.out {
				_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteDeadline))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}()

		// New connections get the full state immediately.
		if b, err := json.Marshal(s.game.StateMessage()); err == nil {
			select {
			case c.out <- b:
			default:
			}
		}

		// Reader loop. Malformed or unknown messages are dropped;
		// rule rejections are normal outcomes, not errors.
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeAddPoint:
				var ap protocol.AddPointMsg
				if err := json.Unmarshal(msg, &ap); err != nil {
					continue
				}
				s.game.PlaceAttacker(ap.X, ap.Y)
			case protocol.TypeResetGame:
				s.game.RequestReset()
			}
		}

		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		c.close()
		<-done
	}
}
