// Package relay is the websocket server that pairs two players in a room and
// forwards their moves to each other. It knows nothing about the rules; it
// only assigns seats, stamps forwarded moves with the sender's color and
// sequence number, and reports disconnects.
package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/brensch/ringworld/game"
	"github.com/brensch/ringworld/netplay"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	DefaultRate       = rate.Limit(20)
	DefaultBurst      = 40
	DefaultSendBuffer = 64

	writeWait = 10 * time.Second
)

type Config struct {
	// Rate and Burst bound inbound messages per connection. Excess messages
	// are dropped.
	Rate       rate.Limit
	Burst      int
	SendBuffer int
	Logger     *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Rate <= 0 {
		c.Rate = DefaultRate
	}
	if c.Burst <= 0 {
		c.Burst = DefaultBurst
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = DefaultSendBuffer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

type client struct {
	id      string
	ws      *websocket.Conn
	send    chan []byte
	closed  bool
	limiter *rate.Limiter

	// guarded by Server.mu
	room    *room
	color   game.Color
	lastSeq int64
}

type room struct {
	code    string
	members []*client
}

func (r *room) other(c *client) []*client {
	var out []*client
	for _, m := range r.members {
		if m != c {
			out = append(out, m)
		}
	}
	return out
}

func (r *room) colorTaken(color game.Color) bool {
	for _, m := range r.members {
		if m.color == color {
			return true
		}
	}
	return false
}

type Server struct {
	cfg      Config
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]*room
	conns map[*client]bool
}

func NewServer(cfg Config) *Server {
	cfg = cfg.withDefaults()
	return &Server{
		cfg:      cfg,
		log:      cfg.Logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		rooms:    make(map[string]*room),
		conns:    make(map[*client]bool),
	}
}

// Handler serves the websocket endpoint on / and a liveness probe on
// /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/", s.serveWS)
	return mux
}

// Rooms reports the member count of every open room.
func (s *Server) Rooms() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.rooms))
	for code, r := range s.rooms {
		out[code] = len(r.members)
	}
	return out
}

// Close disconnects every client.
func (s *Server) Close() {
	s.mu.Lock()
	conns := make([]*client, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.ws.Close()
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	c := &client{
		id:      uuid.New().String(),
		ws:      ws,
		send:    make(chan []byte, s.cfg.SendBuffer),
		limiter: rate.NewLimiter(s.cfg.Rate, s.cfg.Burst),
	}
	log := s.log.With("conn", c.id)
	log.Info("client connected", "remote", r.RemoteAddr)

	s.mu.Lock()
	s.conns[c] = true
	s.mu.Unlock()

	writerDone := make(chan struct{})
	go s.writer(c, writerDone)

	s.reader(c, log)

	s.unregister(c, log)
	<-writerDone
	_ = ws.Close()
	log.Info("client disconnected")
}

func (s *Server) reader(c *client, log *slog.Logger) {
	for {
		_, b, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("read error", "error", err)
			}
			return
		}
		if !c.limiter.Allow() {
			log.Warn("rate limit exceeded, dropping message")
			continue
		}

		var env netplay.Envelope
		if err := json.Unmarshal(b, &env); err != nil {
			log.Warn("invalid JSON message received", "error", err)
			continue
		}

		switch env.Type {
		case netplay.TypeJoin:
			if !s.register(c, env, log) {
				return
			}
		case netplay.TypeMove:
			s.broadcastMove(c, env, log)
		default:
			log.Debug("ignoring message", "type", env.Type)
		}
	}
}

func (s *Server) writer(c *client, done chan<- struct{}) {
	defer close(done)
	for msg := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			// keep draining so senders never see a full channel from a dead conn
			continue
		}
	}
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

// deliver queues v for c. Callers hold s.mu.
func (s *Server) deliver(c *client, v any) {
	if c.closed {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Error("failed to encode message", "error", err)
		return
	}
	select {
	case c.send <- b:
	default:
		s.log.Warn("send buffer full, dropping message", "conn", c.id)
	}
}

// register seats c in the requested room. The first seat is red, the
// second blue; a reconnecting player gets their old color back if it is
// free. A third player is refused and false is returned.
func (s *Server) register(c *client, env netplay.Envelope, log *slog.Logger) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.room != nil {
		log.Debug("already in a room", "room", c.room.code)
		return true
	}

	r := s.rooms[env.RoomCode]
	if r == nil {
		r = &room{code: env.RoomCode}
		s.rooms[env.RoomCode] = r
	}
	if len(r.members) >= 2 {
		log.Info("room full", "room", env.RoomCode)
		s.deliver(c, netplay.Status{Type: netplay.TypeError, Message: "Room is full"})
		return false
	}

	switch {
	case env.Reconnecting && env.Color.IsPlayer() && !r.colorTaken(env.Color):
		c.color = env.Color
	case !r.colorTaken(game.Red):
		c.color = game.Red
	default:
		c.color = game.Blue
	}
	c.room = r
	c.lastSeq = 0
	r.members = append(r.members, c)
	log.Info("joined room", "room", r.code, "color", c.color, "reconnecting", env.Reconnecting)

	if len(r.members) == 1 {
		s.deliver(c, netplay.Status{Type: netplay.TypeWait, Message: "Waiting for opponent", Color: c.color})
		return true
	}
	for _, m := range r.members {
		s.deliver(m, netplay.Status{Type: netplay.TypeStart, Message: "Game starting", Color: m.color})
	}
	return true
}

type forwardedMove struct {
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data"`
	Sequence int64           `json:"sequence"`
	Color    game.Color      `json:"color"`
}

// broadcastMove forwards a move to the sender's opponent. A missing
// sequence number continues from the sender's last one.
func (s *Server) broadcastMove(c *client, env netplay.Envelope, log *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.room == nil {
		log.Warn("move from client outside a room")
		return
	}
	seq := c.lastSeq + 1
	if env.Sequence != nil {
		seq = *env.Sequence
	}
	c.lastSeq = seq

	data := env.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	out := forwardedMove{Type: netplay.TypeMove, Data: data, Sequence: seq, Color: c.color}
	for _, m := range c.room.other(c) {
		s.deliver(m, out)
	}
	log.Debug("move forwarded", "room", c.room.code, "sequence", seq)
}

// unregister removes c from its room, tells the remaining player, and
// deletes the room once empty.
func (s *Server) unregister(c *client, log *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conns, c)
	if r := c.room; r != nil {
		kept := r.members[:0]
		for _, m := range r.members {
			if m != c {
				kept = append(kept, m)
			}
		}
		r.members = kept
		c.room = nil

		for _, m := range r.members {
			s.deliver(m, netplay.Status{Type: netplay.TypeOpponentDisconnected, Message: "Opponent disconnected"})
		}
		if len(r.members) == 0 {
			delete(s.rooms, r.code)
			log.Info("room closed", "room", r.code)
		}
	}
	c.closed = true
	close(c.send)
}

// RoomCodes lists open rooms in order.
func (s *Server) RoomCodes() []string {
	rooms := s.Rooms()
	out := make([]string, 0, len(rooms))
	for code := range rooms {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
