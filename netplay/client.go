package netplay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brensch/ringworld/game"
	"github.com/gorilla/websocket"
)

// ErrGaveUp is returned by Run once MaxReconnectAttempts connections in a
// row have failed.
var ErrGaveUp = errors.New("netplay: reconnect attempts exhausted")

// ErrQueueFull is returned by Send when the outbound queue is full.
var ErrQueueFull = errors.New("netplay: outbound queue full")

type Config struct {
	URL      string
	RoomCode string

	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	HeartbeatInterval    time.Duration
	MaxBackoff           time.Duration
	HandshakeTimeout     time.Duration

	// QueueSize bounds each of the inbound move, outbound move and event
	// channels.
	QueueSize int

	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		ReconnectDelay:       5 * time.Second,
		MaxReconnectAttempts: 5,
		HeartbeatInterval:    30 * time.Second,
		MaxBackoff:           30 * time.Second,
		HandshakeTimeout:     10 * time.Second,
		QueueSize:            64,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = d.ReconnectDelay
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = d.MaxReconnectAttempts
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Backoff is the wait before reconnect attempt n (1 based).
func Backoff(delay time.Duration, attempt int, max time.Duration) time.Duration {
	d := delay * time.Duration(attempt)
	if d > max {
		return max
	}
	return d
}

type EventKind int

const (
	EventWait EventKind = iota
	EventStart
	EventOpponentDisconnected
	EventError
	EventDisconnected
	EventShutdown
)

func (k EventKind) String() string {
	switch k {
	case EventWait:
		return "wait"
	case EventStart:
		return "start"
	case EventOpponentDisconnected:
		return "opponent_disconnected"
	case EventError:
		return "error"
	case EventDisconnected:
		return "disconnected"
	case EventShutdown:
		return "shutdown"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is a session status change for the game loop.
type Event struct {
	Kind    EventKind
	Color   game.Color
	Message string
}

// Client keeps a websocket session to the relay alive in the background.
// The game loop talks to it only through channels: Moves and Events to
// receive, Send to queue a local move. None of these block the caller.
type Client struct {
	cfg Config
	log *slog.Logger

	moves    chan MoveData
	events   chan Event
	outgoing chan MoveData

	// owned by the Run goroutine
	filter  SequenceFilter
	sendSeq int64
	retry   *MoveData

	mu      sync.Mutex
	color   game.Color
	matched bool
}

func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:      cfg,
		log:      cfg.Logger.With("room", cfg.RoomCode),
		moves:    make(chan MoveData, cfg.QueueSize),
		events:   make(chan Event, cfg.QueueSize),
		outgoing: make(chan MoveData, cfg.QueueSize),
	}
}

// Moves delivers opponent moves that passed the sequence filter.
func (c *Client) Moves() <-chan MoveData { return c.moves }

func (c *Client) Events() <-chan Event { return c.events }

// Color is the seat assigned by the relay, Neutral before wait/start.
func (c *Client) Color() game.Color {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.color
}

// Matched reports whether both seats of the room are filled.
func (c *Client) Matched() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.matched
}

// Send queues a local move. Moves are validated here so a bad move never
// consumes a sequence number.
func (c *Client) Send(m MoveData) error {
	if err := ValidateMoveData(m); err != nil {
		return err
	}
	select {
	case c.outgoing <- m:
		return nil
	default:
		return ErrQueueFull
	}
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn("event queue full, dropping event", "event", ev.Kind)
	}
}

// Run connects and reconnects until ctx ends or MaxReconnectAttempts
// consecutive attempts fail. It always emits EventShutdown on return.
func (c *Client) Run(ctx context.Context) error {
	defer c.emit(Event{Kind: EventShutdown})

	attempts := 0
	for {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			attempts = 0
		}
		attempts++
		c.log.Warn("connection lost", "error", err, "attempt", attempts, "max", c.cfg.MaxReconnectAttempts)

		if attempts >= c.cfg.MaxReconnectAttempts {
			c.log.Error("max reconnection attempts reached")
			return ErrGaveUp
		}
		c.emit(Event{Kind: EventDisconnected})

		delay := Backoff(c.cfg.ReconnectDelay, attempts, c.cfg.MaxBackoff)
		c.log.Info("waiting before reconnecting", "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// session runs one connection. connected reports whether the dial and join
// succeeded, which resets the attempt counter.
func (c *Client) session(ctx context.Context) (connected bool, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	c.mu.Lock()
	join := Join{
		Type:         TypeJoin,
		RoomCode:     c.cfg.RoomCode,
		Color:        c.color,
		Reconnecting: c.matched,
		LastSequence: c.filter.Last(),
	}
	c.mu.Unlock()
	if err := conn.WriteJSON(join); err != nil {
		return false, fmt.Errorf("failed to join: %w", err)
	}
	c.log.Info("connected", "url", c.cfg.URL, "reconnecting", join.Reconnecting, "last_sequence", join.LastSequence)

	done := make(chan struct{})
	defer close(done)
	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- b:
			case <-done:
				return
			}
		}
	}()

	if c.retry != nil {
		m := *c.retry
		c.retry = nil
		if err := c.writeMove(conn, m); err != nil {
			return true, err
		}
	}

	heartbeat := time.NewTicker(c.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return true, ctx.Err()
		case err := <-readErr:
			return true, fmt.Errorf("read error: %w", err)
		case b := <-frames:
			c.handle(ctx, b)
		case m := <-c.outgoing:
			if err := c.writeMove(conn, m); err != nil {
				return true, err
			}
		case <-heartbeat.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.HandshakeTimeout)); err != nil {
				return true, fmt.Errorf("heartbeat: %w", err)
			}
		}
	}
}

// writeMove sends m with the next sequence number. On failure the move is
// kept and resent first after reconnecting.
func (c *Client) writeMove(conn *websocket.Conn, m MoveData) error {
	if color := c.Color(); color.IsPlayer() {
		m.Color = color
	}
	msg := Move{Type: TypeMove, Data: m, RoomCode: c.cfg.RoomCode, Sequence: c.sendSeq + 1}
	if err := conn.WriteJSON(msg); err != nil {
		c.retry = &m
		return fmt.Errorf("failed to send move: %w", err)
	}
	c.sendSeq++
	c.log.Debug("move sent", "sequence", c.sendSeq, "phase", m.Phase, "position", m.Position)
	return nil
}

func (c *Client) handle(ctx context.Context, b []byte) {
	env, err := Decode(b)
	if err != nil {
		c.log.Warn("dropping message", "error", err)
		return
	}

	switch env.Type {
	case TypeWait:
		c.mu.Lock()
		if c.matched {
			c.mu.Unlock()
			return
		}
		c.color = env.Color
		c.mu.Unlock()
		c.log.Info("waiting for opponent", "color", env.Color)
		c.emit(Event{Kind: EventWait, Color: env.Color, Message: env.Message})

	case TypeStart:
		c.mu.Lock()
		c.color = env.Color
		c.matched = true
		c.mu.Unlock()
		c.log.Info("game starting", "color", env.Color)
		c.emit(Event{Kind: EventStart, Color: env.Color, Message: env.Message})

	case TypeMove:
		m, err := env.MoveData()
		if err != nil {
			c.log.Warn("dropping move", "error", err)
			return
		}
		if !c.filter.Accept(*env.Sequence) {
			c.log.Debug("skipping duplicate or out-of-order move", "sequence", *env.Sequence, "last", c.filter.Last())
			return
		}
		select {
		case c.moves <- m:
		case <-ctx.Done():
		}

	case TypeOpponentDisconnected:
		c.mu.Lock()
		c.matched = false
		c.mu.Unlock()
		c.log.Info("opponent disconnected")
		c.emit(Event{Kind: EventOpponentDisconnected, Message: env.Message})

	case TypeError:
		c.log.Warn("relay error", "message", env.Message)
		c.emit(Event{Kind: EventError, Message: env.Message})

	default:
		c.log.Debug("ignoring message", "type", env.Type)
	}
}
