// Package netplay is the client side of online play: the JSON message
// contract spoken with the relay, duplicate filtering by sequence number, a
// reconnecting websocket client, and a bridge that feeds remote moves into a
// rules.Engine.
package netplay

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/brensch/ringworld/game"
	"github.com/brensch/ringworld/rules"
)

const (
	TypeJoin                 = "join"
	TypeWait                 = "wait"
	TypeStart                = "start"
	TypeMove                 = "move"
	TypeOpponentDisconnected = "opponent_disconnected"
	TypeError                = "error"
)

var (
	ErrMalformed   = errors.New("netplay: malformed message")
	ErrInvalidMove = errors.New("netplay: invalid move data")
)

// Envelope is any message read off the wire. Which fields are set depends
// on Type.
type Envelope struct {
	Type         string          `json:"type"`
	RoomCode     string          `json:"room_code,omitempty"`
	Color        game.Color      `json:"color,omitempty"`
	Message      string          `json:"message,omitempty"`
	Reconnecting bool            `json:"reconnecting,omitempty"`
	LastSequence int64           `json:"last_sequence,omitempty"`
	Sequence     *int64          `json:"sequence,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// Join asks the relay for a seat in a room.
type Join struct {
	Type         string     `json:"type"`
	RoomCode     string     `json:"room_code"`
	Color        game.Color `json:"color,omitempty"`
	Reconnecting bool       `json:"reconnecting"`
	LastSequence int64      `json:"last_sequence"`
}

// Move carries one move. Clients send it without Color; the relay stamps
// the sender's seat color when forwarding.
type Move struct {
	Type     string     `json:"type"`
	Data     MoveData   `json:"data"`
	RoomCode string     `json:"room_code,omitempty"`
	Sequence int64      `json:"sequence"`
	Color    game.Color `json:"color,omitempty"`
}

// Status is a relay notice: wait, start, error or opponent_disconnected.
type Status struct {
	Type    string     `json:"type"`
	Message string     `json:"message,omitempty"`
	Color   game.Color `json:"color,omitempty"`
}

// MoveData is the move payload. Positions travel rounded to whole units.
type MoveData struct {
	Type     string     `json:"type"`
	Position [2]int     `json:"position"`
	Color    game.Color `json:"color"`
	Phase    game.Phase `json:"phase"`
}

// ValidateMoveData checks the enum fields of a move payload.
func ValidateMoveData(m MoveData) error {
	if m.Type != TypeMove {
		return fmt.Errorf("%w: type %q", ErrInvalidMove, m.Type)
	}
	if !m.Color.IsPlayer() {
		return fmt.Errorf("%w: color %q", ErrInvalidMove, m.Color)
	}
	if m.Phase != game.Placement && m.Phase != game.Rotation {
		return fmt.Errorf("%w: phase %d", ErrInvalidMove, m.Phase)
	}
	return nil
}

// Decode parses a wire message. Move messages must carry data and a
// sequence number.
func Decode(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	if env.Type == TypeMove && (len(env.Data) == 0 || env.Sequence == nil) {
		return Envelope{}, fmt.Errorf("%w: move without data or sequence", ErrMalformed)
	}
	return env, nil
}

type moveWire struct {
	Type     string     `json:"type"`
	Position []float64  `json:"position"`
	Color    game.Color `json:"color"`
	Phase    game.Phase `json:"phase"`
}

// MoveData extracts and validates the payload of a move message.
func (e Envelope) MoveData() (MoveData, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(e.Data, &fields); err != nil {
		return MoveData{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for _, f := range []string{"type", "position", "color", "phase"} {
		if _, ok := fields[f]; !ok {
			return MoveData{}, fmt.Errorf("%w: move data missing %q", ErrMalformed, f)
		}
	}

	var w moveWire
	if err := json.Unmarshal(e.Data, &w); err != nil {
		return MoveData{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(w.Position) != 2 {
		return MoveData{}, fmt.Errorf("%w: position has %d values", ErrMalformed, len(w.Position))
	}
	m := MoveData{
		Type:     w.Type,
		Position: [2]int{int(math.Round(w.Position[0])), int(math.Round(w.Position[1]))},
		Color:    w.Color,
		Phase:    w.Phase,
	}
	if err := ValidateMoveData(m); err != nil {
		return MoveData{}, err
	}
	return m, nil
}

// FromRecord converts a locally recorded move for sending.
func FromRecord(r rules.MoveRecord) MoveData {
	return MoveData{
		Type:     TypeMove,
		Position: [2]int{int(math.Round(r.Position[0])), int(math.Round(r.Position[1]))},
		Color:    r.Color,
		Phase:    r.Phase,
	}
}

// Record converts a received move for rules.Engine.ApplyRemoteMove. The
// rotation tier is not transmitted; the engine resolves it by position.
func (m MoveData) Record() rules.MoveRecord {
	return rules.MoveRecord{
		Type:     m.Type,
		Position: [2]float64{float64(m.Position[0]), float64(m.Position[1])},
		Color:    m.Color,
		Phase:    m.Phase,
	}
}
