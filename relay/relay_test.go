package relay

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brensch/ringworld/game"
	"github.com/brensch/ringworld/netplay"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	s := NewServer(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	hs := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		hs.Close()
	})
	return s, "ws" + strings.TrimPrefix(hs.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func join(t *testing.T, ws *websocket.Conn, room string) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(netplay.Join{Type: netplay.TypeJoin, RoomCode: room}))
}

func read(t *testing.T, ws *websocket.Conn) netplay.Envelope {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := ws.ReadMessage()
	require.NoError(t, err)
	env, err := netplay.Decode(b)
	require.NoError(t, err, "message %s", b)
	return env
}

func TestJoinAssignsSeats(t *testing.T) {
	s, url := newTestServer(t)

	red := dial(t, url)
	join(t, red, "abc")
	env := read(t, red)
	assert.Equal(t, netplay.TypeWait, env.Type)
	assert.Equal(t, game.Red, env.Color)

	blue := dial(t, url)
	join(t, blue, "abc")
	env = read(t, blue)
	assert.Equal(t, netplay.TypeStart, env.Type)
	assert.Equal(t, game.Blue, env.Color)
	env = read(t, red)
	assert.Equal(t, netplay.TypeStart, env.Type)
	assert.Equal(t, game.Red, env.Color)

	third := dial(t, url)
	join(t, third, "abc")
	env = read(t, third)
	assert.Equal(t, netplay.TypeError, env.Type)
	assert.Equal(t, "Room is full", env.Message)

	require.NoError(t, third.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := third.ReadMessage()
	assert.Error(t, err, "refused connection is closed")

	assert.Equal(t, map[string]int{"abc": 2}, s.Rooms())
}

func TestMoveForwardedWithSenderColor(t *testing.T) {
	_, url := newTestServer(t)
	red, blue := dial(t, url), dial(t, url)
	join(t, red, "r1")
	read(t, red)
	join(t, blue, "r1")
	read(t, blue)
	read(t, red)

	data := netplay.MoveData{Type: netplay.TypeMove, Position: [2]int{300, 279}, Color: game.Red, Phase: game.Placement}
	require.NoError(t, red.WriteJSON(netplay.Move{Type: netplay.TypeMove, Data: data, RoomCode: "r1", Sequence: 7}))

	env := read(t, blue)
	require.Equal(t, netplay.TypeMove, env.Type)
	assert.Equal(t, game.Red, env.Color)
	require.NotNil(t, env.Sequence)
	assert.EqualValues(t, 7, *env.Sequence)
	got, err := env.MoveData()
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// no sequence: continue from the sender's last
	raw, _ := json.Marshal(map[string]any{"type": "move", "data": data})
	require.NoError(t, red.WriteMessage(websocket.TextMessage, raw))
	env = read(t, blue)
	require.NotNil(t, env.Sequence)
	assert.EqualValues(t, 8, *env.Sequence)

	data.Color = game.Blue
	require.NoError(t, blue.WriteJSON(netplay.Move{Type: netplay.TypeMove, Data: data, Sequence: 1}))
	env = read(t, red)
	assert.Equal(t, game.Blue, env.Color)
	assert.EqualValues(t, 1, *env.Sequence)
}

func TestDisconnectNotifiesAndClosesRoom(t *testing.T) {
	s, url := newTestServer(t)
	red, blue := dial(t, url), dial(t, url)
	join(t, red, "gone")
	read(t, red)
	join(t, blue, "gone")
	read(t, blue)
	read(t, red)

	require.NoError(t, red.Close())
	env := read(t, blue)
	assert.Equal(t, netplay.TypeOpponentDisconnected, env.Type)
	assert.Equal(t, map[string]int{"gone": 1}, s.Rooms())

	// the freed seat is red again
	again := dial(t, url)
	join(t, again, "gone")
	env = read(t, again)
	assert.Equal(t, netplay.TypeStart, env.Type)
	assert.Equal(t, game.Red, env.Color)
	env = read(t, blue)
	assert.Equal(t, game.Blue, env.Color)

	require.NoError(t, again.Close())
	require.NoError(t, blue.Close())
	require.Eventually(t, func() bool { return len(s.Rooms()) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, s.RoomCodes())
}

func TestBadJSONIgnored(t *testing.T) {
	_, url := newTestServer(t)
	ws := dial(t, url)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	join(t, ws, "x")
	env := read(t, ws)
	assert.Equal(t, netplay.TypeWait, env.Type)
}

func TestRateLimitDropsExcess(t *testing.T) {
	s := NewServer(Config{Rate: 0.001, Burst: 1, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	hs := httptest.NewServer(s.Handler())
	defer hs.Close()
	defer s.Close()
	url := "ws" + strings.TrimPrefix(hs.URL, "http")

	ws := dial(t, url)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{}")))
	// the bucket is now empty, this join is dropped
	join(t, ws, "first")
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, s.Rooms())

	other := dial(t, url)
	join(t, other, "first")
	assert.Equal(t, netplay.TypeWait, read(t, other).Type, "limits are per connection")
}

func TestHealthz(t *testing.T) {
	s := NewServer(Config{})
	hs := httptest.NewServer(s.Handler())
	defer hs.Close()

	resp, err := http.Get(hs.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
