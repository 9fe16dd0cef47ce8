package netplay_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brensch/ringworld/game"
	"github.com/brensch/ringworld/netplay"
	"github.com/brensch/ringworld/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func waitEvent(t *testing.T, c *netplay.Client, kind netplay.EventKind) netplay.Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s event", kind)
			return netplay.Event{}
		}
	}
}

func TestClient_PlaysThroughRelay(t *testing.T) {
	srv := relay.NewServer(relay.Config{Logger: discard})
	hs := httptest.NewServer(srv.Handler())
	defer hs.Close()
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(hs.URL, "http")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newClient := func() *netplay.Client {
		return netplay.NewClient(netplay.Config{URL: url, RoomCode: "duel", Logger: discard})
	}
	red := newClient()
	go red.Run(ctx)
	ev := waitEvent(t, red, netplay.EventWait)
	assert.Equal(t, game.Red, ev.Color)

	blue := newClient()
	go blue.Run(ctx)
	assert.Equal(t, game.Blue, waitEvent(t, blue, netplay.EventStart).Color)
	assert.Equal(t, game.Red, waitEvent(t, red, netplay.EventStart).Color)
	assert.True(t, red.Matched())
	assert.Equal(t, game.Blue, blue.Color())

	move := netplay.MoveData{Type: netplay.TypeMove, Position: [2]int{300, 279}, Color: game.Red, Phase: game.Placement}
	require.NoError(t, red.Send(move))
	select {
	case got := <-blue.Moves():
		assert.Equal(t, move, got)
	case <-time.After(3 * time.Second):
		t.Fatal("move not delivered")
	}

	assert.ErrorIs(t, red.Send(netplay.MoveData{Type: "bogus"}), netplay.ErrInvalidMove)
}

func TestClient_GivesUp(t *testing.T) {
	hs := httptest.NewServer(nil)
	url := "ws" + strings.TrimPrefix(hs.URL, "http")
	hs.Close()

	c := netplay.NewClient(netplay.Config{
		URL:                  url,
		RoomCode:             "nobody",
		ReconnectDelay:       time.Millisecond,
		MaxReconnectAttempts: 3,
		Logger:               discard,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.Run(ctx)
	assert.True(t, errors.Is(err, netplay.ErrGaveUp), "err=%v", err)

	var kinds []netplay.EventKind
	for len(c.Events()) > 0 {
		kinds = append(kinds, (<-c.Events()).Kind)
	}
	assert.Equal(t, []netplay.EventKind{netplay.EventDisconnected, netplay.EventDisconnected, netplay.EventShutdown}, kinds)
}

func TestClient_StopsOnCancel(t *testing.T) {
	srv := relay.NewServer(relay.Config{Logger: discard})
	hs := httptest.NewServer(srv.Handler())
	defer hs.Close()
	defer srv.Close()

	c := netplay.NewClient(netplay.Config{URL: "ws" + strings.TrimPrefix(hs.URL, "http"), RoomCode: "solo", Logger: discard})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitEvent(t, c, netplay.EventWait)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}
	waitEvent(t, c, netplay.EventShutdown)
	require.Eventually(t, func() bool { return len(srv.Rooms()) == 0 }, 2*time.Second, 10*time.Millisecond)
}
