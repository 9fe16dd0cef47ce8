package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brensch/ringworld/ai"
	"github.com/brensch/ringworld/config"
	"github.com/brensch/ringworld/game"
	"github.com/brensch/ringworld/logging"
	"github.com/brensch/ringworld/netplay"
	"github.com/brensch/ringworld/rules"
)

// netbot joins a relay room and plays one game as a computer player.
func main() {
	url := flag.String("url", config.String("RINGWORLD_RELAY_URL", "ws://localhost:8765"), "Relay websocket URL")
	room := flag.String("room", config.String("RINGWORLD_ROOM", ""), "Room code to join")
	think := flag.Duration("think", config.Duration("RINGWORLD_THINK", 2*time.Second), "Search budget per turn")
	reduced := flag.Bool("reduced", config.Bool("RINGWORLD_REDUCED", false), "Play on the reduced board")
	modelPath := flag.String("model", config.String("RINGWORLD_MODEL", ""), "Optional ONNX model used to rank placements")
	simulations := flag.Int("simulations", config.Int("RINGWORLD_SIMULATIONS", 200), "PUCT simulations per turn (0 = one-ply search)")
	frame := flag.Duration("frame", 50*time.Millisecond, "Game loop interval")
	logFormat := flag.String("log-format", config.String("RINGWORLD_LOG_FORMAT", logging.FormatConsole), "console, text or json")
	logLevel := flag.String("log-level", config.String("RINGWORLD_LOG_LEVEL", "info"), "debug, info, warn or error")
	flag.Parse()

	log, err := logging.New(logging.Options{Format: *logFormat, Level: *logLevel})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *room == "" {
		log.Error("a room code is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rulesCfg := rules.DefaultConfig()
	rulesCfg.Board.Reduced = *reduced
	rulesCfg.Logger = log.With("component", "rules")
	engine, err := rules.New(rulesCfg)
	if err != nil {
		log.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	player := &ai.Player{Simulations: *simulations}
	if *modelPath != "" {
		onnx, err := ai.NewOnnxEvaluator(*modelPath)
		if err != nil {
			log.Error("failed to load model", "path", *modelPath, "error", err)
			os.Exit(1)
		}
		defer onnx.Close()
		player.Evaluator = onnx
	}

	netCfg := netplay.DefaultConfig()
	netCfg.URL = *url
	netCfg.RoomCode = *room
	netCfg.Logger = log.With("component", "netplay")
	client := netplay.NewClient(netCfg)

	runErr := make(chan error, 1)
	go func() { runErr <- client.Run(ctx) }()

	bridge := &netplay.Bridge{Engine: engine, Transport: client, Logger: log.With("component", "bridge")}
	ticker := time.NewTicker(*frame)
	defer ticker.Stop()
	finished := false

	for {
		select {
		case err := <-runErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("connection closed", "error", err)
				os.Exit(1)
			}
			return
		case ev := <-client.Events():
			switch ev.Kind {
			case netplay.EventStart:
				player.Color = ev.Color
				log.Info("game started", "color", ev.Color)
			case netplay.EventWait:
				log.Info("waiting for opponent", "color", ev.Color)
			case netplay.EventOpponentDisconnected:
				log.Warn("opponent disconnected")
			case netplay.EventError:
				log.Warn("relay error", "message", ev.Message)
			}
		case now := <-ticker.C:
			bridge.Tick(now)
			if finished {
				continue
			}

			if w := engine.Winner(); w != game.Neutral {
				finished = true
				log.Info("game over", "winner", w, "me", player.Color)
				// give the client a moment to write the final move
				time.AfterFunc(time.Second, stop)
				continue
			}
			if !client.Matched() || !player.Color.IsPlayer() || engine.State().Turn != player.Color {
				continue
			}
			if engine.Animating() || bridge.Pending() > 0 {
				continue
			}

			tctx, cancel := context.WithTimeout(ctx, *think)
			d, err := player.Play(tctx, engine)
			cancel()
			switch {
			case errors.Is(err, ai.ErrNoMoves):
				log.Warn("no legal moves, resigning")
				if err := engine.Resign(player.Color); err != nil {
					log.Error("resign failed", "error", err)
				}
			case err != nil:
				log.Error("move failed", "error", err)
			default:
				log.Info("played", "decision", d.String())
			}
		}
	}
}
