package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/brensch/ringworld/ai"
	"github.com/brensch/ringworld/config"
	"github.com/brensch/ringworld/game"
	"github.com/brensch/ringworld/logging"
	"github.com/brensch/ringworld/rules"
	"github.com/brensch/ringworld/selfplay"
	"github.com/brensch/ringworld/store"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var totalMoves atomic.Int64
var totalGames atomic.Int64

type GameUpdate struct {
	WorkerID int
	Result   selfplay.GameResult
}

type gameWriteRequest struct {
	rows []store.MoveRow
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(16)
	redStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	blueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type model struct {
	gamesPlayed int
	redWins     int
	blueWins    int
	draws       int
	moves       int64
	startTime   time.Time
	recentGames []string
	updates     chan GameUpdate
}

func initialModel(updates chan GameUpdate) model {
	return model{
		startTime: time.Now(),
		updates:   updates,
	}
}

type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func waitForUpdate(updates chan GameUpdate) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func describe(u GameUpdate) string {
	winner := "draw"
	switch u.Result.Winner {
	case game.Red:
		winner = redStyle.Render("red")
	case game.Blue:
		winner = blueStyle.Render("blue")
	}
	if u.Result.Stalled {
		winner += " (stalled)"
	}
	return fmt.Sprintf("worker %d: winner %s, plies %d", u.WorkerID, winner, u.Result.Plies)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case TickMsg:
		m.moves = totalMoves.Load()
		return m, tickCmd()
	case GameUpdate:
		m.gamesPlayed++
		switch msg.Result.Winner {
		case game.Red:
			m.redWins++
		case game.Blue:
			m.blueWins++
		default:
			m.draws++
		}
		m.recentGames = append([]string{describe(msg)}, m.recentGames...)
		if len(m.recentGames) > 10 {
			m.recentGames = m.recentGames[:10]
		}
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func (m model) View() string {
	duration := time.Since(m.startTime)
	gamesPerSec := float64(m.gamesPlayed) / duration.Seconds()
	movesPerSec := float64(m.moves) / duration.Seconds()
	if duration.Seconds() < 1 {
		gamesPerSec = 0
		movesPerSec = 0
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("ringworld self-play") + "\n\n")
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}
	row("Games", fmt.Sprintf("%d", m.gamesPlayed))
	row("Results", fmt.Sprintf("%s %d  %s %d  draw %d", redStyle.Render("red"), m.redWins, blueStyle.Render("blue"), m.blueWins, m.draws))
	row("Moves", fmt.Sprintf("%d", m.moves))
	row("Duration", duration.Round(time.Second).String())
	row("Games/sec", fmt.Sprintf("%.2f", gamesPerSec))
	row("Moves/sec", fmt.Sprintf("%.2f", movesPerSec))

	b.WriteString("\nRecent games:\n")
	for _, g := range m.recentGames {
		b.WriteString(g + "\n")
	}
	b.WriteString(dimStyle.Render("\nPress q to quit.") + "\n")
	return b.String()
}

func main() {
	outDir := flag.String("out-dir", config.String("RINGWORLD_OUT_DIR", "data/selfplay"), "Output directory for archive parquet batches")
	workers := flag.Int("workers", config.Int("RINGWORLD_WORKERS", 4), "Number of self-play workers")
	gamesPerFlush := flag.Int("games-per-flush", 50, "Number of games to buffer per parquet flush")
	maxGames := flag.Int("games", config.Int("RINGWORLD_GAMES", 0), "If > 0, stop after this many games (across all workers)")
	maxPlies := flag.Int("max-plies", selfplay.DefaultMaxPlies, "Moves after which a game is abandoned as a draw")
	think := flag.Duration("think", config.Duration("RINGWORLD_THINK", 0), "Search budget per move (0 = unbounded)")
	reduced := flag.Bool("reduced", config.Bool("RINGWORLD_REDUCED", false), "Play on the reduced board")
	modelPath := flag.String("model", config.String("RINGWORLD_MODEL", ""), "Optional ONNX model used to rank placements")
	simulations := flag.Int("simulations", config.Int("RINGWORLD_SIMULATIONS", 0), "PUCT simulations per move (0 = one-ply search)")
	temperature := flag.Float64("temperature", 0.5, "Softmax temperature for move sampling (0 = always best)")
	useTUI := flag.Bool("tui", false, "Show a live terminal dashboard")
	logFormat := flag.String("log-format", config.String("RINGWORLD_LOG_FORMAT", logging.FormatConsole), "console, text or json")
	logLevel := flag.String("log-level", config.String("RINGWORLD_LOG_LEVEL", "info"), "debug, info, warn or error")
	flag.Parse()

	logOut := os.Stderr
	if *useTUI {
		f, err := os.OpenFile("selfplay.log", os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	log, err := logging.New(logging.Options{Format: *logFormat, Level: *logLevel, Writer: logOut})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(log)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	var evaluator ai.Evaluator
	if *modelPath != "" {
		onnx, err := ai.NewOnnxEvaluatorWithConfig(*modelPath, ai.OnnxConfig{})
		if err != nil {
			log.Error("failed to load model", "path", *modelPath, "error", err)
			os.Exit(1)
		}
		defer onnx.Close()
		evaluator = onnx
		log.Info("onnx evaluator ready", "path", *modelPath)
	}

	rulesCfg := rules.DefaultConfig()
	rulesCfg.Board.Reduced = *reduced
	rulesCfg.Logger = log.With("component", "rules")
	spCfg := selfplay.Config{
		Rules:     rulesCfg,
		MaxPlies:  *maxPlies,
		Think:     *think,
		Source:    "selfplay",
		ModelPath: *modelPath,
	}

	log.Info("starting self-play", "workers", *workers, "reduced", *reduced, "out_dir", *outDir)

	updates := make(chan GameUpdate, *workers)
	writeReqs := make(chan gameWriteRequest, (*workers)*4)

	writerDone := make(chan struct{})
	go func() {
		parquetWriterLoop(log, *outDir, *gamesPerFlush, writeReqs)
		close(writerDone)
	}()

	var workerWG sync.WaitGroup
	for i := 0; i < *workers; i++ {
		workerWG.Add(1)
		go func(workerID int) {
			defer workerWG.Done()
			wlog := log.With("worker", workerID)
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
			for {
				if ctx.Err() != nil {
					return
				}
				red := &ai.Player{Color: game.Red, Evaluator: evaluator, Temperature: *temperature, Rand: rng, Simulations: *simulations}
				blue := &ai.Player{Color: game.Blue, Evaluator: evaluator, Temperature: *temperature, Rand: rng, Simulations: *simulations}

				rows, result, err := selfplay.PlayGame(ctx, spCfg, red, blue, func() { totalMoves.Add(1) })
				if err != nil {
					if ctx.Err() == nil {
						wlog.Error("game aborted", "game_id", result.GameID, "error", err)
					}
					continue
				}
				total := totalGames.Add(1)
				wlog.Debug("game finished", "game_id", result.GameID, "winner", result.Winner, "plies", result.Plies, "total", total)
				if *maxGames > 0 && total >= int64(*maxGames) {
					cancel()
				}

				if len(rows) > 0 {
					writeReqs <- gameWriteRequest{rows: rows}
				}
				select {
				case updates <- GameUpdate{WorkerID: workerID, Result: result}:
				default:
				}
			}
		}(i)
	}

	shutdown := func() {
		workerWG.Wait()
		close(writeReqs)
		<-writerDone
		log.Info("shutdown complete", "games", totalGames.Load(), "moves", totalMoves.Load())
	}

	if *useTUI {
		p := tea.NewProgram(initialModel(updates), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && ctx.Err() == nil {
			log.Error("tui exited", "error", err)
		}
		cancel()
		shutdown()
		return
	}

	startTime := time.Now()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown requested, waiting for workers to finish current games")
			shutdown()
			return
		case u := <-updates:
			log.Info("game finished", "worker", u.WorkerID, "winner", u.Result.Winner, "plies", u.Result.Plies, "stalled", u.Result.Stalled)
		case <-ticker.C:
			secs := time.Since(startTime).Seconds()
			log.Info("stats",
				"games", totalGames.Load(),
				"moves_per_sec", fmt.Sprintf("%.2f", float64(totalMoves.Load())/secs),
				"games_per_sec", fmt.Sprintf("%.2f", float64(totalGames.Load())/secs))
		}
	}
}

func parquetWriterLoop(log *slog.Logger, outDir string, gamesPerFlush int, in <-chan gameWriteRequest) {
	if gamesPerFlush <= 0 {
		gamesPerFlush = 50
	}

	pendingRows := make([]store.MoveRow, 0, 256*gamesPerFlush)
	pendingGames := 0

	flush := func(final bool) {
		outPath, err := store.WriteArchiveBatch(outDir, pendingRows)
		if err != nil {
			log.Error("parquet flush failed", "games", pendingGames, "rows", len(pendingRows), "final", final, "error", err)
		} else {
			log.Info("parquet flush ok", "path", outPath, "games", pendingGames, "rows", len(pendingRows), "final", final)
		}
		pendingRows = pendingRows[:0]
		pendingGames = 0
	}

	for req := range in {
		if len(req.rows) == 0 {
			continue
		}
		pendingRows = append(pendingRows, req.rows...)
		pendingGames++
		if pendingGames >= gamesPerFlush {
			flush(false)
		}
	}

	if pendingGames > 0 {
		flush(true)
	}
}
