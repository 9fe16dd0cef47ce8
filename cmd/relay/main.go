package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brensch/ringworld/config"
	"github.com/brensch/ringworld/logging"
	"github.com/brensch/ringworld/relay"
	"golang.org/x/time/rate"
)

func main() {
	addr := flag.String("addr", config.ListenAddr(config.String("RINGWORLD_RELAY_ADDR", ":8765")), "Listen address")
	rateLimit := flag.Float64("rate", config.Float("RINGWORLD_RELAY_RATE", float64(relay.DefaultRate)), "Inbound messages per second per connection")
	burst := flag.Int("burst", config.Int("RINGWORLD_RELAY_BURST", relay.DefaultBurst), "Inbound message burst per connection")
	statsEvery := flag.Duration("stats", time.Minute, "Interval between room summaries (0 disables)")
	logFormat := flag.String("log-format", config.String("RINGWORLD_LOG_FORMAT", logging.FormatConsole), "console, text or json")
	logLevel := flag.String("log-level", config.String("RINGWORLD_LOG_LEVEL", "info"), "debug, info, warn or error")
	flag.Parse()

	log, err := logging.New(logging.Options{Format: *logFormat, Level: *logLevel})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := relay.NewServer(relay.Config{
		Rate:   rate.Limit(*rateLimit),
		Burst:  *burst,
		Logger: log,
	})
	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("relay listening", "addr", *addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	var tick <-chan time.Time
	if *statsEvery > 0 {
		t := time.NewTicker(*statsEvery)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				log.Error("relay stopped", "error", err)
				os.Exit(1)
			}
			return
		case <-tick:
			rooms := srv.Rooms()
			log.Info("rooms", "open", len(rooms), "codes", srv.RoomCodes())
		case <-ctx.Done():
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			// Hijacked websocket connections are not tracked by Shutdown.
			srv.Close()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				log.Warn("graceful shutdown failed", "error", err)
				_ = httpSrv.Close()
			}
			cancel()
			return
		}
	}
}
