// Demo: crash and recover a running scheduler.
//
//	go run ./cmd/demo start     # play the configured timeline, Ctrl+C simulates a crash
//	go run ./cmd/demo recover   # restart; players resume from snapshot + journal
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ChuLiYu/workclip/internal/config"
	"github.com/ChuLiYu/workclip/internal/journal"
	"github.com/ChuLiYu/workclip/internal/scheduler"
	"github.com/ChuLiYu/workclip/internal/timeline"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/demo <start|recover>")
		os.Exit(1)
	}
	mode := os.Args[1]
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg, err := config.LoadApp("configs/default.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	doc, err := config.LoadTimeline(cfg.Timeline)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load timeline")
	}
	for _, p := range []string{cfg.Journal.Path, cfg.Snapshot.Path} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			log.Fatal().Err(err).Msg("Failed to create data directory")
		}
	}

	sched, err := scheduler.New(scheduler.Config{
		Workers:          cfg.Scheduler.Workers,
		TickInterval:     cfg.Scheduler.TickInterval,
		TimeScale:        cfg.Scheduler.TimeScale,
		SnapshotInterval: cfg.SnapshotInterval(),
		KeepBackups:      cfg.Snapshot.KeepBackups,
		JournalPath:      cfg.Journal.Path,
		JournalOptions: journal.Options{
			BufferSize:    cfg.Journal.BufferSize,
			FlushInterval: cfg.JournalFlushInterval(),
			SyncOnFlush:   true,
		},
		SnapshotPath: cfg.Snapshot.Path,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}

	cbs := timeline.NewCallbacks()
	for _, name := range doc.CallbackNames() {
		cbs.Register(name, func() { fmt.Printf("🔔 callback %s\n", name) })
	}
	if _, err := sched.AddTimeline(doc, config.Env{Callbacks: cbs}); err != nil {
		log.Fatal().Err(err).Msg("Failed to register players")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	fmt.Printf("✓ Scheduler started (mode: %s)\n", mode)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	switch mode {
	case "start":
		fmt.Printf("\n⚡ Players are running. Press Ctrl+C to simulate a crash (no final snapshot).\n\n")
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-sigChan:
				fmt.Println("\n\n💥 Crash! Exiting without stopping the scheduler.")
				fmt.Println("   Run 'go run ./cmd/demo recover' to resume.")
				os.Exit(2)
			case <-ticker.C:
				printPlayers(sched)
			}
		}
	case "recover":
		fmt.Printf("\n📊 Positions right after recovery:\n")
		printPlayers(sched)
		stats := sched.GetStats()
		fmt.Printf("\n✓ %d players, journal at seq %d\n", stats.Players, stats.LastSeq)
		fmt.Printf("\n⏳ Watching for 2 seconds...\n")
		time.Sleep(2 * time.Second)
		printPlayers(sched)
		fmt.Println("\nPress Ctrl+C to stop gracefully.")
		<-sigChan
	default:
		log.Fatal().Str("mode", mode).Msg("unknown mode")
	}

	fmt.Println("\n\nReceived shutdown signal, stopping gracefully...")
	sched.Stop()
	fmt.Println("✓ Scheduler stopped")
}

func printPlayers(sched *scheduler.Scheduler) {
	for _, st := range sched.List() {
		fmt.Printf("  %-10s %-9s %6.2fs / %6.2fs  %5.1f%%  %v\n",
			st.ID, st.State, st.Elapsed, st.Duration, st.Percent*100, st.Active)
	}
}
