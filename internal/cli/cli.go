// ============================================================================
// Workclip CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Cobra command tree for running, simulating and controlling timelines
//
// Command Structure:
//   workclip                       # Root command
//   ├── run                        # Start scheduler + metrics + gRPC + WebSocket
//   ├── play                       # Offline deterministic simulation of one player
//   │   └── --file, -f             # Timeline document
//   ├── validate                   # Authoring validation of a timeline document
//   ├── ctl                        # Remote control over gRPC
//   │   └── play|pause|resume|stop|replay|seek|status|list
//   ├── journal                    # Journal inspection
//   │   └── dump|validate|stats
//   ├── status                     # Effective configuration and on-disk state
//   ├── --config, -c               # Application config file
//   └── --log-level                # Overrides log.level
//
// run Command:
//   1. Load config and timeline document
//   2. Create scheduler (journal + snapshot), register every document player
//   3. Start recovery, tick loop and snapshot loop
//   4. Start Metrics / gRPC / WebSocket servers (each if enabled)
//   5. Wait for SIGINT / SIGTERM, then shut down in reverse order
//
//   Examples:
//     ./workclip run
//     ./workclip run -c custom-config.yaml
//
// Logging:
//   zerolog console writer on stderr; command output goes to stdout so it
//   can be piped.
//
// ============================================================================

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/ChuLiYu/workclip/internal/config"
	"github.com/ChuLiYu/workclip/internal/journal"
	"github.com/ChuLiYu/workclip/internal/metrics"
	"github.com/ChuLiYu/workclip/internal/scheduler"
	"github.com/ChuLiYu/workclip/internal/server"
	"github.com/ChuLiYu/workclip/internal/timeline"
	"github.com/ChuLiYu/workclip/internal/ws"
)

// Version is overridden at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

var (
	configFile string
	logLevel   string
)

func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "workclip",
		Short: "Workclip: hierarchical timeline sequencing with crash recovery",
		Long: `Workclip plays nested, speed-scaled, loopable work clips with:
- percent-driven timeline players and one-shot triggers
- journal + snapshot crash recovery
- Prometheus metrics, gRPC control and a WebSocket event stream`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logLevel
			if level == "" {
				if cfg, err := config.LoadApp(configFile); err == nil {
					level = cfg.Log.Level
				}
			}
			setupLogging(cmd.ErrOrStderr(), level)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides log.level")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildPlayCommand())
	rootCmd.AddCommand(buildValidateCommand())
	rootCmd.AddCommand(buildCtlCommand())
	rootCmd.AddCommand(buildJournalCommand())
	rootCmd.AddCommand(buildStatusCommand())

	return rootCmd
}

// setupLogging configures the global zerolog logger. Unknown levels fall
// back to info.
func setupLogging(w io.Writer, level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

// loadConfig reads the application config. A missing default config file
// is not an error: the built-in defaults apply.
func loadConfig(path string) (*config.App, error) {
	cfg, err := config.LoadApp(path)
	if errors.Is(err, fs.ErrNotExist) && path == "configs/default.yaml" {
		return config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func buildRunCommand() *cobra.Command {
	var timelineFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the scheduler and its servers",
		Long:  "Load the timeline document, recover player positions and serve metrics, gRPC control and WebSocket events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			if timelineFile != "" {
				cfg.Timeline = timelineFile
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runSystem(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&timelineFile, "file", "f", "", "timeline document (overrides the config's timeline)")
	return cmd
}

// newScheduler builds a scheduler from the application config, creating the
// journal and snapshot directories.
func newScheduler(cfg *config.App, opts ...scheduler.Option) (*scheduler.Scheduler, error) {
	for _, p := range []string{cfg.Journal.Path, cfg.Snapshot.Path} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return scheduler.New(scheduler.Config{
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
	}, opts...)
}

// logCallbacks registers a logging callback for every name doc references.
func logCallbacks(doc *config.Timeline) *timeline.Callbacks {
	cbs := timeline.NewCallbacks()
	for _, name := range doc.CallbackNames() {
		cbs.Register(name, func() {
			log.Info().Str("callback", name).Msg("callback fired")
		})
	}
	return cbs
}

func runSystem(ctx context.Context, cfg *config.App) error {
	doc, err := config.LoadTimeline(cfg.Timeline)
	if err != nil {
		return fmt.Errorf("failed to load timeline: %w", err)
	}
	log.Info().Str("config", configFile).Str("timeline", cfg.Timeline).Msg("Starting workclip")

	var opts []scheduler.Option
	if cfg.Metrics.Enabled {
		opts = append(opts, scheduler.WithMetrics(metrics.NewCollector()))
	}
	sched, err := newScheduler(cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	defer sched.Stop()

	ids, err := sched.AddTimeline(doc, config.Env{Callbacks: logCallbacks(doc)})
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info().Int("players", len(ids)).Msg("Players registered")

	if cfg.Metrics.Enabled {
		go func() {
			log.Info().Int("port", cfg.Metrics.Port).Msg("Starting metrics server")
			if err := metrics.StartServer(cfg.Metrics.Port); err != nil {
				log.Error().Err(err).Msg("Metrics server error")
			}
		}()
	}

	if cfg.GRPC.Enabled {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
		if err != nil {
			return fmt.Errorf("failed to listen on port %d: %w", cfg.GRPC.Port, err)
		}
		grpcServer := grpc.NewServer()
		server.Register(grpcServer, server.NewServer(sched))
		defer grpcServer.GracefulStop()

		log.Info().Int("port", cfg.GRPC.Port).Msg("gRPC server listening")
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				log.Error().Err(err).Msg("gRPC server failed")
			}
		}()
	}

	if cfg.WebSocket.Enabled {
		hub := ws.NewHub(sched, sched)
		defer hub.Close()
		go func() {
			if err := hub.ListenAndServe(ctx, cfg.WebSocket.Addr); err != nil {
				log.Error().Err(err).Msg("WebSocket server failed")
			}
		}()
	}

	log.Info().Msg("System started successfully")
	<-ctx.Done()
	log.Info().Msg("Received shutdown signal, stopping gracefully...")
	return nil
}

func buildStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show effective configuration and on-disk status",
		Long:  "Display the effective configuration, the journal and snapshot files and the timeline's players",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(cmd.OutOrStdout())
		},
	}
	return cmd
}

func showStatus(w io.Writer) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "╔═══════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║           Workclip Status                                 ║")
	fmt.Fprintln(w, "╚═══════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "📋 Configuration:")
	fmt.Fprintf(w, "  ├─ Config File:     %s\n", configFile)
	fmt.Fprintf(w, "  ├─ Workers:         %d\n", cfg.Scheduler.Workers)
	fmt.Fprintf(w, "  ├─ Tick Interval:   %s (x%g)\n", cfg.Scheduler.TickInterval, cfg.Scheduler.TimeScale)
	fmt.Fprintf(w, "  └─ Snapshot Every:  %ds\n", cfg.Snapshot.IntervalSeconds)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "💾 Storage:")
	fmt.Fprintf(w, "  ├─ Journal:   %s\n", describeFile(cfg.Journal.Path))
	if cfg.Journal.Path != "" {
		if st, err := journal.GetStats(cfg.Journal.Path); err == nil {
			fmt.Fprintf(w, "  │  └─ Events: %d (seq %d..%d, %d sessions)\n", st.TotalEvents, st.FirstSeq, st.LastSeq, st.Sessions)
		}
	}
	fmt.Fprintf(w, "  └─ Snapshot:  %s\n", describeFile(cfg.Snapshot.Path))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🎬 Timeline:")
	if doc, err := config.LoadTimeline(cfg.Timeline); err != nil {
		fmt.Fprintf(w, "  └─ %s: %v\n", cfg.Timeline, err)
	} else {
		for i, p := range doc.Players {
			branch := "├─"
			if i == len(doc.Players)-1 {
				branch = "└─"
			}
			fmt.Fprintf(w, "  %s %s -> %s (loop=%t, auto_play=%t)\n", branch, p.ID, p.Content, p.Loop, p.AutoPlay)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "📡 Endpoints:")
	fmt.Fprintf(w, "  ├─ Metrics:   %s\n", endpoint(cfg.Metrics.Enabled, fmt.Sprintf("http://localhost:%d/metrics", cfg.Metrics.Port)))
	fmt.Fprintf(w, "  ├─ gRPC:      %s\n", endpoint(cfg.GRPC.Enabled, fmt.Sprintf("localhost:%d", cfg.GRPC.Port)))
	fmt.Fprintf(w, "  └─ WebSocket: %s\n", endpoint(cfg.WebSocket.Enabled, "ws://"+hostPort(cfg.WebSocket.Addr)+"/events"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
	return nil
}

func describeFile(path string) string {
	if path == "" {
		return "disabled"
	}
	info, err := os.Stat(path)
	if err != nil {
		return path + " (not created yet)"
	}
	return fmt.Sprintf("%s (%d bytes, modified %s)", path, info.Size(), info.ModTime().Format(time.RFC3339))
}

func endpoint(enabled bool, addr string) string {
	if !enabled {
		return "⚠️  Disabled"
	}
	return "✅ " + addr
}

func hostPort(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
