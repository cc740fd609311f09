package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tether/internal/config"
	"github.com/roach88/tether/internal/engine"
	"github.com/roach88/tether/internal/physics/chipmunk"
	"github.com/roach88/tether/internal/scene"
	"github.com/roach88/tether/internal/store"
	"github.com/roach88/tether/internal/telemetry"
	"github.com/roach88/tether/internal/transport"
	"github.com/roach88/tether/internal/world"
)

// shutdownTimeout bounds how long open requests get to finish on exit.
const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command. Each flag overrides the
// matching TETHER_* environment variable.
type ServeOptions struct {
	*RootOptions
	Addr           string
	Scene          string
	Journal        string
	TickRate       int
	Step           time.Duration
	CollisionClear time.Duration
	SendBuffer     int
	OTelEndpoint   string
	LogLevel       string

	// ready, when set, receives the listen address once the server
	// accepts connections.
	ready func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the playground server",
		Long: `Run the playground server.

Loads the scene, starts the simulation loop and accepts websocket
sessions on /ws?id=<participant>. /healthz reports engine counters.
Settings come from TETHER_* environment variables; flags override them.

The server runs until interrupted (Ctrl-C or SIGTERM).

Examples:
  tether serve
  tether serve --addr :8080 --scene ./arena.cue
  tether serve --journal ./tether.db --tick-rate 60`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (TETHER_ADDR)")
	cmd.Flags().StringVar(&opts.Scene, "scene", "", "scene file, .yaml or .cue (TETHER_SCENE)")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite journal path (TETHER_JOURNAL)")
	cmd.Flags().IntVar(&opts.TickRate, "tick-rate", 0, "snapshots per second (TETHER_TICK_RATE)")
	cmd.Flags().DurationVar(&opts.Step, "step", 0, "simulated time per tick (TETHER_STEP)")
	cmd.Flags().DurationVar(&opts.CollisionClear, "collision-clear", 0, "collision flag lifetime (TETHER_COLLISION_CLEAR)")
	cmd.Flags().IntVar(&opts.SendBuffer, "send-buffer", 0, "frames queued per connection (TETHER_SEND_BUFFER)")
	cmd.Flags().StringVar(&opts.OTelEndpoint, "otel-endpoint", "", "OTLP/HTTP trace endpoint (TETHER_OTEL_ENDPOINT)")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "debug, info, warn or error (TETHER_LOG_LEVEL)")

	return cmd
}

// loadConfig reads the environment and applies the flags that were set.
func loadConfig(opts *ServeOptions, cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	changed := func(name string) bool {
		f := cmd.Flag(name)
		return f != nil && f.Changed
	}
	if changed("addr") {
		cfg.Addr = opts.Addr
	}
	if changed("scene") {
		cfg.Scene = opts.Scene
	}
	if changed("journal") {
		cfg.Journal = opts.Journal
	}
	if changed("tick-rate") {
		cfg.TickRate = opts.TickRate
	}
	if changed("step") {
		cfg.Step = opts.Step
	}
	if changed("collision-clear") {
		cfg.CollisionClear = opts.CollisionClear
	}
	if changed("send-buffer") {
		cfg.SendBuffer = opts.SendBuffer
	}
	if changed("otel-endpoint") {
		cfg.OTelEndpoint = opts.OTelEndpoint
	}
	if changed("log-level") {
		cfg.LogLevel = opts.LogLevel
	}
	if changed("log-format") {
		cfg.LogFormat = opts.LogFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadScene returns the configured scene, or the built-in one.
func loadScene(path string) (*scene.Scene, error) {
	if path == "" {
		return scene.Default()
	}
	return scene.Load(path)
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	level, _ := cfg.Level()
	logger := newLogger(cmd.ErrOrStderr(), cfg.LogFormat, level, opts.Verbose)
	slog.SetDefault(logger)

	sc, err := loadScene(cfg.Scene)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scene", err)
	}
	w := world.New(chipmunk.New(chipmunk.WithGravity(sc.Gravity)))
	if err := sc.Build(w); err != nil {
		return WrapExitError(ExitFailure, "failed to build scene", err)
	}
	bodies, constraints := w.Counts()
	logger.Info("scene loaded", "scene", sc.Name, "bodies", bodies, "constraints", constraints)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	if cfg.TracingEnabled() {
		shutdown, err := telemetry.Setup(ctx, cfg.OTelEndpoint, Version)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to set up tracing", err)
		}
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer flushCancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Error("error flushing traces", "error", err)
			}
		}()
		logger.Info("tracing enabled", "endpoint", cfg.OTelEndpoint)
	}

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithTickInterval(cfg.TickInterval()),
		engine.WithStep(cfg.StepDuration()),
		engine.WithClearDelay(cfg.CollisionClear),
	}
	if cfg.Journal != "" {
		st, err := store.Open(cfg.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		journal := store.NewJournal(st, store.WithJournalLogger(logger))
		// Runs before st.Close so queued entries are flushed.
		defer func() {
			_ = journal.Close()
			logger.Info("journal closed", "written", journal.Written(), "dropped", journal.Dropped())
		}()
		engineOpts = append(engineOpts, engine.WithJournal(journal))
		logger.Info("journal ready", "path", cfg.Journal)
	}

	eng := engine.New(w, engineOpts...)
	hub := transport.NewHub(eng,
		transport.WithHubLogger(logger),
		transport.WithSendBuffer(cfg.SendBuffer),
	)
	eng.SetBroadcaster(hub)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	srv := &http.Server{
		Handler:           transport.NewMux(hub, eng),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	// The engine outlives ctx so it can apply the disconnects queued while
	// sessions close.
	engineCtx, stopEngine := context.WithCancel(context.WithoutCancel(ctx))
	defer stopEngine()
	engineErr := make(chan error, 1)
	go func() { engineErr <- eng.Run(engineCtx) }()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	addr := ln.Addr().String()
	logger.Info("server listening", "addr", addr)
	fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s. Press Ctrl-C to stop.\n", addr)
	if opts.ready != nil {
		opts.ready(addr)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = WrapExitError(ExitFailure, "server error", err)
		}
		cancel()
	}

	// Hub.Close returns once every session's disconnect is queued; Stop
	// then applies them before Run returns.
	hub.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down server", "error", err)
	}

	eng.Stop()
	select {
	case err := <-engineErr:
		if err != nil && !errors.Is(err, context.Canceled) && runErr == nil {
			runErr = WrapExitError(ExitFailure, "engine error", err)
		}
	case <-shutdownCtx.Done():
		stopEngine()
		<-engineErr
		logger.Error("engine did not drain before the shutdown timeout")
	}

	logger.Info("server stopped", "tick", eng.Clock().Current())
	return runErr
}
