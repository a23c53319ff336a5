package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kode4food/courier"
	"github.com/kode4food/courier/internal/client"
	"github.com/kode4food/courier/internal/config"
	"github.com/kode4food/courier/internal/engine"
	"github.com/kode4food/courier/internal/execlog"
	"github.com/kode4food/courier/internal/inbound"
	"github.com/kode4food/courier/internal/metrics"
	"github.com/kode4food/courier/internal/planfile"
	"github.com/kode4food/courier/internal/server"
	"github.com/kode4food/courier/internal/store"
	"github.com/kode4food/courier/pkg/log"
)

type app struct {
	cfg        *config.Config
	store      *store.Store
	logs       *execlog.Logger
	engine     *engine.Engine
	watcher    *planfile.Watcher
	listener   *inbound.Listener
	apiServer  *server.Server
	httpServer *http.Server
}

var (
	ErrOpenStore   = errors.New("failed to open plan store")
	ErrStartEngine = errors.New("failed to start engine")
	ErrWatchPlans  = errors.New("failed to watch plan files")
	ErrListen      = errors.New("failed to start inbound listener")
)

func newServeCmd() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine and its HTTP API",
		Long: `Serve loads configuration from the environment, applies any flags on
top, then runs the engine until interrupted.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(
				cmd.Context(), syscall.SIGINT, syscall.SIGTERM,
			)
			defer stop()
			return (&app{cfg: cfg}).run(ctx)
		},
	}

	f := cmd.Flags()
	f.String("host", cfg.APIHost, "API listen host")
	f.Int("port", cfg.APIPort, "API listen port")
	f.String("log-level", cfg.LogLevel, "debug, info, warn, or error")
	f.String("store", cfg.PlanStoreURL, "plan store URL")
	f.String("capabilities", cfg.CapabilityEndpoint,
		"capability service base URL")
	f.String("nats", cfg.NATSURL, "NATS URL for inbound mail")
	f.String("plans", cfg.PlansDir, "directory of plan files to import")
	return cmd
}

// loadConfig layers environment and then explicitly set flags over the
// defaults
func loadConfig(cmd *cobra.Command, cfg *config.Config) error {
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}

	f := cmd.Flags()
	overrides := map[string]*string{
		"host":         &cfg.APIHost,
		"log-level":    &cfg.LogLevel,
		"store":        &cfg.PlanStoreURL,
		"capabilities": &cfg.CapabilityEndpoint,
		"nats":         &cfg.NATSURL,
		"plans":        &cfg.PlansDir,
	}
	for name, dst := range overrides {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	if f.Changed("port") {
		cfg.APIPort, _ = f.GetInt("port")
	}
	return cfg.Validate()
}

func (a *app) run(ctx context.Context) error {
	a.setupLogging()

	if err := a.initializeEngine(ctx); err != nil {
		return err
	}
	defer a.shutdown()

	if err := a.initializeInputs(ctx); err != nil {
		return err
	}
	a.startServer()

	<-ctx.Done()
	return nil
}

func (a *app) setupLogging() {
	level, _ := log.ParseLevel(a.cfg.LogLevel)
	logger := log.New(courier.Name, os.Getenv("ENV"), courier.Version, level)
	slog.SetDefault(logger)

	slog.Info("Courier engine starting",
		slog.String("log_level", a.cfg.LogLevel))
	slog.Info("Configuration loaded",
		slog.String("plan_store_prefix", a.cfg.PlanStorePrefix),
		slog.String("capability_endpoint", a.cfg.CapabilityEndpoint),
		slog.String("nats_subject", a.cfg.NATSSubject),
		slog.String("plans_dir", a.cfg.PlansDir),
		slog.String("api_host", a.cfg.APIHost),
		slog.Int("api_port", a.cfg.APIPort))
}

func (a *app) initializeEngine(ctx context.Context) error {
	backend, err := store.Open(
		ctx, a.cfg.PlanStoreURL, a.cfg.PlanStorePrefix,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenStore, err)
	}
	a.store = store.New(backend)
	a.logs = execlog.New(a.cfg.ExecLogCapacity,
		execlog.WithSlog(slog.Default()),
	)

	caps := client.NewHTTPClient(
		a.cfg.CapabilityEndpoint, a.cfg.CapabilityTimeout,
	)
	a.engine = engine.New(a.store, caps, a.logs,
		engine.WithMetrics(metrics.New()),
		engine.WithRegexCacheSize(a.cfg.RegexCacheSize),
	)
	if err := a.engine.Start(ctx); err != nil {
		a.logs.Close()
		_ = a.store.Close()
		return fmt.Errorf("%w: %w", ErrStartEngine, err)
	}
	return nil
}

func (a *app) initializeInputs(ctx context.Context) error {
	if dir := a.cfg.PlansDir; dir != "" {
		w, err := planfile.NewWatcher(a.engine, dir)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrWatchPlans, err)
		}
		if _, err := w.Start(ctx); err != nil {
			_ = w.Stop()
			return fmt.Errorf("%w: %w", ErrWatchPlans, err)
		}
		a.watcher = w
	}

	if url := a.cfg.NATSURL; url != "" {
		l, err := inbound.Connect(url, a.cfg.NATSSubject, a.engine)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrListen, err)
		}
		if err := l.Start(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrListen, err)
		}
		a.listener = l
	}
	return nil
}

func (a *app) startServer() {
	a.apiServer = server.NewServer(a.engine, courier.Version)
	a.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", a.cfg.APIHost, a.cfg.APIPort),
		Handler: a.apiServer.SetupRoutes(),
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", a.httpServer.Addr))
		err := a.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (a *app) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), a.cfg.ShutdownTimeout,
	)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			slog.Error("Shutdown failed", log.Error(err))
		}
		a.apiServer.CloseWebSockets()
	}
	if a.listener != nil {
		if err := a.listener.Stop(); err != nil {
			slog.Error("Inbound listener shutdown failed", log.Error(err))
		}
	}
	if a.watcher != nil {
		_ = a.watcher.Stop()
	}
	if err := a.engine.Stop(ctx); err != nil {
		slog.Error("Engine shutdown failed", log.Error(err))
	}

	slog.Info("Server exited")
}
