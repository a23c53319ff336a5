package helpers

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/courier/internal/config"
	"github.com/kode4food/courier/internal/engine"
	"github.com/kode4food/courier/internal/engine/scheduler"
	"github.com/kode4food/courier/internal/execlog"
	"github.com/kode4food/courier/internal/metrics"
	"github.com/kode4food/courier/internal/store"
)

// TestEngineEnv holds all the components needed for engine testing
type TestEngineEnv struct {
	Engine       *engine.Engine
	Redis        *miniredis.Miniredis
	Capabilities *MockCapabilities
	Timers       *FakeTimers
	Logs         *execlog.Logger
	Metrics      *metrics.Metrics
	Config       *config.Config
	Now          time.Time
}

const testStoreTimeout = 5 * time.Second

// TestNow is the fixed wall-clock time seen by test engines
var TestNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// NewTestConfig creates a default configuration with debug logging enabled
func NewTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.LogLevel = "debug"
	cfg.PlanStorePrefix = "courier-test"
	cfg.ExecLogCapacity = 1000
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

// NewTestEngine creates a started engine over a miniredis plan store with
// mock capabilities and fake timers. Everything is released when the test
// ends
func NewTestEngine(t *testing.T) *TestEngineEnv {
	t.Helper()

	server := miniredis.RunT(t)
	cfg := NewTestConfig()
	cfg.PlanStoreURL = "redis://" + server.Addr() + "/0"

	env := &TestEngineEnv{
		Redis:        server,
		Capabilities: NewMockCapabilities(),
		Timers:       NewFakeTimers(),
		Metrics:      metrics.New(),
		Config:       cfg,
		Now:          TestNow,
		Logs: execlog.New(cfg.ExecLogCapacity,
			execlog.WithSlog(slog.New(slog.NewTextHandler(io.Discard, nil))),
		),
	}
	env.Engine = env.NewEngineInstance(t)

	ctx, cancel := context.WithTimeout(
		context.Background(), testStoreTimeout,
	)
	defer cancel()
	require.NoError(t, env.Engine.Start(ctx))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(
			context.Background(), cfg.ShutdownTimeout,
		)
		defer cancel()
		_ = env.Engine.Stop(ctx)
	})
	return env
}

// NewEngineInstance creates a new, unstarted engine over the same Redis
// data, capabilities, and logs. Used to simulate a process restart. Live
// log subscriptions end once any instance is stopped
func (e *TestEngineEnv) NewEngineInstance(t *testing.T) *engine.Engine {
	t.Helper()
	clock := func() time.Time { return e.Now }
	client := redis.NewClient(&redis.Options{Addr: e.Redis.Addr()})
	backend := store.NewRedisBackend(client, e.Config.PlanStorePrefix)
	return engine.New(
		store.New(backend, store.WithClock(clock)),
		e.Capabilities,
		e.Logs,
		engine.WithScheduler(scheduler.New(clock, e.Timers.NewTimer)),
		engine.WithMetrics(e.Metrics),
		engine.WithClock(clock),
		engine.WithRegexCacheSize(e.Config.RegexCacheSize),
	)
}

// WithTestEnv creates a test engine environment and executes the provided
// function with it
func WithTestEnv(t *testing.T, fn func(*TestEngineEnv)) {
	t.Helper()
	fn(NewTestEngine(t))
}

// WithEngine creates a started test engine and executes the provided
// function with it
func WithEngine(t *testing.T, fn func(*engine.Engine)) {
	t.Helper()
	WithTestEnv(t, func(env *TestEngineEnv) {
		fn(env.Engine)
	})
}
