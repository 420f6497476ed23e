package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/beamline"
	"github.com/aretw0/beamline/internal/logging"
	"github.com/aretw0/beamline/pkg/adapters/memory"
	redisadapter "github.com/aretw0/beamline/pkg/adapters/redis"
	"github.com/aretw0/beamline/pkg/config"
	"github.com/aretw0/beamline/pkg/observability"
	"github.com/aretw0/beamline/pkg/persistence/middleware"
	"github.com/aretw0/beamline/pkg/ports"
	"github.com/aretw0/beamline/pkg/runner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// app holds everything a command needs to drive the beamline.
type app struct {
	exp     *config.Experiment
	logger  *slog.Logger
	engine  *beamline.Engine
	store   ports.DocumentStore
	locker  ports.DistributedLocker
	metrics *prometheus.Registry
	closers []func() error
}

func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	exp, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level := exp.Level()
	if raw, _ := cmd.Flags().GetString("log-level"); raw != "" {
		if level, err = config.ParseLevel(raw); err != nil {
			return nil, err
		}
	}
	format, _ := cmd.Flags().GetString("log-format")
	a := &app{
		exp:     exp,
		logger:  logging.NewWithFormat(os.Stderr, level, format),
		metrics: prometheus.NewRegistry(),
	}
	a.metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m, err := observability.NewMetrics(a.metrics)
	if err != nil {
		return nil, err
	}

	switch exp.Store.Backend {
	case config.BackendMemory:
		a.store = memory.NewStore()
	case config.BackendRedis:
		opts := []redisadapter.Option{redisadapter.WithTTL(exp.Store.TTL)}
		if exp.Store.Prefix != "" {
			opts = append(opts, redisadapter.WithPrefix(exp.Store.Prefix+"run:"))
		}
		store := redisadapter.New(exp.Store.Addr, exp.Store.Password, exp.Store.DB, opts...)
		a.store = store
		a.closers = append(a.closers, store.Close)
		if exp.Lock.Enabled {
			prefix := exp.Store.Prefix
			if prefix == "" {
				prefix = "beamline:"
			}
			a.locker = redisadapter.NewLocker(store.Client(), prefix)
		}
	}

	if a.store != nil && len(exp.Store.Redact) > 0 {
		redact, err := middleware.NewRedactMiddleware(exp.Store.Redact)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = middleware.Chain(a.store, redact)
	}

	a.engine, err = beamline.NewFromExperiment(exp,
		beamline.WithLogger(a.logger),
		beamline.WithLifecycleHooks(m.Hooks()),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// runner builds a Runner over the app's store and lock.
func (a *app) runner(opts ...runner.Option) *runner.Runner {
	base := []runner.Option{
		runner.WithLogger(a.logger),
		runner.WithSignals(true),
	}
	if a.store != nil {
		base = append(base, runner.WithStore(a.store))
	}
	if a.locker != nil {
		base = append(base, runner.WithLocker(a.locker, a.exp.Lock.Key, a.exp.Lock.TTL))
	}
	return runner.NewRunner(a.engine, append(base, opts...)...)
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("Failed to close resource", "err", err)
		}
	}
}

// parseAssignments turns key=value pairs into plan parameters. Values are
// decoded as YAML, so numbers, lists and booleans keep their type.
func parseAssignments(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q: expected key=value", pair)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}
