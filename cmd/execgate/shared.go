package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/jkaninda/execgate/internal/audit"
	"github.com/jkaninda/execgate/internal/config"
	"github.com/jkaninda/execgate/internal/gateway"
	"github.com/jkaninda/execgate/internal/observability"
	"github.com/jkaninda/execgate/internal/tools"
	execTool "github.com/jkaninda/execgate/internal/tools/exec"
	gitTool "github.com/jkaninda/execgate/internal/tools/git"
	pythonTool "github.com/jkaninda/execgate/internal/tools/python"
	systemTool "github.com/jkaninda/execgate/internal/tools/system"
)

// components holds the initialized subsystems shared by serve and run
// modes. Built once by initComponents, torn down by Cleanup.
type components struct {
	Config   *config.Config
	Logger   *slog.Logger
	Gateway  *gateway.Gateway
	Recorder audit.Recorder
	Metrics  *observability.Metrics
	Health   *observability.HealthChecker
	Tracer   *observability.TracerSetup
	Registry *tools.Registry

	cleanups []func()
}

// Cleanup runs all deferred cleanup functions in reverse order.
func (c *components) Cleanup() {
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		c.cleanups[i]()
	}
}

func (c *components) addCleanup(fn func()) {
	c.cleanups = append(c.cleanups, fn)
}

// loadConfig reads the config file, falling back to defaults when the
// file does not exist. A missing config means an empty whitelist, so
// the gateway starts in a deny-everything state rather than failing.
func loadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("config file not found, every program is denied until one is written",
			slog.String("path", path),
		)
		return config.Default(), nil
	}
	return cfg, err
}

// initComponents builds the gateway and its supporting subsystems from
// config. Callers must call Cleanup when done.
func initComponents(cfg *config.Config, logger *slog.Logger) (*components, error) {
	c := &components{
		Config: cfg,
		Logger: logger,
	}

	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", cfg.DataDir, err)
	}

	recorder, err := newRecorder(c, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.Recorder = recorder
	c.addCleanup(func() {
		if err := recorder.Close(); err != nil {
			logger.Error("closing audit recorder", slog.String("error", err.Error()))
		}
	})

	// Observability (optional).
	obsCfg := cfg.Observability
	if obsCfg != nil && obsCfg.Metrics != nil && obsCfg.Metrics.Enabled {
		c.Metrics = observability.NewMetrics()
		c.Health = observability.NewHealthChecker(logger)
		c.Health.AddCheck("data_dir", func(_ context.Context) error {
			_, err := os.Stat(cfg.DataDir)
			return err
		})
	}
	if obsCfg != nil && obsCfg.Tracing != nil && obsCfg.Tracing.Enabled {
		tracer, err := observability.NewTracerSetup(&observability.TracingConfig{
			Enabled:     true,
			ServiceName: obsCfg.Tracing.ServiceName,
			Endpoint:    obsCfg.Tracing.Endpoint,
			Protocol:    obsCfg.Tracing.Protocol,
			Insecure:    obsCfg.Tracing.Insecure,
			SampleRate:  obsCfg.Tracing.SampleRate,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing tracing: %w", err)
		}
		c.Tracer = tracer
		c.addCleanup(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracer.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutting down tracer", slog.String("error", err.Error()))
			}
		})
	}

	// Gateway.
	gw, err := gateway.New(policyFromConfig(cfg.Policy), nil, recorder, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing gateway: %w", err)
	}
	if c.Metrics != nil {
		gw.WithMetrics(c.Metrics)
	}
	if c.Tracer != nil {
		gw.WithTracer(c.Tracer.Tracer())
	}
	c.Gateway = gw

	// Tool registry.
	reg := tools.NewRegistry()
	reg.Register(execTool.NewTool(gw, logger))
	reg.Register(gitTool.NewTool(gw, logger))
	reg.Register(pythonTool.NewTool(gw, logger))
	reg.Register(systemTool.NewTool(gw, logger))
	c.Registry = reg

	logger.Info("gateway initialized",
		slog.Int("whitelist_size", len(cfg.Policy.Whitelist)),
		slog.String("audit_backend", cfg.Audit.Backend),
		slog.Bool("metrics", c.Metrics != nil),
		slog.Bool("tracing", c.Tracer != nil),
	)
	return c, nil
}

// newRecorder builds the configured audit backend. The SQLite backend
// also starts the retention pruner when retention is set.
func newRecorder(c *components, cfg *config.Config, logger *slog.Logger) (audit.Recorder, error) {
	switch cfg.Audit.Backend {
	case "file":
		return audit.NewFileRecorder(cfg.Audit.Path, logger)

	case "sqlite":
		store, err := audit.OpenSQLite(cfg.Audit.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("opening audit database: %w", err)
		}
		if cfg.Audit.RetentionDays > 0 {
			retention := time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour
			pruner := audit.NewPruner(store, retention, logger)
			stop, err := pruner.Start(cfg.Audit.PruneSchedule)
			if err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("starting audit pruner: %w", err)
			}
			c.addCleanup(stop)
		}
		return store, nil

	case "none":
		return audit.NopRecorder{}, nil

	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Audit.Backend)
	}
}

// policyFromConfig converts the on-disk policy form into the runtime policy.
func policyFromConfig(pc config.PolicyConfig) gateway.Policy {
	return gateway.Policy{
		Whitelist:          pc.Whitelist,
		MaxArgLen:          pc.MaxArgLen,
		MaxArgCount:        pc.MaxArgCount,
		DefaultTimeout:     pc.DefaultTimeout(),
		MaxTimeout:         pc.MaxTimeout(),
		MaxOutputBytes:     pc.MaxOutputBytes,
		AllowedWorkingDirs: pc.AllowedWorkingDirs,
		DefaultWorkingDir:  pc.DefaultWorkingDir,
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
