package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/harun/agentdiff/internal/config"
	"github.com/harun/agentdiff/internal/observability"
	"github.com/harun/agentdiff/internal/tracing"
	"github.com/harun/agentdiff/pkg/changetracker"
	"github.com/harun/agentdiff/pkg/diffsync"
	"github.com/harun/agentdiff/pkg/livedoc"
	"github.com/harun/agentdiff/pkg/scheduler"
	"github.com/rs/zerolog/log"
)

// Runtime owns the registries of one agent session: scheduler, live
// documents, change tracker and preview sync manager.
type Runtime struct {
	Config    *config.Config
	Scheduler *scheduler.Scheduler
	Documents *livedoc.Registry
	Tracker   *changetracker.Tracker
	Sync      *diffsync.Manager

	metricsServer  *http.Server
	tracingEnabled bool
	closeOnce      sync.Once
	closeErr       error
}

// New builds a Runtime from cfg. A nil cfg uses defaults.
func New(cfg *config.Config) (*Runtime, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	observability.EnsureRegistered()

	r := &Runtime{Config: cfg}

	if cfg.AuditFile != "" {
		if err := observability.InitAuditLogger(cfg.AuditFile); err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName, cfg.Tracing.SampleRatio); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			r.tracingEnabled = true
		}
	}

	r.Scheduler = scheduler.New(cfg.Scheduler.BackgroundConcurrency)

	docs, err := livedoc.NewRegistry(livedoc.NewDiskStore(), livedoc.Config{
		Watch:    true,
		Debounce: cfg.Sync.Debounce(),
	})
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("failed to create document registry: %w", err)
	}
	r.Documents = docs

	tracker, err := changetracker.New(docs, changetracker.Options{
		IgnorePatterns: cfg.Tracker.IgnorePatterns,
	})
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("failed to create change tracker: %w", err)
	}
	r.Tracker = tracker

	r.Sync = diffsync.NewManager(NewDocumentResolver(docs), r.Scheduler, diffsync.Options{
		ResolveTimeout: cfg.Sync.ResolveTimeout(),
	})

	if cfg.Metrics.Enabled {
		r.startMetricsServer(cfg.Metrics.Addr)
	}

	log.Debug().
		Int("background_concurrency", cfg.Scheduler.BackgroundConcurrency).
		Bool("metrics", cfg.Metrics.Enabled).
		Msg("Runtime initialized")

	return r, nil
}

func (r *Runtime) startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.metricsServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := r.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics server error")
		}
	}()
	log.Info().Str("addr", addr).Msg("Serving metrics")
}

// Close tears the runtime down in reverse construction order
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		var errs []error

		if r.Sync != nil {
			errs = append(errs, r.Sync.Close())
		}
		if r.Documents != nil {
			errs = append(errs, r.Documents.Close())
		}
		if r.Scheduler != nil {
			errs = append(errs, r.Scheduler.Close())
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if r.metricsServer != nil {
			errs = append(errs, r.metricsServer.Shutdown(ctx))
		}
		if r.tracingEnabled {
			errs = append(errs, tracing.ShutdownOpenTelemetry(ctx))
		}

		r.closeErr = errors.Join(errs...)
	})
	return r.closeErr
}
