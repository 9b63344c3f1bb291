package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/opensource-finance/perch/internal/api"
	"github.com/opensource-finance/perch/internal/bus"
	"github.com/opensource-finance/perch/internal/cache"
	"github.com/opensource-finance/perch/internal/domain"
	"github.com/opensource-finance/perch/internal/history"
	"github.com/opensource-finance/perch/internal/policy"
	"github.com/opensource-finance/perch/internal/repository"
	"github.com/opensource-finance/perch/internal/rules"
	"github.com/opensource-finance/perch/internal/worker"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Perch HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("tier", string(domain.TierCommunity), "deployment tier (community, pro)")
	cmd.Flags().Int("port", 8080, "HTTP listen port")
	cmd.Flags().String("rules", "", "YAML rules file loaded at startup")
	cmd.Flags().Bool("watch-rules", false, "hot-reload the rules file on change")

	_ = v.BindPFlag("tier", cmd.Flags().Lookup("tier"))
	_ = v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	_ = v.BindPFlag("rules.seed_file", cmd.Flags().Lookup("rules"))
	_ = v.BindPFlag("rules.watch", cmd.Flags().Lookup("watch-rules"))

	return cmd
}

func serve(ctx context.Context, cfg *domain.Config) error {
	slog.Info("starting perch",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	if cfg.Tracing.Enabled {
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		slog.Info("trace propagation enabled", "service_name", cfg.Tracing.ServiceName)
	}

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type, "record_ttl", cfg.Cache.RecordTTL)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	engine, err := rules.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to initialize rule engine: %w", err)
	}
	defer engine.Close()

	loader := rules.NewLoader(repo, cfg.Rules.SeedFile)
	count, err := engine.Reload(ctx, loader)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	slog.Info("rule engine initialized", "rules_count", count, "seed_file", cfg.Rules.SeedFile)

	if cfg.Rules.Watch {
		watcher, err := rules.NewWatcher(engine, loader, cfg.Rules.SeedFile)
		if err != nil {
			return fmt.Errorf("failed to watch rules file: %w", err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Error("rules watcher stopped", "error", err)
			}
		}()
		slog.Info("watching rules file", "path", cfg.Rules.SeedFile)
	}

	lookups := history.NewService(repo, cacheImpl, cfg.Cache.RecordTTL)
	evaluator := policy.NewEvaluator(engine)

	var recordWorker *worker.Worker
	if cfg.Worker.Enabled {
		recordWorker = worker.NewWorker(busImpl, repo, lookups, evaluator)
		if err := recordWorker.Start(worker.Config{TenantIDs: cfg.Worker.TenantIDs}); err != nil {
			slog.Error("failed to start record worker", "error", err)
			recordWorker = nil
		}
	}

	srv := api.NewServer(cfg.Server, api.Deps{
		Repo:      repo,
		Cache:     cacheImpl,
		Bus:       busImpl,
		Engine:    engine,
		Loader:    loader,
		History:   lookups,
		Evaluator: evaluator,
	}, Version)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("perch is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
	slog.Info("shutting down...")

	if recordWorker != nil {
		if err := recordWorker.Stop(); err != nil {
			slog.Error("failed to stop record worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("perch shutdown complete")
	return nil
}
