package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/epochkeeper/internal/executor"
	"github.com/alanyoungcy/epochkeeper/internal/scheduler"
	"github.com/alanyoungcy/epochkeeper/internal/server"
	"github.com/alanyoungcy/epochkeeper/internal/server/handler"
)

const shutdownTimeout = 5 * time.Second

// RunMode evaluates every tick and submits the redeem when it is due.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	return a.runEngine(ctx, deps, false)
}

// MonitorMode evaluates and reports every tick but never submits.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	return a.runEngine(ctx, deps, true)
}

func (a *App) runEngine(ctx context.Context, deps *Dependencies, dryRun bool) error {
	var coord *executor.Coordinator
	sched := scheduler.New(a.cfg.Engine.PollInterval.Duration, func(ctx context.Context) error {
		_, err := coord.Tick(ctx)
		return err
	}, a.logger)
	coord = a.newCoordinator(deps, sched, dryRun)

	if err := coord.Restore(ctx); err != nil {
		return err
	}

	if deps.Notifier.Enabled() {
		mode := "run"
		if dryRun {
			mode = "monitor"
		}
		msg := fmt.Sprintf("account %s, %d positions, mode %s", deps.Account.Hex(), len(deps.Registry.Positions()), mode)
		if err := deps.Notifier.NotifyAll(ctx, "epochkeeper started", msg); err != nil {
			a.logger.WarnContext(ctx, "startup notification failed", slog.String("error", err.Error()))
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(ctx)
	})
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, coord, sched)
	}
	return g.Wait()
}

// newCoordinator assembles the coordinator. Optional backends are only set
// when wired so the interfaces stay nil otherwise.
func (a *App) newCoordinator(deps *Dependencies, gate executor.Gate, dryRun bool) *executor.Coordinator {
	cfg := executor.CoordinatorConfig{
		Gateway:   deps.Gateway,
		Positions: deps.Registry,
		Pending:   deps.Values,
		Gate:      gate,
		Retry:     deps.Retry,
		Account:   deps.Account,
		Window:    a.cfg.Engine.TriggerWindow,
		Sample:    uint64(a.cfg.Chain.BlockTimeSample),
		Decimals:  deps.Decimals,
		DryRun:    dryRun,
		Logger:    a.logger,

		Store:    deps.LedgerStore,
		Receipts: deps.Receipts,
		Locks:    deps.Locks,
		Archiver: deps.Archiver,
		Bus:      deps.Bus,
		Notifier: deps.Notifier,
		Metrics:  deps.Metrics,
	}
	if !dryRun {
		r := executor.NewRedeemer(deps.Registry, deps.Values, deps.Submitter, a.cfg.Engine.AutoStake, a.logger)
		r.SetConfirmations(uint64(a.cfg.Chain.Confirmations))
		cfg.Redeemer = r
	}
	return executor.NewCoordinator(cfg)
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, coord *executor.Coordinator, sched *scheduler.Scheduler) {
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, server.Handlers{
		Health:  handler.NewHealthHandler(deps.Checks, a.logger),
		Status:  handler.NewStatusHandler(a.cfg.Mode, coord, coord.Ledger(), sched),
		Metrics: deps.Metrics.Handler(),
	}, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
