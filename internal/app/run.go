package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kalshi-arb/engine/internal/detector"
	"github.com/kalshi-arb/engine/internal/relationship"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.Bool("dry-run", a.cfg.Trading.DryRun),
		zap.String("storage-mode", a.cfg.Storage.Mode),
		zap.String("log-level", a.cfg.Logging.Level))

	if err := a.guard.Sync(a.ctx); err != nil {
		a.logger.Warn("initial-portfolio-sync-failed", zap.Error(err))
	}

	a.notifier.NotifyStartup(a.ctx)

	a.wg.Add(1)
	go a.runHTTPServer()

	time.Sleep(100 * time.Millisecond)

	if a.fills != nil {
		a.fills.Start()
	}

	a.wg.Add(1)
	go a.runScheduler()

	a.healthChecker.SetReady(true)
	a.logger.Info("application-ready", zap.String("http-addr", ":"+a.cfg.HTTPPort))

	return a.waitForShutdown()
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) runScheduler() {
	defer a.wg.Done()
	a.scheduler.run(a.ctx)
}

// buildScheduler lays out the orchestrator's timing wheel per §4.7:
// ingestion and the portfolio resync it implies, detection immediately
// followed by execution of whatever it finds, and the three (plus one
// supplemented) relationship-discovery passes on their own, much longer
// cadences.
func (a *App) buildScheduler() *scheduler {
	s := newScheduler(a.logger)

	s.every("ingestion", a.cfg.ScanInterval(), a.runIngestionCycle)
	s.every("detection", a.cfg.DetectionInterval(), a.runDetectionCycle)

	rescan := time.Duration(a.cfg.Scanning.RelationshipRescanHours) * time.Hour
	crossScan := time.Duration(a.cfg.Scanning.RelationshipCrossScanHours) * time.Hour
	s.every("relationship-within-event", rescan, a.runDiscoveryPass(relationship.PassWithinEvent))
	s.every("relationship-within-category", rescan, a.runDiscoveryPass(relationship.PassWithinCategory))
	s.every("relationship-cross-category", crossScan, a.runCrossCategoryPass)

	if a.cfg.Scanning.RelationshipRevalidateHours > 0 {
		revalidate := time.Duration(a.cfg.Scanning.RelationshipRevalidateHours) * time.Hour
		s.every("relationship-revalidate", revalidate, a.runRevalidatePass)
	}

	s.every("daily-summary", 24*time.Hour, a.logDailySummary)

	return s
}

func (a *App) runIngestionCycle(ctx context.Context) {
	summary, err := a.ingestionSvc.IngestAll(ctx)
	if err != nil {
		a.logger.Error("ingestion-cycle-failed", zap.Error(err))
		a.notifier.NotifyError(ctx, "ingestion cycle failed", err.Error())
		return
	}
	a.logger.Info("ingestion-cycle-complete", zap.Int("markets", summary.Markets), zap.Int("events", summary.Events))

	if err := a.guard.Sync(ctx); err != nil {
		a.logger.Warn("portfolio-sync-failed", zap.Error(err))
	}
}

func (a *App) runDetectionCycle(ctx context.Context) {
	opps, err := a.detector.Detect(ctx)
	if err != nil {
		a.logger.Error("detection-cycle-failed", zap.Error(err))
		a.notifier.NotifyError(ctx, "detection cycle failed", err.Error())
		return
	}
	a.opportunities.set(opps)

	for _, opp := range opps {
		if opp.IsExpired(time.Now()) {
			continue
		}
		a.notifier.NotifyOpportunity(ctx, opp)

		if err := a.storage.CreateOpportunity(ctx, opp); err != nil {
			a.logger.Warn("opportunity-persist-failed", zap.String("opportunity", opp.ID), zap.Error(err))
			continue
		}
		filled, err := a.executor.Execute(ctx, opp)
		if err != nil {
			a.logger.Error("opportunity-execution-error", zap.String("opportunity", opp.ID), zap.Error(err))
			a.notifier.NotifyError(ctx, "opportunity execution error", err.Error())
			continue
		}
		a.logger.Info("opportunity-execution-complete",
			zap.String("opportunity", opp.ID),
			zap.String("signal", string(opp.Signal)),
			zap.Bool("filled", filled))
	}
}

func (a *App) runDiscoveryPass(pass relationship.Pass) func(ctx context.Context) {
	return func(ctx context.Context) {
		n, err := a.relationshipSvc.Discover(ctx, pass)
		if err != nil {
			a.logger.Error("relationship-discovery-failed", zap.String("pass", string(pass)), zap.Error(err))
			a.notifier.NotifyError(ctx, "relationship discovery failed", err.Error())
			return
		}
		a.logger.Info("relationship-discovery-complete", zap.String("pass", string(pass)), zap.Int("found", n))
	}
}

func (a *App) runCrossCategoryPass(ctx context.Context) {
	a.runDiscoveryPass(relationship.PassCrossCategory)(ctx)

	n, err := a.relationshipSvc.CleanupStale(ctx)
	if err != nil {
		a.logger.Error("relationship-cleanup-failed", zap.Error(err))
		return
	}
	a.logger.Info("relationship-cleanup-complete", zap.Int("removed", n))
}

// runRevalidatePass re-checks every relationship whose last validation
// predates the configured cadence against the stronger oracle model
// (SUPPLEMENTED FEATURES: the original bot's periodic confidence
// refresh, dropped by the distilled spec but cheap to carry forward
// since relationship.Service.Validate already exists for on-demand use).
func (a *App) runRevalidatePass(ctx context.Context) {
	all, err := a.storage.AllRelationships(ctx)
	if err != nil {
		a.logger.Error("revalidate-pass-list-failed", zap.Error(err))
		return
	}

	cutoff := time.Now().Add(-time.Duration(a.cfg.Scanning.RelationshipRevalidateHours) * time.Hour)
	checked := 0
	for _, rel := range all {
		if rel.LastValidated.After(cutoff) {
			continue
		}
		ok, err := a.relationshipSvc.Validate(ctx, rel.ID)
		if err != nil {
			a.logger.Warn("relationship-revalidate-error", zap.String("id", rel.ID), zap.Error(err))
			continue
		}
		if !ok {
			a.logger.Warn("relationship-revalidate-no-longer-holds", zap.String("id", rel.ID))
		}
		checked++
	}
	a.logger.Info("revalidate-pass-complete", zap.Int("checked", checked))
}

func (a *App) logDailySummary(ctx context.Context) {
	state := a.guard.State()
	a.logger.Info("daily-portfolio-summary",
		zap.Float64("balance", state.Balance),
		zap.Float64("daily-pnl", state.DailyPnL),
		zap.Int("open-positions", state.OpenPositions),
		zap.Bool("kill-switch", state.KillSwitch))

	opps := a.opportunities.Opportunities()
	trades := 0
	for _, opp := range opps {
		if opp.Status == detector.StatusFilled {
			trades++
		}
	}
	a.notifier.NotifyDailySummary(ctx, state, len(opps), trades)
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
