// Package worker runs the queue processor as a single long-running
// poller: wake on an interval, drain a batch of validated intents
// through engine.ProcessQueue, sleep, repeat. Grounded on
// original_source/src/converge/worker.py's QueueWorker, adapted from
// Python's signal-handler-driven stop() to idiomatic Go
// context-cancellation plus os/signal.NotifyContext (the teacher's
// pkg/agent package has no poller analog to imitate here, so the
// shutdown idiom follows the teacher's general "ctx.Done() stops the
// loop" convention used across its long-running goroutines instead).
package worker

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/ghmbegerez/converge/pkg/config"
	"github.com/ghmbegerez/converge/pkg/engine"
	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/review"
	"github.com/ghmbegerez/converge/pkg/semantic"
)

// Worker wraps an Engine and repeatedly drains the merge queue on a
// fixed interval until its context is cancelled.
type Worker struct {
	Engine            *engine.Engine
	Cfg               *config.QueueConfig
	Cwd               string
	UseLastSimulation bool

	// Reviews sweeps for SLA-breached review tasks once per poll cycle
	// (spec.md §4.10's review.sla_breached). Nil disables the sweep.
	Reviews *review.Service

	// Semantic scans open intents for conflicting pairs once per poll
	// cycle (SPEC_FULL.md §4.14's semantic.conflict_detected). Nil
	// disables the scan.
	Semantic *semantic.Service

	cycles         atomic.Int64
	totalProcessed atomic.Int64
	running        atomic.Bool
}

// New builds a Worker. cfg defaults to config.DefaultQueueConfig()
// when nil, matching the Python defaults.py fallback this package's
// sibling packages also reconstruct.
func New(eng *engine.Engine, cfg *config.QueueConfig, cwd string) *Worker {
	if cfg == nil {
		cfg = config.DefaultQueueConfig()
	}
	return &Worker{Engine: eng, Cfg: cfg, Cwd: cwd, UseLastSimulation: true}
}

// Cycles reports how many poll iterations have completed.
func (w *Worker) Cycles() int64 { return w.cycles.Load() }

// TotalProcessed reports the cumulative count of decisions returned
// across all poll cycles so far.
func (w *Worker) TotalProcessed() int64 { return w.totalProcessed.Load() }

// IsRunning reports whether Start's loop is currently active.
func (w *Worker) IsRunning() bool { return w.running.Load() }

// Start blocks, polling the queue every Cfg.PollInterval, until ctx is
// cancelled. It emits worker.started on entry and worker.stopped on
// exit (mirroring QueueWorker's WORKER_STARTED/WORKER_STOPPED events),
// and never lets a single cycle's error stop the loop — a failing
// cycle is logged and the poller tries again next tick.
func (w *Worker) Start(ctx context.Context) error {
	w.running.Store(true)
	defer w.running.Store(false)

	pid := os.Getpid()
	if _, err := w.Engine.Log.Append(ctx, models.NewEvent(models.EventWorkerStarted, map[string]any{
		"pid":           pid,
		"poll_interval": w.Cfg.PollInterval.Seconds(),
		"batch_size":    w.Cfg.BatchSize,
		"target":        w.Cfg.Target,
	})); err != nil {
		slog.Warn("worker: failed to record worker.started", "error", err)
	}

	ticker := time.NewTicker(w.Cfg.PollInterval)
	defer ticker.Stop()

	slog.Info("worker: started", "pid", pid, "poll_interval", w.Cfg.PollInterval)

	for {
		w.pollOnce(ctx)

		select {
		case <-ctx.Done():
			w.shutdown(pid)
			return nil
		case <-ticker.C:
		}
	}
}

// pollOnce drains one batch through ProcessQueue. Errors are logged,
// never propagated: a bad cycle must not kill the poller.
func (w *Worker) pollOnce(ctx context.Context) {
	w.cycles.Add(1)

	if w.Reviews != nil {
		if breaches, err := w.Reviews.CheckSLABreaches(ctx, nil); err != nil {
			slog.Error("worker: SLA sweep failed", "error", err, "cycle", w.cycles.Load())
		} else if len(breaches) > 0 {
			slog.Info("worker: SLA breaches detected", "cycle", w.cycles.Load(), "count", len(breaches))
		}
	}

	if w.Semantic != nil {
		if report, err := w.Semantic.ScanConflicts(ctx, "", "", w.Cfg.Target, nil, nil, "shadow"); err != nil {
			slog.Error("worker: conflict scan failed", "error", err, "cycle", w.cycles.Load())
		} else if len(report.Conflicts) > 0 {
			slog.Info("worker: semantic conflicts detected", "cycle", w.cycles.Load(), "count", len(report.Conflicts))
		}
	}

	decisions, err := w.Engine.ProcessQueue(ctx, engine.QueueOptions{
		Limit:             w.Cfg.BatchSize,
		Target:            w.Cfg.Target,
		AutoConfirm:       w.Cfg.AutoConfirm,
		MaxRetries:        w.Cfg.MaxRetries,
		UseLastSimulation: w.UseLastSimulation,
		SkipChecks:        w.Cfg.SkipChecks,
		Cwd:               w.Cwd,
	})
	if err != nil {
		slog.Error("worker: poll cycle failed", "error", err, "cycle", w.cycles.Load())
		return
	}

	w.totalProcessed.Add(int64(len(decisions)))
	if len(decisions) > 0 {
		slog.Info("worker: cycle processed intents", "cycle", w.cycles.Load(), "count", len(decisions))
	}
}

func (w *Worker) shutdown(pid int) {
	if _, err := w.Engine.Log.Append(context.Background(), models.NewEvent(models.EventWorkerStopped, map[string]any{
		"pid":             pid,
		"cycles":          w.cycles.Load(),
		"total_processed": w.totalProcessed.Load(),
	})); err != nil {
		slog.Warn("worker: failed to record worker.stopped", "error", err)
	}
	slog.Info("worker: stopped", "cycles", w.cycles.Load(), "total_processed", w.totalProcessed.Load())
}
