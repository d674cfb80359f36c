// Command mock paces synthetic visitor traffic against an hourly arrival
// curve and replays scripted journeys into an analytics sink.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Openpanel-dev/mock/internal/catalog"
	"github.com/Openpanel-dev/mock/internal/config"
	"github.com/Openpanel-dev/mock/internal/core"
	"github.com/Openpanel-dev/mock/internal/counter"
	"github.com/Openpanel-dev/mock/internal/logger"
	"github.com/Openpanel-dev/mock/internal/metrics"
	"github.com/Openpanel-dev/mock/internal/pacing"
	"github.com/Openpanel-dev/mock/internal/queue"
	"github.com/Openpanel-dev/mock/internal/report"
	"github.com/Openpanel-dev/mock/internal/runner"
	"github.com/Openpanel-dev/mock/internal/sink"
	"github.com/Openpanel-dev/mock/internal/status"
)

const (
	ExitSuccess = 0
	ExitError   = 2

	statusLogInterval = 30 * time.Second
	historyLimit      = 100
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional, defaults apply)")
	interval := flag.Duration("interval", pacing.DefaultInterval, "pacing check interval")
	grace := flag.Duration("grace", 30*time.Second, "shutdown grace period for in-flight journeys")
	dryRun := flag.Bool("dry-run", false, "log events instead of sending them to the sink")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer log.Sync()

	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}
	if cat.Len() == 0 {
		log.Warnw("session catalog has no templates, admissions will be skipped until one is loaded")
	}

	store := counter.NewMemoryStore()
	m := metrics.New()
	coll := report.NewCollector(historyLimit)

	var eventSink core.EventSink
	if *dryRun {
		eventSink = sink.NewLog(log)
	} else {
		eventSink = sink.NewOpenPanel(cfg.Sink, log)
	}

	run := runner.New(eventSink, cfg.Runner.MinEventDelay, cfg.Runner.MaxEventDelay, log)
	q := queue.New(run, cfg.Queue.Concurrency, cfg.Queue.Buffer, cfg.Queue.StartJitterMax, coll, m, log)
	q.Start(context.Background())

	ctrl := pacing.NewController(cfg.HourlyProfile, store)
	ticker := pacing.NewTicker(*interval, ctrl, store, cat, q, m, log)
	ticker.Start(context.Background())

	statusSrv := status.NewServer(cfg.Status.Addr, cfg.HourlyProfile, store, q, coll, m, log)
	statusSrv.Start()

	hour := time.Now().Hour()
	log.Infow("traffic generator started",
		"hour", hour,
		"hour_target", cfg.HourlyProfile.Target(hour),
		"catalog_templates", cat.Len(),
		"concurrency", cfg.Queue.Concurrency,
		"dry_run", *dryRun,
	)

	stopStatusLog := make(chan struct{})
	go statusLogLoop(cfg.HourlyProfile, store, q, coll, log, stopStatusLog)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Infow("shutdown signal received")

	close(stopStatusLog)
	ticker.Stop()
	q.Stop(*grace)
	coll.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := statusSrv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("status server shutdown", "error", err)
	}

	summary := coll.Summary()
	log.Infow("traffic generator stopped",
		"journeys_completed", summary.Completed,
		"journeys_failed", summary.Failed,
		"events_emitted", summary.EventsEmitted,
	)
	os.Exit(ExitSuccess)
}

// statusLogLoop periodically logs a pacing snapshot.
func statusLogLoop(profile config.HourlyProfile, store counter.Store, q *queue.Queue, coll *report.Collector, log *zap.SugaredLogger, stop <-chan struct{}) {
	ticker := time.NewTicker(statusLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			current, err := store.Count()
			if err != nil {
				log.Warnw("status snapshot unavailable", "error", err)
				continue
			}
			hour := time.Now().Hour()
			summary := coll.Summary()
			log.Infow("status",
				"hour", hour,
				"visitors", fmt.Sprintf("%d/%d", current, profile.Target(hour)),
				"queue_depth", q.Depth(),
				"active_runners", q.ActiveRunners(),
				"completed", summary.Completed,
				"failed", summary.Failed,
			)
		}
	}
}
