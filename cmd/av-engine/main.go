package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"AnonVitals/internal/config"
	"AnonVitals/internal/engine"
	"AnonVitals/internal/engine/scheduler"
	"AnonVitals/internal/hierarchy"
	"AnonVitals/internal/report"
	"AnonVitals/internal/sink"
	"AnonVitals/internal/source"

	"github.com/google/uuid"
)

func main() {
	os.Exit(run())
}

// Exit codes: 0 clean run, 1 run finished with skipped windows or sink
// failures, 2 invalid configuration or startup failure.
func run() int {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	log.Println("Starting av-engine...")

	// 1. Load and validate configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 2
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("Invalid configuration: %v", err)
		return 2
	}
	log.Println("Configuration loaded successfully.")

	// 2. Load the generalization hierarchy
	table, err := hierarchy.Load(cfg.Anonymizer.HierarchyPath)
	if err != nil {
		log.Printf("Failed to load hierarchy: %v", err)
		return 2
	}
	log.Printf("Hierarchy loaded: fields=%v suppression_level=%d", table.Fields(), table.SuppressionLevel())

	// 3. Build source and sinks
	src, err := source.New(cfg.Source)
	if err != nil {
		log.Printf("Failed to create source: %v", err)
		return 2
	}
	defer src.Close()

	sinks, err := sink.Create(cfg.Sinks)
	if err != nil {
		log.Printf("Failed to create sinks: %v", err)
		return 2
	}
	defer sink.CloseAll(sinks)

	// 4. Wire the reporter, engine and scheduler
	runID := uuid.NewString()
	reporter := report.NewReporter(runID)
	log.Printf("Run ID: %s", runID)

	eng, err := engine.New(cfg, table, sinks, reporter)
	if err != nil {
		log.Printf("Failed to create engine: %v", err)
		return 2
	}

	sched, err := scheduler.New(cfg, src, eng, reporter)
	if err != nil {
		log.Printf("Failed to create scheduler: %v", err)
		return 2
	}

	// 5. Optional stats/metrics listener
	if cfg.Report.ListenAddr != "" {
		statsServer := report.NewServer(reporter, cfg.Report.ListenAddr)
		statsServer.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			statsServer.Shutdown(shutdownCtx)
		}()
	}

	// 6. Run until the range is exhausted or a shutdown signal arrives
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome := engine.Run(ctx, sched, reporter)
	if outcome.Status == report.RunFatal {
		log.Printf("Run aborted: %v", outcome.Err)
		return 2
	}

	// 7. Final run report
	snap := outcome.Report
	log.Printf("Run %s finished: status=%s windows=%d input=%d released=%d suppressed=%d skipped=%d",
		snap.RunID, outcome.Status, len(snap.Batches), snap.TotalInput,
		snap.TotalReleased, snap.TotalSuppressed, snap.SkippedWindows)

	if outcome.Status != report.RunCompleted {
		return 1
	}
	return 0
}
