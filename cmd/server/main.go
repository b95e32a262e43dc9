package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dgallion1/enrollgest/internal/api"
	"github.com/dgallion1/enrollgest/internal/blobstore"
	"github.com/dgallion1/enrollgest/internal/config"
	"github.com/dgallion1/enrollgest/internal/pipeline"
	"github.com/dgallion1/enrollgest/internal/timetable"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := blobstore.New(ctx, cfg.Storage)
	if err != nil {
		log.Error("failed to open storage", "type", cfg.Storage.Type, "error", err)
		os.Exit(1)
	}

	catalog := timetable.NewClient(timetable.ClientOptions{
		URL:         cfg.TimetableURL,
		Timeout:     cfg.TimetableTimeout,
		MinInterval: cfg.TimetableMinInterval,
	}, log)

	// The queue depth gauge is only read on scrape, after orch is set.
	var orch *pipeline.Orchestrator
	metrics := pipeline.NewMetrics(func() float64 { return float64(orch.QueueDepth()) })
	metrics.Registry().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	worker := pipeline.NewWorker(pipeline.Deps{
		Catalog:            catalog,
		Store:              store,
		Table:              cfg.Table,
		Analytics:          cfg.Analytics,
		Metrics:            metrics,
		ValidatePDF:        cfg.PDFValidate,
		Formats:            cfg.ExportFormats,
		MaxConcurrentFiles: cfg.MaxConcurrentFiles,
	}, log)

	orch = pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		WorkerCount:  cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
		TaskTTL:      cfg.TaskTTL,
	}, worker, log)
	orch.Start(ctx)

	scheduler := pipeline.NewScheduler(orch.Tasks(), store, cfg.ResultTTL, log)
	if err := scheduler.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	srv := api.NewServer(api.Deps{
		Orchestrator: orch,
		Store:        store,
		CatalogStats: catalog.Stats(),
		Metrics:      metrics.Handler(),
	}, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting enrollgest",
		"port", cfg.Port,
		"storage", cfg.Storage.Type,
		"workers", cfg.WorkerCount,
		"formats", cfg.ExportFormats,
	)
	// HTTP stops first so no new tasks arrive while the workers drain.
	err = serve(sigCtx, httpServer, nil, log, func() {
		orch.Stop()
		<-scheduler.Stop().Done()
		catalog.Close()
	})
	if err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
