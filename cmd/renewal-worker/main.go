package main

import (
	"context"
	"os"
	"time"

	"escola/internal/cli"
	"escola/internal/log"
	"escola/internal/services"
	"escola/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadConfig(log.ComponentWorker)

	logger.Info("Starting renewal-worker",
		"backend", cfg.DataBackend,
		"schedule", cfg.RenewalSchedule,
		"concurrency", cfg.RenewalConcurrency)

	store, err := cli.OpenStore(logger.WithComponent(log.ComponentStorage), cfg)
	if err != nil {
		logger.Error("Failed to open store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()

	amqpClient, err := cli.ConnectAMQP(logger.WithComponent(log.ComponentAMQP), cfg)
	if err != nil {
		logger.Warn("AMQP unavailable, relying on scheduled sweeps only", "error", err)
	}

	var consumer worker.Consumer
	if amqpClient != nil {
		consumer = amqpClient
		defer amqpClient.Close()
	}

	processor := services.NewRenewalProcessor(store, nil, cfg.RenewalConcurrency)
	w := worker.NewRenewalWorker(processor, consumer, cfg.RenewalSchedule,
		logger.WithComponent(log.ComponentRenewal).Logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {})

	if err := w.Run(ctx); err != nil {
		logger.Error("Renewal worker stopped", "error", err)
		os.Exit(1)
	}

	<-done
	logger.Info("Renewal-worker shutdown complete")
}
