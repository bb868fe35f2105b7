package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"escola/internal/cache"
	"escola/internal/cli"
	apphttp "escola/internal/http"
	"escola/internal/log"
	"escola/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadConfig(log.ComponentApp)

	store, err := cli.OpenStore(logger.WithComponent(log.ComponentStorage), cfg)
	if err != nil {
		logger.Error("Failed to open store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	var (
		views   *cache.LRUCache[string, services.RecordSchedule]
		manager = cache.NewManager()
	)
	if cfg.CacheTTL > 0 {
		views = cache.NewLRUCache[string, services.RecordSchedule](cfg.CacheSize, cfg.CacheTTL)
		manager.Register(views)
	}
	manager.StartCleanup(time.Minute)

	svc := services.NewInstallmentService(store, nil, views)

	amqpClient, err := cli.ConnectAMQP(logger.WithComponent(log.ComponentAMQP), cfg)
	if err != nil {
		logger.Warn("AMQP unavailable, renewals run in-process", "error", err)
	}
	if amqpClient != nil {
		svc.SetPublisher(amqpClient)
	} else {
		svc.SetPublisher(services.InlineRenewal{
			Processor: services.NewRenewalProcessor(store, svc, cfg.RenewalConcurrency),
		})
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, logger, apphttp.Options{RateLimit: 120})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		manager.Stop()
		if amqpClient != nil {
			amqpClient.Close()
		}
		if err := svc.Close(); err != nil {
			logger.Error("Store close error", "error", err)
		}
	})

	logger.Info("Starting escola server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
