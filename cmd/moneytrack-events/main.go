package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"moneytrack/internal/amqp"
	"moneytrack/internal/backend"
	"moneytrack/internal/cache"
	"moneytrack/internal/cli"
	"moneytrack/internal/config"
	applog "moneytrack/internal/log"
	"moneytrack/internal/remote"
	"moneytrack/internal/storage"
	"moneytrack/internal/worker"
)

func main() {
	configFile := flag.String("config", "", "path to a config file")
	flag.Parse()

	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig(*configFile)
	if err == nil {
		err = cfg.ValidateWorker()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := cli.SetupLogger(cfg.Log, applog.ComponentEvents)
	logger.Info("Starting moneytrack-events",
		applog.FieldOperation, applog.OpStartup,
		"replica", cfg.Worker.ReplicaPath,
		"forward_remote", cfg.Worker.ForwardRemote)

	if err := run(logger, cfg); err != nil {
		logger.Error("Event consumer failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Event consumer stopped gracefully")
}

func run(logger *applog.Logger, cfg *config.Config) error {
	var replica worker.Replica
	if cfg.Worker.ReplicaPath != "" {
		kv, err := storage.NewSQLiteKV(cfg.Worker.ReplicaPath)
		if err != nil {
			return fmt.Errorf("open replica %s: %w", cfg.Worker.ReplicaPath, err)
		}
		repo := storage.NewTransactionRepository(kv)
		defer repo.Close()
		replica = repo
	}

	var rc remote.Client
	if cfg.Worker.ForwardRemote {
		bc, err := backend.FromAppConfig(cfg)
		if err != nil {
			return err
		}
		factory := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger)
		rc, err = factory.CreateRemote(context.Background(), bc)
		if err != nil {
			return fmt.Errorf("create remote: %w", err)
		}
		logger.Info("Forwarding events to remote", "remote", rc.Name())
	}

	w, err := worker.NewEventWorker(replica, rc)
	if err != nil {
		return err
	}

	caches := cache.NewManager()
	caches.Register(w.Cache())
	caches.StartCleanup(cache.DefaultCleanupInterval)
	defer caches.Stop()

	client, err := amqp.NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer client.Close()

	ctx, done := cli.GracefulShutdown(logger, cfg.Server.ShutdownTimeout, func(context.Context) {})

	err = client.ConsumeEvents(ctx, w.HandleEvent)
	if errors.Is(err, context.Canceled) {
		cli.WaitForShutdown(ctx, done)
	}

	st := w.Stats()
	logger.Info("Event totals",
		"created", st.Created,
		"deleted", st.Deleted,
		"forwarded", st.Forwarded,
		"skipped", st.Skipped)

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume events: %w", err)
	}
	return nil
}
