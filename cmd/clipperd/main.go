package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"clipper/internal/config"
	"clipper/internal/daemon"
	"clipper/internal/ledger"
	"clipper/internal/logging"
	"clipper/internal/notifications"
	"clipper/internal/queue"
	"clipper/internal/workflow"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return
	}

	decisions, err := ledger.Open(cfg.Paths.PoolDir)
	if err != nil {
		logger.Error("open asset ledger", logging.Error(err))
		_ = store.Close()
		return
	}

	notifier := notifications.NewService(cfg)
	manager := workflow.NewManager(cfg, store, logger, notifier, stageHandlers(cfg, store, logger, decisions)...)

	d, err := daemon.New(cfg, store, decisions, logger, manager)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = decisions.Close()
		_ = store.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("clipperd shutting down")
}
