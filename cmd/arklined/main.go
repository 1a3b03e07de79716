package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"arkline/internal/config"
	"arkline/internal/daemon"
	"arkline/internal/ipc"
	"arkline/internal/logging"
	"arkline/internal/pipeline"
	"arkline/internal/records"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := records.Open(cfg)
	if err != nil {
		logger.Error("open record store", logging.Error(err))
		return
	}

	registry := pipeline.NewRegistry()
	if err := registerHandlers(registry, cfg, store, logger); err != nil {
		logger.Error("register step handlers", logging.Error(err))
		return
	}

	dispatcher := pipeline.NewDispatcher(store, registry, logger)
	pool := pipeline.NewPool(dispatcher, cfg.Pipeline.WorkerCount, logger)

	d, err := daemon.New(cfg, store, dispatcher, pool, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("arklined shutting down")
}
