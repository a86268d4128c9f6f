package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"go.uber.org/zap"

	"forgeproxy/infrastructure/config"
	"forgeproxy/infrastructure/di"
	"forgeproxy/interfaces/http/rest"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	container, err := di.InitializeContainer(cfg)
	if err != nil {
		panic("failed to initialize dependencies: " + err.Error())
	}
	logger := container.Logger
	defer logger.Sync()

	router := rest.NewRouter(
		container.Config,
		logger,
		container.Store,
		container.Engine,
		container.Model,
		container.Callbacks,
	)

	// No WriteTimeout: /api/chat/stream holds the response open for the
	// lifetime of the model stream.
	server := &http.Server{
		Addr:        cfg.ServerAddress,
		Handler:     router.Setup(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var g run.Group

	g.Add(func() error {
		logger.Info("starting http server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("model", cfg.OllamaModel),
		)
		return server.ListenAndServe()
	}, func(error) {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", zap.Error(err))
		}
	})

	g.Add(func() error {
		return container.Store.RunSweeper(ctx)
	}, func(error) {
		cancel()
	})

	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	if err := g.Run(); err != nil {
		var sig run.SignalError
		if errors.As(err, &sig) {
			logger.Info("received signal, shutting down", zap.String("signal", sig.Signal.String()))
			return
		}
		logger.Error("service terminated", zap.Error(err))
	}
}
