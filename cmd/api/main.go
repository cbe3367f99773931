package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanwahyu/plantscan/internal/app"
	"github.com/bryanwahyu/plantscan/internal/config"
	"github.com/bryanwahyu/plantscan/internal/infra/httpserver"
	"github.com/bryanwahyu/plantscan/internal/logger"
)

func main() {
	log := logger.Logger

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.WithError(err).Fatal("config load error")
	}

	ctx := context.Background()

	// init db, storage, analyzer, service
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("init error")
	}
	defer a.Close()

	handler := httpserver.NewRouter(a.Scans, httpserver.Options{
		APIKeys:     cfg.Auth,
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit:   cfg.Server.RateLimit,
		RateRefill:  cfg.Server.RateRefill,
		Checkers:    a.HealthCheckers(),
		Log:         log,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// analysis can take a while; the provider timeout is the real bound
		WriteTimeout: cfg.Analysis.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.WithField("addr", addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), cfg.Analysis.Timeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.WithError(err).Warn("shutdown error")
	}
}
