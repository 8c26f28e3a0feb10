package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/yangshenhuai/skid-homework/api/handlers"
	"github.com/yangshenhuai/skid-homework/api/routes"
	"github.com/yangshenhuai/skid-homework/config"
	"github.com/yangshenhuai/skid-homework/internal/service/homework"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default $SKIDHW_CONFIG or ./config.yaml)")
	flag.Parse()
	if *configPath != "" {
		os.Setenv("SKIDHW_CONFIG", *configPath)
	}

	cfg, err := config.Get()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// init logger
	log, err := logger.NewLogger(logger.FromConfig(cfg.Log)...)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := homework.GetService(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to start homework service", logger.Error(err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, handlers.NewHandlers(app.Service, log,
		handlers.WithUploadLimits(cfg.Ingest.MaxFileSize, cfg.Ingest.MaxFiles),
	), cfg.Server.AllowedOrigins, log)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	go func() {
		log.Info("Server starting", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
	if err := app.Close(shutdownCtx); err != nil {
		log.Error("Failed to close service cleanly", logger.Error(err))
	}
}
