package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"formautofill/app"
	"formautofill/config"
	"formautofill/controllers"
	"formautofill/utils"
)

func main() {
	if err := config.Load(os.Getenv("ENV_FILE")); err != nil {
		log.Fatalf("Error loading env file: %v", err)
	}
	cfg := config.GetAppConfig()

	logger := utils.NewLoggerWithOptions(utils.LoggerOptions{Level: cfg.Log.Level, File: cfg.Log.File})
	utils.SetGlobalLogger(logger)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := controllers.Serve(ctx, a, ":"+cfg.Port); err != nil {
		logger.Error("server stopped", err)
	}
}
