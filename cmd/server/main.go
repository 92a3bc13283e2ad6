package main

import (
	"context"
	"log"

	"github.com/SAP-F-2025/exam-service/internal/app"
	"github.com/SAP-F-2025/exam-service/internal/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialise service: %v", err)
	}
	defer application.Close()

	if err := application.Run(); err != nil {
		app.Exit(application.Logger, "Server stopped with error", err)
	}
	application.Logger.Info("Server exited gracefully")
}
