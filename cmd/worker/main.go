package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"deploy-backend/cmd"
	"deploy-backend/internal/config"
	"deploy-backend/internal/database"
	"deploy-backend/internal/deploy"
	"deploy-backend/internal/messaging"
)

func main() {
	log.Println("Starting deployment worker...")

	cmd.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error parsing config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if cfg.RabbitMQURL == "" {
		log.Fatalf("RABBITMQ_URL is required for the standalone worker")
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orchestrator, err := cmd.NewOrchestrator(ctx, db, cfg)
	if err != nil {
		log.Fatalf("Failed to build deployment pipeline: %v", err)
	}

	worker := deploy.NewWorker(receiver, orchestrator)
	worker.Start(ctx, runtime.NumCPU())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()
	worker.Stop()
	log.Println("Worker stopped.")
}
