package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"deploy-backend/cmd"
	"deploy-backend/internal/api"
	"deploy-backend/internal/config"
	"deploy-backend/internal/database"
	"deploy-backend/internal/deploy"
	"deploy-backend/internal/messaging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	log.Println("Starting API Server...")

	cmd.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Without a broker URL the API process runs its own workers off an
	// in-process queue.
	var publisher messaging.Publisher
	var worker *deploy.Worker
	if cfg.RabbitMQURL == "" {
		log.Println("RABBITMQ_URL not set, running deployments in-process")

		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid config: %v", err)
		}

		queue := messaging.NewInMemoryQueue()
		publisher = queue

		orchestrator, err := cmd.NewOrchestrator(ctx, db, cfg)
		if err != nil {
			log.Fatalf("Failed to build deployment pipeline: %v", err)
		}

		worker = deploy.NewWorker(queue, orchestrator)
		worker.Start(ctx, runtime.NumCPU())
	} else {
		rabbitPublisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		publisher = rabbitPublisher
	}
	defer publisher.Close()

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	backend := api.NewBackendService(db, cfg, publisher)
	backend.AddRoutes(r)

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("API server listening on port %s", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	if worker != nil {
		cancel()
		worker.Stop()
	}

	log.Println("Server stopped.")
}
