// Command cli runs a single deployment request from a JSON file without the
// HTTP server, useful for local testing of the pipeline.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"deploy-backend/cmd"
	internalapi "deploy-backend/internal/api"
	"deploy-backend/internal/config"
	"deploy-backend/internal/database"
	"deploy-backend/internal/messaging"
	"deploy-backend/pkg/api"

	"github.com/google/uuid"
)

func main() {
	var requestPath string
	flag.StringVar(&requestPath, "request", "", "path to a deployment request JSON file")

	cmd.LoadEnvFile()

	if requestPath == "" {
		log.Fatalf("usage: cli -request <request.json> [-env <env file>]")
	}

	data, err := os.ReadFile(requestPath)
	if err != nil {
		log.Fatalf("error reading request file: %v", err)
	}

	var req api.DeploymentRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Fatalf("error parsing request file: %v", err)
	}

	if err := internalapi.ValidateDeploymentRequest(req); err != nil {
		log.Fatalf("invalid request: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error parsing config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if !cfg.ValidateSecret(req.Secret) {
		log.Fatalf("invalid secret")
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	checks, err := json.Marshal(req.Checks)
	if err != nil {
		log.Fatalf("invalid checks field: %v", err)
	}

	deployment := &database.Deployment{
		Id:            uuid.New(),
		Email:         req.Email,
		Task:          req.Task,
		Round:         req.Round,
		Nonce:         req.Nonce,
		Brief:         req.Brief,
		Checks:        checks,
		EvaluationURL: req.EvaluationURL,
		Status:        database.DeploymentQueued,
		CreationTime:  time.Now().UTC(),
	}
	if err := db.Create(&deployment).Error; err != nil {
		log.Fatalf("error creating deployment record: %v", err)
	}

	ctx := context.Background()
	orchestrator, err := cmd.NewOrchestrator(ctx, db, cfg)
	if err != nil {
		log.Fatalf("Failed to build deployment pipeline: %v", err)
	}

	payload := messaging.DeployTaskPayload{
		DeploymentId:  deployment.Id,
		Email:         req.Email,
		Task:          req.Task,
		Round:         req.Round,
		Nonce:         req.Nonce,
		Brief:         req.Brief,
		EvaluationURL: req.EvaluationURL,
		Checks:        req.Checks,
		Attachments:   req.Attachments,
	}

	if err := orchestrator.Run(ctx, payload); err != nil {
		log.Fatalf("deployment failed: %v", err)
	}

	var record database.Deployment
	if err := db.First(&record, "id = ?", deployment.Id).Error; err != nil {
		log.Fatalf("error reading deployment record: %v", err)
	}

	log.Printf("deployment %s finished with status %s", record.Id, record.Status)
	if record.RepoURL != "" {
		log.Printf("repo: %s", record.RepoURL)
		log.Printf("pages: %s", record.PagesURL)
		log.Printf("commit: %s", record.CommitSHA)
	}
}
