package cmd

import (
	"context"
	"flag"
	"log"

	"deploy-backend/internal/config"
	"deploy-backend/internal/deploy"
	"deploy-backend/internal/gitops"
	"deploy-backend/internal/llm"
	"deploy-backend/internal/notifier"
	"deploy-backend/internal/storage"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// NewArchiveStore builds the artifact store selected by ARCHIVE_STORE. A nil
// store disables archiving.
func NewArchiveStore(ctx context.Context, cfg *config.Config) (storage.ArchiveStore, error) {
	switch cfg.ArchiveStore {
	case "s3":
		return storage.NewS3ArchiveStore(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3EndpointURL,
			Region:          cfg.S3Region,
			Bucket:          cfg.ArchiveBucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	case "local":
		return storage.NewLocalArchiveStore(cfg.ArchiveDir)
	default:
		return nil, nil
	}
}

// NewOrchestrator wires the deployment pipeline from config: the model client,
// the GitHub client, the evaluation notifier, and the artifact store.
func NewOrchestrator(ctx context.Context, db *gorm.DB, cfg *config.Config) (*deploy.Orchestrator, error) {
	archive, err := NewArchiveStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	generator := llm.NewGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLMModel)

	deployer := gitops.NewClient(gitops.Config{
		APIBaseURL:  cfg.GitHubAPIURL,
		Token:       cfg.GitHubToken,
		Owner:       cfg.GitHubOwner(),
		OwnerIsOrg:  cfg.GitHubOrg != "",
		PagesBranch: cfg.PagesBranch,
		PagesSource: cfg.PagesSource,
	})

	evalNotifier := notifier.New(notifier.Config{
		MaxAttempts: cfg.RetryAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
	})

	return deploy.NewOrchestrator(db, cfg, generator, deployer, evalNotifier, archive), nil
}
