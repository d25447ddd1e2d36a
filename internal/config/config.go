package config

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries every knob the service reads from the environment. It is
// passed explicitly into the handler, worker, and notifier so retry logic and
// validation stay testable without ambient process state.
type Config struct {
	APIPort      string   `env:"API_PORT" envDefault:"8000"`
	ValidSecrets []string `env:"VALID_SECRETS" envSeparator:","`

	DatabaseURL string `env:"DATABASE_URL"`
	RabbitMQURL string `env:"RABBITMQ_URL"`

	GitHubToken    string `env:"GITHUB_TOKEN"`
	GitHubUsername string `env:"GITHUB_USERNAME"`
	GitHubOrg      string `env:"GITHUB_ORG"`
	GitHubAPIURL   string `env:"GITHUB_API_URL" envDefault:"https://api.github.com"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	LLMModel      string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`

	RetryAttempts     int           `env:"RETRY_ATTEMPTS" envDefault:"5"`
	RetryBaseDelay    time.Duration `env:"RETRY_BASE_DELAY" envDefault:"1s"`
	MaxDeploymentTime time.Duration `env:"MAX_DEPLOYMENT_TIME" envDefault:"10m"`

	PagesBranch string `env:"PAGES_BRANCH" envDefault:"main"`
	PagesSource string `env:"PAGES_SOURCE" envDefault:"/"`

	TempDir string `env:"TEMP_DIR"`

	ArchiveStore  string `env:"ARCHIVE_STORE" envDefault:"local"`
	ArchiveDir    string `env:"ARCHIVE_DIR" envDefault:"./archive"`
	ArchiveBucket string `env:"ARCHIVE_BUCKET" envDefault:"deployments"`

	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateSecret checks the request secret against the allow-list. An empty
// allow-list accepts any non-empty secret so local development works without
// provisioning secrets.
func (c *Config) ValidateSecret(secret string) bool {
	if secret == "" {
		return false
	}
	if len(c.ValidSecrets) == 0 {
		return true
	}
	for _, s := range c.ValidSecrets {
		if s != "" && s == secret {
			return true
		}
	}
	return false
}

// GitHubOwner returns the org when configured, otherwise the username.
func (c *Config) GitHubOwner() string {
	if c.GitHubOrg != "" {
		return c.GitHubOrg
	}
	return c.GitHubUsername
}

// RepoName derives the unique repository name for a task. The email hash keeps
// names distinct when multiple callers submit the same task id.
func (c *Config) RepoName(taskId, email string) string {
	sum := md5.Sum([]byte(email))
	return "student-task-" + taskId + "-" + hex.EncodeToString(sum[:])[:8]
}

// Validate reports the configuration required before the pipeline can deploy
// anything. The API can still accept and queue requests without it.
func (c *Config) Validate() error {
	var errs []error
	if c.GitHubToken == "" {
		errs = append(errs, errors.New("GITHUB_TOKEN is required"))
	}
	if c.GitHubUsername == "" && c.GitHubOrg == "" {
		errs = append(errs, errors.New("either GITHUB_USERNAME or GITHUB_ORG is required"))
	}
	if c.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	return errors.Join(errs...)
}
