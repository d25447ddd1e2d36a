package api

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoundBuild  = 1
	RoundRevise = 2
)

// Attachment is a file shipped with a deployment request, content base64 encoded.
type Attachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// DeploymentRequest is the payload accepted by POST /api.
type DeploymentRequest struct {
	Email         string       `json:"email"`
	Secret        string       `json:"secret,omitempty"`
	Task          string       `json:"task"`
	Round         int          `json:"round"`
	Nonce         string       `json:"nonce"`
	Brief         string       `json:"brief"`
	EvaluationURL string       `json:"evaluation_url"`
	Checks        []string     `json:"checks,omitempty"`
	Attachments   []Attachment `json:"attachments,omitempty"`
}

type SubmitResponse struct {
	Status       string    `json:"status"`
	Message      string    `json:"message"`
	DeploymentId uuid.UUID `json:"deployment_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// EvaluationPayload is delivered to the caller supplied evaluation_url once the
// pipeline reaches a terminal state.
type EvaluationPayload struct {
	Email     string `json:"email"`
	Task      string `json:"task"`
	Round     int    `json:"round"`
	Nonce     string `json:"nonce"`
	RepoURL   string `json:"repo_url,omitempty"`
	CommitSHA string `json:"commit_sha,omitempty"`
	PagesURL  string `json:"pages_url,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

type Deployment struct {
	Id               uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	Task             string     `json:"task"`
	Round            int        `json:"round"`
	Nonce            string     `json:"nonce"`
	Status           string     `json:"status"`
	RepoURL          string     `json:"repo_url,omitempty"`
	CommitSHA        string     `json:"commit_sha,omitempty"`
	PagesURL         string     `json:"pages_url,omitempty"`
	Error            string     `json:"error,omitempty"`
	DeliveryAttempts int        `json:"delivery_attempts"`
	CreationTime     time.Time  `json:"creation_time"`
	CompletionTime   *time.Time `json:"completion_time,omitempty"`
}

type ListDeploymentsQuery struct {
	Email  string `schema:"email"`
	Task   string `schema:"task"`
	Status string `schema:"status"`
	Limit  int    `schema:"limit"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

type InfoResponse struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}
