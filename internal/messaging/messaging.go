package messaging

import (
	"context"
	"time"

	"deploy-backend/pkg/api"

	"github.com/google/uuid"
)

const (
	DeployQueue     = "deploy_queue"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// DeployTaskPayload is published for every accepted deployment request. The
// secret is stripped before publishing, validation happens at the edge.
type DeployTaskPayload struct {
	DeploymentId uuid.UUID

	Email         string
	Task          string
	Round         int
	Nonce         string
	Brief         string
	EvaluationURL string
	Checks        []string
	Attachments   []api.Attachment
}

type Publisher interface {
	PublishDeployTask(ctx context.Context, payload DeployTaskPayload) error

	Close()
}

type Receiver interface {
	Tasks() <-chan Task

	Close()
}
