package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	DeploymentQueued   string = "QUEUED"
	DeploymentRunning  string = "RUNNING"
	DeploymentDeployed string = "DEPLOYED"
	DeploymentNotified string = "NOTIFIED"
	DeploymentFailed   string = "FAILED"
)

type Deployment struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Email string `gorm:"not null"`
	Task  string `gorm:"not null;uniqueIndex:idx_task_nonce"`
	Round int    `gorm:"not null"`
	Nonce string `gorm:"not null;uniqueIndex:idx_task_nonce"`

	Brief  string
	Checks datatypes.JSON

	EvaluationURL string

	Status string `gorm:"size:20;not null"`

	RepoURL   string
	CommitSHA string
	PagesURL  string

	DeliveryAttempts int `gorm:"default:0"`
	Delivered        bool

	CreationTime   time.Time
	CompletionTime sql.NullTime

	Attempts []DeliveryAttempt `gorm:"foreignKey:DeploymentId;constraint:OnDelete:CASCADE"`
	Errors   []DeploymentError `gorm:"foreignKey:DeploymentId;constraint:OnDelete:CASCADE"`
}

// DeliveryAttempt records one try at reaching the evaluation endpoint.
type DeliveryAttempt struct {
	DeploymentId uuid.UUID `gorm:"type:uuid;primaryKey"`
	Attempt      int       `gorm:"primaryKey"`

	StatusCode int
	Error      string
	Timestamp  time.Time
}

type DeploymentError struct {
	DeploymentId uuid.UUID `gorm:"type:uuid;primaryKey"`
	ErrorId      uuid.UUID `gorm:"type:uuid;primaryKey"`

	Error     string
	Timestamp time.Time
}
