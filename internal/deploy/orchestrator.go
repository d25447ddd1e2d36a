// Package deploy runs the deployment pipeline for accepted requests: project
// generation, push to source hosting, and delivery of the evaluation callback.
package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"deploy-backend/internal/config"
	"deploy-backend/internal/database"
	"deploy-backend/internal/gitops"
	"deploy-backend/internal/llm"
	"deploy-backend/internal/messaging"
	"deploy-backend/internal/notifier"
	"deploy-backend/internal/storage"
	"deploy-backend/pkg/api"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectGenerator interface {
	GenerateProject(ctx context.Context, taskId, brief string, attachmentPaths []string, checks []string) (map[string]string, error)

	ReviseProject(ctx context.Context, repoName, brief string, existing map[string]string, attachmentPaths []string, checks []string) (map[string]string, error)
}

type RepoDeployer interface {
	CreateAndDeploy(ctx context.Context, repoName string, files map[string]string, brief string) (gitops.DeployResult, error)

	UpdateExisting(ctx context.Context, repoName string, files map[string]string, brief string) (gitops.DeployResult, error)

	FetchFiles(ctx context.Context, repoName string) (map[string]string, error)

	RepoURL(repoName string) string
}

type EvaluationNotifier interface {
	Notify(ctx context.Context, url string, payload any, onAttempt notifier.OnAttempt) (notifier.Ack, error)
}

type Orchestrator struct {
	db        *gorm.DB
	cfg       *config.Config
	generator ProjectGenerator
	deployer  RepoDeployer
	notifier  EvaluationNotifier
	archive   storage.ArchiveStore
}

func NewOrchestrator(db *gorm.DB, cfg *config.Config, generator ProjectGenerator, deployer RepoDeployer, evalNotifier EvaluationNotifier, archive storage.ArchiveStore) *Orchestrator {
	return &Orchestrator{
		db:        db,
		cfg:       cfg,
		generator: generator,
		deployer:  deployer,
		notifier:  evalNotifier,
		archive:   archive,
	}
}

// Run executes the full pipeline for one deployment. A pipeline failure is
// still reported to the evaluation endpoint, so Run returns an error only when
// the deployment could not even reach the notification stage.
func (o *Orchestrator) Run(ctx context.Context, payload messaging.DeployTaskPayload) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.MaxDeploymentTime)
	defer cancel()

	slog.Info("starting deployment", "deployment_id", payload.DeploymentId, "task", payload.Task, "round", payload.Round)

	if err := database.UpdateDeploymentStatus(ctx, o.db, payload.DeploymentId, database.DeploymentRunning); err != nil {
		return err
	}

	o.archiveRequest(ctx, payload)

	result, err := o.deploy(ctx, payload)
	if err != nil {
		slog.Error("deployment failed", "deployment_id", payload.DeploymentId, "task", payload.Task, "error", err)
		database.SaveDeploymentError(ctx, o.db, payload.DeploymentId, err.Error())
		o.notifyFailure(ctx, payload, err)
		return nil
	}

	if err := database.SetDeploymentResult(ctx, o.db, payload.DeploymentId, result.RepoURL, result.CommitSHA, result.PagesURL); err != nil {
		return err
	}

	o.notifySuccess(ctx, payload, result)
	return nil
}

func (o *Orchestrator) deploy(ctx context.Context, payload messaging.DeployTaskPayload) (gitops.DeployResult, error) {
	workspace, attachmentPaths, err := materializeAttachments(o.cfg.TempDir, payload.DeploymentId.String(), payload.Attachments)
	if workspace != "" {
		defer os.RemoveAll(workspace)
	}
	if err != nil {
		return gitops.DeployResult{}, err
	}

	repoName := o.cfg.RepoName(payload.Task, payload.Email)

	switch payload.Round {
	case api.RoundBuild:
		return o.runBuild(ctx, payload, repoName, attachmentPaths)
	case api.RoundRevise:
		return o.runRevise(ctx, payload, repoName, attachmentPaths)
	default:
		return gitops.DeployResult{}, fmt.Errorf("unsupported round %d", payload.Round)
	}
}

// runBuild is the round 1 workflow: generate a fresh project and push it to a
// new repository.
func (o *Orchestrator) runBuild(ctx context.Context, payload messaging.DeployTaskPayload, repoName string, attachmentPaths []string) (gitops.DeployResult, error) {
	files, err := o.generator.GenerateProject(ctx, payload.Task, payload.Brief, attachmentPaths, payload.Checks)
	if err != nil {
		return gitops.DeployResult{}, err
	}
	files["README.md"] = llm.GenerateReadme(payload.Brief, payload.Task, o.deployer.RepoURL(repoName))

	result, err := o.deployer.CreateAndDeploy(ctx, repoName, files, payload.Brief)
	if err != nil {
		return gitops.DeployResult{}, err
	}

	o.archiveProject(ctx, payload.DeploymentId, files)
	return result, nil
}

// runRevise is the round 2 workflow: fetch the repository pushed in round 1,
// ask the model for the changed files only, and push them.
func (o *Orchestrator) runRevise(ctx context.Context, payload messaging.DeployTaskPayload, repoName string, attachmentPaths []string) (gitops.DeployResult, error) {
	existing, err := o.deployer.FetchFiles(ctx, repoName)
	if err != nil {
		return gitops.DeployResult{}, err
	}

	revised, err := o.generator.ReviseProject(ctx, repoName, payload.Brief, existing, attachmentPaths, payload.Checks)
	if err != nil {
		return gitops.DeployResult{}, err
	}

	result, err := o.deployer.UpdateExisting(ctx, repoName, revised, payload.Brief)
	if err != nil {
		return gitops.DeployResult{}, err
	}

	o.archiveProject(ctx, payload.DeploymentId, revised)
	return result, nil
}

func (o *Orchestrator) notifySuccess(ctx context.Context, payload messaging.DeployTaskPayload, result gitops.DeployResult) {
	evaluation := api.EvaluationPayload{
		Email:     payload.Email,
		Task:      payload.Task,
		Round:     payload.Round,
		Nonce:     payload.Nonce,
		RepoURL:   result.RepoURL,
		CommitSHA: result.CommitSHA,
		PagesURL:  result.PagesURL,
		Status:    "success",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if o.notify(ctx, payload, evaluation) {
		if err := database.MarkDelivered(ctx, o.db, payload.DeploymentId); err != nil {
			slog.Error("failed to mark deployment delivered", "deployment_id", payload.DeploymentId, "error", err)
		}
		return
	}

	if err := database.UpdateDeploymentStatus(ctx, o.db, payload.DeploymentId, database.DeploymentFailed); err != nil {
		slog.Error("failed to update deployment status", "deployment_id", payload.DeploymentId, "error", err)
	}
}

func (o *Orchestrator) notifyFailure(ctx context.Context, payload messaging.DeployTaskPayload, deployErr error) {
	evaluation := api.EvaluationPayload{
		Email:     payload.Email,
		Task:      payload.Task,
		Round:     payload.Round,
		Nonce:     payload.Nonce,
		Status:    "failed",
		Error:     deployErr.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	o.notify(ctx, payload, evaluation)

	if err := database.UpdateDeploymentStatus(ctx, o.db, payload.DeploymentId, database.DeploymentFailed); err != nil {
		slog.Error("failed to update deployment status", "deployment_id", payload.DeploymentId, "error", err)
	}
}

// notify pushes the evaluation payload and records every delivery attempt.
// Delivery failures never leave the deployment record silent: the exhausted
// attempts and final error are stored before reporting back.
func (o *Orchestrator) notify(ctx context.Context, payload messaging.DeployTaskPayload, evaluation api.EvaluationPayload) bool {
	onAttempt := func(attempt, statusCode int, err error) {
		database.RecordDeliveryAttempt(ctx, o.db, payload.DeploymentId, attempt, statusCode, err)
	}

	ack, err := o.notifier.Notify(ctx, payload.EvaluationURL, evaluation, onAttempt)
	if err != nil {
		slog.Error("evaluation notification failed", "deployment_id", payload.DeploymentId, "evaluation_url", payload.EvaluationURL, "error", err)

		var deliveryErr *notifier.DeliveryError
		if errors.As(err, &deliveryErr) {
			database.SaveDeploymentError(ctx, o.db, payload.DeploymentId, fmt.Sprintf("evaluation notification failed after %d attempts: %v", deliveryErr.Attempts, deliveryErr.Err))
		} else {
			database.SaveDeploymentError(ctx, o.db, payload.DeploymentId, err.Error())
		}
		return false
	}

	slog.Info("evaluation notification delivered", "deployment_id", payload.DeploymentId, "attempts", ack.Attempts, "status_code", ack.StatusCode)
	return true
}

// archiveRequest stores a redacted copy of the accepted request for audit.
func (o *Orchestrator) archiveRequest(ctx context.Context, payload messaging.DeployTaskPayload) {
	if o.archive == nil {
		return
	}

	record := map[string]any{
		"deployment_id":  payload.DeploymentId,
		"email":          payload.Email,
		"secret":         "[REDACTED]",
		"task":           payload.Task,
		"round":          payload.Round,
		"nonce":          payload.Nonce,
		"brief":          payload.Brief,
		"evaluation_url": payload.EvaluationURL,
		"checks":         payload.Checks,
		"attachments":    attachmentNames(payload.Attachments),
		"received_at":    time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		slog.Error("failed to marshal request record", "deployment_id", payload.DeploymentId, "error", err)
		return
	}

	key := fmt.Sprintf("deployments/%s/request.json", payload.DeploymentId)
	if err := o.archive.PutObject(ctx, key, bytes.NewReader(data)); err != nil {
		slog.Warn("failed to archive request record", "deployment_id", payload.DeploymentId, "error", err)
	}
}

// archiveProject stores the pushed file set alongside the request record.
func (o *Orchestrator) archiveProject(ctx context.Context, deploymentId uuid.UUID, files map[string]string) {
	if o.archive == nil {
		return
	}

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		key := fmt.Sprintf("deployments/%s/project/%s", deploymentId, path)
		if err := o.archive.PutObject(ctx, key, strings.NewReader(files[path])); err != nil {
			slog.Warn("failed to archive project file", "deployment_id", deploymentId, "path", path, "error", err)
		}
	}
}

func attachmentNames(attachments []api.Attachment) []string {
	names := make([]string, 0, len(attachments))
	for _, attachment := range attachments {
		names = append(names, attachment.Filename)
	}
	return names
}
