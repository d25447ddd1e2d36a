package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func UpdateDeploymentStatus(ctx context.Context, txn *gorm.DB, deploymentId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	if status == DeploymentNotified || status == DeploymentFailed {
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&Deployment{Id: deploymentId}).Updates(updates).Error; err != nil {
		slog.Error("error updating deployment status", "deployment_id", deploymentId, "status", status, "error", err)
		return err
	}
	return nil
}

func SetDeploymentResult(ctx context.Context, txn *gorm.DB, deploymentId uuid.UUID, repoURL, commitSHA, pagesURL string) error {
	updates := map[string]any{
		"status":     DeploymentDeployed,
		"repo_url":   repoURL,
		"commit_sha": commitSHA,
		"pages_url":  pagesURL,
	}

	if err := txn.WithContext(ctx).Model(&Deployment{Id: deploymentId}).Updates(updates).Error; err != nil {
		slog.Error("error recording deployment result", "deployment_id", deploymentId, "error", err)
		return err
	}
	return nil
}

// RecordDeliveryAttempt persists one notifier attempt and bumps the counter on
// the deployment row. Failures are logged only, delivery bookkeeping must not
// fail the pipeline.
func RecordDeliveryAttempt(ctx context.Context, txn *gorm.DB, deploymentId uuid.UUID, attempt, statusCode int, attemptErr error) {
	row := DeliveryAttempt{
		DeploymentId: deploymentId,
		Attempt:      attempt,
		StatusCode:   statusCode,
		Timestamp:    time.Now().UTC(),
	}
	if attemptErr != nil {
		row.Error = attemptErr.Error()
	}

	if err := txn.WithContext(ctx).Create(&row).Error; err != nil {
		slog.Error("error saving delivery attempt", "deployment_id", deploymentId, "attempt", attempt, "error", err)
		return
	}

	if err := txn.WithContext(ctx).Model(&Deployment{Id: deploymentId}).
		Update("delivery_attempts", attempt).Error; err != nil {
		slog.Error("error updating delivery attempt count", "deployment_id", deploymentId, "error", err)
	}
}

func MarkDelivered(ctx context.Context, txn *gorm.DB, deploymentId uuid.UUID) error {
	updates := map[string]any{
		"delivered":       true,
		"status":          DeploymentNotified,
		"completion_time": time.Now().UTC(),
	}
	if err := txn.WithContext(ctx).Model(&Deployment{Id: deploymentId}).Updates(updates).Error; err != nil {
		slog.Error("error marking deployment delivered", "deployment_id", deploymentId, "error", err)
		return err
	}
	return nil
}

func SaveDeploymentError(ctx context.Context, txn *gorm.DB, deploymentId uuid.UUID, errorMessage string) {
	deploymentError := DeploymentError{
		DeploymentId: deploymentId,
		ErrorId:      uuid.New(),
		Error:        errorMessage,
		Timestamp:    time.Now().UTC(),
	}

	if err := txn.WithContext(ctx).Create(&deploymentError).Error; err != nil {
		slog.Error("error saving deployment error", "deployment_id", deploymentId, "error", err)
	}
}
