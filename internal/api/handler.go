package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"deploy-backend/internal/config"
	"deploy-backend/internal/database"
	"deploy-backend/internal/messaging"
	"deploy-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ServiceName    = "llm-code-deployment"
	ServiceVersion = "1.0.0"
)

type BackendService struct {
	db        *gorm.DB
	cfg       *config.Config
	publisher messaging.Publisher
}

func NewBackendService(db *gorm.DB, cfg *config.Config, publisher messaging.Publisher) *BackendService {
	return &BackendService{db: db, cfg: cfg, publisher: publisher}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/", RestHandler(s.Info))
	r.Get("/health", RestHandler(s.Health))
	r.Post("/api", RestHandler(s.SubmitDeployment))
	r.Route("/deployments", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListDeployments))
		r.Get("/{deployment_id}", RestHandler(s.GetDeployment))
	})
}

func (s *BackendService) Info(r *http.Request) (any, error) {
	return api.InfoResponse{
		Service: ServiceName,
		Version: ServiceVersion,
		Endpoints: map[string]string{
			"/api":         "POST - Submit deployment request",
			"/health":      "GET - Health check",
			"/deployments": "GET - List deployment records",
		},
	}, nil
}

func (s *BackendService) Health(r *http.Request) (any, error) {
	return api.HealthResponse{
		Status:    "healthy",
		Service:   ServiceName,
		Timestamp: time.Now().UTC(),
	}, nil
}

// SubmitDeployment validates the request, persists a deployment record, and
// queues the pipeline. Nothing external (LLM, source control) is touched here,
// rejected requests never leave this function.
func (s *BackendService) SubmitDeployment(r *http.Request) (any, error) {
	req, err := ParseRequest[api.DeploymentRequest](r)
	if err != nil {
		return nil, err
	}

	if err := ValidateDeploymentRequest(req); err != nil {
		return nil, err
	}

	if !s.cfg.ValidateSecret(req.Secret) {
		slog.Warn("invalid secret attempted", "email", req.Email)
		return nil, CodedErrorf(http.StatusUnauthorized, "invalid secret")
	}

	ctx := r.Context()

	// Nonce idempotency: a replayed (task, nonce) pair returns the original
	// acknowledgement instead of running the pipeline twice.
	var existing database.Deployment
	err = s.db.WithContext(ctx).Where("task = ? AND nonce = ?", req.Task, req.Nonce).First(&existing).Error
	if err == nil {
		slog.Info("duplicate deployment request", "task", req.Task, "nonce", req.Nonce, "deployment_id", existing.Id)
		return api.SubmitResponse{
			Status:       "ok",
			Message:      fmt.Sprintf("round %d deployment already accepted", existing.Round),
			DeploymentId: existing.Id,
			Timestamp:    time.Now().UTC(),
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		slog.Error("error checking for duplicate deployment", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to check for duplicate request")
	}

	checks, err := json.Marshal(req.Checks)
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "invalid checks field")
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

	if err := s.db.WithContext(ctx).Create(&deployment).Error; err != nil {
		slog.Error("error creating deployment record", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create deployment record")
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

	if err := s.publisher.PublishDeployTask(ctx, payload); err != nil {
		slog.Error("error publishing deploy task", "deployment_id", deployment.Id, "error", err)
		database.UpdateDeploymentStatus(ctx, s.db, deployment.Id, database.DeploymentFailed) //nolint:errcheck
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue deployment")
	}

	slog.Info("accepted deployment request", "deployment_id", deployment.Id, "email", req.Email, "task", req.Task, "round", req.Round)

	return api.SubmitResponse{
		Status:       "ok",
		Message:      fmt.Sprintf("round %d deployment started", req.Round),
		DeploymentId: deployment.Id,
		Timestamp:    time.Now().UTC(),
	}, nil
}

func (s *BackendService) ListDeployments(r *http.Request) (any, error) {
	query, err := ParseRequestQueryParams[api.ListDeploymentsQuery](r)
	if err != nil {
		return nil, err
	}

	limit := query.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	tx := s.db.WithContext(r.Context()).Order("creation_time DESC").Limit(limit)
	if query.Email != "" {
		tx = tx.Where("email = ?", query.Email)
	}
	if query.Task != "" {
		tx = tx.Where("task = ?", query.Task)
	}
	if query.Status != "" {
		tx = tx.Where("status = ?", query.Status)
	}

	var deployments []database.Deployment
	if err := tx.Find(&deployments).Error; err != nil {
		slog.Error("error listing deployments", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving deployment records")
	}

	out := make([]api.Deployment, len(deployments))
	for i, d := range deployments {
		out[i] = toApiDeployment(d)
	}
	return out, nil
}

func (s *BackendService) GetDeployment(r *http.Request) (any, error) {
	deploymentId, err := URLParamUUID(r, "deployment_id")
	if err != nil {
		return nil, err
	}

	var deployment database.Deployment
	if err := s.db.WithContext(r.Context()).Preload("Errors").First(&deployment, "id = ?", deploymentId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "deployment not found")
		}
		slog.Error("error getting deployment", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving deployment record")
	}

	return toApiDeployment(deployment), nil
}

func toApiDeployment(d database.Deployment) api.Deployment {
	out := api.Deployment{
		Id:               d.Id,
		Email:            d.Email,
		Task:             d.Task,
		Round:            d.Round,
		Nonce:            d.Nonce,
		Status:           d.Status,
		RepoURL:          d.RepoURL,
		CommitSHA:        d.CommitSHA,
		PagesURL:         d.PagesURL,
		DeliveryAttempts: d.DeliveryAttempts,
		CreationTime:     d.CreationTime,
	}
	if d.CompletionTime.Valid {
		t := d.CompletionTime.Time
		out.CompletionTime = &t
	}
	if n := len(d.Errors); n > 0 {
		out.Error = d.Errors[n-1].Error
	}
	return out
}
