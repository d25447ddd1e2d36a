package deploy_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"deploy-backend/internal/config"
	"deploy-backend/internal/database"
	"deploy-backend/internal/deploy"
	"deploy-backend/internal/gitops"
	"deploy-backend/internal/messaging"
	"deploy-backend/internal/notifier"
	"deploy-backend/internal/storage"
	"deploy-backend/pkg/api"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeGenerator struct {
	files       map[string]string
	revised     map[string]string
	generateErr error
	reviseErr   error

	existingSeen map[string]string
}

func (g *fakeGenerator) GenerateProject(ctx context.Context, taskId, brief string, attachmentPaths []string, checks []string) (map[string]string, error) {
	if g.generateErr != nil {
		return nil, g.generateErr
	}
	out := make(map[string]string, len(g.files))
	for k, v := range g.files {
		out[k] = v
	}
	return out, nil
}

func (g *fakeGenerator) ReviseProject(ctx context.Context, repoName, brief string, existing map[string]string, attachmentPaths []string, checks []string) (map[string]string, error) {
	g.existingSeen = existing
	if g.reviseErr != nil {
		return nil, g.reviseErr
	}
	return g.revised, nil
}

type fakeDeployer struct {
	existing map[string]string
	pushed   map[string]string
	created  bool
	updated  bool
}

func (d *fakeDeployer) CreateAndDeploy(ctx context.Context, repoName string, files map[string]string, brief string) (gitops.DeployResult, error) {
	d.created = true
	d.pushed = files
	return d.result(repoName, "abc123"), nil
}

func (d *fakeDeployer) UpdateExisting(ctx context.Context, repoName string, files map[string]string, brief string) (gitops.DeployResult, error) {
	d.updated = true
	d.pushed = files
	return d.result(repoName, "def456"), nil
}

func (d *fakeDeployer) FetchFiles(ctx context.Context, repoName string) (map[string]string, error) {
	return d.existing, nil
}

func (d *fakeDeployer) RepoURL(repoName string) string {
	return "https://github.com/acme/" + repoName
}

func (d *fakeDeployer) result(repoName, sha string) gitops.DeployResult {
	return gitops.DeployResult{
		RepoURL:   d.RepoURL(repoName),
		CommitSHA: sha,
		PagesURL:  "https://acme.github.io/" + repoName,
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.GetMigrator(db).Migrate())
	return db
}

func newTestConfig(t *testing.T) *config.Config {
	return &config.Config{
		GitHubUsername:    "acme",
		RetryAttempts:     3,
		RetryBaseDelay:    time.Millisecond,
		MaxDeploymentTime: time.Minute,
		TempDir:           t.TempDir(),
	}
}

func createDeployment(t *testing.T, db *gorm.DB, round int) messaging.DeployTaskPayload {
	record := database.Deployment{
		Id:           uuid.New(),
		Email:        "student@example.com",
		Task:         "demo-task",
		Round:        round,
		Nonce:        "nonce-1",
		Status:       database.DeploymentQueued,
		CreationTime: time.Now().UTC(),
	}
	require.NoError(t, db.Create(&record).Error)

	return messaging.DeployTaskPayload{
		DeploymentId: record.Id,
		Email:        record.Email,
		Task:         record.Task,
		Round:        round,
		Nonce:        record.Nonce,
		Brief:        "Create a demo landing page",
	}
}

func TestOrchestratorBuildRound(t *testing.T) {
	var received api.EvaluationPayload
	evalServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer evalServer.Close()

	db := newTestDB(t)
	cfg := newTestConfig(t)
	archiveDir := t.TempDir()
	archive, err := storage.NewLocalArchiveStore(archiveDir)
	require.NoError(t, err)

	generator := &fakeGenerator{files: map[string]string{"index.html": "<html></html>"}}
	deployer := &fakeDeployer{}
	orch := deploy.NewOrchestrator(db, cfg, generator, deployer, notifier.New(notifier.Config{MaxAttempts: 3, BaseDelay: time.Millisecond}), archive)

	payload := createDeployment(t, db, api.RoundBuild)
	payload.EvaluationURL = evalServer.URL
	payload.Attachments = []api.Attachment{{Filename: "notes.txt", Content: "aGVsbG8="}}

	require.NoError(t, orch.Run(context.Background(), payload))

	assert.True(t, deployer.created)
	assert.Contains(t, deployer.pushed, "index.html")
	assert.Contains(t, deployer.pushed, "README.md")

	assert.Equal(t, "success", received.Status)
	assert.Equal(t, "student@example.com", received.Email)
	assert.Equal(t, "demo-task", received.Task)
	assert.Equal(t, 1, received.Round)
	assert.Equal(t, "nonce-1", received.Nonce)
	assert.Equal(t, "abc123", received.CommitSHA)
	assert.NotEmpty(t, received.PagesURL)

	var record database.Deployment
	require.NoError(t, db.First(&record, "id = ?", payload.DeploymentId).Error)
	assert.Equal(t, database.DeploymentNotified, record.Status)
	assert.True(t, record.Delivered)
	assert.Equal(t, "abc123", record.CommitSHA)
	assert.Equal(t, 1, record.DeliveryAttempts)
	assert.True(t, record.CompletionTime.Valid)

	requestLog, err := os.ReadFile(filepath.Join(archiveDir, "deployments", payload.DeploymentId.String(), "request.json"))
	require.NoError(t, err)
	assert.Contains(t, string(requestLog), `"[REDACTED]"`)
	assert.NotContains(t, string(requestLog), "aGVsbG8=")

	_, err = os.Stat(filepath.Join(archiveDir, "deployments", payload.DeploymentId.String(), "project", "index.html"))
	assert.NoError(t, err)
}

func TestOrchestratorReviseRound(t *testing.T) {
	var received api.EvaluationPayload
	evalServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer evalServer.Close()

	db := newTestDB(t)
	generator := &fakeGenerator{revised: map[string]string{"index.html": "<html>v2</html>"}}
	deployer := &fakeDeployer{existing: map[string]string{"index.html": "<html>v1</html>", "styles.css": "body {}"}}
	orch := deploy.NewOrchestrator(db, newTestConfig(t), generator, deployer, notifier.New(notifier.Config{MaxAttempts: 3, BaseDelay: time.Millisecond}), nil)

	payload := createDeployment(t, db, api.RoundRevise)
	payload.EvaluationURL = evalServer.URL

	require.NoError(t, orch.Run(context.Background(), payload))

	assert.True(t, deployer.updated)
	assert.False(t, deployer.created)
	assert.Equal(t, deployer.existing, generator.existingSeen)
	assert.Equal(t, "success", received.Status)
	assert.Equal(t, 2, received.Round)
	assert.Equal(t, "def456", received.CommitSHA)
}

func TestOrchestratorReportsPipelineFailure(t *testing.T) {
	var received api.EvaluationPayload
	evalServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer evalServer.Close()

	db := newTestDB(t)
	generator := &fakeGenerator{reviseErr: fmt.Errorf("model unavailable")}
	deployer := &fakeDeployer{existing: map[string]string{"index.html": "<html></html>"}}
	orch := deploy.NewOrchestrator(db, newTestConfig(t), generator, deployer, notifier.New(notifier.Config{MaxAttempts: 3, BaseDelay: time.Millisecond}), nil)

	payload := createDeployment(t, db, api.RoundRevise)
	payload.EvaluationURL = evalServer.URL

	require.NoError(t, orch.Run(context.Background(), payload))

	assert.Equal(t, "failed", received.Status)
	assert.Contains(t, received.Error, "model unavailable")
	assert.Empty(t, received.CommitSHA)

	var record database.Deployment
	require.NoError(t, db.Preload("Errors").First(&record, "id = ?", payload.DeploymentId).Error)
	assert.Equal(t, database.DeploymentFailed, record.Status)
	require.NotEmpty(t, record.Errors)
	assert.Contains(t, record.Errors[0].Error, "model unavailable")
}

type stubNotifier struct {
	err      error
	attempts int
}

func (n *stubNotifier) Notify(ctx context.Context, url string, payload any, onAttempt notifier.OnAttempt) (notifier.Ack, error) {
	for i := 1; i <= n.attempts; i++ {
		onAttempt(i, http.StatusBadGateway, fmt.Errorf("endpoint returned status 502"))
	}
	if n.err != nil {
		return notifier.Ack{}, n.err
	}
	return notifier.Ack{StatusCode: http.StatusOK, Attempts: n.attempts}, nil
}

func TestOrchestratorDeliveryExhaustionMarksFailed(t *testing.T) {
	db := newTestDB(t)
	generator := &fakeGenerator{files: map[string]string{"index.html": "<html></html>"}}
	stub := &stubNotifier{attempts: 3, err: &notifier.DeliveryError{Attempts: 3, LastStatus: http.StatusBadGateway, Err: fmt.Errorf("endpoint returned status 502")}}
	orch := deploy.NewOrchestrator(db, newTestConfig(t), generator, &fakeDeployer{}, stub, nil)

	payload := createDeployment(t, db, api.RoundBuild)
	payload.EvaluationURL = "http://evaluation.invalid/notify"

	require.NoError(t, orch.Run(context.Background(), payload))

	var record database.Deployment
	require.NoError(t, db.Preload("Attempts").Preload("Errors").First(&record, "id = ?", payload.DeploymentId).Error)
	assert.Equal(t, database.DeploymentFailed, record.Status)
	assert.False(t, record.Delivered)
	assert.Len(t, record.Attempts, 3)
	require.NotEmpty(t, record.Errors)
	assert.Contains(t, record.Errors[0].Error, "after 3 attempts")
}
