// Package gitops talks to the GitHub REST API: repository creation, file
// pushes, and Pages hosting for generated projects.
package gitops

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const maxFetchFileBytes = 64 * 1024

type Config struct {
	APIBaseURL  string
	Token       string
	Owner       string
	OwnerIsOrg  bool
	PagesBranch string
	PagesSource string
}

type Client struct {
	http        *resty.Client
	owner       string
	ownerIsOrg  bool
	pagesBranch string
	pagesSource string
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	pagesBranch := cfg.PagesBranch
	if pagesBranch == "" {
		pagesBranch = "main"
	}
	pagesSource := cfg.PagesSource
	if pagesSource == "" {
		pagesSource = "/"
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60 * time.Second).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("X-GitHub-Api-Version", "2022-11-28")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	return &Client{
		http:        client,
		owner:       cfg.Owner,
		ownerIsOrg:  cfg.OwnerIsOrg,
		pagesBranch: pagesBranch,
		pagesSource: pagesSource,
	}
}

// DeployResult carries the URLs reported back to the evaluation endpoint.
type DeployResult struct {
	RepoURL   string
	CommitSHA string
	PagesURL  string
}

func (c *Client) RepoURL(repoName string) string {
	return fmt.Sprintf("https://github.com/%s/%s", c.owner, repoName)
}

func (c *Client) PagesURL(repoName string) string {
	return fmt.Sprintf("https://%s.github.io/%s", c.owner, repoName)
}

// CreateAndDeploy creates the repository, pushes every file to the hosting
// branch, and enables Pages. A repository that already exists is reused so a
// re-run after a partial failure can complete the push.
func (c *Client) CreateAndDeploy(ctx context.Context, repoName string, files map[string]string, brief string) (DeployResult, error) {
	if err := c.createRepo(ctx, repoName, brief); err != nil {
		return DeployResult{}, err
	}

	message := commitMessage("Initial commit", brief)
	commitSHA, err := c.pushFiles(ctx, repoName, files, nil, message)
	if err != nil {
		return DeployResult{}, err
	}

	pagesURL := c.enablePages(ctx, repoName)

	slog.Info("repository deployed", "repo", repoName, "commit_sha", commitSHA, "pages_url", pagesURL)
	return DeployResult{
		RepoURL:   c.RepoURL(repoName),
		CommitSHA: commitSHA,
		PagesURL:  pagesURL,
	}, nil
}

// UpdateExisting pushes revised files into an existing repository. Files whose
// content is unchanged are skipped; when nothing changes the current branch
// head is reported.
func (c *Client) UpdateExisting(ctx context.Context, repoName string, files map[string]string, brief string) (DeployResult, error) {
	existing, err := c.listTree(ctx, repoName)
	if err != nil {
		return DeployResult{}, err
	}

	changed := make(map[string]string)
	shas := make(map[string]string)
	for path, content := range files {
		if sha, ok := existing[path]; ok {
			if gitBlobSHA(content) == sha {
				continue
			}
			shas[path] = sha
		}
		changed[path] = content
	}

	if len(changed) == 0 {
		slog.Info("no changes detected, skipping commit", "repo", repoName)
		head, err := c.branchHead(ctx, repoName)
		if err != nil {
			return DeployResult{}, err
		}
		return DeployResult{
			RepoURL:   c.RepoURL(repoName),
			CommitSHA: head,
			PagesURL:  c.PagesURL(repoName),
		}, nil
	}

	message := commitMessage("Update", brief)
	commitSHA, err := c.pushFiles(ctx, repoName, changed, shas, message)
	if err != nil {
		return DeployResult{}, err
	}

	slog.Info("repository updated", "repo", repoName, "commit_sha", commitSHA, "files", len(changed))
	return DeployResult{
		RepoURL:   c.RepoURL(repoName),
		CommitSHA: commitSHA,
		PagesURL:  c.PagesURL(repoName),
	}, nil
}

// FetchFiles downloads the current text files of a repository so a revision
// prompt can include them. Oversized files are skipped.
func (c *Client) FetchFiles(ctx context.Context, repoName string) (map[string]string, error) {
	tree, err := c.fetchTree(ctx, repoName)
	if err != nil {
		return nil, err
	}

	files := make(map[string]string)
	for _, entry := range tree {
		if entry.Type != "blob" || entry.Size > maxFetchFileBytes {
			continue
		}

		content, err := c.fetchContent(ctx, repoName, entry.Path)
		if err != nil {
			slog.Warn("skipping unreadable file", "repo", repoName, "path", entry.Path, "error", err)
			continue
		}
		files[entry.Path] = content
	}

	return files, nil
}

func (c *Client) createRepo(ctx context.Context, repoName, description string) error {
	endpoint := "/user/repos"
	if c.ownerIsOrg {
		endpoint = fmt.Sprintf("/orgs/%s/repos", c.owner)
	}

	if len(description) > 100 {
		description = description[:100]
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"name":        repoName,
			"description": description,
			"private":     false,
		}).
		Post(endpoint)
	if err != nil {
		return fmt.Errorf("failed to create repository %s: %w", repoName, err)
	}

	switch {
	case res.IsSuccess():
		slog.Info("created repository", "repo", repoName)
		return nil
	case res.StatusCode() == http.StatusUnprocessableEntity:
		// Name already exists on this account; reuse it.
		slog.Warn("repository already exists, reusing", "repo", repoName)
		return nil
	default:
		return fmt.Errorf("failed to create repository %s: status %d: %s", repoName, res.StatusCode(), res.String())
	}
}

// pushFiles commits files one at a time through the contents API and returns
// the sha of the final commit. shas maps paths to their current blob sha when
// updating existing files.
func (c *Client) pushFiles(ctx context.Context, repoName string, files map[string]string, shas map[string]string, message string) (string, error) {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var commitSHA string
	for _, path := range paths {
		body := map[string]any{
			"message": message,
			"content": base64.StdEncoding.EncodeToString([]byte(files[path])),
			"branch":  c.pagesBranch,
		}
		if sha, ok := shas[path]; ok {
			body["sha"] = sha
		}

		res, err := c.http.R().
			SetContext(ctx).
			SetBody(body).
			Put(fmt.Sprintf("/repos/%s/%s/contents/%s", c.owner, repoName, path))
		if err != nil {
			return "", fmt.Errorf("failed to push %s to %s: %w", path, repoName, err)
		}
		if !res.IsSuccess() {
			return "", fmt.Errorf("failed to push %s to %s: status %d: %s", path, repoName, res.StatusCode(), res.String())
		}

		var parsed struct {
			Commit struct {
				SHA string `json:"sha"`
			} `json:"commit"`
		}
		if err := json.Unmarshal(res.Body(), &parsed); err != nil {
			return "", fmt.Errorf("error parsing push response for %s: %w", path, err)
		}
		commitSHA = parsed.Commit.SHA
	}

	return commitSHA, nil
}

// enablePages turns on Pages hosting. Failures are tolerated, Pages may
// already be enabled, and the URL is deterministic either way.
func (c *Client) enablePages(ctx context.Context, repoName string) string {
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"source": map[string]string{
				"branch": c.pagesBranch,
				"path":   c.pagesSource,
			},
		}).
		Post(fmt.Sprintf("/repos/%s/%s/pages", c.owner, repoName))

	if err != nil {
		slog.Warn("failed to enable pages", "repo", repoName, "error", err)
	} else if !res.IsSuccess() && res.StatusCode() != http.StatusConflict && res.StatusCode() != http.StatusUnprocessableEntity {
		slog.Warn("pages setup returned unexpected status", "repo", repoName, "status_code", res.StatusCode(), "body", res.String())
	}

	return c.PagesURL(repoName)
}

type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	Size int    `json:"size"`
}

func (c *Client) fetchTree(ctx context.Context, repoName string) ([]treeEntry, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("recursive", "1").
		Get(fmt.Sprintf("/repos/%s/%s/git/trees/%s", c.owner, repoName, c.pagesBranch))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tree for %s: %w", repoName, err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("failed to fetch tree for %s: status %d: %s", repoName, res.StatusCode(), res.String())
	}

	var parsed struct {
		Tree []treeEntry `json:"tree"`
	}
	if err := json.Unmarshal(res.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("error parsing tree response for %s: %w", repoName, err)
	}

	return parsed.Tree, nil
}

func (c *Client) listTree(ctx context.Context, repoName string) (map[string]string, error) {
	tree, err := c.fetchTree(ctx, repoName)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(tree))
	for _, entry := range tree {
		if entry.Type == "blob" {
			out[entry.Path] = entry.SHA
		}
	}
	return out, nil
}

func (c *Client) fetchContent(ctx context.Context, repoName, path string) (string, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("ref", c.pagesBranch).
		Get(fmt.Sprintf("/repos/%s/%s/contents/%s", c.owner, repoName, path))
	if err != nil {
		return "", err
	}
	if !res.IsSuccess() {
		return "", fmt.Errorf("status %d", res.StatusCode())
	}

	var parsed struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := json.Unmarshal(res.Body(), &parsed); err != nil {
		return "", err
	}
	if parsed.Encoding != "base64" {
		return "", fmt.Errorf("unexpected content encoding %q", parsed.Encoding)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(parsed.Content, "\n", ""))
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func (c *Client) branchHead(ctx context.Context, repoName string) (string, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/repos/%s/%s/git/ref/heads/%s", c.owner, repoName, c.pagesBranch))
	if err != nil {
		return "", fmt.Errorf("failed to fetch branch head for %s: %w", repoName, err)
	}
	if !res.IsSuccess() {
		return "", fmt.Errorf("failed to fetch branch head for %s: status %d", repoName, res.StatusCode())
	}

	var parsed struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if err := json.Unmarshal(res.Body(), &parsed); err != nil {
		return "", fmt.Errorf("error parsing ref response for %s: %w", repoName, err)
	}
	return parsed.Object.SHA, nil
}

// gitBlobSHA computes the sha git assigns a blob, used to detect unchanged
// files without downloading them.
func gitBlobSHA(content string) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

func commitMessage(prefix, brief string) string {
	if len(brief) > 100 {
		brief = brief[:100]
	}
	return fmt.Sprintf("%s: %s", prefix, brief)
}
