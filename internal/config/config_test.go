package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSecret(t *testing.T) {
	cfg := Config{ValidSecrets: []string{"alpha", "beta"}}

	assert.True(t, cfg.ValidateSecret("alpha"))
	assert.True(t, cfg.ValidateSecret("beta"))
	assert.False(t, cfg.ValidateSecret("gamma"))
	assert.False(t, cfg.ValidateSecret(""))
}

func TestValidateSecretDevMode(t *testing.T) {
	cfg := Config{}

	assert.True(t, cfg.ValidateSecret("anything"))
	assert.False(t, cfg.ValidateSecret(""))
}

func TestRepoName(t *testing.T) {
	cfg := Config{}

	name := cfg.RepoName("markdown-to-html", "student@example.com")
	assert.Regexp(t, `^student-task-markdown-to-html-[0-9a-f]{8}$`, name)

	// Deterministic per (task, email), distinct across emails.
	assert.Equal(t, name, cfg.RepoName("markdown-to-html", "student@example.com"))
	assert.NotEqual(t, name, cfg.RepoName("markdown-to-html", "other@example.com"))
}

func TestGitHubOwner(t *testing.T) {
	assert.Equal(t, "acme-org", (&Config{GitHubOrg: "acme-org", GitHubUsername: "me"}).GitHubOwner())
	assert.Equal(t, "me", (&Config{GitHubUsername: "me"}).GitHubOwner())
}
