package api_test

import (
	"testing"

	backend "deploy-backend/internal/api"
	"deploy-backend/pkg/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDeploymentRequest(t *testing.T) {
	base := validRequest()

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, backend.ValidateDeploymentRequest(base))
	})

	t.Run("missing fields sorted", func(t *testing.T) {
		err := backend.ValidateDeploymentRequest(api.DeploymentRequest{Round: 1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "brief, email, evaluation_url, nonce, secret, task")
	})

	t.Run("invalid round", func(t *testing.T) {
		req := base
		req.Round = 3
		err := backend.ValidateDeploymentRequest(req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "round must be 1 or 2")
	})

	t.Run("invalid email", func(t *testing.T) {
		for _, email := range []string{"no-at-sign", "@example.com", "user@", "user@nodot", "user@.com", "user@example."} {
			req := base
			req.Email = email
			assert.Error(t, backend.ValidateDeploymentRequest(req), "email %q", email)
		}
	})

	t.Run("invalid evaluation url", func(t *testing.T) {
		req := base
		req.EvaluationURL = "ftp://eval.example.com"
		err := backend.ValidateDeploymentRequest(req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "evaluation_url")
	})

	t.Run("attachment missing content", func(t *testing.T) {
		req := base
		req.Attachments = []api.Attachment{{Filename: "data.csv"}}
		assert.Error(t, backend.ValidateDeploymentRequest(req))
	})
}
