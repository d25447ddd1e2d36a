package integrationtests

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"deploy-backend/internal/messaging"
	"deploy-backend/pkg/api"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRabbitMQ(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	publisher, receiver := setupRabbitMQContainer(t, ctx)

	t.Run("Publish and Receive DeployTask", func(t *testing.T) {
		payload := messaging.DeployTaskPayload{
			DeploymentId:  uuid.New(),
			Email:         "student@example.com",
			Task:          "demo-task",
			Round:         1,
			Nonce:         "nonce-1",
			Brief:         "Create a landing page",
			EvaluationURL: "https://eval.example.com/notify",
			Checks:        []string{"page loads"},
			Attachments:   []api.Attachment{{Filename: "notes.txt", Content: "aGVsbG8="}},
		}
		err := publisher.PublishDeployTask(ctx, payload)
		require.NoError(t, err)

		select {
		case task := <-receiver.Tasks():
			assert.Equal(t, messaging.DeployQueue, task.Type())

			var receivedPayload messaging.DeployTaskPayload
			err := json.Unmarshal(task.Payload(), &receivedPayload)
			require.NoError(t, err)
			assert.Equal(t, payload, receivedPayload)

			err = task.Ack()
			require.NoError(t, err)
		case <-time.After(4 * time.Second):
			t.Fatal("Timed out waiting for task")
		}
	})

	t.Run("Publish and Receive RevisionTask", func(t *testing.T) {
		payload := messaging.DeployTaskPayload{DeploymentId: uuid.New(), Task: "revise-task", Round: 2}
		require.NoError(t, publisher.PublishDeployTask(ctx, payload))

		select {
		case task := <-receiver.Tasks():
			var receivedPayload messaging.DeployTaskPayload
			require.NoError(t, json.Unmarshal(task.Payload(), &receivedPayload))
			assert.Equal(t, payload.DeploymentId, receivedPayload.DeploymentId)
			require.NoError(t, task.Ack())
		case <-time.After(4 * time.Second):
			t.Fatal("Timed out waiting for task")
		}
	})
}
