package integrationtests

import (
	"context"
	"testing"

	"deploy-backend/internal/messaging"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

func setupRabbitMQContainer(t *testing.T, ctx context.Context) (messaging.Publisher, messaging.Receiver) {
	rabbitmqContainer, err := rabbitmq.Run(ctx, "rabbitmq:3.11-management")
	require.NoError(t, err, "Failed to start RabbitMQ container")

	t.Cleanup(func() {
		err := rabbitmqContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate RabbitMQ container")
	})

	connStr, err := rabbitmqContainer.AmqpURL(ctx)
	require.NoError(t, err, "Failed to get RabbitMQ AMQP URL")

	publisher, err := messaging.NewRabbitMQPublisher(connStr)
	require.NoError(t, err, "Failed to create publisher")
	t.Cleanup(publisher.Close)

	receiver, err := messaging.NewRabbitMQReceiver(connStr)
	require.NoError(t, err, "Failed to create receiver")
	t.Cleanup(receiver.Close)

	return publisher, receiver
}
