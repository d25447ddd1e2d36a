package deploy

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"deploy-backend/internal/messaging"
)

// Worker consumes deployment tasks and runs the pipeline for each one.
type Worker struct {
	receiver     messaging.Receiver
	orchestrator *Orchestrator
	wg           sync.WaitGroup
}

func NewWorker(receiver messaging.Receiver, orchestrator *Orchestrator) *Worker {
	return &Worker{receiver: receiver, orchestrator: orchestrator}
}

// Start launches n goroutines consuming from the shared task channel. It
// returns immediately; Stop waits for in-flight deployments to finish.
func (w *Worker) Start(ctx context.Context, n int) {
	if n <= 0 {
		n = 1
	}

	slog.Info("starting deployment workers", "count", n)
	w.wg.Add(n)
	for i := 0; i < n; i++ {
		go func(id int) {
			defer w.wg.Done()
			w.run(ctx, id)
		}(i)
	}
}

func (w *Worker) Stop() {
	w.receiver.Close()
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("deployment worker stopping", "worker", id)
			return
		case task, ok := <-w.receiver.Tasks():
			if !ok {
				slog.Info("task channel closed, worker exiting", "worker", id)
				return
			}
			w.processTask(ctx, id, task)
		}
	}
}

func (w *Worker) processTask(ctx context.Context, id int, task messaging.Task) {
	if task.Type() != messaging.DeployQueue {
		slog.Error("received task from unknown queue, discarding", "worker", id, "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("failed to reject task", "worker", id, "error", err)
		}
		return
	}

	var payload messaging.DeployTaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		slog.Error("failed to unmarshal deploy task, discarding", "worker", id, "error", err)
		if err := task.Reject(); err != nil {
			slog.Error("failed to reject task", "worker", id, "error", err)
		}
		return
	}

	if err := w.orchestrator.Run(ctx, payload); err != nil {
		slog.Error("deploy task failed", "worker", id, "deployment_id", payload.DeploymentId, "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("failed to nack task", "worker", id, "error", err)
		}
		return
	}

	if err := task.Ack(); err != nil {
		slog.Error("failed to ack task", "worker", id, "error", err)
	}
}
