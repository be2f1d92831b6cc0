package analytics

import (
	"context"
	"encoding/json"
	"fmt"

	"chatwidget/models"
	"chatwidget/services/gateway"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Worker drains queued analytics events and forwards them to the gateway.
type Worker struct {
	server *asynq.Server
	gw     gateway.Gateway
	logger *zap.Logger
}

func NewWorker(redisOpt asynq.RedisClientOpt, gw gateway.Gateway, logger *zap.Logger) *Worker {
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		Queues:      map[string]int{"default": 1},
	})
	return &Worker{server: server, gw: gw, logger: logger}
}

// Start runs the worker loop in the background.
func (w *Worker) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeTrackEvent, w.handleTrackEvent)
	if err := w.server.Start(mux); err != nil {
		return fmt.Errorf("failed to start analytics worker: %w", err)
	}
	w.logger.Info("analytics worker started")
	return nil
}

func (w *Worker) Stop() {
	w.server.Shutdown()
}

func (w *Worker) handleTrackEvent(ctx context.Context, task *asynq.Task) error {
	var event models.AnalyticsEvent
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		w.logger.Error("malformed analytics payload", zap.Error(err))
		return nil // not retryable
	}
	if err := w.gw.TrackEvent(ctx, event); err != nil {
		w.logger.Warn("analytics delivery failed, will retry",
			zap.String("type", event.Type), zap.Error(err))
		return err
	}
	return nil
}
