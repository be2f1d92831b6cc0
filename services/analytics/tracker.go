// Package analytics ships widget events to the gateway off the hot path.
// Events are queued through asynq so a slow or offline analytics endpoint
// never blocks a conversation turn.
package analytics

import (
	"encoding/json"
	"time"

	"chatwidget/models"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TaskTypeTrackEvent = "analytics:track_event"

// Tracker enqueues analytics events for background delivery. Tracking is
// fire-and-forget: enqueue failures are logged and dropped.
type Tracker struct {
	client *asynq.Client
	logger *zap.Logger
}

func NewTracker(redisOpt asynq.RedisClientOpt, logger *zap.Logger) *Tracker {
	return &Tracker{
		client: asynq.NewClient(redisOpt),
		logger: logger,
	}
}

func (t *Tracker) Track(event models.AnalyticsEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.logger.Warn("failed to marshal analytics event", zap.Error(err))
		return
	}
	task := asynq.NewTask(TaskTypeTrackEvent, payload)
	if _, err := t.client.Enqueue(task,
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
		asynq.Retention(24*time.Hour),
	); err != nil {
		t.logger.Warn("failed to enqueue analytics event",
			zap.String("type", event.Type), zap.Error(err))
	}
}

func (t *Tracker) Close() error {
	return t.client.Close()
}
