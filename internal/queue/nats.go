package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"care-planner/internal/retry"
)

// defaultMaxAttempts bounds redelivery for tasks that never set their own
// limit. Ingestion failures are usually transient (provider quota, db
// restart), so a handful of retries is enough.
const defaultMaxAttempts = 5

// NewNATS wraps a NATS connection as a task queue. Each task type maps to one
// subject, and workers join a queue group per type so a document is ingested
// by exactly one of them.
func NewNATS(log *slog.Logger, nc *nats.Conn) Queue {
	return &natsQueue{log: log, nc: nc}
}

type natsQueue struct {
	log *slog.Logger
	nc  *nats.Conn
}

func (q *natsQueue) Enqueue(_ context.Context, task Task) error {
	if task.Type == "" {
		return errors.New("task type required")
	}
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	body, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.nc.Publish(subjectFor(task.Type), body)
}

func (q *natsQueue) Worker(ctx context.Context, taskType TaskType, handler Handler) error {
	sub, err := q.nc.QueueSubscribe(subjectFor(taskType), "workers-"+string(taskType), func(msg *nats.Msg) {
		q.consume(ctx, msg, handler)
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return sub.Unsubscribe()
}

func (q *natsQueue) consume(ctx context.Context, msg *nats.Msg, handler Handler) {
	var task Task
	if err := json.Unmarshal(msg.Data, &task); err != nil {
		q.log.Error("dropping undecodable task", "subject", msg.Subject, "err", err)
		return
	}

	// Redelivered tasks carry their backoff deadline with them.
	if wait := time.Until(task.NotBefore); wait > 0 {
		time.Sleep(wait)
	}

	if err := handler(ctx, task); err != nil {
		q.redeliver(ctx, task, err)
	}
}

// redeliver re-publishes a failed task with an increased attempt count and a
// backoff deadline, until its attempt budget runs out.
func (q *natsQueue) redeliver(ctx context.Context, task Task, cause error) {
	task.Attempts++
	limit := task.MaxAttempts
	if limit == 0 {
		limit = defaultMaxAttempts
	}
	if task.Attempts >= limit {
		q.log.Error("giving up on task", "id", task.ID, "type", task.Type, "attempts", task.Attempts, "err", cause)
		return
	}

	task.NotBefore = time.Now().Add(retry.ExponentialBackoff(task.Attempts, time.Second))
	if err := q.Enqueue(ctx, task); err != nil {
		q.log.Error("failed to requeue task", "id", task.ID, "type", task.Type, "handler_err", cause, "enqueue_err", err)
		return
	}
	q.log.Warn("task requeued after failure", "id", task.ID, "type", task.Type, "attempt", task.Attempts, "err", cause)
}

func subjectFor(t TaskType) string {
	return "tasks." + string(t)
}
