package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/user/feedback-pipeline/internal/domain"
)

const streamKeyPrefix = "feedback_queue:"

// Queue implements domain.QueueRepository on Redis Streams: one bounded
// stream per tenant gives per-tenant FIFO with no cross-tenant ordering,
// and a per-tenant token bucket paces admission downstream.
type Queue struct {
	client   *redis.Client
	logger   *slog.Logger
	capacity int64
	limiters *limiterRegistry
}

// New creates a Queue. capacity bounds each tenant's stream; perSec/burst
// configure the per-tenant admission rate.
func New(client *redis.Client, logger *slog.Logger, capacity int64, perSec float64, burst int) *Queue {
	return &Queue{
		client:   client,
		logger:   logger.With("component", "queue"),
		capacity: capacity,
		limiters: newLimiterRegistry(perSec, burst),
	}
}

func streamKey(tenantID string) string { return streamKeyPrefix + tenantID }

// Enqueue appends redacted feedback to the tenant's stream. A full queue
// returns domain.ErrBackpressure so the caller can retry; nothing is
// silently dropped.
func (q *Queue) Enqueue(ctx context.Context, rf domain.RedactedFeedback) error {
	key := streamKey(rf.TenantID)

	length, err := q.client.XLen(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("queue length check: %w", err)
	}
	if length >= q.capacity {
		return domain.ErrBackpressure
	}

	payload, err := json.Marshal(rf)
	if err != nil {
		return fmt.Errorf("marshal redacted feedback: %w", err)
	}

	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		Values: map[string]interface{}{"payload": payload},
	}).Err(); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// Dequeue removes up to max items in arrival order, consuming one rate
// token per item. It stops early when the tenant's bucket is empty, which
// is how the limiter paces downstream processing.
func (q *Queue) Dequeue(ctx context.Context, tenantID string, max int) ([]domain.RedactedFeedback, error) {
	key := streamKey(tenantID)
	lim := q.limiters.get(tenantID)

	msgs, err := q.client.XRangeN(ctx, key, "-", "+", int64(max)).Result()
	if err != nil {
		return nil, fmt.Errorf("dequeue read: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	var (
		items []domain.RedactedFeedback
		ids   []string
	)
	for _, msg := range msgs {
		if !lim.Allow() {
			break
		}
		raw, ok := msg.Values["payload"].(string)
		if !ok {
			q.logger.Error("malformed queue entry, dropping", "stream", key, "id", msg.ID)
			ids = append(ids, msg.ID)
			continue
		}
		var rf domain.RedactedFeedback
		if err := json.Unmarshal([]byte(raw), &rf); err != nil {
			q.logger.Error("undecodable queue entry, dropping", "stream", key, "id", msg.ID, "error", err)
			ids = append(ids, msg.ID)
			continue
		}
		items = append(items, rf)
		ids = append(ids, msg.ID)
	}

	if len(ids) > 0 {
		if err := q.client.XDel(ctx, key, ids...).Err(); err != nil {
			return nil, fmt.Errorf("dequeue ack: %w", err)
		}
	}
	return items, nil
}

// Depth reports the tenant's current queue length.
func (q *Queue) Depth(ctx context.Context, tenantID string) (int64, error) {
	length, err := q.client.XLen(ctx, streamKey(tenantID)).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return length, nil
}
