package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mixcraft/internal/config"
	"mixcraft/internal/services"
)

// RedisQueue pushes jobs onto one list and reliably consumes results from
// another: each result is moved atomically onto a processing list and only
// removed once acknowledged.
type RedisQueue struct {
	client     *redis.Client
	jobs       string
	results    string
	processing string
}

// NewRedisQueue wraps client using the list names from cfg.
func NewRedisQueue(client *redis.Client, cfg config.Redis) *RedisQueue {
	return &RedisQueue{
		client:     client,
		jobs:       cfg.JobList,
		results:    cfg.ResultList,
		processing: cfg.ProcessingList,
	}
}

func (q *RedisQueue) Submit(ctx context.Context, job Job) error {
	data, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, q.jobs, data).Err(); err != nil {
		return services.Wrap(services.ErrExternal, "jobs", "submit", string(job.Type)+" job push failed", err)
	}
	return nil
}

func (q *RedisQueue) Next(ctx context.Context, wait time.Duration) (*Delivery, error) {
	raw, err := q.client.BLMove(ctx, q.results, q.processing, "LEFT", "RIGHT", wait).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrExternal, "jobs", "next result", "redis move failed", err)
	}
	result, err := decodeResult(raw)
	if err != nil {
		if remErr := q.client.LRem(ctx, q.processing, 1, raw).Err(); remErr != nil {
			return nil, errors.Join(err, remErr)
		}
		return nil, err
	}
	return &Delivery{Result: result, raw: raw}, nil
}

func (q *RedisQueue) Ack(ctx context.Context, delivery *Delivery) error {
	if delivery == nil {
		return nil
	}
	if err := q.client.LRem(ctx, q.processing, 1, delivery.raw).Err(); err != nil {
		return services.Wrap(services.ErrExternal, "jobs", "ack", "redis remove failed", err)
	}
	return nil
}

// Recover moves every unacknowledged entry back to the head of the result
// list, oldest first.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.results, "RIGHT", "LEFT").Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, services.Wrap(services.ErrExternal, "jobs", "recover", "redis move failed", err)
		}
		moved++
	}
}

func (q *RedisQueue) PublishResult(ctx context.Context, result Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := q.client.RPush(ctx, q.results, data).Err(); err != nil {
		return services.Wrap(services.ErrExternal, "jobs", "publish result", "redis push failed", err)
	}
	return nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
