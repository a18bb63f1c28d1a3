package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"mixcraft/internal/config"
	"mixcraft/internal/services"
)

// Submitter hands jobs to the worker.
type Submitter interface {
	Submit(ctx context.Context, job Job) error
}

// Delivery is one result taken from the queue and not yet acknowledged.
type Delivery struct {
	Result Result
	raw    string
}

// Queue carries jobs out and results back.
type Queue interface {
	Submitter
	// Next waits up to wait for a result. It returns (nil, nil) when none
	// arrived. A malformed entry is removed and reported as a validation
	// error.
	Next(ctx context.Context, wait time.Duration) (*Delivery, error)
	// Ack removes a handled delivery from the processing list.
	Ack(ctx context.Context, delivery *Delivery) error
	// Recover re-queues deliveries that were taken but never acknowledged.
	Recover(ctx context.Context) (int, error)
	// PublishResult enqueues a result as the worker would.
	PublishResult(ctx context.Context, result Result) error
	Close() error
}

// NewRedisClient builds a client from the redis section of cfg.
func NewRedisClient(cfg config.Redis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Open returns the queue selected by cfg.Queue.Backend. The redis backend
// is pinged before returning.
func Open(ctx context.Context, cfg *config.Config, client *redis.Client) (Queue, error) {
	switch strings.ToLower(cfg.Queue.Backend) {
	case "memory":
		return NewMemoryQueue(), nil
	case "redis", "":
		if client == nil {
			client = NewRedisClient(cfg.Redis)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, services.Wrap(services.ErrExternal, "jobs", "open queue", "redis unreachable at "+cfg.Redis.Addr, err)
		}
		return NewRedisQueue(client, cfg.Redis), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "jobs", "open queue", fmt.Sprintf("unknown backend %q", cfg.Queue.Backend), nil)
	}
}

func encodeJob(job Job) ([]byte, error) {
	if !job.Type.Valid() || job.Type == TypeProgress {
		return nil, services.Wrap(services.ErrValidation, "jobs", "submit", fmt.Sprintf("cannot submit %q job", job.Type), nil)
	}
	if !job.EntityKind.Valid() || strings.TrimSpace(job.EntityID) == "" {
		return nil, services.Wrap(services.ErrValidation, "jobs", "submit", "job must name its entity", nil)
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	return data, nil
}

func decodeResult(raw string) (Result, error) {
	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "jobs", "decode result", "malformed result envelope", err)
	}
	return result, nil
}
