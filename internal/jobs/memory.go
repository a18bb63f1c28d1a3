package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue for tests and single-machine runs
// without Redis. Results round-trip through JSON like the Redis backend.
type MemoryQueue struct {
	mu         sync.Mutex
	jobs       []Job
	results    []string
	processing []string
	signal     chan struct{}
}

// NewMemoryQueue returns an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{signal: make(chan struct{}, 1)}
}

func (q *MemoryQueue) Submit(_ context.Context, job Job) error {
	if _, err := encodeJob(job); err != nil {
		return err
	}
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	return nil
}

// Jobs returns submitted jobs in order.
func (q *MemoryQueue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, len(q.jobs))
	copy(out, q.jobs)
	return out
}

// TakeJobs returns and clears submitted jobs.
func (q *MemoryQueue) TakeJobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.jobs
	q.jobs = nil
	return out
}

func (q *MemoryQueue) PublishResult(_ context.Context, result Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	q.PublishRaw(string(data))
	return nil
}

// PublishRaw enqueues an entry verbatim.
func (q *MemoryQueue) PublishRaw(raw string) {
	q.mu.Lock()
	q.results = append(q.results, raw)
	q.mu.Unlock()
	q.wake()
}

func (q *MemoryQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) Next(ctx context.Context, wait time.Duration) (*Delivery, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		q.mu.Lock()
		if len(q.results) > 0 {
			raw := q.results[0]
			q.results = q.results[1:]
			result, err := decodeResult(raw)
			if err != nil {
				q.mu.Unlock()
				return nil, err
			}
			q.processing = append(q.processing, raw)
			q.mu.Unlock()
			return &Delivery{Result: result, raw: raw}, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-q.signal:
		}
	}
}

func (q *MemoryQueue) Ack(_ context.Context, delivery *Delivery) error {
	if delivery == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, raw := range q.processing {
		if raw == delivery.raw {
			q.processing = append(q.processing[:i], q.processing[i+1:]...)
			break
		}
	}
	return nil
}

func (q *MemoryQueue) Recover(_ context.Context) (int, error) {
	q.mu.Lock()
	moved := len(q.processing)
	q.results = append(append([]string(nil), q.processing...), q.results...)
	q.processing = nil
	q.mu.Unlock()
	if moved > 0 {
		q.wake()
	}
	return moved, nil
}

// Pending returns the number of unconsumed and unacknowledged results.
func (q *MemoryQueue) Pending() (queued, processing int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.results), len(q.processing)
}

func (q *MemoryQueue) Close() error {
	return nil
}
