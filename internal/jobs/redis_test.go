package jobs_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"mixcraft/internal/config"
	"mixcraft/internal/jobs"
	"mixcraft/internal/pipeline"
	"mixcraft/internal/store"
)

var storeTrack = store.Track{ID: "t1", OwnerKind: pipeline.EntityProject, OwnerID: "p1", FilePath: "/a.mp3"}

// Runs only when MIXCRAFT_TEST_REDIS points at a disposable Redis server.
func TestRedisQueueRoundTrip(t *testing.T) {
	addr := os.Getenv("MIXCRAFT_TEST_REDIS")
	if addr == "" {
		t.Skip("MIXCRAFT_TEST_REDIS not set")
	}
	prefix := fmt.Sprintf("mixcraft-test:%d:", time.Now().UnixNano())
	cfg := config.Redis{
		Addr:           addr,
		JobList:        prefix + "jobs",
		ResultList:     prefix + "results",
		ProcessingList: prefix + "processing",
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	q := jobs.NewRedisQueue(client, cfg)
	t.Cleanup(func() {
		client.Del(context.Background(), cfg.JobList, cfg.ResultList, cfg.ProcessingList)
		q.Close()
	})
	ctx := context.Background()

	job, err := jobs.AnalyzeJob(&storeTrack)
	if err != nil {
		t.Fatalf("AnalyzeJob: %v", err)
	}
	if err := q.Submit(ctx, job); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if n := client.LLen(ctx, cfg.JobList).Val(); n != 1 {
		t.Fatalf("expected 1 queued job, got %d", n)
	}

	if err := q.PublishResult(ctx, jobs.FailureFor(job, "decode failed")); err != nil {
		t.Fatalf("PublishResult: %v", err)
	}
	delivery, err := q.Next(ctx, time.Second)
	if err != nil || delivery == nil {
		t.Fatalf("Next: %+v %v", delivery, err)
	}
	if delivery.Result.EntityKind != pipeline.EntityProject || !delivery.Result.Failed() {
		t.Fatalf("unexpected result: %+v", delivery.Result)
	}
	if moved, err := q.Recover(ctx); err != nil || moved != 1 {
		t.Fatalf("Recover: %d %v", moved, err)
	}
	delivery, _ = q.Next(ctx, time.Second)
	if err := q.Ack(ctx, delivery); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if n := client.LLen(ctx, cfg.ProcessingList).Val(); n != 0 {
		t.Fatalf("expected empty processing list, got %d", n)
	}
	if d, err := q.Next(ctx, 50*time.Millisecond); d != nil || err != nil {
		t.Fatalf("expected empty queue, got %+v %v", d, err)
	}
}
