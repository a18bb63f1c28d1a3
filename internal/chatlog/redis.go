package chatlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mixcraft/internal/services"
)

const watchAttempts = 5

// RedisLog stores each project's history in a capped Redis list so history
// survives daemon restarts.
type RedisLog struct {
	client *redis.Client
	prefix string
	limit  int
	ttl    time.Duration
}

// NewRedisLog builds a log on client. Keys are prefix+projectID; ttl <= 0
// disables expiry.
func NewRedisLog(client *redis.Client, prefix string, limit int, ttl time.Duration) *RedisLog {
	return &RedisLog{client: client, prefix: prefix, limit: normalizeLimit(limit), ttl: ttl}
}

func (l *RedisLog) key(key string) string {
	return l.prefix + key
}

// Append checks for the message ID and pushes under WATCH so a concurrent
// append of the same message cannot slip between the check and the write.
func (l *RedisLog) Append(ctx context.Context, key string, msg Message) (bool, error) {
	if err := validate(key, msg); err != nil {
		return false, err
	}
	if msg.At.IsZero() {
		msg.At = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return false, fmt.Errorf("encode chat message: %w", err)
	}
	listKey := l.key(key)

	var added bool
	txn := func(tx *redis.Tx) error {
		added = false
		existing, err := tx.LRange(ctx, listKey, 0, -1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		for _, raw := range existing {
			var prior Message
			if json.Unmarshal([]byte(raw), &prior) == nil && prior.ID == msg.ID {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, listKey, data)
			pipe.LTrim(ctx, listKey, int64(-l.limit), -1)
			if l.ttl > 0 {
				pipe.Expire(ctx, listKey, l.ttl)
			}
			return nil
		})
		if err == nil {
			added = true
		}
		return err
	}

	for attempt := 0; attempt < watchAttempts; attempt++ {
		err = l.client.Watch(ctx, txn, listKey)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return false, services.Wrap(services.ErrExternal, "chatlog", "append", "redis write failed", err)
	}
	return added, nil
}

func (l *RedisLog) Recent(ctx context.Context, key string, n int) ([]Message, error) {
	start := int64(0)
	if n > 0 {
		start = int64(-n)
	}
	raw, err := l.client.LRange(ctx, l.key(key), start, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, services.Wrap(services.ErrExternal, "chatlog", "recent", "redis read failed", err)
	}
	messages := make([]Message, 0, len(raw))
	for _, entry := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (l *RedisLog) Clear(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return services.Wrap(services.ErrExternal, "chatlog", "clear", "redis delete failed", err)
	}
	return nil
}
