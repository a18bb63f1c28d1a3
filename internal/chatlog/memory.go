package chatlog

import (
	"context"
	"sync"
	"time"
)

// MemoryLog is an in-process Log. History is lost on restart.
type MemoryLog struct {
	mu      sync.Mutex
	limit   int
	entries map[string][]Message
}

// NewMemoryLog returns a log retaining at most limit messages per key.
func NewMemoryLog(limit int) *MemoryLog {
	return &MemoryLog{limit: normalizeLimit(limit), entries: make(map[string][]Message)}
}

func (l *MemoryLog) Append(_ context.Context, key string, msg Message) (bool, error) {
	if err := validate(key, msg); err != nil {
		return false, err
	}
	if msg.At.IsZero() {
		msg.At = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	current := l.entries[key]
	for _, existing := range current {
		if existing.ID == msg.ID {
			return false, nil
		}
	}
	current = append(current, msg)
	if len(current) > l.limit {
		current = append([]Message(nil), current[len(current)-l.limit:]...)
	}
	l.entries[key] = current
	return true, nil
}

func (l *MemoryLog) Recent(_ context.Context, key string, n int) ([]Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return tail(l.entries[key], n), nil
}

func (l *MemoryLog) Clear(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	return nil
}
