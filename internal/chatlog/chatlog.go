// Package chatlog keeps the bounded, per-project conversation history used by
// conversational reordering.
package chatlog

import (
	"context"
	"strings"
	"time"

	"mixcraft/internal/services"
)

// DefaultLimit is the number of messages retained per project.
const DefaultLimit = 10

// Role identifies who wrote a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation entry. ID makes appends idempotent.
type Message struct {
	ID      string    `json:"id"`
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Log stores conversation history keyed by project ID.
type Log interface {
	// Append adds msg unless a message with the same ID is already retained.
	// It reports whether the message was added.
	Append(ctx context.Context, key string, msg Message) (bool, error)
	// Recent returns up to n messages, oldest first. n <= 0 returns everything
	// retained.
	Recent(ctx context.Context, key string, n int) ([]Message, error)
	Clear(ctx context.Context, key string) error
}

func validate(key string, msg Message) error {
	if strings.TrimSpace(key) == "" {
		return services.Wrap(services.ErrValidation, "chatlog", "append", "key is required", nil)
	}
	if strings.TrimSpace(msg.ID) == "" {
		return services.Wrap(services.ErrValidation, "chatlog", "append", "message id is required", nil)
	}
	switch msg.Role {
	case RoleUser, RoleAssistant:
	default:
		return services.Wrap(services.ErrValidation, "chatlog", "append", "unknown role "+string(msg.Role), nil)
	}
	return nil
}

func tail(messages []Message, n int) []Message {
	if n > 0 && len(messages) > n {
		messages = messages[len(messages)-n:]
	}
	out := make([]Message, len(messages))
	copy(out, messages)
	return out
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
